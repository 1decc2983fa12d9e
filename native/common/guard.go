package common

import (
	"errors"
	"strings"
	"sync"
)

// ErrModulePaused is returned by Guard when the named module is paused.
var ErrModulePaused = errors.New("module paused")

// PauseView reports the pause state of a named module.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseRegistry is a concrete PauseView with admin-togglable flags. It is safe
// for concurrent use.
type PauseRegistry struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauseRegistry constructs an empty registry with every module unpaused.
func NewPauseRegistry() *PauseRegistry {
	return &PauseRegistry{paused: make(map[string]bool)}
}

// SetPaused flips the pause flag for the named module.
func (r *PauseRegistry) SetPaused(module string, paused bool) {
	if r == nil {
		return
	}
	trimmed := strings.TrimSpace(module)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	r.paused[trimmed] = paused
	r.mu.Unlock()
}

// IsPaused implements PauseView.
func (r *PauseRegistry) IsPaused(module string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused[strings.TrimSpace(module)]
}
