package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tokensale/core/types"
)

type journalEvent struct {
	evt *types.Event
}

func (e journalEvent) EventType() string   { return e.evt.Type }
func (e journalEvent) Event() *types.Event { return e.evt }

func TestJournalAppendAssignsSequence(t *testing.T) {
	journal, err := NewJournal(NewMemDB())
	require.NoError(t, err)
	journal.SetNowFunc(func() int64 { return 42 })

	first, err := journal.Append("sale.purchased", map[string]string{"actor": "aa", "payAmount": "500"})
	require.NoError(t, err)
	second, err := journal.Append("sale.claimed", map[string]string{"actor": "aa"})
	require.NoError(t, err)

	require.Equal(t, uint64(0), first.Sequence)
	require.Equal(t, uint64(1), second.Sequence)
	require.Equal(t, int64(42), first.Timestamp)
	require.Equal(t, "aa", first.Actor)
	require.NotEmpty(t, first.ID)
	require.NotEqual(t, first.ID, second.ID)
}

func TestJournalEntriesOrderedBySequence(t *testing.T) {
	journal, err := NewJournal(NewMemDB())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := journal.Append("sale.purchased", map[string]string{"actor": "aa"})
		require.NoError(t, err)
	}

	entries, err := journal.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, entry := range entries {
		require.Equal(t, uint64(i), entry.Sequence)
	}
}

func TestJournalEntriesByActor(t *testing.T) {
	journal, err := NewJournal(NewMemDB())
	require.NoError(t, err)

	_, err = journal.Append("sale.purchased", map[string]string{"actor": "aa"})
	require.NoError(t, err)
	_, err = journal.Append("sale.purchased", map[string]string{"actor": "bb"})
	require.NoError(t, err)
	_, err = journal.Append("sale.claimed", map[string]string{"actor": "aa"})
	require.NoError(t, err)

	entries, err := journal.EntriesByActor("aa")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "sale.purchased", entries[0].EventType)
	require.Equal(t, "sale.claimed", entries[1].EventType)

	entries, err = journal.EntriesByActor("cc")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestJournalResumesSequenceAcrossReopen(t *testing.T) {
	db := NewMemDB()

	journal, err := NewJournal(db)
	require.NoError(t, err)
	_, err = journal.Append("sale.purchased", map[string]string{"actor": "aa"})
	require.NoError(t, err)

	reopened, err := NewJournal(db)
	require.NoError(t, err)
	entry, err := reopened.Append("sale.claimed", map[string]string{"actor": "aa"})
	require.NoError(t, err)
	require.Equal(t, uint64(1), entry.Sequence)

	entries, err := reopened.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestJournalEmitPersistsModuleEvents(t *testing.T) {
	journal, err := NewJournal(NewMemDB())
	require.NoError(t, err)

	journal.Emit(journalEvent{evt: &types.Event{
		Type:       "sale.purchased",
		Attributes: map[string]string{"actor": "aa", "saleAmount": "1000"},
	}})

	entries, err := journal.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "sale.purchased", entries[0].EventType)
	require.Equal(t, "1000", entries[0].Attributes["saleAmount"])
	require.Equal(t, "aa", entries[0].Actor)
}
