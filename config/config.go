package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tokensale/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress          string  `toml:"RPCAddress"`
	DataDir             string  `toml:"DataDir"`
	Environment         string  `toml:"Environment"`
	LogFile             string  `toml:"LogFile"`
	LogMaxSizeMB        int     `toml:"LogMaxSizeMB"`
	LogMaxBackups       int     `toml:"LogMaxBackups"`
	AdminAddress        string  `toml:"AdminAddress"`
	VaultAddress        string  `toml:"VaultAddress"`
	PayAsset            string  `toml:"PayAsset"`
	SaleAsset           string  `toml:"SaleAsset"`
	LockDurationSeconds int64   `toml:"LockDurationSeconds"`
	JWTSecret           string  `toml:"JWTSecret"`
	JWTSecretEnv        string  `toml:"JWTSecretEnv"`
	RPCRatePerSecond    float64 `toml:"RPCRatePerSecond"`
	RPCRateBurst        int     `toml:"RPCRateBurst"`
	MaxRequestBytes     int64   `toml:"MaxRequestBytes"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./sale-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
	if strings.TrimSpace(c.PayAsset) == "" {
		c.PayAsset = "PAY"
	}
	if strings.TrimSpace(c.SaleAsset) == "" {
		c.SaleAsset = "SALE"
	}
	if c.LockDurationSeconds == 0 {
		c.LockDurationSeconds = 86400
	}
	if c.RPCRatePerSecond == 0 {
		c.RPCRatePerSecond = 50
	}
	if c.RPCRateBurst == 0 {
		c.RPCRateBurst = 100
	}
	if c.MaxRequestBytes == 0 {
		c.MaxRequestBytes = 1 << 20
	}
}

// Validate checks the loaded configuration for internally consistent values.
func (c *Config) Validate() error {
	if _, err := crypto.DecodeAddress(c.AdminAddress); err != nil {
		return fmt.Errorf("config: invalid AdminAddress: %w", err)
	}
	if _, err := crypto.DecodeAddress(c.VaultAddress); err != nil {
		return fmt.Errorf("config: invalid VaultAddress: %w", err)
	}
	pay := strings.ToUpper(strings.TrimSpace(c.PayAsset))
	sale := strings.ToUpper(strings.TrimSpace(c.SaleAsset))
	if pay == "" || sale == "" {
		return fmt.Errorf("config: PayAsset and SaleAsset are required")
	}
	if pay == sale {
		return fmt.Errorf("config: PayAsset and SaleAsset must differ")
	}
	if c.LockDurationSeconds < 0 {
		return fmt.Errorf("config: LockDurationSeconds must not be negative")
	}
	if c.RPCRatePerSecond <= 0 || c.RPCRateBurst <= 0 {
		return fmt.Errorf("config: RPC rate limit values must be positive")
	}
	if c.MaxRequestBytes <= 0 {
		return fmt.Errorf("config: MaxRequestBytes must be positive")
	}
	return nil
}

// Admin returns the decoded admin account.
func (c *Config) Admin() (crypto.Address, error) {
	return crypto.DecodeAddress(c.AdminAddress)
}

// Vault returns the decoded custody account.
func (c *Config) Vault() (crypto.Address, error) {
	return crypto.DecodeAddress(c.VaultAddress)
}

// ResolveJWTSecret returns the admin API signing secret, preferring the
// environment variable named by JWTSecretEnv over the inline value. An empty
// result disables the authenticated admin surface.
func (c *Config) ResolveJWTSecret() string {
	if name := strings.TrimSpace(c.JWTSecretEnv); name != "" {
		if value := os.Getenv(name); value != "" {
			return value
		}
	}
	return strings.TrimSpace(c.JWTSecret)
}

// createDefault creates and saves a default configuration file. Fresh admin
// and vault accounts are generated so the daemon can start unattended.
func createDefault(path string) (*Config, error) {
	adminKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	vaultKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AdminAddress: adminKey.PubKey().Address().String(),
		VaultAddress: vaultKey.PubKey().Address().String(),
	}
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
