package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Env           string `toml:"Env"`
	LogFile       string `toml:"LogFile"`

	OwnerAddress  string `toml:"OwnerAddress"`
	ModuleAddress string `toml:"ModuleAddress"`
	AdminReserve  string `toml:"AdminReserve"`
	RootAddress   string `toml:"RootAddress"`

	AdminJWTSecret   string `toml:"AdminJWTSecret"`
	AdminJWTIssuer   string `toml:"AdminJWTIssuer"`
	AdminJWTAudience string `toml:"AdminJWTAudience"`

	SchedulerEnabled bool   `toml:"SchedulerEnabled"`
	GHPCronSpec      string `toml:"GHPCronSpec"`
	LeaderCronSpec   string `toml:"LeaderCronSpec"`

	IndexerEnabled bool   `toml:"IndexerEnabled"`
	IndexerDBPath  string `toml:"IndexerDBPath"`
}

const adminJWTSecretEnv = "ORPHIFUND_ADMIN_JWT_SECRET"

// Load reads the configuration file, creating a default one when missing.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if secret := strings.TrimSpace(os.Getenv(adminJWTSecretEnv)); secret != "" {
		cfg.AdminJWTSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8547"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./orphifund-data"
	}
	if strings.TrimSpace(cfg.GHPCronSpec) == "" {
		cfg.GHPCronSpec = "0 0 * * 0" // weekly, Sunday midnight
	}
	if strings.TrimSpace(cfg.LeaderCronSpec) == "" {
		cfg.LeaderCronSpec = "0 0 1,15 * *" // twice a month
	}
	if strings.TrimSpace(cfg.IndexerDBPath) == "" {
		cfg.IndexerDBPath = "./orphifund-data/indexer.db"
	}
}

// Validate rejects configurations that cannot boot a working daemon.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"OwnerAddress":  c.OwnerAddress,
		"ModuleAddress": c.ModuleAddress,
		"AdminReserve":  c.AdminReserve,
		"RootAddress":   c.RootAddress,
	} {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("config: %s must be a hex address", name)
		}
	}
	if strings.TrimSpace(c.AdminJWTSecret) == "" {
		return errors.New("config: admin JWT secret required (set AdminJWTSecret or " + adminJWTSecretEnv + ")")
	}
	return nil
}

func (c *Config) Owner() common.Address  { return common.HexToAddress(c.OwnerAddress) }
func (c *Config) Module() common.Address { return common.HexToAddress(c.ModuleAddress) }
func (c *Config) Admin() common.Address  { return common.HexToAddress(c.AdminReserve) }
func (c *Config) Root() common.Address   { return common.HexToAddress(c.RootAddress) }

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("config: wrote default config to %s; fill in addresses and restart", path)
}
