package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config is built once by Load and treated as read-only afterwards.
type Config struct {
	Env      string `mapstructure:"MS_ENV"`
	HTTPAddr string `mapstructure:"MS_HTTP_ADDR"`

	Chain     ChainConfig     `mapstructure:",squash"`
	Contracts ContractsConfig `mapstructure:",squash"`
	Wallet    WalletConfig    `mapstructure:",squash"`
	Cache     CacheConfig     `mapstructure:",squash"`
	Staking   StakingConfig   `mapstructure:",squash"`
	Security  SecurityConfig  `mapstructure:",squash"`
}

type ChainConfig struct {
	ChainID     int64  `mapstructure:"MS_CHAIN_ID"`
	Name        string `mapstructure:"MS_CHAIN_NAME"`
	RPCURL      string `mapstructure:"MS_RPC_URL"`
	ExplorerURL string `mapstructure:"MS_EXPLORER_URL"`
}

type ContractsConfig struct {
	TokenAddress   string `mapstructure:"MS_TOKEN_ADDRESS"`
	StakingAddress string `mapstructure:"MS_STAKING_ADDRESS"`
	BuybackWallet  string `mapstructure:"MS_BUYBACK_WALLET"`

	token   common.Address
	staking common.Address
	buyback common.Address
}

type WalletConfig struct {
	WalletConnectProjectID string `mapstructure:"MS_WALLETCONNECT_PROJECT_ID"`
	OperatorKey            string `mapstructure:"MS_OPERATOR_KEY"` // hex private key, CLI writes only
}

type CacheConfig struct {
	RedisAddr   string        `mapstructure:"MS_REDIS_ADDR"`
	SnapshotTTL time.Duration `mapstructure:"MS_SNAPSHOT_TTL"`
	MaxAge      time.Duration `mapstructure:"MS_SNAPSHOT_MAX_AGE"`
}

type StakingConfig struct {
	RefreshInterval time.Duration `mapstructure:"MS_REFRESH_INTERVAL"`
	LockPresetsRaw  string        `mapstructure:"MS_LOCK_PRESETS"`
	TokenDecimals   int           `mapstructure:"MS_TOKEN_DECIMALS"`
	TokenSymbol     string        `mapstructure:"MS_TOKEN_SYMBOL"`

	LockPresets []uint16 `mapstructure:"-"`
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"MS_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"MS_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
		filepath.Join("..", "..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // variables already in the environment win
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("MS_ENV", "dev")
	v.SetDefault("MS_HTTP_ADDR", ":8080")
	v.SetDefault("MS_CHAIN_ID", 143)
	v.SetDefault("MS_CHAIN_NAME", "Monad")
	v.SetDefault("MS_RPC_URL", "https://rpc.monad.xyz")
	v.SetDefault("MS_EXPLORER_URL", "https://monadscan.com")
	v.SetDefault("MS_TOKEN_ADDRESS", "")
	v.SetDefault("MS_STAKING_ADDRESS", "")
	v.SetDefault("MS_BUYBACK_WALLET", "")
	v.SetDefault("MS_WALLETCONNECT_PROJECT_ID", "")
	v.SetDefault("MS_OPERATOR_KEY", "")
	v.SetDefault("MS_REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("MS_SNAPSHOT_TTL", "10m")
	v.SetDefault("MS_SNAPSHOT_MAX_AGE", "15s")
	v.SetDefault("MS_REFRESH_INTERVAL", "30s")
	v.SetDefault("MS_LOCK_PRESETS", "30,90,180,365")
	v.SetDefault("MS_TOKEN_DECIMALS", 18)
	v.SetDefault("MS_TOKEN_SYMBOL", "MONI")
	v.SetDefault("MS_RATE_LIMIT_RPM", 120)
	v.SetDefault("MS_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	// Handle array parsing for comma-separated values
	if origins := v.GetString("MS_CORS_ALLOWED_ORIGINS"); origins != "" {
		v.Set("MS_CORS_ALLOWED_ORIGINS", splitList(origins))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	presets, err := parseLockPresets(cfg.Staking.LockPresetsRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Staking.LockPresets = presets

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("MS_RPC_URL is required")
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("MS_CHAIN_ID must be positive, got %d", c.Chain.ChainID)
	}

	var err error
	if c.Contracts.token, err = parseAddress("MS_TOKEN_ADDRESS", c.Contracts.TokenAddress, true); err != nil {
		return err
	}
	if c.Contracts.staking, err = parseAddress("MS_STAKING_ADDRESS", c.Contracts.StakingAddress, true); err != nil {
		return err
	}
	if c.Contracts.buyback, err = parseAddress("MS_BUYBACK_WALLET", c.Contracts.BuybackWallet, false); err != nil {
		return err
	}

	if c.Staking.TokenDecimals < 0 || c.Staking.TokenDecimals > 77 {
		return fmt.Errorf("MS_TOKEN_DECIMALS out of range: %d", c.Staking.TokenDecimals)
	}
	if c.Staking.RefreshInterval < 0 {
		return fmt.Errorf("MS_REFRESH_INTERVAL must not be negative")
	}
	if len(c.Staking.LockPresets) == 0 {
		return fmt.Errorf("MS_LOCK_PRESETS is required")
	}
	return nil
}

func parseAddress(name, value string, required bool) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			return common.Address{}, fmt.Errorf("%s is required", name)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s is not a valid address: %q", name, value)
	}
	return common.HexToAddress(value), nil
}

func parseLockPresets(raw string) ([]uint16, error) {
	var presets []uint16
	for _, part := range splitList(raw) {
		days, err := strconv.ParseUint(part, 10, 16)
		if err != nil || days == 0 {
			return nil, fmt.Errorf("invalid lock preset %q", part)
		}
		presets = append(presets, uint16(days))
	}
	return presets, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

func (c *ContractsConfig) Token() common.Address {
	return c.token
}

func (c *ContractsConfig) Staking() common.Address {
	return c.staking
}

// Buyback returns the configured buyback wallet, or the zero address when the
// contract's own value should be used.
func (c *ContractsConfig) Buyback() common.Address {
	return c.buyback
}

// ExplorerTxURL links a transaction hash on the configured block explorer.
func (c *ChainConfig) ExplorerTxURL(hash string) string {
	return strings.TrimRight(c.ExplorerURL, "/") + "/tx/" + hash
}

func (c *ChainConfig) ExplorerAddressURL(addr string) string {
	return strings.TrimRight(c.ExplorerURL, "/") + "/address/" + addr
}

// NewForTest builds a validated config without touching the environment.
func NewForTest(token, staking common.Address) *Config {
	cfg := &Config{
		Env:      "test",
		HTTPAddr: ":0",
		Chain: ChainConfig{
			ChainID:     143,
			Name:        "Monad",
			RPCURL:      "http://localhost:8545",
			ExplorerURL: "https://monadscan.com",
		},
		Contracts: ContractsConfig{
			TokenAddress:   token.Hex(),
			StakingAddress: staking.Hex(),
			token:          token,
			staking:        staking,
		},
		Cache: CacheConfig{
			RedisAddr:   "invalid:6379",
			SnapshotTTL: 10 * time.Minute,
			MaxAge:      15 * time.Second,
		},
		Staking: StakingConfig{
			RefreshInterval: 30 * time.Second,
			LockPresetsRaw:  "30,90,180,365",
			TokenDecimals:   18,
			TokenSymbol:     "MONI",
			LockPresets:     []uint16{30, 90, 180, 365},
		},
		Security: SecurityConfig{
			RateLimitRPM:       120,
			CORSAllowedOrigins: []string{"*"},
		},
	}
	return cfg
}
