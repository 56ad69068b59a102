package config

// Config 是 trade-view 的主配置载体。
type Config struct {
	App    AppConfig    `toml:"app"`
	Store  StoreConfig  `toml:"store"`
	Ledger LedgerConfig `toml:"ledger"`
	Quote  QuoteConfig  `toml:"quote"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// StoreConfig 指定 sqlite 数据文件位置。
type StoreConfig struct {
	Path string `toml:"path"`
}

// LedgerConfig 控制账本重算的默认锚点与手续费档案。
type LedgerConfig struct {
	// DefaultUserID is the journal owner; auth lives outside this service.
	DefaultUserID int64 `toml:"default_user_id"`
	// DefaultInitialCapital seeds a strategy anchor when the user never set one.
	DefaultInitialCapital float64 `toml:"default_initial_capital"`
	// FeeSchedulePath points at the optional YAML fee schedule; empty keeps the
	// built-in defaults.
	FeeSchedulePath string `toml:"fee_schedule_path"`
}

type QuoteConfig struct {
	BaseURL        string  `toml:"base_url"`
	TimeoutSeconds float64 `toml:"timeout_seconds"`
	CacheTTLSecs   float64 `toml:"cache_ttl_seconds"`
}
