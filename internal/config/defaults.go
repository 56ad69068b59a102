package config

const (
	defaultHTTPAddr       = ":9920"
	defaultStorePath      = "data/journal.db"
	defaultUserID         = 1
	defaultInitialCapital = 100000.0
	defaultQuoteBaseURL   = "https://open.er-api.com/v6/latest"
	defaultQuoteTimeout   = 3.0
	defaultQuoteCacheTTL  = 2.0
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultHTTPAddr
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
	if c.Ledger.DefaultUserID <= 0 {
		c.Ledger.DefaultUserID = defaultUserID
	}
	if c.Ledger.DefaultInitialCapital <= 0 {
		c.Ledger.DefaultInitialCapital = defaultInitialCapital
	}
	if c.Quote.BaseURL == "" {
		c.Quote.BaseURL = defaultQuoteBaseURL
	}
	if c.Quote.TimeoutSeconds <= 0 {
		c.Quote.TimeoutSeconds = defaultQuoteTimeout
	}
	if c.Quote.CacheTTLSecs <= 0 {
		c.Quote.CacheTTLSecs = defaultQuoteCacheTTL
	}
}
