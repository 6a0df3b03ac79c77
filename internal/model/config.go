package model

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Fetch     FetchConfig
	Cookies   CookieConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	Timeout        int      // seconds allowed for streaming a response
	TrustedProxies []string // peers whose X-Forwarded-For is believed; empty trusts none
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	DownloadDir      string
	ScratchDir       string // cookie jars and per-request staging directories
	ServeDeleteDelay int    // seconds between a completed stream and file removal
	CleanupInterval  int    // seconds
	FileTTLSeconds   int    // orphaned files older than this are swept
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string
	FilePath string
}

// RateLimitConfig holds the sliding window admission configuration
type RateLimitConfig struct {
	Enabled         bool
	MaxRequests     int // admissions allowed inside one window
	WindowMS        int // trailing window length in milliseconds
	CleanupInterval int // seconds between sweeps of idle identities
	MaxEntries      int // tracked identities before an eager sweep
}

// FetchConfig holds external tool invocation configuration
type FetchConfig struct {
	Executable        string  // yt-dlp binary, empty means resolve from PATH
	Timeout           int     // seconds per invocation
	StrategyBackoffMS int     // pause between two strategies of one request
	InvocationsPerSec float64 // process-wide pacing, 0 disables
	InvocationBurst   int
	SearchLimit       int
	StrategyFile      string // optional replacement for the embedded catalog
}

// CookieConfig holds session cookie values, one environment variable each.
// Any subset may be empty.
type CookieConfig struct {
	Consent     string `envconfig:"YT_COOKIE_CONSENT"`
	LoginInfo   string `envconfig:"YT_COOKIE_LOGIN_INFO"`
	SID         string `envconfig:"YT_COOKIE_SID"`
	HSID        string `envconfig:"YT_COOKIE_HSID"`
	SSID        string `envconfig:"YT_COOKIE_SSID"`
	APISID      string `envconfig:"YT_COOKIE_APISID"`
	SAPISID     string `envconfig:"YT_COOKIE_SAPISID"`
	Secure1PSID string `envconfig:"YT_COOKIE_SECURE_1PSID"`
	Secure3PSID string `envconfig:"YT_COOKIE_SECURE_3PSID"`
}

// CookieSet returns the configured values under their cookie names.
func (c CookieConfig) CookieSet() CookieSet {
	return CookieSet{
		{Name: "CONSENT", Value: c.Consent},
		{Name: "LOGIN_INFO", Value: c.LoginInfo},
		{Name: "SID", Value: c.SID},
		{Name: "HSID", Value: c.HSID},
		{Name: "SSID", Value: c.SSID},
		{Name: "APISID", Value: c.APISID},
		{Name: "SAPISID", Value: c.SAPISID},
		{Name: "__Secure-1PSID", Value: c.Secure1PSID},
		{Name: "__Secure-3PSID", Value: c.Secure3PSID},
	}
}
