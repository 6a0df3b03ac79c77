package model

// CookieMode selects how a strategy presents session credentials
type CookieMode string

const (
	CookiesNone   CookieMode = "none"
	CookiesHeader CookieMode = "header" // inline Cookie request header
	CookiesJar    CookieMode = "jar"    // materialized cookies.txt file
)

// FetchStrategy is one named request shape used to invoke the extractor.
// Values are copied per request and never mutated once loaded.
type FetchStrategy struct {
	Name                string     `yaml:"name"`
	UserAgent           string     `yaml:"user_agent"`
	Referer             string     `yaml:"referer"`
	Headers             []string   `yaml:"headers"`
	Cookies             CookieMode `yaml:"cookies"`
	Retries             int        `yaml:"retries"`
	FragmentRetries     int        `yaml:"fragment_retries"`
	SleepInterval       float64    `yaml:"sleep_interval"`
	MaxSleepInterval    float64    `yaml:"max_sleep_interval"`
	ExtractorArgs       string     `yaml:"extractor_args"`
	NoCheckCertificates bool       `yaml:"no_check_certificates"`
	NoWarnings          bool       `yaml:"no_warnings"`

	// Media is merged in per download request
	Media *MediaOptions `yaml:"-"`
}

// MediaOptions carries format selection shared by every strategy of a request
type MediaOptions struct {
	Format            string
	ExtractAudio      bool
	AudioFormat       string
	MergeOutputFormat string
}

// MediaOptionsFor computes the format parameters for a kind
func MediaOptionsFor(kind MediaKind) MediaOptions {
	if kind == KindAudio {
		return MediaOptions{
			Format:       "bestaudio/best",
			ExtractAudio: true,
			AudioFormat:  "mp3",
		}
	}
	return MediaOptions{
		Format:            "bestvideo[ext=mp4]+bestaudio[ext=m4a]/mp4",
		MergeOutputFormat: "mp4",
	}
}
