package model

import "time"

// Config is the complete lossledger configuration
type Config struct {
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Parser       ParserConfig      `yaml:"parser" mapstructure:"parser"`
	Normalize    NormalizeConfig   `yaml:"normalize" mapstructure:"normalize"`
	Assets       AssetsConfig      `yaml:"assets" mapstructure:"assets"`
	Pages        []PageConfig      `yaml:"pages" mapstructure:"pages"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// HTTPConfig configures page retrieval
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig configures the fetched page cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig configures per-host request pacing
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig configures the page worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// ParserConfig describes the markup layout of the report
type ParserConfig struct {
	BodyClass         string   `yaml:"body_class" mapstructure:"body_class"`
	BodyItemprop      string   `yaml:"body_itemprop" mapstructure:"body_itemprop"`
	BoundaryCountries []string `yaml:"boundary_countries" mapstructure:"boundary_countries"`
}

// NormalizeConfig holds the lookup tables used during normalization
type NormalizeConfig struct {
	SupersededCategories []string            `yaml:"superseded_categories" mapstructure:"superseded_categories"`
	StatusKeywords       map[string][]string `yaml:"status_keywords" mapstructure:"status_keywords"`
	HostSources          []HostSource        `yaml:"host_sources" mapstructure:"host_sources"`
}

// HostSource assigns an evidence source to a URL host. Kept as a list
// because hosts contain dots, which viper treats as key separators.
type HostSource struct {
	Host   string `yaml:"host" mapstructure:"host"`
	Source string `yaml:"source" mapstructure:"source"`
}

// AssetsConfig points at the external lookup assets. Empty paths select the
// tables built into the binary.
type AssetsConfig struct {
	FlagMapPath     string `yaml:"flag_map_path" mapstructure:"flag_map_path"`
	CorrectionsPath string `yaml:"corrections_path" mapstructure:"corrections_path"`
}

// PageConfig describes one report page to retrieve and parse
type PageConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	Country      string `yaml:"country,omitempty" mapstructure:"country"`             // Empty for combined pages
	SectionIndex int    `yaml:"section_index,omitempty" mapstructure:"section_index"` // Ignored for combined pages
}

// Combined reports whether the page holds several countries
func (p PageConfig) Combined() bool {
	return p.Country == ""
}

// OutputConfig configures dataset output
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // json or csv
	Path   string `yaml:"path" mapstructure:"path"`
	Report string `yaml:"report" mapstructure:"report"` // Warning report path, empty to skip
}

// Section indexes of the data block on the single-country pages
const (
	RussiaSectionIndex  = 7
	UkraineSectionIndex = 1
)

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Timeout:       2 * time.Minute,
			UserAgent:     "lossledger/0.1 (+https://github.com/ppiankov/lossledger)",
			MaxBodyBytes:  50_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".lossledger-cache",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   6 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Parser: ParserConfig{
			BodyClass:         "post-body entry-content",
			BodyItemprop:      "articleBody",
			BoundaryCountries: []string{"Russia", "Ukraine"},
		},
		Normalize: NormalizeConfig{
			SupersededCategories: []string{"Aircraft", "Naval Ships"},
			StatusKeywords: map[string][]string{
				string(StatusAbandoned): {"abandoned", "abanonded"},
				string(StatusCaptured):  {"captured"},
				string(StatusDamaged):   {"damaged", "damagd"},
				string(StatusDestroyed): {"destroyed"},
				string(StatusScuttled):  {"scuttled"},
				string(StatusStripped):  {"stripped"},
				string(StatusSunk):      {"sunk"},
				string(StatusRaised):    {"raised"},
			},
			HostSources: []HostSource{
				{Host: "i.postimg.cc", Source: string(SourcePostImg)},
				{Host: "postimg.cc", Source: string(SourcePostImg)},
				{Host: "postlmg.cc", Source: string(SourcePostImg)},
				{Host: "twitter.com", Source: string(SourceTwitter)},
				{Host: "pic.twitter.com", Source: string(SourceTwitter)},
				{Host: "starkon.city", Source: string(SourceOther)},
				{Host: "aviation-safety.net", Source: string(SourceOther)},
				{Host: "en.wikipedia.org", Source: string(SourceOther)},
			},
		},
		Assets: AssetsConfig{},
		Pages: []PageConfig{
			{
				URL:          "https://www.oryxspioenkop.com/2022/02/attack-on-europe-documenting-equipment.html",
				Country:      "Russia",
				SectionIndex: RussiaSectionIndex,
			},
			{
				URL:          "https://www.oryxspioenkop.com/2022/02/attack-on-europe-documenting-ukrainian.html",
				Country:      "Ukraine",
				SectionIndex: UkraineSectionIndex,
			},
			{URL: "https://www.oryxspioenkop.com/2022/03/list-of-naval-losses-during-2022.html"},
			{URL: "https://www.oryxspioenkop.com/2022/03/list-of-aircraft-losses-during-2022.html"},
		},
		Output: OutputConfig{
			Format: "json",
			Path:   "losses.json",
			Report: "",
		},
	}
}
