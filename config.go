package spacetraveling

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gustavonogales/spacetraveling/prismic"
)

// SiteConfig holds all configuration for a spacetraveling site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "spacetraveling")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Publisher name for JSON-LD

	Addr     string `yaml:"addr"`     // Listen address (default ":3000")
	Locale   string `yaml:"locale"`   // BCP 47 tag for dates and labels (default "pt-BR")
	Timezone string `yaml:"timezone"` // IANA zone dates are shown in (default "UTC")

	PrismicEndpoint    string `yaml:"prismic_endpoint"`     // Required: content API root, e.g. https://repo.cdn.prismic.io/api/v2
	PrismicAccessToken string `yaml:"prismic_access_token"` // Optional repository access token

	PageSize          int      `yaml:"page_size"`           // Posts per listing page (default 2)
	Revalidate        Duration `yaml:"revalidate"`          // How long fetched content is reused (default 5s)
	RequestTimeout    Duration `yaml:"request_timeout"`     // Timeout of one content API call (default 10s)
	RequestsPerSecond float64  `yaml:"requests_per_second"` // Outbound throttle, 0 disables
	CacheSize         int      `yaml:"cache_size"`          // Entries per in-memory cache (default 1024)

	SnapshotPath string `yaml:"snapshot_path"` // SQLite path of the fallback snapshot (default "data/snapshot.db")

	SessionSecret string `yaml:"session_secret"` // Required: preview cookie signing secret
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS

	AutoTLSHost     string `yaml:"autotls_host"`      // When set, serve HTTPS on :443 with Let's Encrypt for this host
	AutoTLSCacheDir string `yaml:"autotls_cache_dir"` // Certificate cache (default "data/certs")
}

// Duration is a time.Duration that reads from YAML strings such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "spacetraveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Locale == "" {
		c.Locale = "pt-BR"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.PageSize <= 0 {
		c.PageSize = 2
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.Revalidate.Duration == 0 {
		c.Revalidate.Duration = 5 * time.Second
	}
	if c.RequestTimeout.Duration == 0 {
		c.RequestTimeout.Duration = 10 * time.Second
	}
	if c.SnapshotPath == "" {
		c.SnapshotPath = "data/snapshot.db"
	}
	if c.AutoTLSCacheDir == "" {
		c.AutoTLSCacheDir = "data/certs"
	}
}

func (c SiteConfig) validate() error {
	if c.PrismicEndpoint == "" {
		return errors.New("spacetraveling: PrismicEndpoint is required")
	}
	if c.SessionSecret == "" {
		return errors.New("spacetraveling: SessionSecret is required")
	}
	return nil
}

func (c SiteConfig) location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig reads the YAML file at path, when path is not empty, and then
// applies environment overrides. A missing file is an error.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("spacetraveling: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("spacetraveling: parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *SiteConfig) applyEnv() error {
	strs := map[string]*string{
		"SITE_NAME":            &c.Name,
		"SITE_URL":             &c.URL,
		"SITE_DESCRIPTION":     &c.Description,
		"SITE_AUTHOR":          &c.Author,
		"ADDR":                 &c.Addr,
		"SITE_LOCALE":          &c.Locale,
		"SITE_TIMEZONE":        &c.Timezone,
		"PRISMIC_API_ENDPOINT": &c.PrismicEndpoint,
		"PRISMIC_ACCESS_TOKEN": &c.PrismicAccessToken,
		"SNAPSHOT_PATH":        &c.SnapshotPath,
		"SESSION_SECRET":       &c.SessionSecret,
		"AUTOTLS_HOST":         &c.AutoTLSHost,
		"AUTOTLS_CACHE_DIR":    &c.AutoTLSCacheDir,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("spacetraveling: PAGE_SIZE: %w", err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("spacetraveling: CACHE_SIZE: %w", err)
		}
		c.CacheSize = n
	}
	durations := map[string]*Duration{
		"REVALIDATE":      &c.Revalidate,
		"REQUEST_TIMEOUT": &c.RequestTimeout,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("spacetraveling: %s: %w", key, err)
			}
			dst.Duration = d
		}
	}
	if v := os.Getenv("REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("spacetraveling: REQUESTS_PER_SECOND: %w", err)
		}
		c.RequestsPerSecond = f
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("spacetraveling: COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = b
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for site-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithClientOptions passes extra options to the content API client.
func WithClientOptions(opts ...prismic.Option) Option {
	return func(a *App) {
		a.clientOpts = append(a.clientOpts, opts...)
	}
}
