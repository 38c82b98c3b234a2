package spacetraveling

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSetDefaults(t *testing.T) {
	var cfg SiteConfig
	cfg.setDefaults()

	if cfg.Name != "spacetraveling" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Addr != ":3000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Locale != "pt-BR" {
		t.Errorf("Locale = %q", cfg.Locale)
	}
	if cfg.PageSize != 2 {
		t.Errorf("PageSize = %d, want 2", cfg.PageSize)
	}
	if cfg.Revalidate.Duration != 5*time.Second {
		t.Errorf("Revalidate = %v, want 5s", cfg.Revalidate)
	}
	if cfg.RequestTimeout.Duration != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if cfg.CacheSize != DefaultCacheSize {
		t.Errorf("CacheSize = %d, want %d", cfg.CacheSize, DefaultCacheSize)
	}
	if cfg.SnapshotPath != "data/snapshot.db" {
		t.Errorf("SnapshotPath = %q", cfg.SnapshotPath)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, `
name: Space Traveling
url: https://blog.example.com
locale: en-US
prismic_endpoint: https://repo.cdn.prismic.io/api/v2
session_secret: s3cret
page_size: 5
revalidate: 1m
request_timeout: 3s
requests_per_second: 2.5
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "Space Traveling" || cfg.Locale != "en-US" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PageSize != 5 {
		t.Errorf("PageSize = %d, want 5", cfg.PageSize)
	}
	if cfg.Revalidate.Duration != time.Minute {
		t.Errorf("Revalidate = %v, want 1m", cfg.Revalidate)
	}
	if cfg.RequestTimeout.Duration != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
	if cfg.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v, want 2.5", cfg.RequestsPerSecond)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "name: From File\npage_size: 5\n")
	t.Setenv("SITE_NAME", "From Env")
	t.Setenv("PAGE_SIZE", "3")
	t.Setenv("REVALIDATE", "30s")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("PRISMIC_API_ENDPOINT", "https://env.cdn.prismic.io/api/v2")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "From Env" {
		t.Errorf("Name = %q, want From Env", cfg.Name)
	}
	if cfg.PageSize != 3 {
		t.Errorf("PageSize = %d, want 3", cfg.PageSize)
	}
	if cfg.Revalidate.Duration != 30*time.Second {
		t.Errorf("Revalidate = %v, want 30s", cfg.Revalidate)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure = false, want true")
	}
	if cfg.PrismicEndpoint != "https://env.cdn.prismic.io/api/v2" {
		t.Errorf("PrismicEndpoint = %q", cfg.PrismicEndpoint)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{"bad duration", "revalidate: soon\n", nil},
		{"bad yaml", "name: [\n", nil},
		{"bad page size env", "", map[string]string{"PAGE_SIZE": "two"}},
		{"bad timeout env", "", map[string]string{"REQUEST_TIMEOUT": "10"}},
		{"bad cookie env", "", map[string]string{"COOKIE_SECURE": "maybe"}},
		{"bad cache size env", "", map[string]string{"CACHE_SIZE": "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(writeConfig(t, tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := SiteConfig{Timezone: "Not/AZone"}
	if loc := cfg.location(); loc != time.UTC {
		t.Errorf("location() = %v, want UTC", loc)
	}
}
