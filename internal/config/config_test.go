package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// envOf builds a lookup over a fixed map instead of the process environment.
func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func required() map[string]string {
	return map[string]string{
		"BOOKMARKS_CLIENT_ID":      "cid",
		"BOOKMARKS_REDIRECT_URL":   "http://localhost:8080/login/callback",
		"BOOKMARKS_SESSION_SECRET": "0123456789abcdef",
	}
}

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		file      map[string]string
		key       string
		expected  string
		wantPanic bool
	}{
		{
			name:     "variable set",
			env:      map[string]string{"TEST_VAR": "test_value"},
			key:      "TEST_VAR",
			expected: "test_value",
		},
		{
			name:     "value from file",
			file:     map[string]string{"TEST_VAR": "from_file"},
			key:      "TEST_VAR",
			expected: "from_file",
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			wantPanic: true,
		},
		{
			name:      "empty value counts as missing",
			env:       map[string]string{"TEST_VAR": ""},
			key:       "TEST_VAR",
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := source{lookup: envOf(tt.env), file: tt.file}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := src.requireEnv(tt.key)
			if !tt.wantPanic && result != tt.expected {
				t.Errorf("requireEnv() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := source{lookup: envOf(map[string]string{"TEST_DURATION": tt.value})}
			result := src.mustDuration("TEST_DURATION", tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      bool
		expected bool
	}{
		{name: "true value", value: "true", def: false, expected: true},
		{name: "false value", value: "false", def: true, expected: false},
		{name: "invalid value uses default", value: "invalid", def: true, expected: true},
		{name: "missing variable uses default", value: "", def: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := source{lookup: envOf(map[string]string{"TEST_BOOL": tt.value})}
			result := src.mustBool("TEST_BOOL", tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestGetenvIntAndFloat(t *testing.T) {
	src := source{lookup: envOf(map[string]string{"N": "42", "BAD": "x", "F": "2.5"})}

	if got := src.getenvInt("N", 1); got != 42 {
		t.Errorf("getenvInt() = %v, want 42", got)
	}
	if got := src.getenvInt("BAD", 7); got != 7 {
		t.Errorf("getenvInt() invalid = %v, want default 7", got)
	}
	if got := src.mustFloat("F", 1); got != 2.5 {
		t.Errorf("mustFloat() = %v, want 2.5", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := load(source{lookup: envOf(required())})

	if cfg.MaxPages != 50 {
		t.Errorf("MaxPages = %v, want 50", cfg.MaxPages)
	}
	if cfg.PageSize != 100 {
		t.Errorf("PageSize = %v, want 100", cfg.PageSize)
	}
	if cfg.SessionMaxAge != 30*24*time.Hour {
		t.Errorf("SessionMaxAge = %v, want 720h", cfg.SessionMaxAge)
	}
	if cfg.RedisEnabled() {
		t.Error("Redis should be disabled without an address")
	}
	if len(cfg.AllowedCIDRS) != 2 {
		t.Errorf("AllowedCIDRS = %v, want loopback defaults", cfg.AllowedCIDRS)
	}
	if cfg.PopularAuthors != 10 {
		t.Errorf("PopularAuthors = %v, want 10", cfg.PopularAuthors)
	}
}

func TestLoadPanicsOnShortSecret(t *testing.T) {
	env := required()
	env["BOOKMARKS_SESSION_SECRET"] = "short"

	defer func() {
		if r := recover(); r == nil {
			t.Error("load() should panic on a short session secret")
		}
	}()
	load(source{lookup: envOf(env)})
}

func TestLoadPrecedence(t *testing.T) {
	env := required()
	env["BOOKMARKS_MAX_PAGES"] = "20"

	file := map[string]string{
		"BOOKMARKS_MAX_PAGES":  "30", // loses to env
		"BOOKMARKS_PAGE_SIZE":  "25", // wins over default
		"BOOKMARKS_REDIS_ADDR": "redis:6379",
	}

	cfg := load(source{lookup: envOf(env), file: file})

	if cfg.MaxPages != 20 {
		t.Errorf("MaxPages = %v, want env value 20", cfg.MaxPages)
	}
	if cfg.PageSize != 25 {
		t.Errorf("PageSize = %v, want file value 25", cfg.PageSize)
	}
	if !cfg.RedisEnabled() {
		t.Error("Redis should be enabled from the file")
	}
}

func TestParseFile(t *testing.T) {
	data := []byte(`
client_id: abc
BOOKMARKS_REDIRECT_URL: http://localhost/cb
max-pages: 12
cookie_secure: true
retry_delay: 250ms
allowed_cidrs: [10.0.0.0/8, 127.0.0.1/32]
empty:
`)

	values, err := parseFile(data)
	if err != nil {
		t.Fatalf("parseFile() error = %v", err)
	}

	want := map[string]string{
		"BOOKMARKS_CLIENT_ID":     "abc",
		"BOOKMARKS_REDIRECT_URL":  "http://localhost/cb",
		"BOOKMARKS_MAX_PAGES":     "12",
		"BOOKMARKS_COOKIE_SECURE": "true",
		"BOOKMARKS_RETRY_DELAY":   "250ms",
		"BOOKMARKS_ALLOWED_CIDRS": "10.0.0.0/8,127.0.0.1/32",
	}
	for k, v := range want {
		if values[k] != v {
			t.Errorf("values[%s] = %q, want %q", k, values[k], v)
		}
	}
	if _, ok := values["BOOKMARKS_EMPTY"]; ok {
		t.Error("null values should be skipped")
	}
}

func TestParseFileRejectsNesting(t *testing.T) {
	if _, err := parseFile([]byte("redis:\n  addr: x\n")); err == nil {
		t.Error("parseFile() should reject nested mappings")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	content := "client_id: from-file\nredirect_url: http://localhost/cb\nsession_secret: 0123456789abcdef\nmax_pages: 7\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("BOOKMARKS_CONFIG_FILE", path)
	t.Setenv("BOOKMARKS_CLIENT_ID", "")

	cfg := Load()
	if cfg.ClientID != "from-file" {
		t.Errorf("ClientID = %q, want from-file", cfg.ClientID)
	}
	if cfg.MaxPages != 7 {
		t.Errorf("MaxPages = %v, want 7", cfg.MaxPages)
	}
}

func TestRedacted(t *testing.T) {
	cfg := load(source{lookup: envOf(required())})
	cfg.RedisPassword = "hunter2"

	r := cfg.Redacted()
	if r.SessionSecret == cfg.SessionSecret || r.RedisPassword == "hunter2" {
		t.Error("Redacted() should hide secrets")
	}
	if cfg.SessionSecret != "0123456789abcdef" {
		t.Error("Redacted() should not modify the original")
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(` a, "b" ,, 'c' `)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitAndTrim() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitAndTrim()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
