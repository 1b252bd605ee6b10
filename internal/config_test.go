package internal

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	pkgconfig "github.com/starford/tasklint/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestFullConfig_RulesValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Rules.ActiveStates = []string{"todo"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("lowercase state keyword should fail validation")
	}
	if !strings.HasPrefix(err.Error(), "rules:") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadTOMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
log_level = "DEBUG"

[app.http]
port = 9090

[vault]
path = "${TASKLINT_TEST_VAULT}"

[rules]
active_states = ["TODO", "NEXT", "WAITING", "PROJECT", "RECURRING"]
check_next = false

[fix]
preview = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKLINT_TEST_VAULT", "/srv/tasks")

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Vault.Path != "/srv/tasks" || !slices.Equal(cfg.Vault.Extensions, []string{".org"}) {
		t.Errorf("vault = %+v", cfg.Vault)
	}
	if cfg.Rules.CheckNext || !cfg.Rules.CheckProjects || len(cfg.Rules.ActiveStates) != 5 {
		t.Errorf("rules = %+v", cfg.Rules)
	}
	if cfg.Fix.Preview {
		t.Error("fix.preview should be overridden")
	}
	if cfg.SQLite.Path != "./tasklint.db" {
		t.Errorf("sqlite path = %q", cfg.SQLite.Path)
	}
}

func TestLoadYAMLInvalidPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  http:\n    port: 70000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := pkgconfig.Load(path, NewDefaultConfig()); err == nil {
		t.Fatal("expected validation error for port")
	}
}
