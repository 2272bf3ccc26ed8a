package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"budgetcal/internal/config"
)

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("BUDGETCAL_TEST_A=from-file\nBUDGETCAL_TEST_B=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BUDGETCAL_TEST_A", "from-env")
	t.Setenv("BUDGETCAL_TEST_B", "")
	os.Unsetenv("BUDGETCAL_TEST_B")

	LoadEnvFile(path)
	if got := os.Getenv("BUDGETCAL_TEST_A"); got != "from-env" {
		t.Errorf("A = %q, the process environment wins", got)
	}
	if got := os.Getenv("BUDGETCAL_TEST_B"); got != "from-file" {
		t.Errorf("B = %q", got)
	}

	LoadEnvFile(filepath.Join(dir, "missing.env"))
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info must be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected a JSON line, got %q", out)
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("API_ENDPOINT_URI", "")
	if _, err := LoadAndValidateConfig(); err == nil {
		t.Fatal("expected an error without API_ENDPOINT_URI")
	}

	t.Setenv("API_ENDPOINT_URI", "http://localhost:3000")
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIEndpointURI != "http://localhost:3000" {
		t.Errorf("endpoint = %q", cfg.APIEndpointURI)
	}
}
