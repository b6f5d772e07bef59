package audit

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("QDRANT_API_KEY", "super-secret-value")
	t.Setenv("DOCUCHAT_API_KEY", "another-secret")
	t.Setenv("MODEL_PROVIDER", "ollama")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	LogCommandStart(log, "serve", "")

	out := buf.String()
	if strings.Contains(out, "super-secret-value") || strings.Contains(out, "another-secret") {
		t.Fatalf("secret value leaked into audit log: %s", out)
	}
	if !strings.Contains(out, `"QDRANT_API_KEY":"set"`) {
		t.Errorf("secret presence not recorded: %s", out)
	}
	if !strings.Contains(out, `"MODEL_PROVIDER":"ollama"`) {
		t.Errorf("non-secret value not recorded: %s", out)
	}
	if !strings.Contains(out, `"command":"serve"`) {
		t.Errorf("command name not recorded: %s", out)
	}
}

func TestLogCommandStart_UnsetKeys(t *testing.T) {
	t.Setenv("MODEL_API_KEY", "")
	t.Setenv("MODEL_NAME", "")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	LogCommandStart(log, "ask", "")

	out := buf.String()
	if !strings.Contains(out, `"MODEL_API_KEY":"unset"`) {
		t.Errorf("unset secret not recorded as unset: %s", out)
	}
	if !strings.Contains(out, `"MODEL_NAME":"unset"`) {
		t.Errorf("unset non-secret not recorded as unset: %s", out)
	}
}

func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"OPENAI_API_KEY", "sk-abc123", "set"},
		{"OPENAI_API_KEY", "", "unset"},
		{"QDRANT_HOST", "localhost", "localhost"},
		{"QDRANT_HOST", "", "unset"},
	}
	for _, tt := range tests {
		if got := SanitiseKey(tt.key, tt.value); got != tt.want {
			t.Errorf("SanitiseKey(%q, %q) = %q, want %q", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("empty path = %q, want none", got)
	}

	t.Setenv("HOME", "/home/tester")
	if got := sanitiseConfigPath("/home/tester/.docuchat/config.yaml"); got != "~/.docuchat/config.yaml" {
		t.Errorf("home path = %q, want ~ prefix", got)
	}
	if got := sanitiseConfigPath("/etc/docuchat.yaml"); got != "/etc/docuchat.yaml" {
		t.Errorf("non-home path = %q, want unchanged", got)
	}
}
