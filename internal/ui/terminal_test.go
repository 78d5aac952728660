package ui

import (
	"os"
	"testing"
)

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name          string
		noColor       string
		cliColor      string
		cliColorForce string
		wantColor     bool
		ttyDependent  bool // result depends on TTY state; only assert forced cases
	}{
		{
			name:      "NO_COLOR disables color",
			noColor:   "1",
			wantColor: false,
		},
		{
			name:         "nothing set falls back to TTY check",
			ttyDependent: true,
		},
		{
			name:      "CLICOLOR=0 disables color",
			cliColor:  "0",
			wantColor: false,
		},
		{
			name:          "CLICOLOR_FORCE enables color even in non-TTY",
			cliColorForce: "1",
			wantColor:     true,
		},
		{
			name:          "NO_COLOR takes precedence over CLICOLOR_FORCE",
			noColor:       "1",
			cliColorForce: "1",
			wantColor:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE", "WEFT_AGENT"} {
				t.Setenv(key, "")
				os.Unsetenv(key)
			}
			if tt.noColor != "" {
				t.Setenv("NO_COLOR", tt.noColor)
			}
			if tt.cliColor != "" {
				t.Setenv("CLICOLOR", tt.cliColor)
			}
			if tt.cliColorForce != "" {
				t.Setenv("CLICOLOR_FORCE", tt.cliColorForce)
			}

			got := ShouldUseColor()
			if !tt.ttyDependent && got != tt.wantColor {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.wantColor)
			}
		})
	}
}

func TestAgentModeDisablesColor(t *testing.T) {
	for _, key := range []string{"NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("WEFT_AGENT", "1")
	if ShouldUseColor() {
		t.Error("agent mode should disable color")
	}
	if !IsAgentMode() {
		t.Error("IsAgentMode() = false with WEFT_AGENT set")
	}
}

func TestShouldUseEmoji(t *testing.T) {
	t.Setenv("WEFT_NO_EMOJI", "1")
	if ShouldUseEmoji() {
		t.Error("WEFT_NO_EMOJI should disable emoji")
	}

	t.Setenv("WEFT_NO_EMOJI", "")
	os.Unsetenv("WEFT_NO_EMOJI")
	// Under go test stdout is not a TTY, so the fallback is false.
	if ShouldUseEmoji() {
		t.Error("non-TTY without override should disable emoji")
	}
}

func TestIsTerminal(t *testing.T) {
	// Under go test stdout is typically not a TTY; just verify no panic.
	t.Logf("IsTerminal() = %v", IsTerminal())
}
