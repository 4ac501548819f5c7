package help

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestGetBanner(t *testing.T) {
	tests := []struct {
		name      string
		noColor   bool
		wantColor bool
	}{
		{"color", false, true},
		{"no color", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			banner := GetBanner(tt.noColor)
			if !strings.Contains(banner, AppName) || !strings.Contains(banner, Version) {
				t.Errorf("Banner should contain name and version, got %q", banner)
			}
			if strings.Contains(banner, "\033[") != tt.wantColor {
				t.Errorf("Expected ANSI codes=%v in %q", tt.wantColor, banner)
			}
		})
	}
}

func TestGetQuickStart(t *testing.T) {
	quickStart := GetQuickStart(true)
	if !strings.Contains(quickStart, "QUICK START") {
		t.Errorf("Quick start should contain title")
	}
	if !strings.Contains(quickStart, "proxyjudge -l proxy-list.txt") {
		t.Errorf("Quick start should contain command examples")
	}
	if strings.Contains(quickStart, "\033[") {
		t.Errorf("No-color quick start should not contain ANSI escape codes")
	}
}

func TestGetFullHelp(t *testing.T) {
	text := GetFullHelp(true)

	for _, flag := range []string{
		"-l string", "-config string", "-c int", "-t int", "-judge string",
		"-http", "-socks", "-o string", "-j string", "-wp string", "-type string",
		"-elite", "-no-ui", "-progress string", "-metrics", "-hot-reload", "-version",
	} {
		if !strings.Contains(text, flag) {
			t.Errorf("Help should document %s", flag)
		}
	}
	for _, section := range []string{"TARGET:", "SCAN:", "OUTPUT:", "MONITORING:", "CONTROLS:"} {
		if !strings.Contains(text, section) {
			t.Errorf("Help should contain section %s", section)
		}
	}
}

func TestGetExamples(t *testing.T) {
	for i, ex := range GetExamples() {
		if ex.Description == "" || !strings.HasPrefix(ex.Command, "proxyjudge ") {
			t.Errorf("Example %d is incomplete: %+v", i, ex)
		}
	}
}

func TestPrintHelp(t *testing.T) {
	var buf bytes.Buffer
	PrintHelp(&buf, true)

	output := buf.String()
	if !strings.Contains(output, "Usage:") || !strings.Contains(output, "Examples:") {
		t.Errorf("Help output incomplete: %q", output)
	}
}

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	PrintVersion(&buf, true)

	if buf.String() != AppName+" version "+Version+"\n" {
		t.Errorf("Unexpected version output %q", buf.String())
	}
}

func TestPrintUsageError(t *testing.T) {
	var buf bytes.Buffer
	PrintUsageError(&buf, errors.New("no proxy list given"), true)

	output := buf.String()
	if !strings.Contains(output, "Error: no proxy list given") {
		t.Errorf("Expected error text, got %q", output)
	}
	if !strings.Contains(output, "proxyjudge -help") {
		t.Errorf("Expected help hint, got %q", output)
	}
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("PROXYJUDGE_NO_COLOR", "1")
	if !DetectNoColor() {
		t.Error("Should detect no color when PROXYJUDGE_NO_COLOR=1")
	}

	t.Setenv("PROXYJUDGE_NO_COLOR", "")
	t.Setenv("NO_COLOR", "1")
	if !DetectNoColor() {
		t.Error("Should detect no color when NO_COLOR is set")
	}
}

func BenchmarkGetFullHelp(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GetFullHelp(true)
	}
}
