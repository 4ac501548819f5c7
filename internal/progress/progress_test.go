package progress

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ResistanceIsUseless/proxyjudge/internal/scanner"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Type != ProgressTypeBar {
		t.Errorf("Expected default type to be ProgressTypeBar, got %s", config.Type)
	}
	if config.UpdateRate != 250*time.Millisecond {
		t.Errorf("Expected default update rate to be 250ms, got %v", config.UpdateRate)
	}
	if !config.ShowETA {
		t.Error("Expected ShowETA to be true by default")
	}
}

func TestNewProgressIndicator(t *testing.T) {
	tests := []struct {
		name         string
		progressType ProgressType
		expectedType string
	}{
		{"None", ProgressTypeNone, "*progress.NoneIndicator"},
		{"Basic", ProgressTypeBasic, "*progress.BasicIndicator"},
		{"Bar", ProgressTypeBar, "*progress.BarIndicator"},
		{"Percent", ProgressTypePercent, "*progress.PercentIndicator"},
		{"Unknown", ProgressType("spinner"), "*progress.BasicIndicator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indicator := NewProgressIndicator(Config{Type: tt.progressType})
			var got string
			switch indicator.(type) {
			case *NoneIndicator:
				got = "*progress.NoneIndicator"
			case *BasicIndicator:
				got = "*progress.BasicIndicator"
			case *BarIndicator:
				got = "*progress.BarIndicator"
			case *PercentIndicator:
				got = "*progress.PercentIndicator"
			}
			if got != tt.expectedType {
				t.Errorf("Expected %s, got %s", tt.expectedType, got)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	if typ, ok := ParseType("BAR"); !ok || typ != ProgressTypeBar {
		t.Errorf("Expected bar, got %s (%v)", typ, ok)
	}
	if _, ok := ParseType("dots"); ok {
		t.Error("Expected dots to be rejected")
	}
}

func TestStatusLine(t *testing.T) {
	line := StatusLine(scanner.Stats{Alive: 7, Anonymous: 3})
	if line != "Alive = 7 | Anonymous = 3" {
		t.Errorf("Unexpected status line %q", line)
	}
}

func TestBasicIndicator(t *testing.T) {
	var buf bytes.Buffer
	indicator := NewProgressIndicator(Config{Type: ProgressTypeBasic, ShowETA: true, Output: &buf})

	indicator.Start(10)
	indicator.Update(scanner.Stats{Total: 10, Scanned: 5, Alive: 2, Anonymous: 1, ETA: 4 * time.Second})
	indicator.Update(scanner.Stats{Total: 10, Scanned: 5, Alive: 2, Anonymous: 1, ETA: 4 * time.Second})
	indicator.Update(scanner.Stats{Total: 10, Scanned: 5, Alive: 2, Anonymous: 1, Paused: true})
	indicator.Finish("Found 2 working proxies (HTTP: 2, SOCKS: 0)")

	output := buf.String()
	if !strings.Contains(output, "Checking 10 proxies") {
		t.Errorf("Expected start line, got %q", output)
	}
	if strings.Count(output, "Progress: 5/10") != 2 {
		t.Errorf("Expected one line for the step and one for the pause, got %q", output)
	}
	if !strings.Contains(output, "Alive = 2 | Anonymous = 1 | ETA: 4s") {
		t.Errorf("Expected status with ETA, got %q", output)
	}
	if !strings.Contains(output, "| PAUSED") {
		t.Errorf("Expected paused marker, got %q", output)
	}
	if !strings.Contains(output, "Found 2 working proxies") {
		t.Errorf("Expected finish message, got %q", output)
	}
}

func TestBarIndicator(t *testing.T) {
	var buf bytes.Buffer
	indicator := NewProgressIndicator(Config{Type: ProgressTypeBar, Width: 10, NoColor: true, Output: &buf})

	indicator.Start(4)
	indicator.Update(scanner.Stats{Total: 4, Scanned: 2, Alive: 1})
	indicator.Finish("")

	output := buf.String()
	if !strings.Contains(output, "[█████░░░░░] 2/4 (50.0%)") {
		t.Errorf("Expected half-filled bar, got %q", output)
	}
	if strings.Contains(output, "\033[") {
		t.Error("Expected no color codes with NoColor")
	}
}

func TestPercentIndicator(t *testing.T) {
	var buf bytes.Buffer
	indicator := NewProgressIndicator(Config{Type: ProgressTypePercent, Output: &buf})

	indicator.Start(4)
	indicator.Update(scanner.Stats{Total: 4, Scanned: 1})
	indicator.Update(scanner.Stats{Total: 4, Scanned: 1})
	indicator.Update(scanner.Stats{Total: 4, Scanned: 4, Alive: 1})
	indicator.Finish("done")

	output := buf.String()
	if strings.Count(output, "25%") != 1 {
		t.Errorf("Expected 25%% once, got %q", output)
	}
	if !strings.Contains(output, "100% | Alive = 1") {
		t.Errorf("Expected final percentage, got %q", output)
	}
}

type fakeSource struct {
	stats scanner.Stats
	done  chan struct{}
}

func (f *fakeSource) Stats() scanner.Stats  { return f.stats }
func (f *fakeSource) Done() <-chan struct{} { return f.done }

func TestFollow(t *testing.T) {
	var buf bytes.Buffer
	indicator := NewProgressIndicator(Config{Type: ProgressTypeBasic, Output: &buf})
	indicator.Start(3)

	source := &fakeSource{stats: scanner.Stats{Total: 3, Scanned: 3, Alive: 3}, done: make(chan struct{})}
	close(source.done)

	final := Follow(context.Background(), indicator, source, 10*time.Millisecond)
	if final.Scanned != 3 {
		t.Errorf("Expected final stats, got %+v", final)
	}
	if !strings.Contains(buf.String(), "Progress: 3/3") {
		t.Errorf("Expected final update, got %q", buf.String())
	}
}

func TestFollowCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{done: make(chan struct{})}
	finished := make(chan struct{})
	go func() {
		Follow(ctx, &NoneIndicator{}, source, time.Hour)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}
