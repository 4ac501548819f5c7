package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ResistanceIsUseless/proxyjudge/internal/scanner"
)

// ProgressIndicator renders scan progress for runs without the terminal UI
type ProgressIndicator interface {
	Start(total int)
	Update(stats scanner.Stats)
	Finish(message string)
	SetOutput(writer io.Writer)
}

// ProgressType represents different types of progress indicators
type ProgressType string

const (
	ProgressTypeNone    ProgressType = "none"    // No progress indication
	ProgressTypeBasic   ProgressType = "basic"   // A status line every tenth of the run
	ProgressTypeBar     ProgressType = "bar"     // Progress bar
	ProgressTypePercent ProgressType = "percent" // Percentage only
)

// Config holds configuration for progress indicators
type Config struct {
	Type       ProgressType
	Width      int           // Width of progress bar
	UpdateRate time.Duration // How often Follow samples the scanner
	ShowETA    bool
	NoColor    bool
	Output     io.Writer // Output destination (default: os.Stderr)
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Type:       ProgressTypeBar,
		Width:      40,
		UpdateRate: 250 * time.Millisecond,
		ShowETA:    true,
		Output:     os.Stderr,
	}
}

// ParseType maps a flag value to a progress type
func ParseType(name string) (ProgressType, bool) {
	switch t := ProgressType(strings.ToLower(name)); t {
	case ProgressTypeNone, ProgressTypeBasic, ProgressTypeBar, ProgressTypePercent:
		return t, true
	}
	return ProgressTypeBasic, false
}

// NewProgressIndicator creates a progress indicator based on the configuration
func NewProgressIndicator(config Config) ProgressIndicator {
	if config.Output == nil {
		config.Output = os.Stderr
	}
	if config.Width <= 0 {
		config.Width = DefaultConfig().Width
	}

	switch config.Type {
	case ProgressTypeNone:
		return &NoneIndicator{}
	case ProgressTypeBar:
		return &BarIndicator{config: config}
	case ProgressTypePercent:
		return &PercentIndicator{config: config, lastPercent: -1}
	default:
		return &BasicIndicator{config: config}
	}
}

// StatusLine is the counter summary shared by every indicator
func StatusLine(stats scanner.Stats) string {
	return fmt.Sprintf("Alive = %d | Anonymous = %d", stats.Alive, stats.Anonymous)
}

func suffix(config Config, stats scanner.Stats) string {
	var b strings.Builder
	if stats.Paused {
		b.WriteString(" | PAUSED")
	}
	if config.ShowETA && stats.ETA > 0 && !stats.Paused {
		fmt.Fprintf(&b, " | ETA: %v", stats.ETA.Round(time.Second))
	}
	return b.String()
}

// Follow feeds indicator from source until the run ends or ctx is canceled
func Follow(ctx context.Context, indicator ProgressIndicator, source interface {
	Stats() scanner.Stats
	Done() <-chan struct{}
}, interval time.Duration) scanner.Stats {
	if interval <= 0 {
		interval = DefaultConfig().UpdateRate
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return source.Stats()
		case <-source.Done():
			stats := source.Stats()
			indicator.Update(stats)
			return stats
		case <-ticker.C:
			indicator.Update(source.Stats())
		}
	}
}

// NoneIndicator provides no progress indication
type NoneIndicator struct{}

func (n *NoneIndicator) Start(total int) {}
func (n *NoneIndicator) Update(stats scanner.Stats) {}
func (n *NoneIndicator) Finish(message string) {}
func (n *NoneIndicator) SetOutput(writer io.Writer) {}

// BasicIndicator prints a full line each time another tenth of the list is done
type BasicIndicator struct {
	config   Config
	mutex    sync.Mutex
	total    int
	lastStep int64
	paused   bool
}

func (b *BasicIndicator) Start(total int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.total = total
	b.lastStep = -1
	fmt.Fprintf(b.config.Output, "Checking %d proxies\n", total)
}

func (b *BasicIndicator) Update(stats scanner.Stats) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	step := int64(stats.Progress() * 10)
	if step == b.lastStep && stats.Paused == b.paused {
		return
	}
	b.lastStep = step
	b.paused = stats.Paused

	fmt.Fprintf(b.config.Output, "Progress: %d/%d (%.1f%%) | %s%s\n",
		stats.Scanned, stats.Total, stats.Progress()*100, StatusLine(stats), suffix(b.config, stats))
}

func (b *BasicIndicator) Finish(message string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if message != "" {
		fmt.Fprintf(b.config.Output, "%s\n", message)
	}
}

func (b *BasicIndicator) SetOutput(writer io.Writer) {
	b.config.Output = writer
}

// BarIndicator redraws a progress bar in place
type BarIndicator struct {
	config Config
	mutex  sync.Mutex
	total  int
}

func (b *BarIndicator) Start(total int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.total = total
	fmt.Fprintf(b.config.Output, "ProxyJudge: checking %d proxies\n", total)
}

func (b *BarIndicator) Update(stats scanner.Stats) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	filled := int(stats.Progress() * float64(b.config.Width))
	done, rest := strings.Repeat("█", filled), strings.Repeat("░", b.config.Width-filled)
	bar := done + rest
	if !b.config.NoColor {
		bar = fmt.Sprintf("\033[32m%s\033[37m%s\033[0m", done, rest)
	}

	fmt.Fprintf(b.config.Output, "\r[%s] %d/%d (%.1f%%) | %s%s",
		bar, stats.Scanned, stats.Total, stats.Progress()*100, StatusLine(stats), suffix(b.config, stats))
}

func (b *BarIndicator) Finish(message string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	fmt.Fprintf(b.config.Output, "\n")
	if message != "" {
		fmt.Fprintf(b.config.Output, "%s\n", message)
	}
}

func (b *BarIndicator) SetOutput(writer io.Writer) {
	b.config.Output = writer
}

// PercentIndicator shows only percentage progress
type PercentIndicator struct {
	config      Config
	mutex       sync.Mutex
	total       int
	lastPercent int
}

func (p *PercentIndicator) Start(total int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.total = total
	p.lastPercent = -1
	fmt.Fprintf(p.config.Output, "Checking %d proxies: 0%%", total)
}

func (p *PercentIndicator) Update(stats scanner.Stats) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Only redraw when the percentage changes
	percent := int(stats.Progress() * 100)
	if percent == p.lastPercent {
		return
	}
	p.lastPercent = percent
	fmt.Fprintf(p.config.Output, "\rChecking %d proxies: %d%% | %s", stats.Total, percent, StatusLine(stats))
}

func (p *PercentIndicator) Finish(message string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	fmt.Fprintf(p.config.Output, "\n")
	if message != "" {
		fmt.Fprintf(p.config.Output, "%s\n", message)
	}
}

func (p *PercentIndicator) SetOutput(writer io.Writer) {
	p.config.Output = writer
}
