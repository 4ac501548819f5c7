package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	"github.com/ResistanceIsUseless/proxyjudge/internal/errors"
	"github.com/ResistanceIsUseless/proxyjudge/internal/sanitizer"
)

// ProxyResultOutput represents a working proxy for output formatting
type ProxyResultOutput struct {
	Proxy     string `json:"proxy"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Protocol  string `json:"protocol"`
	Anonymity string `json:"anonymity"`
	LatencyMs int    `json:"latency_ms"`
	Country   string `json:"country,omitempty"`
}

// LatencyBands buckets working proxies by latency relative to the timeout
type LatencyBands struct {
	Fast     int `json:"fast"`
	Good     int `json:"good"`
	Slow     int `json:"slow"`
	VerySlow int `json:"very_slow"`
}

// SummaryOutput represents summary statistics for output
type SummaryOutput struct {
	RunID            string              `json:"run_id,omitempty"`
	GeneratedAt      time.Time           `json:"generated_at"`
	TotalProxies     int                 `json:"total_proxies"`
	WorkingProxies   int                 `json:"working_proxies"`
	HTTPProxies      int                 `json:"http_proxies"`
	SOCKSProxies     int                 `json:"socks_proxies"`
	Transparent      int                 `json:"transparent"`
	High             int                 `json:"high"`
	Elite            int                 `json:"elite"`
	AnonymousProxies int                 `json:"anonymous_proxies"`
	SuccessRate      float64             `json:"success_rate"`
	MedianLatencyMs  float64             `json:"median_latency_ms"`
	P90LatencyMs     float64             `json:"p90_latency_ms"`
	Bands            LatencyBands        `json:"latency_bands"`
	Filter           Filter              `json:"filter"`
	Results          []ProxyResultOutput `json:"results"`
}

// ConvertToOutputFormat converts alive candidates to output format
func ConvertToOutputFormat(cands []*candidate.Candidate) []ProxyResultOutput {
	clean := sanitizer.DefaultSanitizer()
	output := make([]ProxyResultOutput, 0, len(cands))
	for _, c := range cands {
		output = append(output, ProxyResultOutput{
			Proxy:     c.Key(),
			Host:      c.Host,
			Port:      c.Port,
			Protocol:  string(c.Protocol),
			Anonymity: string(c.Anonymity),
			LatencyMs: c.Latency,
			Country:   clean.SanitizeString(c.Country),
		})
	}
	return output
}

// Band places a latency into its band for the given probe timeout
func Band(latencyMs int, timeout time.Duration) string {
	quarter := timeout.Milliseconds() / 4
	switch ms := int64(latencyMs); {
	case ms < quarter:
		return "fast"
	case ms < 2*quarter:
		return "good"
	case ms < 3*quarter:
		return "slow"
	default:
		return "very slow"
	}
}

// GenerateSummary builds the report for a run. scanned holds every candidate
// that was probed; only alive ones matching filter appear in Results.
func GenerateSummary(runID string, scanned []*candidate.Candidate, timeout time.Duration, filter Filter) SummaryOutput {
	summary := SummaryOutput{
		RunID:        runID,
		GeneratedAt:  time.Now(),
		TotalProxies: len(scanned),
		Filter:       filter,
	}

	var latencies stats.Float64Data
	for _, c := range scanned {
		if !c.Alive {
			continue
		}
		summary.WorkingProxies++
		if c.Protocol.IsSOCKS() {
			summary.SOCKSProxies++
		} else {
			summary.HTTPProxies++
		}

		switch c.Anonymity {
		case candidate.AnonymityTransparent:
			summary.Transparent++
		case candidate.AnonymityHigh:
			summary.High++
		case candidate.AnonymityElite:
			summary.Elite++
		}
		if c.Anonymity.IsAnonymous() {
			summary.AnonymousProxies++
		}

		if c.Latency >= 0 {
			latencies = append(latencies, float64(c.Latency))
			switch Band(c.Latency, timeout) {
			case "fast":
				summary.Bands.Fast++
			case "good":
				summary.Bands.Good++
			case "slow":
				summary.Bands.Slow++
			default:
				summary.Bands.VerySlow++
			}
		}
	}

	if summary.TotalProxies > 0 {
		summary.SuccessRate = float64(summary.WorkingProxies) / float64(summary.TotalProxies) * 100
	}
	if len(latencies) > 0 {
		summary.MedianLatencyMs, _ = stats.Median(latencies)
		summary.P90LatencyMs, _ = stats.Percentile(latencies, 90)
	}

	summary.Results = ConvertToOutputFormat(filter.Select(scanned))
	return summary
}

// FoundMessage is the one-line result shown when a scan ends
func FoundMessage(summary SummaryOutput) string {
	return fmt.Sprintf("Found %d working proxies (HTTP: %d, SOCKS: %d)",
		summary.WorkingProxies, summary.HTTPProxies, summary.SOCKSProxies)
}

func create(filename string) (*os.File, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, errors.NewFileError(errors.ErrorFileWriteFailed, "failed to create output file", filename, err)
	}
	return file, nil
}

// WriteTextReport writes a human readable report
func WriteTextReport(filename string, summary SummaryOutput) error {
	file, err := create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "ProxyJudge Results - %s\n", summary.GeneratedAt.Format(time.RFC3339))
	if summary.RunID != "" {
		fmt.Fprintf(file, "Run: %s\n", summary.RunID)
	}
	fmt.Fprintf(file, "=====================================\n\n")

	for _, result := range summary.Results {
		fmt.Fprintf(file, "%-21s %-7s %-11s %5dms", result.Proxy, result.Protocol, result.Anonymity, result.LatencyMs)
		if result.Country != "" {
			fmt.Fprintf(file, " [%s]", result.Country)
		}
		fmt.Fprintf(file, "\n")
	}

	fmt.Fprintf(file, "\n=====================================\n")
	fmt.Fprintf(file, "SUMMARY\n")
	fmt.Fprintf(file, "=====================================\n")
	fmt.Fprintf(file, "Total proxies tested: %d\n", summary.TotalProxies)
	fmt.Fprintf(file, "Working proxies: %d (HTTP: %d, SOCKS: %d)\n", summary.WorkingProxies, summary.HTTPProxies, summary.SOCKSProxies)
	fmt.Fprintf(file, "Anonymity: elite %d, high %d, transparent %d\n", summary.Elite, summary.High, summary.Transparent)
	fmt.Fprintf(file, "Success rate: %.2f%%\n", summary.SuccessRate)
	if summary.WorkingProxies > 0 {
		fmt.Fprintf(file, "Latency: median %.0fms, p90 %.0fms\n", summary.MedianLatencyMs, summary.P90LatencyMs)
		fmt.Fprintf(file, "Bands: fast %d, good %d, slow %d, very slow %d\n",
			summary.Bands.Fast, summary.Bands.Good, summary.Bands.Slow, summary.Bands.VerySlow)
	}
	if desc := summary.Filter.String(); desc != "" {
		fmt.Fprintf(file, "Filter: %s\n", desc)
	}

	return nil
}

// WriteJSONReport writes the summary as indented JSON
func WriteJSONReport(filename string, summary SummaryOutput) error {
	file, err := create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return errors.NewFileError(errors.ErrorFileWriteFailed, "failed to encode report", filename, err)
	}
	return nil
}

// WriteProxyList writes one host:port per line, ready to be fed back as input
func WriteProxyList(filename string, results []ProxyResultOutput) error {
	file, err := create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	var b strings.Builder
	for _, result := range results {
		b.WriteString(result.Proxy)
		b.WriteByte('\n')
	}
	if _, err := file.WriteString(b.String()); err != nil {
		return errors.NewFileError(errors.ErrorFileWriteFailed, "failed to write proxy list", filename, err)
	}
	return nil
}
