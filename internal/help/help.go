package help

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

const (
	// Version information
	Version = "1.0.0"
	AppName = "ProxyJudge"

	// Colors for terminal output
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Example represents a usage example
type Example struct {
	Description string
	Command     string
	Explanation string
}

// GetBanner returns the application banner
func GetBanner(noColor bool) string {
	if noColor {
		return fmt.Sprintf("\n%s v%s - Proxy Checker and Anonymity Judge\n", AppName, Version)
	}

	return fmt.Sprintf("\n%s%s%s v%s - %sProxy Checker and Anonymity Judge%s\n",
		colorBold+colorBlue, AppName, colorReset, Version, colorBold, colorReset)
}

// GetQuickStart returns quick start guide
func GetQuickStart(noColor bool) string {
	b := &strings.Builder{}

	header := "QUICK START"
	if !noColor {
		header = colorBold + colorGreen + header + colorReset
	}

	fmt.Fprintf(b, "\n%s\n\n", header)
	fmt.Fprintf(b, "1. Create a proxy list file (one host:port per line):\n")
	fmt.Fprintf(b, "   1.2.3.4:8080\n")
	fmt.Fprintf(b, "   5.6.7.8:1080\n\n")

	fmt.Fprintf(b, "2. Run ProxyJudge:\n")
	fmt.Fprintf(b, "   %s\n\n", command("proxyjudge -l proxy-list.txt", noColor))

	fmt.Fprintf(b, "3. Save working proxies:\n")
	fmt.Fprintf(b, "   %s\n", command("proxyjudge -l proxy-list.txt -wp working.txt -j results.json", noColor))

	return b.String()
}

func command(cmd string, noColor bool) string {
	if noColor {
		return cmd
	}
	return colorCyan + cmd + colorReset
}

// GetFullHelp returns the complete help text
func GetFullHelp(noColor bool) string {
	b := &strings.Builder{}

	fmt.Fprint(b, GetBanner(noColor))

	fmt.Fprintf(b, "Usage:\n")
	fmt.Fprintf(b, "  proxyjudge -l PROXY_LIST [flags]\n\n")

	fmt.Fprintf(b, "Flags:\n")

	section(b, "TARGET:", noColor, [][2]string{
		{"-l string", "proxy list file to check (one proxy per line)"},
		{"-config string", "configuration file path (default: user config, then built-in defaults)"},
		{"-init-config", "write the default configuration to the user config path and exit"},
	})

	section(b, "SCAN:", noColor, [][2]string{
		{"-c int", "number of concurrent workers (default 50)"},
		{"-t int", "timeout per protocol attempt in milliseconds (default 20000)"},
		{"-judge string", "judge URL that echoes request headers"},
		{"-http", "probe HTTP (default true, -http=false to skip)"},
		{"-socks", "probe SOCKS4, SOCKS4a and SOCKS5 (default true, -socks=false to skip)"},
	})

	section(b, "OUTPUT:", noColor, [][2]string{
		{"-o string", "file to save the text report"},
		{"-j string", "file to save the JSON report"},
		{"-wp string", "file to save working proxies, one per line"},
		{"-type string", "export only http, socks, socks4, socks5 or all"},
		{"-elite, -high, -transparent", "export only the selected anonymity levels"},
		{"-v", "enable verbose output"},
		{"-d", "enable debug mode with detailed logs"},
		{"-no-ui", "disable terminal UI (for automation/scripting)"},
		{"-progress string", "progress without UI: none, basic, bar, percent (default \"basic\")"},
	})

	section(b, "MONITORING:", noColor, [][2]string{
		{"-metrics", "serve Prometheus metrics and the live WebSocket feed"},
		{"-metrics-addr string", "metrics listen address (default \":9090\")"},
		{"-hot-reload", "reload the config file on change, applied from the next scan"},
		{"-version", "print version and exit"},
	})

	section(b, "CONTROLS:", noColor, [][2]string{
		{"p", "pause or resume the scan"},
		{"r", "rescan the same list once a scan has finished"},
		{"q, ctrl+c", "stop and save results"},
	})

	return b.String()
}

func section(b *strings.Builder, title string, noColor bool, rows [][2]string) {
	if !noColor {
		title = colorBold + title + colorReset
	}
	fmt.Fprintf(b, "%s\n", title)

	w := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintf(w, "   %s\t%s\n", row[0], row[1])
	}
	w.Flush()
	fmt.Fprintln(b)
}

// GetExamples returns usage examples
func GetExamples() []Example {
	return []Example{
		{
			Description: "Basic proxy checking",
			Command:     "proxyjudge -l proxies.txt",
		},
		{
			Description: "Check with custom concurrency and timeout",
			Command:     "proxyjudge -l proxies.txt -c 200 -t 8000",
			Explanation: "Uses 200 concurrent workers with an 8 second timeout per attempt",
		},
		{
			Description: "Only SOCKS, export elite proxies",
			Command:     "proxyjudge -l proxies.txt -http=false -elite -wp elite.txt",
			Explanation: "Skips HTTP probing and writes only elite proxies",
		},
		{
			Description: "Non-interactive mode for automation",
			Command:     "proxyjudge -l proxies.txt -no-ui -progress basic -j results.json",
			Explanation: "Runs without TUI, prints progress lines, saves JSON",
		},
		{
			Description: "Watch a scan from another machine",
			Command:     "proxyjudge -l proxies.txt -metrics -metrics-addr :9090",
			Explanation: "Exposes /metrics for Prometheus and /feed for WebSocket clients",
		},
	}
}

// PrintHelp prints help to the specified writer
func PrintHelp(w io.Writer, noColor bool) {
	fmt.Fprint(w, GetFullHelp(noColor))

	fmt.Fprintln(w, "Examples:")
	for _, ex := range GetExamples() {
		fmt.Fprintf(w, "  # %s\n  %s\n", ex.Description, command(ex.Command, noColor))
	}
}

// PrintQuickStart prints quick start guide
func PrintQuickStart(w io.Writer, noColor bool) {
	fmt.Fprint(w, GetBanner(noColor))
	fmt.Fprint(w, GetQuickStart(noColor))
}

// PrintVersion prints version information
func PrintVersion(w io.Writer, noColor bool) {
	if noColor {
		fmt.Fprintf(w, "%s version %s\n", AppName, Version)
		return
	}
	fmt.Fprintf(w, "%s%s%s version %s%s%s\n",
		colorBold+colorBlue, AppName, colorReset,
		colorGreen, Version, colorReset)
}

// PrintUsageError prints a usage error with suggestion
func PrintUsageError(w io.Writer, err error, noColor bool) {
	if noColor {
		fmt.Fprintf(w, "Error: %v\n\n", err)
		fmt.Fprintf(w, "Usage: proxyjudge -l PROXY_LIST [OPTIONS]\n")
		fmt.Fprintf(w, "Try 'proxyjudge -help' for more information.\n")
		return
	}
	fmt.Fprintf(w, "%sError:%s %v\n\n", colorRed, colorReset, err)
	fmt.Fprintf(w, "Usage: %sproxyjudge -l PROXY_LIST [OPTIONS]%s\n", colorCyan, colorReset)
	fmt.Fprintf(w, "Try '%sproxyjudge -help%s' for more information.\n", colorYellow, colorReset)
}

// DetectNoColor checks if color should be disabled
func DetectNoColor() bool {
	if os.Getenv("PROXYJUDGE_NO_COLOR") == "1" || os.Getenv("NO_COLOR") != "" {
		return true
	}

	// Not a terminal
	if fileInfo, err := os.Stdout.Stat(); err != nil || (fileInfo.Mode()&os.ModeCharDevice) == 0 {
		return true
	}

	return false
}
