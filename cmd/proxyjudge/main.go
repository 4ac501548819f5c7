package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ResistanceIsUseless/proxyjudge/internal/config"
	"github.com/ResistanceIsUseless/proxyjudge/internal/errors"
	"github.com/ResistanceIsUseless/proxyjudge/internal/help"
	"github.com/ResistanceIsUseless/proxyjudge/internal/logging"
	"github.com/ResistanceIsUseless/proxyjudge/internal/output"
	progresspkg "github.com/ResistanceIsUseless/proxyjudge/internal/progress"
	"github.com/ResistanceIsUseless/proxyjudge/internal/ui"
)

// cliFlags holds the parsed command line
type cliFlags struct {
	proxyList  string
	configFile string
	initConfig bool

	concurrency int
	timeoutMs   int
	judgeURL    string
	scanHTTP    bool
	scanSOCKS   bool

	verbose bool
	debug   bool

	outputFile  string
	jsonFile    string
	workingFile string
	filter      output.Filter

	noUI         bool
	progressType string

	metrics     bool
	metricsAddr string
	hotReload   bool

	showVersion bool
	showHelp    bool

	// Names of the flags given explicitly. Only these override the config file.
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: make(map[string]bool)}
	fs := flag.NewFlagSet("proxyjudge", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.proxyList, "l", "", "File containing list of proxies")
	fs.StringVar(&f.configFile, "config", "", "Path to config file")
	fs.BoolVar(&f.initConfig, "init-config", false, "Write the default config to the user config path and exit")

	fs.IntVar(&f.concurrency, "c", 0, "Number of concurrent workers (overrides config)")
	fs.IntVar(&f.timeoutMs, "t", 0, "Timeout per attempt in milliseconds (overrides config)")
	fs.StringVar(&f.judgeURL, "judge", "", "Judge URL (overrides config)")
	fs.BoolVar(&f.scanHTTP, "http", true, "Probe HTTP")
	fs.BoolVar(&f.scanSOCKS, "socks", true, "Probe SOCKS4, SOCKS4a and SOCKS5")

	fs.BoolVar(&f.verbose, "v", false, "Enable verbose output")
	fs.BoolVar(&f.debug, "d", false, "Enable debug mode")

	fs.StringVar(&f.outputFile, "o", "", "Output results to text file")
	fs.StringVar(&f.jsonFile, "j", "", "Output results to JSON file")
	fs.StringVar(&f.workingFile, "wp", "", "Output working proxies to file")
	fs.StringVar(&f.filter.Type, "type", "", "Export only http, socks, socks4, socks5 or all")
	fs.BoolVar(&f.filter.Elite, "elite", false, "Export elite proxies")
	fs.BoolVar(&f.filter.High, "high", false, "Export high anonymity proxies")
	fs.BoolVar(&f.filter.Transparent, "transparent", false, "Export transparent proxies")

	fs.BoolVar(&f.noUI, "no-ui", false, "Disable terminal UI (for automation/scripting)")
	fs.StringVar(&f.progressType, "progress", "basic", "Progress indicator without UI (none, basic, bar, percent)")

	fs.BoolVar(&f.metrics, "metrics", false, "Enable Prometheus metrics and the live feed")
	fs.StringVar(&f.metricsAddr, "metrics-addr", ":9090", "Address to serve metrics on")
	fs.BoolVar(&f.hotReload, "hot-reload", false, "Reload the config file on change, applied from the next scan")

	fs.BoolVar(&f.showVersion, "version", false, "Show version information")
	fs.BoolVar(&f.showHelp, "help", false, "Show help message")
	fs.BoolVar(&f.showHelp, "h", false, "Show help message (short)")

	fs.Usage = func() {
		help.PrintHelp(stderr, help.DetectNoColor())
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) {
		f.set[fl.Name] = true
	})

	if err := f.filter.Validate(); err != nil {
		return nil, err
	}
	if _, ok := progresspkg.ParseType(f.progressType); !ok {
		return nil, errors.NewConfigError(errors.ErrorConfigInvalid,
			fmt.Sprintf("unknown progress type %q", f.progressType), nil)
	}
	return f, nil
}

// apply copies the explicitly given flags over cfg
func (f *cliFlags) apply(cfg *config.Config) {
	if f.set["c"] {
		cfg.Concurrency = f.concurrency
	}
	if f.set["t"] {
		cfg.TimeoutMs = f.timeoutMs
	}
	if f.set["judge"] {
		cfg.JudgeURL = f.judgeURL
	}
	if f.set["http"] {
		cfg.ScanHTTP = f.scanHTTP
	}
	if f.set["socks"] {
		cfg.ScanSOCKS = f.scanSOCKS
	}
	if f.set["metrics"] {
		cfg.Metrics.Enabled = f.metrics
	}
	if f.set["metrics-addr"] {
		cfg.Metrics.ListenAddr = f.metricsAddr
	}
}

func (f *cliFlags) logLevel() logging.LogLevel {
	switch {
	case f.debug:
		return logging.LevelDebug
	case f.verbose:
		return logging.LevelInfo
	default:
		return logging.LevelWarn
	}
}

// startupHint suggests where to look for a failure, by error category
func startupHint(err error) string {
	switch {
	case errors.IsConfigError(err):
		return "check the config file and flags"
	case errors.IsFileError(err):
		return "check that the input files exist and are readable"
	case errors.IsNetworkError(err):
		return "check network access to the judge and metrics addresses"
	case errors.IsSystemError(err):
		return "rerun the scan"
	default:
		return "rerun with -debug for details"
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	noColor := help.DetectNoColor()

	flags, err := parseFlags(args, os.Stderr)
	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		help.PrintUsageError(os.Stderr, err, noColor)
		return 2
	}

	if flags.showHelp {
		help.PrintHelp(os.Stdout, noColor)
		return 0
	}
	if flags.showVersion {
		help.PrintVersion(os.Stdout, noColor)
		return 0
	}

	logger := logging.NewLogger(logging.Config{
		Level:  flags.logLevel(),
		Format: "text",
		Output: os.Stderr,
	})

	if flags.initConfig {
		path, created, err := config.InitializeUserConfig()
		if err != nil {
			logger.Error("Failed to write user config", "error", err)
			return 1
		}
		if created {
			fmt.Printf("Wrote default configuration to %s\n", path)
		} else {
			fmt.Printf("Configuration already exists at %s\n", path)
		}
		return 0
	}

	if flags.proxyList == "" {
		help.PrintUsageError(os.Stderr, fmt.Errorf("proxy list file is required"), noColor)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// In TUI mode log lines are shown inside the view instead of the terminal
	var sink *eventSink
	scanLogger := logger
	if !flags.noUI {
		sink = newEventSink(256)
		scanLogger = logging.Discard()
		if flags.debug {
			scanLogger = logging.NewLogger(logging.Config{
				Level:  logging.LevelDebug,
				Format: "text",
				Output: sink,
			})
		}
	}

	a, err := newApp(flags, logger, scanLogger, sink)
	if err != nil {
		logger.Error("Startup failed",
			"error", err,
			"category", errors.GetErrorCategory(err),
			"critical", errors.IsCritical(err),
			"hint", startupHint(err))
		return 1
	}
	defer a.close()

	a.startServices(ctx)

	var summary output.SummaryOutput
	if flags.noUI {
		indicator := progresspkg.NewProgressIndicator(progresspkg.Config{
			Type:    progresspkg.ProgressType(flags.progressType),
			ShowETA: true,
			NoColor: noColor,
			Output:  os.Stderr,
		})
		summary, err = runHeadless(ctx, a, indicator)
		if err != nil {
			logger.Error("Scan failed", "error", err, "hint", startupHint(err))
			return 1
		}
	} else {
		view := ui.NewView()
		view.SetMode(flags.verbose, flags.debug)
		view.Version = help.Version

		m := newModel(ctx, a, view)
		program := tea.NewProgram(m)
		sink.attach(program)

		final, err := program.Run()
		sink.close()
		if err != nil {
			logger.Error("Failed to run TUI program", "error", err)
			return 1
		}
		fm := final.(*model)
		if fm.err != nil {
			logger.Error("Scan failed", "error", fm.err, "hint", startupHint(fm.err))
			return 1
		}
		summary = fm.summary
	}

	fmt.Println(output.FoundMessage(summary))
	return 0
}
