package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHost   = "127.0.0.1"
	DefaultPort   = 12345
	DefaultRounds = 10

	ModeProcess   = "process"
	ModeGoroutine = "goroutine"
)

// Session holds the parameters of one ping-pong run. Host, Port and Rounds
// are fixed on the command line and only change through this struct.
type Session struct {
	Host              string
	Port              int
	Rounds            int
	WorkDelay         time.Duration
	ConnectAttempts   int
	ConnectBackoff    time.Duration
	MaxConnectBackoff time.Duration
	Strict            bool
}

// Addr returns the host:port the listener binds to.
func (s Session) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func DefaultSession() Session {
	return Session{
		Host:              DefaultHost,
		Port:              DefaultPort,
		Rounds:            DefaultRounds,
		WorkDelay:         time.Second,
		ConnectAttempts:   10,
		ConnectBackoff:    50 * time.Millisecond,
		MaxConnectBackoff: time.Second,
	}
}

type Config struct {
	Session
	Mode                 string
	MetricsPort          int
	RESTPort             int
	FileOutput           string
	MaxRecordsFileOutput int
	LokiEndpoint         string
	SilenceStdout        bool
}

func Default() Config {
	return Config{
		Session:              DefaultSession(),
		Mode:                 ModeProcess,
		MaxRecordsFileOutput: 1000,
	}
}

// Parse reads the orchestrator configuration from os.Args and sets up the
// default logger. It exits the process on invalid arguments.
func Parse() Config {
	InitLogger(false)

	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("Invalid arguments", "error", err)
		os.Exit(1)
	}

	InitLogger(cfg.SilenceStdout)
	return cfg
}

// ParseArgs parses orchestrator flags. Values come from defaults, then the
// optional -config YAML file, then flags given explicitly.
func ParseArgs(args []string) (Config, error) {
	fs := flag.NewFlagSet("pingpong", flag.ContinueOnError)

	configPathPtr := fs.String("config", "", "YAML file with settings (flags override it)")
	configPathShorthandPtr := fs.String("c", "", "Shorthand for --config")

	modePtr := fs.String("mode", ModeProcess, "Where the responder runs: process or goroutine")
	workDelayPtr := fs.Duration("work-delay", time.Second, "Simulated work per round")
	strictPtr := fs.Bool("strict", false, "Reject payloads other than the expected peer message")

	metricsPortPtr := fs.Int("metrics-port", 0, "Port for Prometheus metrics endpoint (0 to disable)")

	restPortPtr := fs.Int("rest-port", 0, "Port for REST status endpoint (0 to disable)")
	restPortShorthandPtr := fs.Int("r", 0, "Shorthand for --rest-port")

	fileOutputPtr := fs.String("file-output", "", "File to write the exchange transcript")
	fileOutputShorthandPtr := fs.String("o", "", "Shorthand for --file-output")

	maxRecordsPtr := fs.Int("max-records-fileoutput", 1000, "Maximum records per file before rotation")
	maxRecordsShorthandPtr := fs.Int("n", 0, "Shorthand for --max-records-fileoutput")

	lokiEndpointPtr := fs.String("loki-endpoint", "", "URL of the Loki server push endpoint")
	lokiEndpointShorthandPtr := fs.String("l", "", "Shorthand for --loki-endpoint")

	silenceStdoutPtr := fs.Bool("no-stdout", false, "Only log errors, to stderr")
	silenceStdoutShorthandPtr := fs.Bool("q", false, "Shorthand for --no-stdout")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(fs.Output(), "Runs a TCP ping-pong between an initiator and a responder on 127.0.0.1:12345.")
		fmt.Fprintln(fs.Output(), "\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	cfg := Default()

	if path := coalesceStr(*configPathShorthandPtr, *configPathPtr); path != "" {
		f, err := Load(path)
		if err != nil {
			return Config{}, err
		}
		f.apply(&cfg)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["mode"] {
		cfg.Mode = *modePtr
	}
	if set["work-delay"] {
		cfg.WorkDelay = *workDelayPtr
	}
	if set["strict"] {
		cfg.Strict = *strictPtr
	}
	if set["metrics-port"] {
		cfg.MetricsPort = *metricsPortPtr
	}
	if set["rest-port"] || set["r"] {
		cfg.RESTPort = coalesce(*restPortShorthandPtr, *restPortPtr)
	}
	if set["file-output"] || set["o"] {
		cfg.FileOutput = coalesceStr(*fileOutputShorthandPtr, *fileOutputPtr)
	}
	if set["max-records-fileoutput"] || set["n"] {
		cfg.MaxRecordsFileOutput = coalesce(*maxRecordsShorthandPtr, *maxRecordsPtr)
	}
	if set["loki-endpoint"] || set["l"] {
		cfg.LokiEndpoint = coalesceStr(*lokiEndpointShorthandPtr, *lokiEndpointPtr)
	}
	if set["no-stdout"] || set["q"] {
		cfg.SilenceStdout = *silenceStdoutPtr || *silenceStdoutShorthandPtr
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Mode != ModeProcess && c.Mode != ModeGoroutine {
		return fmt.Errorf("invalid mode %q: must be %s or %s", c.Mode, ModeProcess, ModeGoroutine)
	}
	if c.MaxRecordsFileOutput <= 0 {
		return fmt.Errorf("max records must be positive, got %d", c.MaxRecordsFileOutput)
	}
	return c.Session.Validate()
}

func (s Session) Validate() error {
	if s.Rounds <= 0 {
		return fmt.Errorf("rounds must be positive, got %d", s.Rounds)
	}
	if s.WorkDelay < 0 {
		return fmt.Errorf("work delay must not be negative, got %s", s.WorkDelay)
	}
	if s.ConnectAttempts <= 0 {
		return fmt.Errorf("connect attempts must be positive, got %d", s.ConnectAttempts)
	}
	return nil
}

// InitLogger installs a JSON slog logger as the default. LOG_LEVEL selects
// the level; silence keeps only errors and sends them to stderr.
func InitLogger(silence bool) {
	slog.SetDefault(NewLogger(os.Getenv("LOG_LEVEL"), silence, os.Stdout, os.Stderr))
}

func NewLogger(levelName string, silence bool, stdout, stderr io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToUpper(levelName) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}

	out := stdout
	if silence {
		level = slog.LevelError
		out = stderr
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}

func coalesce(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func coalesceStr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
