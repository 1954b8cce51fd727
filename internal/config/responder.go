package config

import (
	"flag"
	"fmt"
	"strconv"
)

// ResponderCommand is the hidden subcommand the orchestrator re-executes
// itself with to run the responder in a child process.
const ResponderCommand = "responder"

// Responder is what a responder child process needs to know: where to
// connect, the session parameters and where to send its events.
type Responder struct {
	Addr                 string
	Session              Session
	FileOutput           string
	MaxRecordsFileOutput int
	LokiEndpoint         string
	SilenceStdout        bool
}

// ResponderArgs builds the child command line, subcommand included, for a
// responder that connects to addr.
func ResponderArgs(cfg Config, addr string) []string {
	args := []string{
		ResponderCommand,
		"-addr", addr,
		"-rounds", strconv.Itoa(cfg.Rounds),
		"-work-delay", cfg.WorkDelay.String(),
		"-connect-attempts", strconv.Itoa(cfg.ConnectAttempts),
		"-connect-backoff", cfg.ConnectBackoff.String(),
		"-max-connect-backoff", cfg.MaxConnectBackoff.String(),
	}
	if cfg.Strict {
		args = append(args, "-strict")
	}
	if cfg.FileOutput != "" {
		args = append(args,
			"-file-output", cfg.FileOutput,
			"-max-records-fileoutput", strconv.Itoa(cfg.MaxRecordsFileOutput))
	}
	if cfg.LokiEndpoint != "" {
		args = append(args, "-loki-endpoint", cfg.LokiEndpoint)
	}
	if cfg.SilenceStdout {
		args = append(args, "-no-stdout")
	}
	return args
}

// ParseResponder parses the arguments following ResponderCommand.
func ParseResponder(args []string) (Responder, error) {
	def := DefaultSession()
	fs := flag.NewFlagSet(ResponderCommand, flag.ContinueOnError)

	addr := fs.String("addr", def.Addr(), "Address of the initiator's listener")
	rounds := fs.Int("rounds", def.Rounds, "Number of rounds")
	workDelay := fs.Duration("work-delay", def.WorkDelay, "Simulated work per round")
	attempts := fs.Int("connect-attempts", def.ConnectAttempts, "Connect attempts before giving up")
	backoff := fs.Duration("connect-backoff", def.ConnectBackoff, "Initial delay between connect attempts")
	maxBackoff := fs.Duration("max-connect-backoff", def.MaxConnectBackoff, "Upper bound of the connect delay")
	strict := fs.Bool("strict", false, "Reject payloads other than the expected peer message")
	fileOutput := fs.String("file-output", "", "File to write the exchange transcript")
	maxRecords := fs.Int("max-records-fileoutput", 1000, "Maximum records per file before rotation")
	lokiEndpoint := fs.String("loki-endpoint", "", "URL of the Loki server push endpoint")
	silence := fs.Bool("no-stdout", false, "Only log errors, to stderr")

	if err := fs.Parse(args); err != nil {
		return Responder{}, err
	}

	s := Session{
		Rounds:            *rounds,
		WorkDelay:         *workDelay,
		ConnectAttempts:   *attempts,
		ConnectBackoff:    *backoff,
		MaxConnectBackoff: *maxBackoff,
		Strict:            *strict,
	}
	if err := s.Validate(); err != nil {
		return Responder{}, err
	}
	if *maxRecords <= 0 {
		return Responder{}, fmt.Errorf("max records must be positive, got %d", *maxRecords)
	}

	return Responder{
		Addr:                 *addr,
		Session:              s,
		FileOutput:           *fileOutput,
		MaxRecordsFileOutput: *maxRecords,
		LokiEndpoint:         *lokiEndpoint,
		SilenceStdout:        *silence,
	}, nil
}
