package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pingpong.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseArgs(t *testing.T) {
	convey.Convey("Given no arguments", t, func() {
		cfg, err := ParseArgs(nil)

		convey.Convey("Then the fixed endpoint and round count are used", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr(), convey.ShouldEqual, "127.0.0.1:12345")
			convey.So(cfg.Rounds, convey.ShouldEqual, 10)
			convey.So(cfg.WorkDelay, convey.ShouldEqual, time.Second)
			convey.So(cfg.Mode, convey.ShouldEqual, ModeProcess)
			convey.So(cfg.Strict, convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given long and short flags", t, func() {
		cfg, err := ParseArgs([]string{"-mode", "goroutine", "-o", "/tmp/t.log", "-loki-endpoint", "http://loki", "-r", "9092", "-q", "-strict", "-work-delay", "10ms"})

		convey.Convey("Then each flag lands in the config", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Mode, convey.ShouldEqual, ModeGoroutine)
			convey.So(cfg.FileOutput, convey.ShouldEqual, "/tmp/t.log")
			convey.So(cfg.LokiEndpoint, convey.ShouldEqual, "http://loki")
			convey.So(cfg.RESTPort, convey.ShouldEqual, 9092)
			convey.So(cfg.SilenceStdout, convey.ShouldBeTrue)
			convey.So(cfg.Strict, convey.ShouldBeTrue)
			convey.So(cfg.WorkDelay, convey.ShouldEqual, 10*time.Millisecond)
		})
	})

	convey.Convey("Given an unknown mode", t, func() {
		_, err := ParseArgs([]string{"-mode", "thread"})
		convey.So(err, convey.ShouldNotBeNil)
	})

	convey.Convey("Given a port flag", t, func() {
		_, err := ParseArgs([]string{"-port", "8080"})

		convey.Convey("Then it is rejected since the endpoint is fixed", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given a stray positional argument", t, func() {
		_, err := ParseArgs([]string{"extra"})
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestConfigFile(t *testing.T) {
	convey.Convey("Given a YAML config file", t, func() {
		path := writeFile(t, `
mode: goroutine
work_delay: 250ms
strict: true
connect:
  attempts: 4
  backoff: 20ms
  max_backoff: 200ms
metrics_port: 2112
output:
  file: /var/log/pingpong.log
  max_records: 50
`)

		convey.Convey("When only the file is given", func() {
			cfg, err := ParseArgs([]string{"-config", path})

			convey.Convey("Then the file settings apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Mode, convey.ShouldEqual, ModeGoroutine)
				convey.So(cfg.WorkDelay, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.Strict, convey.ShouldBeTrue)
				convey.So(cfg.ConnectAttempts, convey.ShouldEqual, 4)
				convey.So(cfg.ConnectBackoff, convey.ShouldEqual, 20*time.Millisecond)
				convey.So(cfg.MaxConnectBackoff, convey.ShouldEqual, 200*time.Millisecond)
				convey.So(cfg.MetricsPort, convey.ShouldEqual, 2112)
				convey.So(cfg.FileOutput, convey.ShouldEqual, "/var/log/pingpong.log")
				convey.So(cfg.MaxRecordsFileOutput, convey.ShouldEqual, 50)
				convey.So(cfg.Port, convey.ShouldEqual, DefaultPort)
			})
		})

		convey.Convey("When flags are given as well", func() {
			cfg, err := ParseArgs([]string{"-c", path, "-mode", "process", "-n", "7"})

			convey.Convey("Then the flags win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Mode, convey.ShouldEqual, ModeProcess)
				convey.So(cfg.MaxRecordsFileOutput, convey.ShouldEqual, 7)
				convey.So(cfg.WorkDelay, convey.ShouldEqual, 250*time.Millisecond)
			})
		})
	})

	convey.Convey("Given a file with a bad duration", t, func() {
		path := writeFile(t, "work_delay: soon\n")
		_, err := ParseArgs([]string{"-config", path})
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, `invalid duration "soon"`)
	})

	convey.Convey("Given a missing file", t, func() {
		_, err := ParseArgs([]string{"-config", filepath.Join(t.TempDir(), "nope.yaml")})
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestResponderArgsRoundTrip(t *testing.T) {
	convey.Convey("Given an orchestrator config", t, func() {
		cfg := Default()
		cfg.Rounds = 3
		cfg.WorkDelay = 5 * time.Millisecond
		cfg.Strict = true
		cfg.FileOutput = "/tmp/transcript.log"
		cfg.MaxRecordsFileOutput = 20
		cfg.LokiEndpoint = "http://loki:3100/loki/api/v1/push"
		cfg.SilenceStdout = true

		args := ResponderArgs(cfg, "127.0.0.1:40000")

		convey.Convey("Then the child command line starts with the subcommand", func() {
			convey.So(args[0], convey.ShouldEqual, ResponderCommand)
		})

		convey.Convey("Then the child parses back the same session", func() {
			r, err := ParseResponder(args[1:])
			convey.So(err, convey.ShouldBeNil)
			convey.So(r.Addr, convey.ShouldEqual, "127.0.0.1:40000")
			convey.So(r.Session.Rounds, convey.ShouldEqual, 3)
			convey.So(r.Session.WorkDelay, convey.ShouldEqual, 5*time.Millisecond)
			convey.So(r.Session.Strict, convey.ShouldBeTrue)
			convey.So(r.Session.ConnectAttempts, convey.ShouldEqual, cfg.ConnectAttempts)
			convey.So(r.Session.ConnectBackoff, convey.ShouldEqual, cfg.ConnectBackoff)
			convey.So(r.Session.MaxConnectBackoff, convey.ShouldEqual, cfg.MaxConnectBackoff)
			convey.So(r.FileOutput, convey.ShouldEqual, cfg.FileOutput)
			convey.So(r.MaxRecordsFileOutput, convey.ShouldEqual, 20)
			convey.So(r.LokiEndpoint, convey.ShouldEqual, cfg.LokiEndpoint)
			convey.So(r.SilenceStdout, convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given invalid responder arguments", t, func() {
		_, err := ParseResponder([]string{"-rounds", "0"})
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestNewLogger(t *testing.T) {
	convey.Convey("Given a quiet logger", t, func() {
		var stdout, stderr bytes.Buffer
		logger := NewLogger("DEBUG", true, &stdout, &stderr)

		logger.Info("progress")
		logger.Error("bind failed", "op", "bind")

		convey.Convey("Then only errors reach stderr", func() {
			convey.So(stdout.Len(), convey.ShouldEqual, 0)

			var rec map[string]any
			convey.So(json.Unmarshal(stderr.Bytes(), &rec), convey.ShouldBeNil)
			convey.So(rec["msg"], convey.ShouldEqual, "bind failed")
			convey.So(rec["op"], convey.ShouldEqual, "bind")
		})
	})

	convey.Convey("Given LOG_LEVEL=WARN", t, func() {
		var stdout bytes.Buffer
		logger := NewLogger("warn", false, &stdout, nil)
		logger.Info("hidden")
		convey.So(stdout.Len(), convey.ShouldEqual, 0)
		logger.Warn("shown")
		convey.So(stdout.String(), convey.ShouldContainSubstring, "shown")
	})
}
