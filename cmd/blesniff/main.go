// Command blesniff passively scans for BLE advertisements and reports
// detection metadata to stdout, optionally appending each detection to CSV
// and/or CBOR logs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"blesniff/pkg/ble"
	"blesniff/pkg/config"
	"blesniff/pkg/sinks"
	"blesniff/pkg/sniff"
)

const defaultConfigFile = "blesniff.ini"

func main() {
	var (
		configFile = flag.String("config", defaultConfigFile, "Optional INI file with default settings")
		duration   = flag.Float64("duration", 10, "Scan duration in seconds. Use 0 to scan until Ctrl+C")
		continuous = flag.Bool("continuous", false, "Scan until Ctrl+C, overriding -duration")
		filterName = flag.String("filter-name", "", "Only report devices whose name contains this substring (case-insensitive)")
		filterAddr = flag.String("filter-address", "", "Only report devices whose address contains this substring (case-insensitive)")
		csvPath    = flag.String("csv", "", "Append detections to this CSV file")
		cborPath   = flag.String("cbor", "", "Append detections to this CBOR file")
		logLevel   = flag.String("log-level", "", "Diagnostic log level (debug, info, warn, error)")
	)
	flag.Parse()

	cfg := config.Default()
	if err := cfg.LoadFromFile(*configFile); err != nil {
		// The default config file is optional; an explicit one that fails
		// to load is still only skipped, matching missing-key behavior.
		fmt.Fprintf(os.Stderr, "skipping config file %s: %v\n", *configFile, err)
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "duration":
			cfg.Duration = *duration
		case "continuous":
			cfg.Continuous = *continuous
		case "filter-name":
			cfg.FilterName = *filterName
		case "filter-address":
			cfg.FilterAddress = *filterAddr
		case "csv":
			cfg.CSVPath = *csvPath
		case "cbor":
			cfg.CBORPath = *cborPath
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("scan failed")
		os.Exit(1)
	}
}

// newLogger builds the diagnostic logger on stderr, keeping stdout clean
// for detection lines.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	var recordSinks []sniff.Sink

	closeAll := func() {
		for _, s := range recordSinks {
			s.Close()
		}
	}

	if cfg.CSVPath != "" {
		sink, err := sinks.NewCSV(cfg.CSVPath)
		if err != nil {
			return err
		}
		recordSinks = append(recordSinks, sink)
	}
	if cfg.CBORPath != "" {
		sink, err := sinks.NewCBOR(cfg.CBORPath)
		if err != nil {
			closeAll()
			return err
		}
		recordSinks = append(recordSinks, sink)
	}

	scanner, err := ble.NewScanner(logger)
	if err != nil {
		closeAll()
		return err
	}

	filter := sniff.Filter{Name: cfg.FilterName, Address: cfg.FilterAddress}
	pipeline := sniff.NewPipeline(filter, os.Stdout, recordSinks, logger)
	session := sniff.NewSession(scanner, pipeline, recordSinks, cfg.ScanDuration(), logger)

	// Registration is best-effort; platforms that cannot deliver one of
	// these signals simply never fire it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return session.Run(ctx)
}
