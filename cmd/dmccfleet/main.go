// Command dmccfleet runs a backup/compare/upload pass over a fleet of
// DMCC-capable vision sensors described by a YAML fleet file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/arloliu/go-dmcc/fleet"
	"github.com/arloliu/go-dmcc/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "dmccfleet:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		fleetFile = pflag.StringP("fleet", "f", "fleet.yaml", "fleet configuration file")
		backupDir = pflag.String("backup-dir", "", "override the backup directory")
		noUpload  = pflag.Bool("no-upload", false, "never push configurations, report only")
		jsonPath  = pflag.String("json", "", "write results as JSON to this file")
		csvPath   = pflag.String("csv", "", "write results as CSV to this file")
		logLevel  = pflag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	pflag.Parse()

	log, err := newLogger(*logLevel)
	if err != nil {
		return err
	}

	cfg, err := fleet.LoadConfig(*fleetFile)
	if err != nil {
		return err
	}

	if *backupDir != "" {
		cfg.BackupDir = *backupDir
	}
	if *noUpload {
		cfg.Upload = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := fleet.NewValidator(cfg, log)
	results := v.ValidateAll(ctx)

	if err := fleet.WriteReport(os.Stdout, results); err != nil {
		return err
	}

	if *jsonPath != "" {
		if err := writeFile(*jsonPath, results, fleet.WriteJSON); err != nil {
			return err
		}
		log.Info("results exported", "format", "json", "path", *jsonPath)
	}

	if *csvPath != "" {
		if err := writeFile(*csvPath, results, fleet.WriteCSV); err != nil {
			return err
		}
		log.Info("results exported", "format", "csv", "path", *csvPath)
	}

	if s := fleet.Summarize(results); s.Errors > 0 {
		return fmt.Errorf("%d of %d device(s) reported errors", s.Errors, s.Total)
	}

	return nil
}

func newLogger(level string) (logger.Logger, error) {
	switch level {
	case "debug":
		return logger.NewSlog(logger.DebugLevel, false), nil
	case "info":
		return logger.NewSlog(logger.InfoLevel, false), nil
	case "warn":
		return logger.NewSlog(logger.WarnLevel, false), nil
	case "error":
		return logger.NewSlog(logger.ErrorLevel, false), nil
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
}

func writeFile(path string, results []*fleet.Result, write func(w io.Writer, results []*fleet.Result) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := write(f, results); err != nil {
		f.Close()

		return err
	}

	return f.Close()
}
