// Package main implements the target-ldif CLI: a Singer target that writes
// incoming record streams as RFC 2849 LDIF files, plus a direct
// PostgreSQL-to-LDIF export mode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/flowline/target-ldif/internal/config"
	"github.com/flowline/target-ldif/internal/connector/postgres"
	"github.com/flowline/target-ldif/internal/endpoint"
	"github.com/flowline/target-ldif/internal/target"

	// Register connectors.
	_ "github.com/flowline/target-ldif/internal/connector/ldif"
)

func main() {
	var (
		configFile   string
		describe     bool
		fromPostgres string
		table        string
		listTables   bool
		limit        int64
		debug        bool
	)
	pflag.StringVarP(&configFile, "config", "c", "", "path to config file (JSON/YAML/TOML)")
	pflag.BoolVar(&describe, "describe", false, "print registered endpoint descriptors and exit")
	pflag.StringVar(&fromPostgres, "from-postgres", "", "PostgreSQL DSN; export directly instead of reading tap input")
	pflag.StringVar(&table, "table", "", "dataset to export as schema.table (with --from-postgres)")
	pflag.BoolVar(&listTables, "list-tables", false, "list exportable datasets and exit (with --from-postgres)")
	pflag.Int64Var(&limit, "limit", 0, "maximum rows to export (0 = all)")
	pflag.BoolVar(&debug, "debug", false, "enable debug logging")
	pflag.Parse()

	logger := newLogger(debug)
	defer logger.Sync()

	if err := run(configFile, describe, fromPostgres, table, listTables, limit, logger); err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(configFile string, describe bool, fromPostgres, table string, listTables bool, limit int64, logger *zap.Logger) error {
	if describe {
		return printDescriptors(os.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if listTables {
		if fromPostgres == "" {
			return fmt.Errorf("--list-tables requires --from-postgres")
		}
		return printTables(ctx, fromPostgres, os.Stdout)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	t, err := target.New(cfg, logger)
	if err != nil {
		return err
	}

	var summary *target.RunSummary
	if fromPostgres != "" {
		if table == "" {
			return fmt.Errorf("--from-postgres requires --table schema.table")
		}
		src, err := postgres.New(map[string]any{"dsn": fromPostgres})
		if err != nil {
			return err
		}
		defer src.Close()
		summary, err = t.RunSource(ctx, src, table, limit)
		if err != nil {
			return err
		}
	} else {
		summary, err = t.Run(ctx, os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
	}

	for _, stream := range summary.Streams {
		fmt.Fprintf(os.Stderr, "%s: %d records, %d written, %d failed, files: %v\n",
			stream.StreamName, stream.Processed, stream.Succeeded, stream.Failed, stream.Files)
	}
	return nil
}

func printDescriptors(w *os.File) error {
	registry := endpoint.DefaultRegistry()
	for _, id := range registry.List() {
		factory, ok := registry.Get(id)
		if !ok {
			continue
		}
		// Descriptors are static; a throwaway instance with minimal config is
		// enough. Endpoints that reject empty config are described by ID only.
		ep, err := factory(map[string]any{
			"dsn":         "postgres://describe",
			"dn_template": "uid={uid},dc=example,dc=com",
		})
		if err != nil {
			fmt.Fprintf(w, "%s\n", id)
			continue
		}
		desc := ep.GetDescriptor()
		ep.Close()
		fmt.Fprintf(w, "%s - %s\n  %s\n", desc.ID, desc.Title, desc.Description)
		for _, f := range desc.Fields {
			required := ""
			if f.Required {
				required = " (required)"
			}
			fmt.Fprintf(w, "    %s%s: %s\n", f.Key, required, f.Description)
		}
	}
	return nil
}

func printTables(ctx context.Context, dsn string, w *os.File) error {
	src, err := postgres.New(map[string]any{"dsn": dsn})
	if err != nil {
		return err
	}
	defer src.Close()

	datasets, err := src.ListDatasets(ctx)
	if err != nil {
		return err
	}
	for _, ds := range datasets {
		fmt.Fprintf(w, "%s\t%s\n", ds.ID, ds.Kind)
	}
	return nil
}

func newLogger(debug bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		// Tap targets own stdout for STATE passthrough; logs go to stderr.
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stderr"}
		logger, err = cfg.Build()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	return logger
}
