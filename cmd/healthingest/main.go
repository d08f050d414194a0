package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"HealthIngest/internal/app"
	"HealthIngest/internal/config"
	"HealthIngest/internal/domain"
	"HealthIngest/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "healthingest",
		Short:         "Ingest health web pages and datasets into relational, document and vector stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML); defaults to $HEALTHINGEST_CONFIG")

	root.AddCommand(
		webCmd(&configPath),
		datasetCmd(&configPath),
		healthCmd(&configPath),
		watchCmd(&configPath),
	)
	return root
}

func build(cmd *cobra.Command, cfg config.Config) (*app.Application, error) {
	return app.New(cmd.Context(), cfg, commandLogger(cmd, cfg))
}

// commandLogger writes to stderr so stdout carries only the JSON results.
func commandLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
}

func webCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "web [source...]",
		Short: "Scrape the configured sources (or the named ones) once",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := build(cmd, config.Load(*configPath))
			if err != nil {
				return err
			}
			defer application.Close()

			runs, runErr := application.RunWeb(cmd.Context(), args...)
			for _, run := range runs {
				if err := printJSON(cmd, map[string]any{"source": run.Source, "result": resultView(run.Result)}); err != nil {
					return err
				}
			}
			return runErr
		},
	}
}

func datasetCmd(configPath *string) *cobra.Command {
	var (
		file string
		mode string
	)
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Normalize a CSV dataset and load it into the stores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(*configPath)
			if mode != "" {
				cfg.Pipeline.Dataset.WriteMode = mode
			}
			application, err := build(cmd, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			result, runErr := application.RunDataset(cmd.Context(), file)
			if err := printJSON(cmd, resultView(result)); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to ingest (defaults to dataset.path)")
	cmd.Flags().StringVar(&mode, "mode", "", "Relational write mode: replace or append")
	return cmd
}

func healthCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Ping the relational, document and vector stores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := build(cmd, config.Load(*configPath))
			if err != nil {
				return err
			}
			defer application.Close()

			report := application.Health(cmd.Context())
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.Healthy() {
				return errors.New("one or more stores are unreachable")
			}
			return nil
		},
	}
}

func watchCmd(configPath *string) *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run web ingestion on the configured cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := build(cmd, config.Load(*configPath))
			if err != nil {
				return err
			}
			defer application.Close()
			return application.Watch(cmd.Context(), now)
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "Also run once immediately")
	return cmd
}

func resultView(r domain.FanOutResult) map[string]any {
	return map[string]any{
		"relational_rows_written": r.RelationalRowsWritten,
		"document_count_written":  r.DocumentCountWritten,
		"vector_count_written":    r.VectorCountWritten,
		"audit_log_id":            r.AuditLogID,
		"status":                  r.Status,
		"stores":                  r.Outcomes,
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
