package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/logger"
	"github.com/isdmx/runbox/sandbox"
)

// Output formats
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func newExecCmd() *cobra.Command {
	var (
		image   string
		timeout time.Duration
		format  string
	)

	cmd := &cobra.Command{
		Use:   "exec [file|-]",
		Short: "Execute a program and print the report",
		Long:  "Reads the program from the given file, or from stdin when the file is '-' or omitted, and runs it once.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}

			code, err := readProgram(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if image != "" {
				cfg.Sandbox.Image = image
			}

			log, err := logger.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			executor, err := sandbox.NewExecutor(log, cfg, nil)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			outcome, err := executor.Execute(ctx, sandbox.ExecutionRequest{
				Code:    code,
				Image:   cfg.Sandbox.Image,
				Timeout: timeout,
			})
			if err != nil {
				log.Debug("execution aborted", zap.Error(err))
				return err
			}

			if err := writeOutcome(cmd.OutOrStdout(), outcome, format); err != nil {
				return err
			}
			if !outcome.Succeeded {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "Container image (overrides sandbox.image)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Execution timeout, capped by sandbox.timeout_sec")
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "Output format: text, json or yaml")

	return cmd
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported format %q: must be text, json or yaml", format)
	}
}

func readProgram(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading program from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading program: %w", err)
	}
	return string(data), nil
}

// writeOutcome prints the outcome as the text report or as a structured document.
func writeOutcome(w io.Writer, outcome sandbox.ExecutionOutcome, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(outcome); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, sandbox.RenderReport(outcome))
		return err
	}
}
