package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/reportcat/internal/models"
	"github.com/noah-isme/reportcat/pkg/config"
)

func listCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := newRegistry(cfg)
			if err != nil {
				return err
			}
			for _, name := range registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func sqlCmd(cfg *config.Config) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "sql <report>",
		Short: "Print the SQL a report would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseParams(params)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, zap.NewNop(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			query, err := a.reports.SQL(args[0], overrides)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), query)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Param override as name=value (repeatable)")
	return cmd
}

func runCmd(cfg *config.Config, logr *zap.Logger) *cobra.Command {
	var (
		params []string
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "run <report>",
		Short: "Generate a report and write it as CSV or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseParams(params)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logr, true)
			if err != nil {
				return err
			}
			defer a.Close()

			rendered, err := a.reports.Render(context.Background(), args[0], models.ExportFormat(strings.ToLower(format)), overrides)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(rendered.Data)
				return err
			}
			if out == "." {
				out = rendered.Filename
			}
			if err := os.WriteFile(out, rendered.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Output saved to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Param override as name=value (repeatable)")
	cmd.Flags().StringVarP(&format, "format", "f", string(models.ExportFormatCSV), "Output format: csv or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file; \".\" uses the generated file name, empty writes to stdout")
	return cmd
}

// parseParams splits name=value flags. Later flags win.
func parseParams(raw []string) (map[string]string, error) {
	overrides := make(map[string]string, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid param %q: want name=value", kv)
		}
		overrides[name] = value
	}
	return overrides, nil
}
