package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"scandesk/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
	Format   string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

// logger builds the command logger. The flag wins over LOG_LEVEL.
func (o *RootOptions) logger(fallback string) *logrus.Logger {
	level := o.LogLevel
	if level == "" {
		level = fallback
	}
	return logging.New(level)
}

// NewRootCommand creates the root command for the scandesk CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "scandesk",
		Short: "scandesk - warehouse scan validation",
		Long:  "Validates barcode scans against per-category field rules and reconciles scanned items with shipments.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.LogLevel != "" {
				if _, err := logrus.ParseLevel(opts.LogLevel); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
