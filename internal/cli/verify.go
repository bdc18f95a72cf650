package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"scandesk/internal/config"
	"scandesk/internal/domain"
	"scandesk/internal/services/validation"
)

type verifyOptions struct {
	Shape string
}

func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &verifyOptions{}
	cmd := &cobra.Command{
		Use:          "verify <tracking> <itemCode>",
		Short:        "Check one item code against a shipment",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.Shape != "" {
				cfg.LookupShape = opts.Shape
			}
			log := rootOpts.logger(cfg.LogLevel)
			log.SetOutput(cmd.ErrOrStderr())

			v, closeLookup, err := newVerifier(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeLookup()

			tracking := validation.Normalize(args[0])
			res := v.Verify(cmd.Context(), tracking, domain.ItemCode(validation.Normalize(args[1])))
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			state := "confirmed"
			if !res.Confirmed {
				state = "not confirmed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", state, res.Detail)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Shape, "shape", "", "lookup shape (items|order), overrides LOOKUP_SHAPE")
	return cmd
}
