package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"scandesk/internal/domain"
	"scandesk/internal/services/sku"
	"scandesk/internal/services/validation"
)

type Resolution struct {
	Code     string          `json:"code"`
	Resolved bool            `json:"resolved"`
	ItemCode domain.ItemCode `json:"item_code,omitempty"`
}

func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "resolve <code>...",
		Short:        "Map scanned codes to item codes",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]Resolution, 0, len(args))
			for _, raw := range args {
				code := validation.Normalize(raw)
				item, ok := sku.Resolve(code)
				if !ok {
					item, ok = sku.ResolveSerial(code)
				}
				out = append(out, Resolution{Code: code, Resolved: ok, ItemCode: item})
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			for _, r := range out {
				item := string(r.ItemCode)
				if !r.Resolved {
					item = "no match"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Code, item)
			}
			return nil
		},
	}
}
