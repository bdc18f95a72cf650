package cli

import (
	"github.com/spf13/cobra"

	"scandesk/internal/rules"
)

type rulesOptions struct {
	File string
}

// NewRulesCommand prints the effective category rules, validating a rule
// file when one is given.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &rulesOptions{}
	cmd := &cobra.Command{
		Use:          "rules",
		Short:        "Print the category rules in effect",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := rules.Load(opts.File)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), cats)
			}
			data, err := rules.Marshal(cats)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML rule file (default: built-in rules)")
	return cmd
}
