package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/core/pipelines"
)

func newPipelinesCmd() *cobra.Command {
	var overlay string

	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "List registered pipelines and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pipelines.ApplyOverlayFile(overlay); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tLABEL\tIDENTIFIER\tREQUIRED\tCONTEXT")
			for _, def := range core.All() {
				var required []string
				for _, f := range def.Fields {
					if f.Required {
						required = append(required, f.Key)
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					def.Key, def.Label, def.IdentifierKey,
					strings.Join(required, ","), strings.Join(def.ContextKeys, ","))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&overlay, "overlay", "", "Pipelines YAML overlay to apply first")
	return cmd
}
