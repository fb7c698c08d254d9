package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate route declarations without generating code",
		Long: `Scan and validate every //telepath: declaration. Every error is
reported, not only the first, and the command exits non-zero if there is
any. Nothing is written.

Examples:
  telepath check
  telepath check --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			_, _, table, err := p.build()
			if err != nil {
				return err
			}

			success("%s, no conflicts", plural(table.Len(), "route"))
			if !list {
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tPREFIX\tHANDLER\tCALL ORDER")
			for _, n := range table.Nodes() {
				fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", n.Path(), n.Prefix(), n.Ref(), n.Binding().CallOrder())
			}
			fmt.Fprintf(tw, "(home)\t\t%s\t%s\n", table.Home().Ref(), table.Home().Binding().CallOrder())
			fmt.Fprintf(tw, "(fallback)\t\t%s\t%s\n", table.Fallback().Ref(), table.Fallback().Binding().CallOrder())
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List the validated routes")

	return cmd
}
