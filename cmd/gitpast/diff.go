package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rybkr/gitpast/internal/textdiff"
	"github.com/rybkr/gitpast/internal/vcsfile"
)

func newDiffCmd(a *app) *cobra.Command {
	var (
		context int
		stat    bool
	)
	cmd := &cobra.Command{
		Use:   "diff [revision:]path [revision:]path",
		Short: "Compare the lines of two file versions",
		Example: `  gitpast diff HEAD~1:top.sch top.sch
  gitpast diff v1.0:top.sch v2.0:top.sch --stat`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := vcsfile.NewResolver(a.log)
			sides := make([]textdiff.Side, 2)
			for i, designator := range args {
				f, err := resolver.Open(designator, nil)
				if err != nil {
					return err
				}
				sides[i] = textdiff.FromFile(f)
			}

			out := cmd.OutOrStdout()
			if stat {
				_, err := fmt.Fprintln(out, textdiff.Count(sides[0].Lines, sides[1].Lines))
				return err
			}
			text, err := textdiff.Unified(sides[0], sides[1], context)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(out, text)
			return err
		},
	}
	cmd.Flags().IntVarP(&context, "unified", "U", 3, "Lines of context around each change")
	cmd.Flags().BoolVar(&stat, "stat", false, "Print only the number of added and removed lines")
	return cmd
}
