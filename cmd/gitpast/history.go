package main

import (
	"github.com/spf13/cobra"

	"github.com/rybkr/gitpast/internal/gitcore"
	"github.com/rybkr/gitpast/internal/history"
	"github.com/rybkr/gitpast/internal/vcserr"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		revision string
		limit    int
		exact    bool
		noDirty  bool
	)
	cmd := &cobra.Command{
		Use:   "history [path]",
		Short: "Draw the commit history of the repository holding path",
		Long: `Print one line per commit, newest first, indented by branch column. A dirty
work tree adds a "dirty" line on top.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			repo, ok := gitcore.LocateWithLogger(path, a.log)
			if !ok {
				return vcserr.New(vcserr.RepositoryNotFound, path, "")
			}

			opts := history.Options{
				Revision:  revision,
				Limit:     a.cfg.History.Limit,
				Exact:     a.cfg.History.Exact || exact,
				SkipDirty: !a.cfg.History.Dirty || noDirty,
				Log:       a.log,
			}
			if cmd.Flags().Changed("limit") {
				opts.Limit = limit
			}

			g, root, err := history.Build(repo, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return history.Dump(out, g, root, history.StyleFor(out))
		},
	}
	cmd.Flags().StringVarP(&revision, "revision", "r", "", "Start from this revision instead of HEAD")
	cmd.Flags().IntVarP(&limit, "limit", "N", 0, "Show at most this many commits (0: all)")
	cmd.Flags().BoolVar(&exact, "exact", false, "Look parents up in an index of every commit instead of the open branches")
	cmd.Flags().BoolVar(&noDirty, "no-dirty", false, "Do not show uncommitted changes")
	return cmd
}
