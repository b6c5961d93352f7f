package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rybkr/gitpast/internal/vcserr"
	"github.com/rybkr/gitpast/internal/vcsfile"
)

func newCatCmd(a *app) *cobra.Command {
	var (
		related string
		number  bool
	)
	cmd := &cobra.Command{
		Use:   "cat [revision:]path...",
		Short: "Print files from history or the filesystem",
		Long: `Print each file named by a "[revision:]path" designator. Without a revision
the file is read from HEAD of the repository holding it, or from the
filesystem when no repository has it.

With --related, a file without a revision is first looked up in the commit
the related file was read from, relative to the related file's directory.`,
		Example: `  gitpast cat HEAD~2:board/top.sch
  gitpast cat --related v1.0:board/top.sch power.sch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := vcsfile.NewResolver(a.log)

			var base *vcsfile.File
			if related != "" {
				f, err := resolver.Open(related, nil)
				if err != nil {
					return fmt.Errorf("opening related file: %w", err)
				}
				base = f
			}

			out := bufio.NewWriter(cmd.OutOrStdout())
			defer out.Flush()

			failed := 0
			for _, designator := range args {
				f, err := resolver.Open(designator, base)
				if err != nil {
					if vcserr.IsFatal(err) {
						return err
					}
					a.log.Error("skipping file", "designator", designator, "err", err)
					failed++
					continue
				}
				f.Read(func(lineno int, line string) bool {
					if number {
						fmt.Fprintf(out, "%6d\t%s\n", lineno, line)
					} else {
						fmt.Fprintln(out, line)
					}
					return true
				})
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be read", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&related, "related", "", "Resolve files relative to this designator's commit and directory")
	cmd.Flags().BoolVarP(&number, "number", "n", false, "Number output lines")
	return cmd
}
