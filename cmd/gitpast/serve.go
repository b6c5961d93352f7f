package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rybkr/gitpast/internal/gitcore"
	"github.com/rybkr/gitpast/internal/history"
	"github.com/rybkr/gitpast/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port int
		poll time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Serve the history graph over HTTP and push updates over a websocket",
		Long: `Serve the history of the repository holding path:

  GET /             history as text
  GET /api/graph    history as JSON
  GET /api/info     repository and HEAD
  GET /api/status   work tree status
  GET /api/ws       websocket; sends info, graph and status, then every change`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			repo, err := gitcore.Open(path)
			if err != nil {
				return err
			}
			repo.SetLogger(a.log)

			cfg := a.cfg.Serve
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("poll") {
				cfg.Poll = poll
			}

			srv := server.NewServer(repo, server.Config{
				Addr: fmt.Sprintf(":%d", cfg.Port),
				Poll: cfg.Poll,
				History: history.Options{
					Limit:     a.cfg.History.Limit,
					Exact:     a.cfg.History.Exact,
					SkipDirty: !a.cfg.History.Dirty,
				},
				Log: a.log,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "gitpast serving %s at http://localhost:%d\n", repo.Name(), cfg.Port)
			return srv.Start(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().DurationVar(&poll, "poll", 5*time.Second, "Rescan period when file events are missed (0 disables)")
	return cmd
}
