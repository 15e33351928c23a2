package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ah-its-andy/img2webp/internal/api"
	"github.com/ah-its-andy/img2webp/internal/db"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history over HTTP",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	if !a.cfg.HistoryEnabled() {
		return errors.New("serve needs a history database, set --history-db")
	}
	conn, err := db.Init(a.cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer db.Close(conn)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return api.NewServer(conn, a.cfg.Root, nil, nil, nil).ListenAndServe(ctx, a.cfg.HTTPAddr())
}
