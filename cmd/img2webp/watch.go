package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ah-its-andy/img2webp/internal/api"
	"github.com/ah-its-andy/img2webp/internal/config"
	"github.com/ah-its-andy/img2webp/internal/db"
	"github.com/ah-its-andy/img2webp/internal/livelog"
	"github.com/ah-its-andy/img2webp/internal/progress"
	"github.com/ah-its-andy/img2webp/internal/watcher"
	"github.com/ah-its-andy/img2webp/internal/worker"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Convert everything under dir, then keep converting new images until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runWatch,
	}
	cmd.Flags().Duration("stability-delay", 0, "wait between size checks before a new file is queued (default 1s)")
	bindFlags(a.v, cmd.Flags(), map[string]string{config.KeyStabilityDelay: "stability-delay"})
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn := a.openHistory()
	if conn != nil {
		defer db.Close(conn)
	}
	live := livelog.NewManager()
	w := a.newWorker(conn, worker.WithLiveLog(live))
	out := cmd.OutOrStdout()

	// Watch before the first pass so images dropped during it are not missed.
	q := worker.NewQueue(64)
	wr, err := watcher.NewRecursiveWatcher(a.cfg.Root, a.cfg.StabilityDelay, q)
	if err != nil {
		return err
	}
	defer wr.Close()
	go func() {
		if err := wr.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Watcher stopped")
		}
	}()

	if a.cfg.HTTPPort > 0 {
		srv := api.NewServer(conn, a.cfg.Root, q, wr, live)
		go func() {
			if err := srv.ListenAndServe(ctx, a.cfg.HTTPAddr()); err != nil {
				log.Error().Err(err).Msg("HTTP server stopped")
			}
		}()
	}

	initial, err := w.Run(ctx, a.cfg.Root)
	if err != nil {
		return err
	}
	progress.PrintSummary(out, initial)
	if ctx.Err() != nil {
		return nil
	}

	session := w.Serve(ctx, a.cfg.Root, q)
	q.StopAccepting()
	progress.PrintSummary(out, session)
	return nil
}
