package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ah-its-andy/img2webp/internal/converter"
	"github.com/ah-its-andy/img2webp/internal/db"
	"github.com/ah-its-andy/img2webp/internal/progress"
	"github.com/spf13/cobra"
)

func newConverter() converter.Converter {
	return converter.NewWebPConverter()
}

func newConvertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "convert [dir]",
		Short: "Convert every image under dir once (the default command)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runConvert,
	}
}

func (a *app) runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn := a.openHistory()
	if conn != nil {
		defer db.Close(conn)
	}
	w := a.newWorker(conn)

	out := cmd.OutOrStdout()
	spinner := progress.NewSpinner(out, a.cfg.Spinner && isTerminal(out))
	spinner.Start("Converting images")
	summary, err := w.Run(ctx, a.cfg.Root)
	spinner.Stop()
	if err != nil {
		return err
	}

	progress.PrintSummary(out, summary)
	return nil
}
