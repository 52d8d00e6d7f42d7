package main

import (
	"github.com/Veraticus/the-spice-must-pay/internal/calendar"
	"github.com/Veraticus/the-spice-must-pay/internal/cli"
	"github.com/Veraticus/the-spice-must-pay/internal/reminder"
	"github.com/Veraticus/the-spice-must-pay/internal/web"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ICS endpoint and run the daily reminder",
		Long: `Start an HTTP server with POST /api/generate-ics, which turns a JSON list of
expenses into a downloadable calendar document, and GET /health. The daily
reminder runs alongside it. Both stop on Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			ctx := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Shutting down server and reminders.").HandleInterrupts(cmd.Context())

			a, err := openApp(ctx, out)
			if err != nil {
				return err
			}
			defer a.Close()

			if listen == "" {
				listen = a.settings.ServeListen
			}
			// The endpoint returns documents to the caller, so it never uses the sink.
			server := web.NewServer(newExporter(a.settings, calendar.DiscardSink{}), listen)

			checker, err := newChecker(a, out)
			if err != nil {
				return err
			}
			poller, err := reminder.NewPoller(checker, a.settings.Reminder.Poll)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return server.Run(gctx) })
			g.Go(func() error { return poller.Run(gctx) })
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default serve.listen)")
	return cmd
}
