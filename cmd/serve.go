package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxvaer/secprobe/internal/logging"
	"github.com/maxvaer/secprobe/internal/runner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reports over HTTP",
	Long: `serve starts an HTTP server that runs the probes on every GET / request
and returns the report as HTML. The url query parameter overrides the
target and format=json returns the JSON report instead.`,
	Example: `  secprobe serve --listen :8098
  curl 'http://localhost:8098/?url=http://localhost:98'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closer, err := logging.Setup(&opts)
		if err != nil {
			return err
		}
		defer closer.Close()

		srv := &http.Server{
			Addr:              opts.Listen,
			Handler:           runner.Handler(opts, log),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("listen", opts.Listen).Str("default_target", opts.URL).Msg("serving reports")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return errors.Wrap(err, "serving")
		case <-ctx.Done():
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&opts.Listen, "listen", opts.Listen, "Address to listen on")
}
