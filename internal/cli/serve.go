package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seeeba07/Universal-Video-Downloader/internal/api"
	"github.com/seeeba07/Universal-Video-Downloader/internal/history"
	uvdlog "github.com/seeeba07/Universal-Video-Downloader/internal/log"
	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
	"github.com/seeeba07/Universal-Video-Downloader/internal/queue"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var listenAddr string
	var autoStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the download queue as a local HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			if listenAddr == "" {
				listenAddr = eng.settings.ListenAddr
			}
			return runServe(cmd.Context(), eng, listenAddr, autoStart)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default from settings)")
	cmd.Flags().BoolVar(&autoStart, "start", true, "start draining the queue immediately")
	return cmd
}

func runServe(parent context.Context, eng *engine, listenAddr string, autoStart bool) error {
	log := uvdlog.WithComponent("serve")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(eng.settings.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Terminal jobs flow into history as the queue publishes them.
	eng.queue.Notify(func(evt queue.Event) {
		if evt.Type != queue.EventStatus || !evt.Job.Status.IsTerminal() {
			return
		}
		if err := store.Record(evt.Job); err != nil {
			log.Warn().Str("event", "serve.history_write_failed").Err(err).Msg("could not persist history entry")
		}
	})

	server := api.New(eng.queue, eng.executor, eng.fetcher, eng.runner, store, func() model.SettingsSnapshot {
		return eng.settings.Snapshot()
	})
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if autoStart {
		eng.executor.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("event", "serve.listen").Str("addr", listenAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := eng.executor.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		eng.executor.CancelCurrent()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	eng.queue.Close()
	log.Info().Str("event", "serve.stopped").Msg("service stopped")
	return err
}
