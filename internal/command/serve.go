// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/swcache/internal/meta"
	"github.com/staranto/swcache/internal/proxy"
	"github.com/staranto/swcache/internal/worker"
)

const shutdownTimeout = 5 * time.Second

// ServeCommandAction installs and activates the worker, then answers HTTP
// requests through it until interrupted. A failed install does not stop the
// server; every request then goes to the network.
func ServeCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args)

	storage, err := OpenStorage(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStorage(storage)

	w, fetcher, err := NewWorker(cmd, storage)
	if err != nil {
		return err
	}

	h := worker.NewHost(fetcher)
	if err := w.Register(h); err != nil {
		return err
	}
	if err := h.Start(ctx); err != nil {
		log.WithError(err).Error("serving from the network only")
	}

	p, err := proxy.New(h, w.Options().Origin)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cmd.String("addr"))
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cmd.String("addr"), err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, ln, p, cmd)
}

// serve runs srv on ln until ctx is done.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, cmd *cli.Command) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second, //nolint:mnd
	}

	fmt.Fprintf(writer(cmd), "serving on http://%s\n", ln.Addr())
	log.WithField("addr", ln.Addr().String()).Info("listening")

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	log.Info("stopped")
	return nil
}

func ServeCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	flags := []cli.Flag{
		NameSpacedValueChainFlagFromConfigFile("serve", cfg.Source, &cli.StringFlag{
			Name:  "addr",
			Usage: "address to listen on",
			Value: "127.0.0.1:8888",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, NotEmptyValidator)
			},
		}),
		&cli.BoolFlag{
			Name:  "prune",
			Usage: "delete every other cache on activation",
		},
	}
	flags = append(flags, NewOriginFlags("serve", meta)...)
	flags = append(flags, NewStoreFlags("serve", meta)...)

	return &cli.Command{
		Name:      "serve",
		Usage:     "serve the origin through the offline cache",
		UsageText: "swcache serve --origin URL [--addr HOST:PORT] [options]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags:  flags,
		Action: ServeCommandAction,
	}
}
