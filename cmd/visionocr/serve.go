package main

import (
	"context"
	"time"

	"github.com/Abraxas-365/visionocr/auth"
	"github.com/Abraxas-365/visionocr/eventx"
	"github.com/Abraxas-365/visionocr/logx"
	"github.com/Abraxas-365/visionocr/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logx.Named("serve")
			if addr == "" {
				addr = settings.Server.Addr
			}

			files, err := fileSystem(ctx, settings)
			if err != nil {
				return err
			}
			backend, err := openBackend(ctx, settings, imageLoader(settings, files))
			if err != nil {
				return err
			}
			defer backend.Close()

			bus := eventx.NewMemoryBus()
			defer bus.Close()
			bus.Subscribe(eventx.AllEvents, eventx.LogSink(logx.Named("events")))

			opts := []server.Option{
				server.WithEvents(bus),
				server.WithLogger(log),
				server.WithInfo(backendInfo(backend)),
				server.WithExtractOptions(extractDefaults(settings)...),
				server.WithLimits(settings.Server.BodyLimitMB<<20, settings.Server.ReadTimeout, settings.Server.WriteTimeout),
			}
			store, err := openStore(ctx, settings)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close(context.WithoutCancel(ctx))
				opts = append(opts, server.WithStore(store))
			}
			if settings.Server.JWTSecret != "" {
				tokens, err := auth.NewTokenService(settings.Server.JWTSecret, 0)
				if err != nil {
					return err
				}
				opts = append(opts, server.WithTokens(tokens))
			} else {
				log.Warn("server.jwt_secret is empty; the API is unauthenticated")
			}

			srv := server.New(backend, opts...)
			errc := make(chan error, 1)
			go func() { errc <- srv.Listen(addr) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				log.Info("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}
