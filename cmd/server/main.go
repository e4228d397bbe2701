package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Hangout/internal/adapters/http"
	"github.com/dkeye/Hangout/internal/adapters/rtc"
	wssignal "github.com/dkeye/Hangout/internal/adapters/signal"
	"github.com/dkeye/Hangout/internal/app"
	"github.com/dkeye/Hangout/internal/app/orch"
	"github.com/dkeye/Hangout/internal/auth"
	"github.com/dkeye/Hangout/internal/config"
	"github.com/dkeye/Hangout/internal/store"
	handlers "github.com/dkeye/Hangout/internal/transport/http"
)

var configEnv string

func main() {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	v := config.NewViper()
	rootCmd := &cobra.Command{
		Use:           "hangout",
		Short:         "Room and signaling server for group video calls",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configEnv)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	rootCmd.Flags().StringVar(&configEnv, "config-env", "", "config file suffix: config/config.<env>.yaml (default $CONFIG_ENV or dev)")
	rootCmd.Flags().Int("port", 0, "listen port (overrides config)")
	rootCmd.Flags().String("store", "", "room store driver: memory, sqlite, postgres or redis")
	_ = v.BindPFlag("port", rootCmd.Flags().Lookup("port"))
	_ = v.BindPFlag("store.driver", rootCmd.Flags().Lookup("store"))

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("hangout exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	roomStore, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		SQLitePath:  cfg.Store.SQLitePath,
		PostgresURL: cfg.Store.PostgresURL,
		RedisURL:    cfg.Store.RedisURL,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer roomStore.Close()

	webrtcCfg, err := rtc.NewWebRTCConfig(cfg.ICEServers)
	if err != nil {
		return err
	}

	rooms := app.NewRoomRegistry(roomStore)
	sessions := app.NewSessionRegistry()
	hub := wssignal.NewHub(app.SimplePolicy{})
	tokens := auth.NewJWTManager(cfg.Secret, cfg.TokenTTL)

	o := &orch.Orchestrator{
		Rooms:         rooms,
		Sessions:      sessions,
		Transport:     hub,
		Limiter:       app.NewRateLimiter(cfg.MessageRate.Limit, cfg.MessageRate.Interval),
		MaxRoomSize:   cfg.MaxRoomSize,
		MaxMessageLen: cfg.MaxMessageLen,
	}
	ctrl := &wssignal.SignalWSController{
		Orch:       o,
		Hub:        hub,
		Verifier:   tokens,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	}
	h := &handlers.Handlers{
		Rooms:    rooms,
		Sessions: sessions,
		Tokens:   tokens,
		Store:    roomStore,
		WebRTC:   webrtcCfg,
	}

	r := router.SetupRouter(ctx, cfg, h, ctrl)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.WithCORS(r, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Hangout server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
