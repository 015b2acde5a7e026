package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ReaperOAK/player-auction/internal/api"
	"github.com/ReaperOAK/player-auction/internal/auction"
	"github.com/ReaperOAK/player-auction/internal/auth"
	"github.com/ReaperOAK/player-auction/internal/bot"
	"github.com/ReaperOAK/player-auction/internal/bot/commands"
	"github.com/ReaperOAK/player-auction/internal/broadcast"
	"github.com/ReaperOAK/player-auction/internal/clock"
	"github.com/ReaperOAK/player-auction/internal/config"
	"github.com/ReaperOAK/player-auction/internal/health"
	"github.com/ReaperOAK/player-auction/internal/leader"
	"github.com/ReaperOAK/player-auction/internal/relay"
	"github.com/ReaperOAK/player-auction/internal/roster"
	"github.com/ReaperOAK/player-auction/internal/store"
	"github.com/ReaperOAK/player-auction/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/ReaperOAK/player-auction/internal/store/memstore"
	_ "github.com/ReaperOAK/player-auction/internal/store/postgres"
)

var version = "dev"

const recoverRetry = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the configuration")
	showVersion := flag.Bool("version", false, "print version and exit")
	mint := flag.String("mint-token", "", "print a bearer token for role:id:name and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("loading env file failed", slog.String("path", *envFile), slog.Any("error", err))
	}

	var err error
	if *mint != "" {
		err = mintToken(*configPath, *mint)
	} else {
		err = run(*configPath)
	}
	if err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func mintToken(configPath, spec string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	p, err := auth.ParsePrincipal(spec)
	if err != nil {
		return err
	}
	token, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clock.Real()).Issue(p)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stdout)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewLocalProvider(cfg.Telemetry.ServiceName, os.Stdout)
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real()

	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to database", slog.String("driver", cfg.Database.Driver))

	rosterSvc := roster.NewService(repos.Players, repos.Teams, repos.Events, logger, tp.TracerProvider)

	// The hub and the announcer read state lazily; mgr is set before
	// either of them runs.
	var mgr *auction.Manager
	state := func() auction.View { return mgr.State() }

	hub, err := broadcast.NewHub(cfg.WebSocket, state, api.CheckOrigin(cfg.Server.CORSOrigins), logger, tp.MeterProvider, clk)
	if err != nil {
		return fmt.Errorf("creating hub: %w", err)
	}
	publishers := auction.Publishers{hub}

	if cfg.NATS.Enabled {
		js, closeNATS, natsErr := relay.Connect(ctx, cfg.NATS, logger)
		if natsErr != nil {
			return fmt.Errorf("connecting relay: %w", natsErr)
		}
		defer closeNATS()
		rel, relErr := relay.New(js, cfg.NATS, logger, tp.MeterProvider)
		if relErr != nil {
			return fmt.Errorf("creating relay: %w", relErr)
		}
		publishers = append(publishers, rel)
		go func() { _ = rel.Run(ctx) }()
		logger.InfoContext(ctx, "relaying events to JetStream", slog.String("stream", cfg.NATS.Stream))
	}

	var discordBot *bot.Bot
	if cfg.Discord.Enabled() {
		discordBot, err = bot.New(cfg.Discord, commands.StateFunc(state), rosterSvc, logger, tp.TracerProvider)
		if err != nil {
			return fmt.Errorf("creating bot: %w", err)
		}
		publishers = append(publishers, discordBot)
		go discordBot.Run(ctx)
	}

	mgr, err = auction.NewManager(repos.Ledger, publishers, cfg.Auction, logger, tp.TracerProvider, tp.MeterProvider, clk)
	if err != nil {
		return fmt.Errorf("creating auction manager: %w", err)
	}
	// Mutations fail until serve has recovered the ledger state, so a
	// follower replica never writes.
	mgr.Close()
	go hub.Run(ctx)

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clk)
	apiServer := api.NewServer(mgr, rosterSvc, hub, issuer, cfg.Server.CORSOrigins, logger, tp.TracerProvider)

	status := &leader.Status{}
	checkers := []health.Checker{{Name: "database", Check: repos.Ping}}
	if cfg.LeaderElection.Enabled {
		checkers = append(checkers, health.Checker{Name: "leader", Check: status.Check})
	}
	healthHandler := health.NewHandler(clk, checkers...)

	// Health probes run on all replicas.
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HealthPort),
		Handler:           healthHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}
	for name, srv := range map[string]*http.Server{"health": healthServer, "api": httpServer} {
		go func() {
			logger.InfoContext(ctx, "starting server", slog.String("server", name), slog.String("addr", srv.Addr))
			if listenErr := srv.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
				logger.ErrorContext(ctx, "server error", slog.String("server", name), slog.Any("error", listenErr))
				cancel()
			}
		}()
	}

	// serve owns the auction state. With leader election only the leader
	// runs it, and it returns when the lease is lost.
	serve := func(ctx context.Context) {
		healthHandler.SetReady(false, "recovering auction state")
		for {
			v, recoverErr := mgr.Recover(ctx)
			if recoverErr == nil {
				logger.InfoContext(ctx, "auction state ready",
					slog.String("status", string(v.Status)),
					slog.Int64("version", v.Version),
				)
				break
			}
			healthHandler.SetReady(false, "auction state recovery failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(recoverRetry):
			}
		}

		if discordBot != nil {
			if botErr := discordBot.Start(ctx); botErr != nil {
				logger.ErrorContext(ctx, "starting bot failed", slog.Any("error", botErr))
			}
		}

		healthHandler.SetReady(true, "")
		logger.InfoContext(ctx, "auctiond is serving", slog.String("version", version))

		<-ctx.Done()

		healthHandler.SetReady(false, "stopping")
		mgr.Close()
		if discordBot != nil {
			if stopErr := discordBot.Stop(); stopErr != nil {
				logger.Error("bot shutdown error", slog.Any("error", stopErr))
			}
		}
	}

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")
		healthHandler.SetReady(true, "")
		if leaderErr := leader.Run(ctx, cfg.LeaderElection, logger, status, serve); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else {
		serve(ctx)
	}
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	for name, srv := range map[string]*http.Server{"api": httpServer, "health": healthServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.String("server", name), slog.Any("error", err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}
