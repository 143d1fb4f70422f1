package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/spotifeye/internal/config"
	"github.com/jrsteele09/spotifeye/internal/metrics"
	"github.com/jrsteele09/spotifeye/server"
	"github.com/jrsteele09/spotifeye/session"
	"github.com/jrsteele09/spotifeye/spotify"
	"github.com/jrsteele09/spotifeye/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type flags struct {
	configFile string
	host       string
	port       int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "spotifeye",
		Short: "Spotify login and listening data API",
		Long: `spotifeye runs the backend for the SpotifEye frontend. It signs users in with
Spotify, issues its own session tokens and proxies the user's listening data.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{
				ConfigFile: f.configFile,
				Lookup:     f.lookup(cmd),
			})
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&f.configFile, "config", "", "TOML config file (default $CONFIG_FILE)")
	cmd.Flags().StringVar(&f.host, "host", "", "bind host, overrides BACKEND_HOST")
	cmd.Flags().IntVar(&f.port, "port", 0, "bind port, overrides BACKEND_PORT")
	return cmd
}

// lookup layers explicitly set flags over the process environment
func (f flags) lookup(cmd *cobra.Command) config.LookupFunc {
	return func(key string) (string, bool) {
		switch {
		case key == "BACKEND_HOST" && cmd.Flags().Changed("host"):
			return f.host, true
		case key == "BACKEND_PORT" && cmd.Flags().Changed("port"):
			return strconv.Itoa(f.port), true
		}
		return os.LookupEnv(key)
	}
}

func run(cfg config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	setupLogging(cfg)
	displayAppname(cfg.GetAppName())

	registry, closeRegistry, err := newRevocationRegistry(cfg)
	if err != nil {
		return err
	}
	defer closeRegistry()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	codec := token.NewCodec(token.NewHMACSigner(cfg.GetSecretKey()), token.WithDefaultTTL(cfg.GetSessionTokenExpiry()))
	client := spotify.New(cfg)

	flowOptions := []session.FlowOption{session.WithFlowMetrics(m)}
	if cfg.GetRequireOAuthState() {
		flowOptions = append(flowOptions, session.WithStateCheck(cfg.GetOAuthStateExpiry()))
	}

	handler := server.New(cfg, server.Deps{
		Validator: session.NewValidator(codec, registry, client, session.WithValidatorMetrics(m)),
		Flow:      session.NewFlow(client, codec, registry, flowOptions...),
		Resources: client,
		Metrics:   m,
		Gatherer:  promRegistry,
	})

	log.Info().Str("cors_origins", cfg.GetAllowedOrigins().String()).Msg("cors configured")

	srv := &http.Server{
		Addr:              cfg.GetAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(srv)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func newRevocationRegistry(cfg config.Config) (token.RevocationRegistry, func(), error) {
	if cfg.GetRevocationBackend() != config.RevocationBackendRedis {
		log.Info().Msg("using in-memory revocation registry")
		return token.NewInMemoryRevocationRegistry(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	})
	registry := token.NewRedisRevocationRegistry(client, cfg.GetRedisKeyPrefix())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := registry.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.GetRedisAddr(), err)
	}

	log.Info().Str("addr", cfg.GetRedisAddr()).Msg("using redis revocation registry")
	return registry, func() { _ = client.Close() }, nil
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
