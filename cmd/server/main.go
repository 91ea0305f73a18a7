package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-clinic-auth/internal/config"
	"github.com/jrsteele09/go-clinic-auth/server"
	"github.com/jrsteele09/go-clinic-auth/token/refresh/redisrepo"
	refreshrepofake "github.com/jrsteele09/go-clinic-auth/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-clinic-auth/users/repofake"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const revocationPruneInterval = 10 * time.Minute

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("stack", string(debug.Stack())).Msgf("Recovered from panic: %v", r)
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	repos, closeRepos, err := openRepos(c)
	if err != nil {
		return err
	}
	defer closeRepos()

	srv, err := server.New(c, repos)
	if err != nil {
		return err
	}
	if c.GetSeedDemoUsers() {
		if _, err := srv.SeedDemoUsers(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pruneRevocations(ctx, srv)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// openRepos picks redis for refresh tokens when REDIS_URL is set. Users are
// always kept in memory.
func openRepos(c config.Config) (server.Repos, func(), error) {
	repos := server.Repos{Users: fakeuserrepo.NewFakeUserRepo()}

	redisURL := c.GetRedisURL()
	if redisURL == "" {
		repos.Refresh = refreshrepofake.NewFakeRefreshTokenRepo()
		return repos, func() {}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return repos, nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return repos, nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("refresh tokens stored in redis")

	repos.Refresh = redisrepo.New(client, c.GetRedisNamespace())
	return repos, func() { _ = client.Close() }, nil
}

func pruneRevocations(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(revocationPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := srv.Tokens().PruneRevocations(); n > 0 {
				log.Debug().Int("count", n).Msg("pruned expired revocations")
			}
		}
	}
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
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
