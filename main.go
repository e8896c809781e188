// ChessTutor - play chess against the computer in the browser, with hints
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chesstutor/internal/engine"
	"github.com/hailam/chesstutor/internal/game"
	"github.com/hailam/chesstutor/internal/httpx"
	"github.com/hailam/chesstutor/internal/storage"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	addr       = flag.String("addr", getenv("CHESSTUTOR_ADDR", ":8080"), "HTTP listen address")
	dataDir    = flag.String("data", getenv("CHESSTUTOR_DATA", ""), "database directory (default: platform data dir)")
	aiDelay    = flag.Duration("ai-delay", -1, "pause before the computer moves (default: stored preference)")
	difficulty = flag.String("difficulty", "", "override the stored difficulty: beginner, easy, medium or hard")
	verbosity  = flag.Int("v", 0, "log verbosity")
)

func main() {
	flag.Parse()

	stdr.SetVerbosity(*verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("chesstutor")

	if err := run(logger); err != nil {
		log.Fatal(err)
	}
}

func run(logger logr.Logger) error {
	dbDir, err := storage.GetDatabaseDir(*dataDir)
	if err != nil {
		return err
	}
	store, err := storage.Open(dbDir)
	if err != nil {
		return err
	}
	defer store.Close()

	prefs, err := store.LoadPreferences()
	if err != nil {
		logger.Error(err, "load preferences, using defaults")
		prefs = storage.DefaultPreferences()
	}
	if *difficulty != "" {
		d, err := engine.ParseDifficulty(*difficulty)
		if err != nil {
			return err
		}
		prefs.Difficulty = d
	}
	if *aiDelay >= 0 {
		prefs.AIDelayMs = int(*aiDelay / time.Millisecond)
	}
	logger.Info("preferences loaded", "dir", dbDir, "difficulty", prefs.Difficulty.String(),
		"human", prefs.HumanColor, "aiDelay", prefs.AIDelay().String())

	eng, err := engine.NewEngine(engine.DefaultConfig())
	if err != nil {
		return err
	}
	defer eng.Close()

	session := game.NewSession(eng, game.WithLogger(logger.WithName("game")))
	srv := httpx.NewServer(session, store, prefs,
		httpx.WithLogger(logger.WithName("http")),
		httpx.WithAccessLog(os.Stdout),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Listen(*addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
