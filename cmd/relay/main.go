package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/paxest/chatrelay/internal/server"
	"github.com/paxest/chatrelay/internal/store"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components and manages the relay lifecycle. Keeping the
// logic out of main means every defer executes before the process exits and
// the wiring stays testable.
func run() (int, error) {
	_ = godotenv.Load()

	cfg, err := server.FromEnv()
	if err != nil {
		return exitConfig, err
	}
	server.SetConfig(cfg)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	st := store.New(cfg.DataFile, logger)
	doc := st.Load()
	go st.Run()
	defer st.Close()

	hub := server.NewHub(doc, st)
	go hub.Run()

	mux := server.SetupRoutes(hub, cfg)
	httpServer := server.CreateServer(cfg.Port, mux)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitRuntime, err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		return exitRuntime, err
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		return exitRuntime, err
	}

	return exitOK, nil
}
