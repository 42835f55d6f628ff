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

	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/api/handlers"
	"github.com/linesmerrill/disaster-intake-api/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	// initialize databases and router
	if err := a.Initialize(); err != nil {
		zap.S().Fatalw("failed to initialize", "error", err)
	}
	a.Scheduler.Start()

	port := a.Config.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.S().Infow("disaster-intake-api is up and running",
			"port", port,
			"url", a.Config.BaseURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalw("server stopped", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	a.Scheduler.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		zap.S().Errorw("failed to shut down server", "error", err)
	}
	if err := a.Close(ctx); err != nil {
		zap.S().Errorw("failed to close connections", "error", err)
	}
	_ = zap.S().Sync()
}
