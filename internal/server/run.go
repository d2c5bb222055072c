package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/sharekeeper/internal/logger"
	"github.com/dtroode/sharekeeper/internal/model"
)

// Run serves s until ctx is done or s stops on its own. A server that fails
// or exits early is reported as an error; otherwise s is shut down within
// shutdownTimeout.
func Run(ctx context.Context, s model.Server, sl model.SecurityLayer, logger *logger.Logger, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server on", "address", s.Address())
		errCh <- s.Start(sl)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			err = errors.New("server exited unexpectedly")
		}
		return fmt.Errorf("server %s stopped: %w", s.Address(), err)
	case <-ctx.Done():
	}

	logger.Info("received interruption signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", s.Address())
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("server %s stopped: %w", s.Address(), err)
	}
	return nil
}
