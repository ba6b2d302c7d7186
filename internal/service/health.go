package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const readinessTimeout = 2 * time.Second

// Pinger is anything whose reachability decides readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is one named readiness check.
type Dependency struct {
	Name   string
	Pinger Pinger
}

type HealthService interface {
	Liveness(ctx context.Context) error
	// Readiness pings every dependency and reports the first that fails.
	Readiness(ctx context.Context) error
}

type healthService struct {
	deps   []Dependency
	logger *slog.Logger
}

func NewHealthService(logger *slog.Logger, deps ...Dependency) HealthService {
	return &healthService{
		deps:   deps,
		logger: logger.With("layer", "service", "component", "healthService"),
	}
}

func (s *healthService) Liveness(context.Context) error {
	return nil
}

func (s *healthService) Readiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := s.ping(ctx, dep); err != nil {
			s.logger.Warn("Readiness check failed", slog.String("dependency", dep.Name), slog.Any("error", err))
			return fmt.Errorf("%s: %w", dep.Name, err)
		}
	}
	s.logger.Debug("Readiness check passed", slog.Int("dependencies", len(s.deps)))
	return nil
}

func (s *healthService) ping(ctx context.Context, dep Dependency) error {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	return dep.Pinger.Ping(ctx)
}
