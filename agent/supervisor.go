package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Supervisor runs a set of agents against one client.
type Supervisor struct {
	client Client
	agents []Agent
	logger *slog.Logger
}

func NewSupervisor(client Client, logger *slog.Logger, agents ...Agent) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		client: client,
		agents: agents,
		logger: logger.With("component", "agent_supervisor"),
	}
}

// Run starts every agent and blocks until all of them returned. Agents that
// stopped because the market closed are reported in the joined error.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("starting agents", "count", len(s.agents))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, a := range s.agents {
		wg.Add(1)
		go func(a Agent) {
			defer wg.Done()
			if err := a.Run(ctx, s.client); err != nil {
				s.logger.Warn("agent stopped", "agent", a.Name(), "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("agent %s: %w", a.Name(), err))
				mu.Unlock()
			}
		}(a)
	}

	wg.Wait()
	s.logger.Info("agents stopped")
	return errors.Join(errs...)
}
