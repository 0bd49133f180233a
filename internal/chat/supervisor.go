package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Runner is a running tenant agent. *Agent satisfies it.
type Runner interface {
	StatusReporter
	Run(ctx context.Context) error
}

// Factory builds a fresh agent, including a new adapter, for one tenant.
type Factory func(ctx context.Context) (Runner, error)

// ErrInboundClosed is recorded when an agent's stream ends without an
// error while the process is still running.
var ErrInboundClosed = errors.New("chat: inbound stream closed")

// Default restart policy.
const (
	DefaultRestartDelay = 5 * time.Second
	DefaultMaxRestarts  = 5
)

// Supervisor recreates agents whose credentials were invalidated. It only
// manages transports; conversation state in the store is never touched.
type Supervisor struct {
	registry     *Registry
	restartDelay time.Duration
	maxRestarts  int
	out          io.Writer
}

// SupervisorOpts holds parameters for creating a Supervisor.
type SupervisorOpts struct {
	Registry     *Registry
	RestartDelay time.Duration // defaults to DefaultRestartDelay
	MaxRestarts  int           // 0 disables restarts; negative uses DefaultMaxRestarts
	Out          io.Writer     // defaults to os.Stdout
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(opts SupervisorOpts) (*Supervisor, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("chat: registry is required")
	}
	delay := opts.RestartDelay
	if delay <= 0 {
		delay = DefaultRestartDelay
	}
	maxRestarts := opts.MaxRestarts
	if maxRestarts < 0 {
		maxRestarts = DefaultMaxRestarts
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Supervisor{
		registry:     opts.Registry,
		restartDelay: delay,
		maxRestarts:  maxRestarts,
		out:          out,
	}, nil
}

// Run builds an agent from factory and runs it until ctx is cancelled. When
// the agent exits with ErrCredentialsInvalidated it is recreated after the
// restart delay, at most maxRestarts times. Any other exit is final and is
// recorded in the registry.
func (s *Supervisor) Run(ctx context.Context, tenant, displayName string, factory Factory) error {
	restarts := 0
	for {
		agent, err := factory(ctx)
		if err != nil {
			err = fmt.Errorf("chat: %s: build agent: %w", tenant, err)
			s.registry.MarkFailed(tenant, displayName, err)
			return err
		}
		s.registry.Register(tenant, displayName, agent)

		err = agent.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			s.registry.MarkFailed(tenant, displayName, ErrInboundClosed)
			return ErrInboundClosed
		}
		if !errors.Is(err, ErrCredentialsInvalidated) {
			s.registry.MarkFailed(tenant, displayName, err)
			return err
		}
		if restarts >= s.maxRestarts {
			err = fmt.Errorf("chat: %s: giving up after %d restarts: %w", tenant, restarts, err)
			s.registry.MarkFailed(tenant, displayName, err)
			return err
		}

		restarts++
		s.registry.MarkRestarting(tenant, restarts)
		log.Printf("chat: %s: credentials invalidated, restarting agent (%d/%d)", tenant, restarts, s.maxRestarts)
		fmt.Fprintf(s.out, "[%s] Credentials invalidated; recreating agent in %v\n", tenant, s.restartDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.restartDelay):
		}
	}
}
