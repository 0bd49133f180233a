package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pedroavv1914/zappi-chatbot/internal/conversation"
	"github.com/pedroavv1914/zappi-chatbot/internal/metrics"
	"github.com/pedroavv1914/zappi-chatbot/internal/store"
)

// Persistence is the slice of the store an Agent needs. *store.Store
// satisfies it.
type Persistence interface {
	CooldownActive(ctx context.Context, identity, tenant string) (bool, error)
	LoadSession(ctx context.Context, identity, tenant string) (conversation.Session, bool, error)
	Apply(ctx context.Context, o store.Outcome) (store.Applied, error)
}

// Status is a read-only snapshot of an agent's transport.
type Status struct {
	Connected          bool
	PendingPairingCode bool
}

// Agent runs one tenant's conversations over one adapter.
type Agent struct {
	tenant        string
	adapter       Adapter
	engine        *conversation.Engine
	store         Persistence
	metrics       *metrics.Metrics
	retryAttempts int
	retryBackoff  time.Duration
	out           io.Writer
	connected     atomic.Bool
}

// AgentOpts holds parameters for creating an Agent.
type AgentOpts struct {
	Tenant        string
	Adapter       Adapter
	Engine        *conversation.Engine
	Store         Persistence
	Metrics       *metrics.Metrics // optional
	RetryAttempts int              // extra attempts after a persistence failure
	RetryBackoff  time.Duration    // pause between attempts
	Out           io.Writer        // defaults to os.Stdout
}

// NewAgent creates an Agent with the given options.
func NewAgent(opts AgentOpts) (*Agent, error) {
	if opts.Tenant == "" {
		return nil, fmt.Errorf("chat: tenant is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("chat: adapter is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("chat: engine is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("chat: store is required")
	}
	if opts.RetryAttempts < 0 {
		return nil, fmt.Errorf("chat: retry attempts must not be negative")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Agent{
		tenant:        opts.Tenant,
		adapter:       opts.Adapter,
		engine:        opts.Engine,
		store:         opts.Store,
		metrics:       opts.Metrics,
		retryAttempts: opts.RetryAttempts,
		retryBackoff:  opts.RetryBackoff,
		out:           out,
	}, nil
}

// Tenant returns the tenant this agent serves.
func (a *Agent) Tenant() string {
	return a.tenant
}

// Status returns the current transport snapshot.
func (a *Agent) Status() Status {
	st := Status{Connected: a.connected.Load()}
	if p, ok := a.adapter.(Pairer); ok {
		st.PendingPairingCode = p.PairingPending()
	}
	return st
}

// Run connects the adapter and handles inbound messages one at a time until
// ctx is cancelled or the adapter closes its channel. The adapter is closed
// on every return path. When the adapter reports an exit reason through
// Exiter, Run returns it.
func (a *Agent) Run(ctx context.Context) error {
	fmt.Fprintf(a.out, "[%s] Connecting...\n", a.tenant)
	if err := a.adapter.Connect(ctx); err != nil {
		a.adapter.Close()
		return fmt.Errorf("chat: %s: connect: %w", a.tenant, err)
	}
	inbound, err := a.adapter.Listen(ctx)
	if err != nil {
		a.adapter.Close()
		return fmt.Errorf("chat: %s: listen: %w", a.tenant, err)
	}
	a.connected.Store(true)
	defer a.connected.Store(false)
	fmt.Fprintf(a.out, "[%s] Connected\n", a.tenant)

	for {
		select {
		case <-ctx.Done():
			if err := a.adapter.Close(); err != nil {
				log.Printf("chat: %s: close adapter: %v", a.tenant, err)
			}
			fmt.Fprintf(a.out, "[%s] Stopped\n", a.tenant)
			return nil

		case msg, ok := <-inbound:
			if !ok {
				a.adapter.Close()
				fmt.Fprintf(a.out, "[%s] Inbound channel closed\n", a.tenant)
				if ex, ok := a.adapter.(Exiter); ok && ex.Err() != nil {
					return fmt.Errorf("chat: %s: %w", a.tenant, ex.Err())
				}
				return nil
			}
			a.handleWithRetry(ctx, msg)
		}
	}
}

// handleWithRetry runs Handle, repeating it after persistence failures.
// Handle writes nothing until its final transaction, so a repeat never
// applies a message twice.
func (a *Agent) handleWithRetry(ctx context.Context, msg InboundMessage) {
	var err error
	for attempt := 0; attempt <= a.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(a.retryBackoff):
			}
		}
		if err = a.Handle(ctx, msg); err == nil {
			return
		}
		log.Printf("chat: %s: handle message from %s (attempt %d): %v", a.tenant, msg.Sender, attempt+1, err)
	}
	a.metrics.Message(a.tenant, metrics.OutcomeFailed)
}

// Handle processes one inbound message: cooldown check, session load, engine
// step, persistence, then replies. Persistence errors are returned and no
// reply is sent. Send failures are logged only; the transition already
// stands.
func (a *Agent) Handle(ctx context.Context, msg InboundMessage) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" || msg.Sender == "" {
		a.metrics.Message(a.tenant, metrics.OutcomeIgnoredEmpty)
		return nil
	}

	active, err := a.store.CooldownActive(ctx, msg.Sender, a.tenant)
	if err != nil {
		return err
	}
	if active {
		fmt.Fprintf(a.out, "[%s] Cooldown active for %s, ignoring message\n", a.tenant, msg.Sender)
		a.metrics.Message(a.tenant, metrics.OutcomeDroppedCooldown)
		return nil
	}

	sess, found, err := a.store.LoadSession(ctx, msg.Sender, a.tenant)
	if err != nil {
		return err
	}
	if !found {
		sess = conversation.NewSession()
	}

	res := a.engine.Step(sess, text)
	applied, err := a.store.Apply(ctx, store.Outcome{Identity: msg.Sender, Tenant: a.tenant, Result: res})
	if err != nil {
		return err
	}

	a.metrics.Message(a.tenant, metrics.OutcomeHandled)
	if res.Ended {
		a.metrics.SessionEnded(a.tenant)
	}
	if applied.Order != nil {
		a.metrics.Order(a.tenant, applied.Order.FulfillmentType)
		fmt.Fprintf(a.out, "[%s] Order %s recorded (%s, %s)\n", a.tenant, applied.Order.Ref,
			applied.Order.FulfillmentType, conversation.FormatPrice(applied.Order.Total))
	}

	for _, text := range res.Messages {
		if err := a.adapter.Send(ctx, OutboundMessage{To: msg.Sender, Text: text}); err != nil {
			a.metrics.SendFailure(a.tenant)
			log.Printf("chat: %s: send to %s: %v", a.tenant, msg.Sender, err)
			if errors.Is(err, context.Canceled) {
				return nil
			}
		}
	}
	return nil
}
