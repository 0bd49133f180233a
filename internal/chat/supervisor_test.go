package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedRunner returns a fixed error from Run, or blocks until ctx is
// cancelled when block is set.
type scriptedRunner struct {
	err   error
	block bool
}

func (s *scriptedRunner) Status() Status { return Status{Connected: true} }

func (s *scriptedRunner) Run(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return nil
	}
	return s.err
}

// factoryOf hands out runners in order and counts builds.
type factoryOf struct {
	mu      sync.Mutex
	runners []Runner
	builds  int
}

func (f *factoryOf) build(ctx context.Context) (Runner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.builds >= len(f.runners) {
		return nil, errors.New("no more runners")
	}
	r := f.runners[f.builds]
	f.builds++
	return r, nil
}

func (f *factoryOf) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds
}

func newTestSupervisor(t *testing.T, r *Registry, maxRestarts int) *Supervisor {
	t.Helper()
	s, err := NewSupervisor(SupervisorOpts{
		Registry:     r,
		RestartDelay: time.Millisecond,
		MaxRestarts:  maxRestarts,
		Out:          &syncBuffer{},
	})
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	return s
}

func TestNewSupervisor_RequiresRegistry(t *testing.T) {
	_, err := NewSupervisor(SupervisorOpts{})
	if err == nil || !strings.Contains(err.Error(), "registry is required") {
		t.Errorf("error = %v", err)
	}
}

func TestSupervisor_RestartsOnInvalidatedCredentials(t *testing.T) {
	r := NewRegistry()
	s := newTestSupervisor(t, r, 3)
	invalid := &scriptedRunner{err: ErrCredentialsInvalidated}
	f := &factoryOf{runners: []Runner{invalid, invalid, &scriptedRunner{block: true}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "t1", "Loja", f.build) }()

	waitFor(t, func() bool { return f.count() == 3 }, 2*time.Second)
	waitFor(t, func() bool {
		snap := r.Snapshot()
		return len(snap) == 1 && snap[0].State == StateConnected
	}, 2*time.Second)
	if got := r.Snapshot()[0].Restarts; got != 2 {
		t.Errorf("Restarts = %d, want 2", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v, want nil after cancel", err)
	}
}

func TestSupervisor_GivesUpAfterMaxRestarts(t *testing.T) {
	r := NewRegistry()
	s := newTestSupervisor(t, r, 2)
	invalid := &scriptedRunner{err: ErrCredentialsInvalidated}
	f := &factoryOf{runners: []Runner{invalid, invalid, invalid, invalid}}

	err := s.Run(context.Background(), "t1", "Loja", f.build)
	if !errors.Is(err, ErrCredentialsInvalidated) || !strings.Contains(err.Error(), "giving up after 2 restarts") {
		t.Errorf("error = %v", err)
	}
	if f.count() != 3 {
		t.Errorf("builds = %d, want 3 (initial + 2 restarts)", f.count())
	}
	if snap := r.Snapshot(); snap[0].State != StateFailed {
		t.Errorf("state = %q, want failed", snap[0].State)
	}
}

func TestSupervisor_OtherErrorsAreFinal(t *testing.T) {
	r := NewRegistry()
	s := newTestSupervisor(t, r, 5)
	f := &factoryOf{runners: []Runner{&scriptedRunner{err: errors.New("gateway exploded")}}}

	err := s.Run(context.Background(), "t1", "Loja", f.build)
	if err == nil || !strings.Contains(err.Error(), "gateway exploded") {
		t.Errorf("error = %v", err)
	}
	if f.count() != 1 {
		t.Errorf("builds = %d, want 1", f.count())
	}
}

func TestSupervisor_CleanExitIsRecorded(t *testing.T) {
	r := NewRegistry()
	s := newTestSupervisor(t, r, 5)
	f := &factoryOf{runners: []Runner{&scriptedRunner{}}}

	if err := s.Run(context.Background(), "t1", "Loja", f.build); !errors.Is(err, ErrInboundClosed) {
		t.Errorf("error = %v, want ErrInboundClosed", err)
	}
	if snap := r.Snapshot(); snap[0].State != StateFailed {
		t.Errorf("state = %q", snap[0].State)
	}
}

func TestSupervisor_FactoryError(t *testing.T) {
	r := NewRegistry()
	s := newTestSupervisor(t, r, 5)
	f := &factoryOf{}

	err := s.Run(context.Background(), "t1", "Loja", f.build)
	if err == nil || !strings.Contains(err.Error(), "build agent") {
		t.Errorf("error = %v", err)
	}
	if snap := r.Snapshot(); snap[0].State != StateFailed {
		t.Errorf("state = %q", snap[0].State)
	}
}

func TestSupervisor_RecreatesMockAdapterAgent(t *testing.T) {
	c := &clock{now: time.Now()}
	st := testStore(t, c)
	r := NewRegistry()
	s := newTestSupervisor(t, r, 1)

	var mu sync.Mutex
	var adapters []*MockAdapter
	factory := func(ctx context.Context) (Runner, error) {
		m := NewMockAdapter()
		mu.Lock()
		adapters = append(adapters, m)
		mu.Unlock()
		return newTestAgent(t, m, st, &syncBuffer{}), nil
	}
	latest := func() *MockAdapter {
		mu.Lock()
		defer mu.Unlock()
		return adapters[len(adapters)-1]
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(adapters)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, testTenant, "Pizzaria", factory) }()

	waitFor(t, func() bool { return count() == 1 && r.Snapshot()[0].Connected }, 2*time.Second)
	first := latest()
	first.SimulateInbound(InboundMessage{Sender: "D1", Text: "oi"})
	waitFor(t, func() bool { return first.SentCount() == 1 }, 2*time.Second)

	first.Invalidate(ErrCredentialsInvalidated)
	waitFor(t, func() bool { return count() == 2 && r.Snapshot()[0].Connected }, 2*time.Second)

	// The conversation resumes on the new transport where it left off.
	second := latest()
	second.SimulateInbound(InboundMessage{Sender: "D1", Text: "2"})
	waitFor(t, func() bool { return second.SentCount() == 1 }, 2*time.Second)
	if last, _ := second.LastSent(); !strings.Contains(last.Text, "separados por vírgula") {
		t.Errorf("reply after restart = %q", last.Text)
	}

	cancel()
	<-done
}
