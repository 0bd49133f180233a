package store

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Sweeper removes expired cooldown rows on a schedule. It is housekeeping
// only; IsActive ignores expired rows regardless.
type Sweeper struct {
	cron *cron.Cron
}

// StartSweeper schedules gate.Sweep per spec and returns once the schedule is
// running. An empty spec disables sweeping and returns a nil Sweeper. The
// schedule stops when ctx is cancelled.
func StartSweeper(ctx context.Context, gate *CooldownGate, spec string, out io.Writer) (*Sweeper, error) {
	if spec == "" {
		return nil, nil
	}
	if gate == nil {
		return nil, fmt.Errorf("store: sweeper: cooldown gate is required")
	}
	if out == nil {
		out = io.Discard
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("store: sweeper: parse %q: %w", spec, err)
	}

	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(sched, cron.FuncJob(func() {
		n, err := gate.Sweep(ctx, time.Now())
		if err != nil {
			log.Printf("store: sweeper: %v", err)
			return
		}
		if n > 0 {
			fmt.Fprintf(out, "Swept %d expired cooldown(s)\n", n)
		}
	}))
	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return &Sweeper{cron: c}, nil
}

// Next returns the next scheduled sweep, zero for a nil Sweeper.
func (s *Sweeper) Next() time.Time {
	if s == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
}
