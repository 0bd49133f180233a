package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pedroavv1914/zappi-chatbot/internal/conversation"
	"github.com/pedroavv1914/zappi-chatbot/internal/models"
	"gorm.io/gorm"
)

// Store groups the three stores over one database.
type Store struct {
	Sessions  *SessionStore
	Cooldowns *CooldownGate
	Orders    *OrderRecorder

	db       *gorm.DB
	cooldown time.Duration
	now      func() time.Time
}

// Opts holds parameters for creating a Store.
type Opts struct {
	DB       *gorm.DB
	Cooldown time.Duration    // window armed when a session ends
	Now      func() time.Time // defaults to time.Now
}

// New creates a Store.
func New(opts Opts) (*Store, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	if opts.Cooldown < 0 {
		return nil, fmt.Errorf("store: cooldown must not be negative")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Store{
		Sessions:  NewSessionStore(opts.DB),
		Cooldowns: NewCooldownGate(opts.DB),
		Orders:    NewOrderRecorder(opts.DB),
		db:        opts.DB,
		cooldown:  opts.Cooldown,
		now:       now,
	}
	s.Sessions.now = now
	s.Orders.now = now
	return s, nil
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// CooldownActive reports whether (identity, tenant) is inside a cooldown at
// the store's current time.
func (s *Store) CooldownActive(ctx context.Context, identity, tenant string) (bool, error) {
	return s.Cooldowns.IsActive(ctx, identity, tenant, s.now())
}

// LoadSession returns the stored session, or reports found=false.
func (s *Store) LoadSession(ctx context.Context, identity, tenant string) (conversation.Session, bool, error) {
	return s.Sessions.Get(ctx, identity, tenant)
}

// Outcome is one engine result to persist for (Identity, Tenant).
type Outcome struct {
	Identity string
	Tenant   string
	Result   conversation.Result
}

// Applied reports what Apply wrote.
type Applied struct {
	Order         *models.Order // nil when no order was requested
	CooldownUntil time.Time     // zero unless the session ended
}

// Apply persists an outcome in one transaction: the order when requested,
// then either (delete session, arm cooldown) or an upsert of the session.
// Nothing is written when any step fails.
func (s *Store) Apply(ctx context.Context, o Outcome) (Applied, error) {
	var applied Applied
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := &OrderRecorder{db: tx, now: s.now, newRef: s.Orders.newRef}
		sessions := &SessionStore{db: tx, now: s.now}
		cooldowns := &CooldownGate{db: tx}

		if o.Result.Order != nil {
			rec, err := orders.Record(ctx, o.Tenant, o.Identity, *o.Result.Order)
			if err != nil {
				return err
			}
			applied.Order = rec
		}

		if !o.Result.Ended {
			return sessions.Put(ctx, o.Identity, o.Tenant, o.Result.Session)
		}
		if err := sessions.Delete(ctx, o.Identity, o.Tenant); err != nil {
			return err
		}
		until := s.now().Add(s.cooldown)
		if err := cooldowns.Arm(ctx, o.Identity, o.Tenant, until); err != nil {
			return err
		}
		applied.CooldownUntil = until
		return nil
	})
	if err != nil {
		return Applied{}, fmt.Errorf("store: apply %s/%s: %w", o.Tenant, o.Identity, err)
	}
	return applied, nil
}
