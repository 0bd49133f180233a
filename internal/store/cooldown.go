package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pedroavv1914/zappi-chatbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CooldownGate suppresses new conversations for a while after one ends.
type CooldownGate struct {
	db *gorm.DB
}

// NewCooldownGate creates a CooldownGate over db.
func NewCooldownGate(db *gorm.DB) *CooldownGate {
	return &CooldownGate{db: db}
}

// IsActive reports whether a cooldown for (identity, tenant) is still
// running at now. Expired rows are treated as absent.
func (g *CooldownGate) IsActive(ctx context.Context, identity, tenant string, now time.Time) (bool, error) {
	var row models.Cooldown
	err := g.db.WithContext(ctx).
		Where("identity = ? AND tenant = ?", identity, tenant).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: get cooldown %s/%s: %w", tenant, identity, err)
	}
	return now.Before(row.Until), nil
}

// Arm sets the cooldown for (identity, tenant) to expire at until,
// replacing any previous one.
func (g *CooldownGate) Arm(ctx context.Context, identity, tenant string, until time.Time) error {
	row := models.Cooldown{Identity: identity, Tenant: tenant, Until: until.UTC()}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}, {Name: "tenant"}},
		DoUpdates: clause.AssignmentColumns([]string{"cooldown_until"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("store: arm cooldown %s/%s: %w", tenant, identity, err)
	}
	return nil
}

// Sweep deletes cooldowns that expired at or before now and returns how
// many were removed.
func (g *CooldownGate) Sweep(ctx context.Context, now time.Time) (int64, error) {
	res := g.db.WithContext(ctx).
		Where("cooldown_until <= ?", now.UTC()).
		Delete(&models.Cooldown{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: sweep cooldowns: %w", res.Error)
	}
	return res.RowsAffected, nil
}
