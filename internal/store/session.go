// Package store persists conversation sessions, cooldowns and orders through
// gorm. Every tenant shares one database; rows are keyed by (identity, tenant).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pedroavv1914/zappi-chatbot/internal/conversation"
	"github.com/pedroavv1914/zappi-chatbot/internal/menu"
	"github.com/pedroavv1914/zappi-chatbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionStore reads and writes in-flight conversations.
type SessionStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSessionStore creates a SessionStore over db.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// Get loads the session for (identity, tenant). found is false when no row
// exists. A row with an unrecognised state or unreadable order comes back
// with an unknown state so the engine restarts the dialogue.
func (s *SessionStore) Get(ctx context.Context, identity, tenant string) (conversation.Session, bool, error) {
	var row models.Session
	err := s.db.WithContext(ctx).
		Where("identity = ? AND tenant = ?", identity, tenant).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return conversation.Session{}, false, nil
	}
	if err != nil {
		return conversation.Session{}, false, fmt.Errorf("store: get session %s/%s: %w", tenant, identity, err)
	}
	return decodeSession(row), true, nil
}

// Put inserts or overwrites the session for (identity, tenant).
func (s *SessionStore) Put(ctx context.Context, identity, tenant string, sess conversation.Session) error {
	row, err := encodeSession(identity, tenant, sess)
	if err != nil {
		return err
	}
	row.UpdatedAt = s.now().UTC()
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}, {Name: "tenant"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "order_items", "full_name", "phone", "address", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("store: put session %s/%s: %w", tenant, identity, err)
	}
	return nil
}

// Delete removes the session for (identity, tenant). Deleting a missing
// session is not an error.
func (s *SessionStore) Delete(ctx context.Context, identity, tenant string) error {
	err := s.db.WithContext(ctx).
		Where("identity = ? AND tenant = ?", identity, tenant).
		Delete(&models.Session{}).Error
	if err != nil {
		return fmt.Errorf("store: delete session %s/%s: %w", tenant, identity, err)
	}
	return nil
}

func encodeSession(identity, tenant string, sess conversation.Session) (models.Session, error) {
	items := sess.Order
	if items == nil {
		items = []menu.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return models.Session{}, fmt.Errorf("store: encode order for %s/%s: %w", tenant, identity, err)
	}
	return models.Session{
		Identity:   identity,
		Tenant:     tenant,
		State:      string(sess.State),
		OrderItems: string(data),
		FullName:   sess.FullName,
		Phone:      sess.Phone,
		Address:    sess.Address,
	}, nil
}

func decodeSession(row models.Session) conversation.Session {
	sess := conversation.Session{
		State:    conversation.State(row.State),
		FullName: row.FullName,
		Phone:    row.Phone,
		Address:  row.Address,
	}
	if !sess.State.Known() {
		return sess
	}
	if row.OrderItems != "" {
		if err := json.Unmarshal([]byte(row.OrderItems), &sess.Order); err != nil {
			return conversation.Session{State: stateCorrupt}
		}
	}
	return sess
}

// stateCorrupt marks a row whose order could not be decoded.
const stateCorrupt conversation.State = "corrupt"
