package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pedroavv1914/zappi-chatbot/internal/conversation"
	"github.com/pedroavv1914/zappi-chatbot/internal/models"
	"gorm.io/gorm"
)

// DefaultListLimit caps List when the filter does not set a limit.
const DefaultListLimit = 50

// OrderRecorder appends completed orders. Orders are never updated or
// deleted.
type OrderRecorder struct {
	db     *gorm.DB
	now    func() time.Time
	newRef func() string
}

// NewOrderRecorder creates an OrderRecorder over db.
func NewOrderRecorder(db *gorm.DB) *OrderRecorder {
	return &OrderRecorder{db: db, now: time.Now, newRef: uuid.NewString}
}

// OrderFilter narrows List. Zero values mean all tenants and DefaultListLimit.
type OrderFilter struct {
	Tenant string
	Limit  int
}

// Record inserts one order for (tenant, identity) and returns the stored row.
func (r *OrderRecorder) Record(ctx context.Context, tenant, identity string, req conversation.OrderRequest) (*models.Order, error) {
	lines := make([]models.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, models.OrderLine{Name: it.Name, Price: it.Price})
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("store: encode order items: %w", err)
	}

	order := models.Order{
		Ref:             r.newRef(),
		Tenant:          tenant,
		Identity:        identity,
		Items:           string(data),
		Total:           req.Total(),
		FulfillmentType: string(req.Fulfillment),
		CustomerName:    req.Name,
		Phone:           req.Phone,
		Address:         req.Address,
		CreatedAt:       r.now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("store: record order %s/%s: %w", tenant, identity, err)
	}
	return &order, nil
}

// List returns recorded orders newest first.
func (r *OrderRecorder) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if f.Tenant != "" {
		q = q.Where("tenant = ?", f.Tenant)
	}
	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("store: list orders: %w", err)
	}
	return orders, nil
}

// Lines decodes the items of a stored order.
func Lines(o models.Order) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	if err := json.Unmarshal([]byte(o.Items), &lines); err != nil {
		return nil, fmt.Errorf("store: decode items of order %s: %w", o.Ref, err)
	}
	return lines, nil
}
