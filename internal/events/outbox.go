package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condofee/internal/clock"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	EventInvoiceCreated   = "invoice.created"
	EventPaymentConfirmed = "payment.confirmed"
)

var ErrInvalidEvent = errors.New("invalid_event")

// Event is handed to notification delivery through the outbox table.
type Event struct {
	Type        string
	AggregateID snowflake.ID
	Payload     map[string]any
	DedupeKey   string
}

// Outbox writes events inside the caller's transaction so an event exists
// exactly when the state change it describes was committed.
type Outbox struct {
	genID *snowflake.Node
	clock clock.Clock
}

type Params struct {
	fx.In

	GenID *snowflake.Node
	Clock clock.Clock `optional:"true"`
}

func NewOutbox(p Params) *Outbox {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Outbox{genID: p.GenID, clock: c}
}

// PublishTx records evt on tx. A repeated dedupe key is ignored.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, evt Event) error {
	if o == nil {
		return nil
	}
	if tx == nil {
		return errors.New("outbox requires a transaction")
	}
	evt.Type = strings.TrimSpace(evt.Type)
	evt.DedupeKey = strings.TrimSpace(evt.DedupeKey)
	if evt.Type == "" || evt.DedupeKey == "" || evt.AggregateID == 0 {
		return ErrInvalidEvent
	}

	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}

	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(&Record{
			ID:          o.genID.Generate(),
			EventType:   evt.Type,
			AggregateID: evt.AggregateID,
			DedupeKey:   evt.DedupeKey,
			Payload:     datatypes.JSON(payload),
			CreatedAt:   o.clock.Now().UTC(),
		}).Error
}

// Pending lists unpublished events, oldest first.
func (o *Outbox) Pending(ctx context.Context, db *gorm.DB, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []Record
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_type, aggregate_id, dedupe_key, payload, created_at, published_at
		 FROM event_outbox WHERE published_at IS NULL ORDER BY created_at ASC, id ASC LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// MarkPublished stamps delivered events so they are not handed out again.
func (o *Outbox) MarkPublished(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`UPDATE event_outbox SET published_at = ? WHERE id IN ? AND published_at IS NULL`,
		o.clock.Now().UTC(),
		ids,
	).Error
}

type Record struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	EventType   string         `json:"event_type"`
	AggregateID snowflake.ID   `json:"aggregate_id"`
	DedupeKey   string         `json:"dedupe_key"`
	Payload     datatypes.JSON `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

func (Record) TableName() string { return "event_outbox" }
