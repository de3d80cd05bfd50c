// Package tasks runs background work on asynq: invoice email delivery and
// the periodic overdue sweep.
package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	appbilling "github.com/invoicing/backend/internal/application/billing"
	"github.com/invoicing/backend/internal/infrastructure/config"
)

// Task types
const (
	TypeInvoiceEmailDeliver = "invoice:email:deliver"
	TypeOverdueSweep        = "invoice:overdue:sweep"
)

// Queue names, matching the default worker queue weights
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// OverdueSweepPayload optionally pins the reference time of a sweep.
// A zero AsOf means "now" at processing time.
type OverdueSweepPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// NewInvoiceEmailTask builds the delivery task for one InvoiceSent event
func NewInvoiceEmailTask(payload appbilling.InvoiceEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal invoice email payload: %w", err)
	}
	return asynq.NewTask(TypeInvoiceEmailDeliver, data), nil
}

// NewOverdueSweepTask builds a sweep task
func NewOverdueSweepTask(asOf time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(OverdueSweepPayload{AsOf: asOf})
	if err != nil {
		return nil, fmt.Errorf("marshal overdue sweep payload: %w", err)
	}
	return asynq.NewTask(TypeOverdueSweep, data), nil
}

// RedisConnOpt converts the redis settings into asynq connection options
func RedisConnOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}
