package picking

import (
	"gorm.io/gorm"
)

// Event is a progress notification emitted by the engine for dashboards
type Event struct {
	Type        string         `json:"type"`
	BatchID     uint           `json:"batch_id"`
	BatchNumber string         `json:"batch_number,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Event types published by the engine
const (
	EventBatchCreated   = "BATCH_CREATED"
	EventBatchEdited    = "BATCH_EDITED"
	EventBatchDeleted   = "BATCH_DELETED"
	EventSessionStarted = "SESSION_STARTED"
	EventPickConfirmed  = "PICK_CONFIRMED"
	EventItemSkipped    = "ITEM_SKIPPED"
	EventBatchCompleted = "BATCH_COMPLETED"
)

// EventSink receives engine events. Implementations must not block.
type EventSink interface {
	Publish(event Event)
}

// Engine owns the batch lifecycle: claims, sequencing, snapshots and the
// pick state machine. All mutating operations run in a single transaction
// and roll back fully on error.
type Engine struct {
	db   *gorm.DB
	sink EventSink
}

// NewEngine creates a picking engine over the given database
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// SetEventSink attaches a sink for progress events
func (e *Engine) SetEventSink(sink EventSink) {
	e.sink = sink
}

func (e *Engine) notify(eventType string, batchID uint, batchNumber string, data map[string]any) {
	if e.sink == nil {
		return
	}
	e.sink.Publish(Event{
		Type:        eventType,
		BatchID:     batchID,
		BatchNumber: batchNumber,
		Data:        data,
	})
}
