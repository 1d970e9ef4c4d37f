package canvas

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"advisory-canvas/internal/logging"
	"advisory-canvas/internal/models"
	"advisory-canvas/internal/protocol"
	"advisory-canvas/internal/transport"
)

// Emitter turns local mutations into versioned Change messages and hands
// them to the transport. Emission is fire-and-forget: send failures are
// logged and counted, never retried.
type Emitter struct {
	sink    transport.Transport
	logger  zerolog.Logger
	version int64
	newID   func() string

	sent     int
	failures int
}

// NewEmitter creates an emitter that publishes through sink.
func NewEmitter(sink transport.Transport, logger zerolog.Logger) *Emitter {
	return &Emitter{
		sink:   sink,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Version returns the local version counter.
func (e *Emitter) Version() int64 {
	return e.version
}

// AdoptVersion raises the local counter to v after a sync. The counter
// never moves backwards.
func (e *Emitter) AdoptVersion(v int64) {
	if v > e.version {
		e.version = v
	}
}

// EnsureID assigns a fresh ID to shape if it has none.
func (e *Emitter) EnsureID(shape *models.Shape) {
	if shape.ID == "" {
		shape.ID = e.newID()
	}
}

// Create emits an add for shape.
func (e *Emitter) Create(chart models.ChartKey, shape *models.Shape) models.Change {
	e.EnsureID(shape)
	return e.emit(models.Change{Kind: models.ChangeAdd, Chart: chart, Shape: shape})
}

// Update emits an update for shape.
func (e *Emitter) Update(chart models.ChartKey, shape *models.Shape) models.Change {
	e.EnsureID(shape)
	return e.emit(models.Change{Kind: models.ChangeUpdate, Chart: chart, Shape: shape})
}

// Delete emits a delete for id.
func (e *Emitter) Delete(chart models.ChartKey, id string) models.Change {
	return e.emit(models.Change{Kind: models.ChangeDelete, Chart: chart, ID: id})
}

// Clear emits a clear for chart.
func (e *Emitter) Clear(chart models.ChartKey) models.Change {
	return e.emit(models.Change{Kind: models.ChangeClear, Chart: chart})
}

func (e *Emitter) emit(change models.Change) models.Change {
	e.version++
	change.Version = e.version
	change.Origin = e.sink.PeerID()

	shapeID := change.ID
	if change.Shape != nil {
		shapeID = change.Shape.ID
	}

	msgType, payload, err := protocol.EncodeChange(change)
	if err != nil {
		e.failures++
		logging.LogSendFailure(e.logger, string(change.Kind), err)
		return change
	}
	if err := e.sink.Send(msgType, payload); err != nil {
		e.failures++
		logging.LogSendFailure(e.logger, msgType, err)
		return change
	}
	e.sent++
	logging.LogChange(e.logger, "out", string(change.Kind), change.Chart.String(), shapeID, change.Version)
	return change
}
