package canvas

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"advisory-canvas/internal/models"
	"advisory-canvas/internal/protocol"
)

// SyncCoordinator runs the snapshot request/response exchange.
//
// In the default mode any response for the requested chart is adopted and
// the last one processed wins. With strictEpoch set, each request carries a
// fresh ID and only responses echoing the latest ID for that chart are
// adopted.
type SyncCoordinator struct {
	strictEpoch bool
	pending     map[models.ChartKey]string
	logger      zerolog.Logger
	newID       func() string

	requests int
	adopted  int
	rejected int
}

// NewSyncCoordinator creates a coordinator.
func NewSyncCoordinator(strictEpoch bool, logger zerolog.Logger) *SyncCoordinator {
	return &SyncCoordinator{
		strictEpoch: strictEpoch,
		pending:     make(map[models.ChartKey]string),
		logger:      logger,
		newID:       uuid.NewString,
	}
}

// Request builds a drawing:sync-request payload for chart.
func (s *SyncCoordinator) Request(chart models.ChartKey) ([]byte, error) {
	p := protocol.SyncRequestPayload{Chart: protocol.FromChartKey(chart)}
	if s.strictEpoch {
		p.RequestID = s.newID()
		s.pending[chart] = p.RequestID
	}
	data, err := protocol.Encode(p)
	if err != nil {
		return nil, err
	}
	s.requests++
	return data, nil
}

// ShouldAnswer reports whether this replica holds state for chart: either
// it is the active chart or the replica has shapes for it.
func (s *SyncCoordinator) ShouldAnswer(active, chart models.ChartKey, registry *Registry) bool {
	if chart == active {
		return true
	}
	st, ok := registry.Lookup(chart)
	return ok && st.Len() > 0
}

// Respond builds a drawing:sync-response payload echoing requestID.
func (s *SyncCoordinator) Respond(snap models.Snapshot, requestID string) ([]byte, error) {
	return protocol.EncodeSnapshot(snap, requestID)
}

// Accept decides whether a response to requestID for chart is adopted.
func (s *SyncCoordinator) Accept(chart models.ChartKey, requestID string) bool {
	if s.strictEpoch {
		want, ok := s.pending[chart]
		if !ok || requestID != want {
			s.rejected++
			s.logger.Debug().
				Str("chart", chart.String()).
				Str("request_id", requestID).
				Str("want", want).
				Msg("Stale sync response rejected")
			return false
		}
	}
	s.adopted++
	return true
}

// Adopt overwrites store with the snapshot shapes.
func (s *SyncCoordinator) Adopt(store *Store, snap models.Snapshot) {
	store.Replace(snap.Shapes)
}
