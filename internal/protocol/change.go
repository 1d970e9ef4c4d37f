package protocol

import (
	"fmt"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/models"
)

// EncodeChange returns the message type and payload for a local change.
func EncodeChange(c models.Change) (string, []byte, error) {
	chart := FromChartKey(c.Chart)

	var (
		msgType string
		payload interface{}
	)
	switch c.Kind {
	case models.ChangeAdd, models.ChangeUpdate:
		if c.Shape == nil {
			return "", nil, fmt.Errorf("%s change without shape", c.Kind)
		}
		msgType = TypeAdd
		if c.Kind == models.ChangeUpdate {
			msgType = TypeUpdate
		}
		payload = ShapePayload{Chart: chart, Shape: SerializeShape(c.Shape), Version: c.Version}
	case models.ChangeDelete:
		msgType = TypeDelete
		payload = DeletePayload{Chart: chart, ID: c.ID, Version: c.Version}
	case models.ChangeClear:
		msgType = TypeClear
		payload = ClearPayload{Chart: chart, Version: c.Version}
	default:
		return "", nil, fmt.Errorf("unknown change kind %q", c.Kind)
	}

	data, err := Encode(payload)
	if err != nil {
		return "", nil, err
	}
	return msgType, data, nil
}

// DecodeChange decodes one of the four drawing mutation messages.
func DecodeChange(msgType string, data []byte, origin string) (models.Change, error) {
	change := models.Change{Origin: origin}

	switch msgType {
	case TypeAdd, TypeUpdate:
		var p ShapePayload
		if err := Decode(msgType, data, &p); err != nil {
			return change, err
		}
		shape, err := DeserializeShape(p.Shape)
		if err != nil {
			return change, errors.NewMessageError(msgType, "invalid shape", err)
		}
		change.Kind = models.ChangeAdd
		if msgType == TypeUpdate {
			change.Kind = models.ChangeUpdate
		}
		change.Chart = p.Chart.ToModel()
		change.Shape = shape
		change.Version = p.Version
	case TypeDelete:
		var p DeletePayload
		if err := Decode(msgType, data, &p); err != nil {
			return change, err
		}
		change.Kind = models.ChangeDelete
		change.Chart = p.Chart.ToModel()
		change.ID = p.ID
		change.Version = p.Version
	case TypeClear:
		var p ClearPayload
		if err := Decode(msgType, data, &p); err != nil {
			return change, err
		}
		change.Kind = models.ChangeClear
		change.Chart = p.Chart.ToModel()
		change.Version = p.Version
	default:
		return change, errors.NewMessageError(msgType, "not a change message", nil)
	}
	return change, nil
}

// EncodeSnapshot builds a drawing:sync-response payload.
func EncodeSnapshot(s models.Snapshot, requestID string) ([]byte, error) {
	shapes := make([]SerializedShape, 0, len(s.Shapes))
	for _, shape := range s.Shapes {
		shapes = append(shapes, SerializeShape(shape))
	}
	return Encode(SyncResponsePayload{
		Chart:      FromChartKey(s.Chart),
		Shapes:     shapes,
		Version:    s.Version,
		FutureDays: s.FutureDays,
		RequestID:  requestID,
	})
}

// DecodeSnapshot decodes a drawing:sync-response payload. The returned
// request ID is empty unless the responder echoed one.
func DecodeSnapshot(data []byte) (models.Snapshot, string, error) {
	var p SyncResponsePayload
	if err := Decode(TypeSyncResponse, data, &p); err != nil {
		return models.Snapshot{}, "", err
	}

	snap := models.Snapshot{
		Chart:      p.Chart.ToModel(),
		Shapes:     make([]*models.Shape, 0, len(p.Shapes)),
		Version:    p.Version,
		FutureDays: p.FutureDays,
	}
	for _, w := range p.Shapes {
		shape, err := DeserializeShape(w)
		if err != nil {
			return models.Snapshot{}, "", errors.NewMessageError(TypeSyncResponse, "invalid shape", err)
		}
		snap.Shapes = append(snap.Shapes, shape)
	}
	return snap, p.RequestID, nil
}
