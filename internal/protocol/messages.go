// Package protocol defines the JSON wire format exchanged over the signaling
// transport and converts it to and from the annotation models.
package protocol

import (
	"github.com/moznion/go-optional"

	"advisory-canvas/internal/models"
)

// Message types carried by the signaling transport.
const (
	TypeAdd          = "drawing:add"
	TypeUpdate       = "drawing:update"
	TypeDelete       = "drawing:delete"
	TypeClear        = "drawing:clear"
	TypeSyncRequest  = "drawing:sync-request"
	TypeSyncResponse = "drawing:sync-response"
	TypeChartChange  = "chart:change"
	TypeFutureSpace  = "futureSpace:update"
)

// MessageTypes lists every message type a replica subscribes to.
var MessageTypes = []string{
	TypeAdd,
	TypeUpdate,
	TypeDelete,
	TypeClear,
	TypeSyncRequest,
	TypeSyncResponse,
	TypeChartChange,
	TypeFutureSpace,
}

// ChartKey is the wire form of models.ChartKey.
type ChartKey struct {
	Ticker string `json:"ticker" validate:"required,ticker"`
	Period string `json:"period" validate:"required,period"`
}

// Point is the wire form of models.Point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the wire form of models.Rect.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
}

// Style is the wire form of models.Style.
type Style struct {
	Stroke      string    `json:"stroke" validate:"max=64"`
	StrokeWidth float64   `json:"strokeWidth" validate:"gte=0,lte=50"`
	Opacity     float64   `json:"opacity" validate:"gte=0,lte=1"`
	Dash        []float64 `json:"dash,omitempty" validate:"omitempty,max=16,dive,gte=0"`
	Fill        string    `json:"fill,omitempty" validate:"max=64"`
}

// Transform is the wire form of models.Transform.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
}

// SerializedShape is the minimal wire form of a shape: raw anchors and style
// only. Arrowheads, Fibonacci guides and labels are never sent.
type SerializedShape struct {
	ID        string     `json:"id" validate:"required,identifier"`
	Type      string     `json:"type" validate:"required,oneof=freehand trendline vertical rectangle arrow fibonacci"`
	Points    []Point    `json:"points,omitempty" validate:"max=10000"`
	Rect      *Rect      `json:"rect,omitempty"`
	Style     Style      `json:"style"`
	Transform *Transform `json:"transform,omitempty"`
}

// ShapePayload carries drawing:add and drawing:update.
type ShapePayload struct {
	Chart   ChartKey        `json:"chart"`
	Shape   SerializedShape `json:"shape"`
	Version int64           `json:"version" validate:"gte=0"`
}

// DeletePayload carries drawing:delete.
type DeletePayload struct {
	Chart   ChartKey `json:"chart"`
	ID      string   `json:"id" validate:"required,identifier"`
	Version int64    `json:"version" validate:"gte=0"`
}

// ClearPayload carries drawing:clear.
type ClearPayload struct {
	Chart   ChartKey `json:"chart"`
	Version int64    `json:"version" validate:"gte=0"`
}

// SyncRequestPayload carries drawing:sync-request. RequestID is only set when
// strict epoch checking is enabled.
type SyncRequestPayload struct {
	Chart     ChartKey `json:"chart"`
	RequestID string   `json:"requestId,omitempty" validate:"omitempty,identifier"`
}

// SyncResponsePayload carries drawing:sync-response.
type SyncResponsePayload struct {
	Chart      ChartKey             `json:"chart"`
	Shapes     []SerializedShape    `json:"shapes" validate:"dive"`
	Version    int64                `json:"version" validate:"gte=0"`
	FutureDays optional.Option[int] `json:"futureDays,omitempty"`
	RequestID  string               `json:"requestId,omitempty" validate:"omitempty,identifier"`
}

// ChartChangePayload carries chart:change.
type ChartChangePayload struct {
	Ticker string `json:"ticker" validate:"required,ticker"`
	Period string `json:"period" validate:"required,period"`
}

// FutureSpacePayload carries futureSpace:update.
type FutureSpacePayload struct {
	Chart      ChartKey `json:"chart"`
	FutureDays int      `json:"futureDays" validate:"gte=0,lte=3650"`
}

// ToModel converts the wire key.
func (k ChartKey) ToModel() models.ChartKey {
	return models.ChartKey{Ticker: k.Ticker, Period: k.Period}
}

// FromChartKey converts a model key to its wire form.
func FromChartKey(k models.ChartKey) ChartKey {
	return ChartKey{Ticker: k.Ticker, Period: k.Period}
}

// ToModel converts the wire payload.
func (p ChartChangePayload) ToModel() models.ChartKey {
	return models.ChartKey{Ticker: p.Ticker, Period: p.Period}
}
