package protocol

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/moznion/go-optional"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/models"
)

var testChart = models.ChartKey{Ticker: "AAPL", Period: "1D"}

func sampleShapes() []*models.Shape {
	style := models.DefaultStyle()
	dashed := models.DefaultStyle()
	dashed.Dash = []float64{6, 4}
	dashed.Fill = "rgba(41,98,255,0.2)"

	return []*models.Shape{
		{ID: "fh-1", Type: models.ShapeFreehand, Style: style, Transform: models.IdentityTransform(),
			Geometry: models.Geometry{Points: []models.Point{{X: 1, Y: 2}, {X: 3, Y: 5}, {X: 8, Y: 13}}}},
		{ID: "tl-1", Type: models.ShapeTrendline, Style: style, Transform: models.IdentityTransform(),
			Geometry: models.Geometry{Points: []models.Point{{X: 10, Y: 10}, {X: 200, Y: 80}}}},
		{ID: "vl-1", Type: models.ShapeVertical, Style: style, Transform: models.IdentityTransform(),
			Geometry: models.Geometry{Points: []models.Point{{X: 50, Y: 0}, {X: 50, Y: 300}}}},
		{ID: "rc-1", Type: models.ShapeRectangle, Style: dashed,
			Transform: models.Transform{X: 5, Y: -5, Rotation: 15, ScaleX: 1, ScaleY: 1},
			Geometry:  models.Geometry{Rect: models.Rect{X: 20, Y: 30, Width: 100, Height: 40}}},
		{ID: "ar-1", Type: models.ShapeArrow, Style: style, Transform: models.IdentityTransform(),
			Geometry: models.Geometry{Points: []models.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}}},
		{ID: "fb-1", Type: models.ShapeFibonacci, Style: style, Transform: models.IdentityTransform(),
			Geometry: models.Geometry{Points: []models.Point{{X: 0, Y: 100}, {X: 200, Y: 462}}}},
	}
}

func TestSerializeRoundTripAllTypes(t *testing.T) {
	for _, shape := range sampleShapes() {
		t.Run(string(shape.Type), func(t *testing.T) {
			got, err := DeserializeShape(SerializeShape(shape))
			if err != nil {
				t.Fatalf("DeserializeShape: %v", err)
			}
			if !reflect.DeepEqual(got, shape) {
				t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, shape)
			}
		})
	}
}

func TestSerializeOmitsDerivedGeometry(t *testing.T) {
	shapes := sampleShapes()
	data, err := Encode(SerializeShape(shapes[4]))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if strings.Contains(s, "transform") {
		t.Errorf("identity transform should be omitted: %s", s)
	}
	if strings.Contains(s, "rect") {
		t.Errorf("arrow should not carry a rect: %s", s)
	}
	if strings.Count(s, `"x"`) != 2 {
		t.Errorf("arrow should carry exactly its two anchors: %s", s)
	}
}

func TestChangeRoundTrip(t *testing.T) {
	shape := sampleShapes()[1]
	changes := []models.Change{
		{Kind: models.ChangeAdd, Chart: testChart, Shape: shape, Version: 1},
		{Kind: models.ChangeUpdate, Chart: testChart, Shape: shape, Version: 2},
		{Kind: models.ChangeDelete, Chart: testChart, ID: shape.ID, Version: 3},
		{Kind: models.ChangeClear, Chart: testChart, Version: 4},
	}
	for _, c := range changes {
		msgType, data, err := EncodeChange(c)
		if err != nil {
			t.Fatalf("EncodeChange(%s): %v", c.Kind, err)
		}
		got, err := DecodeChange(msgType, data, "peer-b")
		if err != nil {
			t.Fatalf("DecodeChange(%s): %v", msgType, err)
		}
		c.Origin = "peer-b"
		if !reflect.DeepEqual(got, c) {
			t.Errorf("%s: got %+v, want %+v", msgType, got, c)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := models.Snapshot{
		Chart:      testChart,
		Shapes:     sampleShapes(),
		Version:    7,
		FutureDays: optional.Some(30),
	}
	data, err := EncodeSnapshot(snap, "")
	if err != nil {
		t.Fatal(err)
	}
	got, reqID, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if reqID != "" {
		t.Errorf("request id = %q, want empty", reqID)
	}
	if got.FutureDays.TakeOr(0) != 30 {
		t.Errorf("futureDays = %v, want 30", got.FutureDays)
	}
	if !reflect.DeepEqual(got.Shapes, snap.Shapes) || got.Version != 7 || got.Chart != testChart {
		t.Errorf("snapshot mismatch: %+v", got)
	}

	empty, err := EncodeSnapshot(models.Snapshot{Chart: testChart}, "req-1")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(empty), "futureDays") {
		t.Errorf("absent futureDays should be omitted: %s", empty)
	}
	got, reqID, err = DecodeSnapshot(empty)
	if err != nil {
		t.Fatal(err)
	}
	if reqID != "req-1" || got.FutureDays.IsSome() || len(got.Shapes) != 0 {
		t.Errorf("unexpected empty snapshot %+v (req %q)", got, reqID)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		msgType string
		data    string
	}{
		{"empty", TypeAdd, ``},
		{"not json", TypeAdd, `{"chart":`},
		{"bad ticker", TypeClear, `{"chart":{"ticker":"aapl;","period":"1D"},"version":1}`},
		{"missing period", TypeClear, `{"chart":{"ticker":"AAPL"},"version":1}`},
		{"negative version", TypeClear, `{"chart":{"ticker":"AAPL","period":"1D"},"version":-1}`},
		{"unknown type", TypeAdd, `{"chart":{"ticker":"AAPL","period":"1D"},"shape":{"id":"s1","type":"circle","points":[{"x":1,"y":1}],"style":{}},"version":1}`},
		{"trendline three points", TypeAdd, `{"chart":{"ticker":"AAPL","period":"1D"},"shape":{"id":"s1","type":"trendline","points":[{"x":1,"y":1},{"x":2,"y":2},{"x":3,"y":3}],"style":{}},"version":1}`},
		{"rectangle without rect", TypeUpdate, `{"chart":{"ticker":"AAPL","period":"1D"},"shape":{"id":"s1","type":"rectangle","style":{}},"version":1}`},
		{"bad shape id", TypeAdd, `{"chart":{"ticker":"AAPL","period":"1D"},"shape":{"id":"a b","type":"freehand","points":[{"x":1,"y":1}],"style":{}},"version":1}`},
		{"opacity out of range", TypeAdd, `{"chart":{"ticker":"AAPL","period":"1D"},"shape":{"id":"s1","type":"freehand","points":[{"x":1,"y":1}],"style":{"opacity":3}},"version":1}`},
		{"delete without id", TypeDelete, `{"chart":{"ticker":"AAPL","period":"1D"},"version":1}`},
		{"not a change", TypeSyncRequest, `{"chart":{"ticker":"AAPL","period":"1D"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeChange(tt.msgType, []byte(tt.data), "peer-x")
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, errors.ErrMalformedMessage) {
				t.Errorf("error %v does not match ErrMalformedMessage", err)
			}
		})
	}
}

func TestDecodeChartChange(t *testing.T) {
	var p ChartChangePayload
	if err := Decode(TypeChartChange, []byte(`{"ticker":"MSFT","period":"5D"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.ToModel() != (models.ChartKey{Ticker: "MSFT", Period: "5D"}) {
		t.Errorf("unexpected key %+v", p)
	}
	if err := Decode(TypeChartChange, []byte(`{"ticker":"","period":"5D"}`), &p); err == nil {
		t.Error("expected empty ticker to be rejected")
	}
}

// Property: every trendline with finite anchors survives a wire round trip.
func TestProperty_TrendlineRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	coord := gen.Float64Range(-1e6, 1e6)

	properties.Property("deserialize(serialize(s)) == s", prop.ForAll(
		func(x1, y1, x2, y2, width float64) bool {
			shape := &models.Shape{
				ID:        "prop-shape",
				Type:      models.ShapeTrendline,
				Geometry:  models.Geometry{Points: []models.Point{{X: x1, Y: y1}, {X: x2, Y: y2}}},
				Style:     models.Style{Stroke: "#ff0000", StrokeWidth: width, Opacity: 1},
				Transform: models.IdentityTransform(),
			}
			_, data, err := EncodeChange(models.Change{Kind: models.ChangeAdd, Chart: testChart, Shape: shape})
			if err != nil {
				return false
			}
			got, err := DecodeChange(TypeAdd, data, "")
			if err != nil {
				return false
			}
			return reflect.DeepEqual(got.Shape, shape)
		},
		coord, coord, coord, coord, gen.Float64Range(0.5, 20),
	))

	properties.TestingRun(t)
}
