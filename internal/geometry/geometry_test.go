package geometry

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/models"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestBuildTwoAnchorTools(t *testing.T) {
	anchors := []models.Point{{X: 10, Y: 20}, {X: 15, Y: 25}, {X: 40, Y: 80}}

	for _, tool := range []models.ShapeType{models.ShapeTrendline, models.ShapeArrow, models.ShapeFibonacci} {
		g, err := Build(tool, anchors)
		if err != nil {
			t.Fatalf("Build(%s) error: %v", tool, err)
		}
		if len(g.Points) != 2 || g.Points[0] != anchors[0] || g.Points[1] != anchors[2] {
			t.Errorf("Build(%s) = %+v, want first and last anchor", tool, g.Points)
		}
	}
}

func TestBuildVerticalPinsStartX(t *testing.T) {
	g, err := Build(models.ShapeVertical, []models.Point{{X: 50, Y: 10}, {X: 90, Y: 200}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Points[0].X != 50 || g.Points[1].X != 50 {
		t.Errorf("vertical x = %v,%v, want 50,50", g.Points[0].X, g.Points[1].X)
	}
	if g.Points[1].Y != 200 {
		t.Errorf("vertical end y = %v, want 200", g.Points[1].Y)
	}
}

func TestBuildRectangleNormalized(t *testing.T) {
	g, err := Build(models.ShapeRectangle, []models.Point{{X: 100, Y: 80}, {X: 40, Y: 20}})
	if err != nil {
		t.Fatal(err)
	}
	want := models.Rect{X: 40, Y: 20, Width: 60, Height: 60}
	if g.Rect != want {
		t.Errorf("rect = %+v, want %+v", g.Rect, want)
	}
}

func TestBuildFreehandCopiesAnchors(t *testing.T) {
	anchors := []models.Point{{X: 1, Y: 1}, {X: 2, Y: 3}, {X: 4, Y: 9}}
	g, err := Build(models.ShapeFreehand, anchors)
	if err != nil {
		t.Fatal(err)
	}
	anchors[0].X = 99
	if g.Points[0].X != 1 {
		t.Error("freehand geometry aliases the caller's anchors")
	}
	if len(g.Points) != 3 {
		t.Errorf("len = %d, want 3", len(g.Points))
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := Build(models.ShapeTrendline, nil); !errors.Is(err, errors.ErrNoAnchors) {
		t.Errorf("empty anchors error = %v", err)
	}
	if _, err := Build("ellipse", []models.Point{{}}); !errors.Is(err, errors.ErrUnknownTool) {
		t.Errorf("unknown tool error = %v", err)
	}
}

func TestArrowHeadLength(t *testing.T) {
	tests := []struct {
		length float64
		want   float64
	}{
		{100, 20},
		{10, 12},
		{0, 12},
		{500, 25},
		{125, 25},
		{60, 12},
	}
	for _, tt := range tests {
		if got := ArrowHeadLength(tt.length); !approx(got, tt.want) {
			t.Errorf("ArrowHeadLength(%v) = %v, want %v", tt.length, got, tt.want)
		}
	}
}

func TestArrowGeometry(t *testing.T) {
	a := Arrow(models.Point{X: 0, Y: 0}, models.Point{X: 100, Y: 0})

	if !approx(a.HeadLength, 20) {
		t.Fatalf("head length = %v, want 20", a.HeadLength)
	}
	if !approx(a.ShaftEnd.X, 80) || !approx(a.ShaftEnd.Y, 0) {
		t.Errorf("shaft end = %+v, want (80,0)", a.ShaftEnd)
	}
	wx := 100 - 20*math.Cos(math.Pi/6)
	if !approx(a.LeftWing.X, wx) || !approx(a.RightWing.X, wx) {
		t.Errorf("wing x = %v/%v, want %v", a.LeftWing.X, a.RightWing.X, wx)
	}
	if !approx(math.Abs(a.LeftWing.Y), 10) || !approx(a.LeftWing.Y, -a.RightWing.Y) {
		t.Errorf("wings not symmetric at ±10: %+v %+v", a.LeftWing, a.RightWing)
	}
}

func TestFibonacciLevels(t *testing.T) {
	levels := FibonacciLevels(models.Point{X: 0, Y: 100}, models.Point{X: 200, Y: 300})
	if len(levels) != 7 {
		t.Fatalf("levels = %d, want 7", len(levels))
	}

	var found bool
	for _, lvl := range levels {
		if lvl.Ratio == 0.618 {
			found = true
			if !approx(lvl.Y, 223.6) {
				t.Errorf("0.618 level y = %v, want 223.6", lvl.Y)
			}
			if lvl.Label != "61.8%" {
				t.Errorf("label = %q, want 61.8%%", lvl.Label)
			}
		}
		wantKey := lvl.Ratio == 0.382 || lvl.Ratio == 0.5 || lvl.Ratio == 0.618
		if lvl.Solid != wantKey || lvl.Bold != wantKey {
			t.Errorf("ratio %v solid=%v bold=%v, want %v", lvl.Ratio, lvl.Solid, lvl.Bold, wantKey)
		}
	}
	if !found {
		t.Fatal("0.618 level missing")
	}
	if levels[0].Y != 100 || levels[6].Y != 300 {
		t.Errorf("span ends = %v,%v, want 100,300", levels[0].Y, levels[6].Y)
	}
}

func TestCompileArrowDerivesHead(t *testing.T) {
	s := &models.Shape{
		ID:       "a1",
		Type:     models.ShapeArrow,
		Geometry: models.Geometry{Points: []models.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}},
		Style:    models.DefaultStyle(),
	}
	prims := Compile(s)
	if len(prims) != 2 {
		t.Fatalf("primitives = %d, want shaft + head", len(prims))
	}
	if prims[1].Kind != PrimitivePolygon || len(prims[1].Points) != 3 {
		t.Errorf("head = %+v, want triangle", prims[1])
	}
	if prims[1].Style.Fill != s.Style.Stroke {
		t.Errorf("head fill = %q, want stroke color", prims[1].Style.Fill)
	}
	if len(s.Geometry.Points) != 2 {
		t.Error("compile mutated stored geometry")
	}
}

func TestCompileFibonacciDashes(t *testing.T) {
	s := &models.Shape{
		ID:       "f1",
		Type:     models.ShapeFibonacci,
		Geometry: models.Geometry{Points: []models.Point{{X: 0, Y: 100}, {X: 200, Y: 300}}},
		Style:    models.DefaultStyle(),
	}
	var guides, labels int
	for _, p := range Compile(s) {
		switch {
		case p.Kind == PrimitiveText:
			labels++
		case p.Kind == PrimitiveLine && len(p.Points) == 2 && p.Points[0].Y == p.Points[1].Y:
			guides++
			if p.Bold && p.Style.Dash != nil {
				t.Errorf("bold guide at y=%v is dashed", p.Points[0].Y)
			}
			if !p.Bold && p.Style.Dash == nil {
				t.Errorf("minor guide at y=%v is solid", p.Points[0].Y)
			}
		}
	}
	if guides != 7 || labels != 7 {
		t.Errorf("guides=%d labels=%d, want 7/7", guides, labels)
	}
}

func TestCompileRectangleTransform(t *testing.T) {
	s := &models.Shape{
		ID:        "r1",
		Type:      models.ShapeRectangle,
		Geometry:  models.Geometry{Rect: models.Rect{X: 10, Y: 10, Width: 20, Height: 10}},
		Transform: models.Transform{X: 5, Y: -5, ScaleX: 2, ScaleY: 1},
	}
	prims := Compile(s)
	if len(prims) != 1 || prims[0].Kind != PrimitiveRect {
		t.Fatalf("prims = %+v", prims)
	}
	want := models.Rect{X: 25, Y: 5, Width: 40, Height: 10}
	if prims[0].Rect != want {
		t.Errorf("rect = %+v, want %+v", prims[0].Rect, want)
	}

	s.Transform.Rotation = 90
	if Compile(s)[0].Kind != PrimitivePolygon {
		t.Error("rotated rectangle should compile to a polygon")
	}
}

func TestHitTest(t *testing.T) {
	line := &models.Shape{
		Type:     models.ShapeTrendline,
		Geometry: models.Geometry{Points: []models.Point{{X: 0, Y: 0}, {X: 100, Y: 100}}},
		Style:    models.Style{StrokeWidth: 2},
	}
	if !HitTest(line, models.Point{X: 50, Y: 53}, 4) {
		t.Error("expected hit near the trendline")
	}
	if HitTest(line, models.Point{X: 50, Y: 80}, 4) {
		t.Error("unexpected hit far from the trendline")
	}

	rect := &models.Shape{
		Type:     models.ShapeRectangle,
		Geometry: models.Geometry{Rect: models.Rect{X: 10, Y: 10, Width: 50, Height: 50}},
	}
	if !HitTest(rect, models.Point{X: 30, Y: 30}, 0) {
		t.Error("expected hit inside rectangle")
	}
	if HitTest(nil, models.Point{}, 10) {
		t.Error("nil shape should never hit")
	}
}

func TestDefaultGeometry(t *testing.T) {
	viewport := models.Rect{X: 0, Y: 0, Width: 800, Height: 400}
	for _, tool := range []models.ShapeType{
		models.ShapeTrendline, models.ShapeVertical, models.ShapeRectangle,
		models.ShapeArrow, models.ShapeFibonacci,
	} {
		g, err := DefaultGeometry(tool, viewport)
		if err != nil {
			t.Errorf("DefaultGeometry(%s) error: %v", tool, err)
			continue
		}
		s := &models.Shape{Type: tool, Geometry: g}
		if !viewport.Contains(Bounds(s).Center(), 0) {
			t.Errorf("%s default is not centered in viewport: %+v", tool, Bounds(s))
		}
	}
	if _, err := DefaultGeometry(models.ShapeFreehand, viewport); err == nil {
		t.Error("freehand default should fail")
	}
}

// Property: the arrowhead length always stays in [12, 25] and the shaft never
// extends past the tip.
func TestProperty_ArrowHeadClamped(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	coord := gen.Float64Range(-2000, 2000)

	properties.Property("head clamped and shaft short of tip", prop.ForAll(
		func(x1, y1, x2, y2 float64) bool {
			start, end := models.Point{X: x1, Y: y1}, models.Point{X: x2, Y: y2}
			a := Arrow(start, end)
			if a.HeadLength < ArrowHeadMin-eps || a.HeadLength > ArrowHeadMax+eps {
				return false
			}
			return start.Distance(a.ShaftEnd) <= start.Distance(end)+eps
		},
		coord, coord, coord, coord,
	))

	properties.TestingRun(t)
}

// Property: every Fibonacci guide lies within the anchors' vertical span.
func TestProperty_FibonacciWithinSpan(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	coord := gen.Float64Range(-1000, 1000)

	properties.Property("guides inside span", prop.ForAll(
		func(y1, y2 float64) bool {
			lo, hi := math.Min(y1, y2), math.Max(y1, y2)
			for _, lvl := range FibonacciLevels(models.Point{Y: y1}, models.Point{X: 10, Y: y2}) {
				if lvl.Y < lo-eps || lvl.Y > hi+eps {
					return false
				}
			}
			return true
		},
		coord, coord,
	))

	properties.TestingRun(t)
}
