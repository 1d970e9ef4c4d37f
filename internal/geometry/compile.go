package geometry

import (
	"advisory-canvas/internal/models"
)

// PrimitiveKind identifies a renderer-level drawing primitive.
type PrimitiveKind string

const (
	PrimitiveLine    PrimitiveKind = "line"
	PrimitivePolygon PrimitiveKind = "polygon"
	PrimitiveRect    PrimitiveKind = "rect"
	PrimitiveText    PrimitiveKind = "text"
)

// Dash patterns used by derived parts.
var (
	DashedGuide = []float64{6, 4}
	DottedLink  = []float64{2, 4}
)

// Primitive is one toolkit-independent drawing instruction.
// Points are already mapped through the shape's transform.
type Primitive struct {
	Kind    PrimitiveKind
	ShapeID string
	Points  []models.Point
	Rect    models.Rect
	Style   models.Style
	Text    string
	Bold    bool
}

// Compile expands a shape descriptor into the primitives a renderer draws.
// Composite shapes (arrow, fibonacci) are rebuilt from their stored anchors,
// so the result is the same on every replica holding the same attributes.
func Compile(s *models.Shape) []Primitive {
	if s == nil {
		return nil
	}
	pts := transformed(s)

	switch s.Type {
	case models.ShapeFreehand, models.ShapeTrendline, models.ShapeVertical:
		if len(pts) == 0 {
			return nil
		}
		return []Primitive{{Kind: PrimitiveLine, ShapeID: s.ID, Points: pts, Style: s.Style}}

	case models.ShapeRectangle:
		return []Primitive{compileRect(s)}

	case models.ShapeArrow:
		if len(pts) < 2 {
			return nil
		}
		a := Arrow(pts[0], pts[len(pts)-1])
		head := s.Style
		head.Dash = nil
		if head.Fill == "" {
			head.Fill = head.Stroke
		}
		return []Primitive{
			{Kind: PrimitiveLine, ShapeID: s.ID, Points: []models.Point{a.Start, a.ShaftEnd}, Style: s.Style},
			{Kind: PrimitivePolygon, ShapeID: s.ID, Points: []models.Point{a.Tip, a.LeftWing, a.RightWing}, Style: head},
		}

	case models.ShapeFibonacci:
		if len(pts) < 2 {
			return nil
		}
		return compileFibonacci(s, pts[0], pts[len(pts)-1])
	}
	return nil
}

// CompileAll compiles shapes in z-order.
func CompileAll(shapes []*models.Shape) []Primitive {
	var out []Primitive
	for _, s := range shapes {
		out = append(out, Compile(s)...)
	}
	return out
}

func compileRect(s *models.Shape) Primitive {
	r := s.Geometry.Rect
	if s.Transform.Rotation == 0 {
		origin := s.Transform.Apply(models.Point{X: r.X, Y: r.Y})
		far := s.Transform.Apply(models.Point{X: r.X + r.Width, Y: r.Y + r.Height})
		return Primitive{Kind: PrimitiveRect, ShapeID: s.ID, Rect: NormalizeRect(origin, far), Style: s.Style}
	}
	corners := []models.Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y + r.Height},
		{X: r.X, Y: r.Y + r.Height},
	}
	for i := range corners {
		corners[i] = s.Transform.Apply(corners[i])
	}
	return Primitive{Kind: PrimitivePolygon, ShapeID: s.ID, Points: corners, Style: s.Style}
}

func compileFibonacci(s *models.Shape, start, end models.Point) []Primitive {
	link := s.Style
	link.Dash = DottedLink
	link.Opacity = s.Style.Opacity * 0.5

	out := []Primitive{{Kind: PrimitiveLine, ShapeID: s.ID, Points: []models.Point{start, end}, Style: link}}
	for _, lvl := range FibonacciLevels(start, end) {
		st := s.Style
		if lvl.Bold {
			st.StrokeWidth = s.Style.StrokeWidth + 1
		}
		if lvl.Solid {
			st.Dash = nil
		} else {
			st.Dash = DashedGuide
		}
		out = append(out,
			Primitive{
				Kind:    PrimitiveLine,
				ShapeID: s.ID,
				Points:  []models.Point{{X: lvl.X1, Y: lvl.Y}, {X: lvl.X2, Y: lvl.Y}},
				Style:   st,
				Bold:    lvl.Bold,
			},
			Primitive{
				Kind:    PrimitiveText,
				ShapeID: s.ID,
				Points:  []models.Point{{X: lvl.X2 + 4, Y: lvl.Y - 6}},
				Style:   s.Style,
				Text:    lvl.Label,
				Bold:    lvl.Bold,
			},
		)
	}
	return out
}

func transformed(s *models.Shape) []models.Point {
	pts := make([]models.Point, len(s.Geometry.Points))
	for i, p := range s.Geometry.Points {
		pts[i] = s.Transform.Apply(p)
	}
	return pts
}
