package protocol

import (
	"fmt"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/models"
)

// SerializeShape converts a shape to its minimal wire form.
func SerializeShape(s *models.Shape) SerializedShape {
	out := SerializedShape{
		ID:   s.ID,
		Type: string(s.Type),
		Style: Style{
			Stroke:      s.Style.Stroke,
			StrokeWidth: s.Style.StrokeWidth,
			Opacity:     s.Style.Opacity,
			Fill:        s.Style.Fill,
		},
	}
	if len(s.Style.Dash) > 0 {
		out.Style.Dash = append([]float64(nil), s.Style.Dash...)
	}

	if s.Type == models.ShapeRectangle {
		r := s.Geometry.Rect
		out.Rect = &Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
	} else {
		out.Points = make([]Point, len(s.Geometry.Points))
		for i, p := range s.Geometry.Points {
			out.Points[i] = Point{X: p.X, Y: p.Y}
		}
	}

	if !s.Transform.IsIdentity() {
		t := s.Transform
		out.Transform = &Transform{X: t.X, Y: t.Y, Rotation: t.Rotation, ScaleX: t.ScaleX, ScaleY: t.ScaleY}
	}
	return out
}

// DeserializeShape rebuilds a shape from its wire form. The payload is
// expected to have passed validation already; the checks here only guard
// against callers that skip the codec.
func DeserializeShape(w SerializedShape) (*models.Shape, error) {
	typ := models.ShapeType(w.Type)
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownTool, w.Type)
	}
	if err := checkGeometry(w); err != nil {
		return nil, err
	}

	s := &models.Shape{
		ID:   w.ID,
		Type: typ,
		Style: models.Style{
			Stroke:      w.Style.Stroke,
			StrokeWidth: w.Style.StrokeWidth,
			Opacity:     w.Style.Opacity,
			Fill:        w.Style.Fill,
		},
		Transform: models.IdentityTransform(),
	}
	if len(w.Style.Dash) > 0 {
		s.Style.Dash = append([]float64(nil), w.Style.Dash...)
	}

	if typ == models.ShapeRectangle {
		s.Geometry.Rect = models.Rect{X: w.Rect.X, Y: w.Rect.Y, Width: w.Rect.Width, Height: w.Rect.Height}
	} else {
		s.Geometry.Points = make([]models.Point, len(w.Points))
		for i, p := range w.Points {
			s.Geometry.Points[i] = models.Point{X: p.X, Y: p.Y}
		}
	}

	if w.Transform != nil {
		s.Transform = models.Transform{
			X:        w.Transform.X,
			Y:        w.Transform.Y,
			Rotation: w.Transform.Rotation,
			ScaleX:   w.Transform.ScaleX,
			ScaleY:   w.Transform.ScaleY,
		}
	}
	return s, nil
}

// checkGeometry enforces the per-type anchor requirements.
func checkGeometry(w SerializedShape) error {
	typ := models.ShapeType(w.Type)
	switch {
	case typ == models.ShapeRectangle && w.Rect == nil:
		return errors.NewValidationError("rect", nil, "rectangle requires rect")
	case typ == models.ShapeFreehand && len(w.Points) == 0:
		return errors.NewValidationError("points", 0, "freehand requires at least one point")
	case typ.TwoAnchor() && len(w.Points) != 2:
		return errors.NewValidationError("points", len(w.Points), fmt.Sprintf("%s requires exactly two points", typ))
	}
	return nil
}
