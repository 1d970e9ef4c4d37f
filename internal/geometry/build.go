// Package geometry builds and compiles shape geometry for every drawing tool.
//
// All functions are pure: they take anchors or shape descriptors and return
// new values without touching any rendering surface.
package geometry

import (
	"fmt"
	"math"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/models"
)

// Build produces the minimal geometry for a tool from its gesture anchors.
//
// Freehand keeps every sampled anchor. Two-anchor tools use the first and the
// last anchor. Vertical pins both ends to the first anchor's x. Rectangle is
// normalized so width and height are non-negative.
func Build(tool models.ShapeType, anchors []models.Point) (models.Geometry, error) {
	if len(anchors) == 0 {
		return models.Geometry{}, errors.ErrNoAnchors
	}
	first, last := anchors[0], anchors[len(anchors)-1]

	switch tool {
	case models.ShapeFreehand:
		pts := make([]models.Point, len(anchors))
		copy(pts, anchors)
		return models.Geometry{Points: pts}, nil
	case models.ShapeTrendline, models.ShapeArrow, models.ShapeFibonacci:
		return models.Geometry{Points: []models.Point{first, last}}, nil
	case models.ShapeVertical:
		return models.Geometry{Points: []models.Point{first, {X: first.X, Y: last.Y}}}, nil
	case models.ShapeRectangle:
		return models.Geometry{Rect: NormalizeRect(first, last)}, nil
	default:
		return models.Geometry{}, fmt.Errorf("%w: %q", errors.ErrUnknownTool, tool)
	}
}

// NormalizeRect returns the bounding box of two drag corners.
func NormalizeRect(a, b models.Point) models.Rect {
	return models.Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// DefaultGeometry returns the geometry inserted by a one-click "add shape"
// action, centered in the visible viewport.
func DefaultGeometry(tool models.ShapeType, viewport models.Rect) (models.Geometry, error) {
	c := viewport.Center()
	halfW := math.Min(60, viewport.Width/4)
	halfH := math.Min(40, viewport.Height/4)

	switch tool {
	case models.ShapeTrendline, models.ShapeArrow:
		return Build(tool, []models.Point{
			{X: c.X - halfW, Y: c.Y + halfH},
			{X: c.X + halfW, Y: c.Y - halfH},
		})
	case models.ShapeVertical:
		return Build(tool, []models.Point{
			{X: c.X, Y: viewport.Y},
			{X: c.X, Y: viewport.Y + viewport.Height},
		})
	case models.ShapeRectangle:
		return Build(tool, []models.Point{
			{X: c.X - halfW, Y: c.Y - halfH},
			{X: c.X + halfW, Y: c.Y + halfH},
		})
	case models.ShapeFibonacci:
		span := viewport.Height * 0.4
		return Build(tool, []models.Point{
			{X: c.X - halfW*2, Y: c.Y - span/2},
			{X: c.X + halfW*2, Y: c.Y + span/2},
		})
	case models.ShapeFreehand:
		return models.Geometry{}, fmt.Errorf("%w: freehand has no default geometry", errors.ErrUnknownTool)
	default:
		return models.Geometry{}, fmt.Errorf("%w: %q", errors.ErrUnknownTool, tool)
	}
}
