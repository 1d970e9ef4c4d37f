package geometry

import (
	"math"

	"advisory-canvas/internal/models"
)

// Bounds returns the axis-aligned box covering every primitive of s.
func Bounds(s *models.Shape) models.Rect {
	var pts []models.Point
	for _, p := range Compile(s) {
		switch p.Kind {
		case PrimitiveRect:
			pts = append(pts,
				models.Point{X: p.Rect.X, Y: p.Rect.Y},
				models.Point{X: p.Rect.X + p.Rect.Width, Y: p.Rect.Y + p.Rect.Height})
		case PrimitiveText:
			// labels do not extend the hit area
		default:
			pts = append(pts, p.Points...)
		}
	}
	if len(pts) == 0 {
		return models.Rect{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return models.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// HitTest reports whether p touches s within tolerance pixels.
// Line-like shapes test distance to each segment, rectangles and
// retracements test their filled area.
func HitTest(s *models.Shape, p models.Point, tolerance float64) bool {
	if s == nil {
		return false
	}
	pad := tolerance + s.Style.StrokeWidth/2

	switch s.Type {
	case models.ShapeRectangle, models.ShapeFibonacci:
		return Bounds(s).Contains(p, pad)
	}

	for _, prim := range Compile(s) {
		switch prim.Kind {
		case PrimitiveLine:
			if len(prim.Points) == 1 && prim.Points[0].Distance(p) <= pad {
				return true
			}
			for i := 1; i < len(prim.Points); i++ {
				if segmentDistance(p, prim.Points[i-1], prim.Points[i]) <= pad {
					return true
				}
			}
		case PrimitivePolygon:
			if polygonBounds(prim.Points).Contains(p, pad) {
				return true
			}
		}
	}
	return false
}

func segmentDistance(p, a, b models.Point) float64 {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / lenSq
	t = clamp(t, 0, 1)
	return p.Distance(models.Point{X: a.X + t*ab.X, Y: a.Y + t*ab.Y})
}

func polygonBounds(pts []models.Point) models.Rect {
	if len(pts) == 0 {
		return models.Rect{}
	}
	minX, minY, maxX, maxY := pts[0].X, pts[0].Y, pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return models.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
