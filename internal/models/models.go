// Package models provides domain models for the annotation layer.
package models

import "math"

// ShapeType represents the drawing tool that produced a shape.
type ShapeType string

const (
	ShapeFreehand  ShapeType = "freehand"
	ShapeTrendline ShapeType = "trendline"
	ShapeVertical  ShapeType = "vertical"
	ShapeRectangle ShapeType = "rectangle"
	ShapeArrow     ShapeType = "arrow"
	ShapeFibonacci ShapeType = "fibonacci"
)

// ShapeTypes lists every supported shape type in tool-bar order.
var ShapeTypes = []ShapeType{
	ShapeFreehand,
	ShapeTrendline,
	ShapeVertical,
	ShapeRectangle,
	ShapeArrow,
	ShapeFibonacci,
}

// Valid reports whether t is a known shape type.
func (t ShapeType) Valid() bool {
	for _, known := range ShapeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TwoAnchor reports whether the shape is defined by exactly two anchor points.
func (t ShapeType) TwoAnchor() bool {
	switch t {
	case ShapeTrendline, ShapeVertical, ShapeArrow, ShapeFibonacci:
		return true
	}
	return false
}

// Point is a position in chart-logical coordinates.
type Point struct {
	X float64
	Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Distance returns the euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Rect is an axis-aligned box with non-negative size.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Contains reports whether p lies inside r inflated by pad on every side.
func (r Rect) Contains(p Point, pad float64) bool {
	return p.X >= r.X-pad && p.X <= r.X+r.Width+pad &&
		p.Y >= r.Y-pad && p.Y <= r.Y+r.Height+pad
}

// Center returns the middle of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Style holds the visual attributes shared by all shapes.
type Style struct {
	Stroke      string
	StrokeWidth float64
	Opacity     float64
	Dash        []float64
	Fill        string
}

// DefaultStyle returns the style used when the host has not picked one.
func DefaultStyle() Style {
	return Style{
		Stroke:      "#2962ff",
		StrokeWidth: 2,
		Opacity:     1,
	}
}

// Transform is applied after creation by drag or resize.
type Transform struct {
	X        float64
	Y        float64
	Rotation float64
	ScaleX   float64
	ScaleY   float64
}

// IdentityTransform returns a transform that leaves geometry unchanged.
func IdentityTransform() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// IsIdentity reports whether t leaves geometry unchanged. A zero scale is
// treated as 1 so the zero Transform is an identity.
func (t Transform) IsIdentity() bool {
	unit := func(v float64) bool { return v == 0 || v == 1 }
	return t.X == 0 && t.Y == 0 && t.Rotation == 0 && unit(t.ScaleX) && unit(t.ScaleY)
}

// Normalize returns t with zero scales replaced by 1, the form a transform
// takes after a wire round trip.
func (t Transform) Normalize() Transform {
	if t.ScaleX == 0 {
		t.ScaleX = 1
	}
	if t.ScaleY == 0 {
		t.ScaleY = 1
	}
	return t
}

// Apply maps a geometry-local point through the transform.
// Scale is applied first, then rotation (degrees), then translation.
func (t Transform) Apply(p Point) Point {
	sx, sy := t.ScaleX, t.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	x, y := p.X*sx, p.Y*sy
	if t.Rotation != 0 {
		rad := t.Rotation * math.Pi / 180
		cos, sin := math.Cos(rad), math.Sin(rad)
		x, y = x*cos-y*sin, x*sin+y*cos
	}
	return Point{X: x + t.X, Y: y + t.Y}
}

// Geometry holds the minimal type-specific attributes of a shape.
// Polyline-like shapes use Points; rectangles use Rect. Derived parts such as
// arrowheads or Fibonacci guides are never stored here.
type Geometry struct {
	Points []Point
	Rect   Rect
}

// Clone returns a deep copy of g.
func (g Geometry) Clone() Geometry {
	out := Geometry{Rect: g.Rect}
	if g.Points != nil {
		out.Points = make([]Point, len(g.Points))
		copy(out.Points, g.Points)
	}
	return out
}

// Shape is one annotation instance.
type Shape struct {
	ID        string
	Type      ShapeType
	Geometry  Geometry
	Style     Style
	Transform Transform
}

// Clone returns a deep copy of s.
func (s *Shape) Clone() *Shape {
	if s == nil {
		return nil
	}
	out := *s
	out.Geometry = s.Geometry.Clone()
	if s.Style.Dash != nil {
		out.Style.Dash = make([]float64, len(s.Style.Dash))
		copy(out.Style.Dash, s.Style.Dash)
	}
	return &out
}
