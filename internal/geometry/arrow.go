package geometry

import (
	"math"

	"advisory-canvas/internal/models"
)

// Arrowhead sizing in pixels.
const (
	ArrowHeadRatio = 0.2
	ArrowHeadMin   = 12.0
	ArrowHeadMax   = 25.0
	// ArrowWingAngle is the angle of each wing from the shaft, in degrees.
	ArrowWingAngle = 30.0
)

// ArrowParts is the derived rendering of an arrow. Only the two endpoints are
// ever stored; everything here is recomputed from them.
type ArrowParts struct {
	Start      models.Point
	ShaftEnd   models.Point
	Tip        models.Point
	LeftWing   models.Point
	RightWing  models.Point
	HeadLength float64
}

// ArrowHeadLength returns clamp(length*0.2, 12, 25).
func ArrowHeadLength(length float64) float64 {
	return clamp(length*ArrowHeadRatio, ArrowHeadMin, ArrowHeadMax)
}

// Arrow computes shaft and head for an arrow from start to end. The shaft
// stops where the head begins so the stroke does not poke through the tip.
func Arrow(start, end models.Point) ArrowParts {
	length := start.Distance(end)
	head := ArrowHeadLength(length)
	angle := math.Atan2(end.Y-start.Y, end.X-start.X)

	shaft := math.Max(length-head, 0)
	wing := ArrowWingAngle * math.Pi / 180

	return ArrowParts{
		Start: start,
		ShaftEnd: models.Point{
			X: start.X + shaft*math.Cos(angle),
			Y: start.Y + shaft*math.Sin(angle),
		},
		Tip: end,
		LeftWing: models.Point{
			X: end.X - head*math.Cos(angle-wing),
			Y: end.Y - head*math.Sin(angle-wing),
		},
		RightWing: models.Point{
			X: end.X - head*math.Cos(angle+wing),
			Y: end.Y - head*math.Sin(angle+wing),
		},
		HeadLength: head,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
