package geometry

import (
	"fmt"
	"math"

	"advisory-canvas/internal/models"
)

// FibonacciRatios are the retracement levels drawn between the two anchors.
var FibonacciRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1}

// FibonacciLevel is one horizontal guide of a retracement.
type FibonacciLevel struct {
	Ratio float64
	Y     float64
	X1    float64
	X2    float64
	// Solid and Bold are set on the key levels 0.382, 0.5 and 0.618;
	// every other level is dashed.
	Solid bool
	Bold  bool
	Label string
}

// FibonacciLevels generates the guides for the vertical span [start.Y, end.Y].
// Guides extend horizontally over the anchors' x range.
func FibonacciLevels(start, end models.Point) []FibonacciLevel {
	height := end.Y - start.Y
	x1, x2 := math.Min(start.X, end.X), math.Max(start.X, end.X)

	levels := make([]FibonacciLevel, 0, len(FibonacciRatios))
	for _, r := range FibonacciRatios {
		key := isKeyLevel(r)
		levels = append(levels, FibonacciLevel{
			Ratio: r,
			Y:     start.Y + height*r,
			X1:    x1,
			X2:    x2,
			Solid: key,
			Bold:  key,
			Label: fmt.Sprintf("%.1f%%", r*100),
		})
	}
	return levels
}

func isKeyLevel(r float64) bool {
	return r == 0.382 || r == 0.5 || r == 0.618
}
