package models

import "fmt"

// ChartKey identifies one shared canvas context.
type ChartKey struct {
	Ticker string
	Period string
}

// String returns the key in TICKER:PERIOD form.
func (k ChartKey) String() string {
	return fmt.Sprintf("%s:%s", k.Ticker, k.Period)
}

// IsZero reports whether the key is unset.
func (k ChartKey) IsZero() bool {
	return k.Ticker == "" && k.Period == ""
}

// ChartContext describes the visible data window of the chart surface.
// FutureDataPoints are empty slots appended after the last real data point.
type ChartContext struct {
	TotalDataPoints  int
	ActualDataPoints int
	FutureDataPoints int
	HasFutureSpace   bool
}

// Normalized returns a context whose totals are internally consistent.
func (c ChartContext) Normalized() ChartContext {
	if c.ActualDataPoints < 0 {
		c.ActualDataPoints = 0
	}
	if c.FutureDataPoints < 0 || !c.HasFutureSpace {
		c.FutureDataPoints = 0
	}
	if floor := c.ActualDataPoints + c.FutureDataPoints; c.TotalDataPoints < floor {
		c.TotalDataPoints = floor
	}
	return c
}
