package canvas

import (
	"math"

	"advisory-canvas/internal/models"
)

// Surface is the pixel box of the chart container in client coordinates.
type Surface struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Valid reports whether the surface has a drawable area.
func (s Surface) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Mapper translates client pointer positions into chart-logical
// coordinates. The logical plane is wider than the surface when future
// projection space is enabled, and is scrolled horizontally.
//
// Changing the context only affects coordinates computed afterwards.
// Shapes already in a store keep the coordinates they were drawn with.
type Mapper struct {
	surface Surface
	ctx     models.ChartContext
	scroll  float64
}

// NewMapper creates a mapper for surface with an empty data window.
func NewMapper(surface Surface) *Mapper {
	return &Mapper{surface: surface}
}

// Surface returns the current surface.
func (m *Mapper) Surface() Surface {
	return m.surface
}

// SetSurface updates the container box.
func (m *Mapper) SetSurface(s Surface) {
	m.surface = s
	m.scroll = m.clampScroll(m.scroll)
}

// Context returns the current data window.
func (m *Mapper) Context() models.ChartContext {
	return m.ctx
}

// SetContext replaces the data window reported by the chart surface.
func (m *Mapper) SetContext(ctx models.ChartContext) {
	m.ctx = ctx.Normalized()
	m.scroll = m.clampScroll(m.scroll)
}

// SetFutureDays resizes the projection region to n empty slots. n <= 0
// disables it.
func (m *Mapper) SetFutureDays(n int) {
	if n < 0 {
		n = 0
	}
	m.ctx.FutureDataPoints = n
	m.ctx.HasFutureSpace = n > 0
	m.ctx.TotalDataPoints = m.ctx.ActualDataPoints + n
	m.ctx = m.ctx.Normalized()
	m.scroll = m.clampScroll(m.scroll)
}

// FutureDays returns the size of the projection region.
func (m *Mapper) FutureDays() int {
	if !m.ctx.HasFutureSpace {
		return 0
	}
	return m.ctx.FutureDataPoints
}

// Scroll returns the horizontal scroll offset in logical pixels.
func (m *Mapper) Scroll() float64 {
	return m.scroll
}

// SetScroll sets the horizontal scroll offset, clamped to the scrollable
// range.
func (m *Mapper) SetScroll(x float64) {
	m.scroll = m.clampScroll(x)
}

// LogicalWidth is the full width of the logical plane: the surface width
// stretched by total/actual data points when future space is enabled.
func (m *Mapper) LogicalWidth() float64 {
	c := m.ctx
	if !c.HasFutureSpace || c.ActualDataPoints <= 0 || c.TotalDataPoints <= c.ActualDataPoints {
		return m.surface.Width
	}
	return m.surface.Width * float64(c.TotalDataPoints) / float64(c.ActualDataPoints)
}

// Viewport returns the visible part of the logical plane.
func (m *Mapper) Viewport() models.Rect {
	return models.Rect{X: m.scroll, Y: 0, Width: m.surface.Width, Height: m.surface.Height}
}

// ToLogical maps a client position to logical coordinates.
func (m *Mapper) ToLogical(client models.Point) models.Point {
	return models.Point{
		X: client.X - m.surface.Left + m.scroll,
		Y: client.Y - m.surface.Top,
	}
}

// ToClient maps a logical position back to client coordinates.
func (m *Mapper) ToClient(logical models.Point) models.Point {
	return models.Point{
		X: logical.X - m.scroll + m.surface.Left,
		Y: logical.Y + m.surface.Top,
	}
}

// DataIndexAt returns the data slot under logical x. ok is false when the
// window is empty.
func (m *Mapper) DataIndexAt(x float64) (idx int, ok bool) {
	total := m.ctx.TotalDataPoints
	width := m.LogicalWidth()
	if total <= 0 || width <= 0 {
		return 0, false
	}
	slot := width / float64(total)
	idx = int(math.Floor(x / slot))
	if idx < 0 {
		idx = 0
	}
	if idx > total-1 {
		idx = total - 1
	}
	return idx, true
}

// IsFuture reports whether logical x falls in the projection region.
func (m *Mapper) IsFuture(x float64) bool {
	if !m.ctx.HasFutureSpace {
		return false
	}
	idx, ok := m.DataIndexAt(x)
	return ok && idx >= m.ctx.ActualDataPoints
}

func (m *Mapper) clampScroll(x float64) float64 {
	limit := m.LogicalWidth() - m.surface.Width
	if x > limit {
		x = limit
	}
	if x < 0 {
		x = 0
	}
	return x
}
