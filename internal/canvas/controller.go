package canvas

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rs/zerolog"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/geometry"
	"advisory-canvas/internal/logging"
	"advisory-canvas/internal/models"
	"advisory-canvas/internal/protocol"
	"advisory-canvas/internal/security"
	"advisory-canvas/internal/transport"
)

// DefaultHitTolerance is the pointer slop in pixels for selection and
// double-click delete.
const DefaultHitTolerance = 6.0

// Options configures a Controller at mount time.
type Options struct {
	Chart   models.ChartKey
	Surface Surface
	Context models.ChartContext

	Tool  models.ShapeType
	Style models.Style

	// DrawingEnabled starts the controller in annotation mode, which also
	// broadcasts an initial sync request.
	DrawingEnabled bool
	HitTolerance   float64

	// StrictEpoch rejects sync responses that do not answer the latest
	// request for their chart.
	StrictEpoch bool
	// FollowChartChanges switches the active chart when a peer announces
	// chart:change.
	FollowChartChanges bool

	Logger zerolog.Logger

	// OnRender is called with the render list after every store change. It
	// runs with the controller lock held and must not call back into the
	// Controller.
	OnRender func([]geometry.Primitive)
}

// Stats is a point-in-time view of a controller.
type Stats struct {
	PeerID         string
	Chart          models.ChartKey
	Charts         int
	Shapes         int
	Version        int64
	Tool           models.ShapeType
	State          ToolState
	DrawingEnabled bool
	FutureDays     int

	Sent          int
	SendFailures  int
	Applied       int
	Dropped       int
	Ignored       int
	SyncRequests  int
	SyncsAdopted  int
	SyncsRejected int

	// RemoteVersions is the highest version seen per peer. It is
	// informational only; it never gates application of a change.
	RemoteVersions map[string]int64
}

// Controller owns the annotation state of one mounted chart surface. Every
// operation, local or inbound, is serialized by a single mutex.
type Controller struct {
	mu sync.Mutex

	transport transport.Transport
	logger    zerolog.Logger
	validator *security.InputValidator

	registry *Registry
	active   models.ChartKey
	mapper   *Mapper
	tool     *ToolController
	emitter  *Emitter
	sync     *SyncCoordinator

	drawing   bool
	selected  string
	tolerance float64
	follow    bool
	onRender  func([]geometry.Primitive)

	unsubscribe []func()
	disposed    bool

	applied        int
	dropped        int
	ignored        int
	remoteVersions map[string]int64
}

// Mount creates a controller bound to t. It returns a nil handle and
// ErrContainerUnavailable when the surface has no area; the caller may retry
// on the next render.
func Mount(t transport.Transport, opts Options) (*Controller, error) {
	if !opts.Surface.Valid() {
		return nil, errors.ErrContainerUnavailable
	}
	if t == nil {
		return nil, errors.NewTransportError("mount", "", errors.ErrNotConnected)
	}

	v := security.NewInputValidator(true)
	if err := v.ValidateChartKey(opts.Chart); err != nil {
		return nil, err
	}
	style := opts.Style
	if style.Stroke == "" {
		style = models.DefaultStyle()
	}
	tolerance := opts.HitTolerance
	if tolerance <= 0 {
		tolerance = DefaultHitTolerance
	}

	logger := logging.WithPeer(opts.Logger, t.PeerID())

	c := &Controller{
		transport:      t,
		logger:         logger,
		validator:      v,
		registry:       NewRegistry(),
		active:         opts.Chart,
		mapper:         NewMapper(opts.Surface),
		tool:           NewToolController(opts.Tool, style),
		emitter:        NewEmitter(t, logger),
		sync:           NewSyncCoordinator(opts.StrictEpoch, logger),
		drawing:        opts.DrawingEnabled,
		tolerance:      tolerance,
		follow:         opts.FollowChartChanges,
		onRender:       opts.OnRender,
		remoteVersions: make(map[string]int64),
	}
	c.mapper.SetContext(opts.Context)
	c.registry.Store(c.active)

	for _, msgType := range []string{protocol.TypeAdd, protocol.TypeUpdate, protocol.TypeDelete, protocol.TypeClear} {
		c.unsubscribe = append(c.unsubscribe, t.Subscribe(msgType, c.handleChange(msgType)))
	}
	c.unsubscribe = append(c.unsubscribe,
		t.Subscribe(protocol.TypeSyncRequest, c.handleSyncRequest),
		t.Subscribe(protocol.TypeSyncResponse, c.handleSyncResponse),
		t.Subscribe(protocol.TypeChartChange, c.handleChartChange),
		t.Subscribe(protocol.TypeFutureSpace, c.handleFutureSpace),
	)

	chartLogger := logging.WithChart(c.logger, c.active.String())
	chartLogger.Info().
		Float64("width", opts.Surface.Width).
		Float64("height", opts.Surface.Height).
		Bool("drawing", c.drawing).
		Msg("Canvas mounted")

	if c.drawing {
		c.mu.Lock()
		c.requestSync()
		c.mu.Unlock()
	}
	return c, nil
}

// Dispose releases every subscription. It is safe to call more than once
// and on a nil Controller.
func (c *Controller) Dispose() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	unsubs := c.unsubscribe
	c.unsubscribe = nil
	active := c.active
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	chartLogger := logging.WithChart(c.logger, active.String())
	chartLogger.Info().Msg("Canvas disposed")
}

// Disposed reports whether Dispose has been called.
func (c *Controller) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

func (c *Controller) store() *Store {
	return c.registry.Store(c.active)
}

func (c *Controller) render() {
	if c.onRender != nil {
		c.onRender(c.store().Primitives())
	}
}

func (c *Controller) lock() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return errors.ErrDisposed
	}
	return nil
}

// --- host controls ---

// SetDrawingTool selects the tool for the next gesture.
func (c *Controller) SetDrawingTool(tool models.ShapeType) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	return c.tool.SetTool(tool)
}

// SetStrokeColor sets the stroke color for new shapes.
func (c *Controller) SetStrokeColor(color string) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if err := c.validator.ValidateColor(color); err != nil {
		return err
	}
	style := c.tool.Style()
	style.Stroke = color
	c.tool.SetStyle(style)
	return nil
}

// SetStrokeWidth sets the stroke width for new shapes.
func (c *Controller) SetStrokeWidth(width float64) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if err := c.validator.ValidateStrokeWidth(width); err != nil {
		return err
	}
	style := c.tool.Style()
	style.StrokeWidth = width
	c.tool.SetStyle(style)
	return nil
}

// EnableDrawing enters annotation mode and requests a snapshot.
func (c *Controller) EnableDrawing() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	c.drawing = true
	c.requestSync()
	return nil
}

// DisableDrawing leaves annotation mode. A gesture in progress is finalized.
func (c *Controller) DisableDrawing() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if shape, ok := c.tool.Finish(); ok {
		c.commitCreate(shape)
	}
	c.drawing = false
	c.selected = ""
	return nil
}

// DrawingEnabled reports whether pointer input creates shapes.
func (c *Controller) DrawingEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drawing
}

// ClearCanvas removes every shape on the active chart and broadcasts clear.
func (c *Controller) ClearCanvas() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	c.store().Clear()
	c.selected = ""
	c.emitter.Clear(c.active)
	c.render()
	return nil
}

// UndoLastShape deletes the topmost committed shape and returns its ID. A
// draft still being dragged is not a candidate.
func (c *Controller) UndoLastShape() (string, error) {
	if err := c.lock(); err != nil {
		return "", err
	}
	defer c.mu.Unlock()
	draftID := ""
	if draft, ok := c.tool.Draft(); ok {
		draftID = draft.ID
	}
	shapes := c.store().List()
	for i := len(shapes) - 1; i >= 0; i-- {
		if id := shapes[i].ID; id != draftID {
			c.deleteShape(id)
			return id, nil
		}
	}
	return "", errors.ErrShapeNotFound
}

// AddShape inserts a shape of type tool with default geometry centered in
// the visible viewport.
func (c *Controller) AddShape(tool models.ShapeType) (*models.Shape, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	if !c.drawing {
		return nil, errors.ErrDrawingDisabled
	}
	g, err := geometry.DefaultGeometry(tool, c.mapper.Viewport())
	if err != nil {
		return nil, err
	}
	shape := &models.Shape{
		ID:        uuid.NewString(),
		Type:      tool,
		Geometry:  g,
		Style:     c.tool.Style(),
		Transform: models.IdentityTransform(),
	}
	c.commitCreate(shape)
	return shape.Clone(), nil
}

// --- pointer adapter ---

// PointerDown starts a gesture at client position p.
func (c *Controller) PointerDown(p models.Point) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if !c.drawing {
		return errors.ErrDrawingDisabled
	}
	draft, err := c.tool.PointerDown(c.mapper.ToLogical(p))
	if err != nil {
		return err
	}
	c.store().Upsert(draft)
	c.render()
	return nil
}

// PointerMove updates the gesture in progress.
func (c *Controller) PointerMove(p models.Point) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if draft, ok := c.tool.PointerMove(c.mapper.ToLogical(p)); ok {
		c.store().Upsert(draft)
		c.render()
	}
	return nil
}

// PointerUp finalizes the gesture and broadcasts the new shape. It returns
// nil when no gesture was active.
func (c *Controller) PointerUp(p models.Point) (*models.Shape, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	shape, ok := c.tool.PointerUp(c.mapper.ToLogical(p))
	if !ok {
		return nil, nil
	}
	c.commitCreate(shape)
	return shape, nil
}

// DoubleClick deletes the topmost shape under p.
func (c *Controller) DoubleClick(p models.Point) (string, bool) {
	if c.lock() != nil {
		return "", false
	}
	defer c.mu.Unlock()
	id, ok := c.store().TopmostAt(c.mapper.ToLogical(p), c.tolerance)
	if !ok {
		return "", false
	}
	c.deleteShape(id)
	return id, true
}

// Select marks the topmost shape under p as selected.
func (c *Controller) Select(p models.Point) (string, bool) {
	if c.lock() != nil {
		return "", false
	}
	defer c.mu.Unlock()
	id, ok := c.store().TopmostAt(c.mapper.ToLogical(p), c.tolerance)
	if !ok {
		c.selected = ""
		return "", false
	}
	c.selected = id
	return id, true
}

// Selected returns the selected shape ID, if any.
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// DeleteSelected deletes the selected shape.
func (c *Controller) DeleteSelected() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if c.selected == "" {
		return errors.ErrNoSelection
	}
	if _, ok := c.store().Get(c.selected); !ok {
		c.selected = ""
		return errors.ErrShapeNotFound
	}
	c.deleteShape(c.selected)
	return nil
}

// MoveShape offsets a shape's transform by (dx, dy) and broadcasts the
// update.
func (c *Controller) MoveShape(id string, dx, dy float64) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if err := c.validator.ValidateShapeID(id); err != nil {
		return err
	}
	shape, ok := c.store().Get(id)
	if !ok {
		return fmt.Errorf("move %s: %w", id, errors.ErrShapeNotFound)
	}
	shape.Transform.X += dx
	shape.Transform.Y += dy
	return c.commitUpdate(shape)
}

// TransformShape replaces a shape's transform and broadcasts the update.
func (c *Controller) TransformShape(id string, t models.Transform) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if err := c.validator.ValidateShapeID(id); err != nil {
		return err
	}
	shape, ok := c.store().Get(id)
	if !ok {
		return fmt.Errorf("transform %s: %w", id, errors.ErrShapeNotFound)
	}
	shape.Transform = t
	return c.commitUpdate(shape)
}

// UpdateShape replaces a shape's geometry and style wholesale and broadcasts
// the update. The type cannot change, and geometry that receivers would
// reject is refused before anything is stored.
func (c *Controller) UpdateShape(shape *models.Shape) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if shape == nil {
		return errors.ErrShapeNotFound
	}
	if err := c.validator.ValidateShapeID(shape.ID); err != nil {
		return err
	}
	current, ok := c.store().Get(shape.ID)
	if !ok {
		return fmt.Errorf("update %s: %w", shape.ID, errors.ErrShapeNotFound)
	}
	if shape.Type != current.Type {
		return errors.NewValidationError("type", shape.Type, fmt.Sprintf("cannot change %s into %s", current.Type, shape.Type))
	}
	return c.commitUpdate(shape.Clone())
}

func (c *Controller) commitCreate(shape *models.Shape) {
	c.store().Upsert(shape)
	c.emitter.Create(c.active, shape)
	c.render()
}

// commitUpdate refuses shapes that peers would drop as malformed.
func (c *Controller) commitUpdate(shape *models.Shape) error {
	if err := protocol.ValidateShape(shape); err != nil {
		return err
	}
	c.store().Upsert(shape)
	c.emitter.Update(c.active, shape)
	c.render()
	return nil
}

func (c *Controller) deleteShape(id string) {
	c.store().Remove(id)
	if c.selected == id {
		c.selected = ""
	}
	c.emitter.Delete(c.active, id)
	c.render()
}

// --- chart surface ---

// UpdateChartContext replaces the data window. Existing shapes are not
// rescaled.
func (c *Controller) UpdateChartContext(ctx models.ChartContext) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	c.mapper.SetContext(ctx)
	return nil
}

// SetSurface updates the container box.
func (c *Controller) SetSurface(s Surface) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if !s.Valid() {
		return errors.ErrContainerUnavailable
	}
	c.mapper.SetSurface(s)
	return nil
}

// SetScroll sets the horizontal scroll offset of the logical plane.
func (c *Controller) SetScroll(x float64) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	c.mapper.SetScroll(x)
	return nil
}

// ToLogical maps a client position with the current surface and scroll.
func (c *Controller) ToLogical(p models.Point) models.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mapper.ToLogical(p)
}

// --- context ---

// SetChart switches the active chart, announces it and requests a snapshot.
func (c *Controller) SetChart(key models.ChartKey) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	if err := c.validator.ValidateChartKey(key); err != nil {
		return err
	}
	if key == c.active {
		return nil
	}
	c.switchChart(key)

	payload, err := protocol.Encode(protocol.ChartChangePayload{Ticker: key.Ticker, Period: key.Period})
	if err != nil {
		logging.LogSendFailure(c.logger, protocol.TypeChartChange, err)
	} else if err := c.transport.Send(protocol.TypeChartChange, payload); err != nil {
		logging.LogSendFailure(c.logger, protocol.TypeChartChange, err)
	}
	c.requestSync()
	return nil
}

func (c *Controller) switchChart(key models.ChartKey) {
	if shape, ok := c.tool.Finish(); ok {
		c.commitCreate(shape)
	}
	c.logger.Info().Str("from", c.active.String()).Str("to", key.String()).Msg("Active chart changed")
	c.active = key
	c.selected = ""
	c.registry.Store(key)
	c.render()
}

// SetFutureDays resizes the projection region and broadcasts it.
func (c *Controller) SetFutureDays(n int) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	c.mapper.SetFutureDays(n)
	payload, err := protocol.Encode(protocol.FutureSpacePayload{
		Chart:      protocol.FromChartKey(c.active),
		FutureDays: c.mapper.FutureDays(),
	})
	if err != nil {
		logging.LogSendFailure(c.logger, protocol.TypeFutureSpace, err)
		return nil
	}
	if err := c.transport.Send(protocol.TypeFutureSpace, payload); err != nil {
		logging.LogSendFailure(c.logger, protocol.TypeFutureSpace, err)
	}
	return nil
}

// Resume requests a snapshot after the host was backgrounded.
func (c *Controller) Resume() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	c.requestSync()
	return nil
}

func (c *Controller) requestSync() {
	payload, err := c.sync.Request(c.active)
	if err != nil {
		logging.LogSendFailure(c.logger, protocol.TypeSyncRequest, err)
		return
	}
	if err := c.transport.Send(protocol.TypeSyncRequest, payload); err != nil {
		logging.LogSendFailure(c.logger, protocol.TypeSyncRequest, err)
		return
	}
	logging.LogSync(c.logger, "request", c.active.String(), c.store().Len(), c.emitter.Version())
}

// --- read side ---

// ActiveChart returns the chart new changes are scoped to.
func (c *Controller) ActiveChart() models.ChartKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Shapes returns the active chart's shapes in z-order.
func (c *Controller) Shapes() []*models.Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store().List()
}

// ShapesFor returns the shapes held for chart.
func (c *Controller) ShapesFor(chart models.ChartKey) []*models.Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.registry.Lookup(chart)
	if !ok {
		return nil
	}
	return st.List()
}

// Render returns the active chart's render list.
func (c *Controller) Render() []geometry.Primitive {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store().Primitives()
}

// Snapshot returns the active chart's snapshot as it would be sent to a
// requesting peer.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(c.active)
}

func (c *Controller) snapshot(chart models.ChartKey) models.Snapshot {
	snap := models.Snapshot{
		Chart:   chart,
		Shapes:  c.registry.Store(chart).List(),
		Version: c.emitter.Version(),
	}
	if chart == c.active && c.mapper.FutureDays() > 0 {
		snap.FutureDays = optional.Some(c.mapper.FutureDays())
	}
	return snap
}

// Stats returns counters for diagnostics.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	remote := make(map[string]int64, len(c.remoteVersions))
	for k, v := range c.remoteVersions {
		remote[k] = v
	}
	return Stats{
		PeerID:         c.transport.PeerID(),
		Chart:          c.active,
		Charts:         len(c.registry.Keys()),
		Shapes:         c.store().Len(),
		Version:        c.emitter.Version(),
		Tool:           c.tool.Tool(),
		State:          c.tool.State(),
		DrawingEnabled: c.drawing,
		FutureDays:     c.mapper.FutureDays(),
		Sent:           c.emitter.sent,
		SendFailures:   c.emitter.failures,
		Applied:        c.applied,
		Dropped:        c.dropped,
		Ignored:        c.ignored,
		SyncRequests:   c.sync.requests,
		SyncsAdopted:   c.sync.adopted,
		SyncsRejected:  c.sync.rejected,
		RemoteVersions: remote,
	}
}
