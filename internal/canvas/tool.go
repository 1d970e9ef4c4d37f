package canvas

import (
	"fmt"

	"github.com/google/uuid"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/geometry"
	"advisory-canvas/internal/models"
)

// ToolState is the state of the pointer gesture machine.
type ToolState int

const (
	Idle ToolState = iota
	Dragging
)

func (s ToolState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	default:
		return fmt.Sprintf("ToolState(%d)", int(s))
	}
}

// ToolController turns pointer input into shapes.
//
// Idle --down--> Dragging --move--> Dragging --up--> Idle
//
// Releasing the pointer always finalizes the draft; there is no abort.
type ToolController struct {
	state   ToolState
	tool    models.ShapeType
	style   models.Style
	anchors []models.Point
	draft   *models.Shape
	newID   func() string
}

// NewToolController creates an idle controller for tool.
func NewToolController(tool models.ShapeType, style models.Style) *ToolController {
	if !tool.Valid() {
		tool = models.ShapeFreehand
	}
	return &ToolController{
		tool:  tool,
		style: style,
		newID: uuid.NewString,
	}
}

// State returns the current gesture state.
func (t *ToolController) State() ToolState {
	return t.state
}

// Tool returns the active tool.
func (t *ToolController) Tool() models.ShapeType {
	return t.tool
}

// Style returns the style applied to new shapes.
func (t *ToolController) Style() models.Style {
	return t.style
}

// SetTool selects the tool for the next gesture. A gesture in progress
// keeps the tool it started with.
func (t *ToolController) SetTool(tool models.ShapeType) error {
	if !tool.Valid() {
		return fmt.Errorf("%w: %q", errors.ErrUnknownTool, tool)
	}
	t.tool = tool
	return nil
}

// SetStyle sets the style for the next gesture.
func (t *ToolController) SetStyle(style models.Style) {
	t.style = style
}

// Draft returns a copy of the shape being drawn.
func (t *ToolController) Draft() (*models.Shape, bool) {
	if t.state != Dragging || t.draft == nil {
		return nil, false
	}
	return t.draft.Clone(), true
}

// PointerDown starts a gesture at logical point p and returns the
// provisional shape. A second down while dragging returns the current draft.
func (t *ToolController) PointerDown(p models.Point) (*models.Shape, error) {
	if t.state == Dragging {
		return t.draft.Clone(), nil
	}
	g, err := geometry.Build(t.tool, []models.Point{p})
	if err != nil {
		return nil, err
	}
	t.anchors = []models.Point{p}
	t.draft = &models.Shape{
		ID:        t.newID(),
		Type:      t.tool,
		Geometry:  g,
		Style:     t.style,
		Transform: models.IdentityTransform(),
	}
	t.state = Dragging
	return t.draft.Clone(), nil
}

// PointerMove updates the draft. ok is false when no gesture is active.
func (t *ToolController) PointerMove(p models.Point) (shape *models.Shape, ok bool) {
	if t.state != Dragging {
		return nil, false
	}
	if t.draft.Type == models.ShapeFreehand {
		t.anchors = append(t.anchors, p)
	} else {
		t.anchors = []models.Point{t.anchors[0], p}
	}
	g, err := geometry.Build(t.draft.Type, t.anchors)
	if err != nil {
		return nil, false
	}
	t.draft.Geometry = g
	return t.draft.Clone(), true
}

// PointerUp finalizes the gesture at p and returns to Idle. ok is false
// when no gesture was active.
func (t *ToolController) PointerUp(p models.Point) (shape *models.Shape, ok bool) {
	if t.state != Dragging {
		return nil, false
	}
	shape, _ = t.PointerMove(p)
	if shape == nil {
		shape = t.draft.Clone()
	}
	t.state = Idle
	t.anchors = nil
	t.draft = nil
	return shape, true
}

// Finish finalizes an active gesture at its last known position.
func (t *ToolController) Finish() (*models.Shape, bool) {
	if t.state != Dragging {
		return nil, false
	}
	last := t.anchors[len(t.anchors)-1]
	if t.draft.Type == models.ShapeFreehand {
		// Avoid duplicating the final sample.
		shape := t.draft.Clone()
		t.state, t.anchors, t.draft = Idle, nil, nil
		return shape, true
	}
	return t.PointerUp(last)
}
