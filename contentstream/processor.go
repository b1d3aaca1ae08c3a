package contentstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfviewer/coords"
	"github.com/wudi/pdfviewer/ir/raw"
)

type OperatorHandler interface {
	Handle(ec *ExecutionContext, op Operation) error
}

// HandlerFunc adapts a function to OperatorHandler.
type HandlerFunc func(ec *ExecutionContext, op Operation) error

func (f HandlerFunc) Handle(ec *ExecutionContext, op Operation) error { return f(ec, op) }

type Processor interface {
	Process(ctx context.Context, ops []Operation, ec *ExecutionContext) error
	RegisterHandler(op string, h OperatorHandler)
}

type ExecutionContext struct {
	State     *GraphicsState
	Resources *raw.DictObj
}

// NewExecutionContext starts from the initial graphics state with the given CTM.
func NewExecutionContext(ctm coords.Matrix, resources *raw.DictObj) *ExecutionContext {
	return &ExecutionContext{State: NewGraphicsState(ctm), Resources: resources}
}

type TextState struct {
	Font              string
	FontSize          float64
	CharSpacing       float64
	WordSpacing       float64
	HorizontalScaling float64
	Leading           float64
	Rise              float64
	RenderMode        TextRenderMode
	Matrix            coords.Matrix
	LineMatrix        coords.Matrix
}

type GraphicsState struct {
	CTM         coords.Matrix
	LineWidth   float64
	LineCap     LineCap
	LineJoin    LineJoin
	FillColor   Color
	StrokeColor Color
	FillAlpha   float64
	StrokeAlpha float64
	// Clip is the clipping region in device space; nil means unclipped.
	Clip *coords.Rect
	Text TextState

	stack []GraphicsState
}

func NewGraphicsState(ctm coords.Matrix) *GraphicsState {
	return &GraphicsState{
		CTM:         ctm,
		LineWidth:   1,
		FillColor:   DeviceGray(0),
		StrokeColor: DeviceGray(0),
		FillAlpha:   1,
		StrokeAlpha: 1,
		Text:        TextState{HorizontalScaling: 100, Matrix: coords.Identity(), LineMatrix: coords.Identity()},
	}
}

func (gs *GraphicsState) Save() {
	clone := *gs
	clone.stack = nil
	gs.stack = append(gs.stack, clone)
}

// Restore pops the saved state. Text and line matrices are not part of the
// saved state and survive the restore.
func (gs *GraphicsState) Restore() error {
	n := len(gs.stack)
	if n == 0 {
		return errors.New("state stack empty")
	}
	stack := gs.stack[:n-1]
	tm, tlm := gs.Text.Matrix, gs.Text.LineMatrix
	*gs = gs.stack[n-1]
	gs.stack = stack
	gs.Text.Matrix, gs.Text.LineMatrix = tm, tlm
	return nil
}

// Clone copies the current state without its save stack, for running a
// nested content stream such as a form XObject.
func (gs *GraphicsState) Clone() *GraphicsState {
	clone := *gs
	clone.stack = nil
	return &clone
}

// Depth returns the number of saved states.
func (gs *GraphicsState) Depth() int { return len(gs.stack) }

type simpleProcessor struct{ handlers map[string]OperatorHandler }

func NewProcessor() Processor { return &simpleProcessor{handlers: make(map[string]OperatorHandler)} }

func (p *simpleProcessor) RegisterHandler(op string, h OperatorHandler) { p.handlers[op] = h }

// Process updates the graphics state for state operators and then calls the
// handler registered for the operator, if any. Unbalanced q/Q pairs are
// tolerated.
func (p *simpleProcessor) Process(ctx context.Context, ops []Operation, ec *ExecutionContext) error {
	for i, op := range ops {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		updateState(ec.State, op)
		if h, ok := p.handlers[op.Operator]; ok {
			if err := h.Handle(ec, op); err != nil {
				return fmt.Errorf("operator %s at %d: %w", op.Operator, op.Pos, err)
			}
		}
	}
	return nil
}

func updateState(gs *GraphicsState, op Operation) {
	nums, numeric := Numbers(op.Operands)
	n := len(op.Operands)
	ts := &gs.Text
	switch op.Operator {
	case "q":
		gs.Save()
	case "Q":
		_ = gs.Restore()
	case "cm":
		if numeric && n == 6 {
			gs.CTM = coords.Matrix{nums[0], nums[1], nums[2], nums[3], nums[4], nums[5]}.Multiply(gs.CTM)
		}
	case "w":
		if numeric && n == 1 {
			gs.LineWidth = nums[0]
		}
	case "J":
		if numeric && n == 1 {
			gs.LineCap = LineCap(nums[0])
		}
	case "j":
		if numeric && n == 1 {
			gs.LineJoin = LineJoin(nums[0])
		}
	case "g":
		if numeric && n == 1 {
			gs.FillColor = DeviceGray(nums[0])
		}
	case "G":
		if numeric && n == 1 {
			gs.StrokeColor = DeviceGray(nums[0])
		}
	case "rg":
		if numeric && n == 3 {
			gs.FillColor = DeviceRGB(nums[0], nums[1], nums[2])
		}
	case "RG":
		if numeric && n == 3 {
			gs.StrokeColor = DeviceRGB(nums[0], nums[1], nums[2])
		}
	case "k":
		if numeric && n == 4 {
			gs.FillColor = DeviceCMYK(nums[0], nums[1], nums[2], nums[3])
		}
	case "K":
		if numeric && n == 4 {
			gs.StrokeColor = DeviceCMYK(nums[0], nums[1], nums[2], nums[3])
		}
	case "cs":
		gs.FillColor = initialColor(NameOperand(op.Operands, 0))
	case "CS":
		gs.StrokeColor = initialColor(NameOperand(op.Operands, 0))
	case "sc", "scn":
		gs.FillColor = setComponents(gs.FillColor, op.Operands)
	case "SC", "SCN":
		gs.StrokeColor = setComponents(gs.StrokeColor, op.Operands)
	case "BT":
		ts.Matrix, ts.LineMatrix = coords.Identity(), coords.Identity()
	case "Tf":
		if n == 2 {
			ts.Font = NameOperand(op.Operands, 0)
			if size, ok := op.Operands[1].(raw.NumberObj); ok {
				ts.FontSize = size.Float()
			}
		}
	case "Tc":
		if numeric && n == 1 {
			ts.CharSpacing = nums[0]
		}
	case "Tw":
		if numeric && n == 1 {
			ts.WordSpacing = nums[0]
		}
	case "Tz":
		if numeric && n == 1 {
			ts.HorizontalScaling = nums[0]
		}
	case "TL":
		if numeric && n == 1 {
			ts.Leading = nums[0]
		}
	case "Ts":
		if numeric && n == 1 {
			ts.Rise = nums[0]
		}
	case "Tr":
		if numeric && n == 1 {
			ts.RenderMode = TextRenderMode(nums[0])
		}
	case "Td":
		if numeric && n == 2 {
			moveLine(ts, nums[0], nums[1])
		}
	case "TD":
		if numeric && n == 2 {
			ts.Leading = -nums[1]
			moveLine(ts, nums[0], nums[1])
		}
	case "Tm":
		if numeric && n == 6 {
			ts.LineMatrix = coords.Matrix{nums[0], nums[1], nums[2], nums[3], nums[4], nums[5]}
			ts.Matrix = ts.LineMatrix
		}
	case "T*", "'":
		moveLine(ts, 0, -ts.Leading)
	case "\"":
		if n == 3 {
			if aw, ok := op.Operands[0].(raw.NumberObj); ok {
				ts.WordSpacing = aw.Float()
			}
			if ac, ok := op.Operands[1].(raw.NumberObj); ok {
				ts.CharSpacing = ac.Float()
			}
		}
		moveLine(ts, 0, -ts.Leading)
	}
}

func moveLine(ts *TextState, tx, ty float64) {
	ts.LineMatrix = coords.Translate(tx, ty).Multiply(ts.LineMatrix)
	ts.Matrix = ts.LineMatrix
}

func setComponents(c Color, operands []raw.Object) Color {
	out := Color{Space: c.Space}
	for _, o := range operands {
		switch v := o.(type) {
		case raw.NumberObj:
			out.Components = append(out.Components, v.Float())
		case raw.NameObj:
			out.Pattern = v.Val
		}
	}
	return out
}
