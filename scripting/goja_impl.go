package scripting

import (
	"context"

	"github.com/dop251/goja"
)

type GojaEngine struct {
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	vm := goja.New()
	return &GojaEngine{vm: vm}
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	return val.Export(), nil
}

// RegisterDOM installs the document as the global object, the way viewers
// bind `this` for document scripts, together with an `app` object.
func (e *GojaEngine) RegisterDOM(dom PDFDOM) error {
	global := e.vm.GlobalObject()
	err := global.DefineAccessorProperty("pageNum",
		e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return e.vm.ToValue(dom.PageNum())
		}),
		e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 {
				dom.SetPageNum(int(call.Arguments[0].ToInteger()))
			}
			return goja.Undefined()
		}),
		goja.FLAG_TRUE, // Configurable
		goja.FLAG_TRUE, // Enumerable
	)
	if err != nil {
		return err
	}
	err = global.DefineAccessorProperty("numPages",
		e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return e.vm.ToValue(dom.NumPages())
		}),
		nil,
		goja.FLAG_TRUE,
		goja.FLAG_TRUE,
	)
	if err != nil {
		return err
	}

	for _, action := range []string{ActionPrint, ActionSaveAs, ActionExportAsText} {
		if err := global.Set(action, func(call goja.FunctionCall) goja.Value {
			dom.Request(action)
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}

	appObj := e.vm.NewObject()
	err = appObj.Set("alert", func(call goja.FunctionCall) goja.Value {
		msg := ""
		if len(call.Arguments) > 0 {
			msg = call.Arguments[0].String()
		}
		dom.Alert(msg)
		// 1 is the OK button
		return e.vm.ToValue(1)
	})
	if err != nil {
		return err
	}
	err = appObj.Set("execMenuItem", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			if action, ok := menuActions[call.Arguments[0].String()]; ok {
				dom.Request(action)
			}
		}
		return goja.Undefined()
	})
	if err != nil {
		return err
	}
	if err := appObj.Set("viewerType", "Reader"); err != nil {
		return err
	}
	return e.vm.Set("app", appObj)
}
