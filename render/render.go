// Package render provides the default renderer stage appended to pipelines
// that display their results.
//
// OutDefault is an ordinary pipeline stage: it formats every object it
// receives to a writer and passes the object through unchanged, so it can sit
// in the middle of a multi-statement pipeline as well as at its end. Error
// records get a distinct style; everything else uses its native string
// conversion.
package render

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/smnsjas/go-shellcore/objects"
	"github.com/smnsjas/go-shellcore/pipeline"
)

// OutDefault renders pipeline objects to a writer while forwarding them.
type OutDefault struct {
	mu sync.Mutex
	w  io.Writer

	objStyle lipgloss.Style
	errStyle lipgloss.Style
}

// NewOutDefault creates a renderer stage writing to w.
func NewOutDefault(w io.Writer) *OutDefault {
	return &OutDefault{
		w:        w,
		objStyle: lipgloss.NewStyle(),
		errStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// Name identifies the default renderer stage.
func (o *OutDefault) Name() string { return "out-default" }

// Run formats each input object to the writer and forwards it downstream.
func (o *OutDefault) Run(ctx context.Context, in <-chan interface{}, out *pipeline.Emitter) error {
	for obj := range in {
		if ctx.Err() != nil {
			return pipeline.ErrStopped
		}
		o.mu.Lock()
		fmt.Fprintln(o.w, o.format(obj))
		o.mu.Unlock()
		if err := out.Emit(obj); err != nil {
			return err
		}
	}
	return nil
}

func (o *OutDefault) format(obj interface{}) string {
	switch v := obj.(type) {
	case *objects.ErrorRecord:
		return o.errStyle.Render(v.Error())
	case objects.Wrapped, *objects.Wrapped:
		return o.format(objects.Unwrap(v))
	case string:
		return o.objStyle.Render(v)
	case fmt.Stringer:
		return o.objStyle.Render(v.String())
	default:
		return o.objStyle.Render(fmt.Sprintf("%v", v))
	}
}
