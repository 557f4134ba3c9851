package render

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/smnsjas/go-shellcore/objects"
	"github.com/smnsjas/go-shellcore/pipeline"
)

// emitAll is a stub source stage for driving the renderer.
type emitAll struct {
	objs []interface{}
}

func (c *emitAll) Name() string { return "emit" }

func (c *emitAll) Run(ctx context.Context, in <-chan interface{}, out *pipeline.Emitter) error {
	for _, obj := range c.objs {
		if err := out.Emit(obj); err != nil {
			return err
		}
	}
	return nil
}

func TestOutDefault_RendersAndPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	rec := objects.NewErrorRecord(errors.New("broken"), "stage", uuid.New())

	p := pipeline.New(false)
	p.Append(&emitAll{objs: []interface{}{"hello", 42, objects.Wrap("inner"), rec}})
	p.Append(NewOutDefault(&buf))
	p.Input().Close()

	results, err := p.InvokeSync(context.Background())
	if err != nil {
		t.Fatalf("InvokeSync failed: %v", err)
	}

	// Objects flow through the renderer untouched.
	if len(results) != 4 {
		t.Fatalf("expected 4 pass-through objects, got %d", len(results))
	}
	if results[0] != "hello" || results[1] != 42 {
		t.Errorf("pass-through objects altered: %v", results[:2])
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 rendered lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "hello") {
		t.Errorf("line 0: %q", lines[0])
	}
	if !strings.Contains(lines[1], "42") {
		t.Errorf("line 1: %q", lines[1])
	}
	// One layer of wrapping is removed for display.
	if !strings.Contains(lines[2], "inner") {
		t.Errorf("line 2: %q", lines[2])
	}
	if !strings.Contains(lines[3], "broken") {
		t.Errorf("line 3: %q", lines[3])
	}
}
