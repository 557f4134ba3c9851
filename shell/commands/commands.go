// Package commands provides the built-in streaming commands registered with
// the interactive shell.
//
// Each command is a small pipeline.Command: it consumes the previous stage's
// output, checks for cancellation before processing the next object, and
// emits results one at a time. The set is intentionally small; anything
// beyond plumbing demo pipelines belongs to the host application.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smnsjas/go-shellcore/pipeline"
	"github.com/smnsjas/go-shellcore/shell"
)

// DefaultTable returns a CommandTable with every built-in registered.
func DefaultTable() *shell.CommandTable {
	table := shell.NewCommandTable()
	table.Register("echo", func(args []string, params map[string]interface{}) (pipeline.Command, error) {
		return &echoCmd{args: args}, nil
	})
	table.Register("range", newRange)
	table.Register("upper", func(args []string, params map[string]interface{}) (pipeline.Command, error) {
		return &upperCmd{}, nil
	})
	table.Register("count", func(args []string, params map[string]interface{}) (pipeline.Command, error) {
		return &countCmd{}, nil
	})
	table.Register("first", newFirst)
	table.Register("cat", func(args []string, params map[string]interface{}) (pipeline.Command, error) {
		return &catCmd{}, nil
	})
	table.Register("sleep", newSleep)
	table.Register("fail", newFail)
	return table
}

// echoCmd emits each argument as a string object.
type echoCmd struct {
	args []string
}

func (c *echoCmd) Name() string { return "echo" }

func (c *echoCmd) Run(ctx context.Context, in <-chan interface{}, out *pipeline.Emitter) error {
	for _, arg := range c.args {
		if ctx.Err() != nil {
			return pipeline.ErrStopped
		}
		if err := out.Emit(arg); err != nil {
			return err
		}
	}
	return nil
}

// rangeCmd emits the integers of a half-open interval.
type rangeCmd struct {
	from, to int
}

func newRange(args []string, params map[string]interface{}) (pipeline.Command, error) {
	switch len(args) {
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("range: %w", err)
		}
		return &rangeCmd{from: 1, to: n + 1}, nil
	case 2:
		from, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("range: %w", err)
		}
		to, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("range: %w", err)
		}
		return &rangeCmd{from: from, to: to + 1}, nil
	default:
		return nil, errors.New("range: expected N or FROM TO")
	}
}

func (c *rangeCmd) Name() string { return "range" }

func (c *rangeCmd) Run(ctx context.Context, in <-chan interface{}, out *pipeline.Emitter) error {
	for i := c.from; i < c.to; i++ {
		if ctx.Err() != nil {
			return pipeline.ErrStopped
		}
		if err := out.Emit(i); err != nil {
			return err
		}
	}
	return nil
}

// upperCmd uppercases string input; everything else passes through its
// default string form.
type upperCmd struct{}

func (c *upperCmd) Name() string { return "upper" }

func (c *upperCmd) Run(ctx context.Context, in <-chan interface{}, out *pipeline.Emitter) error {
	for obj := range in {
		if ctx.Err() != nil {
			return pipeline.ErrStopped
		}
		if err := out.Emit(strings.ToUpper(fmt.Sprintf("%v", obj))); err != nil {
			return err
		}
	}
	return nil
}

// countCmd emits the number of input objects.
type countCmd struct{}

func (c *countCmd) Name() string { return "count" }

func (c *countCmd) Run(ctx context.Context, in <-chan interface{}, out *pipeline.Emitter) error {
	n := 0
	for range in {
		if ctx.Err() != nil {
			return pipeline.ErrStopped
		}
		n++
	}
	return out.Emit(n)
}

// firstCmd forwards the first n input objects and then stops reading.
type firstCmd struct {
	n int
}

func newFirst(args []string, params map[string]interface{}) (pipeline.Command, error) {
	if len(args) != 1 {
		return nil, errors.New("first: expected N")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("first: %w", err)
	}
	return &firstCmd{n: n}, nil
}

func (c *firstCmd) Name() string { return "first" }

func (c *firstCmd) Run(ctx context.Context, in <-chan interface{}, out *pipeline.Emitter) error {
	seen := 0
	for obj := range in {
		if ctx.Err() != nil {
			return pipeline.ErrStopped
		}
		if seen >= c.n {
			return nil
		}
		if err := out.Emit(obj); err != nil {
			return err
		}
		seen++
	}
	return nil
}

// catCmd forwards input unchanged.
type catCmd struct{}

func (c *catCmd) Name() string { return "cat" }

func (c *catCmd) Run(ctx context.Context, in <-chan interface{}, out *pipeline.Emitter) error {
	for obj := range in {
		if ctx.Err() != nil {
			return pipeline.ErrStopped
		}
		if err := out.Emit(obj); err != nil {
			return err
		}
	}
	return nil
}

// sleepCmd pauses for a duration, observing cancellation, then forwards
// input.
type sleepCmd struct {
	d time.Duration
}

func newSleep(args []string, params map[string]interface{}) (pipeline.Command, error) {
	if len(args) != 1 {
		return nil, errors.New("sleep: expected DURATION")
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return nil, fmt.Errorf("sleep: %w", err)
	}
	return &sleepCmd{d: d}, nil
}

func (c *sleepCmd) Name() string { return "sleep" }

func (c *sleepCmd) Run(ctx context.Context, in <-chan interface{}, out *pipeline.Emitter) error {
	select {
	case <-time.After(c.d):
	case <-ctx.Done():
		return pipeline.ErrStopped
	}
	for obj := range in {
		if ctx.Err() != nil {
			return pipeline.ErrStopped
		}
		if err := out.Emit(obj); err != nil {
			return err
		}
	}
	return nil
}

// failCmd emits `emit` objects and then fails with the given message.
type failCmd struct {
	emit    int
	message string
}

func newFail(args []string, params map[string]interface{}) (pipeline.Command, error) {
	message := "intentional failure"
	if len(args) > 0 {
		message = strings.Join(args, " ")
	}
	emit := 0
	if v, ok := params["emit"]; ok {
		n, err := strconv.Atoi(fmt.Sprintf("%v", v))
		if err != nil {
			return nil, fmt.Errorf("fail: %w", err)
		}
		emit = n
	}
	return &failCmd{emit: emit, message: message}, nil
}

func (c *failCmd) Name() string { return "fail" }

func (c *failCmd) Run(ctx context.Context, in <-chan interface{}, out *pipeline.Emitter) error {
	for i := 0; i < c.emit; i++ {
		if err := out.Emit(i + 1); err != nil {
			return err
		}
	}
	return errors.New(c.message)
}
