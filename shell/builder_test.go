package shell

import (
	"context"
	"errors"
	"testing"

	"github.com/smnsjas/go-shellcore/pipeline"
)

// nopCmd is a stub command that records its construction inputs.
type nopCmd struct {
	name   string
	args   []string
	params map[string]interface{}
}

func (c *nopCmd) Name() string { return c.name }

func (c *nopCmd) Run(ctx context.Context, in <-chan interface{}, out *pipeline.Emitter) error {
	for range in {
	}
	return nil
}

func testTable() *CommandTable {
	table := NewCommandTable()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		name := name
		table.Register(name, func(args []string, params map[string]interface{}) (pipeline.Command, error) {
			return &nopCmd{name: name, args: args, params: params}, nil
		})
	}
	return table
}

func TestBuilder_SingleCommand(t *testing.T) {
	b := NewBuilder(testTable())
	p := b.Build("alpha one two", false, false)

	if p.State() != pipeline.StateNotStarted {
		t.Fatalf("expected NotStarted, got %s (%v)", p.State(), p.Reason())
	}
	stages := p.Stages()
	if len(stages) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(stages))
	}
	cmd := stages[0].Command.(*nopCmd)
	if len(cmd.args) != 2 || cmd.args[0] != "one" || cmd.args[1] != "two" {
		t.Errorf("unexpected args: %v", cmd.args)
	}
	if !stages[0].EndOfStatement {
		t.Error("sole stage must be end of statement")
	}
}

func TestBuilder_PipeChain(t *testing.T) {
	b := NewBuilder(testTable())
	p := b.Build("alpha | beta | gamma", false, false)

	stages := p.Stages()
	if len(stages) != 3 {
		t.Fatalf("expected 3 stages, got %d (%v)", len(stages), p.Reason())
	}
	names := []string{"alpha", "beta", "gamma"}
	for i, st := range stages {
		if st.Command.Name() != names[i] {
			t.Errorf("stage %d: expected %s, got %s", i, names[i], st.Command.Name())
		}
		if st.Ordinal != i {
			t.Errorf("stage %d: ordinal %d", i, st.Ordinal)
		}
		wantEOS := i == len(stages)-1
		if st.EndOfStatement != wantEOS {
			t.Errorf("stage %d: EndOfStatement = %v", i, st.EndOfStatement)
		}
	}
}

func TestBuilder_MultipleStatements(t *testing.T) {
	b := NewBuilder(testTable())
	p := b.Build("alpha | beta; gamma", false, false)

	stages := p.Stages()
	if len(stages) != 3 {
		t.Fatalf("expected 3 stages, got %d (%v)", len(stages), p.Reason())
	}
	// beta ends the first statement, gamma the second.
	if stages[0].EndOfStatement {
		t.Error("alpha must not end a statement")
	}
	if !stages[1].EndOfStatement || !stages[2].EndOfStatement {
		t.Error("statement boundaries not marked")
	}
}

func TestBuilder_PipeAllMergesErrors(t *testing.T) {
	b := NewBuilder(testTable())
	p := b.Build("alpha |& beta", false, false)

	stages := p.Stages()
	if len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d (%v)", len(stages), p.Reason())
	}
	if !stages[0].MergeError {
		t.Error("left side of |& must merge errors")
	}
	if stages[1].MergeError {
		t.Error("right side of |& must not merge errors")
	}
}

func TestBuilder_ParameterBindings(t *testing.T) {
	b := NewBuilder(testTable())
	p := b.Build("alpha depth=3 verbose=true file.txt", false, false)

	stages := p.Stages()
	if len(stages) != 1 {
		t.Fatalf("expected 1 stage, got %d (%v)", len(stages), p.Reason())
	}
	cmd := stages[0].Command.(*nopCmd)
	if cmd.params["depth"] != "3" || cmd.params["verbose"] != "true" {
		t.Errorf("unexpected params: %v", cmd.params)
	}
	if len(cmd.args) != 1 || cmd.args[0] != "file.txt" {
		t.Errorf("unexpected args: %v", cmd.args)
	}
	if stages[0].Parameters["depth"] != "3" {
		t.Error("parameters not bound on the stage")
	}
}

func TestBuilder_QuotedArguments(t *testing.T) {
	b := NewBuilder(testTable())
	p := b.Build(`alpha "hello world" 'single quoted'`, false, false)

	stages := p.Stages()
	if len(stages) != 1 {
		t.Fatalf("expected 1 stage, got %d (%v)", len(stages), p.Reason())
	}
	cmd := stages[0].Command.(*nopCmd)
	if len(cmd.args) != 2 || cmd.args[0] != "hello world" || cmd.args[1] != "single quoted" {
		t.Errorf("unexpected args: %v", cmd.args)
	}
}

func TestBuilder_FailuresSurfaceAsFailedPipeline(t *testing.T) {
	b := NewBuilder(testTable())

	tests := []struct {
		name string
		text string
		want error
	}{
		{"UnknownCommand", "missing", ErrUnknownCommand},
		{"Empty", "", ErrEmptyPipeline},
		{"UnsupportedControlFlow", "if alpha; then beta; fi", ErrUnsupportedSyntax},
		{"UnsupportedExpansion", "alpha $HOME", ErrUnsupportedSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := b.Build(tt.text, false, false)
			if p.State() != pipeline.StateFailed {
				t.Fatalf("expected Failed pipeline, got %s", p.State())
			}
			if !errors.Is(p.Reason(), tt.want) {
				t.Errorf("expected reason %v, got %v", tt.want, p.Reason())
			}
			// Invoking the failed pipeline reports the construction reason.
			if _, err := p.InvokeSync(context.Background()); !errors.Is(err, tt.want) {
				t.Errorf("expected invoke error %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuilder_ParseErrorFails(t *testing.T) {
	b := NewBuilder(testTable())
	p := b.Build("alpha | | beta", false, false)
	if p.State() != pipeline.StateFailed {
		t.Fatalf("expected Failed pipeline for parse error, got %s", p.State())
	}
}

func TestBuilder_History(t *testing.T) {
	b := NewBuilder(testTable())

	b.Build("alpha", true, false)
	b.Build("beta", false, false) // not recorded
	b.Build("gamma", true, false)

	got := b.History().Entries()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "gamma" {
		t.Errorf("unexpected history: %v", got)
	}
}

func TestBuilder_NestedFlagCarried(t *testing.T) {
	b := NewBuilder(testTable())
	if !b.Build("alpha", false, true).Nested() {
		t.Error("nested flag not carried to pipeline")
	}
}

func TestHistory_Limit(t *testing.T) {
	h := NewHistory()
	h.limit = 3
	for _, s := range []string{"a", "b", "c", "d"} {
		h.Add(s)
	}
	got := h.Entries()
	if len(got) != 3 || got[0] != "b" || got[2] != "d" {
		t.Errorf("unexpected evicted history: %v", got)
	}
	h.Add("")
	if h.Len() != 3 {
		t.Error("empty text must not be recorded")
	}
}
