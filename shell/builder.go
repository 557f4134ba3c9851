// Package shell builds executable pipelines from command text.
//
// The builder is the command-graph side of the execution core: given one
// line of input it parses statements and pipe chains with mvdan.cc/sh,
// resolves each command name against a CommandTable, and returns a Pipeline
// ready for the executor. Construction failures (parse errors, unknown
// commands, unsupported syntax) never surface as a separate error value;
// the builder returns a pipeline already in the Failed state so every
// failure reaches the caller through the same state machine.
//
// # Supported syntax
//
// Statements separated by ';' or newlines, commands joined with '|', and
// '|&' which merges the left command's error records into its output.
// Arguments of the form key=value become stage parameter bindings; all other
// words are positional arguments. Expansions, redirections, and control flow
// belong to a full language front end and are rejected here.
package shell

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/smnsjas/go-shellcore/pipeline"
)

var (
	// ErrEmptyPipeline is the failure reason for input with no commands.
	ErrEmptyPipeline = errors.New("empty pipeline")
	// ErrUnknownCommand is the failure reason for an unregistered command name.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnsupportedSyntax is the failure reason for shell constructs outside
	// the pipe grammar this builder accepts.
	ErrUnsupportedSyntax = errors.New("unsupported syntax")
)

// Builder turns command text into pipelines.
type Builder struct {
	table   *CommandTable
	history *History
}

// NewBuilder creates a Builder resolving command names against table.
func NewBuilder(table *CommandTable) *Builder {
	return &Builder{
		table:   table,
		history: NewHistory(),
	}
}

// History returns the builder's invocation history.
func (b *Builder) History() *History {
	return b.history
}

// Build parses text and returns a Pipeline with one stage per command.
// When addToHistory is set the raw text is recorded before parsing. nested
// marks the pipeline as created under a suspended outer pipeline. All
// failures are surfaced as an already-Failed pipeline.
func (b *Builder) Build(text string, addToHistory, nested bool) *pipeline.Pipeline {
	if addToHistory {
		b.history.Add(text)
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(text), "")
	if err != nil {
		return pipeline.NewFailed(fmt.Errorf("parse: %w", err))
	}

	p := pipeline.New(nested)
	for _, stmt := range file.Stmts {
		specs, err := flattenPipes(stmt.Cmd)
		if err != nil {
			return pipeline.NewFailed(err)
		}
		for i, spec := range specs {
			name, args, params, err := callParts(spec.call)
			if err != nil {
				return pipeline.NewFailed(err)
			}
			factory, ok := b.table.Lookup(name)
			if !ok {
				return pipeline.NewFailed(fmt.Errorf("%w: %s", ErrUnknownCommand, name))
			}
			cmd, err := factory(args, params)
			if err != nil {
				return pipeline.NewFailed(fmt.Errorf("%s: %w", name, err))
			}

			st := p.Append(cmd)
			st.MergeError = spec.merge
			st.EndOfStatement = i == len(specs)-1
			for k, v := range params {
				st.Parameters[k] = v
			}
		}
	}

	if len(p.Stages()) == 0 {
		return pipeline.NewFailed(ErrEmptyPipeline)
	}
	return p
}

// stageSpec is one command position extracted from a pipe chain.
type stageSpec struct {
	call  *syntax.CallExpr
	merge bool
}

// flattenPipes linearizes a (possibly nested) pipe chain into stage specs in
// execution order. The '|&' operator marks its left command for error-merge.
func flattenPipes(cmd syntax.Command) ([]stageSpec, error) {
	switch c := cmd.(type) {
	case *syntax.CallExpr:
		return []stageSpec{{call: c}}, nil
	case *syntax.BinaryCmd:
		if c.Op != syntax.Pipe && c.Op != syntax.PipeAll {
			return nil, fmt.Errorf("%w: operator %v", ErrUnsupportedSyntax, c.Op)
		}
		left, err := flattenPipes(c.X.Cmd)
		if err != nil {
			return nil, err
		}
		if c.Op == syntax.PipeAll && len(left) > 0 {
			left[len(left)-1].merge = true
		}
		right, err := flattenPipes(c.Y.Cmd)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedSyntax, cmd)
	}
}

// callParts splits a call into command name, positional arguments, and
// key=value parameter bindings.
func callParts(call *syntax.CallExpr) (string, []string, map[string]interface{}, error) {
	if call == nil || len(call.Args) == 0 {
		return "", nil, nil, fmt.Errorf("%w: missing command name", ErrUnsupportedSyntax)
	}
	name, err := wordText(call.Args[0])
	if err != nil {
		return "", nil, nil, err
	}

	params := make(map[string]interface{})
	var args []string
	for _, w := range call.Args[1:] {
		text, err := wordText(w)
		if err != nil {
			return "", nil, nil, err
		}
		if key, value, found := strings.Cut(text, "="); found && key != "" {
			params[key] = value
		} else {
			args = append(args, text)
		}
	}
	return name, args, params, nil
}

// wordText resolves a word to its literal text. Words requiring expansion
// are rejected.
func wordText(w *syntax.Word) (string, error) {
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, dp := range p.Parts {
				lit, ok := dp.(*syntax.Lit)
				if !ok {
					return "", fmt.Errorf("%w: expansion inside quotes", ErrUnsupportedSyntax)
				}
				sb.WriteString(lit.Value)
			}
		default:
			return "", fmt.Errorf("%w: %T word part", ErrUnsupportedSyntax, part)
		}
	}
	return sb.String(), nil
}
