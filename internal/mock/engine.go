// Package mock decides how a live command is answered: by a matching rule's
// fabricated result, or by running it for real.
package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/rules"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/shell"
)

// DefaultTimeout bounds real commands, scripts and filters.
const DefaultTimeout = 5 * time.Second

// Diagnostics returned in place of output when execution fails. They are
// part of what a remote user sees, so they stay fixed.
const (
	msgTimeout      = "command timed out"
	msgCommandError = "command execution error: %v"
	msgScriptError  = "script execution error: %v"
	msgFilterError  = "filter execution error: %v"
)

// RuleSource finds the rule that handles a command. *rules.Store
// implements it.
type RuleSource interface {
	FindMatching(command string) (rules.Rule, bool)
}

// Result is the outcome of processing one command.
type Result struct {
	Output string
	// Mocked is true when a rule handled the command.
	Mocked bool
	// Rule is the matched rule, nil when the command ran unmodified.
	Rule *rules.Rule
}

// Engine dispatches commands to rule actions. It keeps no state between
// calls; the rule source is read once per command.
type Engine struct {
	rules   RuleSource
	runner  shell.Runner
	timeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the limit for real commands, scripts and filters.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine returns an engine reading rules from src and running shell
// text through runner.
func NewEngine(src RuleSource, runner shell.Runner, opts ...Option) *Engine {
	e := &Engine{
		rules:   src,
		runner:  runner,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process answers command. It never fails: execution problems come back
// as diagnostic text in Result.Output.
func (e *Engine) Process(ctx context.Context, command string) Result {
	rule, ok := e.rules.FindMatching(command)
	if !ok {
		return Result{Output: e.runReal(ctx, command)}
	}
	return Result{
		Output: e.apply(ctx, command, rule),
		Mocked: true,
		Rule:   &rule,
	}
}

// Preview applies rule to command as if it had matched, whatever its
// enabled flag or store membership.
func (e *Engine) Preview(ctx context.Context, command string, rule rules.Rule) string {
	return e.apply(ctx, command, rule)
}

func (e *Engine) apply(ctx context.Context, command string, rule rules.Rule) string {
	switch a := rule.Action.(type) {
	case rules.Replace:
		return a.Output

	case rules.Script:
		return e.runScript(ctx, command, a.Body)

	case rules.Filter:
		// The real command always runs, even when the condition later
		// rejects filtering.
		real := e.runReal(ctx, command)
		if a.Condition != "" && !e.conditionHolds(ctx, real, a.Condition) {
			return real
		}
		return e.runFilter(ctx, real, a.Command)

	case rules.Empty:
		return ""

	default:
		return e.runReal(ctx, command)
	}
}

func (e *Engine) runReal(ctx context.Context, command string) string {
	out, err := e.runner.Run(ctx, shell.Job{Script: command + "\n", Timeout: e.timeout})
	if err != nil {
		return diagnostic(err, msgCommandError)
	}
	return out.Combined()
}

func (e *Engine) runScript(ctx context.Context, command, body string) string {
	script := "CMD=" + shell.Quote(command) + "\n" + body + "\n"
	out, err := e.runner.Run(ctx, shell.Job{Script: script, Timeout: e.timeout})
	if err != nil {
		return diagnostic(err, msgScriptError)
	}
	return out.Combined()
}

// conditionHolds runs condition with output on stdin. It has no timeout of
// its own; only ctx bounds it.
func (e *Engine) conditionHolds(ctx context.Context, output, condition string) bool {
	out, err := e.runner.Run(ctx, shell.Job{
		Script: condition + "\n",
		Stdin:  pipeInput(output),
	})
	return err == nil && out.ExitCode == 0
}

// runFilter returns only the filter's stdout.
func (e *Engine) runFilter(ctx context.Context, output, filter string) string {
	out, err := e.runner.Run(ctx, shell.Job{
		Script:  filter + "\n",
		Stdin:   pipeInput(output),
		Timeout: e.timeout,
	})
	if err != nil {
		return diagnostic(err, msgFilterError)
	}
	return out.Stdout
}

// pipeInput shapes output the way the compiled script feeds it to a
// condition or filter: OUTPUT=$(...) drops trailing newlines and
// echo "$OUTPUT" adds exactly one back.
func pipeInput(output string) string {
	return strings.TrimRight(output, "\n") + "\n"
}

func diagnostic(err error, format string) string {
	if errors.Is(err, shell.ErrTimeout) {
		return msgTimeout
	}
	return fmt.Sprintf(format, err)
}
