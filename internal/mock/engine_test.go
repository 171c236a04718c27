package mock

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/rules"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/shell"
)

// fakeRunner answers jobs from a function and records them.
type fakeRunner struct {
	mu   sync.Mutex
	jobs []shell.Job
	fn   func(shell.Job) (shell.Output, error)
}

func (f *fakeRunner) Run(_ context.Context, job shell.Job) (shell.Output, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	if f.fn == nil {
		return shell.Output{}, nil
	}
	return f.fn(job)
}

func storeWith(t *testing.T, rs ...rules.Rule) *rules.Store {
	t.Helper()
	s := rules.NewStore()
	for _, r := range rs {
		if _, err := s.Add(r); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	return s
}

func realRunner(t *testing.T) shell.Runner {
	t.Helper()
	if _, err := exec.LookPath(shell.DefaultShell); err != nil {
		t.Skipf("%s not available: %v", shell.DefaultShell, err)
	}
	return &shell.ExecRunner{TempDir: t.TempDir()}
}

func TestProcess_Replace(t *testing.T) {
	runner := &fakeRunner{}
	store := storeWith(t, rules.Rule{Name: "who", Pattern: "^whoami$", Enabled: true, Action: rules.Replace{Output: "root"}})
	e := NewEngine(store, runner)

	res := e.Process(context.Background(), "whoami")
	if res.Output != "root" || !res.Mocked {
		t.Errorf("expected (root, true), got (%q, %v)", res.Output, res.Mocked)
	}
	if res.Rule == nil || res.Rule.Name != "who" {
		t.Errorf("expected matched rule to be reported, got %+v", res.Rule)
	}
	if len(runner.jobs) != 0 {
		t.Errorf("expected no process for a replace rule, got %d jobs", len(runner.jobs))
	}
}

func TestProcess_Empty(t *testing.T) {
	runner := &fakeRunner{}
	store := storeWith(t, rules.Rule{Name: "shadow", Pattern: "cat /etc/shadow", Enabled: true, Action: rules.Empty{}})
	e := NewEngine(store, runner)

	res := e.Process(context.Background(), "cat /etc/shadow")
	if res.Output != "" || !res.Mocked {
		t.Errorf("expected (\"\", true), got (%q, %v)", res.Output, res.Mocked)
	}
	if len(runner.jobs) != 0 {
		t.Errorf("expected no process for an empty rule, got %d jobs", len(runner.jobs))
	}
}

func TestProcess_DisabledRuleSkipped(t *testing.T) {
	store := storeWith(t,
		rules.Rule{Name: "all", Pattern: ".*", Enabled: false, Action: rules.Empty{}},
		rules.Rule{Name: "ls", Pattern: "ls", Enabled: true, Action: rules.Replace{Output: "file1"}},
	)
	e := NewEngine(store, &fakeRunner{})

	res := e.Process(context.Background(), "ls -la")
	if res.Output != "file1" || !res.Mocked {
		t.Errorf("expected (file1, true), got (%q, %v)", res.Output, res.Mocked)
	}
}

func TestProcess_NoMatchRunsReal(t *testing.T) {
	runner := &fakeRunner{fn: func(job shell.Job) (shell.Output, error) {
		return shell.Output{Stdout: "out\n", Stderr: "err\n", ExitCode: 1}, nil
	}}
	e := NewEngine(rules.NewStore(), runner, WithTimeout(2*time.Second))

	res := e.Process(context.Background(), "ls /nope")
	if res.Mocked || res.Rule != nil {
		t.Errorf("expected unmocked result, got %+v", res)
	}
	if res.Output != "out\nerr\n" {
		t.Errorf("expected stdout then stderr, got %q", res.Output)
	}
	if len(runner.jobs) != 1 || runner.jobs[0].Script != "ls /nope\n" || runner.jobs[0].Timeout != 2*time.Second {
		t.Errorf("unexpected job %+v", runner.jobs)
	}
}

func TestProcess_Diagnostics(t *testing.T) {
	tests := []struct {
		name   string
		action rules.Action
		err    error
		want   string
	}{
		{"real timeout", nil, shell.ErrTimeout, "command timed out"},
		{"real launch", nil, shell.ErrLaunch, "command execution error: "},
		{"script timeout", rules.Script{Body: "sleep 9"}, shell.ErrTimeout, "command timed out"},
		{"script launch", rules.Script{Body: "true"}, shell.ErrLaunch, "script execution error: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{fn: func(shell.Job) (shell.Output, error) { return shell.Output{}, tt.err }}
			store := rules.NewStore()
			if tt.action != nil {
				store = storeWith(t, rules.Rule{Name: "r", Pattern: "x", Enabled: true, Action: tt.action})
			}
			res := NewEngine(store, runner).Process(context.Background(), "x")
			if !strings.HasPrefix(res.Output, tt.want) {
				t.Errorf("expected output starting with %q, got %q", tt.want, res.Output)
			}
		})
	}
}

func TestProcess_FilterErrors(t *testing.T) {
	runner := &fakeRunner{fn: func(job shell.Job) (shell.Output, error) {
		if job.Script == "boom\n" {
			return shell.Output{}, fmt.Errorf("%w: exploded", shell.ErrLaunch)
		}
		return shell.Output{Stdout: "real\n"}, nil
	}}
	store := storeWith(t, rules.Rule{Name: "f", Pattern: "^ps", Enabled: true, Action: rules.Filter{Command: "boom"}})

	res := NewEngine(store, runner).Process(context.Background(), "ps aux")
	if !strings.HasPrefix(res.Output, "filter execution error: ") {
		t.Errorf("expected filter diagnostic, got %q", res.Output)
	}
}

func TestProcess_FilterInputShape(t *testing.T) {
	runner := &fakeRunner{fn: func(job shell.Job) (shell.Output, error) {
		if job.Stdin != "" {
			return shell.Output{Stdout: "filtered", Stderr: "noise"}, nil
		}
		return shell.Output{Stdout: "a\nb\n\n\n"}, nil
	}}
	store := storeWith(t, rules.Rule{Name: "f", Pattern: "x", Enabled: true, Action: rules.Filter{Command: "cat"}})

	res := NewEngine(store, runner).Process(context.Background(), "x")
	if res.Output != "filtered" {
		t.Errorf("expected filter stdout only, got %q", res.Output)
	}
	if got := runner.jobs[1].Stdin; got != "a\nb\n" {
		t.Errorf("expected trailing newlines collapsed to one, got %q", got)
	}
}

func TestProcess_UnknownActionRunsReal(t *testing.T) {
	runner := &fakeRunner{fn: func(shell.Job) (shell.Output, error) { return shell.Output{Stdout: "real"}, nil }}
	store := storeWith(t, rules.Rule{Name: "u", Pattern: "x", Enabled: true, Action: rules.Unknown{Name: "teleport"}})

	res := NewEngine(store, runner).Process(context.Background(), "x")
	if res.Output != "real" || !res.Mocked {
		t.Errorf("expected real output reported as mocked, got (%q, %v)", res.Output, res.Mocked)
	}
}

func TestPreview_IgnoresEnabled(t *testing.T) {
	e := NewEngine(rules.NewStore(), &fakeRunner{})
	r := rules.Rule{Name: "off", Pattern: "nomatch", Enabled: false, Action: rules.Replace{Output: "previewed"}}
	if got := e.Preview(context.Background(), "anything", r); got != "previewed" {
		t.Errorf("expected previewed, got %q", got)
	}
}

func TestProcess_RealShell(t *testing.T) {
	runner := realRunner(t)

	tests := []struct {
		name    string
		action  rules.Action
		command string
		want    string
	}{
		{"filter wc", rules.Filter{Command: "wc -l"}, "printf 'a\\nb\\nc\\n'", "3"},
		{"condition true", rules.Filter{Command: "grep -v secret", Condition: "grep -q secret"}, "printf 'ok\\nsecret\\n'", "ok"},
		{"condition false", rules.Filter{Command: "tr a-z A-Z", Condition: "grep -q secret"}, "echo ok", "ok"},
		{"filter drops stderr", rules.Filter{Command: "cat; echo err >&2"}, "echo ok", "ok"},
		{"script sees CMD", rules.Script{Body: `echo "got: $CMD"`}, "cat '/etc/pass wd'", "got: cat '/etc/pass wd'"},
		{"script heredoc", rules.Script{Body: "cat <<EOF\nline\nEOF"}, "x", "line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storeWith(t, rules.Rule{Name: tt.name, Pattern: ".", Enabled: true, Action: tt.action})
			res := NewEngine(store, runner).Process(context.Background(), tt.command)
			if got := strings.TrimSpace(res.Output); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestProcess_RealTimeout(t *testing.T) {
	runner := realRunner(t)
	e := NewEngine(rules.NewStore(), runner, WithTimeout(200*time.Millisecond))

	if res := e.Process(context.Background(), "sleep 5"); res.Output != "command timed out" {
		t.Errorf("expected timeout diagnostic, got %q", res.Output)
	}
}

func TestDiagnostic(t *testing.T) {
	if got := diagnostic(fmt.Errorf("wrapped: %w", shell.ErrTimeout), msgScriptError); got != msgTimeout {
		t.Errorf("expected wrapped timeout to map to %q, got %q", msgTimeout, got)
	}
	if got := diagnostic(errors.New("boom"), msgFilterError); got != "filter execution error: boom" {
		t.Errorf("unexpected diagnostic %q", got)
	}
}
