package compiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/mock"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/rules"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/shell"
)

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

func TestCompile_SkipsDisabled(t *testing.T) {
	s := storeWith(t,
		rules.Rule{Name: "who", Pattern: "^whoami$", Enabled: true, Action: rules.Replace{Output: "root"}},
		rules.Rule{Name: "off", Pattern: "^id$", Enabled: false, Action: rules.Replace{Output: "uid=0"}},
	)
	script := Compile(s)

	rep, err := Check(script)
	if err != nil {
		t.Fatalf("Check failed: %v\n%s", err, script)
	}
	if rep.RuleBlocks != 1 {
		t.Errorf("expected 1 rule block, got %d", rep.RuleBlocks)
	}
	if strings.Contains(script, "uid=0") {
		t.Error("expected disabled rule to be absent from the script")
	}
}

func TestCompile_EveryActionParses(t *testing.T) {
	s := rules.NewDefaultStore()
	s.Add(rules.Rule{Name: "cond", Pattern: "^ls", Enabled: true, Action: rules.Filter{Command: "grep -v x", Condition: "grep -q x"}})
	s.Add(rules.Rule{Name: "future", Pattern: "^df", Enabled: true, Action: rules.Unknown{Name: "teleport"}})
	s.Add(rules.Rule{Name: "broken", Pattern: "([", Enabled: true, Action: rules.Empty{}})
	s.Add(rules.Rule{Name: "heredoc", Pattern: "^motd", Enabled: true, Action: rules.Script{Body: "cat <<EOF\nwelcome\nEOF"}})

	script := Compile(s)
	rep, err := Check(script)
	if err != nil {
		t.Fatalf("Check failed: %v\n%s", err, script)
	}

	enabled := 0
	for _, r := range s.List() {
		if r.Enabled && rules.ValidPattern(r.Pattern) {
			enabled++
		}
	}
	if rep.RuleBlocks != enabled {
		t.Errorf("expected %d rule blocks, got %d", enabled, rep.RuleBlocks)
	}
	if !strings.Contains(script, "# skipped: pattern does not compile") {
		t.Error("expected invalid pattern to be noted")
	}
}

func TestCompile_Deterministic(t *testing.T) {
	s := rules.NewDefaultStore()
	if a, b := Compile(s), Compile(s); a != b {
		t.Error("expected identical output for identical rules")
	}
}

func TestCompile_QuotesConfigAndText(t *testing.T) {
	s := storeWith(t, rules.Rule{
		Name:        "multi\nline name",
		Description: "desc",
		Pattern:     "it's",
		Enabled:     true,
		Action:      rules.Replace{Output: "$(rm -rf /)"},
	})
	s.SetConfig(rules.Config{LogDirectory: "/var/log/my logs", LogFilename: "a;b.log"})
	script := Compile(s)

	for _, want := range []string{
		"LOG_DIRECTORY='/var/log/my logs'\n",
		"LOG_FILENAME='a;b.log'\n",
		"# rule 1: multi line name: desc\n",
		"printf '%s\\n' '$(rm -rf /)'\n",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("expected script to contain %q\n%s", want, script)
		}
	}
}

func TestCheck_NoBranch(t *testing.T) {
	if _, err := Check("echo hi\n"); err == nil {
		t.Error("expected error for a script without the forced-command branch")
	}
	if _, err := Check("if true; then\n"); err == nil {
		t.Error("expected parse error")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin", "forced.sh")
	if err := WriteFile(path, "#!/bin/bash\n"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("expected mode 0755, got %o", info.Mode().Perm())
	}
}

// runCompiled runs script the way sshd does for a forced command.
func runCompiled(t *testing.T, script, command string) string {
	t.Helper()
	cmd := exec.Command("/bin/bash", "-c", script, "forced")
	cmd.Env = append(os.Environ(), "SSH_ORIGINAL_COMMAND="+command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("compiled script failed for %q: %v\n%s", command, err, out)
	}
	return string(out)
}

func requireTools(t *testing.T) {
	t.Helper()
	for _, tool := range []string{"/bin/bash", "grep"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available: %v", tool, err)
		}
	}
}

func TestCompiled_MatchesEngine(t *testing.T) {
	requireTools(t)
	logDir := t.TempDir()

	s := storeWith(t,
		rules.Rule{Name: "who", Pattern: "^whoami$", Enabled: true, Action: rules.Replace{Output: "www-data"}},
		rules.Rule{Name: "off", Pattern: "echo", Enabled: false, Action: rules.Replace{Output: "never"}},
		rules.Rule{Name: "shadow", Pattern: "cat /etc/shadow", Enabled: true, Action: rules.Empty{}},
		rules.Rule{Name: "count", Pattern: "^printf", Enabled: true, Action: rules.Filter{Command: "wc -l"}},
		rules.Rule{Name: "greet", Pattern: "^hello", Enabled: true, Action: rules.Script{Body: `echo "hi from $CMD"`}},
		rules.Rule{Name: "upper", Pattern: "^echo secret", Enabled: true, Action: rules.Filter{Command: "tr a-z A-Z", Condition: "grep -q secret"}},
	)
	s.SetConfig(rules.Config{LogDirectory: logDir, LogFilename: "cmds.log"})

	script := Compile(s)
	engine := mock.NewEngine(s, &shell.ExecRunner{TempDir: t.TempDir()})

	commands := []string{
		"whoami",
		"WHOAMI",
		"cat /etc/shadow",
		`printf 'a\nb\nc\n'`,
		"hello world",
		"echo secret stuff",
		"echo plain",
		"echo hi\nwhoami",
		"whoami\n",
		`printf -- '-n\n'`,
		"cat <<< -n",
	}
	for _, command := range commands {
		want := strings.TrimSpace(engine.Process(context.Background(), command).Output)
		got := strings.TrimSpace(runCompiled(t, script, command))
		if got != want {
			t.Errorf("%q: engine said %q, compiled script said %q", command, want, got)
		}
	}

	logged, err := os.ReadFile(filepath.Join(logDir, "cmds.log"))
	if err != nil {
		t.Fatalf("expected compiled script to log commands: %v", err)
	}
	if !strings.Contains(string(logged), "[CMD]") || !strings.Contains(string(logged), "whoami") {
		t.Errorf("unexpected log contents %q", logged)
	}
}

var (
	propertyPatterns = []string{"^echo a", "b", "^echo", "A$", "c|d", "[ab]c", "x+y", "^echo [0-9]+$", "e.h", "zzz"}
	propertyCommands = []string{"echo a", "echo b", "echo ac", "echo xxy", "echo D", "echo 42", "echo zz", "echo", "echo 42\n", "echo zz\necho ac", "echo hi\nwhoami", "whoami\n"}
)

// For any rule list drawn from a pattern pool, the compiled script and the
// engine pick the same rule for every command.
func TestCompiled_PropertySameDecision(t *testing.T) {
	requireTools(t)
	logDir := t.TempDir()
	tmp := t.TempDir()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	ruleGen := gopter.CombineGens(gen.IntRange(0, len(propertyPatterns)-1), gen.Bool())
	properties.Property("compiled script agrees with engine", prop.ForAll(
		func(picks [][]interface{}) bool {
			s := rules.NewStore()
			s.SetConfig(rules.Config{LogDirectory: logDir, LogFilename: "p.log"})
			for _, p := range picks {
				id := s.NextID()
				s.Add(rules.Rule{
					Name:    fmt.Sprintf("r%d", id),
					Pattern: propertyPatterns[p[0].(int)],
					Enabled: p[1].(bool),
					Action:  rules.Replace{Output: fmt.Sprintf("rule-%d", id)},
				})
			}
			script := Compile(s)
			engine := mock.NewEngine(s, &shell.ExecRunner{TempDir: tmp})
			for _, command := range propertyCommands {
				want := strings.TrimSpace(engine.Process(context.Background(), command).Output)
				got := strings.TrimSpace(runCompiled(t, script, command))
				if got != want {
					t.Logf("%q: engine %q, script %q", command, want, got)
					return false
				}
			}
			return true
		},
		gen.SliceOfN(4, ruleGen),
	))

	properties.TestingRun(t)
}
