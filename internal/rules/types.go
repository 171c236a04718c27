package rules

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// ActionKind names what a rule does with a matched command. It is also the
// value stored in the "action" field of a rule document.
type ActionKind string

const (
	ActionReplace ActionKind = "replace"
	ActionScript  ActionKind = "script"
	ActionFilter  ActionKind = "filter"
	ActionEmpty   ActionKind = "empty"
)

// Action is the payload of a rule. The set of implementations is closed:
// Replace, Script, Filter, Empty, and Unknown for kinds this version does
// not understand.
type Action interface {
	Kind() ActionKind
	isAction()
}

// Replace returns Output verbatim instead of running the command.
type Replace struct {
	Output string
}

// Script runs Body in a child shell with the original command in $CMD.
type Script struct {
	Body string
}

// Filter runs the real command and pipes its output through Command.
// When Condition is set, Command only runs if Condition exits 0 when fed
// the same output.
type Filter struct {
	Command   string
	Condition string
}

// Empty swallows the command and produces no output.
type Empty struct{}

// Unknown keeps an unrecognized action name so documents written by a newer
// version survive a load/save cycle. A matched Unknown rule passes the
// command through to the real shell.
type Unknown struct {
	Name string
}

func (Replace) Kind() ActionKind   { return ActionReplace }
func (Script) Kind() ActionKind    { return ActionScript }
func (Filter) Kind() ActionKind    { return ActionFilter }
func (Empty) Kind() ActionKind     { return ActionEmpty }
func (u Unknown) Kind() ActionKind { return ActionKind(u.Name) }

func (Replace) isAction() {}
func (Script) isAction()  {}
func (Filter) isAction()  {}
func (Empty) isAction()   {}
func (Unknown) isAction() {}

// NewAction builds the action for kind with the payload fields a rule
// document carries. Fields that do not belong to kind are dropped.
func NewAction(kind ActionKind, output, script, filter, condition string) Action {
	switch kind {
	case ActionReplace:
		return Replace{Output: output}
	case ActionScript:
		return Script{Body: script}
	case ActionFilter:
		return Filter{Command: filter, Condition: condition}
	case ActionEmpty:
		return Empty{}
	default:
		return Unknown{Name: string(kind)}
	}
}

// Rule is one pattern/action pair. ID 0 means "not yet assigned".
type Rule struct {
	ID          int
	Name        string
	Description string
	// Pattern is searched case-insensitively anywhere in the command text.
	Pattern string
	Enabled bool
	Action  Action
}

// Kind returns the rule's action kind, or "" when no action is set.
func (r Rule) Kind() ActionKind {
	if r.Action == nil {
		return ""
	}
	return r.Action.Kind()
}

// Matches reports whether r is enabled and its pattern occurs in command.
// A pattern that does not compile never matches.
func (r Rule) Matches(command string) bool {
	if !r.Enabled {
		return false
	}
	return PatternMatches(r.Pattern, command)
}

// PatternMatches searches command for pattern case-insensitively,
// ignoring the enabled flag. Each line of command is searched on its own,
// as grep does in the compiled script, and any matching line is enough.
// Invalid patterns never match.
func PatternMatches(pattern, command string) bool {
	re := compilePattern(pattern)
	if re == nil {
		return false
	}
	for _, line := range strings.Split(command, "\n") {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// ValidPattern reports whether pattern compiles.
func ValidPattern(pattern string) bool {
	return compilePattern(pattern) != nil
}

var patternCache sync.Map // pattern -> *regexp.Regexp, nil when invalid

func compilePattern(pattern string) *regexp.Regexp {
	if v, ok := patternCache.Load(pattern); ok {
		return v.(*regexp.Regexp)
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		re = nil
	}
	patternCache.Store(pattern, re)
	return re
}

const (
	DefaultLogDirectory = "/tmp"
	DefaultLogFilename  = "ssh_commands.log"
)

// Config holds the settings the compiled script bakes in.
type Config struct {
	LogDirectory string
	LogFilename  string
}

// DefaultConfig returns the configuration used when a document has none.
func DefaultConfig() Config {
	return Config{
		LogDirectory: DefaultLogDirectory,
		LogFilename:  DefaultLogFilename,
	}
}

// LogPath joins the log directory and file name.
func (c Config) LogPath() string {
	return filepath.Join(c.LogDirectory, c.LogFilename)
}

// Snapshot is a consistent copy of a store's rules and config.
type Snapshot struct {
	Rules  []Rule
	Config Config
}
