package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the encoding of a rule document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the document format from a file name. Anything that is
// not .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ruleWire is the persisted shape of a rule. Action payload fields are
// only written for their own kind.
type ruleWire struct {
	ID          int    `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Pattern     string `json:"pattern" yaml:"pattern"`
	Action      string `json:"action" yaml:"action"`
	Enabled     *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Output      string `json:"output,omitempty" yaml:"output,omitempty"`
	Script      string `json:"script,omitempty" yaml:"script,omitempty"`
	Filter      string `json:"filter,omitempty" yaml:"filter,omitempty"`
	Condition   string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

type configWire struct {
	LogDirectory *string `json:"log_directory,omitempty" yaml:"log_directory,omitempty"`
	LogFilename  *string `json:"log_filename,omitempty" yaml:"log_filename,omitempty"`
}

type documentWire struct {
	Rules  []ruleWire  `json:"rules" yaml:"rules"`
	Config *configWire `json:"config,omitempty" yaml:"config,omitempty"`
}

func toWire(r Rule) ruleWire {
	enabled := r.Enabled
	w := ruleWire{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Pattern:     r.Pattern,
		Action:      string(r.Kind()),
		Enabled:     &enabled,
	}
	switch a := r.Action.(type) {
	case Replace:
		w.Output = a.Output
	case Script:
		w.Script = a.Body
	case Filter:
		w.Filter = a.Command
		w.Condition = a.Condition
	}
	return w
}

func fromWire(w ruleWire) Rule {
	enabled := true
	if w.Enabled != nil {
		enabled = *w.Enabled
	}
	return Rule{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Pattern:     w.Pattern,
		Enabled:     enabled,
		Action:      NewAction(ActionKind(w.Action), w.Output, w.Script, w.Filter, w.Condition),
	}
}

// Encode serializes rules and cfg into a rule document.
func Encode(rs []Rule, cfg Config, format Format) ([]byte, error) {
	doc := documentWire{
		Rules: make([]ruleWire, 0, len(rs)),
		Config: &configWire{
			LogDirectory: &cfg.LogDirectory,
			LogFilename:  &cfg.LogFilename,
		},
	}
	for _, r := range rs {
		doc.Rules = append(doc.Rules, toWire(r))
	}

	if format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(&doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a rule document. It validates ids, assigns fresh ids to
// rules stored with id 0, and returns the next id to allocate.
func Decode(data []byte, format Format) ([]Rule, Config, int, error) {
	var doc documentWire
	var err error
	if format == FormatYAML {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, Config{}, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cfg := DefaultConfig()
	if doc.Config != nil {
		if doc.Config.LogDirectory != nil {
			cfg.LogDirectory = *doc.Config.LogDirectory
		}
		if doc.Config.LogFilename != nil {
			cfg.LogFilename = *doc.Config.LogFilename
		}
	}

	rs := make([]Rule, 0, len(doc.Rules))
	seen := make(map[int]bool, len(doc.Rules))
	maxID := 0
	for i, w := range doc.Rules {
		if w.ID < 0 {
			return nil, Config{}, 0, fmt.Errorf("%w: rule #%d has negative id %d", ErrMalformed, i+1, w.ID)
		}
		if w.ID != 0 {
			if seen[w.ID] {
				return nil, Config{}, 0, fmt.Errorf("%w: duplicate rule id %d", ErrMalformed, w.ID)
			}
			seen[w.ID] = true
			if w.ID > maxID {
				maxID = w.ID
			}
		}
		rs = append(rs, fromWire(w))
	}

	next := maxID + 1
	for i := range rs {
		if rs[i].ID == 0 {
			rs[i].ID = next
			next++
		}
	}
	return rs, cfg, next, nil
}
