package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/shell"
)

// ereIncompatible matches regexp syntax that Go accepts but grep -E does
// not treat the same way. Such patterns can make a compiled script pick a
// different rule than the interpreter.
var ereIncompatible = regexp.MustCompile(`\\[dD]|\(\?|[*+?}]\?|\{,`)

// Validate reports problems with r that loading tolerates but that make
// the rule useless or surprising. It returns nil for a clean rule.
func (r Rule) Validate() error {
	var errs []error

	if r.Pattern == "" {
		errs = append(errs, errors.New("pattern is empty and matches every command"))
	} else if !ValidPattern(r.Pattern) {
		errs = append(errs, fmt.Errorf("pattern %q does not compile and never matches", r.Pattern))
	} else if loc := ereIncompatible.FindString(r.Pattern); loc != "" {
		errs = append(errs, fmt.Errorf("pattern uses %q, which grep -E in the compiled script does not support", loc))
	}

	switch a := r.Action.(type) {
	case nil:
		errs = append(errs, errors.New("no action set"))
	case Script:
		if strings.TrimSpace(a.Body) == "" {
			errs = append(errs, errors.New("script action has an empty script"))
		} else if err := shell.Check(a.Body); err != nil {
			errs = append(errs, fmt.Errorf("script: %w", err))
		}
	case Filter:
		if strings.TrimSpace(a.Command) == "" {
			errs = append(errs, errors.New("filter action has an empty filter"))
		} else if err := shell.Check("cat | " + a.Command); err != nil {
			errs = append(errs, fmt.Errorf("filter: %w", err))
		}
		if a.Condition != "" {
			if err := shell.Check("cat | " + a.Condition); err != nil {
				errs = append(errs, fmt.Errorf("condition: %w", err))
			}
		}
	case Unknown:
		errs = append(errs, fmt.Errorf("unknown action %q; matching commands run unmodified", a.Name))
	}

	return errors.Join(errs...)
}
