package compiler

import (
	"fmt"

	"mvdan.cc/sh/v3/syntax"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/shell"
)

// Report describes a parsed compiled script.
type Report struct {
	// RuleBlocks counts the rule if-blocks inside the forced-command
	// branch.
	RuleBlocks int
}

// Check parses script as bash and counts its rule blocks. A script that
// does not parse, usually because a script or filter snippet is broken,
// returns the parser error.
func Check(script string) (Report, error) {
	file, err := shell.Parse(script)
	if err != nil {
		return Report{}, err
	}

	for _, stmt := range file.Stmts {
		branch, ok := stmt.Cmd.(*syntax.IfClause)
		if !ok {
			continue
		}
		var rep Report
		for _, inner := range branch.Then {
			if _, ok := inner.Cmd.(*syntax.IfClause); ok {
				rep.RuleBlocks++
			}
		}
		return rep, nil
	}
	return Report{}, fmt.Errorf("no forced-command branch found")
}
