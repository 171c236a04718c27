// Package compiler turns a rule set into a standalone bash script meant to
// be installed as an SSH forced command. The script makes the same rule
// decision for $SSH_ORIGINAL_COMMAND that mock.Engine makes for a command,
// without cmdmask being present on the host.
package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/atomicfile"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/rules"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/shell"
)

// ErrIO indicates the script could not be written or made executable.
var ErrIO = errors.New("compiled script i/o failure")

// Source provides a consistent view of rules and config. *rules.Store
// implements it.
type Source interface {
	Snapshot() rules.Snapshot
}

// Compile renders src as a bash script. The same rules in the same order
// always produce the same bytes.
func Compile(src Source) string {
	snap := src.Snapshot()

	var sb strings.Builder
	writePreamble(&sb, snap.Config)

	sb.WriteString("if [ -n \"$SSH_ORIGINAL_COMMAND\" ]; then\n")
	sb.WriteString("  CMD=\"$SSH_ORIGINAL_COMMAND\"\n")
	sb.WriteString("  echo \"$(date \"+%Y-%m-%d %H:%M:%S\") [CMD] $USER: $CMD\" >> \"$LOG_FILE\"\n\n")

	for _, r := range snap.Rules {
		if !r.Enabled {
			continue
		}
		writeRule(&sb, r)
	}

	sb.WriteString("  # no rule matched\n")
	sb.WriteString("  OUTPUT=$(eval \"$CMD\" 2>&1)\n")
	sb.WriteString("  printf '%s\\n' \"$OUTPUT\"\n")
	sb.WriteString("  exit 0\n")
	sb.WriteString("fi\n\n")

	writeInteractive(&sb)
	return sb.String()
}

func writePreamble(sb *strings.Builder, cfg rules.Config) {
	sb.WriteString("#!/bin/bash\n")
	sb.WriteString("# Generated by cmdmask. Edit the rules and recompile instead of editing this file.\n")
	fmt.Fprintf(sb, "LOG_DIRECTORY=%s\n", shell.Quote(cfg.LogDirectory))
	fmt.Fprintf(sb, "LOG_FILENAME=%s\n", shell.Quote(cfg.LogFilename))
	sb.WriteString("LOG_FILE=\"$LOG_DIRECTORY/$LOG_FILENAME\"\n\n")
	sb.WriteString("mkdir -p \"$(dirname \"$LOG_FILE\")\"\n")
	sb.WriteString("touch \"$LOG_FILE\"\n")
	sb.WriteString("chmod 666 \"$LOG_FILE\" 2>/dev/null\n\n")
}

// writeRule emits one if-block. The block tests the pattern with the same
// case-insensitive search the interpreter uses and always exits, so the
// first matching block wins.
func writeRule(sb *strings.Builder, r rules.Rule) {
	fmt.Fprintf(sb, "  # rule %d: %s\n", r.ID, commentText(r))
	if !rules.ValidPattern(r.Pattern) {
		sb.WriteString("  # skipped: pattern does not compile\n\n")
		return
	}

	fmt.Fprintf(sb, "  if printf '%%s\\n' \"$CMD\" | grep -Eiq -- %s; then\n", shell.Quote(r.Pattern))

	switch a := r.Action.(type) {
	case rules.Replace:
		for _, line := range strings.Split(a.Output, "\n") {
			fmt.Fprintf(sb, "    printf '%%s\\n' %s\n", shell.Quote(line))
		}

	case rules.Script:
		// Verbatim, without indentation, so heredoc terminators still work.
		for _, line := range strings.Split(a.Body, "\n") {
			sb.WriteString(line)
			sb.WriteString("\n")
		}

	case rules.Filter:
		sb.WriteString("    OUTPUT=$(eval \"$CMD\" 2>&1)\n")
		if a.Condition != "" {
			fmt.Fprintf(sb, "    if printf '%%s\\n' \"$OUTPUT\" | %s; then\n", a.Condition)
			fmt.Fprintf(sb, "      printf '%%s\\n' \"$OUTPUT\" | %s\n", a.Command)
			sb.WriteString("    else\n")
			sb.WriteString("      printf '%s\\n' \"$OUTPUT\"\n")
			sb.WriteString("    fi\n")
		} else {
			fmt.Fprintf(sb, "    printf '%%s\\n' \"$OUTPUT\" | %s\n", a.Command)
		}

	case rules.Empty:

	default:
		sb.WriteString("    OUTPUT=$(eval \"$CMD\" 2>&1)\n")
		sb.WriteString("    printf '%s\\n' \"$OUTPUT\"\n")
	}

	sb.WriteString("    exit 0\n")
	sb.WriteString("  fi\n\n")
}

func writeInteractive(sb *strings.Builder) {
	sb.WriteString("# interactive session\n")
	sb.WriteString("echo \"$(date \"+%Y-%m-%d %H:%M:%S\") [SSH] Interactive session started by $USER (PID=$$)\" >> \"$LOG_FILE\"\n\n")
	sb.WriteString("if command -v script >/dev/null 2>&1; then\n")
	sb.WriteString("  script -q --timing=\"$LOG_FILE.time\" -a \"$LOG_FILE\" -c \"/bin/bash\"\n")
	sb.WriteString("else\n")
	sb.WriteString("  export HISTFILE=\"/tmp/.hist.$$\"\n")
	sb.WriteString("  export HISTTIMEFORMAT=\"%F %T \"\n")
	sb.WriteString("  export PROMPT_COMMAND='history -a; history 1 >> '\"$LOG_FILE\"\n")
	sb.WriteString("  trap 'history -a; history 1 >> \"$LOG_FILE\"' DEBUG\n")
	sb.WriteString("  exec /bin/bash --noprofile --norc\n")
	sb.WriteString("fi\n")
}

// commentText flattens name and description onto one comment line.
func commentText(r rules.Rule) string {
	text := r.Name
	if r.Description != "" {
		text += ": " + r.Description
	}
	return strings.Join(strings.Fields(text), " ")
}

// WriteFile writes script to path with mode 0755. The previous file, if
// any, is only replaced once the new one is complete.
func WriteFile(path, script string) error {
	if err := atomicfile.Write(path, []byte(script), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}
