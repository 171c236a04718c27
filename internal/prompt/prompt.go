package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type Result struct {
	Confirmed  bool
	UserAction string
}

func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Confirm asks question on stderr and reads y/n from stdin. Without a
// terminal on stdin nothing is read and the answer is no.
func Confirm(question string) Result {
	if !IsInteractive() {
		return Result{
			Confirmed:  false,
			UserAction: "auto_deny_non_interactive",
		}
	}
	return ask(os.Stdin, os.Stderr, question)
}

func ask(in io.Reader, out io.Writer, question string) Result {
	reader := bufio.NewReader(in)

	for {
		fmt.Fprintf(out, "%s [y/n]: ", question)
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return Result{
				Confirmed:  false,
				UserAction: "error_reading_input",
			}
		}

		input = strings.TrimSpace(strings.ToLower(input))

		switch input {
		case "y", "yes":
			return Result{Confirmed: true, UserAction: "confirm"}
		case "n", "no":
			return Result{Confirmed: false, UserAction: "deny"}
		default:
			fmt.Fprintln(out, "Invalid input. Please enter 'y' or 'n'.")
			if err != nil {
				return Result{Confirmed: false, UserAction: "error_reading_input"}
			}
		}
	}
}
