package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview <id> -- <command> [args...]",
	Short: "Apply one rule to a command, matched or not",
	Long: `Run a rule's action against a command as if the rule had matched, whatever
its pattern or enabled flag. Use it to try out a rule before enabling it.

Without an id, report which rule would answer the command and what it would
return.

  cmdmask preview 3 -- ps aux
  cmdmask preview -- cat /etc/shadow`,
	Args: cobra.MinimumNArgs(1),
	RunE: previewCommand,
}

func init() {
	rootCmd.AddCommand(previewCmd)
}

func previewCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	engine := newEngine(cfg, store)
	out := cmd.OutOrStdout()

	// Arguments before "--" name the rule; everything after is the command.
	dash := cmd.ArgsLenAtDash()
	ruleArgs, commandArgs := args, []string(nil)
	if dash >= 0 {
		ruleArgs, commandArgs = args[:dash], args[dash:]
	}

	if len(ruleArgs) == 0 {
		command := strings.Join(commandArgs, " ")
		if command == "" {
			return fmt.Errorf("no command provided")
		}
		res := engine.Process(commandContext(cmd), command)
		if res.Rule != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "matched rule %d (%s), action %s\n", res.Rule.ID, res.Rule.Name, res.Rule.Kind())
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "no rule matched; ran the real command")
		}
		fmt.Fprint(out, res.Output)
		return nil
	}

	if len(ruleArgs) > 1 {
		commandArgs = append(append([]string(nil), ruleArgs[1:]...), commandArgs...)
	}
	id, err := parseID(ruleArgs[0])
	if err != nil {
		return err
	}
	r, ok := store.Get(id)
	if !ok {
		return fmt.Errorf("rule %d not found", id)
	}
	command := strings.Join(commandArgs, " ")
	if command == "" {
		return fmt.Errorf("no command provided")
	}

	if !r.Matches(command) {
		fmt.Fprintf(cmd.ErrOrStderr(), "note: rule %d would not match this command as stored\n", id)
	}
	fmt.Fprint(out, engine.Preview(commandContext(cmd), command, r))
	return nil
}
