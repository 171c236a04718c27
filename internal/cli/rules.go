package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/compiler"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/prompt"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/rules"
)

// ruleFlags are the editable fields of a rule, shared by add and update.
type ruleFlags struct {
	name        string
	description string
	pattern     string
	action      string
	output      string
	script      string
	scriptFile  string
	filter      string
	condition   string
	disabled    bool
	force       bool
}

func (f *ruleFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Rule name")
	cmd.Flags().StringVar(&f.description, "description", "", "Rule description")
	cmd.Flags().StringVar(&f.pattern, "pattern", "", "Case-insensitive regular expression searched in the command")
	cmd.Flags().StringVar(&f.action, "action", "", "Action: replace, script, filter or empty")
	cmd.Flags().StringVar(&f.output, "output", "", "Output returned by a replace rule")
	cmd.Flags().StringVar(&f.script, "script", "", "Bash script run by a script rule; $CMD holds the command")
	cmd.Flags().StringVar(&f.scriptFile, "script-file", "", "Read the script of a script rule from a file")
	cmd.Flags().StringVar(&f.filter, "filter", "", "Shell pipeline the real output is piped through")
	cmd.Flags().StringVar(&f.condition, "condition", "", "Only filter when this command exits 0 on the real output")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "Store the rule disabled")
	cmd.Flags().BoolVar(&f.force, "force", false, "Save even if the rule does not validate")
}

// apply copies every flag the user set onto r.
func (f *ruleFlags) apply(cmd *cobra.Command, r *rules.Rule) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		r.Name = f.name
	}
	if changed("description") {
		r.Description = f.description
	}
	if changed("pattern") {
		r.Pattern = f.pattern
	}
	if changed("disabled") {
		r.Enabled = !f.disabled
	}
	if changed("script-file") {
		data, err := os.ReadFile(f.scriptFile)
		if err != nil {
			return fmt.Errorf("failed to read script file: %w", err)
		}
		f.script = string(data)
	}

	output, script, filter, condition := actionFields(r.Action)
	kind := r.Kind()
	if changed("action") {
		kind = rules.ActionKind(strings.ToLower(f.action))
	}
	if changed("output") {
		output = f.output
	}
	if changed("script") || changed("script-file") {
		script = f.script
	}
	if changed("filter") {
		filter = f.filter
	}
	if changed("condition") {
		condition = f.condition
	}
	if kind == "" {
		return fmt.Errorf("--action is required")
	}
	r.Action = rules.NewAction(kind, output, script, filter, condition)
	return nil
}

func actionFields(a rules.Action) (output, script, filter, condition string) {
	switch a := a.(type) {
	case rules.Replace:
		output = a.Output
	case rules.Script:
		script = a.Body
	case rules.Filter:
		filter, condition = a.Command, a.Condition
	}
	return
}

var (
	addFlags    ruleFlags
	updateFlags ruleFlags
	deleteYes   bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the rule list",
	Long: `Rules are tried in order; the first enabled rule whose pattern matches a
command decides how it is answered.

Examples:
  cmdmask rules list
  cmdmask rules add --name who --pattern '^whoami$' --action replace --output root
  cmdmask rules add --name ps --pattern '^ps' --action filter --filter 'grep -v sshd'
  cmdmask rules move 4 0
  cmdmask rules check`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in priority order",
	Args:  cobra.NoArgs,
	RunE:  rulesListCommand,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one rule in full",
	Args:  cobra.ExactArgs(1),
	RunE:  rulesShowCommand,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a rule at the lowest priority",
	Args:  cobra.NoArgs,
	RunE:  rulesAddCommand,
}

var rulesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  rulesUpdateCommand,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  rulesDeleteCommand,
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(cmd, args[0], true) },
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(cmd, args[0], false) },
}

var rulesDuplicateCmd = &cobra.Command{
	Use:   "duplicate <id>",
	Short: "Append a copy of a rule under a new id",
	Args:  cobra.ExactArgs(1),
	RunE:  rulesDuplicateCommand,
}

var rulesMoveCmd = &cobra.Command{
	Use:   "move <id> <position>",
	Short: "Move a rule to a zero-based position in the list",
	Args:  cobra.ExactArgs(2),
	RunE:  rulesMoveCommand,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate every rule and the compiled script",
	Args:  cobra.NoArgs,
	RunE:  rulesCheckCommand,
}

func init() {
	addFlags.bind(rulesAddCmd)
	updateFlags.bind(rulesUpdateCmd)
	rulesDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")

	rulesCmd.AddCommand(rulesListCmd, rulesShowCmd, rulesAddCmd, rulesUpdateCmd, rulesDeleteCmd,
		rulesEnableCmd, rulesDisableCmd, rulesDuplicateCmd, rulesMoveCmd, rulesCheckCmd)
	rootCmd.AddCommand(rulesCmd)
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid rule id %q", s)
	}
	return id, nil
}

func rulesListCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}

	list := store.List()
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No rules defined.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tENABLED\tACTION\tPATTERN\tNAME")
	for _, r := range list {
		enabled := "yes"
		if !r.Enabled {
			enabled = "no"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.ID, enabled, r.Kind(), r.Pattern, r.Name)
	}
	return w.Flush()
}

func rulesShowCommand(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	r, ok := store.Get(id)
	if !ok {
		return fmt.Errorf("rule %d not found", id)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rule %d: %s\n", r.ID, r.Name)
	if r.Description != "" {
		fmt.Fprintf(out, "  Description: %s\n", r.Description)
	}
	fmt.Fprintf(out, "  Pattern:     %s\n", r.Pattern)
	fmt.Fprintf(out, "  Enabled:     %v\n", r.Enabled)
	fmt.Fprintf(out, "  Action:      %s\n", r.Kind())
	switch a := r.Action.(type) {
	case rules.Replace:
		fmt.Fprintf(out, "  Output:\n%s\n", indent(a.Output))
	case rules.Script:
		fmt.Fprintf(out, "  Script:\n%s\n", indent(a.Body))
	case rules.Filter:
		fmt.Fprintf(out, "  Filter:      %s\n", a.Command)
		if a.Condition != "" {
			fmt.Fprintf(out, "  Condition:   %s\n", a.Condition)
		}
	}
	if err := r.Validate(); err != nil {
		fmt.Fprintf(out, "  Problems:\n%s\n", indent(err.Error()))
	}
	return nil
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func rulesAddCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}

	r := rules.Rule{Enabled: true}
	if err := addFlags.apply(cmd, &r); err != nil {
		return err
	}
	if err := r.Validate(); err != nil && !addFlags.force {
		return fmt.Errorf("rule does not validate (use --force to save anyway):\n%v", err)
	}

	id, err := store.Add(r)
	if err != nil {
		return err
	}
	if err := saveStore(cfg, store); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added rule %d\n", id)
	return nil
}

func rulesUpdateCommand(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	r, ok := store.Get(id)
	if !ok {
		return fmt.Errorf("rule %d not found", id)
	}

	if err := updateFlags.apply(cmd, &r); err != nil {
		return err
	}
	if err := r.Validate(); err != nil && !updateFlags.force {
		return fmt.Errorf("rule does not validate (use --force to save anyway):\n%v", err)
	}
	store.Update(r)
	if err := saveStore(cfg, store); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated rule %d\n", id)
	return nil
}

func rulesDeleteCommand(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	r, ok := store.Get(id)
	if !ok {
		return fmt.Errorf("rule %d not found", id)
	}

	if !deleteYes {
		if res := prompt.Confirm(fmt.Sprintf("Delete rule %d (%s)?", r.ID, r.Name)); !res.Confirmed {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	store.Delete(id)
	if err := saveStore(cfg, store); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %d\n", id)
	return nil
}

func setEnabled(cmd *cobra.Command, arg string, enabled bool) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	if !store.SetEnabled(id, enabled) {
		return fmt.Errorf("rule %d not found", id)
	}
	if err := saveStore(cfg, store); err != nil {
		return err
	}
	state := "Disabled"
	if enabled {
		state = "Enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s rule %d\n", state, id)
	return nil
}

func rulesDuplicateCommand(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	dup, ok := store.Duplicate(id)
	if !ok {
		return fmt.Errorf("rule %d not found", id)
	}
	if err := saveStore(cfg, store); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Duplicated rule %d as %d\n", id, dup)
	return nil
}

func rulesMoveCommand(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	pos, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid position %q", args[1])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	if !store.Move(id, pos) {
		return fmt.Errorf("rule %d not found", id)
	}
	if err := saveStore(cfg, store); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Moved rule %d\n", id)
	return nil
}

func rulesCheckCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	problems := 0
	for _, r := range store.List() {
		if err := r.Validate(); err != nil {
			problems++
			fmt.Fprintf(out, "rule %d (%s):\n%s\n", r.ID, r.Name, indent(err.Error()))
		}
	}

	rep, err := compiler.Check(compiler.Compile(store))
	if err != nil {
		problems++
		fmt.Fprintf(out, "compiled script does not parse: %v\n", err)
	} else {
		fmt.Fprintf(out, "Compiled script: %d rule block(s)\n", rep.RuleBlocks)
	}

	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	fmt.Fprintf(out, "All %d rule(s) OK\n", store.Len())
	return nil
}
