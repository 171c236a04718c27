package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/compiler"
)

var (
	compileOutput string
	compileCheck  bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Generate a bash forced-command script from the rules",
	Long: `Generate a standalone bash script that answers $SSH_ORIGINAL_COMMAND the way
the enabled rules do, logs every command, and records interactive sessions.
Install it with a ForceCommand line in sshd_config or a command="..." option in
authorized_keys.

  cmdmask compile -o /usr/local/bin/forced.sh
  cmdmask compile --check`,
	Args: cobra.NoArgs,
	RunE: compileCommand,
}

func init() {
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "Write the script to this file (mode 0755) instead of stdout")
	compileCmd.Flags().BoolVar(&compileCheck, "check", false, "Parse the generated script and report its rule blocks")
	rootCmd.AddCommand(compileCmd)
}

func compileCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}

	script := compiler.Compile(store)

	if compileCheck {
		rep, err := compiler.Check(script)
		if err != nil {
			return fmt.Errorf("generated script does not parse: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "script OK: %d rule block(s)\n", rep.RuleBlocks)
	}

	if compileOutput == "" {
		if !compileCheck {
			fmt.Fprint(cmd.OutOrStdout(), script)
		}
		return nil
	}
	if err := compiler.WriteFile(compileOutput, script); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", compileOutput)
	return nil
}
