package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/config"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/rules"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the starter rule set",
	Long: `Create the config directory and write a starter rule document to the
configured rules path. An existing document is left alone unless --force is
given.

  cmdmask init
  cmdmask init --rules ./rules.yaml`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing rule document")
	rootCmd.AddCommand(initCmd)
}

func initCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.EnsureDir(cfg.ConfigDir); err != nil {
		return fmt.Errorf("failed to create %s: %w", cfg.ConfigDir, err)
	}

	if _, err := os.Stat(cfg.RulesPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists; use --force to overwrite", cfg.RulesPath)
	}

	store := rules.NewDefaultStore()
	if err := saveStore(cfg, store); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d starter rules to %s\n", store.Len(), cfg.RulesPath)
	return nil
}
