package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/config"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/logger"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/mock"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/rules"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/shell"
)

var (
	configFile string
	rulesPath  string
	auditPath  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "cmdmask",
	Short: "cmdmask - answer shell commands with fabricated output",
	Long: `cmdmask keeps an ordered list of rules that decide how shell commands are
answered: with canned text, a script, a filtered version of the real output,
or nothing at all. Commands no rule matches run for real.

The same rules drive an SSH honeypot (cmdmask serve) and can be compiled into a
standalone bash script for use as an SSH forced command (cmdmask compile).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return logger.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: ~/.cmdmask/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to rule document, .json or .yaml (default: ~/.cmdmask/rules.json)")
	rootCmd.PersistentFlags().StringVar(&auditPath, "audit-log", "", "Path to audit log file (default: ~/.cmdmask/audit.jsonl)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile, config.Overrides{
		RulesPath: rulesPath,
		AuditLog:  auditPath,
		LogLevel:  logLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadStore reads the configured rule document.
func loadStore(cfg *config.Config) (*rules.Store, error) {
	store := rules.NewStore()
	if err := store.Load(cfg.RulesPath); err != nil {
		if errors.Is(err, rules.ErrNotFound) {
			return nil, fmt.Errorf("no rules at %s; run 'cmdmask init' first", cfg.RulesPath)
		}
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return store, nil
}

// saveStore writes store back to the configured rule document.
func saveStore(cfg *config.Config, store *rules.Store) error {
	if err := store.Save(cfg.RulesPath); err != nil {
		return fmt.Errorf("failed to save rules: %w", err)
	}
	return nil
}

func newEngine(cfg *config.Config, src mock.RuleSource) *mock.Engine {
	return mock.NewEngine(src, shell.NewExecRunner(cfg.Shell), mock.WithTimeout(cfg.Timeout))
}
