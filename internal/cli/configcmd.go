package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show settings or change the compiled script's log location",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved settings",
	Args:  cobra.NoArgs,
	RunE:  configShowCommand,
}

var configSetCmd = &cobra.Command{
	Use:   "set <log-directory|log-filename> <value>",
	Short: "Set a value stored in the rule document",
	Long: `Set where the compiled script appends its command log. These values live in
the rule document next to the rules, so they travel with it.

  cmdmask config set log-directory /var/log/cmdmask
  cmdmask config set log-filename commands.log`,
	Args: cobra.ExactArgs(2),
	RunE: configSetCommand,
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func configShowCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config_dir:           %s\n", cfg.ConfigDir)
	fmt.Fprintf(out, "rules:                %s\n", cfg.RulesPath)
	fmt.Fprintf(out, "audit_log:            %s\n", cfg.AuditLog)
	fmt.Fprintf(out, "shell:                %s\n", cfg.Shell)
	fmt.Fprintf(out, "timeout:              %s\n", cfg.Timeout)
	fmt.Fprintf(out, "log_level:            %s\n", cfg.LogLevel)
	fmt.Fprintf(out, "log_format:           %s\n", cfg.LogFormat)
	fmt.Fprintf(out, "serve.listen:         %s\n", cfg.Serve.Listen)
	fmt.Fprintf(out, "serve.host_key:       %s\n", cfg.Serve.HostKeyPath)
	fmt.Fprintf(out, "serve.metrics_listen: %s\n", cfg.Serve.MetricsListen)
	fmt.Fprintf(out, "serve.max_conns:      %d\n", cfg.Serve.MaxConns)
	fmt.Fprintf(out, "serve.hostname:       %s\n", cfg.Serve.Hostname)
	fmt.Fprintf(out, "serve.watch:          %v\n", cfg.Serve.Watch)

	store, err := loadStore(cfg)
	if err != nil {
		fmt.Fprintf(out, "rule document:        %v\n", err)
		return nil
	}
	rc := store.Config()
	fmt.Fprintf(out, "log_directory:        %s\n", rc.LogDirectory)
	fmt.Fprintf(out, "log_filename:         %s\n", rc.LogFilename)
	return nil
}

func configSetCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	if value == "" {
		return fmt.Errorf("%s must not be empty", key)
	}
	rc := store.Config()
	switch key {
	case "log-directory", "log_directory":
		rc.LogDirectory = value
	case "log-filename", "log_filename":
		rc.LogFilename = value
	default:
		return fmt.Errorf("unknown setting %q (want log-directory or log-filename)", key)
	}
	store.SetConfig(rc)

	if err := saveStore(cfg, store); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s\n", key, value)
	return nil
}
