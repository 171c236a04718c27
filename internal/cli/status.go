package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/compiler"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/config"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/rules"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cmdmask status: rules, host key, audit log",
	Long: `Check which files cmdmask is using and whether they are in a usable state.

  cmdmask status`,
	Args: cobra.NoArgs,
	RunE: statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out, "  cmdmask Status")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out)

	binPath, err := os.Executable()
	if err != nil {
		binPath = "unknown"
	}
	fmt.Fprintf(out, "  Binary:    %s (%s)\n", binPath, Version)
	fmt.Fprintf(out, "  Config:    %s\n", cfg.ConfigDir)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Rules ─────────────────────────────────────────────")
	checkRules(out, cfg)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── SSH Server ────────────────────────────────────────")
	fmt.Fprintf(out, "  Listen:    %s\n", cfg.Serve.Listen)
	if _, err := os.Stat(cfg.Serve.HostKeyPath); err == nil {
		fmt.Fprintf(out, "  ✅ Host key: %s\n", cfg.Serve.HostKeyPath)
	} else {
		fmt.Fprintf(out, "  ⬚  Host key: %s (generated on first serve)\n", cfg.Serve.HostKeyPath)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Audit Log ─────────────────────────────────────────")
	checkAuditLog(out, cfg.AuditLog)
	fmt.Fprintln(out)

	return nil
}

func checkRules(out io.Writer, cfg *config.Config) {
	store := rules.NewStore()
	if err := store.Load(cfg.RulesPath); err != nil {
		fmt.Fprintf(out, "  ⚠  %s: %v\n", cfg.RulesPath, err)
		return
	}

	enabled, invalid := 0, 0
	for _, r := range store.List() {
		if r.Enabled {
			enabled++
		}
		if r.Validate() != nil {
			invalid++
		}
	}
	fmt.Fprintf(out, "  ✅ %s: %d rule(s), %d enabled\n", cfg.RulesPath, store.Len(), enabled)
	if invalid > 0 {
		fmt.Fprintf(out, "  ⚠  %d rule(s) have problems; run 'cmdmask rules check'\n", invalid)
	}

	rc := store.Config()
	fmt.Fprintf(out, "  Script log: %s\n", rc.LogPath())
	if _, err := compiler.Check(compiler.Compile(store)); err != nil {
		fmt.Fprintf(out, "  ⚠  compiled script does not parse: %v\n", err)
	}
}

func checkAuditLog(out io.Writer, path string) {
	if path == "" {
		fmt.Fprintln(out, "  ⬚  No audit log path configured")
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(out, "  ⬚  %s (not yet created, starts on first event)\n", path)
		return
	}

	sizeKB := info.Size() / 1024
	if sizeKB == 0 {
		fmt.Fprintf(out, "  ✅ %s (<1 KB)\n", path)
	} else {
		fmt.Fprintf(out, "  ✅ %s (%d KB)\n", path, sizeKB)
	}
}
