package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Answer one command through the rules",
	Long: `Answer a command the way the rules say: the first enabled matching rule
decides, otherwise the command runs for real. The arguments are joined with
spaces into one command line.

With no arguments the command is taken from $SSH_ORIGINAL_COMMAND, so cmdmask
itself can be installed as an SSH forced command.

Example:
  cmdmask run -- whoami
  cmdmask run -- 'ps aux | head'`,
	RunE: runCommand,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	command := strings.Join(args, " ")
	if command == "" {
		command = os.Getenv("SSH_ORIGINAL_COMMAND")
	}
	if command == "" {
		return fmt.Errorf("no command provided. Usage: cmdmask run -- <command> [args...]")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}

	auditLogger, err := logger.New(cfg.AuditLog)
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	defer auditLogger.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	start := time.Now()
	res := newEngine(cfg, store).Process(ctx, command)

	event := logger.AuditEvent{
		Timestamp:  start.UTC().Format(time.RFC3339),
		Event:      logger.EventCommand,
		Source:     "cli",
		SessionID:  uuid.NewString(),
		RemoteAddr: sshClientAddr(),
		User:       os.Getenv("USER"),
		Command:    command,
		Mocked:     res.Mocked,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if res.Rule != nil {
		event.RuleID = res.Rule.ID
		event.RuleName = res.Rule.Name
		event.Action = string(res.Rule.Kind())
	}
	if err := auditLogger.Log(event); err != nil {
		logrus.WithError(err).Warn("failed to write audit log")
	}

	fmt.Fprint(cmd.OutOrStdout(), res.Output)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// sshClientAddr returns the client address sshd exports for forced
// commands, or "" outside an SSH session.
func sshClientAddr() string {
	fields := strings.Fields(os.Getenv("SSH_CLIENT"))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
