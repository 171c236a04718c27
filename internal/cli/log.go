package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/logger"
)

var (
	logFilterMocked  bool
	logFilterRule    string
	logFilterEvent   string
	logFilterSession string
	logLast          int
	logSummary       bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the audit log",
	Long: `View the cmdmask audit log with filtering and summary options.

Examples:
  cmdmask log                        # Show all entries
  cmdmask log --last 20              # Show last 20 entries
  cmdmask log --mocked               # Show only commands a rule answered
  cmdmask log --rule whoami          # Show commands answered by one rule (name or id)
  cmdmask log --event auth           # Show SSH login attempts
  cmdmask log --summary              # Show summary stats`,
	Args: cobra.NoArgs,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().BoolVar(&logFilterMocked, "mocked", false, "Show only commands answered by a rule")
	logCmd.Flags().StringVar(&logFilterRule, "rule", "", "Filter by rule name or id")
	logCmd.Flags().StringVar(&logFilterEvent, "event", "", "Filter by event kind (command, auth)")
	logCmd.Flags().StringVar(&logFilterSession, "session", "", "Filter by session id")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	events, err := readAuditLog(cfg.AuditLog)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "No audit log entries found.")
		return nil
	}

	filtered := filterEvents(events)

	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	if logSummary {
		printSummary(out, events)
		return nil
	}

	printEvents(out, filtered)
	return nil
}

func readAuditLog(path string) ([]logger.AuditEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []logger.AuditEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event logger.AuditEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip malformed lines
		}
		if event.Event == "" {
			event.Event = logger.EventCommand
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}

func filterEvents(events []logger.AuditEvent) []logger.AuditEvent {
	if !logFilterMocked && logFilterRule == "" && logFilterEvent == "" && logFilterSession == "" {
		return events
	}

	ruleID, _ := strconv.Atoi(logFilterRule)
	var filtered []logger.AuditEvent
	for _, e := range events {
		if logFilterMocked && !e.Mocked {
			continue
		}
		if logFilterRule != "" && !strings.EqualFold(e.RuleName, logFilterRule) && (ruleID == 0 || e.RuleID != ruleID) {
			continue
		}
		if logFilterEvent != "" && !strings.EqualFold(e.Event, logFilterEvent) {
			continue
		}
		if logFilterSession != "" && !strings.HasPrefix(e.SessionID, logFilterSession) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func printEvents(out io.Writer, events []logger.AuditEvent) {
	for _, e := range events {
		ts := formatTimestamp(e.Timestamp)
		who := e.User
		if e.RemoteAddr != "" {
			who += "@" + e.RemoteAddr
		}

		if e.Event == logger.EventAuth {
			fmt.Fprintf(out, "[AUTH] %s %s %s %q\n", ts, who, e.AuthMethod, e.Credential)
			continue
		}

		tag := "[REAL]"
		if e.Mocked {
			tag = "[MOCK]"
		}
		fmt.Fprintf(out, "%s %s %s\n", tag, ts, e.Command)
		if e.Mocked {
			fmt.Fprintf(out, "     Rule: %d %s (%s)\n", e.RuleID, e.RuleName, e.Action)
		}
		if who != "" {
			fmt.Fprintf(out, "     From: %s (%s)\n", who, e.Source)
		}
		if e.Error != "" {
			fmt.Fprintf(out, "     Error: %s\n", e.Error)
		}
		fmt.Fprintln(out)
	}
}

func printSummary(out io.Writer, all []logger.AuditEvent) {
	var commands, mocked, auths int
	sessions := map[string]bool{}
	byRule := map[string]int{}

	for _, e := range all {
		if e.SessionID != "" {
			sessions[e.SessionID] = true
		}
		if e.Event == logger.EventAuth {
			auths++
			continue
		}
		commands++
		if e.Mocked {
			mocked++
			byRule[fmt.Sprintf("%d %s", e.RuleID, e.RuleName)]++
		}
	}

	fmt.Fprintln(out, "═══════════════════════════════════════════")
	fmt.Fprintln(out, "  cmdmask Audit Summary")
	fmt.Fprintln(out, "═══════════════════════════════════════════")
	fmt.Fprintf(out, "  Commands:        %d\n", commands)
	fmt.Fprintf(out, "  Mocked:          %d\n", mocked)
	fmt.Fprintf(out, "  Ran for real:    %d\n", commands-mocked)
	fmt.Fprintf(out, "  Login attempts:  %d\n", auths)
	fmt.Fprintf(out, "  Sessions:        %d\n", len(sessions))
	fmt.Fprintln(out, "═══════════════════════════════════════════")

	if len(all) > 0 {
		fmt.Fprintf(out, "  First event:     %s\n", formatTimestamp(all[0].Timestamp))
		fmt.Fprintf(out, "  Last event:      %s\n", formatTimestamp(all[len(all)-1].Timestamp))
	}

	if len(byRule) > 0 {
		names := make([]string, 0, len(byRule))
		for name := range byRule {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if byRule[names[i]] != byRule[names[j]] {
				return byRule[names[i]] > byRule[names[j]]
			}
			return names[i] < names[j]
		})
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Hits by rule:")
		for _, name := range names {
			fmt.Fprintf(out, "    %5d  %s\n", byRule[name], name)
		}
	}

	fmt.Fprintln(out)
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
