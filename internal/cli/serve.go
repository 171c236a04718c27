package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/logger"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/reload"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/sshd"
)

var (
	serveListen        string
	serveMetricsListen string
	serveNoWatch       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an SSH server that answers commands through the rules",
	Long: `Listen for SSH connections, accept any login, and answer exec requests and
interactive shell input through the rules. Logins and commands go to the audit
log. The rule document is reloaded when it changes on disk.

  cmdmask serve
  cmdmask serve --listen 127.0.0.1:2222 --metrics-listen 127.0.0.1:9102`,
	Args: cobra.NoArgs,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "SSH listen address (default from serve.listen)")
	serveCmd.Flags().StringVar(&serveMetricsListen, "metrics-listen", "", "Serve prometheus metrics on this address")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not reload rules when the file changes")
	rootCmd.AddCommand(serveCmd)
}

func serveCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Serve.Listen = serveListen
	}
	if serveMetricsListen != "" {
		cfg.Serve.MetricsListen = serveMetricsListen
	}
	if serveNoWatch {
		cfg.Serve.Watch = false
	}

	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	hostKey, err := sshd.LoadOrGenerateHostKey(cfg.Serve.HostKeyPath)
	if err != nil {
		return err
	}
	auditLogger, err := logger.New(cfg.AuditLog)
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	defer auditLogger.Close()

	srv := sshd.New(hostKey, newEngine(cfg, store), auditLogger, sshd.Options{
		Hostname: cfg.Serve.Hostname,
		Prompt:   cfg.Serve.Prompt,
		Banner:   cfg.Serve.Banner,
		MaxConns: cfg.Serve.MaxConns,
	})

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Serve.Listen)
	})

	if cfg.Serve.Watch {
		g.Go(func() error {
			return reload.Watch(ctx, store, cfg.RulesPath, nil)
		})
	}

	if cfg.Serve.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", sshd.MetricsHandler())
		httpSrv := &http.Server{
			Addr:              cfg.Serve.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logrus.WithField("addr", cfg.Serve.MetricsListen).Info("metrics listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	logrus.WithFields(logrus.Fields{
		"rules": cfg.RulesPath,
		"count": store.Len(),
	}).Info("serving rules")
	return g.Wait()
}
