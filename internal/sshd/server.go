// Package sshd exposes the mock engine as an SSH server. Every login is
// accepted; commands sent over exec or typed into the interactive shell are
// answered by the engine and recorded in the audit log.
package sshd

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/logger"
	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/mock"
)

// Processor answers one command. *mock.Engine implements it.
type Processor interface {
	Process(ctx context.Context, command string) mock.Result
}

// Auditor records events. *logger.AuditLogger implements it.
type Auditor interface {
	Log(event logger.AuditEvent) error
}

// Options tune the server's appearance and limits.
type Options struct {
	// Hostname is shown in the default prompt.
	Hostname string
	// Prompt overrides the default "user@hostname:~# " prompt.
	Prompt string
	// Banner is written once when an interactive shell starts.
	Banner string
	// ServerVersion is the SSH identification string.
	ServerVersion string
	// MaxConns bounds concurrent connections; extra ones are dropped.
	MaxConns int
}

const (
	defaultServerVersion = "SSH-2.0-OpenSSH_8.9p1 Ubuntu-3ubuntu0.6"
	defaultMaxConns      = 256
	defaultHostname      = "localhost"
)

type Server struct {
	hostKey ssh.Signer
	engine  Processor
	audit   Auditor
	opts    Options
	sem     chan struct{}
	wg      sync.WaitGroup
}

// New builds a server. audit may be nil.
func New(hostKey ssh.Signer, engine Processor, audit Auditor, opts Options) *Server {
	if opts.ServerVersion == "" {
		opts.ServerVersion = defaultServerVersion
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxConns
	}
	if opts.Hostname == "" {
		opts.Hostname = defaultHostname
	}
	return &Server{
		hostKey: hostKey,
		engine:  engine,
		audit:   audit,
		opts:    opts,
		sem:     make(chan struct{}, opts.MaxConns),
	}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logrus.WithField("addr", ln.Addr().String()).Info("ssh server listening")
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done, then closes ln and
// waits for open connections to finish. It returns nil on cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		select {
		case s.sem <- struct{}{}:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer func() { <-s.sem }()
				s.handleConn(ctx, conn)
			}()
		default:
			logrus.WithField("remote", conn.RemoteAddr().String()).Warn("connection limit reached")
			conn.Close()
		}
	}
}

func (s *Server) sshConfig() *ssh.ServerConfig {
	cfg := &ssh.ServerConfig{
		ServerVersion: s.opts.ServerVersion,
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			s.recordAuth(conn, "password", string(password))
			return &ssh.Permissions{}, nil
		},
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			s.recordAuth(conn, "publickey", ssh.FingerprintSHA256(key))
			return &ssh.Permissions{}, nil
		},
	}
	cfg.AddHostKey(s.hostKey)
	return cfg
}

func (s *Server) recordAuth(conn ssh.ConnMetadata, method, credential string) {
	authAttemptsTotal.WithLabelValues(method).Inc()
	logrus.WithFields(logrus.Fields{
		"remote": conn.RemoteAddr().String(),
		"user":   conn.User(),
		"method": method,
	}).Info("login attempt")
	s.log(logger.AuditEvent{
		Event:      logger.EventAuth,
		Source:     "ssh",
		RemoteAddr: conn.RemoteAddr().String(),
		User:       conn.User(),
		AuthMethod: method,
		Credential: credential,
	})
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.sshConfig())
	if err != nil {
		logrus.WithError(err).WithField("remote", conn.RemoteAddr().String()).Debug("handshake failed")
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	// Close the connection when the server shuts down so Serve can return.
	stop := context.AfterFunc(ctx, func() { sshConn.Close() })
	defer stop()

	sessionsTotal.Inc()
	sess := &session{
		server: s,
		id:     uuid.NewString(),
		user:   sshConn.User(),
		remote: sshConn.RemoteAddr().String(),
	}
	log := logrus.WithFields(logrus.Fields{"session": sess.id, "remote": sess.remote, "user": sess.user})
	log.Info("session opened")

	var wg sync.WaitGroup
	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, chReqs, err := newChan.Accept()
		if err != nil {
			log.WithError(err).Warn("channel accept failed")
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.serveChannel(ctx, ch, chReqs)
		}()
	}
	wg.Wait()
	log.Info("session closed")
}

func (s *Server) log(event logger.AuditEvent) {
	if s.audit == nil {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if err := s.audit.Log(event); err != nil {
		logrus.WithError(err).Warn("audit log write failed")
	}
}
