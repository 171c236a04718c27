package sshd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/logger"
)

type session struct {
	server *Server
	id     string
	user   string
	remote string
}

type ptyRequest struct {
	Term    string
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
	Modes   string
}

type windowChange struct {
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
}

type execRequest struct {
	Command string
}

type exitStatus struct {
	Status uint32
}

// serveChannel handles the requests of one session channel. The first
// shell or exec request starts the session; it runs in its own goroutine so
// window-change requests keep being answered.
func (s *session) serveChannel(ctx context.Context, ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()

	cols, rows := 80, 24
	var terminal *term.Terminal
	started := false
	done := make(chan struct{})

	for {
		select {
		case <-done:
			go ssh.DiscardRequests(reqs)
			return
		case req, ok := <-reqs:
			if !ok {
				if started {
					<-done
				}
				return
			}
			switch req.Type {
			case "pty-req":
				var p ptyRequest
				if err := ssh.Unmarshal(req.Payload, &p); err == nil && p.Columns > 0 && p.Rows > 0 {
					cols, rows = int(p.Columns), int(p.Rows)
				}
				req.Reply(true, nil)
			case "env":
				req.Reply(true, nil)
			case "window-change":
				var w windowChange
				if err := ssh.Unmarshal(req.Payload, &w); err == nil && terminal != nil {
					terminal.SetSize(int(w.Columns), int(w.Rows))
				}
			case "shell":
				if started {
					req.Reply(false, nil)
					continue
				}
				started = true
				req.Reply(true, nil)
				terminal = term.NewTerminal(ch, s.prompt())
				terminal.SetSize(cols, rows)
				go func() {
					defer close(done)
					s.interactive(ctx, terminal)
					sendExit(ch, 0)
				}()
			case "exec":
				var e execRequest
				if started || ssh.Unmarshal(req.Payload, &e) != nil {
					req.Reply(false, nil)
					continue
				}
				started = true
				req.Reply(true, nil)
				go func() {
					defer close(done)
					out := s.run(ctx, e.Command)
					io.WriteString(ch, out)
					sendExit(ch, 0)
				}()
			default:
				if req.WantReply {
					req.Reply(false, nil)
				}
			}
		}
	}
}

func (s *session) interactive(ctx context.Context, t *term.Terminal) {
	if banner := s.server.opts.Banner; banner != "" {
		t.Write([]byte(banner))
		if !strings.HasSuffix(banner, "\n") {
			t.Write([]byte("\n"))
		}
	}
	for {
		line, err := t.ReadLine()
		if err != nil {
			return
		}
		command := strings.TrimSpace(line)
		switch command {
		case "":
			continue
		case "exit", "logout":
			return
		}
		out := s.run(ctx, command)
		if out != "" {
			if !strings.HasSuffix(out, "\n") {
				out += "\n"
			}
			t.Write([]byte(out))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// run processes one command and records it.
func (s *session) run(ctx context.Context, command string) string {
	start := time.Now()
	res := s.server.engine.Process(ctx, command)
	elapsed := time.Since(start)

	commandsTotal.WithLabelValues(strconv.FormatBool(res.Mocked)).Inc()
	commandDuration.Observe(elapsed.Seconds())

	event := logger.AuditEvent{
		Event:      logger.EventCommand,
		Source:     "ssh",
		SessionID:  s.id,
		RemoteAddr: s.remote,
		User:       s.user,
		Command:    command,
		Mocked:     res.Mocked,
		DurationMs: elapsed.Milliseconds(),
	}
	if res.Rule != nil {
		event.RuleID = res.Rule.ID
		event.RuleName = res.Rule.Name
		event.Action = string(res.Rule.Kind())
	}
	s.server.log(event)

	logrus.WithFields(logrus.Fields{
		"session": s.id,
		"command": command,
		"mocked":  res.Mocked,
	}).Debug("command processed")
	return res.Output
}

func (s *session) prompt() string {
	if p := s.server.opts.Prompt; p != "" {
		return p
	}
	sign := "$"
	if s.user == "root" {
		sign = "#"
	}
	return fmt.Sprintf("%s@%s:~%s ", s.user, s.server.opts.Hostname, sign)
}

func sendExit(ch ssh.Channel, status uint32) {
	ch.SendRequest("exit-status", false, ssh.Marshal(exitStatus{Status: status}))
}
