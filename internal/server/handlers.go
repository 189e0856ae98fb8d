package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dserrors "github.com/systmms/zligate/internal/errors"
	"github.com/systmms/zligate/internal/session"
)

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	out, err := s.session.Version(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondText(w, out)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	out, err := s.session.Authenticate(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondText(w, out)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	out, err := s.session.GenerateEnvironment(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondText(w, out)
}

// handleSSH logs in and generates the ssh configuration when needed, then
// runs the requested command. A failure after login invalidates the session
// so the next request logs in again; this request is not retried.
func (s *Server) handleSSH(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	cmd, err := s.session.Commands().SSH(session.SSHRequest{
		User:    q.Get("user"),
		Host:    q.Get("host"),
		Command: q.Get("cmd"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if _, ran, err := s.session.EnsureAuthenticated(ctx); err != nil {
		s.respondError(w, r, err)
		return
	} else if ran {
		s.logger.Debug("Logged in before running %s", cmd)
	}

	if _, _, err := s.session.PrepareEnvironmentOnce(ctx); err != nil {
		s.invalidateOn(err)
		s.respondError(w, r, err)
		return
	}

	out, err := s.session.Run(ctx, cmd)
	if err != nil {
		s.invalidateOn(err)
		s.respondError(w, r, err)
		return
	}
	s.respondText(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.session.State()); err != nil {
		s.logger.Warn("Failed to encode health response: %v", err)
	}
}

func (s *Server) invalidateOn(err error) {
	if dserrors.InvalidatesSession(err) {
		s.session.Invalidate()
	}
}

func (s *Server) respondText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s.redact(body))
}

// respondError returns the captured command output when there is any, so
// callers see the downstream tool's own message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := dserrors.HTTPStatus(err)

	body, ok := dserrors.OutputOf(err)
	if !ok {
		body = err.Error()
	}
	body = s.redact(body)

	// The error text of a command failure holds the caller's remote command.
	var cmdErr dserrors.CommandError
	if errors.As(err, &cmdErr) {
		s.logger.Warn("%s %s failed (%d): %s, exit code %d", r.Method, r.URL.Path, code, cmdErr.Kind, cmdErr.ExitCode)
	} else {
		s.logger.Warn("%s %s failed (%d): %s", r.Method, r.URL.Path, code, dserrors.KindOf(err))
	}
	s.logger.Debug("%s %s failed: %s", r.Method, r.URL.Path, s.redact(err.Error()))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}
