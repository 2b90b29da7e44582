// Package workspace owns the temporary files a conversion request works on.
//
// Every artifact lives directly under one work directory and is named after
// the request identifier that issued it, so concurrent requests never touch
// each other's paths. A Scope records everything it issued and deletes it on
// Release, except the single output handed off for delivery.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akila/media-converter/models"
)

// Role distinguishes input and output artifacts in generated names.
type Role string

const (
	RoleInput  Role = "input"
	RoleOutput Role = "output"
)

var (
	ErrReleased     = errors.New("workspace: scope already released")
	ErrNotIssued    = errors.New("workspace: path was not issued by this scope")
	ErrInvalidName  = errors.New("workspace: invalid artifact name")
	ErrNotAvailable = errors.New("workspace: artifact not available")
)

// Manager creates request scopes rooted at a single work directory.
type Manager struct {
	root string
	log  zerolog.Logger

	mu   sync.Mutex
	live map[string]int
}

// New ensures root exists and returns a Manager for it.
func New(root string, log zerolog.Logger) (*Manager, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("workspace: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: ensure root: %w", err)
	}
	return &Manager{
		root: root,
		log:  log.With().Str("component", "workspace").Logger(),
		live: make(map[string]int),
	}, nil
}

// Root returns the work directory.
func (m *Manager) Root() string {
	return m.root
}

// NewRequestID returns a fresh random identifier. Identifiers are never reused.
func (m *Manager) NewRequestID() string {
	return uuid.NewString()
}

// Scope opens the artifact scope of one request.
func (m *Manager) Scope(requestID string) (*Scope, error) {
	if !validID(requestID) {
		return nil, fmt.Errorf("%w: request id %q", ErrInvalidName, requestID)
	}
	m.mu.Lock()
	m.live[requestID]++
	m.mu.Unlock()
	return &Scope{mgr: m, id: requestID}, nil
}

func (m *Manager) retire(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live[requestID] <= 1 {
		delete(m.live, requestID)
		return
	}
	m.live[requestID]--
}

// inUse reports whether name belongs to a scope that has not been released.
func (m *Manager) inUse(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.live {
		if strings.HasPrefix(name, id+"_") {
			return true
		}
	}
	return false
}

func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`+string(os.PathSeparator))
}

// Scope tracks the artifacts of a single request.
type Scope struct {
	mgr *Manager
	id  string

	mu       sync.Mutex
	issued   []string
	kept     string
	released bool
}

func (s *Scope) ID() string {
	return s.id
}

// NewPath issues <root>/<id>_<role>.<ext>. Nothing is created on disk.
func (s *Scope) NewPath(role Role, ext string) (string, error) {
	if !models.ValidFormat(ext) {
		return "", fmt.Errorf("%w: extension %q", ErrInvalidName, ext)
	}
	return s.issue(fmt.Sprintf("%s_%s.%s", s.id, role, ext))
}

// ScratchDir issues and creates a directory private to this request.
func (s *Scope) ScratchDir(name string) (string, error) {
	if !validID(name) {
		return "", fmt.Errorf("%w: scratch dir %q", ErrInvalidName, name)
	}
	path, err := s.issue(fmt.Sprintf("%s_%s", s.id, name))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("workspace: create scratch dir: %w", err)
	}
	return path, nil
}

func (s *Scope) issue(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return "", ErrReleased
	}
	path := filepath.Join(s.mgr.root, name)
	s.issued = append(s.issued, path)
	return path, nil
}

// SaveInput writes the uploaded bytes to a freshly issued input path.
func (s *Scope) SaveInput(ext string, r io.Reader) (string, error) {
	path, err := s.NewPath(RoleInput, ext)
	if err != nil {
		return "", err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("workspace: create input: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return "", fmt.Errorf("workspace: write input: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("workspace: close input: %w", err)
	}
	return path, nil
}

// Keep marks path as the output handed to the delivery side. Release will
// leave it on disk; the deliverer deletes it.
func (s *Scope) Keep(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	for _, p := range s.issued {
		if p == path {
			s.kept = path
			return nil
		}
	}
	return ErrNotIssued
}

// Release deletes every issued artifact except the kept one. Failures are
// logged, never returned. Calling Release again does nothing.
func (s *Scope) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	issued := s.issued
	kept := s.kept
	s.issued = nil
	s.mu.Unlock()

	for _, p := range issued {
		if p == kept {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			s.mgr.log.Warn().Err(err).Str("request_id", s.id).Str("path", p).Msg("failed to delete working artifact")
			continue
		}
		s.mgr.log.Debug().Str("request_id", s.id).Str("path", p).Msg("working artifact released")
	}
	s.removeStrays(kept)
	s.mgr.retire(s.id)
}

// removeStrays deletes files engines derived from issued names on their own,
// such as per-frame outputs or profile directories. They all share the
// request prefix.
func (s *Scope) removeStrays(kept string) {
	entries, err := os.ReadDir(s.mgr.root)
	if err != nil {
		s.mgr.log.Warn().Err(err).Str("request_id", s.id).Msg("failed to scan work dir for strays")
		return
	}
	prefix := s.id + "_"
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		p := filepath.Join(s.mgr.root, e.Name())
		if p == kept {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			s.mgr.log.Warn().Err(err).Str("request_id", s.id).Str("path", p).Msg("failed to delete stray artifact")
		}
	}
}

// Deliver opens a handed-off output by its base name, passes it to send and
// deletes it afterwards whether or not send succeeded.
func (m *Manager) Deliver(filename string, send func(f *os.File, info os.FileInfo) error) error {
	path, err := m.outputPath(filename)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotAvailable, filename)
		}
		return fmt.Errorf("workspace: open artifact: %w", err)
	}
	defer func() {
		f.Close()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.log.Warn().Err(err).Str("path", path).Msg("failed to delete delivered artifact")
			return
		}
		m.log.Info().Str("path", path).Msg("delivered artifact deleted")
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("workspace: stat artifact: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotAvailable, filename)
	}
	return send(f, info)
}

// outputPath resolves a client supplied name, refusing anything that is not a
// plain output artifact name directly under the root.
func (m *Manager) outputPath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || !validID(filename) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	if !strings.Contains(filename, "_"+string(RoleOutput)+".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	path := filepath.Join(m.root, filename)
	rel, err := filepath.Rel(m.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	return path, nil
}

// Sweep deletes every entry under the root last modified before now-maxAge.
// It catches artifacts orphaned by crashes and outputs nobody downloaded.
// Artifacts of scopes not yet released are left alone however old they are.
func (m *Manager) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("workspace: read root: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) || m.inUse(e.Name()) {
			continue
		}
		path := filepath.Join(m.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			m.log.Warn().Err(err).Str("path", path).Msg("failed to sweep stale artifact")
			continue
		}
		removed++
	}
	return removed, nil
}

// RunJanitor sweeps every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval, maxAge time.Duration) error {
	if interval <= 0 || maxAge <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := m.Sweep(maxAge)
			if err != nil {
				m.log.Error().Err(err).Msg("artifact sweep failed")
				continue
			}
			if n > 0 {
				m.log.Info().Int("removed", n).Msg("stale artifacts swept")
			}
		}
	}
}
