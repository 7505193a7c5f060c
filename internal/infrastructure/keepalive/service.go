// Package keepalive holds the process-level "session active" status while a
// session is connected, and exposes the disconnect action to the control API.
package keepalive

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const idleStatus = "Not connected"

// Status is a snapshot of the keep-alive notification.
type Status struct {
	Active bool      `json:"active"`
	Text   string    `json:"text"`
	Since  time.Time `json:"since,omitempty"`
}

// Service implements ports.KeepAlive.
type Service struct {
	logger   *zap.SugaredLogger
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	status     Status
	disconnect func()
	stopBeat   chan struct{}
	beatDone   chan struct{}
}

// NewService creates a keep-alive that logs a heartbeat every interval while
// active. interval <= 0 disables the heartbeat.
func NewService(interval time.Duration, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		logger:   logger,
		interval: interval,
		now:      time.Now,
		status:   Status{Text: idleStatus},
	}
}

func (s *Service) Start(displayName string, disconnect func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopHeartbeatLocked()
	s.status = Status{
		Active: true,
		Text:   fmt.Sprintf("Connected to %s", displayName),
		Since:  s.now(),
	}
	s.disconnect = disconnect

	if s.interval > 0 {
		s.stopBeat = make(chan struct{})
		s.beatDone = make(chan struct{})
		go s.heartbeat(s.stopBeat, s.beatDone, s.status)
	}
	s.logger.Infow("keep-alive started", "status", s.status.Text)
}

// Stop is idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.Active {
		return
	}
	s.stopHeartbeatLocked()
	s.disconnect = nil
	s.logger.Infow("keep-alive stopped", "uptime", s.now().Sub(s.status.Since).String())
	s.status = Status{Text: idleStatus}
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// RequestDisconnect runs the disconnect action registered by the active
// session. It reports false when no session is active.
func (s *Service) RequestDisconnect() bool {
	s.mu.Lock()
	disconnect := s.disconnect
	s.mu.Unlock()

	if disconnect == nil {
		return false
	}
	s.logger.Infow("disconnect requested from keep-alive")
	disconnect()
	return true
}

func (s *Service) stopHeartbeatLocked() {
	if s.stopBeat != nil {
		close(s.stopBeat)
		<-s.beatDone
		s.stopBeat = nil
		s.beatDone = nil
	}
}

func (s *Service) heartbeat(stop <-chan struct{}, done chan<- struct{}, status Status) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.logger.Debugw("session active",
				"status", status.Text,
				"uptime", s.now().Sub(status.Since).Round(time.Second).String(),
			)
		}
	}
}
