// Package session ties one optimizer page together: the normalized pool,
// the constraint model, the solver client, and the lineup accumulator. A
// session outlives individual HTTP requests so the page can poll progress
// while a solve streams in the background.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-lineup-client/internal/accumulator"
	"github.com/stitts-dev/dfs-lineup-client/internal/builds"
	"github.com/stitts-dev/dfs-lineup-client/internal/constraints"
	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
	"github.com/stitts-dev/dfs-lineup-client/internal/sites"
	"github.com/stitts-dev/dfs-lineup-client/internal/solver"
)

// ErrSolveInFlight is returned when an optimize request arrives while the
// session is already solving. The running solve keeps going.
var ErrSolveInFlight = errors.New("a solve is already running for this session")

// Sticky setting keys, namespaced per page by builds.PageNamespace
const (
	SettingLineupCount = "lineup_count"
	SettingObjective   = "objective"
	SettingRandomness  = "randomness"
)

// ProgressEvent is pushed to session subscribers as a solve advances
type ProgressEvent struct {
	Type      string      `json:"type"` // lineup, fallover, done, error
	Count     int         `json:"count"`
	Requested int         `json:"requested"`
	Lineup    *dfs.Lineup `json:"lineup,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Error     string      `json:"error,omitempty"`
	BuildID   string      `json:"build_id,omitempty"`
}

// Publisher pushes progress events to page subscribers
type Publisher interface {
	Publish(sessionID string, event ProgressEvent)
}

// Session drives solves for one (sport, site) page
type Session struct {
	ID        string       `json:"id"`
	Sport     dfs.Sport    `json:"sport"`
	Site      dfs.Site     `json:"site"`
	Slate     string       `json:"slate,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Config    sites.Config `json:"-"`

	Model *constraints.Model `json:"-"`

	client    *solver.Client
	store     *builds.Store
	settings  *builds.SettingsStore
	publisher Publisher
	logger    *logrus.Entry

	mu        sync.Mutex
	pool      []dfs.Player
	acc       *accumulator.Accumulator
	running   bool
	lastErr   error
	lastBuild string
}

// Snapshot is the poll view of a session's current results
type Snapshot struct {
	State       string                       `json:"state"`
	Progress    accumulator.Progress         `json:"progress"`
	Lineups     []dfs.Lineup                 `json:"lineups"`
	Exposure    []accumulator.PlayerExposure `json:"exposure"`
	Teams       []accumulator.TeamExposure   `json:"teams"`
	LastError   string                       `json:"last_error,omitempty"`
	LastBuildID string                       `json:"last_build_id,omitempty"`
}

func newSession(sport dfs.Sport, site dfs.Site, slate string, pool []dfs.Player, client *solver.Client, store *builds.Store, settings *builds.SettingsStore, publisher Publisher, logger *logrus.Logger) (*Session, error) {
	cfg, err := sites.GetConfig(sport, site)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.New().String(),
		Sport:     sport,
		Site:      site,
		Slate:     slate,
		CreatedAt: time.Now().UTC(),
		Config:    cfg,
		Model:     constraints.NewModel(cfg),
		client:    client,
		store:     store,
		settings:  settings,
		publisher: publisher,
		pool:      pool,
	}
	s.logger = logger.WithFields(logrus.Fields{
		"component": "session",
		"session":   s.ID,
		"sport":     sport,
		"site":      site,
	})
	s.acc = accumulator.New(s.Model.LineupCount, teamOf(pool))

	if settings != nil {
		ns := builds.PageNamespace(sport, site)
		s.Model.LineupCount = settings.GetInt(ns, SettingLineupCount, s.Model.LineupCount)
		s.Model.Objective = dfs.Objective(settings.GetString(ns, SettingObjective, string(s.Model.Objective)))
		if !dfs.ValidObjective(s.Model.Objective) {
			s.Model.Objective = dfs.ObjectiveProjection
		}
	}
	return s, nil
}

func teamOf(pool []dfs.Player) map[string]string {
	m := make(map[string]string, len(pool))
	for _, p := range pool {
		m[p.Name] = p.Team
	}
	return m
}

// Pool returns the session's pool snapshot
func (s *Session) Pool() []dfs.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool
}

// ReplacePool swaps in a freshly normalized pool and clears results.
// Rejected while a solve is running.
func (s *Session) ReplacePool(pool []dfs.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSolveInFlight
	}
	s.pool = pool
	s.acc = accumulator.New(s.Model.LineupCount, teamOf(pool))
	return nil
}

// Optimize starts a solve in the background. A second call while one is
// running returns ErrSolveInFlight without disturbing the running solve.
func (s *Session) Optimize(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSolveInFlight
	}

	req, err := s.Model.BuildRequest(s.pool)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.acc = accumulator.New(s.Model.LineupCount, teamOf(s.pool))
	s.running = true
	s.lastErr = nil
	acc := s.acc
	s.mu.Unlock()

	s.persistStickySettings()

	go s.run(ctx, req, acc)
	return nil
}

func (s *Session) run(ctx context.Context, req *dfs.SolveRequest, acc *accumulator.Accumulator) {
	cb := solver.Callbacks{
		OnItem: func(lineup dfs.Lineup) {
			acc.Accept(lineup)
			s.publish(ProgressEvent{
				Type:      "lineup",
				Count:     acc.Count(),
				Requested: req.N,
				Lineup:    &lineup,
			})
		},
		OnFallover: func() {
			// batch results replace partial streamed results
			acc.Reset()
			s.publish(ProgressEvent{Type: "fallover", Requested: req.N})
		},
		OnDone: func(done dfs.DoneEvent) {
			acc.Finish(done.Reason)
		},
	}

	err := s.client.Solve(ctx, req, cb)

	s.mu.Lock()
	s.running = false
	s.lastErr = err
	finished := acc.Progress().Finished
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).Warn("Solve failed")
		s.publish(ProgressEvent{
			Type:      "error",
			Count:     acc.Count(),
			Requested: req.N,
			Error:     err.Error(),
		})
		return
	}

	buildID := ""
	if finished && acc.Count() > 0 {
		buildID = s.persistBuild(req, acc)
	}

	progress := acc.Progress()
	s.publish(ProgressEvent{
		Type:      "done",
		Count:     progress.Count,
		Requested: req.N,
		Reason:    progress.StopReason,
		BuildID:   buildID,
	})
}

// persistBuild saves the finished run; storage failures are logged and the
// run's results stay available in memory.
func (s *Session) persistBuild(req *dfs.SolveRequest, acc *accumulator.Accumulator) string {
	settings, err := json.Marshal(req)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode build settings")
		return ""
	}
	lineups, err := json.Marshal(acc.Lineups())
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode build lineups")
		return ""
	}

	build, err := s.store.Save(s.Sport, s.Site, "", settings, lineups)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to persist build")
		return ""
	}

	s.mu.Lock()
	s.lastBuild = build.ID
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"build":   build.ID,
		"name":    build.Name,
		"lineups": acc.Count(),
	}).Info("Persisted build")
	return build.ID
}

func (s *Session) persistStickySettings() {
	if s.settings == nil {
		return
	}
	ns := builds.PageNamespace(s.Sport, s.Site)
	if err := s.settings.Set(ns, SettingLineupCount, s.Model.LineupCount); err != nil {
		s.logger.WithError(err).Debug("Failed to persist lineup count setting")
	}
	if err := s.settings.Set(ns, SettingObjective, string(s.Model.Objective)); err != nil {
		s.logger.WithError(err).Debug("Failed to persist objective setting")
	}
	if err := s.settings.Set(ns, SettingRandomness, s.Model.Randomness); err != nil {
		s.logger.WithError(err).Debug("Failed to persist randomness setting")
	}
}

// Update applies constraint edits under the session lock. Edits made while
// a solve is running take effect on the next run; the in-flight request is
// already sealed.
func (s *Session) Update(fn func(m *constraints.Model)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.Model)
}

// Cancel stops any running solve. Safe when idle.
func (s *Session) Cancel() {
	s.client.Cancel()
}

// Running reports whether a solve is in flight
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Accumulator returns the current result set
func (s *Session) Accumulator() *accumulator.Accumulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc
}

// Snapshot captures the current results for a poll response
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	acc := s.acc
	running := s.running
	lastErr := s.lastErr
	lastBuild := s.lastBuild
	s.mu.Unlock()

	snap := Snapshot{
		State:       string(s.client.State()),
		Progress:    acc.Progress(),
		Lineups:     acc.Lineups(),
		Exposure:    acc.Snapshot(),
		Teams:       acc.TeamSnapshot(),
		LastBuildID: lastBuild,
	}
	if running {
		snap.State = string(solver.StateStreaming)
	}
	if lastErr != nil {
		snap.LastError = lastErr.Error()
	}
	return snap
}

func (s *Session) publish(event ProgressEvent) {
	if s.publisher != nil {
		s.publisher.Publish(s.ID, event)
	}
}

// Manager owns the live sessions, one per page the user has open
type Manager struct {
	store     *builds.Store
	settings  *builds.SettingsStore
	publisher Publisher
	logger    *logrus.Logger

	newClient func() *solver.Client

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. newClient builds a solver client
// per session so each page gets its own in-flight slot and breaker.
func NewManager(newClient func() *solver.Client, store *builds.Store, settings *builds.SettingsStore, publisher Publisher, logger *logrus.Logger) *Manager {
	return &Manager{
		store:     store,
		settings:  settings,
		publisher: publisher,
		logger:    logger,
		newClient: newClient,
		sessions:  make(map[string]*Session),
	}
}

// Create opens a session for a page over the given pool
func (m *Manager) Create(sport dfs.Sport, site dfs.Site, slate string, pool []dfs.Player) (*Session, error) {
	s, err := newSession(sport, site, slate, pool, m.newClient(), m.store, m.settings, m.publisher, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.logger.Info("Session created")
	return s, nil
}

// Get returns a session by ID
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return s, nil
}

// Close cancels and removes a session
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Cancel()
		s.logger.Info("Session closed")
	}
}
