// Package builds persists named snapshots of completed optimization runs
// (settings + lineups) so a user can recall them after a page reload
// without re-invoking the solver. Builds are scoped per (sport, site):
// switching the site toggle never shows another scope's builds.
package builds

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
)

// ErrStorage marks persistence failures. The store degrades to in-memory
// operation rather than crashing the page session.
var ErrStorage = errors.New("build storage error")

// ErrNotFound is returned for unknown build IDs
var ErrNotFound = errors.New("build not found")

// Build is one persisted run snapshot
type Build struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"index" json:"name"`
	Sport     dfs.Sport      `gorm:"index:idx_scope" json:"sport"`
	Site      dfs.Site       `gorm:"index:idx_scope" json:"site"`
	Timestamp time.Time      `json:"ts"`
	Settings  datatypes.JSON `json:"settings"`
	Lineups   datatypes.JSON `json:"lineups"`
}

// buildCounter tracks the highest default-name index ever issued per
// scope, so indices are never reused even after deletions.
type buildCounter struct {
	Sport     dfs.Sport `gorm:"primaryKey"`
	Site      dfs.Site  `gorm:"primaryKey"`
	LastIndex int
}

var defaultNameRe = regexp.MustCompile(`^Build (\d+)$`)

// Store persists builds in a local sqlite database. If the database cannot
// be opened it falls back to an in-memory map for the session, logging the
// degradation; every operation still works, it just will not survive a
// restart.
type Store struct {
	db     *gorm.DB
	logger *logrus.Entry

	mu       sync.Mutex
	mem      map[string]Build
	memIndex map[string]int // scopeKey -> last issued default index
}

// NewStore opens (or creates) the builds database at path
func NewStore(path string, isDevelopment bool, logger *logrus.Logger) *Store {
	entry := logger.WithField("component", "builds")

	logLevel := gormlogger.Error
	if isDevelopment {
		logLevel = gormlogger.Warn
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err == nil {
		err = db.AutoMigrate(&Build{}, &buildCounter{})
	}
	if err != nil {
		entry.WithError(err).Warn("Builds database unavailable, degrading to in-memory store")
		return &Store{
			logger:   entry,
			mem:      make(map[string]Build),
			memIndex: make(map[string]int),
		}
	}

	return &Store{db: db, logger: entry}
}

// Durable reports whether builds survive a process restart
func (s *Store) Durable() bool {
	return s.db != nil
}

// Save creates a new Build. It never overwrites: saving twice with the
// same name yields two builds. An empty name is assigned the next default
// name in scope ("Build 1", "Build 2", ...).
func (s *Store) Save(sport dfs.Sport, site dfs.Site, name string, settings, lineups json.RawMessage) (Build, error) {
	build := Build{
		ID:        uuid.New().String(),
		Name:      name,
		Sport:     sport,
		Site:      site,
		Timestamp: time.Now().UTC(),
		Settings:  datatypes.JSON(settings),
		Lineups:   datatypes.JSON(lineups),
	}

	if build.Name == "" {
		idx, err := s.nextDefaultIndex(sport, site)
		if err != nil {
			return Build{}, err
		}
		build.Name = fmt.Sprintf("Build %d", idx)
	}

	if s.db == nil {
		s.mu.Lock()
		s.mem[build.ID] = build
		s.mu.Unlock()
		return build, nil
	}

	if err := s.db.Create(&build).Error; err != nil {
		return Build{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return build, nil
}

// List returns the scope's builds, newest first. Unreadable rows are
// skipped with a log entry; a corrupt store yields an empty list, never a
// crash.
func (s *Store) List(sport dfs.Sport, site dfs.Site) []Build {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]Build, 0)
		for _, b := range s.mem {
			if b.Sport == sport && b.Site == site {
				out = append(out, b)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
		return out
	}

	var out []Build
	err := s.db.
		Where("sport = ? AND site = ?", sport, site).
		Order("timestamp DESC").
		Find(&out).Error
	if err != nil {
		s.logger.WithError(err).Warn("Failed to list builds, returning empty list")
		return []Build{}
	}
	return out
}

// Load returns one build by ID
func (s *Store) Load(id string) (Build, error) {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if b, ok := s.mem[id]; ok {
			return b, nil
		}
		return Build{}, ErrNotFound
	}

	var build Build
	err := s.db.First(&build, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Build{}, ErrNotFound
	}
	if err != nil {
		return Build{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return build, nil
}

// Rename changes a build's display name
func (s *Store) Rename(id, newName string) error {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		b, ok := s.mem[id]
		if !ok {
			return ErrNotFound
		}
		b.Name = newName
		s.mem[id] = b
		return nil
	}

	res := s.db.Model(&Build{}).Where("id = ?", id).Update("name", newName)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrStorage, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a build. Its default-name index is never reissued.
func (s *Store) Delete(id string) error {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.mem[id]; !ok {
			return ErrNotFound
		}
		delete(s.mem, id)
		return nil
	}

	res := s.db.Delete(&Build{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrStorage, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// nextDefaultIndex issues the next "Build N" index for a scope. The issued
// index is the greater of the persisted high-water mark and the highest
// index still present in stored names, plus one.
func (s *Store) nextDefaultIndex(sport dfs.Sport, site dfs.Site) (int, error) {
	highest := 0
	for _, b := range s.List(sport, site) {
		if m := defaultNameRe.FindStringSubmatch(b.Name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
				highest = n
			}
		}
	}

	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		key := string(sport) + "/" + string(site)
		if s.memIndex[key] > highest {
			highest = s.memIndex[key]
		}
		next := highest + 1
		s.memIndex[key] = next
		return next, nil
	}

	var counter buildCounter
	err := s.db.FirstOrCreate(&counter, buildCounter{Sport: sport, Site: site}).Error
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if counter.LastIndex > highest {
		highest = counter.LastIndex
	}
	next := highest + 1

	counter.LastIndex = next
	if err := s.db.Save(&counter).Error; err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return next, nil
}
