// Package feeds pulls projection sheets from the upstream data service and
// turns them into normalized player pools, with Redis caching and a cron
// refresh so the optimizer pages open against warm data.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
	"github.com/stitts-dev/dfs-lineup-client/internal/normalizer"
	"github.com/stitts-dev/dfs-lineup-client/internal/sites"
)

// Service fetches raw projection rows and normalizes them per site config.
// The Redis cache is optional; with no cache every GetPool hits the feed.
type Service struct {
	baseURL    string
	httpClient *http.Client
	cache      *PoolCache
	limiter    *rate.Limiter
	logger     *logrus.Logger
	cron       *cron.Cron
	schedule   string

	mu        sync.Mutex
	isRunning bool
}

func NewService(baseURL string, timeout time.Duration, cache *PoolCache, perMinute int, refreshSpec string, logger *logrus.Logger) *Service {
	if perMinute < 1 {
		perMinute = 1
	}
	return &Service{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		logger:     logger,
		cron:       cron.New(),
		schedule:   refreshSpec,
	}
}

// GetPool returns the normalized pool for a scope, preferring the cache.
// Cache failures degrade to a direct fetch and are logged, never surfaced.
func (s *Service) GetPool(ctx context.Context, sport dfs.Sport, site dfs.Site, slate string) ([]dfs.Player, error) {
	if s.cache != nil {
		pool, err := s.cache.Get(ctx, sport, site, slate)
		if err == nil {
			return pool, nil
		}
		if err != ErrCacheMiss {
			s.logger.WithError(err).Warn("Pool cache read failed, fetching directly")
		}
	}
	return s.Refresh(ctx, sport, site, slate)
}

// Refresh fetches the feed, normalizes it, and repopulates the cache.
func (s *Service) Refresh(ctx context.Context, sport dfs.Sport, site dfs.Site, slate string) ([]dfs.Player, error) {
	cfg, err := sites.GetConfig(sport, site)
	if err != nil {
		return nil, err
	}

	rows, err := s.fetchRows(ctx, sport, site, slate)
	if err != nil {
		return nil, err
	}

	pool := normalizer.Normalize(rows, cfg)
	s.logger.WithFields(logrus.Fields{
		"sport":   sport,
		"site":    site,
		"slate":   slate,
		"rows":    len(rows),
		"players": len(pool),
	}).Info("Refreshed player pool")

	if s.cache != nil {
		if err := s.cache.Set(ctx, sport, site, slate, pool); err != nil {
			s.logger.WithError(err).Warn("Failed to cache refreshed pool")
		}
	}
	return pool, nil
}

func (s *Service) fetchRows(ctx context.Context, sport dfs.Sport, site dfs.Site, slate string) ([]map[string]interface{}, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("feed rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s.json", s.baseURL, sport, site)
	if slate != "" {
		url = fmt.Sprintf("%s/%s/%s/%s.json", s.baseURL, sport, site, slate)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, string(body))
	}

	var rows []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode feed rows: %w", err)
	}
	return rows, nil
}

// Start schedules background refreshes of every supported scope.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("feed refresher is already running")
	}

	_, err := s.cron.AddFunc(s.schedule, s.refreshAll)
	if err != nil {
		return fmt.Errorf("failed to schedule feed refresh: %w", err)
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("schedule", s.schedule).Info("Feed refresher started")
	return nil
}

// Stop halts scheduled refreshes and waits for any in-flight run.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isRunning = false
	s.logger.Info("Feed refresher stopped")
}

func (s *Service) refreshAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, sport := range sites.Sports() {
		for _, site := range []dfs.Site{dfs.SiteDraftKings, dfs.SiteFanDuel} {
			if _, err := s.Refresh(ctx, sport, site, ""); err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"sport": sport,
					"site":  site,
				}).Warn("Scheduled pool refresh failed")
			}
		}
	}
}
