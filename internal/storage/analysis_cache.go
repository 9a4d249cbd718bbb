package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bl4ck0w1/secdash/pkg/models"
	"github.com/sirupsen/logrus"
)

const analysisKeyPrefix = "analysis_"

type cachedAnalysis struct {
	StoredAt time.Time          `json:"stored_at"`
	Analysis *models.AIAnalysis `json:"analysis"`
}

// AnalysisCache keeps the latest AI analysis per scan, in memory and in the
// backing store, until the TTL lapses.
type AnalysisCache struct {
	store  Store
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time

	mu     sync.RWMutex
	memory map[string]cachedAnalysis
}

func NewAnalysisCache(store Store, ttl time.Duration, logger *logrus.Logger) *AnalysisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &AnalysisCache{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		memory: make(map[string]cachedAnalysis),
	}
}

func analysisKey(scanID string) string {
	return analysisKeyPrefix + scanID
}

// Get returns (nil, nil) when there is no fresh entry for scanID.
func (c *AnalysisCache) Get(scanID string) (*models.AIAnalysis, error) {
	c.mu.RLock()
	entry, ok := c.memory[scanID]
	c.mu.RUnlock()
	if ok && c.fresh(entry) {
		return entry.Analysis, nil
	}

	data, err := c.store.Get(analysisKey(scanID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached analysis: %w", err)
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warnf("Dropping unreadable cached analysis for scan %s: %v", scanID, err)
		_ = c.store.Delete(analysisKey(scanID))
		return nil, nil
	}
	if !c.fresh(entry) {
		c.logger.Debugf("Cached analysis for scan %s expired", scanID)
		return nil, nil
	}

	c.mu.Lock()
	c.memory[scanID] = entry
	c.mu.Unlock()
	return entry.Analysis, nil
}

func (c *AnalysisCache) Put(analysis *models.AIAnalysis) error {
	if analysis == nil || analysis.ScanID == "" {
		return fmt.Errorf("analysis must reference a scan")
	}
	entry := cachedAnalysis{StoredAt: c.now(), Analysis: analysis}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	if err := c.store.Put(analysisKey(analysis.ScanID), data); err != nil {
		return fmt.Errorf("cache analysis: %w", err)
	}

	c.mu.Lock()
	c.memory[analysis.ScanID] = entry
	c.mu.Unlock()
	return nil
}

func (c *AnalysisCache) Invalidate(scanID string) error {
	c.mu.Lock()
	delete(c.memory, scanID)
	c.mu.Unlock()
	return c.store.Delete(analysisKey(scanID))
}

// Prune removes every expired entry and returns how many were dropped.
func (c *AnalysisCache) Prune() (int, error) {
	keys, err := c.store.Keys()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, analysisKeyPrefix) {
			continue
		}
		data, err := c.store.Get(k)
		if err != nil {
			continue
		}
		var entry cachedAnalysis
		if json.Unmarshal(data, &entry) == nil && c.fresh(entry) {
			continue
		}
		if err := c.store.Delete(k); err != nil {
			return removed, err
		}
		c.mu.Lock()
		delete(c.memory, strings.TrimPrefix(k, analysisKeyPrefix))
		c.mu.Unlock()
		removed++
	}
	return removed, nil
}

func (c *AnalysisCache) fresh(e cachedAnalysis) bool {
	if e.Analysis == nil {
		return false
	}
	return c.ttl <= 0 || c.now().Sub(e.StoredAt) < c.ttl
}
