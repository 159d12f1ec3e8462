package leaderboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opennirman/nirmanwatch/internal/cache"
)

// Cache provides caching for leaderboard data
type Cache struct {
	cache *cache.Cache
}

// NewCache creates a new leaderboard cache
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		cache: cache.NewCache(ttl),
	}
}

func (lc *Cache) leaderboardKey(limit int) string {
	return fmt.Sprintf("leaderboard:top:%d", limit)
}

func (lc *Cache) rankKey(contractorID string) string {
	return fmt.Sprintf("leaderboard:rank:%s", contractorID)
}

// GetLeaderboard retrieves cached leaderboard data
func (lc *Cache) GetLeaderboard(limit int) (*Response, bool) {
	data, found := lc.cache.Get(lc.leaderboardKey(limit))
	if !found {
		return nil, false
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		slog.Error("Failed to unmarshal cached leaderboard data", "error", err, "limit", limit)
		return nil, false
	}

	return &response, true
}

// SetLeaderboard caches leaderboard data
func (lc *Cache) SetLeaderboard(limit int, response *Response) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal leaderboard data for cache", "error", err, "limit", limit)
		return
	}

	lc.cache.Set(lc.leaderboardKey(limit), data)
}

// GetContractorRank retrieves a cached rank entry
func (lc *Cache) GetContractorRank(contractorID string) (*Entry, bool) {
	data, found := lc.cache.Get(lc.rankKey(contractorID))
	if !found {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Error("Failed to unmarshal cached rank data", "error", err, "contractor_id", contractorID)
		return nil, false
	}

	return &entry, true
}

// SetContractorRank caches a rank entry
func (lc *Cache) SetContractorRank(contractorID string, entry *Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("Failed to marshal rank data for cache", "error", err, "contractor_id", contractorID)
		return
	}

	lc.cache.Set(lc.rankKey(contractorID), data)
}

// InvalidateAll drops every cached leaderboard entry and returns the count
func (lc *Cache) InvalidateAll() int {
	return lc.cache.InvalidatePrefix("leaderboard:")
}

// GetStats returns cache statistics
func (lc *Cache) GetStats() map[string]interface{} {
	return lc.cache.Stats()
}

// Warm pre-populates the cache with the common page sizes
func (lc *Cache) Warm(service *Service) {
	for _, limit := range []int{10, 25, 50} {
		if _, err := service.TopContractors(limit); err != nil {
			slog.Error("Failed to warm leaderboard cache", "error", err, "limit", limit)
		}
	}
}

// AutoRefresh periodically rebuilds the cached leaderboard pages
func (lc *Cache) AutoRefresh(service *Service, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			lc.InvalidateAll()
			lc.Warm(service)
		}
	}()
}
