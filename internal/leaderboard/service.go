package leaderboard

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/opennirman/nirmanwatch/internal/database"
)

// Entry represents a ranked contractor on the public leaderboard
type Entry struct {
	Rank          int       `json:"rank"`
	ContractorID  string    `json:"contractorId"`
	Name          string    `json:"name"`
	OverallRating float64   `json:"overallRating"`
	PointsGained  float64   `json:"pointsGained"`
	PointsLost    float64   `json:"pointsLost"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Response represents the response for leaderboard queries
type Response struct {
	Entries     []Entry   `json:"entries"`
	Total       int       `json:"total"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Service handles contractor leaderboard queries
type Service struct {
	repo  *database.Repository
	cache *Cache
}

// NewService creates a new leaderboard service
func NewService(repo *database.Repository) *Service {
	return &Service{
		repo:  repo,
		cache: NewCache(15 * time.Minute),
	}
}

// NewServiceWithCache creates a new leaderboard service with custom cache
func NewServiceWithCache(repo *database.Repository, cache *Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// TopContractors returns the top-rated contractors ordered by overall rating.
// Results are served from cache when fresh.
func (s *Service) TopContractors(limit int) (*Response, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	if cached, found := s.cache.GetLeaderboard(limit); found {
		return cached, nil
	}

	rows, err := s.repo.TopRatedContractors(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, Entry{
			Rank:          i + 1,
			ContractorID:  row.ContractorID,
			Name:          row.Name,
			OverallRating: row.OverallRating,
			PointsGained:  row.PointsGained,
			PointsLost:    row.PointsLost,
			LastUpdated:   row.LastUpdated,
		})
	}

	response := &Response{
		Entries:     entries,
		Total:       len(entries),
		GeneratedAt: time.Now(),
	}

	s.cache.SetLeaderboard(limit, response)

	return response, nil
}

// ContractorRank returns a single contractor's current rank, or nil when the
// contractor does not appear on the board.
func (s *Service) ContractorRank(contractorID string) (*Entry, error) {
	if cached, found := s.cache.GetContractorRank(contractorID); found {
		return cached, nil
	}

	response, err := s.TopContractors(100)
	if err != nil {
		return nil, err
	}

	for _, entry := range response.Entries {
		if entry.ContractorID == contractorID {
			e := entry
			s.cache.SetContractorRank(contractorID, &e)
			return &e, nil
		}
	}

	return nil, nil
}

// Invalidate drops cached leaderboard data after a rating change
func (s *Service) Invalidate() {
	removed := s.cache.InvalidateAll()
	if removed > 0 {
		slog.Debug("Leaderboard cache invalidated", "removed", removed)
	}
}

// GetCacheStats returns leaderboard cache statistics
func (s *Service) GetCacheStats() map[string]interface{} {
	return s.cache.GetStats()
}

// WarmCache warms the leaderboard cache with common query sizes
func (s *Service) WarmCache() {
	s.cache.Warm(s)
}

// StartAutoRefresh starts automatic cache refresh
func (s *Service) StartAutoRefresh(interval time.Duration) {
	s.cache.AutoRefresh(s, interval)
}
