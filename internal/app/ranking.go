package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"rankd/internal/domain"
)

// Fixed service-tag predicates selectable as ranking filters.
var servicePredicates = map[string]func(services []string) bool{
	"removals":     func(s []string) bool { return hasService(s, "Removals") },
	"self-storage": func(s []string) bool { return hasService(s, "Self-Storage") },
	"mobile-storage": func(s []string) bool {
		return hasService(s, "Mobile Storage")
	},
	"removals-and-storage": func(s []string) bool {
		return hasService(s, "Removals") && hasService(s, "Self-Storage")
	},
}

func hasService(services []string, want string) bool {
	for _, s := range services {
		if s == want {
			return true
		}
	}
	return false
}

// rankingCacheKeys lists every cacheable filter variant; group rankings are
// not cached (group membership is user-editable at any time).
func rankingCacheKeys() []string {
	keys := []string{"rankings:all"}
	for name := range servicePredicates {
		keys = append(keys, "rankings:"+name)
	}
	return keys
}

// RankingService computes ordered leaderboards from the stored review rows.
// The trailing 3-month window is relative to the clock at ranking time; the
// clock is injectable so tests can freeze it.
type RankingService struct {
	repo     domain.Repository
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewRankingService(repo domain.Repository, cache domain.Cache, ttl time.Duration) *RankingService {
	return &RankingService{repo: repo, cache: cache, cacheTTL: ttl, now: time.Now}
}

// WithClock overrides the ranking-time clock.
func (s *RankingService) WithClock(now func() time.Time) *RankingService {
	s.now = now
	return s
}

func (s *RankingService) Rank(ctx context.Context, f domain.RankingFilter) (domain.RankingResult, error) {
	if f.GroupID == nil && f.Service != "" && f.Service != "all" {
		if _, ok := servicePredicates[f.Service]; !ok {
			return domain.RankingResult{}, fmt.Errorf("%w: unknown filter %q", domain.ErrValidation, f.Service)
		}
	}

	key, cacheable := s.cacheKey(f)
	if cacheable && s.cache != nil {
		var cached domain.RankingResult
		if ok, _ := s.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}

	candidates, err := s.candidates(ctx, f)
	if err != nil {
		return domain.RankingResult{}, err
	}

	ours := 0
	rankings := make([]domain.CompanyRanking, 0, len(candidates))
	for _, c := range candidates {
		if c.IsOurCompany {
			ours++
		}
		reviews, err := s.repo.ListReviews(ctx, c.PlaceID)
		if err != nil {
			return domain.RankingResult{}, fmt.Errorf("list reviews for %s: %w", c.PlaceID, err)
		}
		if len(reviews) == 0 {
			// No meaningful average; excluded from ranking entirely.
			continue
		}
		row, err := s.computeRow(c, reviews)
		if err != nil {
			return domain.RankingResult{}, err
		}
		rankings = append(rankings, row)
	}
	if ours > 1 {
		return domain.RankingResult{}, fmt.Errorf("%w: %d companies flagged as ours", domain.ErrDataIntegrity, ours)
	}

	// Averages within 0.01 of each other are treated as equal and broken by
	// review count; exact float comparison would make the order unstable.
	sort.SliceStable(rankings, func(i, j int) bool {
		a, b := rankings[i], rankings[j]
		if math.Abs(a.CalculatedAvg-b.CalculatedAvg) >= 0.01 {
			return a.CalculatedAvg > b.CalculatedAvg
		}
		return a.ReviewCount > b.ReviewCount
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}

	result := domain.RankingResult{Rankings: rankings, Filter: f.Label()}
	if cacheable && s.cache != nil {
		_ = s.cache.Set(ctx, key, result, int(s.cacheTTL.Seconds()))
	}
	return result, nil
}

func (s *RankingService) cacheKey(f domain.RankingFilter) (string, bool) {
	if f.GroupID != nil {
		return "", false
	}
	return "rankings:" + f.Label(), true
}

func (s *RankingService) candidates(ctx context.Context, f domain.RankingFilter) ([]domain.Company, error) {
	if f.GroupID != nil {
		group, err := s.repo.GetGroup(ctx, *f.GroupID)
		if err != nil {
			return nil, err // ErrNotFound is distinct from an empty group
		}
		member := make(map[string]struct{}, len(group.CompanyIDs))
		for _, id := range group.CompanyIDs {
			member[id] = struct{}{}
		}
		all, err := s.repo.ListCompanies(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]domain.Company, 0, len(member))
		for _, c := range all {
			if _, ok := member[c.PlaceID]; ok {
				out = append(out, c)
			}
		}
		return out, nil
	}

	all, err := s.repo.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	if f.Service == "" || f.Service == "all" {
		return all, nil
	}
	pred := servicePredicates[f.Service]
	out := make([]domain.Company, 0, len(all))
	for _, c := range all {
		if pred(c.Services) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *RankingService) computeRow(c domain.Company, reviews []domain.Review) (domain.CompanyRanking, error) {
	total := len(reviews)
	sum := 0
	responded := 0
	dist := make(map[int]domain.RatingBucket, 5)
	for star := 1; star <= 5; star++ {
		dist[star] = domain.RatingBucket{}
	}

	for _, r := range reviews {
		if r.Rating < 1 || r.Rating > 5 {
			return domain.CompanyRanking{}, fmt.Errorf("%w: review %s has rating %d", domain.ErrDataIntegrity, r.ReviewID, r.Rating)
		}
		sum += r.Rating
		if r.HasResponse {
			responded++
		}
		b := dist[r.Rating]
		b.Count++
		dist[r.Rating] = b
	}

	avg := round2(float64(sum) / float64(total))
	for star := 1; star <= 5; star++ {
		b := dist[star]
		b.Percent = round1(float64(b.Count) / float64(total) * 100)
		dist[star] = b
	}

	// Recent subset: resolved dates within the trailing 3 calendar months.
	// Undated reviews are excluded from this subset only.
	cutoff := s.now().AddDate(0, -3, 0)
	recentCount := 0
	recentSum := 0
	for _, r := range reviews {
		if r.ReviewDate != nil && !r.ReviewDate.Before(cutoff) {
			recentCount++
			recentSum += r.Rating
		}
	}
	trend := 0.0
	if recentCount > 0 {
		trend = round2(float64(recentSum)/float64(recentCount) - avg)
	}

	return domain.CompanyRanking{
		PlaceID:            c.PlaceID,
		Name:               c.Name,
		URL:                c.URL,
		IsOurCompany:       c.IsOurCompany,
		Services:           c.Services,
		CalculatedAvg:      avg,
		ReviewCount:        total,
		RatingDistribution: dist,
		RecentTrend:        trend,
		ReviewVelocity:     round1(float64(recentCount) / 3),
		ResponseRate:       round1(float64(responded) / float64(total) * 100),
	}, nil
}

// math.Round rounds half away from zero, matching the source metrics.
func round2(x float64) float64 { return math.Round(x*100) / 100 }
func round1(x float64) float64 { return math.Round(x*10) / 10 }
