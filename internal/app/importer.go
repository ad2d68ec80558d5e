package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"rankd/internal/domain"
)

// Importer merges captured review batches into storage without creating
// duplicates and keeps each company's aggregate metadata in sync.
type Importer struct {
	repo  domain.Repository
	cache domain.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewImporter(repo domain.Repository, cache domain.Cache) *Importer {
	return &Importer{repo: repo, cache: cache, locks: make(map[string]*sync.Mutex)}
}

// Import runs one batch for one company as a logically atomic unit: batches
// for the same place id are serialized, batches for different companies run
// concurrently with no coordination. The lock is process-local: deployments
// must not point the API server and the batch importer at the same company
// concurrently.
func (s *Importer) Import(ctx context.Context, batch domain.ImportBatch) (domain.ImportSummary, error) {
	if err := validateBatch(batch); err != nil {
		return domain.ImportSummary{}, err
	}

	capturedAt := batch.Metadata.ExtractedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	lock := s.companyLock(batch.Business.PlaceID)
	lock.Lock()
	defer lock.Unlock()

	up := domain.CompanyUpsert{PlaceID: batch.Business.PlaceID, Name: batch.Business.Name}
	if batch.Business.URL != "" {
		u := batch.Business.URL
		up.URL = &u
	}
	if err := s.repo.UpsertCompany(ctx, up); err != nil {
		return domain.ImportSummary{}, fmt.Errorf("upsert company %s: %w", up.PlaceID, err)
	}

	// One existence query for the whole batch; in-batch duplicates are caught
	// by the seen set so processing stays single-pass and in input order.
	ids := make([]string, 0, len(batch.Reviews))
	for _, r := range batch.Reviews {
		if r.ReviewID != "" {
			ids = append(ids, r.ReviewID)
		}
	}
	existing, err := s.repo.ExistingReviewIDs(ctx, ids)
	if err != nil {
		return domain.ImportSummary{}, fmt.Errorf("check existing reviews: %w", err)
	}

	var summary domain.ImportSummary
	seen := make(map[string]struct{}, len(ids))
	toInsert := make([]domain.Review, 0, len(batch.Reviews))

	for _, raw := range batch.Reviews {
		if raw.ReviewID == "" {
			summary.Skipped++
			continue
		}
		if raw.Rating < 1 || raw.Rating > 5 {
			summary.Skipped++
			continue
		}
		if _, dup := existing[raw.ReviewID]; dup {
			summary.Skipped++
			continue
		}
		if _, dup := seen[raw.ReviewID]; dup {
			summary.Skipped++
			continue
		}
		seen[raw.ReviewID] = struct{}{}

		rv := domain.Review{
			ReviewID:    raw.ReviewID,
			PlaceID:     batch.Business.PlaceID,
			Rating:      raw.Rating,
			HasResponse: raw.HasBusinessResponse,
			ScrapedAt:   capturedAt,
		}
		if raw.Author != "" {
			a := raw.Author
			rv.Author = &a
		}
		if raw.Text != "" {
			t := raw.Text
			rv.Text = &t
		}
		if raw.DateText != "" {
			if d, ok := ResolveRelativeDate(raw.DateText, capturedAt); ok {
				rv.ReviewDate = &d
			}
		}
		toInsert = append(toInsert, rv)
		summary.Imported++
	}

	if len(toInsert) > 0 {
		if err := s.repo.InsertReviews(ctx, toInsert); err != nil {
			return domain.ImportSummary{}, fmt.Errorf("insert reviews for %s: %w", up.PlaceID, err)
		}
	}

	if err := s.recomputeMetadata(ctx, batch.Business, capturedAt); err != nil {
		return domain.ImportSummary{}, err
	}

	s.invalidateRankings(ctx)

	log.Info().
		Str("place_id", up.PlaceID).
		Int("imported", summary.Imported).
		Int("skipped", summary.Skipped).
		Msg("import batch done")
	return summary, nil
}

func validateBatch(b domain.ImportBatch) error {
	if b.Business.PlaceID == "" {
		return fmt.Errorf("%w: business.placeId required", domain.ErrValidation)
	}
	if b.Business.Name == "" {
		return fmt.Errorf("%w: business.name required", domain.ErrValidation)
	}
	if b.Reviews == nil {
		return fmt.Errorf("%w: reviews array required", domain.ErrValidation)
	}
	return nil
}

// recomputeMetadata rebuilds the aggregate from the stored rows, not from the
// batch, so the cache always matches the source of truth.
func (s *Importer) recomputeMetadata(ctx context.Context, biz domain.BusinessDescriptor, capturedAt time.Time) error {
	reviews, err := s.repo.ListReviews(ctx, biz.PlaceID)
	if err != nil {
		return fmt.Errorf("list reviews for %s: %w", biz.PlaceID, err)
	}

	md := domain.ReviewMetadata{
		PlaceID:        biz.PlaceID,
		ScrapedReviews: len(reviews),
		LastScraped:    capturedAt,
	}
	if len(reviews) > 0 {
		sum := 0
		for _, r := range reviews {
			sum += r.Rating
		}
		avg := float64(sum) / float64(len(reviews))
		md.CalculatedAvg = &avg
	}
	md.TotalReviews = len(reviews)
	if biz.TotalReviews > 0 {
		md.TotalReviews = biz.TotalReviews
	}

	if err := s.repo.UpsertMetadata(ctx, md); err != nil {
		return fmt.Errorf("upsert metadata for %s: %w", biz.PlaceID, err)
	}
	return nil
}

func (s *Importer) companyLock(placeID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[placeID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[placeID] = l
	}
	return l
}

// New reviews shift every cached leaderboard; drop the fixed filter variants.
func (s *Importer) invalidateRankings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, key := range rankingCacheKeys() {
		_ = s.cache.Del(ctx, key)
	}
}
