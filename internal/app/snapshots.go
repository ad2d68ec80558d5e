package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rankd/internal/domain"
)

// SnapshotService freezes computed rankings as immutable historical records.
type SnapshotService struct {
	repo domain.Repository
	now  func() time.Time
}

func NewSnapshotService(repo domain.Repository) *SnapshotService {
	return &SnapshotService{repo: repo, now: time.Now}
}

// Archive stores the ranking verbatim under a human-readable name and returns
// the new snapshot id. The stored list is never recomputed.
func (s *SnapshotService) Archive(ctx context.Context, name string, result domain.RankingResult) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: snapshot name required", domain.ErrValidation)
	}
	payload, err := json.Marshal(result.Rankings)
	if err != nil {
		return "", fmt.Errorf("marshal rankings: %w", err)
	}
	snap := domain.ComparisonSnapshot{
		ID:        uuid.NewString(),
		Name:      name,
		Rankings:  payload,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertSnapshot(ctx, snap); err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	return snap.ID, nil
}

// List returns snapshot summaries newest-first.
func (s *SnapshotService) List(ctx context.Context) ([]domain.SnapshotInfo, error) {
	return s.repo.ListSnapshots(ctx)
}

func (s *SnapshotService) Get(ctx context.Context, id string) (domain.ComparisonSnapshot, error) {
	return s.repo.GetSnapshot(ctx, id)
}

// Rankings decodes a snapshot's frozen payload, for callers that need the
// rows (the export path) rather than the raw blob.
func (s *SnapshotService) Rankings(ctx context.Context, id string) (string, []domain.CompanyRanking, error) {
	snap, err := s.repo.GetSnapshot(ctx, id)
	if err != nil {
		return "", nil, err
	}
	var rankings []domain.CompanyRanking
	if err := json.Unmarshal(snap.Rankings, &rankings); err != nil {
		return "", nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snap.Name, rankings, nil
}
