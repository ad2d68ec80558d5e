package domain

import "context"

type Repository interface {
	// Companies
	UpsertCompany(ctx context.Context, c CompanyUpsert) error
	GetCompany(ctx context.Context, placeID string) (Company, error)
	ListCompanies(ctx context.Context) ([]Company, error)
	UpdateCompany(ctx context.Context, placeID string, p CompanyPatch) (Company, error)
	// SetOurCompany clears the previous holder and sets the new one in a
	// single transaction; OurCompany returns nil when no holder is set and
	// ErrDataIntegrity when more than one row carries the flag.
	SetOurCompany(ctx context.Context, placeID string) error
	OurCompany(ctx context.Context) (*Company, error)

	// Reviews
	ExistingReviewIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	InsertReviews(ctx context.Context, rs []Review) error
	ListReviews(ctx context.Context, placeID string) ([]Review, error)

	// Metadata
	UpsertMetadata(ctx context.Context, m ReviewMetadata) error
	GetMetadata(ctx context.Context, placeID string) (*ReviewMetadata, error)

	// Groups
	CreateGroup(ctx context.Context, name string, companyIDs []string) (CompanyGroup, error)
	GetGroup(ctx context.Context, id int64) (CompanyGroup, error)
	ListGroups(ctx context.Context) ([]CompanyGroup, error)
	UpdateGroup(ctx context.Context, id int64, p GroupPatch) (CompanyGroup, error)
	DeleteGroup(ctx context.Context, id int64) error

	// Snapshots
	InsertSnapshot(ctx context.Context, s ComparisonSnapshot) error
	GetSnapshot(ctx context.Context, id string) (ComparisonSnapshot, error)
	ListSnapshots(ctx context.Context) ([]SnapshotInfo, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Renderer is the export collaborator: it turns a finished ranking into a
// document. The core supplies data only, never formatting.
type Renderer interface {
	Render(ctx context.Context, title string, rankings []CompanyRanking) ([]byte, error)
}
