package app_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"rankd/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu          sync.Mutex
	companies   map[string]domain.Company
	reviews     map[string]domain.Review
	metadata    map[string]domain.ReviewMetadata
	groups      map[int64]domain.CompanyGroup
	nextGroupID int64
	snapshots   []domain.ComparisonSnapshot
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		companies: map[string]domain.Company{},
		reviews:   map[string]domain.Review{},
		metadata:  map[string]domain.ReviewMetadata{},
		groups:    map[int64]domain.CompanyGroup{},
	}
}

func (f *fakeRepo) UpsertCompany(ctx context.Context, c domain.CompanyUpsert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.companies[c.PlaceID]
	if !ok {
		f.companies[c.PlaceID] = domain.Company{
			PlaceID: c.PlaceID, Name: c.Name, URL: c.URL, CreatedAt: time.Now(),
		}
		return nil
	}
	existing.Name = c.Name
	if c.URL != nil {
		existing.URL = c.URL
	}
	f.companies[c.PlaceID] = existing
	return nil
}

func (f *fakeRepo) GetCompany(ctx context.Context, placeID string) (domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.companies[placeID]
	if !ok {
		return domain.Company{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Company, 0, len(f.companies))
	for _, c := range f.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRepo) UpdateCompany(ctx context.Context, placeID string, p domain.CompanyPatch) (domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.companies[placeID]
	if !ok {
		return domain.Company{}, domain.ErrNotFound
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.URL != nil {
		c.URL = p.URL
	}
	if p.Services != nil {
		c.Services = *p.Services
	}
	f.companies[placeID] = c
	return c, nil
}

func (f *fakeRepo) SetOurCompany(ctx context.Context, placeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.companies[placeID]; !ok {
		return domain.ErrNotFound
	}
	for id, c := range f.companies {
		c.IsOurCompany = id == placeID
		f.companies[id] = c
	}
	return nil
}

func (f *fakeRepo) OurCompany(ctx context.Context) (*domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var holders []domain.Company
	for _, c := range f.companies {
		if c.IsOurCompany {
			holders = append(holders, c)
		}
	}
	switch len(holders) {
	case 0:
		return nil, nil
	case 1:
		return &holders[0], nil
	default:
		return nil, domain.ErrDataIntegrity
	}
}

func (f *fakeRepo) ExistingReviewIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := f.reviews[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeRepo) InsertReviews(ctx context.Context, rs []domain.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rs {
		if _, ok := f.reviews[r.ReviewID]; ok {
			continue // immutable: first writer wins
		}
		f.reviews[r.ReviewID] = r
	}
	return nil
}

func (f *fakeRepo) ListReviews(ctx context.Context, placeID string) ([]domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Review
	for _, r := range f.reviews {
		if r.PlaceID == placeID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReviewID < out[j].ReviewID })
	return out, nil
}

func (f *fakeRepo) UpsertMetadata(ctx context.Context, m domain.ReviewMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadata[m.PlaceID] = m
	return nil
}

func (f *fakeRepo) GetMetadata(ctx context.Context, placeID string) (*domain.ReviewMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.metadata[placeID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *fakeRepo) CreateGroup(ctx context.Context, name string, companyIDs []string) (domain.CompanyGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextGroupID++
	g := domain.CompanyGroup{ID: f.nextGroupID, Name: name, CompanyIDs: companyIDs, CreatedAt: time.Now()}
	f.groups[g.ID] = g
	return g, nil
}

func (f *fakeRepo) GetGroup(ctx context.Context, id int64) (domain.CompanyGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return domain.CompanyGroup{}, domain.ErrNotFound
	}
	return g, nil
}

func (f *fakeRepo) ListGroups(ctx context.Context) ([]domain.CompanyGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.CompanyGroup, 0, len(f.groups))
	for _, g := range f.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeRepo) UpdateGroup(ctx context.Context, id int64, p domain.GroupPatch) (domain.CompanyGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return domain.CompanyGroup{}, domain.ErrNotFound
	}
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.CompanyIDs != nil {
		g.CompanyIDs = *p.CompanyIDs
	}
	f.groups[id] = g
	return g, nil
}

func (f *fakeRepo) DeleteGroup(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.groups, id)
	return nil
}

func (f *fakeRepo) InsertSnapshot(ctx context.Context, s domain.ComparisonSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
	return nil
}

func (f *fakeRepo) GetSnapshot(ctx context.Context, id string) (domain.ComparisonSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.snapshots {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.ComparisonSnapshot{}, domain.ErrNotFound
}

func (f *fakeRepo) ListSnapshots(ctx context.Context) ([]domain.SnapshotInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SnapshotInfo, 0, len(f.snapshots))
	for _, s := range f.snapshots {
		out = append(out, domain.SnapshotInfo{ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string]any
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok2 := dst.(*domain.RankingResult); ok2 {
		*d = v.(domain.RankingResult)
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// ---- helpers ----

func ptr[T any](v T) *T { return &v }
