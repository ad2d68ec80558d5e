package app

import (
	"context"
	"fmt"

	"rankd/internal/domain"
)

// CompanyService covers the catalogue reads and the small set of writes that
// arrive outside the import path: manual edits, groups, and the our-company
// setting.
type CompanyService struct {
	repo  domain.Repository
	cache domain.Cache
}

func NewCompanyService(repo domain.Repository, cache domain.Cache) *CompanyService {
	return &CompanyService{repo: repo, cache: cache}
}

func (s *CompanyService) List(ctx context.Context) ([]domain.Company, error) {
	return s.repo.ListCompanies(ctx)
}

// CompanyDetail pairs a company with its aggregate metadata (nil before the
// first import).
type CompanyDetail struct {
	Company  domain.Company
	Metadata *domain.ReviewMetadata
}

func (s *CompanyService) Get(ctx context.Context, placeID string) (CompanyDetail, error) {
	c, err := s.repo.GetCompany(ctx, placeID)
	if err != nil {
		return CompanyDetail{}, err
	}
	md, err := s.repo.GetMetadata(ctx, placeID)
	if err != nil {
		return CompanyDetail{}, err
	}
	return CompanyDetail{Company: c, Metadata: md}, nil
}

// Update applies a partial edit. Service tags feed the ranking filters, so
// cached leaderboards are dropped afterwards.
func (s *CompanyService) Update(ctx context.Context, placeID string, p domain.CompanyPatch) (domain.Company, error) {
	c, err := s.repo.UpdateCompany(ctx, placeID, p)
	if err != nil {
		return domain.Company{}, err
	}
	s.dropRankingCaches(ctx)
	return c, nil
}

func (s *CompanyService) OurCompany(ctx context.Context) (*domain.Company, error) {
	return s.repo.OurCompany(ctx)
}

func (s *CompanyService) SetOurCompany(ctx context.Context, placeID string) error {
	if placeID == "" {
		return fmt.Errorf("%w: placeId required", domain.ErrValidation)
	}
	if err := s.repo.SetOurCompany(ctx, placeID); err != nil {
		return err
	}
	s.dropRankingCaches(ctx)
	return nil
}

func (s *CompanyService) CreateGroup(ctx context.Context, name string, companyIDs []string) (domain.CompanyGroup, error) {
	if name == "" {
		return domain.CompanyGroup{}, fmt.Errorf("%w: group name required", domain.ErrValidation)
	}
	return s.repo.CreateGroup(ctx, name, dedupe(companyIDs))
}

// GroupDetail is a group plus summaries of its member companies.
type GroupDetail struct {
	Group   domain.CompanyGroup
	Members []domain.GroupMember
}

func (s *CompanyService) GetGroup(ctx context.Context, id int64) (GroupDetail, error) {
	g, err := s.repo.GetGroup(ctx, id)
	if err != nil {
		return GroupDetail{}, err
	}
	member := make(map[string]struct{}, len(g.CompanyIDs))
	for _, pid := range g.CompanyIDs {
		member[pid] = struct{}{}
	}
	all, err := s.repo.ListCompanies(ctx)
	if err != nil {
		return GroupDetail{}, err
	}
	detail := GroupDetail{Group: g}
	for _, c := range all {
		if _, ok := member[c.PlaceID]; ok {
			detail.Members = append(detail.Members, domain.GroupMember{
				PlaceID: c.PlaceID, Name: c.Name, Services: c.Services,
			})
		}
	}
	return detail, nil
}

func (s *CompanyService) ListGroups(ctx context.Context) ([]domain.CompanyGroup, error) {
	return s.repo.ListGroups(ctx)
}

func (s *CompanyService) UpdateGroup(ctx context.Context, id int64, p domain.GroupPatch) (domain.CompanyGroup, error) {
	if p.CompanyIDs != nil {
		ids := dedupe(*p.CompanyIDs)
		p.CompanyIDs = &ids
	}
	return s.repo.UpdateGroup(ctx, id, p)
}

func (s *CompanyService) DeleteGroup(ctx context.Context, id int64) error {
	return s.repo.DeleteGroup(ctx, id)
}

func (s *CompanyService) dropRankingCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, key := range rankingCacheKeys() {
		_ = s.cache.Del(ctx, key)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
