package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"rankd/internal/app"
	"rankd/internal/domain"
)

func seedCompany(t *testing.T, repo *fakeRepo, placeID, name string, services []string, ratings ...int) {
	t.Helper()
	ctx := context.Background()
	if err := repo.UpsertCompany(ctx, domain.CompanyUpsert{PlaceID: placeID, Name: name}); err != nil {
		t.Fatalf("seed company: %v", err)
	}
	if services != nil {
		if _, err := repo.UpdateCompany(ctx, placeID, domain.CompanyPatch{Services: &services}); err != nil {
			t.Fatalf("seed services: %v", err)
		}
	}
	reviews := make([]domain.Review, 0, len(ratings))
	for i, r := range ratings {
		reviews = append(reviews, domain.Review{
			ReviewID:  placeID + "-r" + string(rune('a'+i)),
			PlaceID:   placeID,
			Rating:    r,
			ScrapedAt: time.Now(),
		})
	}
	if err := repo.InsertReviews(ctx, reviews); err != nil {
		t.Fatalf("seed reviews: %v", err)
	}
}

func frozen(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
}

func TestRank_Metrics(t *testing.T) {
	repo := newFakeRepo()
	seedCompany(t, repo, "p1", "Acme", nil, 5, 5, 4, 3)
	svc := app.NewRankingService(repo, nil, 0).WithClock(frozen(2024, time.June, 1))

	res, err := svc.Rank(context.Background(), domain.RankingFilter{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.Filter != "all" {
		t.Fatalf("filter=%q, want all", res.Filter)
	}
	if len(res.Rankings) != 1 {
		t.Fatalf("got %d rows, want 1", len(res.Rankings))
	}
	row := res.Rankings[0]

	if row.Rank != 1 {
		t.Fatalf("rank=%d, want 1", row.Rank)
	}
	if row.CalculatedAvg != 4.25 {
		t.Fatalf("avg=%v, want 4.25", row.CalculatedAvg)
	}
	if row.ReviewCount != 4 {
		t.Fatalf("reviewCount=%d, want 4", row.ReviewCount)
	}
	wantDist := map[int]domain.RatingBucket{
		5: {Count: 2, Percent: 50.0},
		4: {Count: 1, Percent: 25.0},
		3: {Count: 1, Percent: 25.0},
		2: {Count: 0, Percent: 0.0},
		1: {Count: 0, Percent: 0.0},
	}
	for star, want := range wantDist {
		if got := row.RatingDistribution[star]; got != want {
			t.Fatalf("dist[%d]=%+v, want %+v", star, got, want)
		}
	}
	// All reviews are undated, so the recent window is empty.
	if row.ReviewVelocity != 0.0 {
		t.Fatalf("velocity=%v, want 0.0", row.ReviewVelocity)
	}
	if row.RecentTrend != 0 {
		t.Fatalf("trend=%v, want 0", row.RecentTrend)
	}
	if row.ResponseRate != 0.0 {
		t.Fatalf("responseRate=%v, want 0.0", row.ResponseRate)
	}
}

func TestRank_RecentWindowMetrics(t *testing.T) {
	repo := newFakeRepo()
	ctx := context.Background()
	if err := repo.UpsertCompany(ctx, domain.CompanyUpsert{PlaceID: "p1", Name: "Acme"}); err != nil {
		t.Fatal(err)
	}
	now := frozen(2024, time.June, 1)
	recent := now().AddDate(0, -1, 0)
	old := now().AddDate(0, -6, 0)
	if err := repo.InsertReviews(ctx, []domain.Review{
		{ReviewID: "r1", PlaceID: "p1", Rating: 5, ReviewDate: &recent, HasResponse: true},
		{ReviewID: "r2", PlaceID: "p1", Rating: 5, ReviewDate: &recent},
		{ReviewID: "r3", PlaceID: "p1", Rating: 2, ReviewDate: &old},
		{ReviewID: "r4", PlaceID: "p1", Rating: 2, ReviewDate: &old},
	}); err != nil {
		t.Fatal(err)
	}

	svc := app.NewRankingService(repo, nil, 0).WithClock(now)
	res, err := svc.Rank(ctx, domain.RankingFilter{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	row := res.Rankings[0]

	if row.CalculatedAvg != 3.5 {
		t.Fatalf("avg=%v, want 3.5", row.CalculatedAvg)
	}
	// Two reviews inside the 3-month window averaging 5.0.
	if row.RecentTrend != 1.5 {
		t.Fatalf("trend=%v, want 1.5", row.RecentTrend)
	}
	if row.ReviewVelocity != 0.7 { // 2/3 rounded to one decimal
		t.Fatalf("velocity=%v, want 0.7", row.ReviewVelocity)
	}
	if row.ResponseRate != 25.0 {
		t.Fatalf("responseRate=%v, want 25.0", row.ResponseRate)
	}
}

func TestRank_OrderingAndTolerance(t *testing.T) {
	repo := newFakeRepo()
	// avg 4.0 with 1 review vs avg 4.0 with 3 reviews: tie broken by count.
	seedCompany(t, repo, "pa", "Alpha", nil, 4)
	seedCompany(t, repo, "pb", "Beta", nil, 4, 4, 4)
	// avg 5.0 sorts above both.
	seedCompany(t, repo, "pc", "Gamma", nil, 5)
	// No reviews at all: excluded.
	if err := repo.UpsertCompany(context.Background(), domain.CompanyUpsert{PlaceID: "pd", Name: "Delta"}); err != nil {
		t.Fatal(err)
	}

	svc := app.NewRankingService(repo, nil, 0).WithClock(frozen(2024, time.June, 1))
	res, err := svc.Rank(context.Background(), domain.RankingFilter{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	var got []string
	for _, r := range res.Rankings {
		got = append(got, r.PlaceID)
	}
	want := []string{"pc", "pb", "pa"}
	if len(got) != len(want) {
		t.Fatalf("rows=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rows=%v, want %v", got, want)
		}
	}
	for i, r := range res.Rankings {
		if r.Rank != i+1 {
			t.Fatalf("rank[%d]=%d, want sequential from 1", i, r.Rank)
		}
	}
}

func TestRank_ServiceFilter(t *testing.T) {
	repo := newFakeRepo()
	seedCompany(t, repo, "p1", "Movers", []string{"Removals"}, 5)
	seedCompany(t, repo, "p2", "Lockers", []string{"Self-Storage"}, 4)
	seedCompany(t, repo, "p3", "Both", []string{"Removals", "Self-Storage"}, 3)
	svc := app.NewRankingService(repo, nil, 0).WithClock(frozen(2024, time.June, 1))
	ctx := context.Background()

	res, err := svc.Rank(ctx, domain.RankingFilter{Service: "removals"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res.Rankings) != 2 || res.Filter != "removals" {
		t.Fatalf("removals: %d rows filter=%q", len(res.Rankings), res.Filter)
	}

	res, err = svc.Rank(ctx, domain.RankingFilter{Service: "removals-and-storage"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res.Rankings) != 1 || res.Rankings[0].PlaceID != "p3" {
		t.Fatalf("removals-and-storage: %+v", res.Rankings)
	}

	if _, err := svc.Rank(ctx, domain.RankingFilter{Service: "boats"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown filter: err=%v, want ErrValidation", err)
	}
}

func TestRank_GroupFilter(t *testing.T) {
	repo := newFakeRepo()
	ctx := context.Background()
	seedCompany(t, repo, "p1", "Alpha", nil, 5)
	seedCompany(t, repo, "p2", "Beta", nil, 4)
	seedCompany(t, repo, "p3", "Gamma", nil, 3)
	g, err := repo.CreateGroup(ctx, "shortlist", []string{"p1", "p3", "ghost"})
	if err != nil {
		t.Fatal(err)
	}
	svc := app.NewRankingService(repo, nil, 0).WithClock(frozen(2024, time.June, 1))

	res, err := svc.Rank(ctx, domain.RankingFilter{GroupID: &g.ID})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res.Rankings) != 2 {
		t.Fatalf("got %d rows, want the 2 real members", len(res.Rankings))
	}
	if res.Filter != "group:1" {
		t.Fatalf("filter=%q", res.Filter)
	}

	missing := int64(999)
	if _, err := svc.Rank(ctx, domain.RankingFilter{GroupID: &missing}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing group: err=%v, want ErrNotFound", err)
	}

	empty, err := repo.CreateGroup(ctx, "empty", nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err = svc.Rank(ctx, domain.RankingFilter{GroupID: &empty.ID})
	if err != nil {
		t.Fatalf("empty group must rank, not fail: %v", err)
	}
	if len(res.Rankings) != 0 {
		t.Fatalf("empty group: got %d rows", len(res.Rankings))
	}
}

func TestRank_MultipleOurCompaniesIsIntegrityError(t *testing.T) {
	repo := newFakeRepo()
	ctx := context.Background()
	seedCompany(t, repo, "p1", "Alpha", nil, 5)
	seedCompany(t, repo, "p2", "Beta", nil, 4)
	// Corrupt the flag directly, bypassing the exclusive setter.
	repo.mu.Lock()
	for id, c := range repo.companies {
		c.IsOurCompany = true
		repo.companies[id] = c
	}
	repo.mu.Unlock()

	svc := app.NewRankingService(repo, nil, 0).WithClock(frozen(2024, time.June, 1))
	if _, err := svc.Rank(ctx, domain.RankingFilter{}); !errors.Is(err, domain.ErrDataIntegrity) {
		t.Fatalf("err=%v, want ErrDataIntegrity", err)
	}
}

func TestRank_CorruptRatingIsIntegrityError(t *testing.T) {
	repo := newFakeRepo()
	ctx := context.Background()
	if err := repo.UpsertCompany(ctx, domain.CompanyUpsert{PlaceID: "p1", Name: "Acme"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.InsertReviews(ctx, []domain.Review{
		{ReviewID: "r1", PlaceID: "p1", Rating: 7},
	}); err != nil {
		t.Fatal(err)
	}

	svc := app.NewRankingService(repo, nil, 0).WithClock(frozen(2024, time.June, 1))
	if _, err := svc.Rank(ctx, domain.RankingFilter{}); !errors.Is(err, domain.ErrDataIntegrity) {
		t.Fatalf("err=%v, want ErrDataIntegrity", err)
	}
}

func TestRank_CacheRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	seedCompany(t, repo, "p1", "Acme", nil, 5)
	cache := &fakeCache{}
	svc := app.NewRankingService(repo, cache, time.Minute).WithClock(frozen(2024, time.June, 1))
	ctx := context.Background()

	first, err := svc.Rank(ctx, domain.RankingFilter{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, ok := cache.store["rankings:all"]; !ok {
		t.Fatal("expected result cached under rankings:all")
	}

	// Data changes behind the cache are invisible until invalidation.
	seedCompany(t, repo, "p2", "Beta", nil, 4)
	second, err := svc.Rank(ctx, domain.RankingFilter{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(second.Rankings) != len(first.Rankings) {
		t.Fatalf("cache miss: got %d rows, want cached %d", len(second.Rankings), len(first.Rankings))
	}

	// Group requests never touch the cache.
	g, _ := repo.CreateGroup(ctx, "g", []string{"p1", "p2"})
	res, err := svc.Rank(ctx, domain.RankingFilter{GroupID: &g.ID})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res.Rankings) != 2 {
		t.Fatalf("group ranking bypassing cache: got %d rows", len(res.Rankings))
	}
}
