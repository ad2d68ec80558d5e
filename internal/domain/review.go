package domain

import "time"

// Review is immutable once stored; re-imports of the same ReviewID are no-ops.
type Review struct {
	ReviewID    string
	PlaceID     string
	Author      *string
	Rating      int // 1..5
	Text        *string
	ReviewDate  *time.Time // nil when the source date text was unparseable
	HasResponse bool
	ScrapedAt   time.Time
}

// ReviewMetadata is a per-company aggregate cache, fully recomputable from the
// review rows. TotalReviews is the externally reported count and may exceed
// ScrapedReviews.
type ReviewMetadata struct {
	PlaceID        string
	TotalReviews   int
	ScrapedReviews int
	CalculatedAvg  *float64 // nil when no reviews are stored
	LastScraped    time.Time
}
