package domain

import "time"

// ImportBatch is the upload contract for one company's captured reviews.
// Every field that the capture tool may omit is optional with a defined
// zero-value default; the shape itself is validated before any write.
type ImportBatch struct {
	Business BusinessDescriptor `json:"business"`
	Reviews  []RawReview        `json:"reviews"`
	Metadata ImportMetadata     `json:"metadata"`
}

type BusinessDescriptor struct {
	PlaceID      string `json:"placeId"`
	Name         string `json:"name"`
	URL          string `json:"url,omitempty"`
	TotalReviews int    `json:"totalReviews,omitempty"`
}

type RawReview struct {
	ReviewID            string `json:"reviewId,omitempty"`
	Author              string `json:"author,omitempty"`
	Rating              int    `json:"rating"`
	Text                string `json:"text,omitempty"`
	DateText            string `json:"dateText,omitempty"`
	HasBusinessResponse bool   `json:"hasBusinessResponse,omitempty"`
}

type ImportMetadata struct {
	ExtractedAt time.Time `json:"extractedAt"`
	Method      string    `json:"extractionMethod,omitempty"`
}

// ImportSummary reports the outcome of one batch. Skipped covers duplicates,
// entries without a review id, and entries failing the pre-rating checks.
type ImportSummary struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}
