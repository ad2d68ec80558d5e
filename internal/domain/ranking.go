package domain

import "strconv"

// RatingBucket is one star value's share of a company's reviews.
type RatingBucket struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// CompanyRanking is one row of a computed leaderboard.
type CompanyRanking struct {
	Rank               int                    `json:"rank"`
	PlaceID            string                 `json:"placeId"`
	Name               string                 `json:"name"`
	URL                *string                `json:"url"`
	IsOurCompany       bool                   `json:"isOurCompany"`
	Services           []string               `json:"services"`
	CalculatedAvg      float64                `json:"calculatedAvg"`
	ReviewCount        int                    `json:"reviewCount"`
	RatingDistribution map[int]RatingBucket   `json:"ratingDistribution"`
	RecentTrend        float64                `json:"recentTrend"`
	ReviewVelocity     float64                `json:"reviewVelocity"`
	ResponseRate       float64                `json:"responseRate"`
}

// RankingFilter selects the candidate set: a fixed service predicate name
// ("" and "all" mean no predicate) or an explicit group's members.
type RankingFilter struct {
	Service string
	GroupID *int64
}

func (f RankingFilter) Label() string {
	if f.GroupID != nil {
		return "group:" + strconv.FormatInt(*f.GroupID, 10)
	}
	if f.Service == "" {
		return "all"
	}
	return f.Service
}

type RankingResult struct {
	Rankings []CompanyRanking `json:"rankings"`
	Filter   string           `json:"filter"`
}
