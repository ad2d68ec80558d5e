package domain

import "time"

// Company is a business listing keyed by its external place identifier.
type Company struct {
	PlaceID      string
	Name         string
	URL          *string
	IsOurCompany bool
	Services     []string
	CreatedAt    time.Time
}

// CompanyUpsert carries the fields an import batch may set on a company.
// Absent values never overwrite existing data.
type CompanyUpsert struct {
	PlaceID string
	Name    string
	URL     *string
}

// CompanyPatch is a partial update; nil fields are left untouched.
type CompanyPatch struct {
	Name     *string
	URL      *string
	Services *[]string
}

// CompanyGroup is a named, user-defined set of company place ids.
type CompanyGroup struct {
	ID         int64
	Name       string
	CompanyIDs []string
	CreatedAt  time.Time
}

type GroupPatch struct {
	Name       *string
	CompanyIDs *[]string
}

// GroupMember is the company summary embedded in a group detail view.
type GroupMember struct {
	PlaceID  string
	Name     string
	Services []string
}
