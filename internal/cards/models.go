package cards

import "strings"

// Record represents a single card listing as scraped from a marketplace.
// Only grade, grading company and images decide whether it is exported;
// the remaining fields are carried through to the manifest.
type Record struct {
	Title          string `json:"title"`
	CardName       string `json:"card_name"`
	GradingCompany string `json:"grading_company"`
	Grade          Scalar `json:"grade"`
	Price          Scalar `json:"price"`
	ListingURL     string `json:"listing_url"`
	ListingID      Scalar `json:"listing_id"`

	// Images are paths relative to the images base directory.
	// Index 0 is the front of the slab, index 1 the back.
	Images []string `json:"images"`
}

// GetListingID returns the trimmed listing id, or "" when absent
func (r *Record) GetListingID() string {
	return strings.TrimSpace(r.ListingID.String())
}

// GetCompany returns the trimmed grading company
func (r *Record) GetCompany() string {
	return strings.TrimSpace(r.GradingCompany)
}

// GetGrade returns the trimmed grade text
func (r *Record) GetGrade() string {
	return strings.TrimSpace(r.Grade.String())
}

// Label identifies the record in logs: listing id when known, title otherwise
func (r *Record) Label() string {
	if id := r.GetListingID(); id != "" {
		return id
	}
	if r.Title != "" {
		return r.Title
	}
	return "unknown"
}
