package api

import (
	"github.com/starford/tasklint/internal/docservice"
	"github.com/starford/tasklint/internal/index"
)

// DocumentDetail is the checked document response (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []index.DocumentRow `json:"documents" validate:"required"`
	Total     int                 `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// HeadingsResponse wraps heading listings.
type HeadingsResponse struct {
	Headings []index.HeadingRow `json:"headings" validate:"required"`
}

// FixAllRequest is the request body for a batch fix.
type FixAllRequest struct {
	Dir     string `json:"dir" example:"projects"`
	Preview bool   `json:"preview" example:"true"`
}

// GenerateIDResponse is returned by POST /ids.
type GenerateIDResponse struct {
	ID string `json:"id" example:"20250101120000" validate:"required"`
}

// EnsureIDRequest is the request body for assigning a TASK_ID to a heading.
type EnsureIDRequest struct {
	Heading int `json:"heading" example:"0"`
}
