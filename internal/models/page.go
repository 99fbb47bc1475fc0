package models

import (
	"fmt"

	"github.com/Dan9191/bank-cards/internal/utils"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest selects a zero-based page of results
type PageRequest struct {
	Page int
	Size int
}

// Validate rejects negative pages and sizes outside 1..MaxPageSize
func (p PageRequest) Validate() error {
	if p.Page < 0 {
		return fmt.Errorf("%w: page must be >= 0", utils.ErrInvalidArgument)
	}
	if p.Size <= 0 || p.Size > MaxPageSize {
		return fmt.Errorf("%w: size must be between 1 and %d", utils.ErrInvalidArgument, MaxPageSize)
	}
	return nil
}

// Offset returns the number of rows to skip
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one page of a listing.
// T represents the type of data contained in Content.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}

// NewPage assembles a page from its content and the total element count
func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}
