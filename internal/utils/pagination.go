package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskboard/internal/constants"
)

// PaginationParams holds the pagination parameters
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// PaginationResponse represents the pagination metadata in API responses
type PaginationResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// GetPaginationParams extracts the page from the request. Page size is
// fixed.
func GetPaginationParams(c *gin.Context) PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(constants.MinPageSize)))
	return NewPaginationParams(page, constants.DefaultPageSize)
}

// NewPaginationParams clamps page and limit into range.
func NewPaginationParams(page, limit int) PaginationParams {
	if page < constants.MinPageSize {
		page = constants.MinPageSize
	}
	if limit < constants.MinPageSize || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Response builds the pagination metadata for total records.
func (p PaginationParams) Response(total int64) PaginationResponse {
	pages := int(total) / p.Limit
	if int(total)%p.Limit > 0 {
		pages++
	}
	return PaginationResponse{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
	}
}
