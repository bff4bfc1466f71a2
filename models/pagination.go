package models

import (
	"strconv"

	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageRequest is the page/limit pair accepted by listing endpoints.
type PageRequest struct {
	Page  int `form:"page" json:"page"`
	Limit int `form:"limit" json:"limit"`
}

// NewPageRequest parses query-string values, falling back to page 1 / DefaultPageLimit.
func NewPageRequest(page, limit string) PageRequest {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	return PageRequest{Page: p, Limit: l}.Normalize()
}

func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p PageRequest) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Paginate is a gorm scope applying LIMIT/OFFSET.
func Paginate(p PageRequest) func(db *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.Limit)
	}
}

func TotalPages(count int64, limit int) int {
	if limit < 1 {
		limit = DefaultPageLimit
	}
	return int((count + int64(limit) - 1) / int64(limit))
}

// Page is a generic listing response.
type Page[T any] struct {
	Items       []T   `json:"items"`
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
}

// FetchPage counts and loads one page of T from the prepared query.
// findScopes (preloads) apply to the page load only, not the count.
func FetchPage[T any](query *gorm.DB, p PageRequest, order string, findScopes ...func(*gorm.DB) *gorm.DB) (*Page[T], error) {
	p = p.Normalize()
	var count int64
	if err := query.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, err
	}
	items := make([]T, 0)
	if err := query.Session(&gorm.Session{}).Scopes(findScopes...).Order(order).Scopes(Paginate(p)).Find(&items).Error; err != nil {
		return nil, err
	}
	return &Page[T]{
		Items:       items,
		CurrentPage: p.Page,
		TotalPages:  TotalPages(count, p.Limit),
		TotalCount:  count,
	}, nil
}
