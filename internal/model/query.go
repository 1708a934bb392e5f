package model

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*pageSize well inside the OFFSET range.
	MaxPage = 100000
)

// Query keys understood by ParseListOptions.
const (
	QueryPage     = "page"
	QueryPageSize = "pageSize"
	QueryLimit    = "limit"
	QueryStatus   = "status"
	QuerySort     = "sort"
)

type SortKey string

const (
	SortCreatedAsc  SortKey = "createdAt"
	SortCreatedDesc SortKey = "-createdAt"
	SortUpdatedAsc  SortKey = "updatedAt"
	SortUpdatedDesc SortKey = "-updatedAt"
)

func (s SortKey) Valid() bool {
	switch s {
	case SortCreatedAsc, SortCreatedDesc, SortUpdatedAsc, SortUpdatedDesc:
		return true
	}
	return false
}

// ListOptions enumerates every filter and paging option a list endpoint
// accepts. The zero value means first page, default size, newest first.
type ListOptions struct {
	Page     int
	PageSize int
	Status   ApplicationStatus
	Sort     SortKey
}

func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = DefaultPage
	}
	if o.Page > MaxPage {
		o.Page = MaxPage
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	if o.Sort == "" {
		o.Sort = SortCreatedDesc
	}
	return o
}

func (o ListOptions) Offset() int {
	o = o.Normalize()
	return (o.Page - 1) * o.PageSize
}

// ParseListOptions reads list options from a query string. page, pageSize
// and limit (an alias of pageSize) are always accepted; extra names the
// additional keys (status, sort) the caller supports. Any other key is an
// error so typos never reach the store silently.
func ParseListOptions(q url.Values, extra ...string) (ListOptions, error) {
	allowed := map[string]bool{QueryPage: true, QueryPageSize: true, QueryLimit: true}
	for _, key := range extra {
		allowed[key] = true
	}

	var unknown []string
	for key := range q {
		if !allowed[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return ListOptions{}, fmt.Errorf("unsupported query parameters: %s", strings.Join(unknown, ", "))
	}

	var opts ListOptions
	var err error

	if opts.Page, err = positiveInt(q, QueryPage); err != nil {
		return ListOptions{}, err
	}
	if opts.Page > MaxPage {
		return ListOptions{}, fmt.Errorf("%s must not exceed %d", QueryPage, MaxPage)
	}
	if opts.PageSize, err = positiveInt(q, QueryPageSize); err != nil {
		return ListOptions{}, err
	}
	if opts.PageSize == 0 {
		if opts.PageSize, err = positiveInt(q, QueryLimit); err != nil {
			return ListOptions{}, err
		}
	}

	if raw := q.Get(QueryStatus); raw != "" {
		if opts.Status, err = ParseApplicationStatus(raw); err != nil {
			return ListOptions{}, err
		}
	}
	if raw := q.Get(QuerySort); raw != "" {
		opts.Sort = SortKey(raw)
		if !opts.Sort.Valid() {
			return ListOptions{}, fmt.Errorf("unsupported sort %q", raw)
		}
	}

	return opts.Normalize(), nil
}

func positiveInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

// PageMeta describes one page of a list response.
type PageMeta struct {
	Current     int  `json:"current"`
	PageSize    int  `json:"pageSize"`
	Pages       int  `json:"pages"`
	Total       int  `json:"total"`
	UnreadCount *int `json:"unreadCount,omitempty"`
}

func NewPageMeta(opts ListOptions, total int) PageMeta {
	opts = opts.Normalize()
	return PageMeta{
		Current:  opts.Page,
		PageSize: opts.PageSize,
		Pages:    (total + opts.PageSize - 1) / opts.PageSize,
		Total:    total,
	}
}
