package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListParams filters a list call. Zero values are omitted from the query.
type ListParams struct {
	Page   int
	Limit  int
	Search string
}

func (p ListParams) query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	return q
}

// Meta is the pagination block of a list response.
type Meta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Page is one page of a list response.
type Page[T any] struct {
	Items []T  `json:"items"`
	Meta  Meta `json:"meta"`
}

// Lister lists items without knowing their type.
type Lister interface {
	ListRaw(ctx context.Context, p ListParams) ([]json.RawMessage, Meta, error)
}

// Resource is a CRUD endpoint rooted at a path.
type Resource[T any] struct {
	c    *Client
	path string
}

// NewResource binds T to path on c.
func NewResource[T any](c *Client, path string) *Resource[T] {
	return &Resource[T]{c: c, path: path}
}

// Path returns the resource path.
func (r *Resource[T]) Path() string { return r.path }

// List fetches one page.
func (r *Resource[T]) List(ctx context.Context, p ListParams) (*Page[T], error) {
	data, err := r.c.do(ctx, http.MethodGet, r.path, p.query(), nil)
	if err != nil {
		return nil, err
	}
	var page Page[T]
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("api: decode %s list: %w", r.path, err)
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return &page, nil
}

// ListRaw implements Lister.
func (r *Resource[T]) ListRaw(ctx context.Context, p ListParams) ([]json.RawMessage, Meta, error) {
	data, err := r.c.do(ctx, http.MethodGet, r.path, p.query(), nil)
	if err != nil {
		return nil, Meta{}, err
	}
	var page Page[json.RawMessage]
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, Meta{}, fmt.Errorf("api: decode %s list: %w", r.path, err)
	}
	return page.Items, page.Meta, nil
}

// Get fetches one item.
func (r *Resource[T]) Get(ctx context.Context, id string) (*T, error) {
	data, err := r.c.do(ctx, http.MethodGet, r.itemPath(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return r.decodeItem(data)
}

// Create posts v and returns the stored item when the API echoes it.
func (r *Resource[T]) Create(ctx context.Context, v T) (*T, error) {
	data, err := r.c.do(ctx, http.MethodPost, r.path, nil, v)
	if err != nil {
		return nil, err
	}
	return r.decodeItem(data)
}

// Update replaces the item id with v.
func (r *Resource[T]) Update(ctx context.Context, id string, v T) (*T, error) {
	data, err := r.c.do(ctx, http.MethodPut, r.itemPath(id), nil, v)
	if err != nil {
		return nil, err
	}
	return r.decodeItem(data)
}

// Delete removes the item id.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	_, err := r.c.do(ctx, http.MethodDelete, r.itemPath(id), nil, nil)
	return err
}

func (r *Resource[T]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// decodeItem accepts both {"item": {...}} and a bare object. An empty body yields nil.
func (r *Resource[T]) decodeItem(data []byte) (*T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var wrapped struct {
		Item *T `json:"item"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Item != nil {
		return wrapped.Item, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("api: decode %s item: %w", r.path, err)
	}
	return &v, nil
}
