package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// PageKeys lists the JSON keys a paginated list body may use. The first key
// present wins; naming varies per entity but the semantics do not.
type PageKeys struct {
	Items       []string
	CurrentPage []string
	TotalPages  []string
	TotalItems  []string
}

// DefaultPageKeys covers the envelope spellings used across the backend
var DefaultPageKeys = PageKeys{
	Items:       []string{"items", "content", "data", "results"},
	CurrentPage: []string{"currentPage", "page", "number"},
	TotalPages:  []string{"totalPages"},
	TotalItems:  []string{"totalItems", "totalElements", "total", "count"},
}

// WithItemsKey returns keys that try an entity-specific item key first
func (k PageKeys) WithItemsKey(key string) PageKeys {
	k.Items = append([]string{key}, k.Items...)
	return k
}

// Page is one decoded page of a server collection
type Page[T any] struct {
	Items       []T
	CurrentPage int
	TotalPages  int
	TotalItems  int
	// HasTotalPages is false when the server omitted the page count
	HasTotalPages bool
}

// PageQuery builds the zero-based page/size query of paginated GETs
func PageQuery(page, size int, extra url.Values) url.Values {
	query := url.Values{}
	for key, values := range extra {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))
	return query
}

// DecodePage decodes a paginated list body. A bare JSON array is accepted as
// a single complete page.
func DecodePage[T any](data []byte, keys PageKeys) (Page[T], error) {
	var page Page[T]

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return page, nil
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &page.Items); err != nil {
			return page, fmt.Errorf("failed to decode item array: %w", err)
		}
		page.TotalItems = len(page.Items)
		page.TotalPages = 1
		page.HasTotalPages = true
		return page, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return page, fmt.Errorf("failed to decode page envelope: %w", err)
	}

	itemsRaw, found := firstKey(fields, keys.Items)
	if !found {
		return page, fmt.Errorf("page envelope has none of the item keys %v", keys.Items)
	}
	if err := json.Unmarshal(itemsRaw, &page.Items); err != nil {
		return page, fmt.Errorf("failed to decode page items: %w", err)
	}

	if raw, ok := firstKey(fields, keys.CurrentPage); ok {
		if err := json.Unmarshal(raw, &page.CurrentPage); err != nil {
			return page, fmt.Errorf("failed to decode current page: %w", err)
		}
	}
	if raw, ok := firstKey(fields, keys.TotalPages); ok {
		if err := json.Unmarshal(raw, &page.TotalPages); err != nil {
			return page, fmt.Errorf("failed to decode total pages: %w", err)
		}
		page.HasTotalPages = true
	}
	if raw, ok := firstKey(fields, keys.TotalItems); ok {
		if err := json.Unmarshal(raw, &page.TotalItems); err != nil {
			return page, fmt.Errorf("failed to decode total items: %w", err)
		}
	} else {
		page.TotalItems = len(page.Items)
	}

	return page, nil
}

func firstKey(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, key := range keys {
		if raw, ok := fields[key]; ok && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}

// ListPage fetches one page from path and decodes it with keys
func ListPage[T any](ctx context.Context, c *Client, path string, query url.Values, keys PageKeys) (Page[T], error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, query, &raw); err != nil {
		return Page[T]{}, err
	}
	page, err := DecodePage[T](raw, keys)
	if err != nil {
		return Page[T]{}, &Error{Kind: KindDecode, Method: "GET", Path: path, Message: "failed to decode response", Err: err}
	}
	return page, nil
}
