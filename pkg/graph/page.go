package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Paging is the cursor block of a Graph list response. Next, when present, is
// an absolute URL for the following page; its absence ends the walk.
type Paging struct {
	Next string `json:"next"`
}

// Envelope is the standard Graph list response shape.
type Envelope struct {
	Data   []json.RawMessage `json:"data"`
	Paging Paging            `json:"paging"`
}

// FetchAll retrieves every item of a paginated resource list, following
// next-page cursors until exhausted. Items keep remote page order; pages
// after the first go through the same governor and retry policy as the
// first. A page failure after retries aborts the whole listing — partial
// results are discarded, never silently truncated.
func (c *Client) FetchAll(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	if params.Get("limit") == "" {
		params.Set("limit", strconv.Itoa(c.pageSize))
	}

	body, err := c.Get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	pages := 0
	for {
		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode page envelope for %s: %w", path, err)
		}
		items = append(items, env.Data...)
		pages++

		if env.Paging.Next == "" {
			break
		}
		body, err = c.getURL(ctx, env.Paging.Next)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d of %s: %w", pages+1, path, err)
		}
	}

	c.logger.Debug().
		Str("endpoint", path).
		Int("pages", pages).
		Int("items", len(items)).
		Msg("Paginated fetch complete")

	return items, nil
}

// UnmarshalItems decodes a slice of raw list items into typed values,
// preserving order.
func UnmarshalItems[T any](items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
