package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

// pagedHandler serves a fixed set of pages keyed by the "page" query
// parameter, emitting a next cursor for all but the last page.
type pagedHandler struct {
	serverURL func() string
	sizes     []int
	failPage  int // 1-based page to fail permanently; 0 disables
}

func (h *pagedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		fmt.Sscanf(p, "%d", &page)
	}

	if h.failPage != 0 && page == h.failPage {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"transient failure"}}`))
		return
	}

	offset := 0
	for i := 0; i < page-1; i++ {
		offset += h.sizes[i]
	}

	items := make([]string, 0, h.sizes[page-1])
	for i := 0; i < h.sizes[page-1]; i++ {
		items = append(items, fmt.Sprintf(`{"id":"item-%d"}`, offset+i))
	}

	next := ""
	if page < len(h.sizes) {
		next = fmt.Sprintf(`,"paging":{"next":"%s/act_1/campaigns?page=%d&access_token=t"}`,
			h.serverURL(), page+1)
	}

	fmt.Fprintf(w, `{"data":[%s]%s}`, strings.Join(items, ","), next)
}

func TestFetchAllThreePagesInOrder(t *testing.T) {
	handler := &pagedHandler{sizes: []int{500, 500, 120}}
	client, server := newTestClient(t, handler)
	handler.serverURL = func() string { return server.URL }

	items, err := client.FetchAll(context.Background(), "act_1/campaigns", nil)
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}

	if len(items) != 1120 {
		t.Fatalf("got %d items, want 1120", len(items))
	}

	// Page order must be preserved end to end.
	for i, raw := range items {
		var item struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			t.Fatalf("decode item %d: %v", i, err)
		}
		if want := fmt.Sprintf("item-%d", i); item.ID != want {
			t.Fatalf("item %d = %q, want %q", i, item.ID, want)
		}
	}
}

func TestFetchAllSinglePage(t *testing.T) {
	handler := &pagedHandler{sizes: []int{3}}
	client, server := newTestClient(t, handler)
	handler.serverURL = func() string { return server.URL }

	items, err := client.FetchAll(context.Background(), "act_1/campaigns", nil)
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("got %d items, want 3", len(items))
	}
}

func TestFetchAllPageFailurePropagates(t *testing.T) {
	handler := &pagedHandler{sizes: []int{10, 10, 10}, failPage: 2}
	client, server := newTestClient(t, handler)
	handler.serverURL = func() string { return server.URL }

	items, err := client.FetchAll(context.Background(), "act_1/campaigns", nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("err = %v, want ErrRetryExhausted", err)
	}
	if items != nil {
		t.Errorf("expected no partial results, got %d items", len(items))
	}
}

func TestFetchAllSendsPageSizeHint(t *testing.T) {
	var gotLimit string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(`{"data":[]}`))
	}))

	if _, err := client.FetchAll(context.Background(), "act_1/ads", nil); err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if gotLimit != "25" {
		t.Errorf("limit = %q, want 25 (configured page size)", gotLimit)
	}
}

func TestUnmarshalItems(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"id":"a","name":"first"}`),
		json.RawMessage(`{"id":"b","name":"second"}`),
	}

	type entity struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	entities, err := UnmarshalItems[entity](raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entities) != 2 || entities[0].ID != "a" || entities[1].Name != "second" {
		t.Errorf("unexpected result: %+v", entities)
	}

	if _, err := UnmarshalItems[entity]([]json.RawMessage{json.RawMessage(`not json`)}); err == nil {
		t.Error("expected error for malformed item")
	}
}
