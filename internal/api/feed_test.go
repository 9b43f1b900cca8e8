package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oseayemenre/novelnest/internal/models"
)

func decodeFeedPage(t *testing.T, rr *httptest.ResponseRecorder) models.FeedPageResponse {
	t.Helper()

	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var page models.FeedPageResponse
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatalf("error decoding page: %v", err)
	}
	return page
}

func TestFeedPagination(t *testing.T) {
	a, client, registry := newTestApi(t)
	seedNovels(t, client, 14)

	rr := httptest.NewRecorder()
	a.HandleLoadFeed(rr, withReader(t, httptest.NewRequest(http.MethodPost, "/feed", nil), registry, "device", ""))
	first := decodeFeedPage(t, rr)

	if len(first.Novels) != 6 || !first.HasMore {
		t.Fatalf("expected 6 novels with more to load, got %d (has_more=%v)", len(first.Novels), first.HasMore)
	}
	if first.Novels[0].Title != "Novel 13" {
		t.Fatalf("expected newest novel first, got %q", first.Novels[0].Title)
	}

	expected := []struct {
		count   int
		hasMore bool
	}{
		{6, true},
		{2, false},
		{0, false},
	}

	for i, e := range expected {
		rr := httptest.NewRecorder()
		a.HandleLoadNextPage(rr, withReader(t, httptest.NewRequest(http.MethodPost, "/feed/next", nil), registry, "device", ""))
		page := decodeFeedPage(t, rr)

		if len(page.Novels) != e.count || page.HasMore != e.hasMore {
			t.Fatalf("page %d: expected %d novels (has_more=%v), got %d (has_more=%v)", i+2, e.count, e.hasMore, len(page.Novels), page.HasMore)
		}
	}

	rr = httptest.NewRecorder()
	a.HandleGetFeedState(rr, withReader(t, httptest.NewRequest(http.MethodGet, "/feed", nil), registry, "device", ""))

	var state models.FeedStateResponse
	if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	if len(state.Novels) != 14 || state.HasMore || state.ConnectionError {
		t.Fatalf("unexpected state: %d novels, has_more=%v, connection_error=%v", len(state.Novels), state.HasMore, state.ConnectionError)
	}
	if state.Novels[13].Title != "Novel 00" {
		t.Fatalf("expected oldest novel last, got %q", state.Novels[13].Title)
	}
}

func TestFeedIsScopedToDevice(t *testing.T) {
	a, client, registry := newTestApi(t)
	seedNovels(t, client, 3)

	rr := httptest.NewRecorder()
	a.HandleLoadFeed(rr, withReader(t, httptest.NewRequest(http.MethodPost, "/feed", nil), registry, "a", ""))
	decodeFeedPage(t, rr)

	rr = httptest.NewRecorder()
	a.HandleGetFeedState(rr, withReader(t, httptest.NewRequest(http.MethodGet, "/feed", nil), registry, "b", ""))

	var state models.FeedStateResponse
	if err := json.NewDecoder(rr.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	if len(state.Novels) != 0 {
		t.Fatalf("expected an untouched feed on another device, got %d novels", len(state.Novels))
	}
}

func TestHandleLoadFeed(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedCode int
		expectedLen  int
	}{
		{
			name:         "should return 400 if page size is too large",
			body:         `{"page_size": 60}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "should return 400 if json could not be decoded",
			body:         `{"page_size": "ten"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "should use the requested page size",
			body:         `{"page_size": 4}`,
			expectedCode: http.StatusOK,
			expectedLen:  4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, client, registry := newTestApi(t)
			seedNovels(t, client, 10)

			req := withReader(t, httptest.NewRequest(http.MethodPost, "/feed", bytes.NewBufferString(tt.body)), registry, "device", "")
			rr := httptest.NewRecorder()

			a.HandleLoadFeed(rr, req)

			if rr.Code != tt.expectedCode {
				t.Fatalf("expected %d, got %d", tt.expectedCode, rr.Code)
			}
			if tt.expectedCode == http.StatusOK {
				if page := decodeFeedPage(t, rr); len(page.Novels) != tt.expectedLen {
					t.Fatalf("expected %d novels, got %d", tt.expectedLen, len(page.Novels))
				}
			}
		})
	}
}

func TestHandleRetryFeed(t *testing.T) {
	a, client, registry := newTestApi(t)
	seedNovels(t, client, 8)

	rr := httptest.NewRecorder()
	a.HandleRetryFeed(rr, withReader(t, httptest.NewRequest(http.MethodPost, "/feed/retry", nil), registry, "device", ""))
	page := decodeFeedPage(t, rr)

	if len(page.Novels) != 6 || !page.HasMore || page.ConnectionError {
		t.Fatalf("unexpected retry page: %d novels, has_more=%v, connection_error=%v", len(page.Novels), page.HasMore, page.ConnectionError)
	}
}
