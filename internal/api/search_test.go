package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oseayemenre/novelnest/internal/models"
)

func TestHandleSearch(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		expectedCode int
	}{
		{
			name:         "should return 400 if term is blank",
			query:        "?q=%20%20",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "should return 400 if term is missing",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "should return results",
			query:        "?q=dragon",
			expectedCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, registry := newTestApi(t)

			rr := httptest.NewRecorder()
			a.HandleSearch(rr, withReader(t, httptest.NewRequest(http.MethodGet, "/search"+tt.query, nil), registry, "device", ""))

			if rr.Code != tt.expectedCode {
				t.Fatalf("expected %d, got %d", tt.expectedCode, rr.Code)
			}
		})
	}
}

func TestSearchHistoryIsRecorded(t *testing.T) {
	a, _, registry := newTestApi(t)

	for _, term := range []string{"one", "two", "three", "four", "five", "six", "two"} {
		rr := httptest.NewRecorder()
		a.HandleSearch(rr, withReader(t, httptest.NewRequest(http.MethodGet, "/search?q="+term, nil), registry, "device", ""))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected %d, got %d", http.StatusOK, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	a.HandleGetSearchHistory(rr, withReader(t, httptest.NewRequest(http.MethodGet, "/search/history", nil), registry, "device", ""))

	var res models.HandleSearchHistoryResponse
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}

	expected := []string{"two", "six", "five", "four", "three"}
	if strings.Join(res.Terms, ",") != strings.Join(expected, ",") {
		t.Fatalf("expected %v, got %v", expected, res.Terms)
	}
}
