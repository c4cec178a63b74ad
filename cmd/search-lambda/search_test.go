package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nlawson/birdtag/internal/store"
	"github.com/nlawson/birdtag/internal/tags"
)

type fakeMediaStore struct {
	store.MediaStore

	records []*store.MediaRecord
}

func (f *fakeMediaStore) ScanMedia(_ context.Context) ([]*store.MediaRecord, error) {
	return f.records, nil
}

func (f *fakeMediaStore) GetMedia(_ context.Context, fileKey string) (*store.MediaRecord, error) {
	for _, rec := range f.records {
		if rec.FileKey == fileKey {
			return rec, nil
		}
	}
	return nil, nil
}

func testServer(records ...*store.MediaRecord) *server {
	return &server{
		store: &fakeMediaStore{records: records},
		presign: func(_ context.Context, key string) (string, error) {
			return "https://signed.example/" + key, nil
		},
	}
}

func testRecords() []*store.MediaRecord {
	return []*store.MediaRecord{
		{
			FileKey:      "species/crow/a.jpg",
			FileType:     "image",
			ThumbnailKey: "thumbnails/a.jpg",
			Tags:         []string{"crow,3"},
			Status:       store.StatusCompleted,
		},
		{
			FileKey:  "species/crow/b.wav",
			FileType: "audio",
			Tags:     []string{"crow,1", "pigeon,2"},
			Status:   store.StatusCompleted,
		},
		{
			FileKey:  "uploads/pending.jpg",
			FileType: "image",
			Tags:     []string{"crow,5"},
			Status:   store.StatusProcessing,
		},
	}
}

func decodeResults(t *testing.T, w *httptest.ResponseRecorder) searchResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp searchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestSearchByCriteria(t *testing.T) {
	srv := testServer(testRecords()...)

	tests := []struct {
		name     string
		body     string
		wantKeys []string
	}{
		{"single crow", `{"crow": 1}`, []string{"species/crow/a.jpg", "species/crow/b.wav"}},
		{"three crows", `{"crow": 3}`, []string{"species/crow/a.jpg"}},
		{"crow and pigeon", `{"crow": 1, "pigeon": 1}`, []string{"species/crow/b.wav"}},
		{"no match", `{"owl": 1}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.handleSearch(w, r)

			resp := decodeResults(t, w)
			if len(resp.Results) != len(tt.wantKeys) {
				t.Fatalf("got %d results, want %d: %+v", len(resp.Results), len(tt.wantKeys), resp.Results)
			}
			got := map[string]bool{}
			for _, res := range resp.Results {
				got[res.FileKey] = true
			}
			for _, key := range tt.wantKeys {
				if !got[key] {
					t.Errorf("missing result %s", key)
				}
			}
		})
	}
}

func TestSearchFreeTextCountsRepetition(t *testing.T) {
	srv := testServer(testRecords()...)

	r := httptest.NewRequest(http.MethodGet, "/v1/search?q=crow+crow", nil)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)

	resp := decodeResults(t, w)
	if len(resp.Results) != 1 || resp.Results[0].FileKey != "species/crow/a.jpg" {
		t.Errorf("crow crow should match only the 3-crow image, got %+v", resp.Results)
	}
}

func TestSearchEmptyCriteriaRejected(t *testing.T) {
	srv := testServer(testRecords()...)

	r := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSearchResultsUseThumbnailForImages(t *testing.T) {
	srv := testServer(testRecords()...)

	r := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"crow": 3}`))
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)

	resp := decodeResults(t, w)
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results", len(resp.Results))
	}
	if resp.Results[0].URL != "https://signed.example/thumbnails/a.jpg" {
		t.Errorf("image result URL = %q, want thumbnail link", resp.Results[0].URL)
	}
}

func TestSearchBySpecies(t *testing.T) {
	srv := testServer(testRecords()...)

	r := httptest.NewRequest(http.MethodPost, "/v1/search-by-species", strings.NewReader(`{"species": ["pigeon"]}`))
	w := httptest.NewRecorder()
	srv.handleSearchBySpecies(w, r)

	resp := decodeResults(t, w)
	if len(resp.Results) != 1 || resp.Results[0].FileKey != "species/crow/b.wav" {
		t.Errorf("pigeon search got %+v", resp.Results)
	}
}

func TestSearchByFileUsesStoredSpecies(t *testing.T) {
	srv := testServer(testRecords()...)

	r := httptest.NewRequest(http.MethodPost, "/v1/search-by-file", strings.NewReader(`{"fileKey": "species/crow/a.jpg"}`))
	w := httptest.NewRecorder()
	srv.handleSearchByFile(w, r)

	resp := decodeResults(t, w)
	// The reference file itself is excluded.
	if len(resp.Results) != 1 || resp.Results[0].FileKey != "species/crow/b.wav" {
		t.Errorf("search-by-file got %+v", resp.Results)
	}
}

func TestResolveThumbnail(t *testing.T) {
	srv := testServer(testRecords()...)

	body := `{"thumbnailUrl": "https://bucket.s3.ap-southeast-2.amazonaws.com/thumbnails/a.jpg?X-Amz-Signature=abc"}`
	r := httptest.NewRequest(http.MethodPost, "/v1/resolve", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleResolve(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["fileKey"] != "species/crow/a.jpg" {
		t.Errorf("fileKey = %q", resp["fileKey"])
	}
}

func TestResolveUnknownThumbnail(t *testing.T) {
	srv := testServer(testRecords()...)

	body := `{"thumbnailUrl": "https://bucket.s3.amazonaws.com/thumbnails/nope.jpg"}`
	r := httptest.NewRequest(http.MethodPost, "/v1/resolve", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleResolve(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSpeciesStats(t *testing.T) {
	srv := testServer(testRecords()...)

	r := httptest.NewRequest(http.MethodGet, "/v1/stats/species/crow", nil)
	w := httptest.NewRecorder()
	srv.handleSpeciesStats(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats speciesStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	// The processing record does not count.
	if stats.FileCount != 2 || stats.TotalCount != 4 {
		t.Errorf("stats = %+v, want 2 files / 4 crows", stats)
	}
}

func TestSystemStats(t *testing.T) {
	srv := testServer(testRecords()...)

	r := httptest.NewRequest(http.MethodGet, "/v1/stats/system", nil)
	w := httptest.NewRecorder()
	srv.handleSystemStats(w, r)

	var stats systemStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalFiles != 3 {
		t.Errorf("totalFiles = %d", stats.TotalFiles)
	}
	if stats.ByType["image"] != 2 || stats.ByType["audio"] != 1 {
		t.Errorf("byType = %v", stats.ByType)
	}
}

func TestCriteriaFromQuery(t *testing.T) {
	got := criteriaFromQuery("Crow crow, pigeon")
	want := tags.Criteria{"crow": 2, "pigeon": 1}
	if len(got) != len(want) {
		t.Fatalf("criteria = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("criteria[%s] = %d, want %d", k, got[k], v)
		}
	}
}
