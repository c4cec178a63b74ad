package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/nlawson/birdtag/internal/store"
)

type fakeSubStore struct {
	store.MediaStore

	subs    map[string][]*store.Subscription
	history map[string][]*store.NotificationRecord
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{
		subs:    map[string][]*store.Subscription{},
		history: map[string][]*store.NotificationRecord{},
	}
}

func (f *fakeSubStore) GetSubscriptions(_ context.Context, email string) ([]*store.Subscription, error) {
	return f.subs[email], nil
}

func (f *fakeSubStore) PutSubscription(_ context.Context, sub *store.Subscription) error {
	sub.Species = strings.ToLower(sub.Species)
	for _, existing := range f.subs[sub.Email] {
		if existing.Species == sub.Species {
			*existing = *sub
			return nil
		}
	}
	f.subs[sub.Email] = append(f.subs[sub.Email], sub)
	return nil
}

func (f *fakeSubStore) DeleteSubscription(_ context.Context, email, species string) error {
	kept := f.subs[email][:0]
	for _, sub := range f.subs[email] {
		if sub.Species != species {
			kept = append(kept, sub)
		}
	}
	f.subs[email] = kept
	return nil
}

func (f *fakeSubStore) GetNotifications(_ context.Context, email string) ([]*store.NotificationRecord, error) {
	return f.history[email], nil
}

func (f *fakeSubStore) ScanNotifications(_ context.Context) ([]*store.NotificationRecord, error) {
	var all []*store.NotificationRecord
	for _, recs := range f.history {
		all = append(all, recs...)
	}
	return all, nil
}

type fakeSubs struct {
	subscribed   map[string][]string
	unsubscribed []string
}

func (f *fakeSubs) Subscribe(_ context.Context, email string, species []string) (string, error) {
	if f.subscribed == nil {
		f.subscribed = map[string][]string{}
	}
	sorted := append([]string(nil), species...)
	sort.Strings(sorted)
	f.subscribed[email] = sorted
	return "arn:aws:sns:ap-southeast-2:123:topic:" + email, nil
}

func (f *fakeSubs) Unsubscribe(_ context.Context, arn string) error {
	f.unsubscribed = append(f.unsubscribed, arn)
	return nil
}

func postJSON(t *testing.T, handler func(http.ResponseWriter, *http.Request), body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/v1/notify/x", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func TestSubscribeCreatesFilteredSubscription(t *testing.T) {
	fs := newFakeSubStore()
	subs := &fakeSubs{}
	srv := &server{store: fs, subs: subs}

	w := postJSON(t, srv.handleSubscribe, `{"email": "a@example.com", "species": ["Crow", "pigeon"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	got := subs.subscribed["a@example.com"]
	if len(got) != 2 || got[0] != "crow" || got[1] != "pigeon" {
		t.Errorf("SNS filter species = %v, want [crow pigeon]", got)
	}
	if len(fs.subs["a@example.com"]) != 2 {
		t.Errorf("stored subscriptions = %d, want 2", len(fs.subs["a@example.com"]))
	}
}

func TestSubscribeMergesExistingSpecies(t *testing.T) {
	fs := newFakeSubStore()
	fs.subs["a@example.com"] = []*store.Subscription{{Email: "a@example.com", Species: "owl"}}
	subs := &fakeSubs{}
	srv := &server{store: fs, subs: subs}

	w := postJSON(t, srv.handleSubscribe, `{"email": "a@example.com", "species": ["crow"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}

	got := subs.subscribed["a@example.com"]
	if len(got) != 2 || got[0] != "crow" || got[1] != "owl" {
		t.Errorf("filter policy should cover the union, got %v", got)
	}
}

func TestSubscribeValidation(t *testing.T) {
	srv := &server{store: newFakeSubStore(), subs: &fakeSubs{}}

	tests := []struct {
		name string
		body string
	}{
		{"no email", `{"species": ["crow"]}`},
		{"bad email", `{"email": "not-an-email", "species": ["crow"]}`},
		{"no species", `{"email": "a@example.com"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, srv.handleSubscribe, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestUnsubscribeAllRemovesSNSSubscription(t *testing.T) {
	fs := newFakeSubStore()
	fs.subs["a@example.com"] = []*store.Subscription{
		{Email: "a@example.com", Species: "crow", SubscriptionARN: "arn-1"},
		{Email: "a@example.com", Species: "owl", SubscriptionARN: "arn-1"},
	}
	subs := &fakeSubs{}
	srv := &server{store: fs, subs: subs}

	w := postJSON(t, srv.handleUnsubscribe, `{"email": "a@example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(fs.subs["a@example.com"]) != 0 {
		t.Errorf("subscriptions remain: %v", fs.subs["a@example.com"])
	}
	if len(subs.unsubscribed) != 1 || subs.unsubscribed[0] != "arn-1" {
		t.Errorf("unsubscribed = %v, want [arn-1]", subs.unsubscribed)
	}
}

func TestUnsubscribeOneSpeciesNarrowsFilter(t *testing.T) {
	fs := newFakeSubStore()
	fs.subs["a@example.com"] = []*store.Subscription{
		{Email: "a@example.com", Species: "crow", SubscriptionARN: "arn-1"},
		{Email: "a@example.com", Species: "owl", SubscriptionARN: "arn-1"},
	}
	subs := &fakeSubs{}
	srv := &server{store: fs, subs: subs}

	w := postJSON(t, srv.handleUnsubscribe, `{"email": "a@example.com", "species": ["crow"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(subs.unsubscribed) != 0 {
		t.Errorf("SNS subscription removed while species remain")
	}
	if got := subs.subscribed["a@example.com"]; len(got) != 1 || got[0] != "owl" {
		t.Errorf("narrowed filter = %v, want [owl]", got)
	}
}

func TestUnsubscribeUnknownEmail(t *testing.T) {
	srv := &server{store: newFakeSubStore(), subs: &fakeSubs{}}

	w := postJSON(t, srv.handleUnsubscribe, `{"email": "nobody@example.com"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHistoryAndStats(t *testing.T) {
	fs := newFakeSubStore()
	fs.history["a@example.com"] = []*store.NotificationRecord{
		{Email: "a@example.com", Species: "crow", FileKey: "species/crow/a.jpg"},
		{Email: "a@example.com", Species: "crow", FileKey: "species/crow/b.jpg"},
	}
	fs.history["b@example.com"] = []*store.NotificationRecord{
		{Email: "b@example.com", Species: "owl", FileKey: "species/owl/c.wav"},
	}
	srv := &server{store: fs, subs: &fakeSubs{}}

	r := httptest.NewRequest(http.MethodGet, "/v1/notify/history?email=a@example.com", nil)
	w := httptest.NewRecorder()
	srv.handleHistory(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/v1/notify/stats", nil)
	w = httptest.NewRecorder()
	srv.handleStats(w, r)

	var stats notifyStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.BySpecies["crow"] != 2 || stats.ByEmail["b@example.com"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
