package s3util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestSpeciesKey(t *testing.T) {
	tests := []struct {
		name        string
		species     string
		originalKey string
		want        string
	}{
		{"upload prefix stripped", "crow", "uploads/a1b2.jpg", "species/crow/a1b2.jpg"},
		{"bare key", "pigeon", "photo.png", "species/pigeon/photo.png"},
		{"already in species folder", "crow", "species/crow/a1b2.jpg", "species/crow/a1b2.jpg"},
		{"species with space", "pied currawong", "uploads/x.wav", "species/pied currawong/x.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpeciesKey(tt.species, tt.originalKey); got != tt.want {
				t.Errorf("SpeciesKey(%q, %q) = %q, want %q", tt.species, tt.originalKey, got, tt.want)
			}
		})
	}
}

// fakeS3 stands in for S3 over HTTP. copyStatus drives the CopyObject
// response; requests records "METHOD path" in order.
type fakeS3 struct {
	copyStatus int
	copyBody   string
	requests   []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch {
	case r.Method == http.MethodPut && r.Header.Get("x-amz-copy-source") != "":
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(f.copyStatus)
		w.Write([]byte(f.copyBody))
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestS3Client(t *testing.T, fake *fakeS3) *s3.Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return s3.New(s3.Options{
		BaseEndpoint: aws.String(srv.URL),
		Region:       "ap-southeast-2",
		Credentials:  aws.AnonymousCredentials{},
		UsePathStyle: true,
	})
}

const noSuchKeyBody = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>uploads/a.jpg</Key></Error>`

func TestMoveToSpeciesFolder(t *testing.T) {
	fake := &fakeS3{
		copyStatus: http.StatusOK,
		copyBody:   `<CopyObjectResult><ETag>"d41d8cd98f"</ETag></CopyObjectResult>`,
	}
	client := newTestS3Client(t, fake)

	got, err := MoveToSpeciesFolder(context.Background(), client, "media", "uploads/a.jpg", "crow")
	if err != nil {
		t.Fatalf("MoveToSpeciesFolder() error = %v", err)
	}
	if want := "species/crow/a.jpg"; got != want {
		t.Errorf("MoveToSpeciesFolder() = %q, want %q", got, want)
	}

	if len(fake.requests) != 2 {
		t.Fatalf("got %d S3 requests, want copy then delete: %v", len(fake.requests), fake.requests)
	}
	if want := "DELETE /media/uploads/a.jpg"; fake.requests[1] != want {
		t.Errorf("second request = %q, want %q", fake.requests[1], want)
	}
}

func TestMoveToSpeciesFolderSourceGone(t *testing.T) {
	// A repeated detection of an already-relocated file: the copy 404s
	// because the source was moved by the first invocation. The move
	// must be a no-op returning the destination key.
	fake := &fakeS3{copyStatus: http.StatusNotFound, copyBody: noSuchKeyBody}
	client := newTestS3Client(t, fake)

	got, err := MoveToSpeciesFolder(context.Background(), client, "media", "uploads/a.jpg", "crow")
	if err != nil {
		t.Fatalf("MoveToSpeciesFolder() after prior move error = %v, want nil", err)
	}
	if want := "species/crow/a.jpg"; got != want {
		t.Errorf("MoveToSpeciesFolder() = %q, want %q", got, want)
	}

	for _, req := range fake.requests {
		if req == "DELETE /media/uploads/a.jpg" {
			t.Error("DeleteObject issued after failed copy")
		}
	}
}

func TestMoveToSpeciesFolderOtherErrorPropagates(t *testing.T) {
	fake := &fakeS3{
		copyStatus: http.StatusForbidden,
		copyBody:   `<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`,
	}
	client := newTestS3Client(t, fake)

	if _, err := MoveToSpeciesFolder(context.Background(), client, "media", "uploads/a.jpg", "crow"); err == nil {
		t.Fatal("MoveToSpeciesFolder() error = nil, want AccessDenied to propagate")
	}
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			"virtual hosted",
			"https://media.s3.ap-southeast-2.amazonaws.com/thumbnails/a.jpg",
			"thumbnails/a.jpg",
		},
		{
			"presigned query stripped",
			"https://media.s3.amazonaws.com/uploads/x.wav?X-Amz-Signature=abc&X-Amz-Expires=900",
			"uploads/x.wav",
		},
		{
			"path style",
			"https://s3.ap-southeast-2.amazonaws.com/media/uploads/x.wav",
			"uploads/x.wav",
		},
		{
			"bare key passthrough",
			"uploads/x.wav",
			"uploads/x.wav",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeyFromURL(tt.url); got != tt.want {
				t.Errorf("KeyFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
