package main

import (
	"testing"

	"github.com/nlawson/birdtag/internal/mediafile"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "bird.jpg", false},
		{"spaces and parens", "crow (2).jpg", false},
		{"traversal", "../etc/passwd", true},
		{"slash", "a/b.jpg", true},
		{"backslash", `a\b.jpg`, true},
		{"leading dot", ".hidden", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFilename(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUploadKey(t *testing.T) {
	valid := "uploads/a1b2c3d4-e5f6-7890-abcd-ef1234567890.jpg"

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", valid, false},
		{"valid wav", "uploads/a1b2c3d4-e5f6-7890-abcd-ef1234567890.wav", false},
		{"wrong prefix", "thumbnails/a1b2c3d4-e5f6-7890-abcd-ef1234567890.jpg", true},
		{"no uuid", "uploads/bird.jpg", true},
		{"traversal", "uploads/../secret", true},
		{"nested path", "uploads/x/a1b2c3d4-e5f6-7890-abcd-ef1234567890.jpg", true},
		{"unsupported extension", "uploads/a1b2c3d4-e5f6-7890-abcd-ef1234567890.exe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateUploadKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateUploadKey(%q) err = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestSizeLimit(t *testing.T) {
	if got := sizeLimit(mediafile.KindImage); got != maxMediaSize {
		t.Errorf("image limit = %d", got)
	}
	if got := sizeLimit(mediafile.KindAudio); got != maxMediaSize {
		t.Errorf("audio limit = %d", got)
	}
	if got := sizeLimit(mediafile.KindVideo); got != maxVideoSize {
		t.Errorf("video limit = %d", got)
	}
}
