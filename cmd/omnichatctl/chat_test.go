package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/omnichat/internal/domain"
)

func TestAttachmentKind(t *testing.T) {
	tests := map[string]domain.AttachmentKind{
		"image/png":                domain.AttachmentImage,
		"video/mp4":                domain.AttachmentVideo,
		"audio/ogg":                domain.AttachmentAudio,
		"application/pdf":          domain.AttachmentDocument,
		"application/octet-stream": domain.AttachmentDocument,
	}
	for mimeType, want := range tests {
		if got := attachmentKind(mimeType); got != want {
			t.Errorf("attachmentKind(%q) = %q, want %q", mimeType, got, want)
		}
	}
}

func TestAttachment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(path, []byte("png"), 0600); err != nil {
		t.Fatal(err)
	}

	a, err := attachment(path)
	if err != nil {
		t.Fatal(err)
	}
	if a.Kind != domain.AttachmentImage || a.MimeType != "image/png" {
		t.Errorf("kind = %q mime = %q", a.Kind, a.MimeType)
	}
	if a.FilePath != path || a.FileName != "photo.png" || a.SizeBytes != 3 || a.ID == "" {
		t.Errorf("attachment = %+v", a)
	}

	if _, err := attachment(dir); err == nil {
		t.Error("attaching a directory should fail")
	}
	if _, err := attachment(filepath.Join(dir, "missing")); err == nil {
		t.Error("attaching a missing file should fail")
	}
}
