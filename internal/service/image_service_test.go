package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tagfeed/internal/db"
)

func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / width), G: uint8(y * 255 / height), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestImageServiceIngestStoresFileAndMetadata(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := seedUser(t, gdb, "author")
	post := seedPost(t, gdb, user.ID, "gallery", fixedNow.Add(-time.Hour))

	dir := t.TempDir()
	svc := NewImageService(gdb, dir, "/static/uploads/")
	svc.now = func() time.Time { return fixedNow }

	first, err := svc.Ingest(context.Background(), ImageUpload{
		PostID:   post.ID,
		UserID:   user.ID,
		Filename: "cover.PNG",
		Meta:     map[string]interface{}{"prompt": "晨雾"},
		Body:     bytes.NewReader(encodeTestPNG(t, 64, 32)),
	})
	if err != nil {
		t.Fatalf("ingest image: %v", err)
	}

	if first.Width != 64 || first.Height != 32 {
		t.Fatalf("unexpected dimensions %dx%d", first.Width, first.Height)
	}
	if len(first.Hash) != 16 {
		t.Fatalf("expected 16 hex char hash, got %q", first.Hash)
	}
	if first.DisplayIndex != 0 {
		t.Fatalf("expected first image at index 0, got %d", first.DisplayIndex)
	}
	if !strings.HasPrefix(first.URL, "/static/uploads/20250601-") || !strings.HasSuffix(first.URL, ".png") {
		t.Fatalf("unexpected url %q", first.URL)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.Base(first.URL))); err != nil {
		t.Fatalf("expected stored file: %v", err)
	}

	var meta map[string]interface{}
	if err := json.Unmarshal(first.Meta, &meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if meta["format"] != "png" || meta["prompt"] != "晨雾" {
		t.Fatalf("unexpected meta: %v", meta)
	}

	second, err := svc.Ingest(context.Background(), ImageUpload{
		PostID: post.ID,
		UserID: user.ID,
		Body:   bytes.NewReader(encodeTestPNG(t, 16, 16)),
	})
	if err != nil {
		t.Fatalf("ingest second image: %v", err)
	}
	if second.DisplayIndex != 1 {
		t.Fatalf("expected second image at index 1, got %d", second.DisplayIndex)
	}

	images, err := svc.ListForPost(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("list images: %v", err)
	}
	if len(images) != 2 || images[0].ID != first.ID || images[1].ID != second.ID {
		t.Fatalf("unexpected image order: %+v", images)
	}
}

func TestImageServiceIngestRejectsInvalidUploads(t *testing.T) {
	gdb := setupServiceTestDB(t)
	owner := seedUser(t, gdb, "owner")
	other := seedUser(t, gdb, "other")
	post := seedPost(t, gdb, owner.ID, "gallery", fixedNow.Add(-time.Hour))

	dir := t.TempDir()
	svc := NewImageService(gdb, dir, "/static/uploads")

	if _, err := svc.Ingest(context.Background(), ImageUpload{
		PostID: post.ID,
		UserID: other.ID,
		Body:   bytes.NewReader(encodeTestPNG(t, 8, 8)),
	}); !errors.Is(err, ErrPostForbidden) {
		t.Fatalf("expected ErrPostForbidden, got %v", err)
	}

	if _, err := svc.Ingest(context.Background(), ImageUpload{
		PostID: post.ID,
		UserID: owner.ID,
		Body:   strings.NewReader("not an image"),
	}); !errors.Is(err, ErrImageInvalid) {
		t.Fatalf("expected ErrImageInvalid, got %v", err)
	}

	if _, err := svc.Ingest(context.Background(), ImageUpload{
		PostID: 999,
		UserID: owner.ID,
		Body:   bytes.NewReader(encodeTestPNG(t, 8, 8)),
	}); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no stored files, found %d", len(entries))
	}
}

func TestImageServiceSetModeration(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := seedUser(t, gdb, "author")
	post := seedPost(t, gdb, user.ID, "gallery", fixedNow.Add(-time.Hour))
	item := seedImage(t, gdb, post, 0)

	svc := NewImageService(gdb, t.TempDir(), "/static/uploads")

	if _, err := svc.SetModeration(context.Background(), item.ID, "maybe"); !errors.Is(err, ErrModerationStatusInvalid) {
		t.Fatalf("expected ErrModerationStatusInvalid, got %v", err)
	}
	if _, err := svc.SetModeration(context.Background(), 999, db.ModerationBlocked); !errors.Is(err, ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}

	updated, err := svc.SetModeration(context.Background(), item.ID, " Blocked ")
	if err != nil {
		t.Fatalf("set moderation: %v", err)
	}
	if updated.ModerationStatus != db.ModerationBlocked {
		t.Fatalf("expected blocked, got %q", updated.ModerationStatus)
	}

	var stored db.Image
	if err := gdb.First(&stored, item.ID).Error; err != nil {
		t.Fatalf("reload image: %v", err)
	}
	if stored.ModerationStatus != db.ModerationBlocked {
		t.Fatalf("expected persisted blocked status, got %q", stored.ModerationStatus)
	}
}

func TestDifferenceHashSeparatesGradientFromFlat(t *testing.T) {
	small, err := png.Decode(bytes.NewReader(encodeTestPNG(t, 32, 32)))
	if err != nil {
		t.Fatalf("decode small: %v", err)
	}
	large, err := png.Decode(bytes.NewReader(encodeTestPNG(t, 96, 64)))
	if err != nil {
		t.Fatalf("decode large: %v", err)
	}
	flat := image.NewGray(image.Rect(0, 0, 32, 32))

	hashOf := func(img image.Image) string {
		t.Helper()
		hash, err := DifferenceHash(img)
		if err != nil {
			t.Fatalf("difference hash: %v", err)
		}
		if len(hash) != 16 {
			t.Fatalf("expected 16 hex chars, got %q", hash)
		}
		return hash
	}

	if hashOf(small) == hashOf(flat) {
		t.Fatalf("expected gradient and flat images to hash differently")
	}
	if hashOf(flat) != "0000000000000000" {
		t.Fatalf("expected flat image hash to be zero, got %s", hashOf(flat))
	}
	if hashOf(small) != hashOf(large) {
		t.Fatalf("expected rescaled gradient to keep its hash, got %s and %s", hashOf(small), hashOf(large))
	}
}
