package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/media")
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	return s
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	got := ObjectKey("hotel-1", at, "abc", ".webp")
	want := "hotel-1/2026/08/abc.webp"
	if got != want {
		t.Errorf("ObjectKey = %q, want %q", got, want)
	}
}

func TestThumbnailKey(t *testing.T) {
	at := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	got := ThumbnailKey("hotel-1", at, "small", "abc", 150, 150, ".jpg")
	want := "hotel-1/2026/01/thumbnails/small/abc_150x150.jpg"
	if got != want {
		t.Errorf("ThumbnailKey = %q, want %q", got, want)
	}
}

func TestLocalPutGetHeadDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	payload := []byte("hello blob")

	res, err := s.Put(ctx, "t1/2026/08/a.jpg", bytes.NewReader(payload), PutOptions{})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if res.Size != int64(len(payload)) {
		t.Errorf("Put size = %d, want %d", res.Size, len(payload))
	}
	if !s.Owns(res.URL) {
		t.Errorf("backend does not own its own URL %q", res.URL)
	}

	rc, err := s.Get(ctx, res.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, payload) {
		t.Errorf("Get returned %q, want %q", got, payload)
	}

	info, err := s.Head(ctx, res.URL)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Errorf("Head size = %d, want %d", info.Size, len(payload))
	}
	if info.Key != "t1/2026/08/a.jpg" {
		t.Errorf("Head key = %q", info.Key)
	}

	if err := s.Delete(ctx, res.URL); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, res.URL); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, res.URL); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestLocalRejectsForeignURLs(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	foreign := []string{
		"http://evil.example.com/media/t1/a.jpg",
		"http://localhost:8080/other/a.jpg",
		"http://localhost:8080/media/../secrets",
	}
	for _, u := range foreign {
		if _, err := s.Get(ctx, u); !errors.Is(err, ErrForeignURL) {
			t.Errorf("Get(%q) = %v, want ErrForeignURL", u, err)
		}
		if err := s.Delete(ctx, u); !errors.Is(err, ErrForeignURL) {
			t.Errorf("Delete(%q) = %v, want ErrForeignURL", u, err)
		}
	}

	if s.Owns("http://evil.example.com/media/x") {
		t.Error("Owns accepted a foreign host")
	}
}

func TestLocalCopy(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	res, err := s.Put(ctx, "t1/src.jpg", strings.NewReader("data"), PutOptions{})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	dup, err := s.Copy(ctx, res.URL, "t1/dst.jpg")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}

	rc, err := s.Get(ctx, dup.URL)
	if err != nil {
		t.Fatalf("Get copy: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "data" {
		t.Errorf("copy content = %q", got)
	}
}

func TestLocalListPagination(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	keys := []string{"t1/a.jpg", "t1/b.jpg", "t1/c.jpg", "t2/d.jpg"}
	for _, k := range keys {
		if _, err := s.Put(ctx, k, strings.NewReader("x"), PutOptions{}); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}

	page, err := s.List(ctx, "t1/", "", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 2 || !page.HasMore {
		t.Fatalf("page 1 = %d items, hasMore=%v", len(page.Items), page.HasMore)
	}

	page2, err := s.List(ctx, "t1/", page.Cursor, 2)
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(page2.Items) != 1 || page2.HasMore {
		t.Fatalf("page 2 = %d items, hasMore=%v", len(page2.Items), page2.HasMore)
	}

	seen := map[string]bool{}
	for _, it := range append(page.Items, page2.Items...) {
		seen[it.Key] = true
	}
	for _, k := range []string{"t1/a.jpg", "t1/b.jpg", "t1/c.jpg"} {
		if !seen[k] {
			t.Errorf("missing key %s in listing", k)
		}
	}
	if seen["t2/d.jpg"] {
		t.Error("listing leaked a key outside the prefix")
	}
}

func TestDeleteBatch(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	res, err := s.Put(ctx, "t1/a.jpg", strings.NewReader("x"), PutOptions{})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	missing := s.URL("t1/gone.jpg")
	foreign := "http://evil.example.com/media/x.jpg"

	result := DeleteBatch(ctx, s, []string{res.URL, missing, foreign})

	if len(result.Successful) != 2 {
		t.Fatalf("Successful = %d, want 2", len(result.Successful))
	}
	if !result.Successful[0].Deleted {
		t.Errorf("existing blob not reported deleted")
	}
	if result.Successful[1].Deleted || result.Successful[1].Reason != "not found" {
		t.Errorf("missing blob outcome = %+v", result.Successful[1])
	}
	if len(result.Failed) != 1 || result.Failed[0].URL != foreign {
		t.Fatalf("Failed = %+v, want one foreign URL failure", result.Failed)
	}
}
