package gallery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/innkeep/innkeep-api/internal/middleware"
)

type stubRepo struct {
	galleries map[string]*Gallery
	updates   int
}

func newStubRepo() *stubRepo {
	return &stubRepo{galleries: make(map[string]*Gallery)}
}

func (r *stubRepo) GetByParent(_ context.Context, parentID string) (*Gallery, error) {
	return r.galleries[parentID], nil
}

func (r *stubRepo) UpdateOrder(_ context.Context, parentID string, imageIDs []string) error {
	g, ok := r.galleries[parentID]
	if !ok {
		return ErrGalleryNotFound
	}
	g.ImageIDs = imageIDs
	g.UpdatedAt = time.Now().UTC()
	r.updates++
	return nil
}

func testPrincipal(tenant, role string) middleware.Principal {
	return middleware.Principal{UserID: uuid.New(), TenantID: tenant, Role: role}
}

func seedGallery(repo *stubRepo, parentID, tenant string, imageIDs ...string) *Gallery {
	g := &Gallery{
		ID:       uuid.New().String(),
		TenantID: tenant,
		ParentID: parentID,
		ImageIDs: imageIDs,
	}
	repo.galleries[parentID] = g
	return g
}

func TestReorderValidPermutation(t *testing.T) {
	repo := newStubRepo()
	seedGallery(repo, "room-7", "hotel-1", "a", "b", "c")
	svc := NewService(repo)

	g, violations, err := svc.Reorder(context.Background(), testPrincipal("hotel-1", "manager"), "room-7", []string{"c", "a", "b"})
	if err != nil {
		t.Fatalf("Reorder: %v (violations %v)", err, violations)
	}
	if got := []string(g.ImageIDs); got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Errorf("order = %v", got)
	}
	if repo.updates != 1 {
		t.Errorf("updates = %d, want 1", repo.updates)
	}
}

func TestReorderRejectsInvalidProposalWithoutWriting(t *testing.T) {
	repo := newStubRepo()
	seedGallery(repo, "room-7", "hotel-1", "a", "b", "c")
	svc := NewService(repo)

	_, violations, err := svc.Reorder(context.Background(), testPrincipal("hotel-1", "manager"), "room-7", []string{"a", "a", "x"})
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("err = %v, want ErrInvalidOrder", err)
	}
	if len(violations) == 0 {
		t.Fatal("no violations returned")
	}
	if repo.updates != 0 {
		t.Error("invalid proposal reached the store")
	}
	if got := []string(repo.galleries["room-7"].ImageIDs); got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("stored order changed: %v", got)
	}
}

func TestReorderTenantIsolation(t *testing.T) {
	repo := newStubRepo()
	seedGallery(repo, "room-7", "hotel-1", "a", "b")
	svc := NewService(repo)

	_, _, err := svc.Reorder(context.Background(), testPrincipal("hotel-2", "owner"), "room-7", []string{"b", "a"})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}

	// Elevated role bypasses the tenant check
	if _, _, err := svc.Reorder(context.Background(), testPrincipal("", "admin"), "room-7", []string{"b", "a"}); err != nil {
		t.Errorf("admin reorder failed: %v", err)
	}
}

func TestReorderUnknownGallery(t *testing.T) {
	svc := NewService(newStubRepo())

	_, _, err := svc.Reorder(context.Background(), testPrincipal("hotel-1", "owner"), "nope", []string{"a"})
	if !errors.Is(err, ErrGalleryNotFound) {
		t.Fatalf("err = %v, want ErrGalleryNotFound", err)
	}
}

func TestGetAuthorizes(t *testing.T) {
	repo := newStubRepo()
	seedGallery(repo, "room-7", "hotel-1", "a")
	svc := NewService(repo)

	if _, err := svc.Get(context.Background(), testPrincipal("hotel-1", "staff"), "room-7"); err != nil {
		t.Errorf("same-tenant get failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), testPrincipal("hotel-2", "staff"), "room-7"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("cross-tenant get err = %v, want ErrAccessDenied", err)
	}
}
