package gallery

import (
	"context"

	"github.com/innkeep/innkeep-api/internal/middleware"
	"github.com/innkeep/innkeep-api/internal/pkg/logger"
)

// Service owns gallery reads and display-order updates.
type Service struct {
	repo Repository
}

// NewService creates gallery service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get loads a gallery after authorizing the principal against its tenant.
func (s *Service) Get(ctx context.Context, principal middleware.Principal, parentID string) (*Gallery, error) {
	g, err := s.repo.GetByParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGalleryNotFound
	}
	if err := s.authorize(ctx, principal, g, "read"); err != nil {
		return nil, err
	}
	return g, nil
}

// Reorder replaces the display order. The proposal must be an exact
// permutation of the current membership; on mismatch every violation is
// returned alongside ErrInvalidOrder and nothing is written.
func (s *Service) Reorder(ctx context.Context, principal middleware.Principal, parentID string, proposed []string) (*Gallery, []Violation, error) {
	g, err := s.repo.GetByParent(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	if g == nil {
		return nil, nil, ErrGalleryNotFound
	}
	if err := s.authorize(ctx, principal, g, "reorder"); err != nil {
		return nil, nil, err
	}

	if violations := ValidateOrder(g.ImageIDs, proposed); len(violations) > 0 {
		return nil, violations, ErrInvalidOrder
	}

	if err := s.repo.UpdateOrder(ctx, parentID, proposed); err != nil {
		return nil, nil, err
	}

	g.ImageIDs = proposed
	return g, nil, nil
}

// authorize enforces tenant isolation for one gallery. Denials are
// audit-logged before the error is returned.
func (s *Service) authorize(ctx context.Context, principal middleware.Principal, g *Gallery, action string) error {
	if principal.Elevated() {
		return nil
	}
	if principal.TenantID != "" && principal.TenantID == g.TenantID {
		return nil
	}

	logger.FromContext(ctx).Warn().
		Str("principal_id", principal.UserID.String()).
		Str("principal_tenant", principal.TenantID).
		Str("resource_id", g.ParentID).
		Str("resource_tenant", g.TenantID).
		Str("action", action).
		Msg("Access denied")

	return ErrAccessDenied
}
