package media

import (
	"context"

	"github.com/innkeep/innkeep-api/internal/middleware"
	"github.com/innkeep/innkeep-api/internal/pkg/logger"
)

// Authorize enforces tenant isolation for one resource. Elevated roles bypass
// the check; everyone else must match the owning tenant exactly. Denials are
// audit-logged before the error is returned. Callers must resolve the
// record's tenant before reading or writing any bytes.
func Authorize(ctx context.Context, principal middleware.Principal, resourceTenant, action, resourceID string) error {
	if principal.Elevated() {
		return nil
	}
	if principal.TenantID != "" && principal.TenantID == resourceTenant {
		return nil
	}

	logger.FromContext(ctx).Warn().
		Str("principal_id", principal.UserID.String()).
		Str("principal_tenant", principal.TenantID).
		Str("resource_id", resourceID).
		Str("resource_tenant", resourceTenant).
		Str("action", action).
		Msg("Access denied")

	return ErrAccessDenied
}
