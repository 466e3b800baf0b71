package composables

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ApplyTenantRLS publishes the current tenant to the session GUC row-level
// security policies read. A context without a tenant is allowed; background
// maintenance paths run tenant-less.
func ApplyTenantRLS(ctx context.Context, tx pgx.Tx) error {
	tenantID, err := UseTenantID(ctx)
	if err != nil {
		return nil
	}
	_, err = tx.Exec(ctx, "SELECT set_config('app.current_tenant', $1, true)", tenantID.String())
	if err != nil {
		return fmt.Errorf("failed to set rls tenant context: %w", err)
	}
	return nil
}
