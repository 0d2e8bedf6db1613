package leaseimport

import (
	"context"

	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/utils"
)

const importLockType = "import"

// tenantLock holds "import:<tenant>" for the duration of one batch. Replaced in tests.
var tenantLock = ObtainTenantLock

// ObtainTenantLock fails with utils.ErrLockNotObtained while another import of the tenant runs.
func ObtainTenantLock(ctx context.Context, tenantId string) (func(), error) {
	return utils.TenantLock(ctx, tenantId, importLockType, config.ImportLockTTL(), "leaseimport", "ObtainTenantLock")
}
