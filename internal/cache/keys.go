package cache

import (
	"fmt"

	"github.com/google/uuid"
)

const keyPrefix = "authgraph"

// RolesVersionKey holds the role-graph version counter.
const RolesVersionKey = keyPrefix + ":user_roles:version"

func TenantConfigKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("%s:tenant:%s", keyPrefix, tenantID)
}

func ServiceConfigKey(serviceID uuid.UUID) string {
	return fmt.Sprintf("%s:service:%s", keyPrefix, serviceID)
}

func UserRolesKey(userID, tenantID uuid.UUID) string {
	return fmt.Sprintf("%s:user_roles:%s:%s", keyPrefix, userID, tenantID)
}

func UserServiceRolesKey(userID, tenantID, serviceID uuid.UUID) string {
	return fmt.Sprintf("%s:user_roles_service:%s:%s:%s", keyPrefix, userID, tenantID, serviceID)
}

// UserServiceRolesPattern matches every service-scoped role entry of a user in a tenant.
func UserServiceRolesPattern(userID, tenantID uuid.UUID) string {
	return fmt.Sprintf("%s:user_roles_service:%s:%s:*", keyPrefix, userID, tenantID)
}
