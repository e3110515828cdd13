package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/authgraph/internal/cascade"
	"github.com/kiranshivaraju/authgraph/internal/store"
)

const (
	PlanService = "service_delete"
	PlanTenant  = "tenant_delete"
	PlanUser    = "user_delete"
)

// ServicePlan removes a service together with its clients, roles,
// permissions and, when those collaborators are configured, its actions and
// branding. Parent links between the service's roles are cleared before the
// roles are deleted.
func ServicePlan(serviceID uuid.UUID, repos store.Repositories) *cascade.Plan {
	p := cascade.NewPlan(PlanService)
	appendServiceSteps(p, "", serviceID, repos)
	return p
}

func appendServiceSteps(p *cascade.Plan, prefix string, serviceID uuid.UUID, repos store.Repositories) {
	p.Append(prefix+"delete clients", "clients", cascade.OpDelete,
		func(ctx context.Context, r store.Repositories) (int64, error) {
			return r.Services.DeleteClientsByService(ctx, serviceID)
		}).
		Append(prefix+"clear parent role references", "roles", cascade.OpNullify,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.RBAC.ClearParentRoleReferences(ctx, serviceID)
			}).
		Append(prefix+"delete roles", "roles", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.RBAC.DeleteRolesByService(ctx, serviceID)
			}).
		Append(prefix+"delete permissions", "permissions", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.RBAC.DeletePermissionsByService(ctx, serviceID)
			})

	if repos.Actions != nil {
		p.Append(prefix+"delete service actions", "actions", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.Actions.DeleteActionsByService(ctx, serviceID)
			})
	}
	if repos.Branding != nil {
		p.Append(prefix+"delete service branding", "service_branding", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.Branding.DeleteBrandingByService(ctx, serviceID)
			})
	}

	p.Append(prefix+"delete service", "services", cascade.OpDelete,
		func(ctx context.Context, r store.Repositories) (int64, error) {
			return r.Services.DeleteService(ctx, serviceID)
		})
}

// TenantPlan removes a tenant. Every service it owns is removed first, each
// with the steps of ServicePlan, followed by the tenant-scoped collections
// and the tenant row.
func TenantPlan(tenantID uuid.UUID, serviceIDs []uuid.UUID, repos store.Repositories) *cascade.Plan {
	p := cascade.NewPlan(PlanTenant)
	for _, sid := range serviceIDs {
		appendServiceSteps(p, fmt.Sprintf("service %s: ", sid), sid, repos)
	}

	p.Append("delete webhooks", "webhooks", cascade.OpDelete,
		func(ctx context.Context, r store.Repositories) (int64, error) {
			return r.Webhooks.DeleteWebhooksByTenant(ctx, tenantID)
		}).
		Append("delete invitations", "invitations", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.Invitations.DeleteInvitationsByTenant(ctx, tenantID)
			}).
		Append("delete member role assignments", "user_tenant_roles", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				ids, err := r.Users.ListTenantUserIDsByTenant(ctx, tenantID)
				if err != nil {
					return 0, err
				}
				return deleteAssignments(ctx, r.RBAC, ids)
			}).
		Append("delete memberships", "tenant_users", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.Users.DeleteTenantMembershipsByTenant(ctx, tenantID)
			}).
		Append("delete login events", "login_events", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.LoginEvents.DeleteLoginEventsByTenant(ctx, tenantID)
			}).
		Append("delete security alerts", "security_alerts", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.SecurityAlerts.DeleteSecurityAlertsByTenant(ctx, tenantID)
			})

	if repos.Actions != nil {
		p.Append("delete tenant actions", "actions", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.Actions.DeleteActionsByTenant(ctx, tenantID)
			})
	}

	return p.Append("delete tenant", "tenants", cascade.OpDelete,
		func(ctx context.Context, r store.Repositories) (int64, error) {
			return r.Tenants.DeleteTenant(ctx, tenantID)
		})
}

// UserPlan removes a user with their memberships and credentials. Login
// events, security alerts and audit logs outlive the user with the reference
// nulled.
func UserPlan(userID uuid.UUID) *cascade.Plan {
	return cascade.NewPlan(PlanUser).
		Append("delete role assignments", "user_tenant_roles", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				ids, err := r.Users.ListTenantUserIDs(ctx, userID)
				if err != nil {
					return 0, err
				}
				return deleteAssignments(ctx, r.RBAC, ids)
			}).
		Append("delete memberships", "tenant_users", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.Users.DeleteAllTenantMemberships(ctx, userID)
			}).
		Append("delete sessions", "sessions", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.Sessions.DeleteSessionsByUser(ctx, userID)
			}).
		Append("delete password reset tokens", "password_reset_tokens", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.PasswordResets.DeletePasswordResetsByUser(ctx, userID)
			}).
		Append("delete linked identities", "linked_identities", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.LinkedIdentities.DeleteLinkedIdentitiesByUser(ctx, userID)
			}).
		Append("detach login events", "login_events", cascade.OpNullify,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.LoginEvents.NullifyLoginEventUser(ctx, userID)
			}).
		Append("detach security alerts", "security_alerts", cascade.OpNullify,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.SecurityAlerts.NullifySecurityAlertUser(ctx, userID)
			}).
		Append("detach audit logs", "audit_logs", cascade.OpNullify,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.Audit.NullifyAuditActor(ctx, userID)
			}).
		Append("delete user", "users", cascade.OpDelete,
			func(ctx context.Context, r store.Repositories) (int64, error) {
				return r.Users.DeleteUser(ctx, userID)
			})
}

func deleteAssignments(ctx context.Context, repo store.RbacRepository, tenantUserIDs []uuid.UUID) (int64, error) {
	var total int64
	for _, id := range tenantUserIDs {
		n, err := repo.DeleteUserRolesByTenantUser(ctx, id)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
