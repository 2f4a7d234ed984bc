package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/audit"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/auth"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/observability"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/rbac"
)

// RoleHandlers handles role administration HTTP requests
type RoleHandlers struct {
	registry *rbac.Registry
	recorder *audit.Recorder
	logger   *observability.Logger
}

// NewRoleHandlers creates a new RoleHandlers
func NewRoleHandlers(registry *rbac.Registry, recorder *audit.Recorder, logger *observability.Logger) *RoleHandlers {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &RoleHandlers{
		registry: registry,
		recorder: recorder,
		logger:   logger,
	}
}

// RegisterRoutes registers role administration routes behind the guard
func (h *RoleHandlers) RegisterRoutes(router *mux.Router, guard *rbac.Guard) {
	router.Handle("/roles",
		guard.RequirePermission(rbac.ResourceRole, rbac.ActionView)(
			http.HandlerFunc(h.ListRoles))).Methods("GET")
	router.Handle("/roles",
		guard.RequirePermission(rbac.ResourceRole, rbac.ActionCreate)(
			http.HandlerFunc(h.CreateRole))).Methods("POST")
	router.Handle("/roles/seed",
		guard.RequirePermission(rbac.ResourceRole, rbac.ActionManage)(
			http.HandlerFunc(h.SeedRoles))).Methods("POST")
	router.Handle("/roles/{id}",
		guard.RequirePermission(rbac.ResourceRole, rbac.ActionView)(
			http.HandlerFunc(h.GetRole))).Methods("GET")
	router.Handle("/roles/{id}",
		guard.RequirePermission(rbac.ResourceRole, rbac.ActionUpdate)(
			http.HandlerFunc(h.UpdateRole))).Methods("PUT")
	router.Handle("/roles/{id}",
		guard.RequirePermission(rbac.ResourceRole, rbac.ActionDelete)(
			http.HandlerFunc(h.DeactivateRole))).Methods("DELETE")
}

// tenantFor resolves the tenant a role request operates on. Employees are
// pinned to their own tenant; platform admins name one explicitly.
func tenantFor(r *http.Request, actor *auth.Actor) string {
	if actor.Kind == auth.ActorKindEmployee {
		return actor.TenantID
	}
	if t := r.URL.Query().Get("companyId"); t != "" {
		return t
	}
	return ""
}

// ListRoles lists the tenant's roles
func (h *RoleHandlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	tenantID := tenantFor(r, actor)
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "companyId is required")
		return
	}

	roles, err := h.registry.ListRoles(r.Context(), tenantID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list roles")
		respondError(w, http.StatusInternalServerError, "failed to list roles")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"roles": roles})
}

// GetRole returns a single role
func (h *RoleHandlers) GetRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	tenantID := tenantFor(r, actor)
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "companyId is required")
		return
	}

	role, err := h.registry.GetRole(r.Context(), tenantID, mux.Vars(r)["id"])
	if err == rbac.ErrRoleNotFound {
		respondError(w, http.StatusNotFound, "role not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to get role")
		respondError(w, http.StatusInternalServerError, "failed to get role")
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// CreateRole creates a new role in the tenant
func (h *RoleHandlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, "")
}

// UpdateRole updates an existing role
func (h *RoleHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, mux.Vars(r)["id"])
}

func (h *RoleHandlers) upsert(w http.ResponseWriter, r *http.Request, roleID string) {
	actor, _ := auth.FromContext(r.Context())
	tenantID := tenantFor(r, actor)
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "companyId is required")
		return
	}

	var spec rbac.RoleSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	spec.ID = roleID

	// Employees can only manage roles below their own level
	if actor.Kind == auth.ActorKindEmployee {
		own, err := h.registry.GetRole(r.Context(), tenantID, actor.RoleID)
		if err != nil {
			h.logger.WithError(err).Error("failed to load acting role")
			respondError(w, http.StatusInternalServerError, "failed to load acting role")
			return
		}
		if spec.Level >= own.Level {
			respondError(w, http.StatusForbidden, "cannot manage a role at or above your own level")
			return
		}
	}

	var before *rbac.Role
	if roleID != "" {
		prev, err := h.registry.GetRole(r.Context(), tenantID, roleID)
		if err == rbac.ErrRoleNotFound {
			respondError(w, http.StatusNotFound, "role not found")
			return
		}
		if err != nil {
			h.logger.WithError(err).Error("failed to load role")
			respondError(w, http.StatusInternalServerError, "failed to load role")
			return
		}
		before = prev
	}

	role, err := h.registry.UpsertRole(r.Context(), tenantID, spec)
	if rbac.IsInvalidRoleSpec(err) {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to upsert role")
		respondError(w, http.StatusInternalServerError, "failed to save role")
		return
	}

	auditAction := audit.ActionCreate
	status := http.StatusCreated
	if roleID != "" {
		auditAction = audit.ActionUpdate
		status = http.StatusOK
	}
	h.record(r, actor, role.ID, auditAction, roleSnapshot(before), roleSnapshot(role))

	respondJSON(w, status, role)
}

// DeactivateRole marks a role inactive. Roles are never hard-deleted.
func (h *RoleHandlers) DeactivateRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	tenantID := tenantFor(r, actor)
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "companyId is required")
		return
	}

	roleID := mux.Vars(r)["id"]
	before, err := h.registry.GetRole(r.Context(), tenantID, roleID)
	if err == rbac.ErrRoleNotFound {
		respondError(w, http.StatusNotFound, "role not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to load role")
		respondError(w, http.StatusInternalServerError, "failed to load role")
		return
	}

	if err := h.registry.DeactivateRole(r.Context(), tenantID, roleID); err != nil {
		h.logger.WithError(err).Error("failed to deactivate role")
		respondError(w, http.StatusInternalServerError, "failed to deactivate role")
		return
	}

	after := *before
	after.IsActive = false
	h.record(r, actor, roleID, audit.ActionUpdate, roleSnapshot(before), roleSnapshot(&after))

	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// SeedRoles provisions the built-in role set for the tenant
func (h *RoleHandlers) SeedRoles(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())
	tenantID := tenantFor(r, actor)
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "companyId is required")
		return
	}

	if err := h.registry.SeedBuiltInRoles(r.Context(), tenantID); err != nil {
		h.logger.WithError(err).Error("failed to seed built-in roles")
		respondError(w, http.StatusInternalServerError, "failed to seed roles")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

func (h *RoleHandlers) record(r *http.Request, actor *auth.Actor, roleID string, action audit.Action, before, after map[string]interface{}) {
	if h.recorder == nil {
		return
	}
	entry := audit.NewEntry(actor, audit.EntityRole, roleID, action).
		WithSnapshots(before, after).
		WithRequest(r.URL.Path, r.Method, r.RemoteAddr, r.UserAgent())
	if err := h.recorder.Record(r.Context(), entry); err != nil {
		h.logger.WithError(err).Warn("failed to enqueue audit entry")
	}
}

// roleSnapshot reduces a role to the fields worth diffing in the audit trail
func roleSnapshot(role *rbac.Role) map[string]interface{} {
	if role == nil {
		return nil
	}
	return map[string]interface{}{
		"roleName":        role.Name,
		"roleLevel":       role.Level,
		"permissions":     role.Permissions,
		"capabilities":    role.Capabilities,
		"maxClaimsPerDay": role.MaxClaimsPerDay,
		"isActive":        role.IsActive,
	}
}
