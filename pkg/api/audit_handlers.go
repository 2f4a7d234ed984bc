package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/audit"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/auth"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/observability"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/rbac"
)

const defaultSearchLimit = 100

// AuditHandlers handles audit trail read requests. There are deliberately
// no write routes here: entries only enter through the recorder.
type AuditHandlers struct {
	store  *audit.Store
	logger *observability.Logger
}

// NewAuditHandlers creates a new AuditHandlers
func NewAuditHandlers(store *audit.Store, logger *observability.Logger) *AuditHandlers {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &AuditHandlers{store: store, logger: logger}
}

// RegisterRoutes registers audit read routes behind the guard
func (h *AuditHandlers) RegisterRoutes(router *mux.Router, guard *rbac.Guard) {
	router.Handle("/audit",
		guard.RequirePermission(rbac.ResourceReport, rbac.ActionView)(
			http.HandlerFunc(h.Search))).Methods("GET")
	router.Handle("/audit/stats",
		guard.RequirePermission(rbac.ResourceReport, rbac.ActionView)(
			http.HandlerFunc(h.Stats))).Methods("GET")
}

// Search queries the audit trail. Employees are pinned to their own tenant.
func (h *AuditHandlers) Search(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())

	filter, err := parseSearchFilter(r, actor)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, searchErr := h.store.Search(r.Context(), filter)
	if searchErr != nil {
		h.logger.WithError(searchErr).Error("audit search failed")
		respondError(w, http.StatusInternalServerError, "audit search failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// Stats summarizes the tenant's audit activity over a time range
func (h *AuditHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.FromContext(r.Context())

	tenantID := actor.TenantID
	if actor.IsPlatformAdmin() {
		tenantID = r.URL.Query().Get("companyId")
	}
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "companyId is required")
		return
	}

	from, to, err := parseTimeRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, statsErr := h.store.GetStats(r.Context(), tenantID, from, to)
	if statsErr != nil {
		h.logger.WithError(statsErr).Error("audit stats failed")
		respondError(w, http.StatusInternalServerError, "audit stats failed")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func parseSearchFilter(r *http.Request, actor *auth.Actor) (audit.SearchFilter, error) {
	q := r.URL.Query()

	filter := audit.SearchFilter{
		TenantID:   actor.TenantID,
		ActorID:    q.Get("actorId"),
		Action:     audit.Action(q.Get("action")),
		EntityType: audit.EntityType(q.Get("entityType")),
		EntityID:   q.Get("entityId"),
		Limit:      defaultSearchLimit,
	}

	// Platform admins may search across a named tenant or all of them
	if actor.IsPlatformAdmin() {
		filter.TenantID = q.Get("companyId")
	}

	from, to, err := parseTimeRange(r)
	if err != nil {
		return audit.SearchFilter{}, err
	}
	filter.From = from
	filter.To = to

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return audit.SearchFilter{}, errInvalidParam("limit")
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return audit.SearchFilter{}, errInvalidParam("offset")
		}
		filter.Offset = offset
	}

	return filter, nil
}

func parseTimeRange(r *http.Request) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, errInvalidParam("from")
		}
		from = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, errInvalidParam("to")
		}
		to = &t
	}
	return from, to, nil
}

type paramError string

func (e paramError) Error() string { return "invalid query parameter: " + string(e) }

func errInvalidParam(name string) error { return paramError(name) }
