package rbac

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/async"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/audit"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/auth"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/observability"
)

// Guard is the request-scoped authorization edge: it resolves the actor set
// by the auth middleware, evaluates the permission and either passes control
// through or terminates the request with a machine-readable reason. Denials
// and quota rejections are recorded to the audit trail off the request path.
type Guard struct {
	evaluator *Evaluator
	recorder  *audit.Recorder
	logger    *observability.Logger
}

// NewGuard creates an authorization guard. recorder may be nil when audit
// wiring is not wanted (tests).
func NewGuard(evaluator *Evaluator, recorder *audit.Recorder, logger *observability.Logger) *Guard {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Guard{
		evaluator: evaluator,
		recorder:  recorder,
		logger:    logger,
	}
}

// RequirePermission returns middleware gating the wrapped handler on
// (resource, action). Requires middleware.Auth to have run.
func (g *Guard) RequirePermission(resource Resource, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := auth.FromContext(r.Context())
			if !ok {
				writeReason(w, http.StatusUnauthorized, "authentication_required")
				return
			}

			evalCtx := EvalContext{
				TargetTenantID: targetTenant(r, actor),
			}

			decision, err := g.evaluator.Evaluate(r.Context(), actor, resource, action, evalCtx)
			if err != nil {
				g.logger.WithError(err).Error("permission evaluation failed")
				writeReason(w, http.StatusInternalServerError, "evaluation_failed")
				return
			}

			switch decision.Outcome {
			case OutcomeAllow:
				next.ServeHTTP(w, r)
			case OutcomeQuotaExceeded:
				g.recordDenied(r, actor, resource, action, decision)
				writeReason(w, http.StatusTooManyRequests, decision.Reason)
			default:
				g.recordDenied(r, actor, resource, action, decision)
				writeReason(w, http.StatusForbidden, decision.Reason)
			}
		})
	}
}

// recordDenied appends an audit entry for a rejected request without
// blocking the response
func (g *Guard) recordDenied(r *http.Request, actor *auth.Actor, resource Resource, action Action, decision Decision) {
	if g.recorder == nil {
		return
	}

	entry := audit.NewEntry(actor, entityForResource(resource), entityID(r), auditAction(action)).
		WithRequest(r.URL.Path, r.Method, clientIP(r), r.UserAgent()).
		Failed(decision.Reason)

	recorder := g.recorder
	async.SafeGo(r.Context(), 2*time.Second, "audit denied request", func(ctx context.Context) error {
		return recorder.Record(ctx, entry)
	})
}

// targetTenant extracts the tenant the request reaches into, when routed
// explicitly (e.g. /companies/{companyId}/...). Empty means the actor's own
// scope.
func targetTenant(r *http.Request, actor *auth.Actor) string {
	vars := mux.Vars(r)
	target := vars["companyId"]
	if target == "" {
		target = r.URL.Query().Get("companyId")
	}
	if actor.Kind == auth.ActorKindEmployee && target == actor.TenantID {
		return ""
	}
	return target
}

// entityID pulls the addressed entity id out of the route, best effort
func entityID(r *http.Request) string {
	vars := mux.Vars(r)
	if id := vars["id"]; id != "" {
		return id
	}
	return r.URL.Path
}

// auditAction maps the attempted authorization action to the audit action
// recorded for the denial, so a denied mutation never reads as a failed READ
func auditAction(action Action) audit.Action {
	switch action {
	case ActionCreate:
		return audit.ActionCreate
	case ActionUpdate, ActionManage, ActionApprove, ActionClaim:
		return audit.ActionUpdate
	case ActionDelete:
		return audit.ActionDelete
	default:
		return audit.ActionRead
	}
}

// entityForResource maps an authorization resource to its audit entity type
func entityForResource(resource Resource) audit.EntityType {
	switch resource {
	case ResourceCompany:
		return audit.EntityCompany
	case ResourceEmployee:
		return audit.EntityEmployee
	case ResourceClient:
		return audit.EntityClient
	case ResourceClaimTask:
		return audit.EntityClaimTask
	case ResourceSOW:
		return audit.EntitySOW
	case ResourcePatient:
		return audit.EntityPatient
	case ResourcePayer:
		return audit.EntityPayer
	case ResourceDepartment:
		return audit.EntityDepartment
	case ResourceRole:
		return audit.EntityRole
	default:
		return audit.EntityCompany
	}
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func writeReason(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": reason})
}
