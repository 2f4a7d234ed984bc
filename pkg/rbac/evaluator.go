package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/auth"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/observability"
)

// Outcome is the result class of a permission evaluation
type Outcome string

const (
	OutcomeAllow         Outcome = "allow"
	OutcomeDeny          Outcome = "deny"
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
)

// Stable machine-readable reason codes reported to callers
const (
	ReasonGranted             = "granted"
	ReasonRoleDeactivated     = "role_deactivated"
	ReasonRoleNotFound        = "role_not_found"
	ReasonNotGranted          = "not_granted"
	ReasonCapabilityMissing   = "capability_missing"
	ReasonCrossTenantDenied   = "cross_tenant_denied"
	ReasonPlatformScopeDenied = "platform_scope_denied"
	ReasonQuotaExceeded       = "quota_exceeded"
)

// Decision is the outcome of a permission evaluation
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason"`
}

// Allowed reports whether the decision permits the action
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

func allow() Decision {
	return Decision{Outcome: OutcomeAllow, Reason: ReasonGranted}
}

func deny(reason string) Decision {
	return Decision{Outcome: OutcomeDeny, Reason: reason}
}

// EvalContext carries request-scoped facts the evaluation depends on
type EvalContext struct {
	// TargetTenantID is the tenant owning the resource being accessed,
	// when it differs from implicit actor scope. Empty means the actor's
	// own tenant.
	TargetTenantID string
}

// Evaluator decides (actor, resource, action, context) → allow/deny/quota.
// Decisions have no side effects on domain state; recording the outcome is
// the caller's job. The one stateful touch is the atomic quota consume for
// quota-gated actions, which is what makes the boundary race-safe.
type Evaluator struct {
	cache   *Cache
	quota   *QuotaCounter
	metrics *observability.Metrics
}

// NewEvaluator creates a permission evaluator
func NewEvaluator(cache *Cache, quota *QuotaCounter, metrics *observability.Metrics) *Evaluator {
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &Evaluator{
		cache:   cache,
		quota:   quota,
		metrics: metrics,
	}
}

// Evaluate runs the authorization algorithm. A returned error means the
// evaluation itself could not run (registry unreachable); it is not a deny.
func (e *Evaluator) Evaluate(ctx context.Context, actor *auth.Actor, resource Resource, action Action, evalCtx EvalContext) (Decision, error) {
	if actor == nil {
		return deny(ReasonNotGranted), nil
	}

	decision, err := e.evaluate(ctx, actor, resource, action, evalCtx)
	if err != nil {
		e.metrics.EvaluationErrors.Inc()
		return Decision{}, err
	}

	e.metrics.DecisionsTotal.WithLabelValues(string(resource), string(action), string(decision.Outcome)).Inc()
	return decision, nil
}

func (e *Evaluator) evaluate(ctx context.Context, actor *auth.Actor, resource Resource, action Action, evalCtx EvalContext) (Decision, error) {
	switch actor.Kind {
	case auth.ActorKindPlatformAdmin:
		return e.evaluatePlatformAdmin(actor, resource, action, evalCtx), nil
	case auth.ActorKindEmployee:
		return e.evaluateEmployee(ctx, actor, resource, action, evalCtx)
	default:
		return deny(ReasonNotGranted), nil
	}
}

// evaluatePlatformAdmin checks against the admin's own capability set,
// bypassing the tenant role matrix. Platform admins only reach
// platform-scoped resources unless explicitly granted canViewAllCompanies.
func (e *Evaluator) evaluatePlatformAdmin(actor *auth.Actor, resource Resource, action Action, evalCtx EvalContext) Decision {
	caps := actor.Capabilities

	tenantScoped := resource != ResourceCompany || evalCtx.TargetTenantID != ""
	if tenantScoped && !caps.CanViewAllCompanies {
		return deny(ReasonPlatformScopeDenied)
	}

	if name, ok := missingCapability(caps, resource, action); !ok {
		return deny(fmt.Sprintf("%s:%s", ReasonCapabilityMissing, name))
	}

	return allow()
}

func (e *Evaluator) evaluateEmployee(ctx context.Context, actor *auth.Actor, resource Resource, action Action, evalCtx EvalContext) (Decision, error) {
	set, err := e.cache.Resolve(ctx, actor.TenantID, actor.RoleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return deny(ReasonRoleNotFound), nil
		}
		return Decision{}, fmt.Errorf("failed to resolve permissions: %w", err)
	}

	// An inactive role denies everything, even actions its matrix grants
	if !set.IsActive {
		return deny(ReasonRoleDeactivated), nil
	}

	// Tenant isolation: reaching into another tenant requires the explicit
	// capability, never the matrix alone
	if evalCtx.TargetTenantID != "" && evalCtx.TargetTenantID != actor.TenantID {
		if !set.Capabilities.CanViewAllCompanies {
			return deny(ReasonCrossTenantDenied), nil
		}
	}

	// Default-deny: no explicit grant, no access
	if !set.Allows(resource, action) {
		return deny(ReasonNotGranted), nil
	}

	// Capability-gated actions need the matrix entry AND the flag
	if name, ok := missingCapability(set.Capabilities, resource, action); !ok {
		return deny(fmt.Sprintf("%s:%s", ReasonCapabilityMissing, name)), nil
	}

	if quotaGated(resource, action) && e.quota != nil {
		if err := e.quota.Consume(ctx, actor.TenantID, actor.ID(), set.MaxClaimsPerDay); err != nil {
			if IsQuotaExceeded(err) {
				return Decision{Outcome: OutcomeQuotaExceeded, Reason: ReasonQuotaExceeded}, nil
			}
			return Decision{}, err
		}
	}

	return allow(), nil
}

// quotaGated reports whether the action consumes the daily claim quota
func quotaGated(resource Resource, action Action) bool {
	if action == ActionClaim {
		return true
	}
	return resource == ResourceClaimTask && action == ActionCreate
}

// missingCapability returns (flagName, false) when the resource/action pair
// is gated by a capability flag the set lacks.
func missingCapability(caps auth.Capabilities, resource Resource, action Action) (string, bool) {
	switch {
	case action == ActionExport && !caps.CanExportData:
		return "canExportData", false
	case action == ActionApprove && !caps.CanApproveWork:
		return "canApproveWork", false
	case resource == ResourceSOW && action != ActionView && !caps.CanConfigureSOWs:
		return "canConfigureSOWs", false
	case resource == ResourceReport && !caps.CanViewFinancials:
		return "canViewFinancials", false
	case resource == ResourceEmployee && action == ActionManage && !caps.CanManageAllEmployees:
		return "canManageAllEmployees", false
	}
	return "", true
}
