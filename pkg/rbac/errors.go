package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRoleNotFound indicates the requested role does not exist in the tenant
var ErrRoleNotFound = errors.New("role not found")

// InvalidRoleSpecError reports role validation failures. Fatal to the
// mutating admin request only.
type InvalidRoleSpecError struct {
	Violations []string
}

func (e *InvalidRoleSpecError) Error() string {
	return fmt.Sprintf("invalid role spec: %s", strings.Join(e.Violations, "; "))
}

// IsInvalidRoleSpec reports whether err is a role validation failure
func IsInvalidRoleSpec(err error) bool {
	var target *InvalidRoleSpecError
	return errors.As(err, &target)
}

// QuotaExceededError reports an exhausted daily quota. Distinct from a
// denial so callers can surface a different user message and it does not
// pollute the audit trail as an authorization failure.
type QuotaExceededError struct {
	ActorID string
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily claim quota of %d exhausted for actor %s", e.Limit, e.ActorID)
}

// IsQuotaExceeded reports whether err is a quota rejection
func IsQuotaExceeded(err error) bool {
	var target *QuotaExceededError
	return errors.As(err, &target)
}
