// Package rbac implements the tenant-scoped authorization core: the role
// registry, the permission evaluator, the version-keyed permission cache and
// the per-actor daily quota counter.
//
// Roles own a matrix mapping a closed set of resources to a closed set of
// actions, plus coarse capability flags and a daily claim quota. Evaluation
// is default-deny: absence of an explicit grant denies. Cross-tenant access
// is denied unless the effective capability set includes canViewAllCompanies.
//
// The permission cache fronts the registry with an in-process LRU and a
// Redis tier. Cached sets carry the role's version marker (its last-modified
// timestamp) so any role mutation produces a miss; when the cache store is
// unreachable the evaluator fails open to a direct registry read and emits a
// degraded-mode signal rather than denying traffic.
package rbac
