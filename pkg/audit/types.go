package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/auth"
)

// Action is the kind of audited operation
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionRead   Action = "READ"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionLogin  Action = "LOGIN"
	ActionLogout Action = "LOGOUT"
)

// EntityType identifies the kind of entity an entry targets
type EntityType string

const (
	EntityCompany    EntityType = "Company"
	EntityEmployee   EntityType = "Employee"
	EntityClient     EntityType = "Client"
	EntityClaimTask  EntityType = "ClaimTask"
	EntitySOW        EntityType = "SOW"
	EntityPatient    EntityType = "Patient"
	EntityPayer      EntityType = "Payer"
	EntityDepartment EntityType = "Department"
	EntityRole       EntityType = "Role"
)

// Entry is a single audit record. Once recorded it is never mutated or
// deleted by any code path in this core.
type Entry struct {
	LogID     string         `json:"logId"`
	TenantID  string         `json:"tenantRef,omitempty"` // empty for platform actions
	ActorID   string         `json:"actorRef"`
	ActorKind auth.ActorKind `json:"actorKind"`

	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Action     Action     `json:"action"`

	// Before/After snapshots, omitted for READ/LOGIN/LOGOUT
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`

	// Request metadata
	Endpoint     string `json:"endpoint,omitempty"`
	Method       string `json:"method,omitempty"`
	ClientIP     string `json:"clientIp,omitempty"`
	UserAgent    string `json:"userAgent,omitempty"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewEntry creates an entry for an actor's action on an entity, stamping
// the log id and creation time.
func NewEntry(actor *auth.Actor, entityType EntityType, entityID string, action Action) *Entry {
	e := &Entry{
		LogID:      uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Success:    true,
		CreatedAt:  time.Now().UTC(),
	}
	if actor != nil {
		e.ActorID = actor.ID()
		e.ActorKind = actor.Kind
		if actor.Kind == auth.ActorKindEmployee {
			e.TenantID = actor.TenantID
		}
	}
	return e
}

// WithSnapshots attaches before/after state. Snapshots are only meaningful
// for mutating actions; normalize strips them from the rest.
func (e *Entry) WithSnapshots(before, after map[string]interface{}) *Entry {
	e.Before = before
	e.After = after
	return e
}

// WithRequest attaches request metadata
func (e *Entry) WithRequest(endpoint, method, clientIP, userAgent string) *Entry {
	e.Endpoint = endpoint
	e.Method = method
	e.ClientIP = clientIP
	e.UserAgent = userAgent
	return e
}

// Failed marks the entry as describing a failed or denied operation
func (e *Entry) Failed(errorMessage string) *Entry {
	e.Success = false
	e.ErrorMessage = errorMessage
	return e
}

// normalize strips snapshots from actions that must not carry them
func (e *Entry) normalize() {
	switch e.Action {
	case ActionRead, ActionLogin, ActionLogout:
		e.Before = nil
		e.After = nil
	}
	if e.LogID == "" {
		e.LogID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
}

// SearchFilter selects entries for the two supported query shapes:
// tenant+time and actor+action+time.
type SearchFilter struct {
	TenantID   string
	ActorID    string
	Action     Action
	EntityType EntityType
	EntityID   string
	From       *time.Time
	To         *time.Time

	Limit  int
	Offset int
}

// Stats summarizes a tenant's audit activity over a time range
type Stats struct {
	TotalEntries  int64            `json:"total_entries"`
	ByAction      map[Action]int64 `json:"by_action"`
	FailedEntries int64            `json:"failed_entries"`
	UniqueActors  int64            `json:"unique_actors"`
}
