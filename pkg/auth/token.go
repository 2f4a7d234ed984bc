package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionManager issues and verifies signed session tokens. Verification is
// the verifySession half of the authorization guard contract: a bad token is
// an authentication error, terminal to the request.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// sessionClaims is the JWT payload carried by a session token
type sessionClaims struct {
	Kind         ActorKind     `json:"kind"`
	TenantID     string        `json:"tenant_id,omitempty"`
	RoleID       string        `json:"role_id,omitempty"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	jwt.RegisteredClaims
}

// NewSessionManager creates a session manager with an HMAC signing secret
func NewSessionManager(secret string, ttl time.Duration) (*SessionManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("session signing secret is required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue creates a signed session token for an actor
func (m *SessionManager) Issue(actor *Actor) (string, error) {
	if actor == nil {
		return "", fmt.Errorf("actor is required")
	}

	now := m.now()
	claims := &sessionClaims{
		Kind: actor.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	switch actor.Kind {
	case ActorKindEmployee:
		claims.TenantID = actor.TenantID
		claims.RoleID = actor.RoleID
	case ActorKindPlatformAdmin:
		caps := actor.Capabilities
		claims.Capabilities = &caps
	default:
		return "", fmt.Errorf("unknown actor kind %q", actor.Kind)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify validates a session token and reconstructs the acting principal
func (m *SessionManager) Verify(tokenString string) (*Actor, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: token is not valid", ErrAuthentication)
	}

	switch claims.Kind {
	case ActorKindEmployee:
		if claims.TenantID == "" || claims.RoleID == "" {
			return nil, fmt.Errorf("%w: employee session missing tenant or role", ErrAuthentication)
		}
		return NewEmployeeActor(claims.Subject, claims.TenantID, claims.RoleID), nil
	case ActorKindPlatformAdmin:
		caps := Capabilities{}
		if claims.Capabilities != nil {
			caps = *claims.Capabilities
		}
		return NewPlatformAdminActor(claims.Subject, caps), nil
	default:
		return nil, fmt.Errorf("%w: unknown actor kind %q", ErrAuthentication, claims.Kind)
	}
}
