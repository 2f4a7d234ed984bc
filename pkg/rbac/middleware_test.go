package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/audit"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/auth"
)

// guardSink collects entries the guard records for denied requests
type guardSink struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func (s *guardSink) Insert(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *guardSink) all() []*audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*audit.Entry(nil), s.entries...)
}

func TestRequirePermission_NoActor(t *testing.T) {
	env := newEvalEnv(t)
	guard := NewGuard(env.evaluator, nil, nil)

	handler := guard.RequirePermission(ResourceClaimTask, ActionView)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run without an actor")
		}))

	req := httptest.NewRequest(http.MethodGet, "/claims", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication_required")
}

func TestRequirePermission_AllowPassesThrough(t *testing.T) {
	env := newEvalEnv(t)
	env.seedSet(t, processorSet())
	guard := NewGuard(env.evaluator, nil, nil)

	called := false
	handler := guard.RequirePermission(ResourceClaimTask, ActionView)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/claims", nil)
	actor := auth.NewEmployeeActor("emp-1", "tenant-1", "role-proc")
	req = req.WithContext(auth.WithActor(req.Context(), actor))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermission_DenyReturnsReason(t *testing.T) {
	env := newEvalEnv(t)
	env.seedSet(t, processorSet())
	guard := NewGuard(env.evaluator, nil, nil)

	handler := guard.RequirePermission(ResourceClaimTask, ActionDelete)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run on deny")
		}))

	req := httptest.NewRequest(http.MethodDelete, "/claims/42", nil)
	actor := auth.NewEmployeeActor("emp-1", "tenant-1", "role-proc")
	req = req.WithContext(auth.WithActor(req.Context(), actor))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), ReasonNotGranted)
}

func TestRequirePermission_DeniedMutationAuditedWithAttemptedAction(t *testing.T) {
	env := newEvalEnv(t)
	env.seedSet(t, processorSet())

	sink := &guardSink{}
	recorder := audit.NewRecorder(sink, audit.RecorderConfig{QueueSize: 16}, nil, nil, nil)
	t.Cleanup(func() { recorder.Close() })

	guard := NewGuard(env.evaluator, recorder, nil)

	handler := guard.RequirePermission(ResourceClaimTask, ActionDelete)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run on deny")
		}))

	req := httptest.NewRequest(http.MethodDelete, "/claims/42", nil)
	actor := auth.NewEmployeeActor("emp-1", "tenant-1", "role-proc")
	req = req.WithContext(auth.WithActor(req.Context(), actor))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	require.Eventually(t, func() bool {
		return len(sink.all()) == 1
	}, time.Second, 10*time.Millisecond)

	entry := sink.all()[0]
	// The trail shows the mutation that was attempted, not a failed read
	assert.Equal(t, audit.ActionDelete, entry.Action)
	assert.False(t, entry.Success)
	assert.Equal(t, ReasonNotGranted, entry.ErrorMessage)
	assert.Equal(t, http.MethodDelete, entry.Method)
}

func TestRequirePermission_QuotaExceededReturns429(t *testing.T) {
	env := newEvalEnv(t)
	set := processorSet()
	set.MaxClaimsPerDay = 1
	env.seedSet(t, set)
	guard := NewGuard(env.evaluator, nil, nil)

	handler := guard.RequirePermission(ResourceClaimTask, ActionClaim)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	actor := auth.NewEmployeeActor("emp-1", "tenant-1", "role-proc")

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/claims", nil)
		req = req.WithContext(auth.WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send().Code)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), ReasonQuotaExceeded)
}
