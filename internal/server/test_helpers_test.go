package server

import (
	contextpkg "context"
	"errors"
	"net/http"
	"testing"

	"github.com/newraifootwear/notify-backend/internal/devices"
	"github.com/newraifootwear/notify-backend/internal/push"
)

type stubRegistry struct {
	registerFunc  func(contextpkg.Context, devices.RegisterRequest) (devices.Device, error)
	lookupFunc    func(contextpkg.Context, string) (devices.Device, error)
	listFunc      func(contextpkg.Context) ([]devices.Device, error)
	updateFunc    func(contextpkg.Context, string, devices.UpdateRequest) (devices.Device, error)
	deleteFunc    func(contextpkg.Context, string) error
	reconcileFunc func(contextpkg.Context) (int64, error)
}

func (s *stubRegistry) Register(ctx contextpkg.Context, request devices.RegisterRequest) (devices.Device, error) {
	if s.registerFunc == nil {
		return devices.Device{}, errors.New("unexpected Register call")
	}
	return s.registerFunc(ctx, request)
}

func (s *stubRegistry) Lookup(ctx contextpkg.Context, email string) (devices.Device, error) {
	if s.lookupFunc == nil {
		return devices.Device{}, errors.New("unexpected Lookup call")
	}
	return s.lookupFunc(ctx, email)
}

func (s *stubRegistry) List(ctx contextpkg.Context) ([]devices.Device, error) {
	if s.listFunc == nil {
		return nil, errors.New("unexpected List call")
	}
	return s.listFunc(ctx)
}

func (s *stubRegistry) Update(ctx contextpkg.Context, id string, request devices.UpdateRequest) (devices.Device, error) {
	if s.updateFunc == nil {
		return devices.Device{}, errors.New("unexpected Update call")
	}
	return s.updateFunc(ctx, id, request)
}

func (s *stubRegistry) Delete(ctx contextpkg.Context, id string) error {
	if s.deleteFunc == nil {
		return errors.New("unexpected Delete call")
	}
	return s.deleteFunc(ctx, id)
}

func (s *stubRegistry) Reconcile(ctx contextpkg.Context) (int64, error) {
	if s.reconcileFunc == nil {
		return 0, errors.New("unexpected Reconcile call")
	}
	return s.reconcileFunc(ctx)
}

type stubBroadcaster struct {
	dispatchFunc func(contextpkg.Context, string, string, map[string]any) (push.Result, error)
}

func (s *stubBroadcaster) Dispatch(ctx contextpkg.Context, title, message string, data map[string]any) (push.Result, error) {
	if s.dispatchFunc == nil {
		return push.Result{}, errors.New("unexpected Dispatch call")
	}
	return s.dispatchFunc(ctx, title, message, data)
}

type stubTokenManager struct {
	issuedToken string
	issueErr    error
	subject     string
	validateErr error
}

func (s stubTokenManager) IssueToken(_ contextpkg.Context, _ string) (string, int64, error) {
	return s.issuedToken, 3600, s.issueErr
}

func (s stubTokenManager) ValidateToken(_ string) (string, error) {
	if s.validateErr != nil {
		return "", s.validateErr
	}
	return s.subject, nil
}

type stubPasswordVerifier struct {
	accept bool
}

func (s stubPasswordVerifier) Verify(_ string) bool {
	return s.accept
}

func newTestHandler(testContext *testing.T, deps Dependencies) http.Handler {
	testContext.Helper()
	if deps.Registry == nil {
		deps.Registry = &stubRegistry{}
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = &stubBroadcaster{}
	}
	if deps.TokenManager == nil {
		deps.TokenManager = stubTokenManager{subject: adminSubject}
	}
	if deps.Passwords == nil {
		deps.Passwords = stubPasswordVerifier{accept: true}
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}
	return handler
}
