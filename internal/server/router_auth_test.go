package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/yazok8/linktree-clone/internal/auth"
	"github.com/yazok8/linktree-clone/internal/users"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/api/links", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionValidator{
			err: fmt.Errorf("%w: %w", auth.ErrExpiredSessionToken, jwt.ErrTokenExpired),
		},
		logger: zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "session validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), jwt.ErrTokenExpired) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/api/links", http.NoBody)
	request.Header.Set("Authorization", "Bearer invalid-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionValidator{err: fmt.Errorf("%w: signature mismatch", auth.ErrInvalidSessionToken)},
		logger:   zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if recorder.Body.String() != `{"error":"unauthorized"}` {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entries[0].Level)
	}
}

func TestAuthorizeRequestDoesNotLogMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/api/links", http.NoBody)

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionValidator{err: auth.ErrMissingSessionToken},
		logger:   zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: %d", recorder.Code)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no log entries, got %v", logs.All())
	}
}

func TestAuthorizeRequestRejectsDeletedAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/api/links", http.NoBody)

	handler := &httpHandler{
		sessions: stubSessionValidator{claims: auth.SessionClaims{UserID: "user-1"}},
		accounts: stubAccounts{getErr: users.ErrNotFound},
		logger:   zap.NewNop(),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for a deleted account, got %d", recorder.Code)
	}
	if _, ok := callerFrom(ctx); ok {
		t.Fatalf("caller must not be set")
	}
}

func TestAuthorizeRequestStoresCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/api/links", http.NoBody)

	handler := &httpHandler{
		sessions: stubSessionValidator{claims: auth.SessionClaims{UserID: "user-1", Username: "alice"}},
		accounts: stubAccounts{user: users.User{ID: "user-1", Username: "alice"}},
		logger:   zap.NewNop(),
	}

	handler.authorizeRequest(ctx)

	caller, ok := callerFrom(ctx)
	if !ok || caller.ID != "user-1" {
		t.Fatalf("expected caller to be stored, got %#v", caller)
	}
	if ctx.IsAborted() {
		t.Fatalf("request must continue")
	}
}

func TestLoginSetsSessionCookieUsableForRequests(t *testing.T) {
	server := newTestServer(t)
	server.register(t, "alice")

	recorder := server.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": testPassword})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var response loginResponsePayload
	decodeBody(t, recorder, &response)
	if response.TokenType != "Bearer" || response.AccessToken == "" || response.ExpiresIn != 3600 {
		t.Fatalf("unexpected login response %#v", response)
	}
	if response.User.Username != "alice" {
		t.Fatalf("unexpected user %#v", response.User)
	}

	var sessionCookie *http.Cookie
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == testCookieName {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil {
		t.Fatalf("expected session cookie to be set")
	}
	if !sessionCookie.HttpOnly || sessionCookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected HttpOnly SameSite=Lax cookie, got %#v", sessionCookie)
	}

	request := httptest.NewRequest(http.MethodGet, "/api/profile", http.NoBody)
	request.AddCookie(&http.Cookie{Name: testCookieName, Value: sessionCookie.Value})
	profileRecorder := httptest.NewRecorder()
	server.handler.ServeHTTP(profileRecorder, request)
	if profileRecorder.Code != http.StatusOK {
		t.Fatalf("expected cookie session to authorize, got %d", profileRecorder.Code)
	}
}

func TestLoginFailures(t *testing.T) {
	server := newTestServer(t)
	server.register(t, "alice")

	testCases := []struct {
		name     string
		body     any
		wantBody string
	}{
		{name: "wrong-password", body: map[string]string{"username": "alice", "password": "nope-nope-nope"}, wantBody: `{"error":"invalid_credentials"}`},
		{name: "unknown-user", body: map[string]string{"username": "bob", "password": testPassword}, wantBody: `{"error":"invalid_credentials"}`},
		{name: "missing-fields", body: map[string]string{}, wantBody: `{"error":"validation_failed","fields":{"password":["This field is required."],"username":["This field is required."]}}`},
		{name: "malformed-json", body: `{"username":`, wantBody: `{"error":"invalid_request"}`},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := server.do(t, http.MethodPost, "/api/auth/login", "", testCase.body)
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("expected bad request, got %d", recorder.Code)
			}
			if recorder.Body.String() != testCase.wantBody {
				t.Fatalf("unexpected body %s", recorder.Body.String())
			}
		})
	}
}

func TestRegistrationReportsFieldErrors(t *testing.T) {
	server := newTestServer(t)
	server.register(t, "alice")

	recorder := server.do(t, http.MethodPost, "/api/auth/registration", "", map[string]string{
		"username":   "alice",
		"email":      "other@example.com",
		"password1":  testPassword,
		"password2":  testPassword,
		"first_name": "Other",
		"last_name":  "Person",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"username":["A user with that username already exists."]`) {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestRegistrationRejectsPasswordOverByteLimit(t *testing.T) {
	server := newTestServer(t)
	password := strings.Repeat("é", 40)

	recorder := server.do(t, http.MethodPost, "/api/auth/registration", "", map[string]string{
		"username":   "alice",
		"email":      "alice@example.com",
		"password1":  password,
		"password2":  password,
		"first_name": "Alice",
		"last_name":  "Liddell",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d %s", recorder.Code, recorder.Body.String())
	}
	if recorder.Body.String() != `{"error":"validation_failed","fields":{"password1":["Ensure this field has no more than 72 bytes."]}}` {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	server := newTestServer(t)
	recorder := server.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	cleared := false
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == testCookieName && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected session cookie to be cleared")
	}
}

type stubSessionValidator struct {
	claims auth.SessionClaims
	err    error
}

func (s stubSessionValidator) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	return s.claims, s.err
}

func (s stubSessionValidator) CookieName() string {
	return testCookieName
}

type stubAccounts struct {
	user   users.User
	getErr error
}

func (s stubAccounts) Register(context.Context, users.RegisterInput) (users.User, error) {
	return users.User{}, errors.New("not implemented")
}

func (s stubAccounts) Authenticate(context.Context, string, string) (users.User, error) {
	return users.User{}, errors.New("not implemented")
}

func (s stubAccounts) GetByID(context.Context, string) (users.User, error) {
	return s.user, s.getErr
}

func (s stubAccounts) UpdateProfile(context.Context, string, users.ProfileUpdate) (users.User, error) {
	return users.User{}, errors.New("not implemented")
}

func (s stubAccounts) Delete(context.Context, string) error {
	return errors.New("not implemented")
}
