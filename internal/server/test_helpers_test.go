package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yazok8/linktree-clone/internal/auth"
	"github.com/yazok8/linktree-clone/internal/database"
	"github.com/yazok8/linktree-clone/internal/ids"
	"github.com/yazok8/linktree-clone/internal/links"
	"github.com/yazok8/linktree-clone/internal/public"
	"github.com/yazok8/linktree-clone/internal/users"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testSigningSecret = "test-signing-secret"
	testIssuer        = "linktree-api"
	testAudience      = "linktree-web"
	testCookieName    = "linktree_session"
	testOrigin        = "http://localhost:3000"
	testPassword      = "wonderland-42"
)

type testServer struct {
	handler http.Handler
	db      *gorm.DB
	metrics *Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "server.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	userService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: ids.NewUUIDProvider(),
		Hasher:     auth.NewPasswordService(bcrypt.MinCost),
	})
	if err != nil {
		t.Fatalf("users service: %v", err)
	}
	linkService, err := links.NewService(links.ServiceConfig{Database: db, IDProvider: ids.NewUUIDProvider()})
	if err != nil {
		t.Fatalf("links service: %v", err)
	}
	publicService, err := public.NewService(public.Config{Users: userService, Links: linkService})
	if err != nil {
		t.Fatalf("public service: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		Audience:      testAudience,
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		Audience:      testAudience,
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("session validator: %v", err)
	}
	metrics, err := NewMetrics()
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Sessions:       validator,
		Tokens:         issuer,
		Accounts:       userService,
		Links:          linkService,
		Public:         publicService,
		Metrics:        metrics,
		AllowedOrigins: []string{testOrigin},
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return &testServer{handler: handler, db: db, metrics: metrics}
}

// do sends a JSON request. token, when set, is sent as a bearer header.
func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch typed := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(typed))
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func (s *testServer) register(t *testing.T, username string) {
	t.Helper()
	recorder := s.do(t, http.MethodPost, "/api/auth/registration", "", map[string]string{
		"username":   username,
		"email":      username + "@example.com",
		"password1":  testPassword,
		"password2":  testPassword,
		"first_name": "Test",
		"last_name":  "User",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("registration of %s failed: %d %s", username, recorder.Code, recorder.Body.String())
	}
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	recorder := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": testPassword,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login of %s failed: %d %s", username, recorder.Code, recorder.Body.String())
	}
	var response loginResponsePayload
	decodeBody(t, recorder, &response)
	return response.AccessToken
}

func (s *testServer) signUp(t *testing.T, username string) string {
	t.Helper()
	s.register(t, username)
	return s.login(t, username)
}

func (s *testServer) createLink(t *testing.T, token string, body map[string]any) linkPayload {
	t.Helper()
	recorder := s.do(t, http.MethodPost, "/api/links", token, body)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create link failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var link linkPayload
	decodeBody(t, recorder, &link)
	return link
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode body %q: %v", recorder.Body.String(), err)
	}
}
