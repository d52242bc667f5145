package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/auth_service/internal/middleware"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/tokenstore"
	"github.com/Skotchmaster/auth_service/pkg/tokens"
)

type fakeNotifier struct {
	mu      sync.Mutex
	secrets map[string]string
}

func (n *fakeNotifier) Notify(_ context.Context, purpose, _, rawSecret string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.secrets == nil {
		n.secrets = make(map[string]string)
	}
	n.secrets[purpose] = rawSecret
	return nil
}

func (n *fakeNotifier) last(purpose string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.secrets[purpose]
}

type testEnv struct {
	T        *testing.T
	E        *echo.Echo
	A        *AuthHTTP
	DB       *gorm.DB
	Notifier *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshSession{}, &models.SingleUseToken{}))

	gormRepo := &repo.GormRepo{DB: db}
	n := &fakeNotifier{}

	svc := &service.AuthService{
		Repo: gormRepo,
		Tokens: &tokens.Codec{
			AccessSecret:  []byte("test-jwt-secret"),
			RefreshSecret: []byte("test-refresh-secret"),
		},
		Store:    &tokenstore.Store{Repo: gormRepo},
		Notifier: n,
	}

	return &testEnv{
		T:        t,
		E:        echo.New(),
		A:        &AuthHTTP{Svc: svc},
		DB:       db,
		Notifier: n,
	}
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func registerAndVerify(t *testing.T, env *testEnv) {
	t.Helper()

	payload := map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
		"password": "password123",
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/register", payload)
	require.NoError(t, env.A.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	raw := env.Notifier.last(models.PurposeEmailVerification)
	require.NotEmpty(t, raw)

	recVerify, cVerify := env.doJSONRequest(http.MethodGet, "/verify-email?token="+raw, nil)
	require.NoError(t, env.A.VerifyEmail(cVerify))
	require.Equal(t, http.StatusOK, recVerify.Code)
}

func loginTokens(t *testing.T, env *testEnv) (string, string) {
	t.Helper()

	payload := map[string]string{"email": "alice@x.com", "password": "password123"}
	rec, c := env.doJSONRequest(http.MethodPost, "/login", payload)
	require.NoError(t, env.A.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	return resp.AccessToken, resp.RefreshToken
}

func TestRegister_SuccessAndConflict(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
		"password": "password123",
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/register", payload)
	require.NoError(t, env.A.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "alice", resp.User.Username)
	require.Equal(t, "alice@x.com", resp.User.Email)
	require.False(t, resp.User.EmailVerified)
	require.NotContains(t, rec.Body.String(), "password123")

	_, cDup := env.doJSONRequest(http.MethodPost, "/register", payload)
	err := env.A.Register(cDup)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)
}

func TestRegister_InvalidInput(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{"username": "alice", "email": "alice@x.com", "password": "short"}
	_, c := env.doJSONRequest(http.MethodPost, "/register", payload)

	err := env.A.Register(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestLogin_UnverifiedEmail_Forbidden(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
		"password": "password123",
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/register", payload)
	require.NoError(t, env.A.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	_, cLogin := env.doJSONRequest(http.MethodPost, "/login", map[string]string{
		"email":    "alice@x.com",
		"password": "password123",
	})
	err := env.A.Login(cLogin)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestLogin_SetsSessionCookies(t *testing.T) {
	env := newTestEnv(t)
	registerAndVerify(t, env)

	payload := map[string]string{"email": "alice@x.com", "password": "password123"}
	rec, c := env.doJSONRequest(http.MethodPost, "/login", payload)
	require.NoError(t, env.A.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	cookieNames := map[string]bool{}
	for _, ck := range rec.Result().Cookies() {
		cookieNames[ck.Name] = true
	}
	require.True(t, cookieNames["accessToken"])
	require.True(t, cookieNames["refreshToken"])
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	env := newTestEnv(t)
	registerAndVerify(t, env)
	_, refreshToken := loginTokens(t, env)

	cookie := &http.Cookie{Name: "refreshToken", Value: refreshToken}
	rec, c := env.doJSONRequest(http.MethodPost, "/refresh", nil, cookie)
	require.NoError(t, env.A.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RefreshToken)
	require.NotEqual(t, refreshToken, resp.RefreshToken)

	_, cReuse := env.doJSONRequest(http.MethodPost, "/refresh", nil, cookie)
	err := env.A.Refresh(cReuse)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRefresh_MissingCookie_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/refresh", nil)
	err := env.A.Refresh(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestLogOut_AlwaysSucceeds(t *testing.T) {
	env := newTestEnv(t)
	registerAndVerify(t, env)
	_, refreshToken := loginTokens(t, env)

	cookie := &http.Cookie{Name: "refreshToken", Value: refreshToken}

	rec, c := env.doJSONRequest(http.MethodPost, "/logout", nil, cookie)
	require.NoError(t, env.A.LogOut(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// Second logout with the consumed token is still a success.
	rec2, c2 := env.doJSONRequest(http.MethodPost, "/logout", nil, cookie)
	require.NoError(t, env.A.LogOut(c2))
	require.Equal(t, http.StatusOK, rec2.Code)

	// And so is logout with no cookie at all.
	rec3, c3 := env.doJSONRequest(http.MethodPost, "/logout", nil)
	require.NoError(t, env.A.LogOut(c3))
	require.Equal(t, http.StatusOK, rec3.Code)
}

func TestForgotPassword_AlwaysGeneric(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodPost, "/forgot-password", map[string]string{
		"email": "nobody@x.com",
	})
	require.NoError(t, env.A.ForgotPassword(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "if the email exists")
}

func TestResetPassword_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/reset-password", map[string]string{
		"token":    "bogus",
		"password": "newpassword456",
	})
	err := env.A.ResetPassword(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestVerifyEmail_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodGet, "/verify-email", nil)
	err := env.A.VerifyEmail(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestMe_ReturnsPublicProjection(t *testing.T) {
	env := newTestEnv(t)
	registerAndVerify(t, env)
	accessToken, _ := loginTokens(t, env)

	subject, err := env.A.Svc.Tokens.VerifyAccess(accessToken)
	require.NoError(t, err)

	rec, c := env.doJSONRequest(http.MethodGet, "/me", nil)
	c.Set(middleware.CtxUserID, subject)
	require.NoError(t, env.A.Me(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "alice@x.com")
	require.NotContains(t, rec.Body.String(), "password")
}
