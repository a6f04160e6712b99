package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rexinehouse/catalog/internal/handlers"
	"github.com/rexinehouse/catalog/internal/models"
	"github.com/rexinehouse/catalog/internal/service"
	"github.com/rexinehouse/catalog/internal/upload"
)

var (
	testJWTSecret     = []byte("test-jwt-secret")
	testRefreshSecret = []byte("test-refresh-secret")
)

func newTestServer(t *testing.T) (*echo.Echo, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}, &models.Star{}, &models.RefreshToken{}))

	uploads, err := upload.NewStore(t.TempDir())
	require.NoError(t, err)

	tokens := &service.TokenService{DB: db, JWTSecret: testJWTSecret, RefreshSecret: testRefreshSecret}

	e := echo.New()
	Register(e, &Deps{
		DB:          db,
		AuthHandler: &handlers.AuthHandler{DB: db, JWTSecret: testJWTSecret, RefreshSecret: testRefreshSecret},
		Products:    &handlers.ProductHandler{DB: db, Uploads: uploads},
		Stars:       &handlers.StarHandler{DB: db},
		Uploads:     &handlers.UploadHandler{Uploads: uploads},
		Tokens:      tokens,
	})
	return e, db
}

func accessCookie(t *testing.T, s service.Session) *http.Cookie {
	token, err := service.SignAccessToken(s, testJWTSecret)
	require.NoError(t, err)
	return &http.Cookie{Name: "accessToken", Value: token}
}

func TestAdminRoutesRedirectAnonymousToLogin(t *testing.T) {
	e, _ := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/admin/dashboard"},
		{http.MethodPost, "/api/v1/admin/products"},
		{http.MethodDelete, "/api/v1/admin/products/1"},
		{http.MethodPost, "/api/v1/products/1/star"},
		{http.MethodGet, "/api/v1/user/dashboard"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusFound, rec.Code, route.path)
		require.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation), route.path)
	}
}

func TestAdminRoutesRejectNonAdmin(t *testing.T) {
	e, _ := newTestServer(t)

	ck := accessCookie(t, service.Session{UserID: 1, Email: "user@example.com", Role: models.RoleUser})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRouteAdmitsAdmin(t *testing.T) {
	e, _ := newTestServer(t)

	ck := accessCookie(t, service.Session{UserID: 1, Email: "admin@example.com", Role: models.RoleAdmin})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestExpiredAccessTokenRotatesThroughRefresh(t *testing.T) {
	e, db := newTestServer(t)

	sess := service.Session{UserID: 7, Email: "admin@example.com", Role: models.RoleAdmin}

	expiredClaims := jwt.MapClaims{
		"sub":   sess.UserID,
		"email": sess.Email,
		"role":  sess.Role,
		"exp":   time.Now().Add(-time.Minute).Unix(),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString(testJWTSecret)
	require.NoError(t, err)

	refresh, err := service.SignRefreshToken(sess, testRefreshSecret)
	require.NoError(t, err)
	require.NoError(t, service.SaveRefreshToken(db, refresh, sess.UserID))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: expired})
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	fresh := map[string]bool{}
	for _, ck := range rec.Result().Cookies() {
		fresh[ck.Name] = true
	}
	require.True(t, fresh["accessToken"])
	require.True(t, fresh["refreshToken"])

	// The used refresh token is revoked by rotation.
	var stored models.RefreshToken
	require.NoError(t, db.Where("token = ?", refresh).First(&stored).Error)
	require.True(t, stored.Revoked)
}

func TestHealthAndContact(t *testing.T) {
	e, _ := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contact", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
