package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rexinehouse/catalog/internal/hash"
	"github.com/rexinehouse/catalog/internal/models"
	"github.com/rexinehouse/catalog/internal/service"
	"github.com/rexinehouse/catalog/internal/upload"
)

type testEnv struct {
	T       *testing.T
	E       *echo.Echo
	DB      *gorm.DB
	Uploads *upload.Store
	A       *AuthHandler
	P       *ProductHandler
	S       *StarHandler
	U       *UploadHandler
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.Star{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := initTestDB(t)

	uploads, err := upload.NewStore(t.TempDir())
	require.NoError(t, err)

	jwtSecret := []byte("test-jwt-secret")
	refreshSecret := []byte("test-refresh-secret")

	return &testEnv{
		T:       t,
		E:       echo.New(),
		DB:      db,
		Uploads: uploads,
		A:       &AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret},
		P:       &ProductHandler{DB: db, Uploads: uploads},
		S:       &StarHandler{DB: db},
		U:       &UploadHandler{Uploads: uploads},
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

type filePart struct {
	Field    string
	Filename string
	Content  string
}

func (env *testEnv) doMultipartRequest(path string, fields map[string]string, files []filePart) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(env.T, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		require.NoError(env.T, err)
		_, err = io.WriteString(part, f.Content)
		require.NoError(env.T, err)
	}
	require.NoError(env.T, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) createUser(email, password, role string) models.User {
	passwordHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)

	user := models.User{Email: email, PasswordHash: passwordHash, Role: role}
	require.NoError(env.T, env.DB.Create(&user).Error)
	return user
}

func sessionOf(user models.User) service.Session {
	return service.Session{UserID: user.ID, Email: user.Email, Role: user.Role}
}
