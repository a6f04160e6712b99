package service

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/rexinehouse/catalog/internal/models"
)

const sessionKey = "session"

// Session is the authenticated identity carried through a request.
type Session struct {
	UserID uint
	Email  string
	Role   string
}

func (s Session) IsAdmin() bool { return s.Role == models.RoleAdmin }

// CurrentSession returns the session placed on the context by one of
// the guards, if any.
func CurrentSession(c echo.Context) (Session, bool) {
	s, ok := c.Get(sessionKey).(Session)
	return s, ok
}

// SetSession places an authenticated identity on the request context.
func SetSession(c echo.Context, s Session) {
	c.Set(sessionKey, s)
}

type TokenService struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

var errNoSession = errors.New("no usable session")

// authenticate resolves the caller's session from the access cookie,
// falling back to refresh-token rotation when the access token has
// expired. Rotation sets fresh cookies on the response.
func (t *TokenService) authenticate(c echo.Context) (Session, error) {
	if cookie, err := c.Cookie("accessToken"); err == nil {
		token, err := jwt.Parse(cookie.Value, func(j *jwt.Token) (interface{}, error) {
			return t.JWTSecret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err == nil && token.Valid {
			return sessionFromClaims(token.Claims.(jwt.MapClaims))
		}
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, errNoSession
		}
	}

	rfCookie, err := c.Cookie("refreshToken")
	if err != nil {
		return Session{}, errNoSession
	}

	newAccess, newRefresh, claims, err := t.RotateToken(rfCookie.Value)
	if err != nil {
		return Session{}, errNoSession
	}

	c.SetCookie(CreateCookie("accessToken", newAccess, "/", time.Now().Add(accessTokenTTL)))
	c.SetCookie(CreateCookie("refreshToken", newRefresh, "/", time.Now().Add(refreshTokenTTL)))

	return sessionFromClaims(claims)
}

// RequireUser admits any authenticated caller. Without a usable
// session the request is redirected to the login page.
func (t *TokenService) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := t.authenticate(c)
		if err != nil {
			return c.Redirect(http.StatusFound, "/login")
		}
		SetSession(c, s)
		return next(c)
	}
}

// RequireAdmin admits administrators only. A logged-in non-admin gets
// 403 rather than a redirect.
func (t *TokenService) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := t.authenticate(c)
		if err != nil {
			return c.Redirect(http.StatusFound, "/login")
		}
		if !s.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		SetSession(c, s)
		return next(c)
	}
}

// WithSession attaches a session when the caller presents one, and
// lets anonymous requests through untouched.
func (t *TokenService) WithSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s, err := t.authenticate(c); err == nil {
			SetSession(c, s)
		}
		return next(c)
	}
}

// RotateToken exchanges a valid refresh token for a fresh pair,
// revoking the old one.
func (t *TokenService) RotateToken(rawToken string) (string, string, jwt.MapClaims, error) {
	claims, err := ValidateRefresh(rawToken, t.RefreshSecret, t.DB)
	if err != nil {
		return "", "", nil, err
	}

	s, err := sessionFromClaims(claims)
	if err != nil {
		return "", "", nil, err
	}

	newAccess, err := SignAccessToken(s, t.JWTSecret)
	if err != nil {
		return "", "", nil, err
	}

	newRefresh, err := SignRefreshToken(s, t.RefreshSecret)
	if err != nil {
		return "", "", nil, err
	}

	if err := t.DB.Model(&models.RefreshToken{}).Where("token = ?", rawToken).Update("revoked", true).Error; err != nil {
		return "", "", nil, err
	}
	if err := SaveRefreshToken(t.DB, newRefresh, s.UserID); err != nil {
		return "", "", nil, err
	}

	return newAccess, newRefresh, claims, nil
}

func sessionFromClaims(claims jwt.MapClaims) (Session, error) {
	sub, ok := claims["sub"].(float64)
	if !ok {
		return Session{}, errNoSession
	}
	email, _ := claims["email"].(string)
	role, ok := claims["role"].(string)
	if !ok {
		return Session{}, errNoSession
	}
	return Session{UserID: uint(sub), Email: email, Role: role}, nil
}
