package cms

import (
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"gorm.io/gorm"

	"github.com/gagglehome/backend/models"
)

const (
	accessScope    = "gagglehome.access"
	accessTTL      = 24 * time.Hour
	userContextKey = "gagglehome-user"
)

func makeToken(subject string, scope string, exp time.Time) jwt.Token {
	tok := jwt.New()
	tok.Set("scope", scope)
	tok.Set("sub", subject)
	tok.Set("iat", time.Now().Unix())
	tok.Set("exp", exp.Unix())
	return tok
}

func (s *Server) createAuthTokenForUser(u *models.User) (string, error) {
	tok := makeToken(strconv.FormatUint(uint64(u.ID), 10), accessScope, time.Now().Add(accessTTL))
	tok.Set("handle", u.Handle)

	sig, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.cfg.JWTSigningKey))
	if err != nil {
		return "", err
	}
	return string(sig), nil
}

// authMiddleware resolves an optional bearer token into the request
// user. Requests without a token proceed anonymously; guards on staff
// routes reject them later.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		hdr := c.Request().Header.Get(echo.HeaderAuthorization)
		if hdr == "" {
			return next(c)
		}
		raw := strings.TrimPrefix(hdr, "Bearer ")
		if raw == hdr {
			return echo.NewHTTPError(http.StatusUnauthorized, "malformed authorization header")
		}

		tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, s.cfg.JWTSigningKey), jwt.WithValidate(true))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		scope, _ := tok.Get("scope")
		if scope != accessScope {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token scope")
		}

		uid, err := strconv.ParseUint(tok.Subject(), 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
		}

		var u models.User
		if err := s.db.First(&u, uint(uid)).Error; err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
		}

		c.Set(userContextKey, &u)
		return next(c)
	}
}

func (s *Server) currentUser(c echo.Context) *models.User {
	u, _ := c.Get(userContextKey).(*models.User)
	return u
}

func (s *Server) isStaff(c echo.Context) bool {
	u := s.currentUser(c)
	return u != nil && u.Admin
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.currentUser(c) == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		return next(c)
	}
}

func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u := s.currentUser(c)
		if u == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		if !u.Admin {
			return echo.NewHTTPError(http.StatusForbidden, "staff access required")
		}
		return next(c)
	}
}

func userJSON(u *models.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"username":   u.Handle,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"is_staff":   u.Admin,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var body loginRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if body.Username == "" || body.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	var u models.User
	if err := s.db.First(&u, "handle = ?", body.Username).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			s.log.Warn("failed login attempt", "username", body.Username)
			return ErrInvalidUsernameOrPassword
		}
		return err
	}
	if err := verifyPassword(u.Password, body.Password); err != nil {
		s.log.Warn("failed login attempt", "username", body.Username)
		return err
	}

	tok, err := s.createAuthTokenForUser(&u)
	if err != nil {
		return err
	}

	s.log.Info("user logged in", "username", u.Handle)
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"token":   tok,
		"user":    userJSON(&u),
	})
}

type signupRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func validateEmail(email string) error {
	_, err := mail.ParseAddress(email)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email format")
	}
	return nil
}

func (s *Server) handleSignup(c echo.Context) error {
	var body signupRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	body.FirstName = strings.TrimSpace(body.FirstName)
	body.LastName = strings.TrimSpace(body.LastName)
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))

	if body.FirstName == "" || body.LastName == "" || body.Email == "" || body.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "all fields are required")
	}
	if err := validateEmail(body.Email); err != nil {
		return err
	}
	if len(body.Password) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
	}

	var existing int64
	s.db.Model(&models.User{}).Where("email = ?", body.Email).Count(&existing)
	if existing > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "email already registered")
	}

	hashed, err := encodePassword(body.Password)
	if err != nil {
		return err
	}

	// The email doubles as the login handle for self-service signups.
	u := models.User{
		Handle:    body.Email,
		Email:     body.Email,
		Password:  hashed,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	}
	if err := s.db.Create(&u).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "email already registered")
	}

	tok, err := s.createAuthTokenForUser(&u)
	if err != nil {
		return err
	}

	s.log.Info("user created", "email", body.Email)
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Account created successfully",
		"token":   tok,
		"user":    userJSON(&u),
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	// Bearer tokens are stateless; the client discards its copy.
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (s *Server) handleAuthStatus(c echo.Context) error {
	u := s.currentUser(c)
	if u == nil {
		return c.JSON(http.StatusOK, map[string]any{"authenticated": false})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          userJSON(u),
	})
}
