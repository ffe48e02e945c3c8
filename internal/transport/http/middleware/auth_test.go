package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/transport/http/middleware"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	currentUser func(ctx context.Context, token string) (*domain.User, error)
}

func (f *fakeResolver) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	return f.currentUser(ctx, token)
}

// newEngine protects GET /protected with Auth; the handler echoes the user id.
func newEngine(resolver middleware.UserResolver) *gin.Engine {
	r := gin.New()
	r.GET("/protected", middleware.Auth(resolver, discard), func(c *gin.Context) {
		user, ok := middleware.UserFrom(c)
		if !ok {
			c.String(http.StatusInternalServerError, "no user")
			return
		}
		c.String(http.StatusOK, user.ID)
	})
	return r
}

func resolverFor(valid string, user *domain.User) *fakeResolver {
	return &fakeResolver{currentUser: func(_ context.Context, token string) (*domain.User, error) {
		if token != valid {
			return nil, domain.ErrInvalidAuthCredentials
		}
		return user, nil
	}}
}

func TestAuth_MissingCredentials_Returns401(t *testing.T) {
	called := false
	resolver := &fakeResolver{currentUser: func(context.Context, string) (*domain.User, error) {
		called = true
		return nil, nil
	}}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	newEngine(resolver).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if called {
		t.Error("resolver should not be called without a token")
	}
}

func TestAuth_NonBearerScheme_Returns401(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	newEngine(resolverFor("good", &domain.User{ID: "u1"})).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_InvalidToken_Returns401(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	newEngine(resolverFor("good", &domain.User{ID: "u1"})).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_BearerHeader_SetsUser(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good")
	newEngine(resolverFor("good", &domain.User{ID: "user-abc"})).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "user-abc" {
		t.Errorf("body = %q, want user-abc", got)
	}
}

func TestAuth_CookieTakesPrecedence(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "good"})
	req.Header.Set("Authorization", "Bearer stale")
	newEngine(resolverFor("good", &domain.User{ID: "user-cookie"})).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "user-cookie" {
		t.Errorf("body = %q, want user-cookie", got)
	}
}

func TestAuth_ResolverErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"deleted user":    {domain.ErrUserNotFound, http.StatusNotFound},
		"missing user_id": {domain.ErrTokenPayloadMissingUserID, http.StatusUnauthorized},
		"store down":      {errors.Join(domain.ErrUserRead, errors.New("conn refused")), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resolver := &fakeResolver{currentUser: func(context.Context, string) (*domain.User, error) {
				return nil, tc.err
			}}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer anything")
			newEngine(resolver).ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}
