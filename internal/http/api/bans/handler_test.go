package bans

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/banlist/internal/access"
	"github.com/router-for-me/banlist/internal/bans"
	"github.com/router-for-me/banlist/internal/models"
)

const leakedCause = "dial tcp 10.1.2.3:5432: connection refused"

// brokenStore fails every call with an error carrying infrastructure detail.
type brokenStore struct{}

func (brokenStore) List(context.Context) ([]models.Ban, error) { return nil, errors.New(leakedCause) }
func (brokenStore) Add(context.Context, int32, string) error   { return errors.New(leakedCause) }
func (brokenStore) Get(context.Context, int32) (*models.Ban, error) {
	return nil, errors.New(leakedCause)
}
func (brokenStore) Delete(context.Context, int32) error { return errors.New(leakedCause) }

func adminResolver() access.Resolver {
	return access.ResolverFunc(func(_ context.Context, token string) (access.Permissions, error) {
		if token == "" {
			return access.Permissions{}, access.ErrNoCredentials
		}
		return access.NewPermissions("test", true), nil
	})
}

func setupBanRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := NewHandler(bans.NewService(adminResolver(), brokenStore{}, bans.Options{}), access.TokenSource{Scheme: "Bearer"})
	router := gin.New()
	router.GET("/bans", handler.List)
	router.POST("/bans", handler.Create)
	router.GET("/bans/:id", handler.Get)
	router.DELETE("/bans/:id", handler.Delete)
	return router
}

func TestInternalErrorsHideCause(t *testing.T) {
	router := setupBanRouter(t)

	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/bans", nil),
		httptest.NewRequest(http.MethodPost, "/bans", bytes.NewBufferString(`[{"id":1,"reason":"x"}]`)),
		httptest.NewRequest(http.MethodGet, "/bans/1", nil),
		httptest.NewRequest(http.MethodDelete, "/bans/1", nil),
	}
	for _, req := range requests {
		req.Header.Set("Authorization", "Bearer admin")
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s %s: expected status 500, got %d", req.Method, req.URL.Path, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "10.1.2.3") || strings.Contains(rec.Body.String(), "refused") {
			t.Fatalf("%s %s: body leaks cause: %s", req.Method, req.URL.Path, rec.Body.String())
		}
	}
}

func TestCreateRejectsInvalidJSON(t *testing.T) {
	router := setupBanRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/bans", bytes.NewBufferString(`{"id":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer admin")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRespondErrorWithPlainError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/bans", nil)

	respondError(c, errors.New(leakedCause))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"error":"internal error"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestRespondErrorUsesKindStatus(t *testing.T) {
	router := setupBanRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bans", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"error":"missing token"}` {
		t.Fatalf("unexpected body %s", body)
	}
}
