package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/svxarena/tourneyzone/handlers"
	"github.com/svxarena/tourneyzone/middleware"
	"github.com/svxarena/tourneyzone/models"
)

var testSecret = []byte("routes-secret")

// newTestRouter wires handlers without services; the tests only reach
// middleware and request validation.
func newTestRouter(limiter *middleware.RateLimiter) http.Handler {
	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Auth:         handlers.NewAuthHandler(nil, string(testSecret)),
		Wallet:       handlers.NewWalletHandler(nil),
		Tournament:   handlers.NewTournamentHandler(nil),
		Registration: handlers.NewRegistrationHandler(nil),
		Admin:        handlers.NewAdminHandler(nil, nil),
		WebSocket:    handlers.NewWebSocketHandler(nil, nil, nil),
	}, Options{JWTSecret: testSecret, Limiter: limiter})
	return router
}

func tokenFor(t *testing.T, id int, role models.UserRole) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, &models.User{ID: id, Role: role, Username: "u"}, time.Now())
	require.NoError(t, err)
	return "Bearer " + token
}

func TestSetupRoutes_AccessControl(t *testing.T) {
	router := newTestRouter(nil)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"wallet needs a token", http.MethodGet, "/wallet", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/wallet/transactions", "Bearer nope", http.StatusUnauthorized},
		{"player cannot use admin routes", http.MethodGet, "/admin/dashboard", tokenFor(t, 7, models.RolePlayer), http.StatusForbidden},
		{"organizer cannot register teams", http.MethodGet, "/player/registrations", tokenFor(t, 3, models.RoleOrganizer), http.StatusForbidden},
		{"player cannot create tournaments", http.MethodPost, "/organizer/tournaments", tokenFor(t, 7, models.RolePlayer), http.StatusForbidden},
		{"bad tournament id", http.MethodGet, "/tournaments/abc", "", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestSetupRoutes_SystemEndpoints(t *testing.T) {
	router := newTestRouter(nil)

	for _, path := range []string{"/health", "/metrics", "/swagger/doc.json"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	var doc struct {
		Swagger string                 `json:"swagger"`
		Paths   map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Contains(t, doc.Paths, "/organizer/tournaments/{id}/results")
	assert.Contains(t, doc.Paths, "/admin/deposits/bulk")
}

func TestSetupRoutes_LoginIsRateLimited(t *testing.T) {
	router := newTestRouter(middleware.NewRateLimiter(0.001, 2, time.Minute))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusUnprocessableEntity, http.StatusUnprocessableEntity, http.StatusTooManyRequests}, codes)

	// Public reads are not limited.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tournaments/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
