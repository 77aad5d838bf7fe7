package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/internal/document/repository"
	"collabdocs/internal/document/service"
	"collabdocs/middleware"
	"collabdocs/socket"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, checks ...HealthCheck) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewDocumentRepository(db)
	hub := socket.NewHub(repo)
	svc := service.NewDocumentService(repo, nil, hub)
	return Setup(svc, hub, "secret", checks...), mock
}

func TestHealthz(t *testing.T) {
	healthy, _ := setup(t, func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down, _ := setup(t, func(context.Context) error { return errors.New("db down") })
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	h, _ := setup(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIListsDocuments(t *testing.T) {
	h, mock := setup(t)
	at := time.Now()
	mock.ExpectQuery("ORDER BY last_updated_at DESC").WillReturnRows(sqlmock.NewRows([]string{
		"id", "title", "content", "owner_email", "owner_name", "collaborators",
		"last_updated_by_email", "last_updated_by_name", "last_updated_at", "created_at",
	}).AddRow("d1", "T", "", "a@example.com", "A", []byte("{a@example.com}"), "a@example.com", "A", at, at))

	token, err := middleware.SignToken("secret", model.Identity{Email: "a@example.com", Name: "A"}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"d1"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
