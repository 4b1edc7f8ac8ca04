package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/domain"
)

func TestUserController_GetMe(t *testing.T) {
	svc := &fakeUserService{user: &domain.User{ID: "community-1", Name: "Club"}}
	rr := httptest.NewRecorder()
	NewUserController(testLogger, svc).GetMe(rr, newRequest(http.MethodGet, "/users/me", "", communityCaller, nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var user domain.User
	assert.Nil(t, decodeEnvelope(t, rr, &user))
	assert.Equal(t, "Club", user.Name)
	assert.Equal(t, communityCaller, svc.lastCaller)
}

func TestUserController_GetMe_Anonymous(t *testing.T) {
	svc := &fakeUserService{err: domain.ErrUnauthorized}
	rr := httptest.NewRecorder()
	NewUserController(testLogger, svc).GetMe(rr, newRequest(http.MethodGet, "/users/me", "", domain.Caller{}, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUserController_UpdateMe(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"name only", `{"name":"New"}`, http.StatusOK},
		{"label only", `{"display_label":"Cultural Club"}`, http.StatusOK},
		{"empty body", `{}`, http.StatusBadRequest},
		{"unknown field", `{"role":"superadmin"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUserService{user: &domain.User{ID: "community-1"}}
			rr := httptest.NewRecorder()
			NewUserController(testLogger, svc).UpdateMe(rr, newRequest(http.MethodPatch, "/users/me", tt.body, communityCaller, nil))
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestUserController_Likes(t *testing.T) {
	svc := &fakeUserService{events: []*domain.Event{{ID: "e1"}}}
	c := NewUserController(testLogger, svc)
	path := map[string]string{"eventID": "e1"}

	rr := httptest.NewRecorder()
	c.LikeEvent(rr, newRequest(http.MethodPut, "/users/me/liked-events/e1", "", communityCaller, path))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "e1", svc.lastLikedID)

	rr = httptest.NewRecorder()
	c.UnlikeEvent(rr, newRequest(http.MethodDelete, "/users/me/liked-events/e1", "", communityCaller, path))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "e1", svc.lastUnlikedID)

	rr = httptest.NewRecorder()
	c.ListLikedEvents(rr, newRequest(http.MethodGet, "/users/me/liked-events", "", communityCaller, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var events []domain.Event
	decodeEnvelope(t, rr, &events)
	assert.Len(t, events, 1)

	svc.err = domain.ErrNotFound
	rr = httptest.NewRecorder()
	c.LikeEvent(rr, newRequest(http.MethodPut, "/users/me/liked-events/hidden", "", communityCaller, map[string]string{"eventID": "hidden"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
