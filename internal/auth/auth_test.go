package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	s := NewService("secret", time.Hour)
	token, err := s.IssueToken(Identity{UserID: "user_1", DisplayName: "Ana"})
	require.NoError(t, err)

	id, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "user_1", DisplayName: "Ana"}, id)
}

func TestValidateRejects(t *testing.T) {
	s := NewService("secret", time.Hour)
	token, err := s.IssueToken(Identity{UserID: "user_1"})
	require.NoError(t, err)

	_, err = NewService("other", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	later := NewService("secret", time.Hour)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	s := NewService("secret", time.Hour)
	h := s.AuthMiddleware(http.HandlerFunc(Me))

	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Basic abc",
		"token":   "Bearer abc",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	token, err := s.IssueToken(Identity{UserID: "user_1", DisplayName: "Ana"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"user_1","displayName":"Ana"}`, rec.Body.String())
}
