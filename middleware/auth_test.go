package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dosada05/tournament-officiating/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParser struct {
	ParseTokenFn func(token string) (*services.JudgeClaims, error)
}

func (f fakeParser) ParseToken(token string) (*services.JudgeClaims, error) {
	return f.ParseTokenFn(token)
}

func parserFor(valid string, claims *services.JudgeClaims) fakeParser {
	return fakeParser{ParseTokenFn: func(token string) (*services.JudgeClaims, error) {
		if token == valid {
			return claims, nil
		}
		return nil, errors.New("bad token")
	}}
}

func TestAuthenticate(t *testing.T) {
	claims := &services.JudgeClaims{JudgeID: "j1", Name: "Alice", Role: services.RoleJudge}
	var seen *services.JudgeClaims
	h := Authenticate(parserFor("good", claims))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := GetJudgeFromContext(r.Context())
		require.NoError(t, err)
		seen = c
	}))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer header", "Bearer good", "", http.StatusOK},
		{"query token", "", "?token=good", http.StatusOK},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
		{"non bearer scheme", "Basic good", "?token=good", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, claims, seen)
			} else {
				assert.Nil(t, seen)
				assert.Contains(t, rec.Body.String(), `"kind":"auth"`)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Authorize(services.RoleOrganizer)(ok)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithJudge(req.Context(), &services.JudgeClaims{JudgeID: "j", Role: services.RoleJudge}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = req.WithContext(WithJudge(req.Context(), &services.JudgeClaims{JudgeID: "o", Role: services.RoleOrganizer}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
