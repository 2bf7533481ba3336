package authority

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dosada05/tournament-officiating/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayClient(t *testing.T) {
	var gotResult SubmitResultInput
	var gotStatus map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.Method + " " + r.URL.Path {
		case "GET /tournaments/7":
			io.WriteString(w, `{"tournament":{"id":7,"status":"STARTED"}}`)
		case "GET /tournaments/7/matches":
			io.WriteString(w, `{"matches":[{"id":"R1M1","state":"open"}]}`)
		case "POST /tournaments/7/matches/R1M1/result":
			json.NewDecoder(r.Body).Decode(&gotResult)
			w.WriteHeader(http.StatusNoContent)
		case "GET /tournaments/7/standings":
			io.WriteString(w, `{"standings":[{"rank":1,"name":"Alice","wins":2,"losses":0}]}`)
		case "PATCH /tournaments/7/status":
			json.NewDecoder(r.Body).Decode(&gotStatus)
			io.WriteString(w, `{}`)
		case "POST /tournaments/7/matches/R9/result":
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, `{"error":"invalid api key","kind":"auth"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := NewRelayClient(srv.URL+"/", 7, "tok", nil)

	status, err := c.TournamentStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarted, status)

	matches, err := c.ListMatches(ctx, c.Ref())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, models.MatchOpen, matches[0].State)

	require.NoError(t, c.SubmitResult(ctx, c.Ref(), "R1M1", "2-1", "11"))
	assert.Equal(t, SubmitResultInput{ScoreSummary: "2-1", WinnerID: "11"}, gotResult)

	standings, err := c.Standings(ctx, c.Ref())
	require.NoError(t, err)
	assert.Equal(t, "Alice", standings[0].Name)

	require.NoError(t, c.SetTournamentStatus(ctx, models.StatusCompleted))
	assert.Equal(t, "COMPLETED", gotStatus["status"])

	err = c.SubmitResult(ctx, c.Ref(), "R9", "1-0", "11")
	ae, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, ae.IsAuth(), "server-reported kind wins over the 502 status")
	assert.Equal(t, http.StatusBadGateway, ae.StatusCode)

	_, err = c.CreateBracket(ctx, CreateBracketInput{})
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestRelayClient_Unreachable(t *testing.T) {
	c := NewRelayClient("http://127.0.0.1:1", 7, "", nil)
	_, err := c.ListMatches(context.Background(), c.Ref())
	ae, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTransient, ae.Kind)
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["passcode"] != "open-sesame" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":"invalid passcode"}`)
			return
		}
		io.WriteString(w, `{"session":{"token":"tok","judge":{"id":"j-1","name":"`+in["name"]+`"},"role":"judge"}}`)
	}))
	defer srv.Close()

	s, err := Login(context.Background(), nil, srv.URL, "Alice", "open-sesame")
	require.NoError(t, err)
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, "Alice", s.Judge.Name)

	_, err = Login(context.Background(), nil, srv.URL, "Alice", "wrong")
	ae, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindAuth, ae.Kind)
}
