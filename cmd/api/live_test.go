package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multitask/scoreboard/src/domain/signature"
)

func dialLive(t *testing.T, ts *httptest.Server, key string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/scores/live"
	header := http.Header{}
	if key != "" {
		header.Set(apiKeyHeader, key)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readSnapshot(t *testing.T, conn *websocket.Conn) []ScoreResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var out []ScoreResponse
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestServer_LiveScores(t *testing.T) {
	now := time.Unix(1710000000, 0).UTC()
	srv := newTestServer(t, now)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := dialLive(t, ts, testAPIKey)
	require.NoError(t, err)
	defer conn.Close()

	assert.Empty(t, readSnapshot(t, conn))

	unix := now.Unix()
	rec := submit(t, srv, fmt.Sprintf(`{"playerName":"Ana","score":200,"timestamp":%d}`, unix), signature.Sign("Ana", 200, unix, testSecret))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	out := readSnapshot(t, conn)
	require.Len(t, out, 1)
	assert.Equal(t, "Ana", out[0].PlayerName)
	assert.Equal(t, int64(200), out[0].Score)
}

func TestServer_LiveScoresRequiresAPIKey(t *testing.T) {
	srv := newTestServer(t, time.Now())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, resp, err := dialLive(t, ts, "")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLiveFeed_PublishDoesNotBlock(t *testing.T) {
	feed := newLiveFeed()
	ch := feed.subscribe()

	feed.publish()
	feed.publish()

	assert.Len(t, ch, 1)
	feed.unsubscribe(ch)
	feed.publish()
	assert.Len(t, ch, 1)
}
