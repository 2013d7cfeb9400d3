package command

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomatool/stepindex/stepdef"
)

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestServerSteps(t *testing.T) {
	f := &fakeFinder{defs: godogsDefinitions("/src")}
	s := newServer(f, "./godogs")
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/steps", nil))

	require.NoError(t, s.refresh(context.Background()))
	assert.Equal(t, []string{"./godogs"}, f.paths)

	var steps []stepdef.Definition
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/steps", &steps))
	assert.Len(t, steps, 3)
}

func TestServerMatch(t *testing.T) {
	s := newServer(&fakeFinder{defs: godogsDefinitions("/src")}, ".")
	require.NoError(t, s.refresh(context.Background()))
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	tests := []struct {
		name    string
		query   url.Values
		status  int
		methods []string
	}{
		{"match", url.Values{"step": {"I eat 5"}}, http.StatusOK, []string{"iEat"}},
		{"keyword filters", url.Values{"step": {"I eat 5"}, "keyword": {"Then"}}, http.StatusOK, []string{}},
		{"undefined", url.Values{"step": {"I sleep"}}, http.StatusOK, []string{}},
		{"missing step", url.Values{}, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var matches []stepdef.Definition
			status := getJSON(t, ts.URL+"/api/match?"+tt.query.Encode(), &matches)
			require.Equal(t, tt.status, status)
			if tt.methods == nil {
				return
			}
			got := []string{}
			for _, m := range matches {
				got = append(got, m.Method)
			}
			assert.Equal(t, tt.methods, got)
		})
	}
}

func TestServerFindFailure(t *testing.T) {
	s := newServer(&fakeFinder{err: errors.New("index unavailable")}, ".")
	assert.Error(t, s.refresh(context.Background()))

	ts := httptest.NewServer(s.routes())
	defer ts.Close()
	assert.Equal(t, http.StatusInternalServerError, getJSON(t, ts.URL+"/api/steps", nil))
}

func TestServerMetrics(t *testing.T) {
	ts := httptest.NewServer(newServer(&fakeFinder{}, ".").routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerWebSocket(t *testing.T) {
	f := &fakeFinder{defs: godogsDefinitions("/src")[:1]}
	s := newServer(f, ".")
	require.NoError(t, s.refresh(context.Background()))
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first WSMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "init", first.Type)
	assert.Len(t, first.Steps, 1)

	f.defs = godogsDefinitions("/src")
	s.update(context.Background(), []string{"godogs_test.go"})

	var update WSMessage
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "update", update.Type)
	assert.Len(t, update.Steps, 3)
	assert.Equal(t, []string{"godogs_test.go"}, update.ChangedFiles)

	f.err = errors.New("broken build")
	s.update(context.Background(), nil)

	var failed WSMessage
	require.NoError(t, conn.ReadJSON(&failed))
	assert.Equal(t, "error", failed.Type)
	assert.Equal(t, "broken build", failed.Error)
}
