package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reverc/internal/server/core"
)

func newTestClient(t *testing.T, mux *http.ServeMux) (*Client, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	c := New(srv.URL + "/")
	c.Out = &out
	return c, &out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestUploadSendsMultipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload/{class}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cache", r.PathValue("class"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "player.c", hdr.Filename)
		assert.Equal(t, "int makeMove(void);", string(data))
		writeJSON(w, http.StatusOK, core.UploadResponse{CodeID: "abc"})
	})
	c, out := newTestClient(t, mux)

	resp, err := c.Upload("cache", "/tmp/src/player.c", []byte("int makeMove(void);"))
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.CodeID)
	assert.Contains(t, out.String(), "<player.c, 19 bytes>")
}

func TestErrorBodyDecoded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status/candidate/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, core.ErrorResponse{Error: "status not found", Code: "NOT_FOUND"})
	})
	c, out := newTestClient(t, mux)

	_, err := c.Status("candidate/missing")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "NOT_FOUND", se.Body.Code)
	assert.Contains(t, out.String(), "status not found")
}

func TestMoveRoutes(t *testing.T) {
	var paths []string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/move/", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var req core.MoveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "B", req.Turn)
		writeJSON(w, http.StatusOK, core.MoveResponse{Row: 2, Col: 3, Elapsed: 10})
	})
	c, _ := newTestClient(t, mux)

	req := core.MoveRequest{Board: [][]string{{"U"}}, Turn: "B", Size: 1}
	resp, err := c.Move("candidate/abc", req)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Col)
	_, err = c.Move("archive/lab8/alpha", req)
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/move/custom/candidate/abc", "/api/move/archive/lab8/alpha"}, paths)
}

func TestArchiveExists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/archive/lab8/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "alpha" {
			writeJSON(w, http.StatusOK, core.ExistsResponse{Exists: true})
			return
		}
		writeJSON(w, http.StatusNotFound, core.ErrorResponse{Error: "not found", Code: "NOT_FOUND"})
	})
	c, _ := newTestClient(t, mux)

	ok, err := c.ArchiveExists("lab8", "alpha")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ArchiveExists("lab8", "beta")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdminLoginStoresToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/login", func(w http.ResponseWriter, r *http.Request) {
		var req core.AdminLoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "curator-password" {
			writeJSON(w, http.StatusUnauthorized, core.ErrorResponse{Error: "invalid credentials", Code: "UNAUTHORIZED"})
			return
		}
		writeJSON(w, http.StatusOK, core.TokenResponse{Token: "tok", ExpiresAt: 1})
	})
	mux.HandleFunc("POST /api/admin/archive/{group}/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusCreated, core.StatusResponse{Status: "success"})
	})
	c, _ := newTestClient(t, mux)

	_, err := c.AdminLogin("wrong")
	assert.Error(t, err)
	assert.Empty(t, c.AuthToken)

	_, err = c.AdminLogin("curator-password")
	require.NoError(t, err)
	assert.Equal(t, "tok", c.AuthToken)

	st, err := c.PublishArchive("lab8", "alpha", "alpha.c", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "success", st.Status)
}

func TestRawRequestSetsJSONContentType(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/stats/increment", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, core.StatsResponse{TotalGames: 1})
	})
	c, out := newTestClient(t, mux)
	c.SetVerbose(true)

	require.NoError(t, c.RawRequest(http.MethodPost, "/api/stats/increment", `{}`))
	assert.Contains(t, out.String(), "\"total_games\": 1")
}
