package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"memotags/internal/category"
	"memotags/internal/config"
	"memotags/internal/db/dbtest"
	"memotags/internal/hashtag"
	httpx "memotags/internal/http"
	"memotags/internal/memo"
	"memotags/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	return newServerWith(t, category.Default())
}

func newServerWith(t *testing.T, tax *category.Taxonomy) http.Handler {
	t.Helper()
	gdb := dbtest.Open(t)
	m := metrics.New("memotags")
	svc := &memo.Service{
		DB:         gdb,
		Extractor:  hashtag.Default(),
		Classifier: category.NewClassifier(tax, hashtag.DefaultMarker),
		Log:        zap.NewNop(),
		Metrics:    m,
	}
	return httpx.NewRouter(config.Config{}, httpx.Deps{
		Memos:   svc,
		Vocab:   &memo.Vocabulary{DB: gdb},
		Log:     zap.NewNop(),
		Metrics: m,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func create(t *testing.T, h http.Handler, content, secret string) uint64 {
	t.Helper()
	b, err := json.Marshal(map[string]string{"content": content, "secret": secret})
	require.NoError(t, err)
	rec := do(t, h, http.MethodPost, "/memos", string(b))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		ID uint64 `json:"id"`
	}
	decode(t, rec, &out)
	return out.ID
}

func TestCreateMemo(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPost, "/memos", `{"content":"오늘은 #기쁨 가득 #행복","secret":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	// Korean text goes out as UTF-8, not \u escapes.
	assert.Contains(t, rec.Body.String(), "#기쁨")

	var out struct {
		ID         uint64   `json:"id"`
		Content    string   `json:"content"`
		Hashtags   []string `json:"hashtags"`
		Categories []string `json:"categories"`
	}
	decode(t, rec, &out)
	assert.NotZero(t, out.ID)
	assert.Equal(t, "오늘은 #기쁨 가득 #행복", out.Content)
	assert.Equal(t, []string{"#기쁨", "#행복"}, out.Hashtags)
	assert.Equal(t, []string{"기쁨"}, out.Categories)
}

func TestCreateMemo_PasswordAlias(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPost, "/memos", `{"content":"note","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var out struct {
		ID uint64 `json:"id"`
	}
	decode(t, rec, &out)

	rec = do(t, h, http.MethodDelete, "/memos/"+itoa(out.ID), `{"secret":"pw"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateMemo_BadRequests(t *testing.T) {
	h := newServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed", `{"content":`},
		{"missing content", `{"secret":"pw"}`},
		{"missing secret", `{"content":"hi"}`},
		{"blank content", `{"content":"   ","secret":"pw"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/memos", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var out map[string]string
			decode(t, rec, &out)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestListAndGet(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodGet, "/memos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	first := create(t, h, "first #기쁨", "a")
	second := create(t, h, "second", "b")

	rec = do(t, h, http.MethodGet, "/memos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []memo.Summary
	decode(t, rec, &list)
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, second, list[1].ID)
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = do(t, h, http.MethodGet, "/memos/"+itoa(first), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got memo.Result
	decode(t, rec, &got)
	assert.Equal(t, []string{"#기쁨"}, got.Hashtags)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/memos/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/memos/abc", "").Code)
}

func TestUpdateMemo(t *testing.T) {
	h := newServer(t)
	id := create(t, h, "오늘 #기쁨", "pw")

	rec := do(t, h, http.MethodPut, "/memos/"+itoa(id), `{"content":"이제 #분노","secret":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		ID         uint64   `json:"id"`
		Content    string   `json:"content"`
		Hashtags   []string `json:"hashtags"`
		Categories []string `json:"categories"`
		Message    string   `json:"message"`
	}
	decode(t, rec, &out)
	assert.Equal(t, id, out.ID)
	assert.Equal(t, "이제 #분노", out.Content)
	assert.Equal(t, []string{"#분노"}, out.Hashtags)
	assert.Equal(t, []string{"분노"}, out.Categories)
	assert.NotEmpty(t, out.Message)
}

func TestUpdateMemo_StatusMapping(t *testing.T) {
	h := newServer(t)
	id := create(t, h, "keep", "pw")

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad id", "/memos/x", `{"content":"c","secret":"pw"}`, http.StatusBadRequest},
		{"malformed", "/memos/" + itoa(id), `nope`, http.StatusBadRequest},
		{"missing content", "/memos/" + itoa(id), `{"secret":"pw"}`, http.StatusBadRequest},
		{"unknown id", "/memos/999", `{"content":"c","secret":"pw"}`, http.StatusNotFound},
		{"wrong secret", "/memos/" + itoa(id), `{"content":"c","secret":"nope"}`, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, do(t, h, http.MethodPut, tc.path, tc.body).Code)
		})
	}

	var got memo.Result
	decode(t, do(t, h, http.MethodGet, "/memos/"+itoa(id), ""), &got)
	assert.Equal(t, "keep", got.Content)
}

func TestDeleteMemo(t *testing.T) {
	h := newServer(t)
	id := create(t, h, "bye #슬픔", "pw")

	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodDelete, "/memos/"+itoa(id), `{"secret":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/memos/"+itoa(id), `{}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/memos/999", `{"secret":"pw"}`).Code)

	rec := do(t, h, http.MethodDelete, "/memos/"+itoa(id), `{"secret":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Deleted memo.Summary `json:"deleted"`
		Message string       `json:"message"`
	}
	decode(t, rec, &out)
	assert.Equal(t, id, out.Deleted.ID)
	assert.Equal(t, "bye #슬픔", out.Deleted.Content)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/memos/"+itoa(id), "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/memos/"+itoa(id), `{"secret":"pw"}`).Code)
}

func TestCategoryRoutes(t *testing.T) {
	h := newServer(t)
	create(t, h, "좋은 날 #기쁨", "a")
	create(t, h, "아무것도", "b")
	create(t, h, "정말 #기쁨이 넘침", "c")

	rec := do(t, h, http.MethodGet, "/category", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cats struct {
		Categories map[string][]string `json:"categories"`
	}
	decode(t, rec, &cats)
	assert.Equal(t, map[string][]string{"기쁨": {"#기쁨", "#기쁨이"}}, cats.Categories)

	rec = do(t, h, http.MethodGet, "/category/"+url.PathEscape("기쁨"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []memo.Summary
	decode(t, rec, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "좋은 날 #기쁨", list[0].Content)

	rec = do(t, h, http.MethodGet, "/category/"+url.PathEscape("기쁨")+"?strip=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	assert.NotContains(t, list[0].Content, "#")

	rec = do(t, h, http.MethodGet, "/category/"+url.PathEscape("슬픔"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/category/nope", "").Code)
}

func TestCategoryRoute_EscapedNames(t *testing.T) {
	tax, err := category.NewTaxonomy([]category.Category{
		{Name: "a%41", Keywords: []string{"percent"}},
		{Name: "in/out", Keywords: []string{"slash"}},
	})
	require.NoError(t, err)
	h := newServerWith(t, tax)
	create(t, h, "#percent", "a")
	create(t, h, "#slash", "b")

	cases := []struct {
		path string
		want string
	}{
		// a literal %41 in the name must not be decoded a second time
		{"/category/a%2541", "#percent"},
		{"/category/in%2Fout", "#slash"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tc.path, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var list []memo.Summary
			decode(t, rec, &list)
			require.Len(t, list, 1)
			assert.Equal(t, tc.want, list[0].Content)
		})
	}
}

func TestTagsRoute(t *testing.T) {
	h := newServer(t)
	create(t, h, "#기쁨 #기분", "a")
	create(t, h, "#기쁨", "b")

	rec := do(t, h, http.MethodGet, "/tags?q="+url.QueryEscape("#기쁨"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []memo.TagCount
	decode(t, rec, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "#기쁨", out[0].Tag)
	assert.EqualValues(t, 2, out[0].Count)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	do(t, h, http.MethodGet, "/memos", "")
	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte(`memotags_http_requests_total{method="GET",route="/memos`)), rec.Body.String())
}

func preflight(t *testing.T, h http.Handler, origin string) http.Header {
	t.Helper()
	req := httptest.NewRequest(http.MethodOptions, "/memos", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Header()
}

func corsServer(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	gdb := dbtest.Open(t)
	svc := &memo.Service{
		DB:         gdb,
		Extractor:  hashtag.Default(),
		Classifier: category.NewClassifier(category.Default(), hashtag.DefaultMarker),
	}
	// nil logger and metrics are tolerated
	return httpx.NewRouter(cfg, httpx.Deps{Memos: svc, Vocab: &memo.Vocabulary{DB: gdb}})
}

func TestCORS(t *testing.T) {
	h := corsServer(t, config.Config{CORSAllowedOrigins: []string{"http://localhost:3000"}})
	assert.Equal(t, "http://localhost:3000", preflight(t, h, "http://localhost:3000").Get("Access-Control-Allow-Origin"))
	assert.Empty(t, preflight(t, h, "http://evil.test").Get("Access-Control-Allow-Origin"))
}

func TestCORS_AnyOrigin(t *testing.T) {
	h := corsServer(t, config.Config{CORSAllowedOrigins: []string{"*"}})
	assert.Equal(t, "*", preflight(t, h, "http://web.test").Get("Access-Control-Allow-Origin"))

	h = corsServer(t, config.Config{CORSAllowedOrigins: []string{"*"}, CORSAllowCredentials: true})
	hdr := preflight(t, h, "http://web.test")
	assert.Equal(t, "http://web.test", hdr.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", hdr.Get("Access-Control-Allow-Credentials"))
}
