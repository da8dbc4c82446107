package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/commentservice"
	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/contentservice"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, h http.Handler) *testServer {
	ts := httptest.NewServer(h)

	t.Cleanup(ts.Close)

	return &testServer{ts}
}

func readResponse(t *testing.T, res *http.Response) (int, http.Header, envelope) {
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	var envelope envelope
	err = json.Unmarshal(responseBody, &envelope)
	if err != nil {
		t.Fatal(err)
	}

	return res.StatusCode, res.Header, envelope
}

const testPost = `---
title: "Hill Crest Construction Update"
excerpt: "Progress on the Hill Crest residency."
date: 2025-03-01
image: /images/hill-crest.webp
readTime: 4 min read
keywords: [construction, update]
---
## Progress

The structure is complete.

<Callout type="info">Handover is planned for December.</Callout>
`

func testConfig() *common.Config {
	return &common.Config{
		Environment:    "testing",
		Version:        "test",
		TrustedOrigins: []string{"http://example.com"},
		TrustedProxies: []string{"127.0.0.1", "::1"},
		Limiter:        common.LimiterConfig{Enabled: false},
	}
}

// newTestApplication wires the application against a Postgres container and a temporary content directory.
func newTestApplication(t *testing.T) (*application, *sql.DB, *commentservice.MockCaptcha) {
	db := common.TestDB("file://../migrations", t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	contentDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "hill-crest-update.mdx"), []byte(testPost), 0o644))

	store, err := contentservice.NewFileStore(t.TempDir())
	require.NoError(t, err)

	compiler, err := contentservice.NewCompiler(contentservice.DefaultCompileOptions())
	require.NoError(t, err)

	manager := contentservice.NewManager(contentservice.NewContentStore(contentDir), store, compiler,
		contentservice.NewStats(), common.NewCache(time.Minute, time.Minute), logger, 2)

	captcha := new(commentservice.MockCaptcha)
	captcha.On("Verify", "valid-token", mock.Anything).Return(nil)
	captcha.On("Verify", mock.Anything, mock.Anything).Return(commentservice.ErrCaptchaFailed)

	cfg := testConfig()
	proxies, err := newProxySet(cfg.TrustedProxies)
	require.NoError(t, err)

	app := &application{
		config:         cfg,
		logger:         logger,
		contentManager: manager,
		commentService: commentservice.NewCommentService(db, common.NewCache(time.Minute, time.Minute), &commentservice.MockProducer{}, captcha, manager,
			commentservice.DefaultModerationConfig(), commentservice.RateLimitConfig{Limit: 5, Window: time.Hour}, logger),
		proxies: proxies,
	}

	return app, db, captcha
}

func (ts *testServer) do(t *testing.T, method, path string, payload any, headers map[string]string) (int, http.Header, envelope) {
	var body io.Reader
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(jsonPayload)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return readResponse(t, res)
}

func (ts *testServer) get(t *testing.T, path string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodGet, path, nil, nil)
}

func (ts *testServer) post(t *testing.T, path string, payload any, ip string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodPost, path, payload, map[string]string{"X-Forwarded-For": ip})
}

func commentPath(slug string) string {
	return fmt.Sprintf("/v1/comments/%s", slug)
}
