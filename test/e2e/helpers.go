//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/cloo-solutions/reportqa/internal/api/handlers"
	"github.com/cloo-solutions/reportqa/internal/app"
	"github.com/cloo-solutions/reportqa/internal/database"
	"github.com/cloo-solutions/reportqa/internal/server"
	"github.com/cloo-solutions/reportqa/internal/session"
	"github.com/cloo-solutions/reportqa/internal/storage"
	"github.com/cloo-solutions/reportqa/internal/testutil"
)

const testBucket = "e2e-uploads"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	S3C        *testutil.S3Container
	App        *app.App
	Archiver   *storage.S3Archiver
	Generator  *testutil.StubGenerator
	Server     *httptest.Server
	HTTPClient *http.Client
}

// APIResponse is a decoded response envelope.
type APIResponse struct {
	Status  int
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

// SetupE2EEnv starts Postgres and S3 containers and serves the full router backed
// by them. Model calls go to deterministic in-process providers.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewS3Container(ctx, t)
	accessKey, secretKey := s3C.Credentials()

	cfg := testutil.Config(t)
	cfg.StoreBackend = "postgres"
	cfg.DatabaseURL = pgC.ConnectionString()
	cfg.MigrationsPath = "file://../../migrations"
	cfg.S3Endpoint = s3C.Endpoint()
	cfg.S3AccessKey = accessKey
	cfg.S3SecretKey = secretKey
	cfg.S3Bucket = testBucket

	var err error
	for i := 0; i < 5; i++ {
		if err = database.MigrateUp(cfg.DatabaseURL, cfg.MigrationsPath); err == nil {
			break
		}
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	gen := &testutil.StubGenerator{Reply: "Revenue grew 10% in 2023."}
	a, err := app.NewWithProviders(ctx, cfg, app.Providers{
		Embedder:  &testutil.HashEmbedder{},
		Generator: gen,
	})
	if err != nil {
		t.Fatalf("failed to wire app: %v", err)
	}

	archiver, err := storage.NewS3Archiver(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		Bucket:          testBucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 archiver: %v", err)
	}

	sessions := session.NewRegistry()
	router := server.NewRouter(server.RouterConfig{
		SessionHandler:    handlers.NewSessionHandler(a.Controller, sessions),
		CollectionHandler: handlers.NewCollectionHandler(a.Controller, sessions),
	})

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		S3C:        s3C,
		App:        a,
		Archiver:   archiver,
		Generator:  gen,
		Server:     httptest.NewServer(router),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.App != nil {
		e.App.Close()
	}
	if e.S3C != nil {
		e.S3C.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Do sends a JSON request and decodes the envelope.
func (e *E2ETestEnv) Do(method, path string, body any) *APIResponse {
	e.T.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.T.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, reader)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req)
}

// Upload posts files (name -> content) to a session with the given form fields.
func (e *E2ETestEnv) Upload(sessionID string, fields map[string]string, files map[string]string) *APIResponse {
	e.T.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			e.T.Fatalf("failed to write field: %v", err)
		}
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			e.T.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write([]byte(files[name])); err != nil {
			e.T.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		e.T.Fatalf("failed to close multipart writer: %v", err)
	}

	req, err := http.NewRequestWithContext(e.Ctx, http.MethodPost,
		fmt.Sprintf("%s/sessions/%s/documents", e.Server.URL, sessionID), &buf)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.send(req)
}

func (e *E2ETestEnv) send(req *http.Request) *APIResponse {
	e.T.Helper()
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	out := &APIResponse{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusNoContent {
		return out
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		e.T.Fatalf("failed to decode response (%d): %v", resp.StatusCode, err)
	}
	return out
}

// Decode unmarshals the data of a successful response.
func (e *E2ETestEnv) Decode(resp *APIResponse, v any) {
	e.T.Helper()
	if resp.Error != "" {
		e.T.Fatalf("unexpected error response (%d): %s", resp.Status, resp.Error)
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		e.T.Fatalf("failed to decode data: %v", err)
	}
}

// NewSession creates a session and returns its state.
func (e *E2ETestEnv) NewSession() session.AppState {
	e.T.Helper()
	var state session.AppState
	e.Decode(e.Do(http.MethodPost, "/sessions", nil), &state)
	return state
}
