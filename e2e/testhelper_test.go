package e2e

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tech-grandpa/banana-paper-ui/internal/artifact"
	"github.com/tech-grandpa/banana-paper-ui/internal/handler"
	"github.com/tech-grandpa/banana-paper-ui/internal/pipeline"
	"github.com/tech-grandpa/banana-paper-ui/internal/runner"
	"github.com/tech-grandpa/banana-paper-ui/internal/service"
	"github.com/tech-grandpa/banana-paper-ui/internal/store"
	ws "github.com/tech-grandpa/banana-paper-ui/internal/websocket"
)

// defaultIterations mirrors the server's configured default for
// requests that omit the iteration count.
const defaultIterations = 3

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store *store.Store
}

// setupApp creates a Fiber app identical to main.go, backed by the mock
// pipeline with no step delay so jobs finish quickly.
func setupApp(t *testing.T) *testApp {
	return setupAppWithDelay(t, 0)
}

// setupAppWithDelay slows each mock pipeline step down, for tests that
// need to observe a job mid-run.
func setupAppWithDelay(t *testing.T, stepDelay time.Duration) *testApp {
	return setupAppWithPipeline(t, pipeline.NewMockPipeline(t.TempDir(), stepDelay))
}

// setupAppWithPipeline wires the app around an arbitrary pipeline
// implementation, e.g. one scripted to fail.
func setupAppWithPipeline(t *testing.T, pipe pipeline.Pipeline) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	jobStore := store.New()

	hub := ws.NewHub(logger)
	go hub.Run()

	jobRunner := runner.New(jobStore, pipe, hub, logger)
	queryService := service.NewQueryService(jobStore)
	resolver := artifact.NewResolver(jobStore)

	validate := validator.New()
	generateHandler := handler.NewGenerateHandler(jobRunner, queryService, resolver, validate, defaultIterations)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"gemini": false,
			},
			"jobs": jobStore.Len(),
		})
	})

	api := app.Group("/api")
	api.Post("/generate", generateHandler.Generate)
	api.Get("/status/:jobId", generateHandler.Status)
	api.Get("/result/:jobId", generateHandler.Result)
	api.Get("/result/:jobId/image/:filename", generateHandler.Image)

	return &testApp{app: app, store: jobStore}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// submitJob starts a generation job and returns its id.
func submitJob(t *testing.T, ta *testApp, body string) string {
	t.Helper()
	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", body)
	if err != nil {
		t.Fatalf("generate request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	result := parseJSON(t, resp)
	jobID, _ := result["job_id"].(string)
	if jobID == "" {
		t.Fatal("expected 'job_id' in response")
	}
	return jobID
}

// waitForJobStatus polls the status endpoint until the job reaches the
// wanted status, returning the final status view.
func waitForJobStatus(t *testing.T, ta *testApp, jobID, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doRequest(ta.app, http.MethodGet, "/api/status/"+jobID, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		result := parseJSON(t, resp)
		if result["status"] == want {
			return result
		}
		if result["status"] == "failed" && want != "failed" {
			t.Fatalf("job %s failed while waiting for %s: %v", jobID, want, result["error"])
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func validGenerateBody() string {
	return `{"text": "A feeds B", "caption": "pipeline", "iterations": 2}`
}
