package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/logging"
)

func f(v float64) *float64 { return &v }

func samplePayload() *domain.ProductPayload {
	return &domain.ProductPayload{
		Brand:       "Sony",
		ProductName: "Sony WH-1000XM5",
		Breakdown: map[domain.Category]domain.CategoryPayload{
			domain.CategoryProductionAndBrand:      {Score: f(7), Rating: "Good", Analysis: "ok"},
			domain.CategoryCircularityAndEndOfLife: {Score: f(6), Rating: "Fair", Analysis: "ok"},
			domain.CategoryMaterialComposition:     {Score: f(8), Rating: "Good", Analysis: "ok"},
		},
		Certainty:    domain.CertaintyHigh,
		Alternatives: []domain.Alternative{{Brand: "Fairphone", Score: 85}},
	}
}

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:       baseURL,
		SubmitTimeout: 200 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
		PollAttempts:  5,
	}, logging.Discard())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{}, nil)

	cfg := client.Config()
	assert.Equal(t, "http://localhost:5000", cfg.BaseURL)
	assert.Equal(t, 8*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 30, cfg.PollAttempts)
	assert.Nil(t, client.rateLimiter)
	assert.NotNil(t, client.httpClient)
}

func TestSubmit_Found(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/product", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Sony", body["brand"])
		assert.Equal(t, "WH-1000XM5", body["name"])
		assert.Equal(t, "https://shop/p", body["url"])
		assert.Equal(t, map[string]interface{}{"material": "plastic"}, body["specifications"])

		writeJSON(w, http.StatusOK, domain.SubmitResponse{Success: true, Status: "found", Data: samplePayload()})
	}))
	defer server.Close()

	out, err := testClient(server.URL).Submit(context.Background(), domain.ProductInfo{
		Brand: "Sony", Name: "WH-1000XM5", URL: "https://shop/p",
		Specifications: map[string]string{"material": "plastic"},
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeFound, out.Kind)
	assert.Equal(t, "Sony", out.Payload.Brand)
	assert.Empty(t, out.TaskID)
}

func TestSubmit_Processing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, domain.SubmitResponse{Success: true, Status: "processing", ProductID: "task-1"})
	}))
	defer server.Close()

	out, err := testClient(server.URL).Submit(context.Background(), domain.ProductInfo{Brand: "Sony"})

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessing, out.Kind)
	assert.Equal(t, "task-1", out.TaskID)
	assert.Nil(t, out.Payload)
}

func TestSubmit_NilSpecificationsSentAsObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{}, body["specifications"])
		writeJSON(w, http.StatusAccepted, domain.SubmitResponse{Success: true, Status: "processing", ProductID: "x"})
	}))
	defer server.Close()

	_, err := testClient(server.URL).Submit(context.Background(), domain.ProductInfo{Name: "Thing"})
	require.NoError(t, err)
}

func TestSubmit_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := testClient(server.URL)
	client.cfg.SubmitTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err := client.Submit(context.Background(), domain.ProductInfo{Brand: "Sony"})

	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSubmit_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{"success":false,"error":"boom"}`, domain.ErrTransport},
		{"rate limited", http.StatusTooManyRequests, `{"success":false}`, domain.ErrTransport},
		{"not found", http.StatusNotFound, `{"success":false,"error":"no data"}`, domain.ErrNotFound},
		{"bad request", http.StatusBadRequest, `{"success":false,"error":"brand or name required"}`, domain.ErrInvalidResponse},
		{"malformed json", http.StatusOK, `{not json`, domain.ErrInvalidResponse},
		{"unknown status", http.StatusOK, `{"success":true,"status":"weird"}`, domain.ErrInvalidResponse},
		{"found without data", http.StatusOK, `{"success":true,"status":"found"}`, domain.ErrInvalidResponse},
		{"processing without id", http.StatusAccepted, `{"success":true,"status":"processing"}`, domain.ErrInvalidResponse},
		{"success false", http.StatusOK, `{"success":false,"error":"nope"}`, domain.ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			out, err := testClient(server.URL).Submit(context.Background(), domain.ProductInfo{Brand: "Sony"})
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSubmit_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := testClient(url).Submit(context.Background(), domain.ProductInfo{Brand: "Sony"})
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestPoll_CompletesAfterProcessing(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/product/task-1/status", r.URL.Path)
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(w, http.StatusOK, domain.StatusResponse{Success: true, Status: "processing"})
			return
		}
		writeJSON(w, http.StatusOK, domain.StatusResponse{Success: true, Status: "completed", Data: samplePayload()})
	}))
	defer server.Close()

	payload, err := testClient(server.URL).Poll(context.Background(), "task-1")

	require.NoError(t, err)
	assert.Equal(t, "Sony", payload.Brand)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPoll_RetriesTransportErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, domain.StatusResponse{Success: true, Status: "completed", Data: samplePayload()})
	}))
	defer server.Close()

	payload, err := testClient(server.URL).Poll(context.Background(), "task-1")

	require.NoError(t, err)
	assert.NotNil(t, payload)
}

func TestPoll_TimeoutAfterBudget(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusOK, domain.StatusResponse{Success: true, Status: "processing"})
	}))
	defer server.Close()

	payload, err := testClient(server.URL).Poll(context.Background(), "task-1")

	assert.Nil(t, payload)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestPoll_StalledStatusBoundedByBudget(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	client := testClient(server.URL)
	client.cfg.PollAttempts = 3

	start := time.Now()
	payload, err := client.Poll(context.Background(), "task-1")

	assert.Nil(t, payload)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPoll_TaskError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.StatusResponse{Success: true, Status: "error", Error: "model refused"})
	}))
	defer server.Close()

	_, err := testClient(server.URL).Poll(context.Background(), "task-1")

	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
	assert.Contains(t, err.Error(), "model refused")
}

func TestPoll_UnknownTask(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "task not found"})
	}))
	defer server.Close()

	_, err := testClient(server.URL).Poll(context.Background(), "nope")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPoll_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.StatusResponse{Success: true, Status: "processing"})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(server.URL).Poll(ctx, "task-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLookupBrand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/score", r.URL.Path)
		if r.URL.Query().Get("brand") == "Patagonia" {
			writeJSON(w, http.StatusOK, domain.ScoreResponse{Success: true, Data: &domain.BrandScore{Brand: "Patagonia", Score: 88}})
			return
		}
		writeJSON(w, http.StatusNotFound, domain.ScoreResponse{Success: false, Error: "brand not found"})
	}))
	defer server.Close()

	client := testClient(server.URL)

	score, err := client.LookupBrand(context.Background(), "Patagonia")
	require.NoError(t, err)
	assert.Equal(t, 88, score.Score)

	_, err = client.LookupBrand(context.Background(), "Nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		writeJSON(w, http.StatusOK, HealthStatus{Status: "healthy", Service: "ecoshop-backend", Version: "1.0.0"})
	}))
	defer server.Close()

	health, err := testClient(server.URL).Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func streamServer(t *testing.T, events []domain.TaskEvent) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/status") {
			writeJSON(w, http.StatusOK, domain.StatusResponse{Success: true, Status: "completed", Data: samplePayload()})
			return
		}
		assert.True(t, strings.HasSuffix(r.URL.Path, "/stream"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}))
}

func TestStream_Completed(t *testing.T) {
	server := streamServer(t, []domain.TaskEvent{
		{TaskID: "task-1", Status: "processing"},
		{TaskID: "task-1", Status: "completed", Data: samplePayload()},
	})
	defer server.Close()

	client := testClient(server.URL)
	client.cfg.PollInterval = 100 * time.Millisecond

	payload, err := client.Stream(context.Background(), "task-1")

	require.NoError(t, err)
	assert.Equal(t, "Sony", payload.Brand)
}

func TestStream_Error(t *testing.T) {
	server := streamServer(t, []domain.TaskEvent{{TaskID: "task-1", Status: "error", Error: "bad input"}})
	defer server.Close()

	client := testClient(server.URL)
	client.cfg.PollInterval = 100 * time.Millisecond

	_, err := client.Stream(context.Background(), "task-1")
	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
}

func TestAwaitTask_StreamDropFallsBackToPolling(t *testing.T) {
	// stream closes after a non-terminal event, polling then reports completion
	server := streamServer(t, []domain.TaskEvent{{TaskID: "task-1", Status: "processing"}})
	defer server.Close()

	client := testClient(server.URL)
	client.cfg.UseStream = true

	payload, err := client.AwaitTask(context.Background(), "task-1")

	require.NoError(t, err)
	assert.Equal(t, "Sony", payload.Brand)
}

func TestStreamURL(t *testing.T) {
	client := testClient("https://api.example.com/base/")
	u, err := client.streamURL("abc")
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/base/api/product/abc/stream", u)

	client = testClient("ftp://x")
	_, err = client.streamURL("abc")
	assert.Error(t, err)
}
