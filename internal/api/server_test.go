package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vboughner/brain-lambda/internal/api"
	"github.com/vboughner/brain-lambda/internal/config"
	"github.com/vboughner/brain-lambda/internal/engine"
	"github.com/vboughner/brain-lambda/internal/storage"
)

const (
	secretKey = "client-secret"
	reportKey = "report-secret"
)

func setupServer(t *testing.T) *api.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.SecretClientAPIKey = secretKey
	cfg.Auth.ReportGenerationAPIKey = reportKey
	cfg.Server.MaxConnections = 4

	logger, _ := test.NewNullLogger()
	entry := logger.WithField("test", "api")

	store, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	eng, err := engine.NewEngine(cfg, entry, store)
	require.NoError(t, err)

	server, err := api.NewServer(eng, entry)
	require.NoError(t, err)
	return server
}

func request(overrides map[string]any) map[string]any {
	body := map[string]any{
		"clientVersion":      "1.3.2",
		"secretClientApiKey": secretKey,
		"userId":             "user-1",
		"deviceId":           "galaxy",
		"canTypeId":          "bixby-mobile-en-US",
	}
	for k, v := range overrides {
		body[k] = v
	}
	return body
}

func post(t *testing.T, server *api.Server, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/brain", &buf)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) engine.Response {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp engine.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHandleStatus(t *testing.T) {
	server := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, engine.ServerVersion, resp.ServerVersion)
	assert.Equal(t, 0, resp.Memories)
}

func TestRequestIDIsKept(t *testing.T) {
	server := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestMethodNotAllowed(t *testing.T) {
	server := setupServer(t)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/brain", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRejectedRequests(t *testing.T) {
	tests := []struct {
		name string
		body any
		code api.ErrorCode
	}{
		{"Missing body", nil, api.CodeMissingBody},
		{"Missing client version", request(map[string]any{"clientVersion": ""}), api.CodeIncorrectClientVersion},
		{"Newer major client version", request(map[string]any{"clientVersion": "2.0.0"}), api.CodeIncorrectClientVersion},
		{"Garbage client version", request(map[string]any{"clientVersion": "latest"}), api.CodeIncorrectClientVersion},
		{"Wrong key", request(map[string]any{"secretClientApiKey": "nope"}), api.CodeIncorrectClientAuth},
		{"No key", request(map[string]any{"secretClientApiKey": ""}), api.CodeIncorrectClientAuth},
		{"Missing user id", request(map[string]any{"userId": "", "actionType": "list"}), api.CodeMissingUserID},
		{"No action", request(nil), api.CodeMissingAPICommand},
		{"Unknown action", request(map[string]any{"actionType": "dance"}), api.CodeMissingAPICommand},
		{"Empty question", request(map[string]any{"actionType": "recall", "question": "  "}), api.CodeEmptyQuestion},
		{"Empty statement", request(map[string]any{"actionType": "memorize"}), api.CodeEmptyStatement},
		{"Delete one without when stored", request(map[string]any{"actionType": "delete-one"}), api.CodeMissingWhenStored},
		{"Update without when stored", request(map[string]any{"actionType": "update-text", "text": "x"}), api.CodeMissingWhenStored},
		{"Report key on recall", request(map[string]any{
			"secretClientApiKey":     "",
			"reportGenerationApiKey": reportKey,
			"actionType":             "recall",
			"question":               "where is my car",
		}), api.CodeReportAPIKeyExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupServer(t)
			resp := decodeError(t, post(t, server, tt.body))
			assert.Equal(t, tt.code, resp.ErrorCode)
			assert.Equal(t, tt.code.Message(), resp.ErrorMessage)
		})
	}
}

func TestMemorizeAndRecall(t *testing.T) {
	server := setupServer(t)

	resp := decodeResponse(t, post(t, server, request(map[string]any{
		"actionType": "memorize",
		"statement":  "tell my brain that fred's phone number is 452-3394",
	})))
	assert.True(t, resp.Success)
	assert.Equal(t, "I will remember that you said: fred's phone number is 452-3394.", resp.Speech)

	decodeResponse(t, post(t, server, request(map[string]any{
		"actionType": "memorize",
		"statement":  "I put tape under the door",
	})))

	resp = decodeResponse(t, post(t, server, request(map[string]any{
		"actionType": "recall",
		"question":   "what is fred's phone number",
	})))
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.Answers)
	assert.Equal(t, "fred's phone number is 452-3394", resp.Answers[0].Text)
	assert.Equal(t, 3, resp.Answers[0].Score)
	assert.Equal(t, "galaxy", resp.Answers[0].DeviceID)
}

func TestLegacyFieldsSelectAction(t *testing.T) {
	server := setupServer(t)

	resp := decodeResponse(t, post(t, server, request(map[string]any{"statement": "the spare key is under the mat"})))
	assert.True(t, resp.Success)

	resp = decodeResponse(t, post(t, server, request(map[string]any{"question": "where is the spare key"})))
	assert.True(t, resp.Success)
	require.Len(t, resp.Answers, 1)
}

func TestListDeleteAndUpdate(t *testing.T) {
	server := setupServer(t)

	for _, s := range []string{"the car is on level 3", "the bike is in the shed"} {
		decodeResponse(t, post(t, server, request(map[string]any{"actionType": "memorize", "statement": s})))
	}

	resp := decodeResponse(t, post(t, server, request(map[string]any{"actionType": "list"})))
	require.Len(t, resp.Answers, 2)
	assert.Equal(t, "You have 2 memories.", resp.Speech)
	newest := resp.Answers[0]
	assert.Equal(t, "the bike is in the shed", newest.Text)

	resp = decodeResponse(t, post(t, server, request(map[string]any{
		"actionType": "update-text",
		"whenStored": newest.WhenStored,
		"text":       "the bike is at the office",
	})))
	assert.True(t, resp.Success)

	resp = decodeResponse(t, post(t, server, request(map[string]any{"actionType": "delete-one", "whenStored": newest.WhenStored})))
	assert.True(t, resp.Success)

	resp = decodeResponse(t, post(t, server, request(map[string]any{"actionType": "delete-one", "whenStored": newest.WhenStored})))
	assert.False(t, resp.Success)

	resp = decodeResponse(t, post(t, server, request(map[string]any{"actionType": "delete-all"})))
	assert.Equal(t, 1, resp.Deleted)

	resp = decodeResponse(t, post(t, server, request(map[string]any{"actionType": "list"})))
	assert.Equal(t, "There are no memories.", resp.Speech)
}

func TestLinkedUserIDSharesMemories(t *testing.T) {
	server := setupServer(t)

	decodeResponse(t, post(t, server, request(map[string]any{"statement": "the wifi password is hunter2"})))

	// a migrating client sends both ids once
	decodeResponse(t, post(t, server, request(map[string]any{"linkedUserId": "bixby-9", "actionType": "help"})))

	resp := decodeResponse(t, post(t, server, request(map[string]any{
		"userId":       "",
		"linkedUserId": "bixby-9",
		"question":     "what is the wifi password",
	})))
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.Answers)
	assert.Equal(t, "user-1", resp.Answers[0].UserID)
}

func TestReportAccess(t *testing.T) {
	server := setupServer(t)
	reporter := map[string]any{
		"secretClientApiKey":     "",
		"reportGenerationApiKey": reportKey,
		"actionType":             "get-report",
	}

	resp := decodeResponse(t, post(t, server, request(reporter)))
	assert.False(t, resp.Success)
	assert.Equal(t, "Could not get the report.", resp.Speech)

	decodeResponse(t, post(t, server, request(map[string]any{"statement": "the car is on level 3"})))

	resp = decodeResponse(t, post(t, server, request(reporter)))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Report)
	assert.Equal(t, 1, resp.Report.NumTotalMemories)
	assert.Equal(t, "user-1", resp.Report.ReportRequestedByUserID)
}

func TestHelp(t *testing.T) {
	server := setupServer(t)

	resp := decodeResponse(t, post(t, server, request(map[string]any{"actionType": "help"})))
	assert.True(t, resp.Success)
	assert.Equal(t, engine.HelpText, resp.Speech)
}

func TestNewServerRejectsBadConstraint(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.ClientVersion = "not a version"
	logger, _ := test.NewNullLogger()
	entry := logger.WithField("test", "api")

	store, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	eng, err := engine.NewEngine(cfg, entry, store)
	require.NoError(t, err)

	_, err = api.NewServer(eng, entry)
	assert.Error(t, err)
}

func TestServeAndShutdown(t *testing.T) {
	server := setupServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- server.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/api/v1/status"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.NoError(t, <-done)
}
