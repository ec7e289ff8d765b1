package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"

	"github.com/vboughner/brain-lambda/internal/engine"
	"github.com/vboughner/brain-lambda/internal/report"
)

const serverVersion = engine.ServerVersion

// Action names accepted in BrainRequest.ActionType
const (
	ActionMemorize   = "memorize"
	ActionRecall     = "recall"
	ActionList       = "list"
	ActionDeleteOne  = "delete-one"
	ActionDeleteAll  = "delete-all"
	ActionUpdateText = "update-text"
	ActionGetReport  = "get-report"
	ActionHelp       = "help"
)

const unknownDeviceID = "unknown-device-id"

type accessLevel int

const (
	accessNone accessLevel = iota
	accessReports
	accessAll
)

type Server struct {
	Engine *engine.Engine
	Logger *logrus.Entry
	Router *http.ServeMux

	clientVersions *semver.Constraints

	mu         sync.Mutex
	httpServer *http.Server
}

func NewServer(eng *engine.Engine, logger *logrus.Entry) (*Server, error) {
	constraint, err := semver.NewConstraint(eng.Config.Auth.ClientVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid client version constraint %q: %w", eng.Config.Auth.ClientVersion, err)
	}
	s := &Server{
		Engine:         eng,
		Logger:         logger,
		Router:         http.NewServeMux(),
		clientVersions: constraint,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Router.HandleFunc("/api/v1/brain", s.handleBrain)
	s.Router.HandleFunc("/api/v1/status", s.handleStatus)
}

// Handler returns the router wrapped with request id tagging
func (s *Server) Handler() http.Handler {
	return withRequestID(s.Router)
}

// Start listens on addr and serves until Shutdown is called
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln, at most Server.MaxConnections at a time
func (s *Server) Serve(ln net.Listener) error {
	cfg := s.Engine.Config.Server
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.Logger.WithFields(logrus.Fields{
		"addr":            ln.Addr().String(),
		"max_connections": cfg.MaxConnections,
	}).Info("Starting API server")

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.Logger.Info("Shutting down API server")
	return srv.Shutdown(ctx)
}

// BrainRequest is the body of POST /api/v1/brain
type BrainRequest struct {
	ClientVersion          string `json:"clientVersion"`
	SecretClientAPIKey     string `json:"secretClientApiKey,omitempty"`
	ReportGenerationAPIKey string `json:"reportGenerationApiKey,omitempty"`
	UserID                 string `json:"userId"`
	LinkedUserID           string `json:"linkedUserId,omitempty"`
	DeviceID               string `json:"deviceId"`
	CanTypeID              string `json:"canTypeId"`
	Timezone               string `json:"timezone"`
	StoreCountry           string `json:"storeCountry"`
	ActionType             string `json:"actionType"`
	Statement              string `json:"statement,omitempty"`
	Question               string `json:"question,omitempty"`
	WhenStored             int64  `json:"whenStored,omitempty"`
	Text                   string `json:"text,omitempty"`
}

// action returns the requested action. Older clients send no actionType and
// are recognised by the field they fill in.
func (r BrainRequest) action() string {
	if r.ActionType != "" {
		return r.ActionType
	}
	switch {
	case r.Statement != "":
		return ActionMemorize
	case r.Question != "":
		return ActionRecall
	}
	return ""
}

func (r BrainRequest) logFields() logrus.Fields {
	fields := logrus.Fields{
		"client_version": r.ClientVersion,
		"user_id":        r.UserID,
		"device_id":      r.DeviceID,
		"command":        r.action(),
		"can_type_id":    r.CanTypeID,
	}
	if r.LinkedUserID != "" {
		fields["linked_user_id"] = r.LinkedUserID
	}
	if r.SecretClientAPIKey != "" {
		fields["secret_client_api_key"] = "redacted"
	}
	if r.ReportGenerationAPIKey != "" {
		fields["report_generation_api_key"] = "redacted"
	}
	return fields
}

type StatusResponse struct {
	ServerVersion string `json:"serverVersion"`
	Uptime        string `json:"uptime"`
	Memories      int    `json:"memories"`
	Memorized     int64  `json:"memorized"`
	Recalled      int64  `json:"recalled"`
	Deleted       int64  `json:"deleted"`
	Reports       int64  `json:"reports"`
	LastError     string `json:"lastError,omitempty"`
}

// Handlers

func (s *Server) handleBrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log := s.Logger.WithField("request_id", w.Header().Get(requestIDHeader))

	var req BrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if !errors.Is(err, io.EOF) {
			log.WithError(err).Warn("Failed to decode request body")
		}
		s.reject(w, log, CodeMissingBody, "")
		return
	}
	log = log.WithFields(req.logFields())
	log.Info("Received request")

	if !s.clientVersionAllowed(req.ClientVersion) {
		s.reject(w, log, CodeIncorrectClientVersion, "")
		return
	}

	level := s.accessLevel(req)
	if level == accessNone {
		s.reject(w, log, CodeIncorrectClientAuth, "")
		return
	}

	if req.DeviceID == "" {
		req.DeviceID = unknownDeviceID
	}
	ctx := r.Context()
	owner, err := s.Engine.ResolveOwner(ctx, req.UserID, req.LinkedUserID, req.DeviceID)
	if errors.Is(err, engine.ErrMissingUserID) {
		s.reject(w, log, CodeMissingUserID, "")
		return
	}
	if err != nil {
		s.reject(w, log, CodeUnspecified, "could not resolve user id")
		return
	}
	log = log.WithField("owner_id", owner)

	caller := engine.Caller{
		OwnerID:      owner,
		DeviceID:     req.DeviceID,
		LanguageTag:  req.CanTypeID,
		Timezone:     req.Timezone,
		StoreCountry: req.StoreCountry,
	}

	action := req.action()
	if level == accessReports && action != ActionGetReport {
		s.reject(w, log, CodeReportAPIKeyExceeded, "")
		return
	}

	resp, code, override := s.dispatch(ctx, action, caller, req)
	if resp == nil {
		s.reject(w, log, code, override)
		return
	}
	log.WithFields(logrus.Fields{"success": resp.Success, "answers": len(resp.Answers)}).Info("Answered request")
	jsonResponse(w, http.StatusOK, resp)
}

// dispatch runs the action. On failure it returns a nil response and the
// error code to report.
func (s *Server) dispatch(ctx context.Context, action string, c engine.Caller, req BrainRequest) (*engine.Response, ErrorCode, string) {
	eng := s.Engine
	switch action {
	case ActionMemorize:
		resp, err := eng.Memorize(ctx, c, req.Statement)
		switch {
		case errors.Is(err, engine.ErrEmptyStatement):
			return nil, CodeEmptyStatement, ""
		case err != nil:
			return nil, CodeUnspecified, "problem storing the memory"
		}
		return resp, 0, ""

	case ActionRecall:
		resp, err := eng.Recall(ctx, c, req.Question)
		switch {
		case errors.Is(err, engine.ErrEmptyQuestion):
			return nil, CodeEmptyQuestion, ""
		case err != nil:
			return nil, CodeUnspecified, "problem with recall"
		}
		return resp, 0, ""

	case ActionList:
		resp, err := eng.List(ctx, c)
		if err != nil {
			return nil, CodeUnspecified, "problem with list"
		}
		return resp, 0, ""

	case ActionDeleteOne:
		if req.WhenStored == 0 {
			return nil, CodeMissingWhenStored, ""
		}
		resp, err := eng.DeleteOne(ctx, c, req.WhenStored)
		if err != nil {
			return nil, CodeDeleteOneFailed, ""
		}
		return resp, 0, ""

	case ActionDeleteAll:
		resp, err := eng.DeleteAll(ctx, c)
		if err != nil {
			return nil, CodeDeleteAllFailed, ""
		}
		return resp, 0, ""

	case ActionUpdateText:
		if req.WhenStored == 0 {
			return nil, CodeMissingWhenStored, ""
		}
		resp, err := eng.UpdateText(ctx, c, req.WhenStored, req.Text)
		switch {
		case errors.Is(err, engine.ErrEmptyStatement):
			return nil, CodeEmptyStatement, ""
		case err != nil:
			return nil, CodeUpdateFailed, ""
		}
		return resp, 0, ""

	case ActionGetReport:
		resp, err := eng.Report(ctx, c)
		switch {
		case errors.Is(err, report.ErrNoMemories):
			return &engine.Response{Speech: "Could not get the report.", ServerVersion: serverVersion}, 0, ""
		case err != nil:
			return nil, CodeReportFailed, ""
		}
		return resp, 0, ""

	case ActionHelp:
		return eng.Help(c.LanguageTag), 0, ""
	}
	return nil, CodeMissingAPICommand, ""
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := s.Engine.Stats()
	resp := StatusResponse{
		ServerVersion: serverVersion,
		Uptime:        time.Since(stats.StartTime).Round(time.Second).String(),
		Memorized:     stats.Memorized,
		Recalled:      stats.Recalled,
		Deleted:       stats.Deleted,
		Reports:       stats.Reports,
		LastError:     stats.LastError,
	}
	n, err := s.Engine.MemoryCount(r.Context())
	if err != nil {
		s.Logger.WithError(err).Warn("Failed to count memories for status")
	}
	resp.Memories = n

	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) clientVersionAllowed(v string) bool {
	if v == "" {
		return false
	}
	version, err := semver.NewVersion(v)
	if err != nil {
		return false
	}
	return s.clientVersions.Check(version)
}

func (s *Server) accessLevel(req BrainRequest) accessLevel {
	auth := s.Engine.Config.Auth
	if keyMatches(auth.SecretClientAPIKey, req.SecretClientAPIKey) {
		return accessAll
	}
	if keyMatches(auth.ReportGenerationAPIKey, req.ReportGenerationAPIKey) {
		return accessReports
	}
	return accessNone
}

// keyMatches never matches an unset key
func keyMatches(configured, given string) bool {
	return configured != "" && subtle.ConstantTimeCompare([]byte(configured), []byte(given)) == 1
}

func (s *Server) reject(w http.ResponseWriter, log *logrus.Entry, code ErrorCode, override string) {
	resp := errorResponse(w, code, override)
	log.WithFields(logrus.Fields{"error_code": resp.ErrorCode, "error_message": resp.ErrorMessage}).Warn("Rejected request")
}

const requestIDHeader = "X-Request-ID"

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func jsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
