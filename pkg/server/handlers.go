package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/saturn/pkg/decision"
)

// maxRequestBody bounds the decision request body.
const maxRequestBody = 1 << 20

// decisionRequest is the JSON shape accepted by POST /v1/decisions. It
// mirrors the eval command's request document.
type decisionRequest struct {
	RequestID string `json:"request_id"`
	PolicyID  string `json:"policy_id"`
	Agent     struct {
		ID    string   `json:"id"`
		Team  string   `json:"team"`
		Roles []string `json:"roles"`
	} `json:"agent"`
	Operation string `json:"operation"`
	Resource  struct {
		ID          string   `json:"id"`
		Type        string   `json:"type"`
		Sensitivity string   `json:"sensitivity"`
		Tags        []string `json:"tags"`
	} `json:"resource"`
	Context map[string]interface{} `json:"context"`
}

// decisionResponse is the JSON shape of a decided request.
type decisionResponse struct {
	RequestID         string          `json:"request_id"`
	Verdict           string          `json:"verdict"`
	Confidence        float64         `json:"confidence"`
	Reason            string          `json:"reason"`
	MatchedRuleIDs    []string        `json:"matched_rule_ids,omitempty"`
	Escalation        *escalationBody `json:"escalation,omitempty"`
	PolicyVersion     string          `json:"policy_version,omitempty"`
	ConstraintOutcome string          `json:"constraint_outcome,omitempty"`
	FallbackApplied   bool            `json:"fallback_applied,omitempty"`
	DurationMs        float64         `json:"duration_ms"`
}

type escalationBody struct {
	Approvers []string `json:"approvers"`
	TimeoutMs int      `json:"timeout_ms"`
	Message   string   `json:"message,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// DecisionHandler evaluates decision requests through the orchestrator.
type DecisionHandler struct {
	decider Decider
	logger  *slog.Logger
}

// NewDecisionHandler creates the POST /v1/decisions handler.
func NewDecisionHandler(decider Decider, logger *slog.Logger) *DecisionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionHandler{decider: decider, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *DecisionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var body decisionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body: "+err.Error())
		return
	}
	if body.PolicyID == "" || body.Agent.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "policy_id and agent.id are required")
		return
	}

	req := &decision.Request{
		RequestID:           body.RequestID,
		PolicyID:            body.PolicyID,
		AgentID:             body.Agent.ID,
		AgentTeam:           body.Agent.Team,
		AgentRoles:          body.Agent.Roles,
		Operation:           body.Operation,
		ResourceID:          body.Resource.ID,
		ResourceType:        body.Resource.Type,
		ResourceSensitivity: body.Resource.Sensitivity,
		ResourceTags:        body.Resource.Tags,
		Context:             body.Context,
	}
	if req.RequestID == "" {
		req.RequestID = requestIDFrom(r.Context())
	}

	resp := h.decider.Decide(r.Context(), req)
	writeJSON(w, http.StatusOK, toWire(resp))
}

func toWire(resp *decision.Response) *decisionResponse {
	out := &decisionResponse{
		RequestID:         resp.RequestID,
		Verdict:           string(resp.Verdict),
		Confidence:        resp.Confidence,
		Reason:            string(resp.Reason),
		MatchedRuleIDs:    resp.MatchedRuleIDs,
		PolicyVersion:     resp.PolicyVersion,
		ConstraintOutcome: string(resp.ConstraintOutcome),
		FallbackApplied:   resp.FallbackApplied,
		DurationMs:        float64(resp.Duration) / float64(time.Millisecond),
	}
	if resp.Escalation != nil {
		out.Escalation = &escalationBody{
			Approvers: resp.Escalation.Approvers,
			TimeoutMs: resp.Escalation.TimeoutMs,
			Message:   resp.Escalation.Message,
		}
	}
	return out
}

// HealthHandler answers liveness probes.
type HealthHandler struct{}

// NewHealthHandler creates the GET /health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
