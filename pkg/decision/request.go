package decision

import (
	"time"

	"mercator-hq/saturn/pkg/vm"
)

// Request is one evaluation request: an agent performing an operation on
// a resource under a named policy.
type Request struct {
	// RequestID correlates the decision event with the caller's trace.
	// Assigned a UUID when empty.
	RequestID string

	// PolicyID selects which policy governs this request.
	PolicyID string

	// Agent descriptor.
	AgentID    string
	AgentTeam  string
	AgentRoles []string

	// Operation is the verb being attempted (read, write, delete, ...).
	Operation string

	// Resource descriptor.
	ResourceID          string
	ResourceType        string
	ResourceSensitivity string
	ResourceTags        []string

	// Context carries additional attributes exposed to conditions under
	// the context. prefix. Keys are given without the prefix.
	Context map[string]interface{}
}

// evaluationContext flattens a request into the path-value map the
// machine reads, including the derived time.* attributes.
func evaluationContext(req *Request, now time.Time) *vm.EvaluationContext {
	ec := vm.NewEvaluationContext()
	ec.Set("agent.id", req.AgentID)
	if req.AgentTeam != "" {
		ec.Set("agent.team", req.AgentTeam)
	}
	if len(req.AgentRoles) > 0 {
		ec.Set("agent.roles", req.AgentRoles)
	}
	ec.Set("operation", req.Operation)
	ec.Set("resource.id", req.ResourceID)
	ec.Set("resource.type", req.ResourceType)
	if req.ResourceSensitivity != "" {
		ec.Set("resource.sensitivity", req.ResourceSensitivity)
	}
	if len(req.ResourceTags) > 0 {
		ec.Set("resource.tags", req.ResourceTags)
	}

	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	ec.Set("time.hour", now.Hour())
	ec.Set("time.weekday", weekday)
	ec.Set("time.unix", now.Unix())

	for key, value := range req.Context {
		ec.Set("context."+key, value)
	}
	return ec
}
