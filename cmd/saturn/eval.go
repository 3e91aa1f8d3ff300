package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/compiler"
	"mercator-hq/saturn/pkg/constraint"
	"mercator-hq/saturn/pkg/constraint/store"
	"mercator-hq/saturn/pkg/decision"
	"mercator-hq/saturn/pkg/vm"
)

var evalFlags struct {
	dir         string
	policy      string
	agent       string
	team        string
	roles       []string
	operation   string
	resource    string
	resType     string
	sensitivity string
	tags        []string
	context     []string
	requestFile string
	format      string
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a single request against a policy",
	Long: `Run a one-shot decision against policies in a directory.

The eval command wires the full pipeline with an in-memory constraint
store, evaluates one request, and prints the decision. Request
attributes come from flags, or from a YAML document via --request.

Examples:
  # Evaluate from flags
  saturn eval --dir policies/ --policy code-review \
    --agent agent-7 --operation read --resource repo:core

  # Evaluate a request document
  saturn eval --dir policies/ --request request.yaml --format json`,
	RunE: evalRequest,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVarP(&evalFlags.dir, "dir", "d", "./policies", "policy directory")
	evalCmd.Flags().StringVar(&evalFlags.policy, "policy", "", "policy ID to evaluate against")
	evalCmd.Flags().StringVar(&evalFlags.agent, "agent", "", "agent ID")
	evalCmd.Flags().StringVar(&evalFlags.team, "team", "", "agent team")
	evalCmd.Flags().StringSliceVar(&evalFlags.roles, "roles", nil, "agent roles")
	evalCmd.Flags().StringVar(&evalFlags.operation, "operation", "", "operation verb")
	evalCmd.Flags().StringVar(&evalFlags.resource, "resource", "", "resource ID")
	evalCmd.Flags().StringVar(&evalFlags.resType, "resource-type", "", "resource type")
	evalCmd.Flags().StringVar(&evalFlags.sensitivity, "sensitivity", "", "resource sensitivity")
	evalCmd.Flags().StringSliceVar(&evalFlags.tags, "tags", nil, "resource tags")
	evalCmd.Flags().StringArrayVar(&evalFlags.context, "context", nil, "extra context attribute key=value (repeatable)")
	evalCmd.Flags().StringVarP(&evalFlags.requestFile, "request", "r", "", "YAML request document")
	evalCmd.Flags().StringVar(&evalFlags.format, "format", "text", "output format: text, json")
}

// requestDocument is the YAML shape accepted by --request.
type requestDocument struct {
	PolicyID string `yaml:"policy_id"`
	Agent    struct {
		ID    string   `yaml:"id"`
		Team  string   `yaml:"team"`
		Roles []string `yaml:"roles"`
	} `yaml:"agent"`
	Operation string `yaml:"operation"`
	Resource  struct {
		ID          string   `yaml:"id"`
		Type        string   `yaml:"type"`
		Sensitivity string   `yaml:"sensitivity"`
		Tags        []string `yaml:"tags"`
	} `yaml:"resource"`
	Context map[string]interface{} `yaml:"context"`
}

func evalRequest(cmd *cobra.Command, args []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}

	comp, err := compiler.New(nil, nil, nil)
	if err != nil {
		return err
	}
	machine, err := vm.New(nil, nil)
	if err != nil {
		return err
	}

	st := store.NewMemoryStore()
	defer st.Close()
	enforcer, err := constraint.New(st, nil, nil, nil)
	if err != nil {
		return err
	}

	source, err := decision.NewFileSource(evalFlags.dir, nil)
	if err != nil {
		return err
	}

	orchestrator, err := decision.New(decision.Options{
		Compiler: comp,
		Machine:  machine,
		Enforcer: enforcer,
		Source:   source,
	})
	if err != nil {
		return err
	}

	resp := orchestrator.Decide(context.Background(), req)

	if evalFlags.format == "json" {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, resp); err != nil {
			return err
		}
	} else {
		printResponse(resp)
	}

	if resp.Verdict == decision.VerdictError {
		os.Exit(2)
	}
	return nil
}

func buildRequest() (*decision.Request, error) {
	req := &decision.Request{}

	if evalFlags.requestFile != "" {
		data, err := os.ReadFile(evalFlags.requestFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read request document: %w", err)
		}
		var doc requestDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse request document: %w", err)
		}
		req.PolicyID = doc.PolicyID
		req.AgentID = doc.Agent.ID
		req.AgentTeam = doc.Agent.Team
		req.AgentRoles = doc.Agent.Roles
		req.Operation = doc.Operation
		req.ResourceID = doc.Resource.ID
		req.ResourceType = doc.Resource.Type
		req.ResourceSensitivity = doc.Resource.Sensitivity
		req.ResourceTags = doc.Resource.Tags
		req.Context = doc.Context
	}

	// Flags override the document.
	if evalFlags.policy != "" {
		req.PolicyID = evalFlags.policy
	}
	if evalFlags.agent != "" {
		req.AgentID = evalFlags.agent
	}
	if evalFlags.team != "" {
		req.AgentTeam = evalFlags.team
	}
	if len(evalFlags.roles) > 0 {
		req.AgentRoles = evalFlags.roles
	}
	if evalFlags.operation != "" {
		req.Operation = evalFlags.operation
	}
	if evalFlags.resource != "" {
		req.ResourceID = evalFlags.resource
	}
	if evalFlags.resType != "" {
		req.ResourceType = evalFlags.resType
	}
	if evalFlags.sensitivity != "" {
		req.ResourceSensitivity = evalFlags.sensitivity
	}
	if len(evalFlags.tags) > 0 {
		req.ResourceTags = evalFlags.tags
	}
	for _, pair := range evalFlags.context {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid --context entry %q, expected key=value", pair)
		}
		if req.Context == nil {
			req.Context = make(map[string]interface{})
		}
		req.Context[key] = value
	}

	if req.PolicyID == "" || req.AgentID == "" {
		return nil, fmt.Errorf("--policy and --agent are required (or set in the request document)")
	}
	return req, nil
}

func printResponse(resp *decision.Response) {
	fmt.Printf("Verdict:    %s\n", resp.Verdict)
	fmt.Printf("Reason:     %s\n", resp.Reason)
	fmt.Printf("Confidence: %.2f\n", resp.Confidence)
	fmt.Printf("Policy:     %s\n", resp.PolicyVersion)
	if len(resp.MatchedRuleIDs) > 0 {
		fmt.Printf("Matched:    %s\n", strings.Join(resp.MatchedRuleIDs, ", "))
	}
	if resp.Escalation != nil {
		fmt.Printf("Escalation: approvers=%s timeout=%dms\n",
			strings.Join(resp.Escalation.Approvers, ","), resp.Escalation.TimeoutMs)
	}
	if resp.ConstraintOutcome != "" {
		fmt.Printf("Constraint: %s\n", resp.ConstraintOutcome)
	}
	if resp.FallbackApplied {
		fmt.Println("Fallback:   applied")
	}
	fmt.Printf("Duration:   %s\n", resp.Duration)
}
