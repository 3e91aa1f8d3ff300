package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"mercator-hq/saturn/pkg/pdl/ast"
)

// sourceBytes reads the raw policy document for hashing.
func sourceBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy source: %w", err)
	}
	return data, nil
}

// hashSource returns the hex SHA-256 identity of a policy. When the raw
// document is available it is hashed directly; otherwise a canonical
// rendering of the AST is hashed so that Compile on a hand-built policy
// still yields a stable, content-derived hash.
func hashSource(policy *ast.Policy, source []byte) string {
	h := sha256.New()
	if source != nil {
		h.Write(source)
		return hex.EncodeToString(h.Sum(nil))
	}

	fmt.Fprintf(h, "policy %s %s %s %s\n",
		policy.PolicyID, policy.Version, policy.DefaultVerdict, policy.ConflictResolution)
	for _, cond := range policy.Selector {
		writeCondition(h, cond)
	}

	names := make([]string, 0, len(policy.Variables))
	for name := range policy.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "var %s %v\n", name, policy.Variables[name].Value.Literal)
	}

	for _, rule := range policy.Rules {
		fmt.Fprintf(h, "rule %s %d %s\n", rule.RuleID, rule.Priority, rule.Verdict)
		for _, cond := range rule.Conditions {
			writeCondition(h, cond)
		}
		if rule.Escalation != nil {
			fmt.Fprintf(h, "escalation %v %d %s\n",
				rule.Escalation.Approvers, rule.Escalation.TimeoutMs, rule.Escalation.Message)
		}
	}

	for _, cons := range policy.Constraints {
		fmt.Fprintf(h, "constraint %s %s %v %v %s %v %+v\n",
			cons.ConstraintID, cons.Kind, cons.MaxTokens, cons.RefillRate,
			cons.RefillInterval, cons.CostPerOperation, cons.Window)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeCondition(h interface{ Write([]byte) (int, error) }, cond *ast.Condition) {
	fmt.Fprintf(h, "cond %s %s %s\n", cond.Field, cond.Operator, cond.Value)
}
