package parser

import (
	"os"

	"gopkg.in/yaml.v3"
)

// yamlPolicy is the intermediate structure for decoding PDL documents.
// Rules, selector entries, and constraints are kept as raw yaml.Node
// values so the builder can attach line numbers to each AST node.
type yamlPolicy struct {
	PDLVersion         string                 `yaml:"pdl_version"`
	PolicyID           string                 `yaml:"policy_id"`
	Version            string                 `yaml:"version"`
	Description        string                 `yaml:"description"`
	DefaultVerdict     string                 `yaml:"default_verdict"`
	ConflictResolution string                 `yaml:"conflict_resolution"`
	Selector           []yaml.Node            `yaml:"selector"`
	Variables          map[string]interface{} `yaml:"variables"`
	Rules              []yaml.Node            `yaml:"rules"`
	Constraints        []yaml.Node            `yaml:"constraints"`
}

// yamlRule is the intermediate rule structure.
type yamlRule struct {
	ID          string          `yaml:"id"`
	Description string          `yaml:"description"`
	Priority    int             `yaml:"priority"`
	Conditions  []yaml.Node     `yaml:"conditions"`
	Verdict     string          `yaml:"verdict"`
	Escalation  *yamlEscalation `yaml:"escalation"`
}

// yamlCondition is the intermediate condition structure.
type yamlCondition struct {
	Field    string      `yaml:"field"`
	Operator string      `yaml:"operator"`
	Value    interface{} `yaml:"value"`
}

// yamlEscalation is the intermediate escalation parameter structure.
type yamlEscalation struct {
	Approvers []string `yaml:"approvers"`
	TimeoutMs int      `yaml:"timeout_ms"`
	Message   string   `yaml:"message"`
}

// yamlConstraint is the intermediate constraint structure covering both
// rate-limit and temporal kinds.
type yamlConstraint struct {
	ID               string  `yaml:"id"`
	Kind             string  `yaml:"kind"`
	MaxTokens        float64 `yaml:"max_tokens"`
	RefillRate       float64 `yaml:"refill_rate"`
	RefillInterval   string  `yaml:"refill_interval"`
	CostPerOperation float64 `yaml:"cost_per_operation"`
	Timezone         string  `yaml:"timezone"`
	DaysOfWeek       []int   `yaml:"days_of_week"`
	StartHour        int     `yaml:"start_hour"`
	EndHour          int     `yaml:"end_hour"`
}

// parseYAMLFile reads and decodes a PDL file into the intermediate form.
func parseYAMLFile(path string) (*yamlPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseYAMLBytes(data)
}

// parseYAMLBytes decodes PDL bytes into the intermediate form.
func parseYAMLBytes(data []byte) (*yamlPolicy, error) {
	var policy yamlPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}
