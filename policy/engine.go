// Package policy evaluates operator-supplied rule conditions with OPA.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/rego"
)

// evalTimeout bounds a single condition evaluation.
const evalTimeout = 250 * time.Millisecond

// Engine is a prepared rego query returning a boolean decision.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares query against the given module.
func NewEngine(ctx context.Context, query, moduleName, moduleContent string) (*Engine, error) {
	r := rego.New(
		rego.Query(query),
		rego.Module(moduleName, moduleContent),
	)

	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: prepared}, nil
}

// NewConditionEngine compiles a rule condition. body is one or more rego
// expressions over `input` (the normalized event), e.g.
//
//	contains(lower(input.payload.error_message), "quota")
//
// All expressions must hold for the condition to match.
func NewConditionEngine(ctx context.Context, body string) (*Engine, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("empty condition")
	}
	return NewEngine(ctx, "data.hookwatch.rule.match", "rule_condition.rego", conditionModule(body))
}

func conditionModule(body string) string {
	var b strings.Builder
	b.WriteString("package hookwatch.rule\n\n")
	b.WriteString("default match = false\n\n")
	b.WriteString("match {\n")
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.WriteString("\t" + line + "\n")
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Evaluate runs the query. input is converted through JSON so struct tags
// decide the field names visible to rego.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (bool, error) {
	doc, err := toDocument(input)
	if err != nil {
		return false, err
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}

	matched, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected result type %T", results[0].Expressions[0].Value)
	}
	return matched, nil
}

// Match evaluates with a short private deadline. Errors count as no match.
func (e *Engine) Match(input interface{}) bool {
	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	matched, err := e.Evaluate(ctx, input)
	return err == nil && matched
}

func toDocument(input interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return doc, nil
}
