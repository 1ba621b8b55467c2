// Package rules decides whether a workflow transition may run.
package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/buildflow/pkg/models"
)

// Priority orders rule evaluation; higher priorities run first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityLow:      "LOW",
	PriorityMedium:   "MEDIUM",
	PriorityHigh:     "HIGH",
	PriorityCritical: "CRITICAL",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}

	return fmt.Sprintf("Priority(%d)", int(p))
}

// ParsePriority parses LOW, MEDIUM, HIGH or CRITICAL, case-insensitively.
func ParsePriority(value string) (Priority, error) {
	for priority, name := range priorityNames {
		if strings.EqualFold(name, value) {
			return priority, nil
		}
	}

	return 0, fmt.Errorf("unknown rule priority %q", value)
}

// UnmarshalText lets priorities be written by name in configuration files.
func (p *Priority) UnmarshalText(text []byte) error {
	priority, err := ParsePriority(string(text))
	if err != nil {
		return err
	}

	*p = priority

	return nil
}

// MarshalText writes the priority name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// RuleType classifies what a rule guards.
type RuleType string

const (
	RuleTypePrerequisite  RuleType = "PREREQUISITE"
	RuleTypeValidation    RuleType = "VALIDATION"
	RuleTypeBusinessLogic RuleType = "BUSINESS_LOGIC"
	RuleTypeApproval      RuleType = "APPROVAL"
	RuleTypeResource      RuleType = "RESOURCE"
	RuleTypeTiming        RuleType = "TIMING"
)

// Rule is one gating constraint on workflow transitions. Implementations must not modify
// the execution context and must give the same answer for the same context.
type Rule interface {
	Name() string
	AppliesTo(execCtx *models.WorkflowExecutionContext) bool
	Evaluate(ctx context.Context, execCtx *models.WorkflowExecutionContext) bool
	FailureMessage() string
	Priority() Priority
	Type() RuleType
}
