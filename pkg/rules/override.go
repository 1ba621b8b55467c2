package rules

import (
	"fmt"
	"slices"
	"sort"
)

// Override reconfigures one registered rule.
type Override struct {
	Disabled bool      `yaml:"disabled"`
	Priority *Priority `yaml:"priority,omitempty"`
}

type prioritized struct {
	Rule

	priority Priority
}

func (p prioritized) Priority() Priority { return p.priority }

// Apply returns rules with the overrides applied, keeping registration order. Overrides are
// keyed by rule name; naming an unknown rule is an error.
func Apply(rules []Rule, overrides map[string]Override) ([]Rule, error) {
	known := make(map[string]bool, len(rules))
	for _, rule := range rules {
		known[rule.Name()] = true
	}

	unknown := make([]string, 0)

	for name := range overrides {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)

		return nil, fmt.Errorf("unknown rules in configuration: %v", unknown)
	}

	configured := make([]Rule, 0, len(rules))

	for _, rule := range rules {
		override, ok := overrides[rule.Name()]
		if !ok {
			configured = append(configured, rule)

			continue
		}

		if override.Disabled {
			continue
		}

		if override.Priority != nil {
			configured = append(configured, prioritized{Rule: rule, priority: *override.Priority})

			continue
		}

		configured = append(configured, rule)
	}

	return slices.Clip(configured), nil
}
