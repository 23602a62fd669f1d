package validate

// Rule is one validation check applied per target. Execute pushes its
// problems to the context's listener and returns true iff no
// ERROR/FATAL problem was emitted. The return value is informational;
// rules never signal validation failure any other way.
type Rule interface {
	// IsApplicable reports whether the rule applies to the given
	// target location. A false result skips the rule, it is not an
	// error.
	IsApplicable(ctx *RuleContext, location string) bool
	Execute(ctx *RuleContext) bool
}

// RuleManager holds the rules for a run in execution order.
type RuleManager struct {
	rules []Rule
}

// NewRuleManager creates a manager over the given rules.
func NewRuleManager(rules ...Rule) *RuleManager {
	return &RuleManager{rules: rules}
}

// ApplicableRules returns the rules that apply to the given location.
func (m *RuleManager) ApplicableRules(ctx *RuleContext, location string) []Rule {
	var out []Rule
	for _, r := range m.rules {
		if r.IsApplicable(ctx, location) {
			out = append(out, r)
		}
	}
	return out
}
