package rulekit

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000

	// MaxRuleLength bounds the rule text accepted by CreateRule.
	MaxRuleLength = 64 * 1024
)
