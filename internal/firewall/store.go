// Package firewall adapts cloud security group APIs to the three operations the
// reconciler needs: list the rules of a group, revoke one rule and authorize one
// rule.
package firewall

import (
	"context"

	"github.com/bcnelson/homesync/internal/domain"
)

// RuleStore defines the interface for reading and mutating security group rules.
// Implementations return provider errors unchanged; they never retry.
type RuleStore interface {
	DescribeRules(ctx context.Context, groupID string) ([]domain.FirewallRule, error)
	Revoke(ctx context.Context, rule domain.FirewallRule) error
	Authorize(ctx context.Context, rule domain.FirewallRule) error
}
