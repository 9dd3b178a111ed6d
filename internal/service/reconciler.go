package service

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog"

	"github.com/bcnelson/homesync/internal/domain"
	"github.com/bcnelson/homesync/internal/firewall"
	"github.com/bcnelson/homesync/internal/validation"
)

// Reconciler keeps the home rule of a security group pointed at an address.
type Reconciler struct {
	store       firewall.RuleStore
	description string
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewReconciler creates a new Reconciler. description selects the home rule;
// timeout bounds each rule store call (zero disables the bound).
func NewReconciler(store firewall.RuleStore, description string, timeout time.Duration, logger zerolog.Logger) *Reconciler {
	if description == "" {
		description = domain.DefaultRuleDescription
	}
	return &Reconciler{
		store:       store,
		description: description,
		timeout:     timeout,
		logger:      logger.With().Str("component", "reconciler").Logger(),
	}
}

// Reconcile replaces the home rule of groupID when its source address differs
// from addr. Revoke always precedes authorize and the pair is not atomic: when
// authorize fails the group is left without a home rule until a later cycle
// succeeds.
func (r *Reconciler) Reconcile(ctx context.Context, groupID string, addr netip.Addr) (*domain.Outcome, error) {
	var rules []domain.FirewallRule
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		rules, err = r.store.DescribeRules(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, &domain.AdapterError{Op: "describe", GroupID: groupID, Err: err}
	}

	current, err := r.selectRule(groupID, rules)
	if err != nil {
		return nil, err
	}

	if current.SourceAddress == addr.String() {
		r.logger.Debug().
			Str("address", current.SourceAddress).
			Msg("home rule already permits current address")
		return domain.Unchanged(current), nil
	}

	replacement := current.WithSource(addr)
	replacement.GroupID = groupID
	if err := validation.ValidateRule(replacement); err != nil {
		return nil, fmt.Errorf("home rule of group %s cannot be replaced: %w", groupID, err)
	}

	if err := r.call(ctx, func(ctx context.Context) error {
		return r.store.Revoke(ctx, current)
	}); err != nil {
		return nil, &domain.AdapterError{Op: "revoke", GroupID: groupID, Err: err}
	}

	if err := r.call(ctx, func(ctx context.Context) error {
		return r.store.Authorize(ctx, replacement)
	}); err != nil {
		r.logger.Error().
			Err(err).
			Str("old_address", current.SourceAddress).
			Str("new_address", replacement.SourceAddress).
			Msg("home rule revoked but new rule was not authorized")
		return nil, &domain.AdapterError{Op: "authorize", GroupID: groupID, Err: err}
	}

	return domain.Updated(current, replacement), nil
}

// selectRule returns the single rule carrying the home description.
func (r *Reconciler) selectRule(groupID string, rules []domain.FirewallRule) (domain.FirewallRule, error) {
	var matches []domain.FirewallRule
	for _, rule := range rules {
		if rule.Description == r.description {
			matches = append(matches, rule)
		}
	}

	switch len(matches) {
	case 0:
		return domain.FirewallRule{}, fmt.Errorf("%w: group %s has no rule described %q", domain.ErrRuleNotFound, groupID, r.description)
	case 1:
		rule := matches[0]
		if rule.GroupID == "" {
			rule.GroupID = groupID
		}
		return rule, nil
	default:
		sources := make([]string, len(matches))
		for i, m := range matches {
			sources[i] = m.SourceAddress
		}
		return domain.FirewallRule{}, fmt.Errorf("%w: group %s has %d rules described %q (sources %v)", domain.ErrAmbiguousRule, groupID, len(matches), r.description, sources)
	}
}

// call runs fn under the per-call timeout.
func (r *Reconciler) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(ctx)
}
