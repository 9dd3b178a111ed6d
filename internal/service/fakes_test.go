package service

import (
	"context"
	"net/netip"
	"sync"

	"github.com/bcnelson/homesync/internal/domain"
)

// fakeStore records every call in order.
type fakeStore struct {
	mu    sync.Mutex
	rules []domain.FirewallRule
	calls []string

	revoked    []domain.FirewallRule
	authorized []domain.FirewallRule

	describeErr  error
	revokeErr    error
	authorizeErr error
}

func (f *fakeStore) DescribeRules(ctx context.Context, groupID string) ([]domain.FirewallRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "describe")
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return append([]domain.FirewallRule(nil), f.rules...), nil
}

func (f *fakeStore) Revoke(ctx context.Context, rule domain.FirewallRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "revoke")
	f.revoked = append(f.revoked, rule)
	if f.revokeErr != nil {
		return f.revokeErr
	}
	for i, r := range f.rules {
		if r.Description == rule.Description && r.SourceAddress == rule.SourceAddress {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) Authorize(ctx context.Context, rule domain.FirewallRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "authorize")
	f.authorized = append(f.authorized, rule)
	if f.authorizeErr != nil {
		return f.authorizeErr
	}
	f.rules = append(f.rules, rule)
	return nil
}

func (f *fakeStore) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeResolver returns addr or err and counts calls.
type fakeResolver struct {
	mu    sync.Mutex
	addr  netip.Addr
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.addr, f.err
}

func (f *fakeResolver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func homeRule(source string) domain.FirewallRule {
	return domain.FirewallRule{
		ID:            "sgr-home",
		GroupID:       "sg-1",
		Policy:        "accept",
		Description:   "home",
		Priority:      "1",
		NicType:       "intranet",
		PortRange:     "22/22",
		SourceAddress: source,
		Protocol:      "tcp",
		Direction:     "ingress",
	}
}
