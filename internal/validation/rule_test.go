package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/homesync/internal/domain"
)

func validRule() domain.FirewallRule {
	return domain.FirewallRule{
		GroupID:       "sg-1",
		Policy:        "accept",
		Description:   "home",
		PortRange:     "22/22",
		SourceAddress: "1.2.3.4",
		Protocol:      "tcp",
	}
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(r *domain.FirewallRule)
		wantErr bool
	}{
		{"valid rule", func(r *domain.FirewallRule) {}, false},
		{"mixed case provider values", func(r *domain.FirewallRule) { r.Policy = "Accept"; r.Protocol = "TCP" }, false},
		{"ipv6 source", func(r *domain.FirewallRule) { r.SourceAddress = "2001:db8::1" }, false},
		{"cidr source", func(r *domain.FirewallRule) { r.SourceAddress = "10.0.0.0/8" }, false},
		{"all ports", func(r *domain.FirewallRule) { r.PortRange = "-1/-1"; r.Protocol = "all" }, false},
		{"empty port range", func(r *domain.FirewallRule) { r.PortRange = "" }, false},
		{"numeric protocol", func(r *domain.FirewallRule) { r.Protocol = "-1" }, false},
		{"icmp type and code", func(r *domain.FirewallRule) { r.Protocol = "icmp"; r.PortRange = "8/-1" }, false},
		{"drop policy", func(r *domain.FirewallRule) { r.Policy = "drop" }, false},
		{"empty policy", func(r *domain.FirewallRule) { r.Policy = "" }, false},
		{"empty source", func(r *domain.FirewallRule) { r.SourceAddress = "" }, true},
		{"hostname source", func(r *domain.FirewallRule) { r.SourceAddress = "example.com" }, true},
		{"unknown policy", func(r *domain.FirewallRule) { r.Policy = "allow" }, true},
		{"unknown protocol", func(r *domain.FirewallRule) { r.Protocol = "sctp" }, true},
		{"protocol out of range", func(r *domain.FirewallRule) { r.Protocol = "300" }, true},
		{"single port", func(r *domain.FirewallRule) { r.PortRange = "22" }, true},
		{"port not a number", func(r *domain.FirewallRule) { r.PortRange = "ssh/22" }, true},
		{"port too large", func(r *domain.FirewallRule) { r.PortRange = "22/70000" }, true},
		{"reversed tcp range", func(r *domain.FirewallRule) { r.PortRange = "443/80" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule()
			tt.modify(&rule)
			err := ValidateRule(rule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRule_CollectsAllErrors(t *testing.T) {
	rule := validRule()
	rule.SourceAddress = "nope"
	rule.Policy = "allow"
	rule.Protocol = "sctp"

	err := ValidateRule(rule)
	require.Error(t, err)

	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs, 3)
	assert.Equal(t, "source_address", errs[0].Field)
	assert.Equal(t, "policy", errs[1].Field)
	assert.Equal(t, "protocol", errs[2].Field)
	assert.Contains(t, err.Error(), "and 2 more errors")
}

func TestValidationErrors_Err(t *testing.T) {
	var errs ValidationErrors
	assert.NoError(t, errs.Err())

	errs.Add("policy", "allow", "must be accept or drop")
	assert.EqualError(t, errs.Err(), `policy "allow": must be accept or drop`)
}
