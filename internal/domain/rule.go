package domain

import "net/netip"

// DefaultRuleDescription is the description tag that identifies the home rule.
const DefaultRuleDescription = "home"

// FirewallRule is a single ingress rule of a cloud security group.
// Field names follow the provider-neutral attribute set; adapters map them to
// and from their SDK types.
type FirewallRule struct {
	ID            string `json:"id,omitempty"` // Provider rule id, empty when the provider has none
	GroupID       string `json:"group_id"`
	Policy        string `json:"policy"` // "accept" or "drop"
	Description   string `json:"description"`
	Priority      string `json:"priority,omitempty"`
	NicType       string `json:"nic_type,omitempty"` // "internet" or "intranet"
	PortRange     string `json:"port_range"`         // "22/22", "-1/-1"
	SourceAddress string `json:"source_address"`
	Protocol      string `json:"protocol"`
	Direction     string `json:"direction,omitempty"`
}

// WithSource returns a copy of the rule permitting addr instead of the current
// source address. The provider id is cleared since the copy is a new rule.
func (r FirewallRule) WithSource(addr netip.Addr) FirewallRule {
	r.ID = ""
	r.SourceAddress = addr.String()
	return r
}
