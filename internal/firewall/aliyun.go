package firewall

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/aliyun/alibaba-cloud-sdk-go/services/ecs"
	"github.com/rs/zerolog"

	"github.com/bcnelson/homesync/internal/domain"
)

const directionIngress = "ingress"

// ecsAPI is the subset of the ECS client used by AliyunStore.
type ecsAPI interface {
	DescribeSecurityGroupAttribute(request *ecs.DescribeSecurityGroupAttributeRequest) (*ecs.DescribeSecurityGroupAttributeResponse, error)
	RevokeSecurityGroup(request *ecs.RevokeSecurityGroupRequest) (*ecs.RevokeSecurityGroupResponse, error)
	AuthorizeSecurityGroup(request *ecs.AuthorizeSecurityGroupRequest) (*ecs.AuthorizeSecurityGroupResponse, error)
}

// AliyunStore manages Alibaba Cloud ECS security group rules.
type AliyunStore struct {
	client ecsAPI
	logger zerolog.Logger
}

// Ensure AliyunStore implements RuleStore.
var _ RuleStore = (*AliyunStore)(nil)

// NewAliyun creates an ECS-backed rule store. The SDK does not accept a
// context, so timeout bounds both connect and read of every call.
func NewAliyun(region, accessKeyID, accessKeySecret string, timeout time.Duration, logger zerolog.Logger) (*AliyunStore, error) {
	client, err := ecs.NewClientWithAccessKey(region, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("creating ecs client: %w", err)
	}
	if timeout > 0 {
		client.SetConnectTimeout(timeout)
		client.SetReadTimeout(timeout)
	}
	return newAliyunStore(client, logger), nil
}

func newAliyunStore(client ecsAPI, logger zerolog.Logger) *AliyunStore {
	return &AliyunStore{
		client: client,
		logger: logger.With().Str("component", "aliyun").Logger(),
	}
}

// DescribeRules lists the ingress rules of groupID.
func (s *AliyunStore) DescribeRules(ctx context.Context, groupID string) ([]domain.FirewallRule, error) {
	request := ecs.CreateDescribeSecurityGroupAttributeRequest()
	request.SecurityGroupId = groupID
	request.Direction = directionIngress

	response, err := callContext(ctx, func() (*ecs.DescribeSecurityGroupAttributeResponse, error) {
		return s.client.DescribeSecurityGroupAttribute(request)
	})
	if err != nil {
		return nil, err
	}

	rules := make([]domain.FirewallRule, 0, len(response.Permissions.Permission))
	for _, p := range response.Permissions.Permission {
		if p.Direction != "" && p.Direction != directionIngress {
			continue
		}
		source := p.SourceCidrIp
		if source == "" {
			source = p.Ipv6SourceCidrIp
		}
		rules = append(rules, domain.FirewallRule{
			ID:            p.SecurityGroupRuleId,
			GroupID:       groupID,
			Policy:        p.Policy,
			Description:   p.Description,
			Priority:      p.Priority,
			NicType:       p.NicType,
			PortRange:     p.PortRange,
			SourceAddress: source,
			Protocol:      p.IpProtocol,
			Direction:     directionIngress,
		})
	}

	s.logger.Debug().Int("rules", len(rules)).Msg("described security group")
	return rules, nil
}

// Revoke removes the rule matching every attribute of rule.
func (s *AliyunStore) Revoke(ctx context.Context, rule domain.FirewallRule) error {
	request := ecs.CreateRevokeSecurityGroupRequest()
	request.SecurityGroupId = rule.GroupID
	request.Policy = rule.Policy
	request.Description = rule.Description
	request.Priority = rule.Priority
	request.NicType = rule.NicType
	request.PortRange = rule.PortRange
	request.IpProtocol = rule.Protocol
	if isIPv6(rule.SourceAddress) {
		request.Ipv6SourceCidrIp = rule.SourceAddress
	} else {
		request.SourceCidrIp = rule.SourceAddress
	}

	_, err := callContext(ctx, func() (*ecs.RevokeSecurityGroupResponse, error) {
		return s.client.RevokeSecurityGroup(request)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("source", rule.SourceAddress).Msg("revoked rule")
	return nil
}

// Authorize adds rule to its security group.
func (s *AliyunStore) Authorize(ctx context.Context, rule domain.FirewallRule) error {
	request := ecs.CreateAuthorizeSecurityGroupRequest()
	request.SecurityGroupId = rule.GroupID
	request.Policy = rule.Policy
	request.Description = rule.Description
	request.Priority = rule.Priority
	request.NicType = rule.NicType
	request.PortRange = rule.PortRange
	request.IpProtocol = rule.Protocol
	if isIPv6(rule.SourceAddress) {
		request.Ipv6SourceCidrIp = rule.SourceAddress
	} else {
		request.SourceCidrIp = rule.SourceAddress
	}

	_, err := callContext(ctx, func() (*ecs.AuthorizeSecurityGroupResponse, error) {
		return s.client.AuthorizeSecurityGroup(request)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("source", rule.SourceAddress).Msg("authorized rule")
	return nil
}

// callContext runs call and returns early when ctx ends. The call itself keeps
// running until the SDK timeout fires.
func callContext[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	done := make(chan result, 1)
	go func() {
		value, err := call()
		done <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}

// isIPv6 reports whether source is an IPv6 address or prefix.
func isIPv6(source string) bool {
	if addr, err := netip.ParseAddr(source); err == nil {
		return addr.Is6() && !addr.Is4In6()
	}
	if prefix, err := netip.ParsePrefix(source); err == nil {
		return prefix.Addr().Is6() && !prefix.Addr().Is4In6()
	}
	return false
}
