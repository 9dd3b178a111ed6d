package firewall

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/bcnelson/homesync/internal/domain"
)

// EC2 security groups only express allow rules.
const policyAccept = "accept"

// ec2API is the subset of the EC2 client used by AWSStore.
type ec2API interface {
	DescribeSecurityGroupRules(ctx context.Context, params *ec2.DescribeSecurityGroupRulesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupRulesOutput, error)
	RevokeSecurityGroupIngress(ctx context.Context, params *ec2.RevokeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
}

// AWSStore manages EC2 security group ingress rules.
// Host CIDRs (/32 and /128) are exposed as bare addresses.
type AWSStore struct {
	client ec2API
	logger zerolog.Logger
}

// Ensure AWSStore implements RuleStore.
var _ RuleStore = (*AWSStore)(nil)

// NewAWS creates an EC2-backed rule store. Empty credentials fall back to the
// SDK's default credential chain.
func NewAWS(ctx context.Context, region, accessKeyID, accessKeySecret string, timeout time.Duration, logger zerolog.Logger) (*AWSStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, ""),
		))
	}
	if timeout > 0 {
		opts = append(opts, awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(timeout)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return newAWSStore(ec2.NewFromConfig(cfg), logger), nil
}

func newAWSStore(client ec2API, logger zerolog.Logger) *AWSStore {
	return &AWSStore{
		client: client,
		logger: logger.With().Str("component", "aws").Logger(),
	}
}

// DescribeRules lists the IP-sourced ingress rules of groupID.
func (s *AWSStore) DescribeRules(ctx context.Context, groupID string) ([]domain.FirewallRule, error) {
	input := &ec2.DescribeSecurityGroupRulesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-id"), Values: []string{groupID}},
		},
	}

	var rules []domain.FirewallRule
	for {
		out, err := s.client.DescribeSecurityGroupRules(ctx, input)
		if err != nil {
			return nil, s.apiError("describe", err)
		}

		for _, r := range out.SecurityGroupRules {
			if aws.ToBool(r.IsEgress) {
				continue
			}
			source := aws.ToString(r.CidrIpv4)
			if source == "" {
				source = aws.ToString(r.CidrIpv6)
			}
			// Prefix-list and security-group references have no address
			if source == "" {
				continue
			}
			rules = append(rules, domain.FirewallRule{
				ID:            aws.ToString(r.SecurityGroupRuleId),
				GroupID:       groupID,
				Policy:        policyAccept,
				Description:   aws.ToString(r.Description),
				PortRange:     formatPortRange(r.FromPort, r.ToPort),
				SourceAddress: trimHostPrefix(source),
				Protocol:      aws.ToString(r.IpProtocol),
				Direction:     directionIngress,
			})
		}

		if aws.ToString(out.NextToken) == "" {
			break
		}
		input.NextToken = out.NextToken
	}

	s.logger.Debug().Int("rules", len(rules)).Msg("described security group")
	return rules, nil
}

// Revoke removes rule, by id when known and by attributes otherwise.
func (s *AWSStore) Revoke(ctx context.Context, rule domain.FirewallRule) error {
	input := &ec2.RevokeSecurityGroupIngressInput{
		GroupId: aws.String(rule.GroupID),
	}
	if rule.ID != "" {
		input.SecurityGroupRuleIds = []string{rule.ID}
	} else {
		perm, err := ipPermission(rule)
		if err != nil {
			return err
		}
		input.IpPermissions = []ec2types.IpPermission{perm}
	}

	if _, err := s.client.RevokeSecurityGroupIngress(ctx, input); err != nil {
		return s.apiError("revoke", err)
	}

	s.logger.Info().Str("source", rule.SourceAddress).Msg("revoked rule")
	return nil
}

// Authorize adds rule as an ingress permission.
func (s *AWSStore) Authorize(ctx context.Context, rule domain.FirewallRule) error {
	if rule.Policy != "" && !strings.EqualFold(rule.Policy, policyAccept) {
		return fmt.Errorf("ec2 security groups cannot express policy %q", rule.Policy)
	}

	perm, err := ipPermission(rule)
	if err != nil {
		return err
	}

	_, err = s.client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(rule.GroupID),
		IpPermissions: []ec2types.IpPermission{perm},
	})
	if err != nil {
		return s.apiError("authorize", err)
	}

	s.logger.Info().Str("source", rule.SourceAddress).Msg("authorized rule")
	return nil
}

// apiError logs the EC2 error code, when there is one, and returns err.
func (s *AWSStore) apiError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		s.logger.Debug().
			Str("op", op).
			Str("error_code", apiErr.ErrorCode()).
			Str("fault", apiErr.ErrorFault().String()).
			Msg("ec2 api error")
	}
	return err
}

func ipPermission(rule domain.FirewallRule) (ec2types.IpPermission, error) {
	from, to, err := parsePortRange(rule.PortRange)
	if err != nil {
		return ec2types.IpPermission{}, err
	}

	prefix, err := hostPrefix(rule.SourceAddress)
	if err != nil {
		return ec2types.IpPermission{}, err
	}

	perm := ec2types.IpPermission{
		IpProtocol: aws.String(rule.Protocol),
		FromPort:   aws.Int32(from),
		ToPort:     aws.Int32(to),
	}
	if prefix.Addr().Is4() {
		perm.IpRanges = []ec2types.IpRange{{
			CidrIp:      aws.String(prefix.String()),
			Description: aws.String(rule.Description),
		}}
	} else {
		perm.Ipv6Ranges = []ec2types.Ipv6Range{{
			CidrIpv6:    aws.String(prefix.String()),
			Description: aws.String(rule.Description),
		}}
	}
	return perm, nil
}

// hostPrefix turns an address or CIDR into a prefix; bare addresses become
// single-host prefixes.
func hostPrefix(source string) (netip.Prefix, error) {
	if addr, err := netip.ParseAddr(source); err == nil {
		addr = addr.Unmap()
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	prefix, err := netip.ParsePrefix(source)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid source address %q", source)
	}
	return prefix.Masked(), nil
}

// trimHostPrefix strips /32 and /128 from single-host CIDRs.
func trimHostPrefix(cidr string) string {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return cidr
	}
	if prefix.IsSingleIP() {
		return prefix.Addr().String()
	}
	return cidr
}

func formatPortRange(from, to *int32) string {
	f, t := int32(-1), int32(-1)
	if from != nil {
		f = *from
	}
	if to != nil {
		t = *to
	}
	return fmt.Sprintf("%d/%d", f, t)
}

func parsePortRange(portRange string) (int32, int32, error) {
	if portRange == "" {
		return -1, -1, nil
	}
	fromStr, toStr, ok := strings.Cut(portRange, "/")
	if !ok {
		toStr = fromStr
	}
	from, err := strconv.ParseInt(fromStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid port range %q", portRange)
	}
	to, err := strconv.ParseInt(toStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid port range %q", portRange)
	}
	return int32(from), int32(to), nil
}
