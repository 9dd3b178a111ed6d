// Package validation checks firewall rules before they are sent to a provider.
// Providers report attributes in mixed case ("Accept", "TCP"), so comparisons
// are case-insensitive.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bcnelson/homesync/internal/domain"
)

var validate = validator.New()

var validPolicies = map[string]bool{
	"accept": true,
	"drop":   true,
}

// Named protocols accepted by at least one provider. Numeric protocols
// (0-255) and "-1" are accepted as well.
var validProtocols = map[string]bool{
	"tcp":    true,
	"udp":    true,
	"icmp":   true,
	"icmpv6": true,
	"gre":    true,
	"all":    true,
}

var messages = map[string]string{
	"required":  "is required",
	"ip|cidr":   "must be an address or CIDR prefix",
	"policy":    "must be accept or drop",
	"protocol":  "unknown protocol",
	"portrange": "must be <from>/<to> with ports between -1 and 65535",
	"portorder": "from must not exceed to",
}

// ruleFields is the subset of a rule a replacement carries over unchanged.
type ruleFields struct {
	SourceAddress string `json:"source_address" validate:"required,ip|cidr"`
	Policy        string `json:"policy" validate:"omitempty,policy"`
	Protocol      string `json:"protocol" validate:"protocol"`
	PortRange     string `json:"port_range" validate:"omitempty,portrange"`
}

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	validate.RegisterValidation("policy", func(fl validator.FieldLevel) bool {
		return validPolicies[strings.ToLower(fl.Field().String())]
	})
	validate.RegisterValidation("protocol", func(fl validator.FieldLevel) bool {
		return validProtocol(fl.Field().String())
	})
	validate.RegisterValidation("portrange", func(fl validator.FieldLevel) bool {
		_, _, err := parsePortRange(fl.Field().String())
		return err == nil
	})
	validate.RegisterStructValidation(portOrder, ruleFields{})
}

// ValidateRule checks the attributes a replacement rule must carry over
// from the rule it replaces.
func ValidateRule(rule domain.FirewallRule) error {
	err := validate.Struct(ruleFields{
		SourceAddress: rule.SourceAddress,
		Policy:        rule.Policy,
		Protocol:      rule.Protocol,
		PortRange:     rule.PortRange,
	})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	var errs ValidationErrors
	for _, fe := range fieldErrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "failed " + fe.Tag() + " check"
		}
		errs.Add(fe.Field(), fmt.Sprint(fe.Value()), msg)
	}
	return errs.Err()
}

// portOrder rejects reversed port ranges. ICMP ranges carry type/code and are
// not ordered.
func portOrder(sl validator.StructLevel) {
	rf := sl.Current().Interface().(ruleFields)
	switch strings.ToLower(rf.Protocol) {
	case "tcp", "udp", "6", "17":
	default:
		return
	}
	from, to, err := parsePortRange(rf.PortRange)
	if err == nil && from > to {
		sl.ReportError(rf.PortRange, "port_range", "PortRange", "portorder", "")
	}
}

func validProtocol(protocol string) bool {
	p := strings.ToLower(protocol)
	if validProtocols[p] || p == "-1" {
		return true
	}
	n, err := strconv.Atoi(p)
	return err == nil && n >= 0 && n <= 255
}

// parsePortRange parses "<from>/<to>". An empty range means all ports.
func parsePortRange(portRange string) (int, int, error) {
	if portRange == "" {
		return -1, -1, nil
	}
	fromStr, toStr, ok := strings.Cut(portRange, "/")
	if !ok {
		return 0, 0, fmt.Errorf("missing '/' in %q", portRange)
	}
	from, err := strconv.Atoi(fromStr)
	if err != nil {
		return 0, 0, err
	}
	to, err := strconv.Atoi(toStr)
	if err != nil {
		return 0, 0, err
	}
	if from < -1 || from > 65535 || to < -1 || to > 65535 {
		return 0, 0, fmt.Errorf("port out of range in %q", portRange)
	}
	return from, to, nil
}
