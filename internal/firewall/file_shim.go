package firewall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bcnelson/homesync/internal/domain"
)

// ErrRuleMissing is returned by the file shim when a revoked rule does not exist.
var ErrRuleMissing = errors.New("rule does not exist")

// ErrRuleExists is returned by the file shim when an authorized rule already exists.
var ErrRuleExists = errors.New("rule already exists")

// FileShim is a testing implementation that keeps security groups in a JSON file.
// The file maps group ids to their rules.
type FileShim struct {
	filePath string
	logger   zerolog.Logger
	mu       sync.Mutex
}

// Ensure FileShim implements RuleStore.
var _ RuleStore = (*FileShim)(nil)

// NewFileShim creates a new file-based shim.
func NewFileShim(filePath string, logger zerolog.Logger) *FileShim {
	return &FileShim{
		filePath: filePath,
		logger:   logger.With().Str("component", "file-shim").Logger(),
	}
}

// DescribeRules reads the rules of groupID from the file.
func (f *FileShim) DescribeRules(ctx context.Context, groupID string) ([]domain.FirewallRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	groups, err := f.load()
	if err != nil {
		return nil, err
	}
	rules, ok := groups[groupID]
	if !ok {
		return nil, fmt.Errorf("security group %s does not exist", groupID)
	}
	for i := range rules {
		rules[i].GroupID = groupID
	}
	return rules, nil
}

// Revoke removes the rule matching all attributes except the id.
func (f *FileShim) Revoke(ctx context.Context, rule domain.FirewallRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	groups, err := f.load()
	if err != nil {
		return err
	}
	rules, ok := groups[rule.GroupID]
	if !ok {
		return fmt.Errorf("security group %s does not exist", rule.GroupID)
	}

	for i, existing := range rules {
		if sameRule(existing, rule) {
			groups[rule.GroupID] = append(rules[:i], rules[i+1:]...)
			if err := f.save(groups); err != nil {
				return err
			}
			f.logger.Info().Str("source", rule.SourceAddress).Msg("rule revoked")
			return nil
		}
	}
	return ErrRuleMissing
}

// Authorize appends rule to its group.
func (f *FileShim) Authorize(ctx context.Context, rule domain.FirewallRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	groups, err := f.load()
	if err != nil {
		return err
	}
	rules, ok := groups[rule.GroupID]
	if !ok {
		return fmt.Errorf("security group %s does not exist", rule.GroupID)
	}
	for _, existing := range rules {
		if sameRule(existing, rule) {
			return ErrRuleExists
		}
	}

	groups[rule.GroupID] = append(rules, rule)
	if err := f.save(groups); err != nil {
		return err
	}
	f.logger.Info().Str("source", rule.SourceAddress).Msg("rule authorized")
	return nil
}

func (f *FileShim) load() (map[string][]domain.FirewallRule, error) {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return nil, fmt.Errorf("reading rule file: %w", err)
	}

	groups := make(map[string][]domain.FirewallRule)
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parsing rule file: %w", err)
	}
	return groups, nil
}

func (f *FileShim) save(groups map[string][]domain.FirewallRule) error {
	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}

	// Write to a temp file and rename into place
	tmp := f.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing rule file: %w", err)
	}
	if err := os.Rename(tmp, f.filePath); err != nil {
		return fmt.Errorf("writing rule file: %w", err)
	}
	return nil
}

// sameRule compares every attribute the providers match a revoke on.
func sameRule(a, b domain.FirewallRule) bool {
	a.ID, b.ID = "", ""
	a.GroupID, b.GroupID = "", ""
	return a == b
}
