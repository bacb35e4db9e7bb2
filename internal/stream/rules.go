package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
)

// Rule is one upstream filter rule: the query the provider evaluates and the
// tag it attaches to matching events, bound to its family at registration so
// no downstream code has to inspect tag strings.
type Rule struct {
	Tag    string
	Family domain.RuleFamily
	Query  string
}

// RuleSet is the full set of rules for one stream, with tag lookup.
type RuleSet struct {
	rules []Rule
	byTag map[string]domain.RuleFamily
}

// NewRuleSet builds a rule set from the given rules
func NewRuleSet(rules []Rule) *RuleSet {
	byTag := make(map[string]domain.RuleFamily, len(rules))
	for _, r := range rules {
		byTag[r.Tag] = r.Family
	}
	return &RuleSet{rules: rules, byTag: byTag}
}

// BuildRules assembles the rule set from the configured queries. Location
// rules are tagged per location name, e.g. "location-chennai".
func BuildRules(boundingBoxQuery, addressedQuery string, locationQueries map[string]string) []Rule {
	rules := []Rule{
		{Tag: "geo-boundingbox", Family: domain.FamilyBoundingBox, Query: boundingBoxQuery},
		{Tag: "addressed-mention", Family: domain.FamilyAddressed, Query: addressedQuery},
	}
	for name, query := range locationQueries {
		rules = append(rules, Rule{
			Tag:    "location-" + name,
			Family: domain.FamilyLocationMatch,
			Query:  query,
		})
	}
	return rules
}

// FamilyFor resolves a matched tag to its rule family.
func (rs *RuleSet) FamilyFor(tag string) (domain.RuleFamily, bool) {
	family, ok := rs.byTag[tag]
	return family, ok
}

// Rules returns the rules in registration order.
func (rs *RuleSet) Rules() []Rule {
	return rs.rules
}

// wireRule is the {tag, query} pair the provisioning endpoint expects.
type wireRule struct {
	Tag   string `json:"tag"`
	Query string `json:"query"`
}

// Provisioner pushes the rule set to the upstream filter service. It runs
// once, before the stream opens; a push failure is the one fatal startup
// error of the worker.
type Provisioner struct {
	client    *http.Client
	url       string
	authToken string
	log       *zap.Logger
}

// NewProvisioner creates a new rule provisioner
func NewProvisioner(url, authToken string, log *zap.Logger) *Provisioner {
	return &Provisioner{
		client:    &http.Client{Timeout: 30 * time.Second},
		url:       url,
		authToken: authToken,
		log:       log,
	}
}

// Push converts the rule set to the wire format and posts it to the rules
// endpoint.
func (p *Provisioner) Push(ctx context.Context, rs *RuleSet) error {
	wire := make([]wireRule, 0, len(rs.rules))
	for _, r := range rs.rules {
		wire = append(wire, wireRule{Tag: r.Tag, Query: r.Query})
	}

	body, err := json.Marshal(map[string][]wireRule{"rules": wire})
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build rules request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.authToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to push rules: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("rules push rejected with status %d: %s", resp.StatusCode, respBody)
	}

	p.log.Info("Rules provisioned",
		zap.Int("rule_count", len(wire)),
		zap.Int("status", resp.StatusCode))

	return nil
}
