package replacement

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/model"
)

//go:embed rules.json
var defaultRulesJSON []byte

// DefaultPlanningWindowDays is how far ahead a device's end of support may be
// before it is left alone
const DefaultPlanningWindowDays = 1095

// ErrInvalidRules is returned when a rules document is unusable
var ErrInvalidRules = errors.New("invalid replacement rules")

// Tier picks a migration target by port count. MaxPorts of zero matches any
// port count.
type Tier struct {
	MaxPorts int    `json:"max_ports,omitempty"`
	Target   string `json:"target"`
}

// Migration moves a whole series range onto a new platform regardless of how
// far away its end of support is.
type Migration struct {
	Name           string `json:"name"`
	Prefix         string `json:"prefix"`
	Numbers        []int  `json:"numbers,omitempty"`
	MinNumber      int    `json:"min_number,omitempty"`
	PoESuffix      string `json:"poe_suffix,omitempty"`
	MultigigSuffix string `json:"multigig_suffix,omitempty"`
	Tiers          []Tier `json:"tiers"`
}

// UsageMetric names a field of model.Usage
type UsageMetric string

const (
	MetricThroughput      UsageMetric = "throughput_mbps"
	MetricClientCount     UsageMetric = "client_count"
	MetricWirelessClients UsageMetric = "wireless_clients"
)

// UsageUpgrade moves listed models to a bigger target when a usage metric is
// above a threshold.
type UsageUpgrade struct {
	Family model.Family `json:"family"`
	Metric UsageMetric  `json:"metric"`
	Above  int          `json:"above"`
	Models []string     `json:"models"`
	Target string       `json:"target"`
}

// Rules is the declarative replacement rule set
type Rules struct {
	PlanningWindowDays   int                     `json:"planning_window_days"`
	Replacements         map[string]string       `json:"replacements"`
	CurrentGeneration    []string                `json:"current_generation"`
	WirelessPreference   map[string]string       `json:"wireless_preference"`
	SeriesDefaults       map[string]string       `json:"series_defaults"`
	FamilyDefaults       map[model.Family]string `json:"family_defaults"`
	Migrations           []Migration             `json:"migrations"`
	UsageUpgrades        []UsageUpgrade          `json:"usage_upgrades"`
	PoEVariants          []string                `json:"poe_variants"`
	VariantNormalization map[string]string       `json:"variant_normalization"`
}

// DefaultRules returns the built-in rule set
func DefaultRules() *Rules {
	r, err := DecodeRules(defaultRulesJSON)
	if err != nil {
		panic(fmt.Sprintf("replacement: embedded rules are invalid: %v", err))
	}
	return r
}

// LoadRules reads a rules document from r
func LoadRules(r io.Reader) (*Rules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read replacement rules: %w", err)
	}
	return DecodeRules(data)
}

// DecodeRules parses and validates a rules document
func DecodeRules(data []byte) (*Rules, error) {
	var r Rules
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate rejects rule sets that could recommend a model for itself
func (r *Rules) Validate() error {
	if r.PlanningWindowDays < 0 {
		return fmt.Errorf("%w: negative planning window", ErrInvalidRules)
	}
	for from, to := range r.Replacements {
		if eol.Normalize(from) == eol.Normalize(to) {
			return fmt.Errorf("%w: %s maps to itself", ErrInvalidRules, from)
		}
	}
	for i, m := range r.Migrations {
		if len(m.Tiers) == 0 {
			return fmt.Errorf("%w: migration %d (%s) has no tiers", ErrInvalidRules, i, m.Name)
		}
		if last := m.Tiers[len(m.Tiers)-1]; last.MaxPorts != 0 {
			return fmt.Errorf("%w: migration %d (%s) needs an open-ended last tier", ErrInvalidRules, i, m.Name)
		}
	}
	for i, u := range r.UsageUpgrades {
		switch u.Metric {
		case MetricThroughput, MetricClientCount, MetricWirelessClients:
		default:
			return fmt.Errorf("%w: usage upgrade %d has unknown metric %q", ErrInvalidRules, i, u.Metric)
		}
	}
	return nil
}

// MappingKeys returns the replacement table keys in sorted order
func (r *Rules) MappingKeys() []string {
	keys := make([]string, 0, len(r.Replacements))
	for k := range r.Replacements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (u UsageUpgrade) value(usage *model.Usage) int {
	switch u.Metric {
	case MetricThroughput:
		return usage.ThroughputMbps
	case MetricClientCount:
		return usage.ClientCount
	case MetricWirelessClients:
		return usage.WirelessClients
	}
	return 0
}
