// Package rules validates parsed documents against structural rules and a
// configurable GTD workflow.
package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tasklint/internal/checksum"
	"github.com/starford/tasklint/internal/models"
	"github.com/starford/tasklint/pkg/config"
)

var keywordRe = regexp.MustCompile(`^[A-Z][A-Z_-]*[A-Z]$`)

// Config is the rule configuration. State lists hold heading keywords;
// the Check* switches gate the workflow rule families.
type Config struct {
	ActiveStates  []string `yaml:"active_states" toml:"active_states" json:"active_states"`
	DoneStates    []string `yaml:"done_states" toml:"done_states" json:"done_states"`
	SpecialStates []string `yaml:"special_states" toml:"special_states" json:"special_states"`

	ProjectStates   []string `yaml:"project_states" toml:"project_states" json:"project_states"`
	NextStates      []string `yaml:"next_states" toml:"next_states" json:"next_states"`
	WaitingStates   []string `yaml:"waiting_states" toml:"waiting_states" json:"waiting_states"`
	RecurringStates []string `yaml:"recurring_states" toml:"recurring_states" json:"recurring_states"`

	// RecurringMarkers are title substrings (case-insensitive) that mark a
	// heading as recurring whatever its state.
	RecurringMarkers []string `yaml:"recurring_markers" toml:"recurring_markers" json:"recurring_markers"`

	ProjectRequiredProperties []string `yaml:"project_required_properties" toml:"project_required_properties" json:"project_required_properties"`
	// WaitingProperties count as a follow-up for waiting headings.
	WaitingProperties []string `yaml:"waiting_properties" toml:"waiting_properties" json:"waiting_properties"`

	CheckStates    bool `yaml:"check_states" toml:"check_states" json:"check_states"`
	CheckProjects  bool `yaml:"check_projects" toml:"check_projects" json:"check_projects"`
	CheckNext      bool `yaml:"check_next" toml:"check_next" json:"check_next"`
	CheckWaiting   bool `yaml:"check_waiting" toml:"check_waiting" json:"check_waiting"`
	CheckRecurring bool `yaml:"check_recurring" toml:"check_recurring" json:"check_recurring"`
}

// DefaultConfig returns the stock GTD rule set.
func DefaultConfig() Config {
	return Config{
		ActiveStates:              []string{"TODO", "NEXT", "WAITING", "PROJECT", "SOMEDAY", "RECURRING"},
		DoneStates:                []string{"DONE", "CANCELLED"},
		SpecialStates:             []string{"INBOX"},
		ProjectStates:             []string{"PROJECT"},
		NextStates:                []string{"NEXT"},
		WaitingStates:             []string{"WAITING"},
		RecurringStates:           []string{"RECURRING"},
		RecurringMarkers:          []string{"(recurring)"},
		ProjectRequiredProperties: []string{models.PropTaskID},
		WaitingProperties:         []string{"WAITING_ON", "FOLLOW_UP"},
		CheckStates:               true,
		CheckProjects:             true,
		CheckNext:                 true,
		CheckWaiting:              true,
		CheckRecurring:            true,
	}
}

// LoadFile reads a YAML or TOML rules file on top of DefaultConfig.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := config.Load(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("rules: load: %w", err)
	}
	return cfg, nil
}

// Validate validates the rule configuration.
func (c *Config) Validate() error {
	keyword := validation.Each(validation.Match(keywordRe).Error("must be an uppercase keyword"))
	known := validation.Each(validation.By(c.knownState))
	property := validation.Each(validation.Required, validation.Match(regexp.MustCompile(`^[^:\s]+$`)))

	return validation.ValidateStruct(c,
		validation.Field(&c.ActiveStates, validation.Required, keyword),
		validation.Field(&c.DoneStates, keyword),
		validation.Field(&c.SpecialStates, keyword),
		validation.Field(&c.ProjectStates, known),
		validation.Field(&c.NextStates, known),
		validation.Field(&c.WaitingStates, known),
		validation.Field(&c.RecurringStates, known),
		validation.Field(&c.RecurringMarkers, validation.Each(validation.Required)),
		validation.Field(&c.ProjectRequiredProperties, property),
		validation.Field(&c.WaitingProperties, property),
	)
}

func (c *Config) knownState(value any) error {
	s, _ := value.(string)
	if !c.Allowed(s) {
		return fmt.Errorf("%q is not an active, done or special state", s)
	}
	return nil
}

// Allowed reports whether state is in the active, done or special set.
func (c *Config) Allowed(state string) bool {
	return slices.Contains(c.ActiveStates, state) ||
		slices.Contains(c.DoneStates, state) ||
		slices.Contains(c.SpecialStates, state)
}

// AllowedStates lists every legal state keyword in configuration order.
func (c *Config) AllowedStates() []string {
	out := make([]string, 0, len(c.ActiveStates)+len(c.DoneStates)+len(c.SpecialStates))
	out = append(out, c.ActiveStates...)
	out = append(out, c.DoneStates...)
	return append(out, c.SpecialStates...)
}

func (c *Config) isRecurring(h *models.Heading) bool {
	if slices.Contains(c.RecurringStates, h.State) && h.State != "" {
		return true
	}
	title := strings.ToLower(h.Title)
	for _, m := range c.RecurringMarkers {
		if m != "" && strings.Contains(title, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// Fingerprint identifies the rule set. Two configs with the same lists and
// switches share a fingerprint; cached results keyed on it go stale when the
// configuration changes.
func (c *Config) Fingerprint() string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return checksum.Short(b)
}
