package tracker

import (
	"fmt"
	"sort"
	"strings"

	"MailTracker/internal/config"
)

// Registry keeps a mapping from tracker names to their built-in profiles.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: map[string]Profile{}}
}

// DefaultRegistry holds the application and proposal trackers.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(Application())
	reg.Register(Proposal())
	return reg
}

// Register adds or replaces a profile.
func (r *Registry) Register(profile Profile) {
	if r.profiles == nil {
		r.profiles = map[string]Profile{}
	}
	r.profiles[strings.ToLower(profile.Name)] = profile
}

// Resolve returns a copy of the named profile or an error if it is absent.
func (r *Registry) Resolve(name string) (Profile, error) {
	if profile, ok := r.profiles[strings.ToLower(strings.TrimSpace(name))]; ok {
		return profile.clone(), nil
	}
	return Profile{}, fmt.Errorf("tracker %q is not registered (known: %s)", name, strings.Join(r.names(), ", "))
}

// Configure resolves cfg.Kind and applies the vocabulary overrides from cfg.
func (r *Registry) Configure(cfg config.TrackerConfig) (Profile, error) {
	profile, err := r.Resolve(cfg.Kind)
	if err != nil {
		return Profile{}, err
	}

	if len(cfg.Statuses) > 0 {
		profile.Statuses = make([]Status, 0, len(cfg.Statuses))
		for _, s := range cfg.Statuses {
			profile.Statuses = append(profile.Statuses, Status{Name: strings.TrimSpace(s.Name), Rank: s.Rank})
		}
	}
	if cfg.DefaultStatus != "" {
		profile.DefaultStatus = cfg.DefaultStatus
	}
	if cfg.StaleStatus != "" {
		profile.StaleStatus = cfg.StaleStatus
	}
	if len(cfg.OverrideStatuses) > 0 {
		profile.OverrideStatuses = append([]string(nil), cfg.OverrideStatuses...)
	}
	if len(cfg.TerminalStatuses) > 0 {
		profile.TerminalStatuses = append([]string(nil), cfg.TerminalStatuses...)
	}

	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
