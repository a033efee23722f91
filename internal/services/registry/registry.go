// Package registry holds the static provider table the synthesizer selects from.
package registry

import (
	"sort"
	"strings"

	"github.com/praxislearn/curricula/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Descriptor is one provider entry: its name plus its static configuration.
type Descriptor struct {
	Name string
	models.ProviderConfig
}

// Enabled reports whether the provider has a credential configured.
func (d Descriptor) Enabled() bool {
	return d.APIKey != ""
}

// Registry is an immutable, priority-ordered provider table.
type Registry struct {
	ordered []Descriptor
	byName  map[string]Descriptor
}

// New builds a registry from the configured provider map. Order is
// deterministic: tier ascending, then name ascending within a tier.
func New(providers map[string]models.ProviderConfig) *Registry {
	ordered := make([]Descriptor, 0, len(providers))
	byName := make(map[string]Descriptor, len(providers))

	for name, cfg := range providers {
		d := Descriptor{Name: strings.ToLower(name), ProviderConfig: cfg}
		ordered = append(ordered, d)
		byName[d.Name] = d
	}

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Tier != ordered[j].Tier {
			return ordered[i].Tier < ordered[j].Tier
		}
		return ordered[i].Name < ordered[j].Name
	})

	for _, d := range ordered {
		if !d.Enabled() {
			fiberlog.Infof("Registry: provider %s configured without credential, disabled", d.Name)
		}
	}

	return &Registry{ordered: ordered, byName: byName}
}

// Get returns the descriptor for a provider name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.byName[strings.ToLower(name)]
	return d, ok
}

// All returns every descriptor in priority order, including disabled ones.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Candidates returns the enabled descriptors in selection order. When
// preferred names an enabled provider it is moved to the front; unknown or
// disabled preferred names are ignored.
func (r *Registry) Candidates(preferred string) []Descriptor {
	out := make([]Descriptor, 0, len(r.ordered))

	preferred = strings.ToLower(preferred)
	if preferred != "" {
		if d, ok := r.byName[preferred]; ok && d.Enabled() {
			out = append(out, d)
		} else {
			fiberlog.Debugf("Registry: preferred provider %q not eligible, using tier order", preferred)
			preferred = ""
		}
	}

	for _, d := range r.ordered {
		if !d.Enabled() || d.Name == preferred {
			continue
		}
		out = append(out, d)
	}
	return out
}
