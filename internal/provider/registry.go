package provider

import (
	"fmt"

	"github.com/valpere/musicmanager/internal/utils"
)

// Registry is the ordered list of providers a run resolves against. It is
// built once and read concurrently afterwards.
type Registry struct {
	providers []ContentProvider
}

// NewRegistry validates providers and keeps them in the given order.
// Terminal providers must implement MediaProvider and the others
// LinkEmitter; names must be unique.
func NewRegistry(providers ...ContentProvider) (*Registry, error) {
	seen := make(map[string]bool, len(providers))
	for i, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("provider %d is nil", i)
		}
		if seen[p.Name()] {
			return nil, fmt.Errorf("duplicate provider %q", p.Name())
		}
		seen[p.Name()] = true

		if p.IsTerminal() {
			if _, ok := p.(MediaProvider); !ok {
				return nil, fmt.Errorf("terminal provider %q cannot classify", p.Name())
			}
		} else if _, ok := p.(LinkEmitter); !ok {
			return nil, fmt.Errorf("redirecting provider %q cannot emit links", p.Name())
		}
	}
	return &Registry{providers: append([]ContentProvider(nil), providers...)}, nil
}

// Providers returns the providers in registration order.
func (r *Registry) Providers() []ContentProvider {
	return append([]ContentProvider(nil), r.providers...)
}

// Len returns the number of providers.
func (r *Registry) Len() int { return len(r.providers) }

// Handling returns every provider that can handle url, in order.
func (r *Registry) Handling(url string) []ContentProvider {
	var out []ContentProvider
	for _, p := range r.providers {
		if p.CanHandle(url) {
			out = append(out, p)
		}
	}
	return out
}

// URLMatchers returns the union of the URL matchers of all providers.
func (r *Registry) URLMatchers() []string {
	var all []string
	for _, p := range r.providers {
		all = append(all, p.URLMatchers()...)
	}
	return utils.UniqueStrings(all)
}

// Names lists provider names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}
