package source

import (
	"fmt"
	"strings"

	"github.com/covidct/builder/internal/models"
)

// Registry holds all source processors in the fixed build order. The
// order only determines final manifest ordering, not correctness.
type Registry struct {
	processors []Processor
}

// NewRegistry returns the registry with every known source, in the
// order the dataset is assembled. MosMedData comes last because it is
// only part of variant B.
func NewRegistry() *Registry {
	return &Registry{
		processors: []Processor{
			NewCNCBProcessor(),
			NewRadiopaediaProcessor(),
			NewLIDCProcessor(),
			NewCOVID1920Processor(),
			NewTCIAProcessor(),
			NewCOVIDCTSetProcessor(),
			NewICTCFProcessor(),
			NewCOVIDCTMDProcessor(),
			NewSTOICProcessor(),
			NewStonyBrookProcessor(),
			NewMosMedProcessor(),
		},
	}
}

// NewRegistryWith builds a registry from an explicit processor list.
func NewRegistryWith(processors ...Processor) *Registry {
	return &Registry{processors: processors}
}

// Register adds a processor to the end of the build order.
func (r *Registry) Register(p Processor) {
	r.processors = append(r.processors, p)
}

// Ordered returns every processor in build order.
func (r *Registry) Ordered() []Processor {
	return r.processors
}

// ForVersion returns the processors participating in a dataset version.
// MosMedData is excluded unless the version's variant includes it.
func (r *Registry) ForVersion(v models.Version) []Processor {
	out := make([]Processor, 0, len(r.processors))
	for _, p := range r.processors {
		if p.Name() == mosMedName && !v.IncludesMosMed() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ByName returns a processor by its source tag.
func (r *Registry) ByName(name string) (Processor, error) {
	name = strings.ToLower(name)
	for _, p := range r.processors {
		if strings.ToLower(p.Name()) == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown source: %s", name)
}
