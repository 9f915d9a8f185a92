package registry

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// EndpointDescriptor is one entry of a model's endpoint list.
type EndpointDescriptor struct {
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
	URL  string `yaml:"url" json:"url"`
}

// ModelDescriptor describes a configured model. A model either carries a direct URL
// or a list of endpoints; the direct URL wins when both are set.
type ModelDescriptor struct {
	Name      string               `yaml:"name" json:"name"`
	URL       string               `yaml:"url,omitempty" json:"url,omitempty"`
	Endpoints []EndpointDescriptor `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
}

// TargetKind tells which descriptor shape a probe target came from.
type TargetKind int

const (
	// TargetDirect means the model's own URL field.
	TargetDirect TargetKind = iota
	// TargetEndpoint means the first entry of the model's endpoint list.
	TargetEndpoint
)

func (k TargetKind) String() string {
	switch k {
	case TargetDirect:
		return "direct"
	case TargetEndpoint:
		return "endpoint"
	default:
		return "unknown"
	}
}

// Target is a resolved liveness-check URL.
type Target struct {
	Kind  TargetKind
	Model string
	URL   string
}

// Resolve picks the probe target of a single model descriptor.
func (m ModelDescriptor) Resolve() (Target, error) {
	if url := strings.TrimSpace(m.URL); url != "" {
		return Target{Kind: TargetDirect, Model: m.Name, URL: url}, nil
	}
	if len(m.Endpoints) > 0 {
		if url := strings.TrimSpace(m.Endpoints[0].URL); url != "" {
			return Target{Kind: TargetEndpoint, Model: m.Name, URL: url}, nil
		}
	}
	return Target{}, fmt.Errorf("%w: model %q", ErrNoTarget, m.Name)
}

// Registry holds an immutable, replaceable snapshot of the configured models.
// Readers never observe a partially applied reload.
type Registry struct {
	models atomic.Pointer[[]ModelDescriptor]
}

// NewStatic creates a registry over a fixed model list.
func NewStatic(models []ModelDescriptor) *Registry {
	r := &Registry{}
	r.Replace(models)
	return r
}

// Load creates a registry from a YAML file.
func Load(path string) (*Registry, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewStatic(cfg.Models), nil
}

// Replace swaps in a new model list. The slice is copied.
func (r *Registry) Replace(models []ModelDescriptor) {
	snapshot := make([]ModelDescriptor, len(models))
	copy(snapshot, models)
	r.models.Store(&snapshot)
}

// Models returns the current model list in configured order.
func (r *Registry) Models() []ModelDescriptor {
	snapshot := r.models.Load()
	if snapshot == nil {
		return nil
	}
	out := make([]ModelDescriptor, len(*snapshot))
	copy(out, *snapshot)
	return out
}

// ResolveTarget returns the liveness target of the first configured model.
func (r *Registry) ResolveTarget() (Target, error) {
	snapshot := r.models.Load()
	if snapshot == nil || len(*snapshot) == 0 {
		return Target{}, ErrNoModels
	}
	return (*snapshot)[0].Resolve()
}
