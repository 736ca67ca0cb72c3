package schema

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tablecore/pkg/datatype"
	"github.com/ajitpratap0/tablecore/pkg/errors"
	stringpool "github.com/ajitpratap0/tablecore/pkg/strings"
)

// TypeVersion is one registered version of a named tagged type
type TypeVersion struct {
	Version     int
	Type        datatype.Tagged
	CreatedAt   time.Time
	Fingerprint string
}

// CompatibilityMode defines which redefinitions of a type are accepted
type CompatibilityMode string

const (
	// CompatibilityNone allows any redefinition
	CompatibilityNone CompatibilityMode = "NONE"
	// CompatibilityBackward keeps the existing tags, in order and with the
	// same inner types, so stored tag indexes keep their meaning. New tags
	// may only be added at the end.
	CompatibilityBackward CompatibilityMode = "BACKWARD"
)

// Registry holds named tagged types and their versions. It is safe for
// concurrent use.
type Registry struct {
	types         map[string][]*TypeVersion // name -> versions
	compatibility map[string]CompatibilityMode
	mu            sync.RWMutex
	logger        *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		types:         make(map[string][]*TypeVersion),
		compatibility: make(map[string]CompatibilityMode),
		logger:        logger,
	}
}

// Register adds t under its name. Registering a type identical to an
// existing version returns that version. A different definition becomes a
// new version if the compatibility mode of the name allows it.
func (r *Registry) Register(t datatype.Tagged) (*TypeVersion, error) {
	if t.Name == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "cannot register an unnamed tagged type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fingerprint := calculateFingerprint(t)
	versions := r.types[t.Name]
	for _, v := range versions {
		if v.Fingerprint == fingerprint && datatype.Equal(v.Type, t) {
			return v, nil
		}
	}

	mode := r.getCompatibilityMode(t.Name)
	if len(versions) > 0 {
		latest := versions[len(versions)-1]
		if err := checkCompatibility(latest.Type, t, mode); err != nil {
			return nil, err
		}
	}

	version := &TypeVersion{
		Version:     len(versions) + 1,
		Type:        t,
		CreatedAt:   time.Now(),
		Fingerprint: fingerprint,
	}
	r.types[t.Name] = append(versions, version)

	r.logger.Info("type registered",
		zap.String("name", t.Name),
		zap.Int("version", version.Version),
		zap.String("fingerprint", version.Fingerprint))

	return version, nil
}

// Get retrieves a specific version of a type
func (r *Registry) Get(name string, version int) (*TypeVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, exists := r.types[name]
	if !exists {
		return nil, errors.Newf(errors.ErrorTypeValidation, "type %s not found", name)
	}
	if version <= 0 || version > len(versions) {
		return nil, errors.Newf(errors.ErrorTypeValidation, "version %d not found for type %s", version, name)
	}
	return versions[version-1], nil
}

// Latest retrieves the latest version of a type
func (r *Registry) Latest(name string) (*TypeVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, exists := r.types[name]
	if !exists {
		return nil, errors.Newf(errors.ErrorTypeValidation, "type %s not found", name)
	}
	return versions[len(versions)-1], nil
}

// History returns all versions of a type
func (r *Registry) History(name string) ([]*TypeVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, exists := r.types[name]
	if !exists {
		return nil, errors.Newf(errors.ErrorTypeValidation, "type %s not found", name)
	}
	history := make([]*TypeVersion, len(versions))
	copy(history, versions)
	return history, nil
}

// SetCompatibilityMode sets the compatibility mode for a name
func (r *Registry) SetCompatibilityMode(name string, mode CompatibilityMode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.compatibility[name] = mode
	r.logger.Info("compatibility mode set",
		zap.String("name", name),
		zap.String("mode", string(mode)))
}

// Export writes the latest version of every type as a YAML list of type
// specs, the same form as the types section of a table spec.
func (r *Registry) Export() ([]byte, error) {
	r.mu.RLock()
	specs := make([]TypeSpec, 0, len(r.types))
	for _, versions := range r.types {
		s, err := SpecOf(versions[len(versions)-1].Type)
		if err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		specs = append(specs, s)
	}
	r.mu.RUnlock()

	sortSpecs(specs)
	return yaml.Marshal(specs)
}

// Import registers the types of a YAML list produced by Export. Types may
// reference types listed before them.
func (r *Registry) Import(data []byte) error {
	var specs []TypeSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "failed to unmarshal registry state")
	}
	return r.registerSpecs(specs)
}

func (r *Registry) registerSpecs(specs []TypeSpec) error {
	for _, s := range specs {
		if s.Kind == "" {
			s.Kind = KindTagged
		}
		if s.Kind != KindTagged {
			return errors.Newf(errors.ErrorTypeValidation, "named type %q must be tagged, got %s", s.Name, s.Kind)
		}
		t, err := s.buildTagged(r)
		if err != nil {
			return err
		}
		if _, err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// getCompatibilityMode returns the compatibility mode for a name
func (r *Registry) getCompatibilityMode(name string) CompatibilityMode {
	if mode, exists := r.compatibility[name]; exists {
		return mode
	}
	return CompatibilityBackward // Default
}

func checkCompatibility(old, updated datatype.Tagged, mode CompatibilityMode) error {
	if mode == CompatibilityNone {
		return nil
	}
	if len(updated.Tags) < len(old.Tags) {
		return errors.Newf(errors.ErrorTypeValidation, "type %s drops tags under %s compatibility", old.Name, mode)
	}
	for i, tag := range old.Tags {
		next := updated.Tags[i]
		if next.Name != tag.Name || !datatype.Equal(next.Inner, tag.Inner) {
			return errors.Newf(errors.ErrorTypeValidation, "type %s changes tag %d (%s) under %s compatibility", old.Name, i, tag.Name, mode)
		}
	}
	return nil
}

// calculateFingerprint describes a type by its tag names and inner types
func calculateFingerprint(t datatype.Tagged) string {
	return stringpool.BuildString(func(builder *stringpool.Builder) {
		builder.WriteString(t.String())
		_ = builder.WriteByte('=')
		for _, tag := range t.Tags {
			builder.WriteString(tag.Name)
			if tag.Inner != nil {
				_ = builder.WriteByte(':')
				builder.WriteString(tag.Inner.String())
			}
			_ = builder.WriteByte(';')
		}
	})
}
