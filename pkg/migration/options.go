package migration

import (
	"github.com/canonica-labs/zircon/pkg/container"
)

// DefaultContextName labels logs and spans when no context name is set.
const DefaultContextName = "default"

// Options configures an Orchestrator. It is immutable once built.
type Options struct {
	overrides   []container.Descriptor
	contextName string
}

// Overrides returns a copy of the service overrides.
func (o Options) Overrides() []container.Descriptor {
	out := make([]container.Descriptor, len(o.overrides))
	copy(out, o.overrides)
	return out
}

// ContextName identifies the database being migrated in logs and spans.
func (o Options) ContextName() string {
	if o.contextName == "" {
		return DefaultContextName
	}
	return o.contextName
}

// OptionsBuilder builds Options fluently.
type OptionsBuilder struct {
	overrides   []container.Descriptor
	contextName string
}

// NewOptionsBuilder starts an empty builder.
func NewOptionsBuilder() *OptionsBuilder {
	return &OptionsBuilder{}
}

// Override replaces every registration of d.ServiceType with d.
// Several overrides for the same type are all kept, in order.
func (b *OptionsBuilder) Override(d container.Descriptor) *OptionsBuilder {
	b.overrides = append(b.overrides, d)
	return b
}

// OverrideSeeders replaces all registered seeders with the given ones.
func (b *OptionsBuilder) OverrideSeeders(seeders ...Seeder) *OptionsBuilder {
	for _, s := range seeders {
		b.Override(container.DescribeInstance(s))
	}
	return b
}

// OverrideMigrator replaces the registered migrator.
func (b *OptionsBuilder) OverrideMigrator(m Migrator) *OptionsBuilder {
	return b.Override(container.DescribeInstance(m))
}

// WithContextName sets the name used in logs and spans.
func (b *OptionsBuilder) WithContextName(name string) *OptionsBuilder {
	if name == "" {
		name = DefaultContextName
	}
	b.contextName = name
	return b
}

// Build returns Options independent of further builder calls.
func (b *OptionsBuilder) Build() Options {
	overrides := make([]container.Descriptor, len(b.overrides))
	copy(overrides, b.overrides)
	return Options{overrides: overrides, contextName: b.contextName}
}
