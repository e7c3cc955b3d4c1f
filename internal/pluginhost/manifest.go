// Package pluginhost sandboxes user-provided detection-script plugins in
// a WebAssembly runtime with a declared capability manifest, per spec
// §4.13.
package pluginhost

import "time"

// Capability names a privilege a plugin may request. The host grants
// only what the manifest declares; nothing is implicit.
type Capability string

const (
	CapabilityNetwork    Capability = "network"
	CapabilityFilesystem Capability = "filesystem"
	CapabilitySystem     Capability = "system"
	CapabilityDatabase   Capability = "database"
)

// Manifest describes a single plugin: its module bytes and the
// capabilities it has declared it needs. The host enforces these at
// instantiation time by wiring (or refusing to wire) the matching host
// imports.
type Manifest struct {
	Name         string
	Capabilities []Capability
	Module       []byte

	// CPUBudget and WallBudget bound a single hook invocation (spec
	// §4.13: "scripts MUST have bounded CPU and wall-clock budgets").
	CPUBudget  time.Duration
	WallBudget time.Duration
}

// Has reports whether the manifest declares capability c.
func (m Manifest) Has(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

const (
	DefaultCPUBudget  = 50 * time.Millisecond
	DefaultWallBudget = 200 * time.Millisecond
)

func (m Manifest) cpuBudget() time.Duration {
	if m.CPUBudget <= 0 {
		return DefaultCPUBudget
	}
	return m.CPUBudget
}

// effectiveBudget is the ceiling actually enforced on a hook call.
// wazero has no separate CPU-time accounting API, so CPU and
// wall-clock budgets are both enforced as a single context deadline;
// the tighter of the two wins.
func (m Manifest) effectiveBudget() time.Duration {
	cpu, wall := m.cpuBudget(), m.wallBudget()
	if cpu < wall {
		return cpu
	}
	return wall
}

func (m Manifest) wallBudget() time.Duration {
	if m.WallBudget <= 0 {
		return DefaultWallBudget
	}
	return m.WallBudget
}
