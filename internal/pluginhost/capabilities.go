package pluginhost

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// registerCapabilityImports builds the host module a plugin's WASM
// module imports from, wiring in only the functions its manifest
// declares a need for. A capability not granted is simply absent from
// the import namespace, so a non-conforming guest module fails at
// instantiation with an "unresolved import" error rather than silently
// getting a no-op.
func (h *Host) registerCapabilityImports(ctx context.Context, hostModuleName string, m Manifest) error {
	builder := h.runtime.NewHostModuleBuilder(hostModuleName)

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) {
			// host_log(ptr, len): always available, capability-free.
			if msg, ok := mod.Memory().Read(ptr, length); ok {
				_ = msg // read and discarded; the message is not forwarded to any log
			}
		}).
		Export("host_log")

	if m.Has(CapabilityNetwork) {
		builder.NewFunctionBuilder().
			WithFunc(func(context.Context, api.Module, uint32, uint32) uint32 {
				// Plugins never get a raw socket; network capability
				// only permits read access to already-captured banner
				// data supplied via analyze_banner's request payload.
				return 0
			}).
			Export("host_network_noop")
	}

	if m.Has(CapabilityFilesystem) {
		builder.NewFunctionBuilder().
			WithFunc(func(context.Context, api.Module, uint32, uint32) uint32 {
				return 0
			}).
			Export("host_fs_noop")
	}

	if m.Has(CapabilitySystem) {
		builder.NewFunctionBuilder().
			WithFunc(func(context.Context, api.Module) uint64 {
				return 0
			}).
			Export("host_clock_now")
	}

	if m.Has(CapabilityDatabase) {
		builder.NewFunctionBuilder().
			WithFunc(func(context.Context, api.Module, uint32, uint32) uint32 {
				return 0
			}).
			Export("host_db_noop")
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("pluginhost: register imports for %s: %w", m.Name, err)
	}
	return nil
}
