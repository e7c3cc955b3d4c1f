package pluginhost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/reconwire/scancore/internal/scancore"
)

// DisabledReason explains why a plugin was taken out of rotation for the
// remainder of a scan.
type DisabledReason string

const (
	DisabledBudgetExceeded DisabledReason = "budget_exceeded"
	DisabledLoadFailed     DisabledReason = "load_failed"
	DisabledCrashed        DisabledReason = "crashed"
)

// Diagnostic is emitted when a plugin is disabled, intended for
// publication onto the event bus as a Diagnostic-category event.
type Diagnostic struct {
	Plugin string
	Reason DisabledReason
	Detail string
}

type loadedPlugin struct {
	manifest Manifest
	module   api.Module
	disabled bool
	mu       sync.Mutex
}

// Host owns a wazero runtime and the set of loaded plugins for one scan.
// A Host is scan-scoped: create one per scan and Close it when the scan
// ends.
type Host struct {
	runtime wazero.Runtime

	mu         sync.RWMutex
	plugins    map[string]*loadedPlugin
	onDisabled func(Diagnostic)
}

// New constructs a Host. onDisabled, if non-nil, is called whenever a
// plugin is disabled (wire this to eventbus.Publish in the orchestrator).
func New(ctx context.Context, onDisabled func(Diagnostic)) (*Host, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, fmt.Errorf("pluginhost: instantiate WASI: %w", err)
	}
	return &Host{
		runtime:    rt,
		plugins:    make(map[string]*loadedPlugin),
		onDisabled: onDisabled,
	}, nil
}

// Load compiles and instantiates a plugin's module, wiring only the host
// imports its manifest capabilities authorize, then calls its on_load
// hook. A capability-gated host module is registered per plugin instance
// so two plugins with different manifests never share import wiring.
func (h *Host) Load(ctx context.Context, m Manifest) error {
	hostModuleName := "env_" + m.Name
	if err := h.registerCapabilityImports(ctx, hostModuleName, m); err != nil {
		return err
	}

	compiled, err := h.runtime.CompileModule(ctx, m.Module)
	if err != nil {
		return fmt.Errorf("pluginhost: compile %s: %w", m.Name, err)
	}

	cfg := wazero.NewModuleConfig().WithName(m.Name).WithCloseOnContextDone(true)

	budgetCtx, cancel := context.WithTimeout(ctx, m.effectiveBudget())
	defer cancel()

	mod, err := h.runtime.InstantiateModule(budgetCtx, compiled, cfg)
	if err != nil {
		h.disable(m.Name, DisabledLoadFailed, err.Error())
		return fmt.Errorf("pluginhost: instantiate %s: %w", m.Name, err)
	}

	lp := &loadedPlugin{manifest: m, module: mod}
	h.mu.Lock()
	h.plugins[m.Name] = lp
	h.mu.Unlock()

	if onLoad := mod.ExportedFunction(exportOnLoad); onLoad != nil {
		if _, err := onLoad.Call(budgetCtx); err != nil {
			h.disable(m.Name, DisabledLoadFailed, err.Error())
			return fmt.Errorf("pluginhost: on_load %s: %w", m.Name, err)
		}
	}
	return nil
}

// AnalyzeBanner invokes plugin's analyze_banner hook within its CPU and
// wall-clock budget, per spec §4.13: "exceeding [the budgets] emits a
// diagnostic and disables the offending plugin for the scan." A disabled
// or unknown plugin returns (ServiceInfo{}, false, nil) rather than an
// error, so callers can fan out over all loaded plugins uniformly.
func (h *Host) AnalyzeBanner(ctx context.Context, plugin, target string, port uint16, banner []byte) (scancore.ServiceInfo, bool, error) {
	h.mu.RLock()
	lp, ok := h.plugins[plugin]
	h.mu.RUnlock()
	if !ok || lp.isDisabled() {
		return scancore.ServiceInfo{}, false, nil
	}

	fn := lp.module.ExportedFunction(exportAnalyzeBanner)
	if fn == nil {
		return scancore.ServiceInfo{}, false, nil
	}

	budgetCtx, cancel := context.WithTimeout(ctx, lp.manifest.effectiveBudget())
	defer cancel()

	reqPtr, reqLen, err := writeJSON(budgetCtx, lp.module, bannerRequest{Target: target, Port: port, Banner: banner})
	if err != nil {
		return scancore.ServiceInfo{}, false, err
	}
	defer freeGuest(budgetCtx, lp.module, reqPtr, reqLen)

	start := time.Now()
	results, err := fn.Call(budgetCtx, uint64(reqPtr), uint64(reqLen))
	elapsed := time.Since(start)

	if err != nil {
		if budgetCtx.Err() != nil || elapsed >= lp.manifest.effectiveBudget() {
			h.disable(plugin, DisabledBudgetExceeded, fmt.Sprintf("exceeded budget %s", lp.manifest.effectiveBudget()))
		} else {
			h.disable(plugin, DisabledCrashed, err.Error())
		}
		return scancore.ServiceInfo{}, false, nil
	}

	var res bannerResult
	if err := readJSON(lp.module, results[0], &res); err != nil {
		return scancore.ServiceInfo{}, false, err
	}
	if !res.Found {
		return scancore.ServiceInfo{}, false, nil
	}

	return scancore.ServiceInfo{
		Product: res.Product,
		Version: res.Version,
		OSHint:  res.OSHint,
		CPE:     res.CPE,
	}, true, nil
}

// Names returns the currently loaded plugin names, including disabled
// ones, in no particular order. Callers fan out AnalyzeBanner over this
// list rather than tracking plugin names separately.
func (h *Host) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		names = append(names, name)
	}
	return names
}

// Unload calls a plugin's on_unload hook and removes it from the host.
func (h *Host) Unload(ctx context.Context, plugin string) {
	h.mu.Lock()
	lp, ok := h.plugins[plugin]
	delete(h.plugins, plugin)
	h.mu.Unlock()
	if !ok {
		return
	}

	if fn := lp.module.ExportedFunction(exportOnUnload); fn != nil {
		budgetCtx, cancel := context.WithTimeout(ctx, lp.manifest.effectiveBudget())
		_, _ = fn.Call(budgetCtx)
		cancel()
	}
	_ = lp.module.Close(ctx)
}

// Close tears down the runtime and every loaded module.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

func (h *Host) disable(plugin string, reason DisabledReason, detail string) {
	h.mu.RLock()
	lp, ok := h.plugins[plugin]
	h.mu.RUnlock()
	if ok {
		lp.mu.Lock()
		lp.disabled = true
		lp.mu.Unlock()
	}
	if h.onDisabled != nil {
		h.onDisabled(Diagnostic{Plugin: plugin, Reason: reason, Detail: detail})
	}
}

func (lp *loadedPlugin) isDisabled() bool {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.disabled
}
