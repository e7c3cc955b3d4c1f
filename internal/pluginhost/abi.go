package pluginhost

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// guest exports this ABI, modeled on the common wazero "pointer+length"
// convention: alloc/dealloc manage a scratch region in guest linear
// memory, and analyze_banner returns a packed (ptr<<32|len) i64 pointing
// at a JSON-encoded result.
const (
	exportAlloc         = "alloc"
	exportDealloc       = "dealloc"
	exportOnLoad        = "on_load"
	exportAnalyzeBanner = "analyze_banner"
	exportOnUnload      = "on_unload"
)

type bannerRequest struct {
	Target string `json:"target"`
	Port   uint16 `json:"port"`
	Banner []byte `json:"banner"`
}

// bannerResult mirrors Option<ServiceInfo>: Found=false means the plugin
// declined to identify the banner.
type bannerResult struct {
	Found   bool   `json:"found"`
	Product string `json:"product"`
	Version string `json:"version"`
	OSHint  string `json:"os_hint"`
	CPE     string `json:"cpe"`
}

func writeJSON(ctx context.Context, mod api.Module, v any) (ptr, length uint32, err error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, 0, fmt.Errorf("pluginhost: marshal request: %w", err)
	}

	alloc := mod.ExportedFunction(exportAlloc)
	if alloc == nil {
		return 0, 0, fmt.Errorf("pluginhost: module does not export %q", exportAlloc)
	}
	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, 0, fmt.Errorf("pluginhost: alloc failed: %w", err)
	}
	ptr = uint32(results[0])

	if !mod.Memory().Write(ptr, data) {
		return 0, 0, fmt.Errorf("pluginhost: write out of bounds at %d (%d bytes)", ptr, len(data))
	}
	return ptr, uint32(len(data)), nil
}

func readJSON(mod api.Module, packed uint64, out any) error {
	ptr := uint32(packed >> 32)
	length := uint32(packed)
	if length == 0 {
		return nil
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return fmt.Errorf("pluginhost: read out of bounds at %d (%d bytes)", ptr, length)
	}
	return json.Unmarshal(data, out)
}

func freeGuest(ctx context.Context, mod api.Module, ptr, length uint32) {
	dealloc := mod.ExportedFunction(exportDealloc)
	if dealloc == nil || length == 0 {
		return
	}
	_, _ = dealloc.Call(ctx, uint64(ptr), uint64(length))
}
