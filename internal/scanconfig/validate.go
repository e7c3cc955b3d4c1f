package scanconfig

import (
	"fmt"
	"strings"

	"github.com/reconwire/scancore/internal/scancore"
)

// ValidationError is a single configuration problem, modeled on the
// teacher's config package: field name, message, and severity so warnings
// don't block a scan while errors do.
type ValidationError struct {
	Field    string
	Message  string
	Severity string // "error" (default) or "warning"
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass rather than
// failing fast, matching spec §7's "lists every violation found" policy.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any entry has Severity "error" (the default).
func (e ValidationErrors) HasErrors() bool {
	for _, err := range e {
		if err.Severity == "" || err.Severity == "error" {
			return true
		}
	}
	return false
}

// Validate runs every structural, cross-field, and semantic check against
// the configuration and returns every violation found.
func (c *ScanConfig) Validate() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, c.validateStructural()...)
	errs = append(errs, c.validateCrossField()...)
	errs = append(errs, c.validateSemantic()...)

	return errs
}

func (c *ScanConfig) validateStructural() ValidationErrors {
	var errs ValidationErrors

	if len(c.Targets) == 0 {
		errs = append(errs, ValidationError{Field: "targets", Message: "at least one target is required"})
	}
	if c.Ports == nil || c.Ports.Len() == 0 {
		errs = append(errs, ValidationError{Field: "ports", Message: "at least one (port, protocol) pair is required"})
	}
	if c.MmsgBatchSize < 1 || c.MmsgBatchSize > 1024 {
		errs = append(errs, ValidationError{Field: "mmsg_batch_size", Message: "must be in [1, 1024]"})
	}
	if c.Fragmentation.Enabled && c.Fragmentation.MTUBytes%8 != 0 {
		errs = append(errs, ValidationError{Field: "fragmentation.mtu_bytes", Message: "must be a multiple of 8"})
	}
	if c.ServiceDetection.Enabled && (c.ServiceDetection.Intensity < 0 || c.ServiceDetection.Intensity > 9) {
		errs = append(errs, ValidationError{Field: "service_detection.intensity", Message: "must be in 0..9"})
	}
	if c.RateLimitRequested && c.MaxRatePPS == 0 {
		errs = append(errs, ValidationError{Field: "max_rate_pps", Message: "must be > 0 when rate limiting is requested"})
	}

	return errs
}

func (c *ScanConfig) validateCrossField() ValidationErrors {
	var errs ValidationErrors

	if c.IPVPreference == V4Only || c.IPVPreference == Force4 {
		for _, t := range c.Targets {
			if t.IsIPv6() {
				errs = append(errs, ValidationError{Field: "ipv_preference", Message: "IPv4-only conflicts with an IPv6 literal target"})
				break
			}
		}
	}
	if c.IPVPreference == V6Only || c.IPVPreference == Force6 {
		for _, t := range c.Targets {
			if !t.IsIPv6() {
				errs = append(errs, ValidationError{Field: "ipv_preference", Message: "IPv6-only conflicts with an IPv4 literal target"})
				break
			}
		}
	}

	if c.ScanType == scancore.ScanIdle && !c.Idle.Zombie.IsValid() && !c.Idle.AutoDiscover {
		errs = append(errs, ValidationError{Field: "idle.zombie", Message: "idle scan requires an explicit zombie address or auto-discovery"})
	}

	if len(c.Decoys.Sources) > 0 {
		if c.Decoys.MeIndex < 0 || c.Decoys.MeIndex > len(c.Decoys.Sources) {
			errs = append(errs, ValidationError{Field: "decoys.me_index", Message: "ME position out of range"})
		}
	}

	if c.MaxConcurrentTargets > 0 && c.MinConcurrentTargets > c.MaxConcurrentTargets {
		errs = append(errs, ValidationError{Field: "min_concurrent_targets", Message: "must not exceed max_concurrent_targets"})
	}

	return errs
}

func (c *ScanConfig) validateSemantic() ValidationErrors {
	var errs ValidationErrors

	// The hard max_rate_pps==0 boundary (spec §8) is enforced in
	// validateStructural via RateLimitRequested. This check is a separate,
	// softer one: adaptive ICMP backoff with no rate cap and no
	// concurrency cap has nothing to back off.
	if c.AdaptiveRateICMPBackoff && c.MaxRatePPS == 0 && c.MaxConcurrentTargets == 0 {
		errs = append(errs, ValidationError{
			Field:    "max_rate_pps",
			Message:  "adaptive ICMP backoff requires either a rate cap or a concurrency cap to have an effect",
			Severity: "warning",
		})
	}

	if c.CDNFilterMode == CDNFilterWhitelist || c.CDNFilterMode == CDNFilterBlacklist {
		if len(c.CDNSet) == 0 {
			errs = append(errs, ValidationError{Field: "cdn_filter_mode", Message: "whitelist/blacklist mode requires a non-empty CDN set"})
		}
	}

	if c.OSDetection.Enabled && c.OSDetection.RequireOpenAndClosed {
		// Enforced at scan time against discovered ports; nothing to check
		// statically beyond the flag itself being well-formed, which it is
		// by construction (bool).
		_ = c.OSDetection.RequireOpenAndClosed
	}

	for _, t := range c.Targets {
		if t.IsIPv6() && t.Addr.IsUnspecified() {
			errs = append(errs, ValidationError{Field: "targets", Message: "unspecified IPv6 address is not a valid target"})
		}
	}

	return errs
}
