package scheduler

import (
	"context"

	"github.com/reconwire/scancore/internal/scancore"
	"github.com/reconwire/scancore/internal/scanconfig"
)

// DefaultQueueDepth bounds the Hostgroup output channel.
const DefaultQueueDepth = 1024

// ExpandSpecs resolves a list of raw target specs (IP literals, CIDRs,
// hostnames) into scancore.Targets, honoring the configured IPv
// preference and CIDR network/broadcast exclusion policy. The result is
// what ScanConfig.Targets is populated with before scheduling begins.
func ExpandSpecs(ctx context.Context, specs []string, pref scanconfig.IPVPreference, excludeNetworkBroadcast bool) ([]scancore.Target, error) {
	var targets []scancore.Target
	for _, spec := range specs {
		addrs, hostname, err := ParseTargetSpec(ctx, spec, pref, excludeNetworkBroadcast, nil)
		if err != nil {
			return nil, err
		}
		for _, addr := range addrs {
			targets = append(targets, scancore.Target{Addr: addr, Hostname: hostname})
		}
	}
	return targets, nil
}

// Scheduler turns a resolved target list and port spec into a stream of
// per-target Hostgroups (spec §4.3).
type Scheduler struct {
	targets    []scancore.Target
	ports      []scancore.PortProto
	cdn        CDNFilter
	queueDepth int
}

// New builds a Scheduler. permutationKey seeds the deterministic target
// and port orderings; queueDepth <= 0 uses DefaultQueueDepth.
func New(targets []scancore.Target, ports *scancore.PortSpec, cdn CDNFilter, permutationKey uint64, queueDepth int) *Scheduler {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}

	targetPerm := KeyedPermutation(len(targets), permutationKey)
	orderedTargets := ApplyPermutation(targets, targetPerm)

	portList := ports.Ports()
	portPerm := KeyedPermutation(len(portList), permutationKey+1)
	orderedPorts := ApplyPermutation(portList, portPerm)

	return &Scheduler{
		targets:    orderedTargets,
		ports:      orderedPorts,
		cdn:        cdn,
		queueDepth: queueDepth,
	}
}

// Stream produces one Hostgroup per target (skipping targets the CDN
// filter rejects) onto a bounded channel, closing it once every target
// has been emitted or ctx is cancelled.
func (s *Scheduler) Stream(ctx context.Context) <-chan Hostgroup {
	out := make(chan Hostgroup, s.queueDepth)

	go func() {
		defer close(out)
		for _, target := range s.targets {
			if !s.cdn.Allow(target.Addr) {
				continue
			}

			items := make([]WorkItem, 0, len(s.ports))
			for _, pp := range s.ports {
				items = append(items, WorkItem{Target: target, Port: pp.Port, Protocol: pp.Protocol})
			}

			select {
			case out <- Hostgroup{Target: target, Items: items}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// TotalWorkItems returns how many (target, port, protocol) items this
// Scheduler will ultimately emit, ignoring CDN filtering.
func (s *Scheduler) TotalWorkItems() int {
	return len(s.targets) * len(s.ports)
}
