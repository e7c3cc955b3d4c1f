package scheduler

import "github.com/reconwire/scancore/internal/scancore"

// WorkItem is a single unit of scheduled work: one target, one port,
// under one protocol.
type WorkItem struct {
	Target   scancore.Target
	Port     uint16
	Protocol scancore.Protocol
}

// Hostgroup bundles every WorkItem for a single target, the unit the
// Concurrency Gate (§4.6 Layer 3) admits or holds back as a whole.
type Hostgroup struct {
	Target scancore.Target
	Items  []WorkItem
}
