// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrator

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"syscall"
	"time"

	"github.com/reconwire/scancore/internal/scancore"
)

// connectProbe drives one TCP Connect scan probe: a real connect() against
// addr:port. A completed connection means Open; ECONNREFUSED means
// Closed; anything else (timeout, host unreachable) means Filtered, per
// spec §4.4 row 2.
func connectProbe(ctx context.Context, addr netip.Addr, port uint16, timeout time.Duration) scancore.PortState {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(addr.String(), portString(port)))
	if err == nil {
		_ = conn.Close()
		return scancore.StateOpen
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return scancore.StateClosed
	}
	return scancore.StateFiltered
}
