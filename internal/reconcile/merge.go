package reconcile

import "github.com/lunastore/storefront/internal/cart"

// clampLines defensively caps every line at its own reported stock. The
// server is expected to enforce this already; any excess is treated as a
// soft inconsistency and corrected for display. Returns the number of
// clamps applied.
func clampLines(lines []cart.Line) ([]cart.Line, int) {
	clamped := 0
	out := make([]cart.Line, len(lines))
	copy(out, lines)
	for i := range out {
		if out[i].ClampToStock() {
			clamped++
		}
	}
	return out, clamped
}

// mergeSnapshot combines the remote cart with local state: remote lines
// first in remote order, then local-only lines that the remote cart does
// not already represent, in their original relative order. Synced local
// lines are superseded by the snapshot; the ones absent remotely were
// consumed or invalidated server-side and are dropped. Local cart item
// ids are kept stable for lines that survive.
func mergeSnapshot(local, remote []cart.Line) []cart.Line {
	byBackendID := make(map[string]string, len(local))
	for _, line := range local {
		if line.Synced() {
			byBackendID[line.BackendID] = line.CartItemID
		}
	}

	merged := make([]cart.Line, 0, len(remote)+len(local))
	for _, line := range remote {
		if id, ok := byBackendID[line.BackendID]; ok {
			line.CartItemID = id
		}
		merged = append(merged, line)
	}

	for _, line := range local {
		if line.Synced() {
			continue
		}
		if shadowedByRemote(line, remote) {
			continue
		}
		merged = append(merged, line)
	}
	return merged
}

func shadowedByRemote(line cart.Line, remote []cart.Line) bool {
	for _, candidate := range remote {
		if line.Matches(candidate) {
			return true
		}
	}
	return false
}
