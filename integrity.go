package geostore

import (
	"context"
)

// IntegrityWarning reports a path node reference that does not resolve to a
// stored node. Referential integrity is advisory: dangling references are
// allowed to exist and are surfaced here instead of failing writes.
type IntegrityWarning struct {
	PathID  int64
	NodeID  int64
	Ordinal int
}

// VerifyIntegrity scans every path and checks its node references against
// the set of stored node ids. It returns one warning per dangling reference,
// in path scan order.
func (g *Geostore) VerifyIntegrity(ctx context.Context) ([]IntegrityWarning, error) {
	ids, err := g.backend.NodeIDs()
	if err != nil {
		g.logger.LogIntegrityCheck(ctx, 0, err)
		return nil, translateError(err)
	}

	var warnings []IntegrityWarning
	for p, err := range g.backend.ScanPaths() {
		if err != nil {
			g.logger.LogIntegrityCheck(ctx, len(warnings), err)
			return nil, translateError(err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i, ref := range p.Nodes {
			if !ids.Contains(ref) {
				warnings = append(warnings, IntegrityWarning{PathID: p.ID, NodeID: ref, Ordinal: i})
			}
		}
	}

	g.logger.LogIntegrityCheck(ctx, len(warnings), nil)
	return warnings, nil
}
