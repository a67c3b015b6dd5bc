// Package geostore provides an embeddable storage layer for large-scale
// geographic map data.
//
// Geostore stores two entity kinds: nodes (points with decimicro-degree
// coordinates, derived spatial cells and tags) and paths (ordered node
// reference sequences with tags). Tag strings are interned through an
// append-only dictionary so records carry compact integer ids instead of
// repeated text.
//
// Two backends realize the same logical contents:
//
//   - Analytical: partitioned columnar blocks with per-column codecs and
//     compression, buffered writes and lazy last-write-wins reconciliation.
//     Optionally persisted to a pluggable blobstore (local disk, S3, MinIO).
//   - Embedded: a single-file transactional bbolt database with normalized
//     relations and immediately consistent point lookups.
//
// # Quick Start
//
// Analytical backend with local persistence:
//
//	ctx := context.Background()
//	gs, err := geostore.NewAnalytical(ctx,
//	    geostore.WithBlobStore(blobstore.NewLocalStore("./data")),
//	    geostore.WithAutoReconcile(30*time.Second),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer gs.Close()
//
//	err = gs.UpsertNode(ctx, geostore.NodeRecord{
//	    ID:    42,
//	    Coord: model.FromDegrees(52.5200, 13.4050),
//	    Tags:  map[string]string{"highway": "traffic_signals"},
//	})
//
// Spatially bounded scan:
//
//	box := &model.BoundingBox{
//	    MinDecimicroLat: 525_000_000, MaxDecimicroLat: 526_000_000,
//	    MinDecimicroLon: 133_000_000, MaxDecimicroLon: 135_000_000,
//	}
//	for rec, err := range gs.ScanNodes(ctx, box) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    process(rec)
//	}
//
// Embedded backend:
//
//	gs, err := geostore.OpenEmbedded("./map.db")
//
// # Consistency
//
// Node upserts replace the whole record, including derived cells. Path
// upserts replace the whole node sequence in order. Referential integrity
// between paths and nodes is advisory; use VerifyIntegrity to find dangling
// references after partial loads.
package geostore
