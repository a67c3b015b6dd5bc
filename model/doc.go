// Package model defines the logical record types shared by all geostore
// backends.
//
// # Entities
//
//   - Node: a point entity with decimicro-degree coordinates, derived
//     coarse/fine spatial cells, and interned tags
//   - Path: an ordered sequence of node references with interned tags
//
// # Primitives
//
//   - GeoCoord: a validated decimicro-degree coordinate pair
//   - BoundingBox: an axis-aligned scan region, antimeridian-aware
//
// Tags on both entity kinds are mappings from interned string ids to interned
// string ids; the raw text lives in the string table, never in the record.
package model
