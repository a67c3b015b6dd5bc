// Package bolt implements the embedded transactional backend on top of
// bbolt. It realizes the normalized layout profile: tags and path node
// references are stored as rows keyed by the owning entity instead of packed
// columns, and every upsert or delete is one serializable write transaction.
//
// Buckets:
//
//	nodes          id -> lat(4) lon(4) cell12(8)
//	node_tags      id || key_id -> value_id
//	node_cells     cell3 || cell12 || id -> nil (spatial scan index)
//	paths          id -> node count(4)
//	path_nodes     id || ordinal(4) -> node id
//	path_tags      id || key_id -> value_id
//	strings        id -> text
//	strings_text   text -> id
//
// Integer key components are big-endian so cursor order matches numeric
// order, which is what makes the node_cells bucket a clustered spatial index.
package bolt
