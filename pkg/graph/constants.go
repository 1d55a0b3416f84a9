// Package graph builds cluster views over vertex and edge point sets and
// holds the socket graph model used to consolidate relations after points
// were pruned or reordered.
package graph

import (
	"strconv"

	"github.com/sanonone/pcgcluster/pkg/data"
)

// Tags and attributes shared by every cluster producer and consumer. They
// must round-trip exactly between pipeline stages.
const (
	// TagCluster is a value tag holding the cluster id on both the vertex
	// set and its edge sets.
	TagCluster = "PCGEx/Cluster"
	// TagVtx marks a vertex set.
	TagVtx = "PCGEx/Vtx"
	// TagEdges marks an edge set.
	TagEdges = "PCGEx/Edges"

	// AttrVtxEndpoint packs {vertex id, degree} on each vertex.
	AttrVtxEndpoint = "PCGEx/VtxEndpoint"
	// AttrEdgeEndpoints packs {start vertex id, end vertex id} on each edge.
	AttrEdgeEndpoints = "PCGEx/EdgeEndpoints"
	// AttrClusterID stores the cluster id on vertices and edges.
	AttrClusterID = "PCGEx/ClusterId"
)

// ClusterID returns the cluster id tagged on io.
func ClusterID(io *data.PointIO) (string, bool) {
	return io.Tags.Get(TagCluster)
}

// MarkVtx tags io as the vertex set of cluster id.
func MarkVtx(io *data.PointIO, id uint64) {
	io.Tags.Remove(TagEdges)
	io.Tags.Add(TagVtx)
	io.Tags.Set(TagCluster, strconv.FormatUint(id, 10))
}

// MarkEdges tags io as an edge set of cluster id.
func MarkEdges(io *data.PointIO, id uint64) {
	io.Tags.Remove(TagVtx)
	io.Tags.Add(TagEdges)
	io.Tags.Set(TagCluster, strconv.FormatUint(id, 10))
}

// IsVtx reports whether io is tagged as a vertex set.
func IsVtx(io *data.PointIO) bool { return io.Tags.Has(TagVtx) }

// IsEdges reports whether io is tagged as an edge set.
func IsEdges(io *data.PointIO) bool { return io.Tags.Has(TagEdges) }

// Batch is one vertex set and the edge sets bound to it.
type Batch struct {
	Vtx   *data.PointIO
	Edges []*data.PointIO
}

// GroupBatches pairs every vertex set of vtx with the edge sets of edges
// sharing its cluster id. Vertex sets without an id, vertex sets reusing an
// id already claimed by an earlier vertex set and edge sets without a
// matching vertex set are returned as orphans.
func GroupBatches(vtx, edges *data.Collection) (batches []Batch, orphans []*data.PointIO) {
	dict := data.NewTaggedDictionary(TagCluster)
	for _, v := range vtx.Pairs {
		entries, err := dict.CreateKey(v)
		if err != nil || entries.Key != v {
			orphans = append(orphans, v)
		}
	}
	for _, e := range edges.Pairs {
		if !dict.TryAddEntry(e) {
			orphans = append(orphans, e)
		}
	}
	for _, entries := range dict.All() {
		batches = append(batches, Batch{Vtx: entries.Key, Edges: entries.Entries})
	}
	return batches, orphans
}
