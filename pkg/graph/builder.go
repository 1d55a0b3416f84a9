package graph

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/geom"
)

// NewClusterBatch builds a vertex set and one edge set per entry of
// edgeSets. Vertex ids are point indices, edge points sit at the edge
// midpoints and every set is tagged with one fresh cluster id.
func NewClusterBatch(positions []r3.Vec, edgeSets ...[][2]int) (*data.PointIO, []*data.PointIO, error) {
	degrees := make([]uint32, len(positions))
	for _, edges := range edgeSets {
		for _, e := range edges {
			for _, v := range e {
				if v < 0 || v >= len(positions) {
					return nil, nil, fmt.Errorf("edge %v: %w", e, data.ErrIndexOutOfRange)
				}
			}
			degrees[e[0]]++
			degrees[e[1]]++
		}
	}

	vtx := data.NewPointIO(data.NewPointData(), nil, 0)
	vtx.InitializeOutput(data.Forward)
	for _, p := range positions {
		pt := data.NewPoint()
		pt.Transform.Location = p
		vtx.NewPointAt(pt)
	}
	vw, err := data.NewWriter(vtx, AttrVtxEndpoint, int64(0), false)
	if err != nil {
		return nil, nil, err
	}
	for i := range positions {
		vw.Set(i, geom.PackEndpoint(uint32(i), degrees[i]))
	}
	if err := vw.Write(); err != nil {
		return nil, nil, err
	}

	id := data.NextUID()
	MarkVtx(vtx, id)

	out := make([]*data.PointIO, 0, len(edgeSets))
	for k, edges := range edgeSets {
		io := data.NewPointIO(data.NewPointData(), nil, k)
		io.InitializeOutput(data.Forward)
		for _, e := range edges {
			pt := data.NewPoint()
			pt.Transform.Location = geom.Lerp(positions[e[0]], positions[e[1]], 0.5)
			io.NewPointAt(pt)
		}
		ew, err := data.NewWriter(io, AttrEdgeEndpoints, int64(0), false)
		if err != nil {
			return nil, nil, err
		}
		for i, e := range edges {
			ew.Set(i, geom.PackEndpoint(uint32(e[0]), uint32(e[1])))
		}
		if err := ew.Write(); err != nil {
			return nil, nil, err
		}
		MarkEdges(io, id)
		out = append(out, io)
	}
	return vtx, out, nil
}

// NewClusterData is NewClusterBatch with a single edge set.
func NewClusterData(positions []r3.Vec, edges [][2]int) (vtx, edgeSet *data.PointIO, err error) {
	vtx, sets, err := NewClusterBatch(positions, edges)
	if err != nil {
		return nil, nil, err
	}
	return vtx, sets[0], nil
}
