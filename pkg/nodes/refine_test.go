package nodes

import (
	"context"
	"log/slog"
	"slices"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/geom"
	"github.com/sanonone/pcgcluster/pkg/graph"
)

func TestRefineKeepShortest(t *testing.T) {
	positions := []r3.Vec{{X: 0}, {X: 1}, {X: 6}, {X: 7}}
	inputs := clusterBatch(t, positions, [][2]int{{0, 1}, {1, 2}, {2, 3}})

	staging := runNode(t, NewRefineEdges(RefineEdgesSettings{}), inputs, nil)

	vtxOut, edgesOut := staging.ByPin(PinVtx), staging.ByPin(PinEdges)
	if len(vtxOut) != 1 || vtxOut[0].Data != inputs[0].Data {
		t.Fatal("vtx should be forwarded untouched")
	}
	if len(edgesOut) != 1 {
		t.Fatalf("expected one edge set, got %d", len(edgesOut))
	}
	// 1-2 is nobody's shortest edge.
	got := int64Values(t, edgesOut[0].Data, graph.AttrEdgeEndpoints)
	want := []int64{geom.PackEndpoint(0, 1), geom.PackEndpoint(2, 3)}
	if len(got) != len(want) {
		t.Fatalf("got %d edges, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("edge %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if p := edgesOut[0].Data.Points[1].Position(); p != inputs[1].Data.Points[2].Position() {
		t.Errorf("kept edge moved to %v", p)
	}

	// No vertex loses all of its edges.
	seen := make(map[uint32]bool)
	for _, v := range got {
		a, b := geom.UnpackEndpoint(v)
		seen[a], seen[b] = true, true
	}
	if len(seen) != len(positions) {
		t.Errorf("only %d of %d vertices keep an edge", len(seen), len(positions))
	}
}

func TestRefineDropsInvalidClusters(t *testing.T) {
	positions := []r3.Vec{{}, {X: 1}, {X: 5}}
	inputs := clusterBatch(t, positions, [][2]int{{0, 1}}, [][2]int{{2, 2}})

	logger, h := newCaptureLogger()
	staging := runNode(t, NewRefineEdges(RefineEdgesSettings{Refinement: RefineKeepShortest}), inputs, logger)

	if got := h.count(slog.LevelWarn); got != 1 {
		t.Errorf("invalid clusters should be reported once, got %d warnings", got)
	}
	edgesOut := staging.ByPin(PinEdges)
	if len(edgesOut) != 1 || edgesOut[0].Data.Num() != 1 {
		t.Fatalf("expected only the valid edge set, got %d sets", len(edgesOut))
	}
}

func TestRefineUnknownRefinement(t *testing.T) {
	inputs := clusterBatch(t, []r3.Vec{{}, {X: 1}}, [][2]int{{0, 1}})
	if _, err := Run(context.Background(), NewRefineEdges(RefineEdgesSettings{Refinement: "keep-longest"}), inputs, RunOptions{Workers: 1}); err == nil {
		t.Fatal("expected an error for an unknown refinement")
	}
}

func TestWriteVtxSpecialEdges(t *testing.T) {
	// Vertex 4 is not referenced by any edge.
	positions := []r3.Vec{{X: 0}, {X: 1}, {X: 6}, {X: 7}, {X: 100}}
	inputs := clusterBatch(t, positions, [][2]int{{0, 1}, {1, 2}, {2, 3}})

	const prefix = "VtxSE/"
	staging := runNode(t, NewWriteVtxSpecialEdges(VtxSpecialEdgesSettings{Prefix: prefix}), inputs, nil)
	vtxOut := staging.ByPin(PinVtx)
	if len(vtxOut) != 1 {
		t.Fatalf("expected one vtx set, got %d", len(vtxOut))
	}
	out := vtxOut[0].Data
	if out == inputs[0].Data {
		t.Fatal("vtx should be duplicated before writing")
	}
	if len(staging.ByPin(PinEdges)) != 1 {
		t.Error("edges should be forwarded")
	}

	shortest := int64Values(t, out, prefix+AttrShortestIndex)
	longest := int64Values(t, out, prefix+AttrLongestIndex)
	if want := []int64{1, 0, 3, 2, -1}; !slices.Equal(shortest, want) {
		t.Errorf("shortest neighbors %v, want %v", shortest, want)
	}
	if want := []int64{1, 2, 1, 2, -1}; !slices.Equal(longest, want) {
		t.Errorf("longest neighbors %v, want %v", longest, want)
	}

	lengths := func(name string) []float64 {
		attr, err := data.GetAttribute[float64](out.Metadata, prefix+name)
		if err != nil {
			t.Fatalf("attribute %s: %v", name, err)
		}
		vals := make([]float64, len(out.Points))
		for i, p := range out.Points {
			vals[i] = attr.Value(p.MetadataEntry)
		}
		return vals
	}
	if got := lengths(AttrShortestLength)[1]; got != 1 {
		t.Errorf("vertex 1 shortest length %v, want 1", got)
	}
	if got := lengths(AttrLongestLength)[1]; got != 5 {
		t.Errorf("vertex 1 longest length %v, want 5", got)
	}
	if got := lengths(AttrAverageLength)[1]; got != 3 {
		t.Errorf("vertex 1 average length %v, want 3", got)
	}
	if got := lengths(AttrAverageLength)[4]; got != 0 {
		t.Errorf("isolated vertex average length %v, want 0", got)
	}

	dirs, err := data.GetAttribute[r3.Vec](out.Metadata, prefix+AttrShortestDir)
	if err != nil {
		t.Fatal(err)
	}
	if got := dirs.Value(out.Points[2].MetadataEntry); got != (r3.Vec{X: 1}) {
		t.Errorf("vertex 2 shortest direction %v, want +X", got)
	}
}
