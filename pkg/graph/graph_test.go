package graph

import (
	"context"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/geom"
	"github.com/sanonone/pcgcluster/pkg/mt"
)

func mustClusterData(t *testing.T, positions []r3.Vec, edges [][2]int) (*data.PointIO, *data.PointIO) {
	t.Helper()
	vtx, e, err := NewClusterData(positions, edges)
	if err != nil {
		t.Fatalf("NewClusterData: %v", err)
	}
	return vtx, e
}

func TestBuildClusterValidity(t *testing.T) {
	positions := []r3.Vec{{X: 0}, {X: 1}, {Y: 1}, {Z: 5}}
	vtx, edges := mustClusterData(t, positions, [][2]int{{0, 1}, {1, 2}, {2, 0}, {3, 3}, {0, 3}})

	// Point the last edge at a vertex id that does not exist.
	attr, err := data.GetAttribute[int64](edges.In.Metadata, AttrEdgeEndpoints)
	if err != nil {
		t.Fatal(err)
	}
	attr.SetValue(edges.In.Points[4].MetadataEntry, geom.PackEndpoint(0, 99))

	c, err := BuildCluster(vtx, edges, BuildOptions{})
	if err != nil {
		t.Fatalf("BuildCluster: %v", err)
	}

	if len(c.EdgeList) != 5 {
		t.Fatalf("edge array must keep every row, got %d", len(c.EdgeList))
	}
	if c.InvalidEdges() != 2 || c.Valid() {
		t.Errorf("expected 2 invalid edges and an invalid cluster, got %d", c.InvalidEdges())
	}
	if e := c.EdgeList[4]; e.Valid || e.End != -1 {
		t.Errorf("unresolved endpoint should be -1 and invalid, got %+v", e)
	}
	if len(c.Nodes) != 3 {
		t.Errorf("vertex 3 is only referenced by invalid edges, expected 3 nodes, got %d", len(c.Nodes))
	}
	if c.NodeOf(3) != -1 {
		t.Error("vertex 3 should have no node")
	}

	linked := make(map[int]int)
	for ni, n := range c.Nodes {
		for _, l := range n.Links {
			linked[l.Edge]++
			back := false
			for _, bl := range c.Nodes[l.Node].Links {
				if bl.Node == ni && bl.Edge == l.Edge {
					back = true
				}
			}
			if !back {
				t.Errorf("link %d->%d via edge %d is not symmetric", ni, l.Node, l.Edge)
			}
		}
	}
	for i, e := range c.EdgeList {
		if e.Valid && linked[i] != 2 {
			t.Errorf("valid edge %d linked %d times", i, linked[i])
		}
		if !e.Valid && linked[i] != 0 {
			t.Errorf("invalid edge %d must not be linked", i)
		}
	}

	if got := c.FindClosestNode(r3.Vec{X: 0.9, Y: 0.1}); c.Nodes[got].PointIndex != 1 {
		t.Errorf("closest node should be vertex 1, got vertex %d", c.Nodes[got].PointIndex)
	}
	if !geom.Contains(c.Bounds, r3.Vec{X: 0.5, Y: 0.5}) || geom.Contains(c.Bounds, r3.Vec{Z: 5}) {
		t.Errorf("unexpected bounds %v", c.Bounds)
	}
}

func TestFindClosestNodeEmpty(t *testing.T) {
	vtx, edges := mustClusterData(t, []r3.Vec{{}, {X: 1}}, [][2]int{{1, 1}})
	c, err := BuildCluster(vtx, edges, BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.FindClosestNode(r3.Vec{}); got != -1 {
		t.Errorf("empty cluster should return -1, got %d", got)
	}
	if _, _, _, err := ClosestNodePair(c, c); err == nil {
		t.Error("ClosestNodePair should fail on empty clusters")
	}
}

func TestDeriveMatchesRebuild(t *testing.T) {
	positions := []r3.Vec{{}, {X: 2}, {X: 2, Y: 2}}
	vtx, edges := mustClusterData(t, positions, [][2]int{{0, 1}, {1, 2}})
	c, err := BuildCluster(vtx, edges, BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	d, err := c.Derive(vtx, edges, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Nodes) != len(c.Nodes) {
		t.Fatalf("derived cluster has %d nodes, want %d", len(d.Nodes), len(c.Nodes))
	}
	for i := range c.Nodes {
		if d.Nodes[i].Position != c.Nodes[i].Position || d.Nodes[i].Degree() != c.Nodes[i].Degree() {
			t.Errorf("node %d differs after derive", i)
		}
	}
	if d.DistSquared(0, 2) != 8 {
		t.Errorf("unexpected squared distance %v", d.DistSquared(0, 2))
	}
}

func TestGroupBatches(t *testing.T) {
	v1, e1 := mustClusterData(t, []r3.Vec{{}, {X: 1}}, [][2]int{{0, 1}})
	v2, e2 := mustClusterData(t, []r3.Vec{{}, {X: 1}}, [][2]int{{0, 1}})
	stray := data.NewPointIO(data.NewPointData(), data.NewTags(TagEdges, TagCluster+":424242"), 0)
	// Same cluster id as v1; the first vertex set keeps the id.
	dup := data.NewPointIO(data.NewPointData(), v1.Tags.Clone(), 2)

	vtx := data.NewCollection("vtx")
	vtx.Pairs = []*data.PointIO{v1, v2, dup}
	edges := data.NewCollection("edges")
	edges.Pairs = []*data.PointIO{e2, stray, e1}

	batches, orphans := GroupBatches(vtx, edges)
	if len(batches) != 2 || len(orphans) != 2 {
		t.Fatalf("unexpected grouping: %d batches, %d orphans", len(batches), len(orphans))
	}
	if orphans[0] != dup || orphans[1] != stray {
		t.Error("the duplicate vertex set and the stray edges should be orphans")
	}
	if batches[0].Vtx != v1 || len(batches[0].Edges) != 1 || batches[0].Edges[0] != e1 {
		t.Error("first batch should pair v1 with e1")
	}
}

func TestEdgeTypeBetween(t *testing.T) {
	g := NewGraphParams("G",
		&Socket{Name: "Fwd", Matching: []string{"Back"}},
		&Socket{Name: "Back", Matching: []string{"Fwd"}},
		&Socket{Name: "Side"},
		&Socket{Name: "Up", Matching: []string{"Side"}},
	)
	fwd, back, side, up := g.Sockets[0], g.Sockets[1], g.Sockets[2], g.Sockets[3]

	cases := []struct {
		start, end *Socket
		want       EdgeType
	}{
		{fwd, back, EdgeComplete},
		{up, side, EdgeMatch},
		{side, up, EdgeMatch},
		{side, side, EdgeMirror},
		{fwd, side, EdgeShared},
	}
	for _, c := range cases {
		if got := EdgeTypeBetween(c.start, c.end); got != c.want {
			t.Errorf("%s -> %s: got %s, want %s", c.start.Name, c.end.Name, got, c.want)
		}
	}
	if fwd.TargetName() != "G/Fwd.Target" || g.CachedIndexName() != "G/CachedIndex" {
		t.Errorf("unexpected attribute names %q %q", fwd.TargetName(), g.CachedIndexName())
	}
}

func TestGraphAccessEdgeTypes(t *testing.T) {
	g := NewGraphParams("G",
		&Socket{Name: "Fwd", Matching: []string{"Back"}},
		&Socket{Name: "Back", Matching: []string{"Fwd"}},
	)
	d := data.NewPointData()
	for i := 0; i < 3; i++ {
		p := data.NewPoint()
		p.MetadataEntry = d.Metadata.AddEntry()
		d.Points = append(d.Points, p)
	}
	ga, err := g.Prepare(d.Metadata)
	if err != nil {
		t.Fatal(err)
	}
	if !g.HasMatchingGraphData(d.Metadata) {
		t.Fatal("prepared metadata should match the graph")
	}

	// 0 -Fwd-> 1 -Back-> 0, and 1 -Fwd-> 2 with no way back.
	ga.Connect(d.Points, 0, 0, 1)
	ga.Connect(d.Points, 1, 1, 0)
	ga.Connect(d.Points, 1, 0, 2)

	if got := ga.EdgeTypeOf(d.Points, 0, 0); got != EdgeComplete {
		t.Errorf("0 -> 1 should be complete, got %s", got)
	}
	if got := ga.EdgeTypeOf(d.Points, 1, 0); got != EdgeRoaming {
		t.Errorf("1 -> 2 should be roaming, got %s", got)
	}
	if got := ga.EdgeTypeOf(d.Points, 2, 0); got != EdgeUnknown {
		t.Errorf("unset socket should be unknown, got %s", got)
	}

	if n := g.DeleteFrom(d.Metadata); n != 7 {
		t.Errorf("expected 7 deleted attributes, got %d", n)
	}
	if g.HasMatchingGraphData(d.Metadata) {
		t.Error("graph data should be gone")
	}
}

func TestGraphParamsHash(t *testing.T) {
	a := NewGraphParams("G", &Socket{Name: "A", Matching: []string{"B"}})
	b := NewGraphParams("G", &Socket{Name: "A", Matching: []string{"B"}})
	c := NewGraphParams("G", &Socket{Name: "AB"})
	ha, err := a.Hash()
	if err != nil {
		t.Fatal(err)
	}
	hb, _ := b.Hash()
	hc, _ := c.Hash()
	if ha != hb {
		t.Error("equal definitions should hash equal")
	}
	if ha == hc {
		t.Error("different definitions should hash differently")
	}
}

func TestKeepShortest(t *testing.T) {
	positions := []r3.Vec{{X: 0}, {X: 1}, {X: 6}, {X: 7}}
	vtx, edges := mustClusterData(t, positions, [][2]int{{0, 1}, {1, 2}, {2, 3}})
	c, err := BuildCluster(vtx, edges, BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	keep, err := KeepShortest(mt.NewManager(context.Background(), 2, nil), c)
	if err != nil {
		t.Fatal(err)
	}
	if !keep[0] || keep[1] || !keep[2] {
		t.Errorf("expected only the long middle edge to be dropped, got %v", keep)
	}

	s := c.SpecialEdgesOf(c.NodeOf(1))
	if s.Shortest != 0 || s.Longest != 1 || s.ShortestLength != 1 || s.LongestLength != 5 {
		t.Errorf("unexpected special edges %+v", s)
	}
	if s.AverageLength != 3 || s.AverageDirection != (r3.Vec{}) {
		t.Errorf("unexpected averages %+v", s)
	}
}

func TestBitSetEachAscending(t *testing.T) {
	bs := NewBitSet(4)
	for _, n := range []int{130, 3, 64, 0, 3} {
		bs.Add(n)
	}
	var got []int
	bs.Each(func(n int) { got = append(got, n) })
	want := []int{0, 3, 64, 130}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if bs.Count() != 4 || !bs.Has(130) || bs.Has(1) || bs.Has(-1) {
		t.Error("membership mismatch")
	}
}
