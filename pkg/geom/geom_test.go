package geom

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestEndpointPacking(t *testing.T) {
	cases := [][2]uint32{{0, 0}, {1, 2}, {math.MaxUint32, 7}, {42, math.MaxUint32}}
	for _, c := range cases {
		h := H64(c[0], c[1])
		if H64A(h) != c[0] || H64B(h) != c[1] {
			t.Errorf("H64(%d, %d) round trip failed: got (%d, %d)", c[0], c[1], H64A(h), H64B(h))
		}
		a, b := UnpackEndpoint(PackEndpoint(c[0], c[1]))
		if a != c[0] || b != c[1] {
			t.Errorf("PackEndpoint(%d, %d) round trip failed: got (%d, %d)", c[0], c[1], a, b)
		}
	}

	if H64(1, 0) != 1<<32 {
		t.Errorf("first field must occupy the high 32 bits")
	}
	if H64U(5, 3) != H64U(3, 5) {
		t.Errorf("H64U must be order independent")
	}
}

func TestBoxHelpers(t *testing.T) {
	b := EmptyBox()
	if IsValidBox(b) {
		t.Fatal("empty box should be invalid")
	}
	b = Expand(b, r3.Vec{X: -1, Y: 0, Z: 2})
	b = Expand(b, r3.Vec{X: 3, Y: 4, Z: -2})

	if c := Center(b); c != (r3.Vec{X: 1, Y: 2, Z: 0}) {
		t.Errorf("unexpected center %v", c)
	}
	if e := Extents(b); e != (r3.Vec{X: 2, Y: 2, Z: 2}) {
		t.Errorf("unexpected extents %v", e)
	}
	if p := PointAtUVW(b, r3.Vec{X: 1, Y: -1, Z: 0}); p != (r3.Vec{X: 3, Y: 0, Z: 0}) {
		t.Errorf("unexpected uvw point %v", p)
	}
	if !Contains(b, r3.Vec{X: 0, Y: 1, Z: 1}) {
		t.Error("box should contain interior point")
	}

	other := r3.Box{Min: r3.Vec{X: 3, Y: 4, Z: 2}, Max: r3.Vec{X: 5, Y: 5, Z: 5}}
	if !Intersects(b, other) {
		t.Error("touching boxes should intersect")
	}
	if _, ok := Overlap(b, r3.Box{Min: r3.Vec{X: 10}, Max: r3.Vec{X: 11}}); ok {
		t.Error("disjoint boxes should not overlap")
	}
}

func TestProjection(t *testing.T) {
	p := DefaultProjection()
	a := p.Project(r3.Vec{X: 1, Y: 2, Z: 100})
	b := p.Project(r3.Vec{X: 1, Y: 2, Z: -50})
	if a != b {
		t.Errorf("projection along Up should ignore Z: %v vs %v", a, b)
	}

	side := Projection{Normal: r3.Vec{X: 1}}
	c := side.Project(r3.Vec{X: 7, Y: 1, Z: 1})
	d := side.Project(r3.Vec{X: -3, Y: 1, Z: 1})
	if c != d {
		t.Errorf("projection along X should ignore X: %v vs %v", c, d)
	}
}

func TestTriangulate2(t *testing.T) {
	sites := []r2.Vec{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}, {X: 5, Y: 5}}
	d, err := Triangulate2(sites)
	if err != nil {
		t.Fatalf("Triangulate2 failed: %v", err)
	}
	if len(d.Triangles) != 4 {
		t.Errorf("expected 4 triangles, got %d", len(d.Triangles))
	}
	if len(d.Edges) != 8 {
		t.Errorf("expected 8 edges, got %d", len(d.Edges))
	}
	for i := uint32(0); i < 4; i++ {
		if !containsEdge(d.Edges, i, 4) {
			t.Errorf("missing spoke %d-4", i)
		}
	}
}

func TestTriangulate2Collinear(t *testing.T) {
	sites := []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 5, Y: 5}}
	if _, err := Triangulate2(sites); !errors.Is(err, ErrDegenerateInput) {
		t.Errorf("expected ErrDegenerateInput, got %v", err)
	}
}

func TestTriangulate3(t *testing.T) {
	sites := []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 10, Y: 0, Z: 0},
		{X: 0, Y: 10, Z: 0},
		{X: 0, Y: 0, Z: 10},
		{X: 2, Y: 2, Z: 2},
	}
	d, err := Triangulate3(sites)
	if err != nil {
		t.Fatalf("Triangulate3 failed: %v", err)
	}
	if len(d.Tetrahedra) != 4 {
		t.Errorf("expected 4 tetrahedra, got %d", len(d.Tetrahedra))
	}
	if len(d.Edges) != 10 {
		t.Errorf("expected 10 edges, got %d", len(d.Edges))
	}
}

func TestTriangulate3Coplanar(t *testing.T) {
	sites := []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 10, Y: 0, Z: 0},
		{X: 0, Y: 10, Z: 0},
		{X: 10, Y: 10, Z: 0},
	}
	if _, err := Triangulate3(sites); !errors.Is(err, ErrDegenerateInput) {
		t.Errorf("expected ErrDegenerateInput, got %v", err)
	}
	if _, err := Triangulate3(sites[:3]); !errors.Is(err, ErrNotEnoughSites) {
		t.Errorf("expected ErrNotEnoughSites, got %v", err)
	}
}

func containsEdge(edges []uint64, a, b uint32) bool {
	key := H64U(a, b)
	for _, e := range edges {
		if e == key {
			return true
		}
	}
	return false
}

func TestTriangulate2MatchesEmptyCircleEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 500; round++ {
		sites := make([]r2.Vec, 6+rng.Intn(14))
		for i := range sites {
			sites[i] = r2.Vec{X: rng.Float64() * 100, Y: rng.Float64() * 100}
		}
		d, err := Triangulate2(sites)
		if err != nil {
			t.Fatalf("round %d: Triangulate2 failed: %v", round, err)
		}
		if want := emptyCircleEdges(sites); !slices.Equal(d.Edges, want) {
			t.Fatalf("round %d: %d sites, got %d edges, want %d\nsites: %v",
				round, len(sites), len(d.Edges), len(want), sites)
		}
	}
}

func TestTriangulate3MatchesEmptySphereEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 300; round++ {
		sites := make([]r3.Vec, 6+rng.Intn(10))
		for i := range sites {
			sites[i] = r3.Vec{X: rng.Float64() * 100, Y: rng.Float64() * 100, Z: rng.Float64() * 100}
		}
		d, err := Triangulate3(sites)
		if err != nil {
			t.Fatalf("round %d: Triangulate3 failed: %v", round, err)
		}
		if want := emptySphereEdges(sites); !slices.Equal(d.Edges, want) {
			t.Fatalf("round %d: %d sites, got %d edges, want %d\nsites: %v",
				round, len(sites), len(d.Edges), len(want), sites)
		}
	}
}

func TestTriangulate2KeepsThinHullTriangles(t *testing.T) {
	// Site 2 sits just inside the hull edge 0-1, so the triangle 0-1-2 has a
	// circumcircle far larger than the site bounds.
	sites := []r2.Vec{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 50, Y: 0.5}, {X: 50, Y: 50}}
	d, err := Triangulate2(sites)
	if err != nil {
		t.Fatalf("Triangulate2 failed: %v", err)
	}
	if len(d.Triangles) != 3 {
		t.Errorf("expected 3 triangles, got %d", len(d.Triangles))
	}
	if len(d.Edges) != 6 || !containsEdge(d.Edges, 0, 1) {
		t.Errorf("expected every pair including the hull edge 0-1, got %d edges", len(d.Edges))
	}
}

// emptyCircleEdges returns the edges of every triangle whose circumcircle
// holds no other site.
func emptyCircleEdges(sites []r2.Vec) []uint64 {
	edges := make(map[uint64]struct{})
	n := len(sites)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			for c := b + 1; c < n; c++ {
				center, radius2, ok := circumcircle2(sites[a], sites[b], sites[c])
				if !ok {
					continue
				}
				empty := true
				for i, s := range sites {
					if i == a || i == b || i == c {
						continue
					}
					d := r2.Sub(s, center)
					if r2.Dot(d, d) < radius2*(1-1e-9) {
						empty = false
						break
					}
				}
				if empty {
					edges[H64U(uint32(a), uint32(b))] = struct{}{}
					edges[H64U(uint32(b), uint32(c))] = struct{}{}
					edges[H64U(uint32(a), uint32(c))] = struct{}{}
				}
			}
		}
	}
	return sortedKeys(edges)
}

// emptySphereEdges returns the edges of every tetrahedron whose circumsphere
// holds no other site.
func emptySphereEdges(sites []r3.Vec) []uint64 {
	edges := make(map[uint64]struct{})
	n := len(sites)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			for c := b + 1; c < n; c++ {
				for d := c + 1; d < n; d++ {
					center, radius2, ok := circumsphere3(sites[a], sites[b], sites[c], sites[d])
					if !ok {
						continue
					}
					empty := true
					for i, s := range sites {
						if i == a || i == b || i == c || i == d {
							continue
						}
						if DistSquared(s, center) < radius2*(1-1e-9) {
							empty = false
							break
						}
					}
					if !empty {
						continue
					}
					v := [4]int{a, b, c, d}
					for x := 0; x < 4; x++ {
						for y := x + 1; y < 4; y++ {
							edges[H64U(uint32(v[x]), uint32(v[y]))] = struct{}{}
						}
					}
				}
			}
		}
	}
	return sortedKeys(edges)
}
