package geom

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrNotEnoughSites is returned when the input cannot span a simplex.
	ErrNotEnoughSites = errors.New("not enough sites to triangulate")
	// ErrDegenerateInput is returned for collinear (2D) or coplanar (3D) sites.
	ErrDegenerateInput = errors.New("degenerate input: sites are collinear or coplanar")
)

// ghost is the vertex at infinity. Every hull edge (2D) or hull face (3D)
// carries one ghost simplex whose circumcircle is the open half-plane
// (half-space) beyond the hull plus the open circumdisk of the hull element.
const ghost = -1

// Delaunay2 is the result of a 2D triangulation.
type Delaunay2 struct {
	Sites     []r2.Vec
	Triangles [][3]int
	// Edges are unique site pairs packed with H64U, sorted ascending.
	Edges []uint64
}

// Delaunay3 is the result of a 3D tetrahedralization.
type Delaunay3 struct {
	Sites      []r3.Vec
	Tetrahedra [][4]int
	// Edges are unique site pairs packed with H64U, sorted ascending.
	Edges []uint64
}

// Triangulate2 computes the Delaunay triangulation of sites using
// Bowyer-Watson insertion over ghost triangles.
func Triangulate2(sites []r2.Vec) (*Delaunay2, error) {
	n := len(sites)
	if n < 3 {
		return nil, ErrNotEnoughSites
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, s := range sites {
		minX, minY = math.Min(minX, s.X), math.Min(minY, s.Y)
		maxX, maxY = math.Max(maxX, s.X), math.Max(maxY, s.Y)
	}
	size := math.Max(math.Max(maxX-minX, maxY-minY), 1e-9)
	a, b, c, ok := seedTriangle(sites, size)
	if !ok {
		return nil, ErrDegenerateInput
	}

	m := &mesh2{
		pts:   sites,
		inner: r2.Scale(1.0/3, r2.Add(r2.Add(sites[a], sites[b]), sites[c])),
		eps:   1e-12 * size * size,
	}
	tris := []triangle{
		m.triangle(a, b, c),
		m.triangle(a, b, ghost),
		m.triangle(b, c, ghost),
		m.triangle(c, a, ghost),
	}

	for i := 0; i < n; i++ {
		if i == a || i == b || i == c {
			continue
		}
		p := sites[i]
		edgeCount := make(map[[2]int]int)
		kept := tris[:0:0]
		var bad []triangle

		for _, t := range tris {
			if m.conflicts(t, p) {
				bad = append(bad, t)
				for _, e := range t.edges() {
					edgeCount[e]++
				}
				continue
			}
			kept = append(kept, t)
		}
		if len(bad) == 0 {
			// Duplicate site.
			continue
		}

		for _, t := range bad {
			for _, e := range t.edges() {
				if edgeCount[e] == 1 {
					kept = append(kept, m.triangle(e[0], e[1], i))
				}
			}
		}
		tris = kept
	}

	out := &Delaunay2{Sites: sites}
	edges := make(map[uint64]struct{})
	for _, t := range tris {
		if t.isGhost() {
			continue
		}
		out.Triangles = append(out.Triangles, t.v)
		for _, e := range t.edges() {
			edges[H64U(uint32(e[0]), uint32(e[1]))] = struct{}{}
		}
	}
	if len(out.Triangles) == 0 {
		return nil, ErrDegenerateInput
	}
	out.Edges = sortedKeys(edges)
	return out, nil
}

// Triangulate3 computes the Delaunay tetrahedralization of sites using
// Bowyer-Watson insertion over ghost tetrahedra.
func Triangulate3(sites []r3.Vec) (*Delaunay3, error) {
	n := len(sites)
	if n < 4 {
		return nil, ErrNotEnoughSites
	}

	bounds := EmptyBox()
	for _, s := range sites {
		bounds = Expand(bounds, s)
	}
	ext := r3.Sub(bounds.Max, bounds.Min)
	size := math.Max(math.Max(math.Max(ext.X, ext.Y), ext.Z), 1e-9)
	a, b, c, d, ok := seedTetrahedron(sites, size)
	if !ok {
		return nil, ErrDegenerateInput
	}

	m := &mesh3{
		pts:   sites,
		inner: r3.Scale(0.25, r3.Add(r3.Add(sites[a], sites[b]), r3.Add(sites[c], sites[d]))),
		eps:   1e-12 * size * size * size,
	}
	tets := []tetrahedron{
		m.tetrahedron(a, b, c, d),
		m.tetrahedron(a, b, c, ghost),
		m.tetrahedron(a, b, d, ghost),
		m.tetrahedron(a, c, d, ghost),
		m.tetrahedron(b, c, d, ghost),
	}

	for i := 0; i < n; i++ {
		if i == a || i == b || i == c || i == d {
			continue
		}
		p := sites[i]
		faceCount := make(map[[3]int]int)
		kept := tets[:0:0]
		var bad []tetrahedron

		for _, t := range tets {
			if m.conflicts(t, p) {
				bad = append(bad, t)
				for _, f := range t.faces() {
					faceCount[f]++
				}
				continue
			}
			kept = append(kept, t)
		}
		if len(bad) == 0 {
			continue
		}

		for _, t := range bad {
			for _, f := range t.faces() {
				if faceCount[f] == 1 {
					kept = append(kept, m.tetrahedron(f[0], f[1], f[2], i))
				}
			}
		}
		tets = kept
	}

	out := &Delaunay3{Sites: sites}
	edges := make(map[uint64]struct{})
	for _, t := range tets {
		if t.isGhost() {
			continue
		}
		out.Tetrahedra = append(out.Tetrahedra, t.v)
		for x := 0; x < 4; x++ {
			for y := x + 1; y < 4; y++ {
				edges[H64U(uint32(t.v[x]), uint32(t.v[y]))] = struct{}{}
			}
		}
	}
	if len(out.Tetrahedra) == 0 {
		return nil, ErrDegenerateInput
	}
	out.Edges = sortedKeys(edges)
	return out, nil
}

type mesh2 struct {
	pts   []r2.Vec
	inner r2.Vec
	eps   float64
}

type triangle struct {
	// v[2] is ghost for hull triangles.
	v       [3]int
	center  r2.Vec
	radius2 float64
	// side is the orientation of the interior relative to the hull edge.
	side float64
}

func (t triangle) isGhost() bool { return t.v[2] == ghost }

func orient2(a, b, p r2.Vec) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

// triangle builds a triangle from three vertices, any one of which may be
// the ghost.
func (m *mesh2) triangle(a, b, c int) triangle {
	if a == ghost {
		a, b, c = b, c, ghost
	} else if b == ghost {
		b, c = c, ghost
	}
	t := triangle{v: [3]int{a, b, c}}
	if c == ghost {
		t.side = orient2(m.pts[a], m.pts[b], m.inner)
		return t
	}
	var ok bool
	t.center, t.radius2, ok = circumcircle2(m.pts[a], m.pts[b], m.pts[c])
	if !ok {
		// Sliver left by a degenerate cavity; always re-triangulated.
		t.center = m.pts[a]
		t.radius2 = math.Inf(1)
	}
	return t
}

func (m *mesh2) conflicts(t triangle, p r2.Vec) bool {
	if !t.isGhost() {
		d := r2.Sub(p, t.center)
		return r2.Dot(d, d) < t.radius2*(1-1e-12)
	}
	a, b := m.pts[t.v[0]], m.pts[t.v[1]]
	o := orient2(a, b, p)
	if math.Abs(o) > m.eps {
		return o*t.side < 0
	}
	// On the hull line: inside the open segment only.
	return r2.Dot(r2.Sub(p, a), r2.Sub(b, a)) > 0 && r2.Dot(r2.Sub(p, b), r2.Sub(a, b)) > 0
}

func (t triangle) edges() [3][2]int {
	return [3][2]int{
		sortedPair(t.v[0], t.v[1]),
		sortedPair(t.v[1], t.v[2]),
		sortedPair(t.v[2], t.v[0]),
	}
}

// circumcircle2 returns the center and squared radius of the circle through
// a, b and c. ok is false for collinear points.
func circumcircle2(a, b, c r2.Vec) (center r2.Vec, radius2 float64, ok bool) {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	if math.Abs(d) < 1e-18 {
		return r2.Vec{}, 0, false
	}
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (cy*b2 - by*c2) / d
	uy := (bx*c2 - cx*b2) / d
	return r2.Vec{X: a.X + ux, Y: a.Y + uy}, ux*ux + uy*uy, true
}

type mesh3 struct {
	pts   []r3.Vec
	inner r3.Vec
	eps   float64
}

type tetrahedron struct {
	// v[3] is ghost for hull tetrahedra.
	v [4]int
	// center and radius2 describe the circumsphere, or the circumcircle of
	// the hull face for ghosts.
	center  r3.Vec
	radius2 float64
	side    float64
}

func (t tetrahedron) isGhost() bool { return t.v[3] == ghost }

func orient3(a, b, c, p r3.Vec) float64 {
	return r3.Dot(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)), r3.Sub(p, a))
}

func (m *mesh3) tetrahedron(a, b, c, d int) tetrahedron {
	switch {
	case a == ghost:
		a, b, c, d = b, c, d, ghost
	case b == ghost:
		b, c, d = c, d, ghost
	case c == ghost:
		c, d = d, ghost
	}
	t := tetrahedron{v: [4]int{a, b, c, d}}
	if d == ghost {
		pa, pb, pc := m.pts[a], m.pts[b], m.pts[c]
		t.side = orient3(pa, pb, pc, m.inner)
		var ok bool
		if t.center, t.radius2, ok = circumcircle3(pa, pb, pc); !ok {
			t.radius2 = 0
		}
		return t
	}
	var ok bool
	t.center, t.radius2, ok = circumsphere3(m.pts[a], m.pts[b], m.pts[c], m.pts[d])
	if !ok {
		t.center = m.pts[a]
		t.radius2 = math.Inf(1)
	}
	return t
}

func (m *mesh3) conflicts(t tetrahedron, p r3.Vec) bool {
	if t.isGhost() {
		o := orient3(m.pts[t.v[0]], m.pts[t.v[1]], m.pts[t.v[2]], p)
		if math.Abs(o) > m.eps {
			return o*t.side < 0
		}
		// On the hull plane: inside the open circumdisk of the face only.
	}
	return DistSquared(p, t.center) < t.radius2*(1-1e-12)
}

func (t tetrahedron) faces() [4][3]int {
	return [4][3]int{
		sortedTriple(t.v[0], t.v[1], t.v[2]),
		sortedTriple(t.v[0], t.v[1], t.v[3]),
		sortedTriple(t.v[0], t.v[2], t.v[3]),
		sortedTriple(t.v[1], t.v[2], t.v[3]),
	}
}

// circumsphere3 returns the center and squared radius of the sphere through
// a, b, c and d. ok is false for coplanar points.
func circumsphere3(a, b, c, d r3.Vec) (center r3.Vec, radius2 float64, ok bool) {
	u := r3.Sub(b, a)
	v := r3.Sub(c, a)
	w := r3.Sub(d, a)

	vw := r3.Cross(v, w)
	denom := 2 * r3.Dot(u, vw)
	if math.Abs(denom) < 1e-18 {
		return r3.Vec{}, 0, false
	}

	num := r3.Add(r3.Add(
		r3.Scale(r3.Norm2(u), vw),
		r3.Scale(r3.Norm2(v), r3.Cross(w, u))),
		r3.Scale(r3.Norm2(w), r3.Cross(u, v)),
	)
	rel := r3.Scale(1/denom, num)
	return r3.Add(a, rel), r3.Norm2(rel), true
}

// circumcircle3 returns the center and squared radius of the circle through
// three points in space. ok is false for collinear points.
func circumcircle3(a, b, c r3.Vec) (center r3.Vec, radius2 float64, ok bool) {
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	n := r3.Cross(ab, ac)
	denom := 2 * r3.Norm2(n)
	if denom < 1e-18 {
		return r3.Vec{}, 0, false
	}
	rel := r3.Scale(1/denom, r3.Add(
		r3.Scale(r3.Norm2(ac), r3.Cross(n, ab)),
		r3.Scale(r3.Norm2(ab), r3.Cross(ac, n)),
	))
	return r3.Add(a, rel), r3.Norm2(rel), true
}

func sortedPair(a, b int) [2]int {
	if a > b {
		return [2]int{b, a}
	}
	return [2]int{a, b}
}

func sortedTriple(a, b, c int) [3]int {
	s := [3]int{a, b, c}
	if s[0] > s[1] {
		s[0], s[1] = s[1], s[0]
	}
	if s[1] > s[2] {
		s[1], s[2] = s[2], s[1]
	}
	if s[0] > s[1] {
		s[0], s[1] = s[1], s[0]
	}
	return s
}

func sortedKeys(m map[uint64]struct{}) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// seedTriangle picks three sites spanning a triangle. ok is false when
// every site lies on one line.
func seedTriangle(sites []r2.Vec, size float64) (a, b, c int, ok bool) {
	eps := 1e-9 * size
	p0 := sites[0]
	b = -1
	var dir r2.Vec
	for i := 1; i < len(sites); i++ {
		d := r2.Sub(sites[i], p0)
		if l := r2.Norm(d); l > eps {
			dir = r2.Scale(1/l, d)
			b = i
			break
		}
	}
	if b < 0 {
		return 0, 0, 0, false
	}
	for i := b + 1; i < len(sites); i++ {
		d := r2.Sub(sites[i], p0)
		if math.Abs(d.X*dir.Y-d.Y*dir.X) > eps {
			return 0, b, i, true
		}
	}
	return 0, 0, 0, false
}

// seedTetrahedron picks four sites spanning a tetrahedron. ok is false when
// every site lies on one plane.
func seedTetrahedron(sites []r3.Vec, size float64) (a, b, c, d int, ok bool) {
	eps := 1e-9 * size
	p0 := sites[0]

	var dir r3.Vec
	b = 1
	for ; b < len(sites); b++ {
		v := r3.Sub(sites[b], p0)
		if r3.Norm(v) > eps {
			dir = r3.Unit(v)
			break
		}
	}
	if b >= len(sites) {
		return 0, 0, 0, 0, false
	}

	var normal r3.Vec
	c = b + 1
	for ; c < len(sites); c++ {
		x := r3.Cross(dir, r3.Sub(sites[c], p0))
		if r3.Norm(x) > eps {
			normal = r3.Unit(x)
			break
		}
	}
	if c >= len(sites) {
		return 0, 0, 0, 0, false
	}

	for d = c + 1; d < len(sites); d++ {
		if math.Abs(r3.Dot(normal, r3.Sub(sites[d], p0))) > eps {
			return 0, b, c, d, true
		}
	}
	return 0, 0, 0, 0, false
}
