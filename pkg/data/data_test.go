package data

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/geom"
	"github.com/sanonone/pcgcluster/pkg/metrics"
)

func newSource(n int, offset float64) *PointIO {
	d := NewPointData()
	for i := 0; i < n; i++ {
		p := NewPoint()
		p.Transform.Location = r3.Vec{X: offset + float64(i)}
		p.MetadataEntry = d.Metadata.AddEntry()
		d.Points = append(d.Points, p)
	}
	return NewPointIO(d, nil, 0)
}

func setInput[T Value](t *testing.T, io *PointIO, name string, values ...T) {
	t.Helper()
	attr, err := CreateAttribute(io.In.Metadata, name, *new(T), true)
	if err != nil {
		t.Fatalf("CreateAttribute(%q): %v", name, err)
	}
	for i, v := range values {
		attr.SetValue(io.In.Points[i].MetadataEntry, v)
	}
}

func TestInitializeOutputModes(t *testing.T) {
	src := newSource(3, 0)
	setInput(t, src, "Weight", 1.0, 2.0, 3.0)

	src.InitializeOutput(NoOutput)
	if src.HasOutput() {
		t.Fatal("NoOutput should leave the output nil")
	}

	src.InitializeOutput(NewOutput)
	if src.OutNum() != 0 {
		t.Errorf("NewOutput should be empty, got %d points", src.OutNum())
	}
	if !src.Out.Metadata.HasAttribute("Weight") {
		t.Error("NewOutput should copy the schema")
	}
	if src.Out.Metadata.NumEntries() != 0 {
		t.Error("NewOutput should not copy rows")
	}

	src.InitializeOutput(DuplicateInput)
	if src.Out == src.In || src.OutNum() != 3 {
		t.Fatalf("DuplicateInput should deep copy, got %d points", src.OutNum())
	}
	w, _ := GetAttribute[float64](src.Out.Metadata, "Weight")
	w.SetValue(src.Out.Points[0].MetadataEntry, 42)
	r, _ := GetAttribute[float64](src.In.Metadata, "Weight")
	if got := r.Value(src.In.Points[0].MetadataEntry); got != 1 {
		t.Errorf("writing the duplicate changed the input: %v", got)
	}

	src.InitializeOutput(Forward)
	if src.Out != src.In {
		t.Error("Forward should alias the input")
	}

	src.InitializeOutput(InitMode(99))
	if src.HasOutput() {
		t.Error("unknown mode should behave like NoOutput")
	}
}

func TestCopyPointCarriesAttributes(t *testing.T) {
	src := newSource(2, 0)
	setInput(t, src, "Name", "a", "b")
	src.InitializeOutput(NewOutput)

	idx := src.CopyPoint(src.InPoint(1))
	keys, err := src.CreateOutKeys()
	if err != nil {
		t.Fatal(err)
	}
	reader, err := NewReader[string](src, Out, "Name")
	if err != nil {
		t.Fatal(err)
	}
	if got := reader.Get(idx); got != "b" {
		t.Errorf("expected copied value b, got %q", got)
	}
	if keys.Num() != 1 {
		t.Errorf("expected 1 out key, got %d", keys.Num())
	}
}

func TestCreateOutKeysDetachesSharedRows(t *testing.T) {
	io := NewPointIO(nil, nil, 0)
	io.InitializeOutput(NewOutput)
	attr, _ := CreateAttribute(io.Out.Metadata, "Id", int32(0), false)

	shared := io.Out.Metadata.AddEntry()
	attr.SetValue(shared, 7)
	for i := 0; i < 3; i++ {
		p := NewPoint()
		p.MetadataEntry = shared
		io.AddPoint(p)
	}
	io.AddPoint(NewPoint())

	keys, err := io.CreateOutKeys()
	if err != nil {
		t.Fatal(err)
	}
	again, _ := io.CreateOutKeys()
	if again != keys {
		t.Error("CreateOutKeys should be idempotent")
	}

	seen := map[int64]bool{}
	for i := 0; i < keys.Num(); i++ {
		k := keys.Key(i)
		if k < 0 || seen[k] {
			t.Fatalf("point %d has invalid or shared key %d", i, k)
		}
		seen[k] = true
	}
	for i := 0; i < 3; i++ {
		if got := attr.Value(keys.Key(i)); got != 7 {
			t.Errorf("detached point %d lost its value: %d", i, got)
		}
	}

	w, err := NewWriter(io, "Id", int32(0), false)
	if err != nil {
		t.Fatal(err)
	}
	w.Set(1, 9)
	if err := w.Write(); err != nil {
		t.Fatal(err)
	}
	if attr.Value(keys.Key(0)) != 7 || attr.Value(keys.Key(1)) != 9 {
		t.Error("writing one detached point must not affect the others")
	}
}

func TestAppendPointConcurrent(t *testing.T) {
	io := NewPointIO(nil, nil, 0)
	io.InitializeOutput(NewOutput)

	const n = 200
	var wg sync.WaitGroup
	indices := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := NewPoint()
			p.Seed = int32(i)
			indices[i] = io.AppendPoint(p)
		}(i)
	}
	wg.Wait()

	if io.OutNum() != n {
		t.Fatalf("expected %d points, got %d", n, io.OutNum())
	}
	for i, idx := range indices {
		if io.Out.Points[idx].Seed != int32(i) {
			t.Fatalf("index %d does not hold the point appended by writer %d", idx, i)
		}
	}
}

func TestMergerTypeMismatch(t *testing.T) {
	before := testutil.ToFloat64(metrics.MergeTypeMismatches)

	a := newSource(2, 0)
	setInput(t, a, "Color", int32(10), int32(20))
	b := newSource(3, 100)
	setInput(t, b, "Color", float32(0.5), float32(1.5), float32(2.5))

	composite := NewPointIO(nil, nil, 0)
	composite.InitializeOutput(NewOutput)

	m, err := MergeSources(context.Background(), composite, []*PointIO{a, b}, nil, nil)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if composite.OutNum() != 5 {
		t.Fatalf("expected 5 rows, got %d", composite.OutNum())
	}
	color, err := NewReader[int32](composite, Out, "Color")
	if err != nil {
		t.Fatalf("Color should keep the int type: %v", err)
	}
	want := []int32{10, 20, 0, 0, 0}
	for i, w := range want {
		if color.Get(i) != w {
			t.Errorf("row %d: expected %d, got %d", i, w, color.Get(i))
		}
	}

	if len(m.Mismatches()) != 1 {
		t.Fatalf("expected one mismatch, got %v", m.Mismatches())
	}
	mm := m.Mismatches()[0]
	if mm.Name != "Color" || mm.Kept != TypeInt32 || mm.Dropped != TypeFloat || mm.Source != 1 {
		t.Errorf("unexpected mismatch %s", mm)
	}
	if got := testutil.ToFloat64(metrics.MergeTypeMismatches) - before; got != 1 {
		t.Errorf("expected mismatch counter to grow by 1, got %v", got)
	}
}

func TestMergerRowIdentity(t *testing.T) {
	a := newSource(3, 0)
	setInput(t, a, "Score", 1.0, 2.0, 3.0)
	empty := newSource(0, 0)
	b := newSource(2, 50)
	setInput(t, b, "Label", "x", "y")
	setInput(t, b, "Skip", true, true)

	composite := NewPointIO(nil, nil, 0)
	composite.InitializeOutput(NewOutput)

	m, err := MergeSources(context.Background(), composite, []*PointIO{a, empty, b}, []string{"Skip"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Sources()) != 2 {
		t.Fatalf("empty source should be skipped, got %d sources", len(m.Sources()))
	}
	if m.Num() != composite.OutNum() || m.Num() != 5 {
		t.Fatalf("row count mismatch: merger %d, output %d", m.Num(), composite.OutNum())
	}
	if composite.Out.Metadata.HasAttribute("Skip") {
		t.Error("ignored attribute should not be created")
	}

	sources := m.Sources()
	for k, scope := range m.Scopes() {
		for i := 0; i < scope.Count; i++ {
			got := composite.Out.Points[scope.Start+i].Position()
			want := sources[k].InPoint(i).Position()
			if got != want {
				t.Errorf("source %d row %d: position %v, want %v", k, i, got, want)
			}
		}
	}

	score, _ := NewReader[float64](composite, Out, "Score")
	label, _ := NewReader[string](composite, Out, "Label")
	if score.Get(2) != 3 || score.Get(3) != 0 {
		t.Errorf("unexpected Score column %v", score.Values)
	}
	if label.Get(0) != "" || label.Get(4) != "y" {
		t.Errorf("unexpected Label column %v", label.Values)
	}

	keys, _ := composite.CreateOutKeys()
	seen := map[int64]bool{}
	for _, k := range keys.All() {
		if seen[k] {
			t.Fatalf("merged rows share entry key %d", k)
		}
		seen[k] = true
	}
}

func TestTags(t *testing.T) {
	tags := NewTags("vtx", "PCGEx/Cluster:12")
	if v, ok := tags.Get("PCGEx/Cluster"); !ok || v != "12" {
		t.Errorf("expected value tag 12, got %q %v", v, ok)
	}
	tags.Set("PCGEx/Cluster", "13")
	other := NewTags("edges")
	other.Append(tags)
	if !other.Has("vtx") || !other.Has("edges") {
		t.Error("Append should merge raw tags")
	}
	flat := other.Flatten()
	if len(flat) != 3 || flat[0] != "PCGEx/Cluster:13" {
		t.Errorf("unexpected flatten %v", flat)
	}
	other.Reset(NewTags("only"))
	if other.Len() != 1 || !other.Has("only") {
		t.Errorf("Reset should replace tags, got %v", other.Flatten())
	}
}

func TestTaggedDictionary(t *testing.T) {
	c := NewCollection("out")
	vtx := c.Emplace(NewPointData(), NewTags("PCGEx/Cluster:1"), Forward)
	e1 := c.Emplace(NewPointData(), NewTags("PCGEx/Cluster:1"), Forward)
	e2 := c.Emplace(NewPointData(), NewTags("PCGEx/Cluster:2"), Forward)
	orphan := c.Emplace(NewPointData(), nil, Forward)

	d := NewTaggedDictionary("PCGEx/Cluster")
	entries, err := d.CreateKey(vtx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateKey(orphan); err == nil {
		t.Error("CreateKey should fail without the tag")
	}
	if !d.TryAddEntry(e1) {
		t.Error("e1 should join the group")
	}
	if d.TryAddEntry(e2) {
		t.Error("e2 has no matching key")
	}
	if len(entries.Entries) != 1 || entries.Entries[0] != e1 {
		t.Errorf("unexpected entries %v", entries.Entries)
	}
	if got, ok := d.Entries("1"); !ok || got != entries {
		t.Error("Entries lookup failed")
	}
}

func TestCollectionOutput(t *testing.T) {
	c := NewCollection("vtx")
	a := c.Emplace(newSource(3, 0).In, nil, DuplicateInput)
	c.Emplace(newSource(1, 0).In, nil, DuplicateInput)
	disabled := c.Emplace(newSource(5, 0).In, nil, DuplicateInput)
	disabled.Disable()
	c.Emplace(newSource(2, 0).In, nil, NoOutput)

	var staging Staging
	if n := c.OutputTo(&staging, 2, -1); n != 1 {
		t.Fatalf("expected 1 staged output, got %d", n)
	}
	out := staging.Outputs()
	if out[0].Data != a.Out || out[0].Pin != "vtx" {
		t.Errorf("unexpected staged output %+v", out[0])
	}
}

func TestCollectionBranchAndBounds(t *testing.T) {
	c := NewCollection("out")
	a := c.Emplace(newSource(2, 0).In, NewTags("a"), DuplicateInput)
	b := c.EmplaceBranch(a, NoOutput)
	c.Emplace(newSource(3, 10).In, nil, NoOutput)

	if b.In != a.In || b.Out != nil {
		t.Fatal("branch should read the same input without an output")
	}
	b.Tags.Add("b")
	if a.Tags.Has("b") || !b.Tags.Has("a") {
		t.Error("branch tags should be an independent copy")
	}

	in := c.InBounds(ScaledExtents)
	if in.Min.X != -1 || in.Max.X != 13 {
		t.Errorf("unexpected input bounds %v", in)
	}
	out := c.OutBounds(ScaledExtents)
	if out.Min.X != -1 || out.Max.X != 2 {
		t.Errorf("unexpected output bounds %v", out)
	}

	c.Flush()
	if c.Num() != 0 {
		t.Errorf("flush should drop every point set, %d left", c.Num())
	}
}

func TestBoundsOverlaps(t *testing.T) {
	var bounds []*Bounds
	for _, offset := range []float64{0, 1, 100} {
		io := newSource(2, offset)
		bounds = append(bounds, &Bounds{Box: io.Bounds(In, ScaledExtents), IO: io})
	}
	bounds = append(bounds, &Bounds{Box: geom.EmptyBox()})
	FindOverlaps(bounds)
	if len(bounds[0].Overlaps) != 1 || bounds[0].Overlaps[0] != bounds[1] {
		t.Errorf("first two sets should overlap")
	}
	if len(bounds[2].Overlaps) != 0 {
		t.Errorf("far set should overlap nothing")
	}
	if len(bounds[3].Overlaps) != 0 {
		t.Errorf("an empty box should overlap nothing")
	}
}

func TestRecordRestore(t *testing.T) {
	src := newSource(2, 0)
	setInput(t, src, "Pos", r3.Vec{X: 1}, r3.Vec{Y: 2})
	setInput(t, src, "Id", int64(5), int64(6))

	d, err := PointDataFromRecord(src.In.Record([]string{"a"}))
	if err != nil {
		t.Fatal(err)
	}
	if d.UID == src.In.UID {
		t.Error("restored data should get a fresh UID")
	}
	pos, err := GetAttribute[r3.Vec](d.Metadata, "Pos")
	if err != nil {
		t.Fatal(err)
	}
	if pos.Value(d.Points[1].MetadataEntry) != (r3.Vec{Y: 2}) {
		t.Error("vector values not restored")
	}
}
