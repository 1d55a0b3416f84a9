package persistence

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/data"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	if err := fw.WriteFrame(OpCodePointData, []byte("hello")); err != nil {
		t.Fatal(err)
	}

	f, n, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.Op != OpCodePointData || string(f.Payload) != "hello" || n != HeaderSize+5 {
		t.Errorf("unexpected frame %+v (%d bytes)", f, n)
	}
	if _, _, err := ReadFrame(&buf); err != io.EOF {
		t.Errorf("expected clean EOF, got %v", err)
	}
}

func TestFrameCorruption(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFrameWriter(&buf).WriteFrame(OpCodeHeader, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()

	flipped := append([]byte(nil), raw...)
	flipped[len(flipped)-1] ^= 0xFF
	if _, _, err := ReadFrame(bytes.NewReader(flipped)); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected checksum mismatch, got %v", err)
	}

	if _, _, err := ReadFrame(bytes.NewReader(raw[:len(raw)-2])); !errors.Is(err, ErrIncompleteFrame) {
		t.Errorf("expected incomplete frame, got %v", err)
	}

	bad := append([]byte(nil), raw...)
	bad[0] = 0x00
	if _, _, err := ReadFrame(bytes.NewReader(bad)); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("expected invalid magic, got %v", err)
	}
}

func samplePointData(t *testing.T) *data.PointData {
	t.Helper()
	d := data.NewPointData()
	for i := 0; i < 3; i++ {
		p := data.NewPoint()
		p.Transform.Location = r3.Vec{X: float64(i), Y: 1}
		p.MetadataEntry = d.Metadata.AddEntry()
		d.Points = append(d.Points, p)
	}
	ids, err := data.CreateAttribute(d.Metadata, "Id", int64(-1), false)
	if err != nil {
		t.Fatal(err)
	}
	dirs, err := data.CreateAttribute(d.Metadata, "Dir", r3.Vec{}, true)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range d.Points {
		ids.SetValue(p.MetadataEntry, int64(10*i))
		dirs.SetValue(p.MetadataEntry, r3.Vec{Z: float64(i)})
	}
	return d
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcgx")
	d := samplePointData(t)
	in := []data.TaggedData{
		{Pin: "Vtx", Data: d, Tags: []string{"PCGEx/Vtx", "PCGEx/Cluster:7"}},
		{Pin: "Edges", Data: data.NewPointData()},
	}

	h, err := SaveFile(path, in)
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	got, out, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.ID != h.ID || got.Count != 2 || len(out) != 2 {
		t.Fatalf("unexpected header %+v with %d outputs", got, len(out))
	}

	r := out[0]
	if r.Pin != "Vtx" || len(r.Tags) != 2 || r.Tags[1] != "PCGEx/Cluster:7" {
		t.Errorf("unexpected pin/tags %q %v", r.Pin, r.Tags)
	}
	if r.Data.Num() != 3 || r.Data.Points[2].Position() != (r3.Vec{X: 2, Y: 1}) {
		t.Errorf("points not restored: %+v", r.Data.Points)
	}
	ids, err := data.GetAttribute[int64](r.Data.Metadata, "Id")
	if err != nil {
		t.Fatal(err)
	}
	dirs, err := data.GetAttribute[r3.Vec](r.Data.Metadata, "Dir")
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range r.Data.Points {
		if ids.Value(p.MetadataEntry) != int64(10*i) || dirs.Value(p.MetadataEntry) != (r3.Vec{Z: float64(i)}) {
			t.Errorf("point %d attributes not restored", i)
		}
	}
	if !dirs.AllowsInterpolation() || ids.Default() != -1 {
		t.Error("column schema not restored")
	}
	if out[1].Data.Num() != 0 {
		t.Error("empty point set should stay empty")
	}
}

func TestReadCollectionTruncated(t *testing.T) {
	var buf bytes.Buffer
	if _, err := WriteCollection(&buf, []data.TaggedData{{Data: samplePointData(t)}}); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	if _, _, err := ReadCollection(bytes.NewReader(raw[:len(raw)-4])); !errors.Is(err, ErrIncompleteFrame) {
		t.Errorf("expected incomplete frame, got %v", err)
	}
}
