package nodes

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/data"
	"github.com/sanonone/pcgcluster/pkg/graph"
)

// captureHandler records every log record it receives.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

func newCaptureLogger() (*slog.Logger, *captureHandler) {
	h := &captureHandler{}
	return slog.New(h), h
}

// clusterBatch builds one vtx set and its edge sets as node inputs.
func clusterBatch(t *testing.T, positions []r3.Vec, edgeSets ...[][2]int) []data.TaggedData {
	t.Helper()
	vtx, edges, err := graph.NewClusterBatch(positions, edgeSets...)
	if err != nil {
		t.Fatalf("NewClusterBatch: %v", err)
	}
	inputs := []data.TaggedData{{Pin: PinVtx, Data: vtx.Out, Tags: vtx.Tags.Flatten()}}
	for _, e := range edges {
		inputs = append(inputs, data.TaggedData{Pin: PinEdges, Data: e.Out, Tags: e.Tags.Flatten()})
	}
	return inputs
}

func runNode(t *testing.T, el Element, inputs []data.TaggedData, logger *slog.Logger) *data.Staging {
	t.Helper()
	staging, err := Run(context.Background(), el, inputs, RunOptions{Workers: 4, Logger: logger})
	if err != nil {
		t.Fatalf("%s: %v", el.Name(), err)
	}
	return staging
}

func int64Values(t *testing.T, d *data.PointData, name string) []int64 {
	t.Helper()
	attr, err := data.GetAttribute[int64](d.Metadata, name)
	if err != nil {
		t.Fatalf("attribute %s: %v", name, err)
	}
	out := make([]int64, len(d.Points))
	for i, p := range d.Points {
		out[i] = attr.Value(p.MetadataEntry)
	}
	return out
}

func tagValue(tags []string, name string) (string, bool) {
	return data.NewTags(tags...).Get(name)
}
