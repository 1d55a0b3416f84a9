package data

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sanonone/pcgcluster/pkg/metrics"
	"github.com/sanonone/pcgcluster/pkg/mt"
)

// Mismatch records a source declaring a merged attribute with another type
// than the one the destination column was created with.
type Mismatch struct {
	Name    string
	Kept    AttributeType
	Dropped AttributeType
	// Source is the index of the offending source in append order.
	Source int
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%q: kept %s, dropped %s from source %d", m.Name, m.Kept, m.Dropped, m.Source)
}

// Merger concatenates the input points and attributes of several point sets
// into the output of a composite point set. Row i of the k-th appended
// source lands at Scopes()[k].Start + i.
type Merger struct {
	composite *PointIO
	logger    *slog.Logger

	sources []*PointIO
	scopes  []mt.Scope
	total   int

	columns    []Attribute
	mismatches []Mismatch
	outKeys    *Keys
}

// NewMerger returns a merger writing into composite's output.
func NewMerger(composite *PointIO, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{composite: composite, logger: logger}
}

// Append reserves an output range for each source. Sources without input
// points are skipped.
func (m *Merger) Append(sources ...*PointIO) {
	for _, src := range sources {
		n := src.Num()
		if n == 0 {
			continue
		}
		m.scopes = append(m.scopes, mt.Scope{Start: m.total, Count: n, Loop: len(m.sources)})
		m.sources = append(m.sources, src)
		m.total += n
	}
}

// AppendCollection appends every point set of c in order.
func (m *Merger) AppendCollection(c *Collection) {
	m.Append(c.Pairs...)
}

// Num returns the number of rows reserved so far.
func (m *Merger) Num() int { return m.total }

// Scopes returns the reserved output range of each retained source.
func (m *Merger) Scopes() []mt.Scope { return m.scopes }

// Sources returns the retained sources in append order.
func (m *Merger) Sources() []*PointIO { return m.sources }

// Mismatches returns the type conflicts found by Merge.
func (m *Merger) Mismatches() []Mismatch { return m.mismatches }

// Identities returns the destination columns created by Merge.
func (m *Merger) Identities() []Identity {
	out := make([]Identity, len(m.columns))
	for i, c := range m.columns {
		out[i] = c.Identity()
	}
	return out
}

// Merge sizes the destination, starts copying point properties on manager
// and creates one destination column per attribute name found in the
// sources. Names in ignoreNames are skipped. The first type seen for a name
// wins; later conflicting declarations are recorded as mismatches.
func (m *Merger) Merge(manager *mt.Manager, ignoreNames []string) error {
	if m.composite.Out == nil {
		return ErrNoOutput
	}
	if err := m.composite.InitializeNum(m.total); err != nil {
		return err
	}
	outKeys, err := m.composite.CreateOutKeys()
	if err != nil {
		return err
	}
	m.outKeys = outKeys

	dst := m.composite.Out
	for k, src := range m.sources {
		scope := m.scopes[k]
		points := src.In.Points
		err := manager.StartRanges("merge-points", scope.Count, 4096, func(s mt.Scope) error {
			for i := s.Start; i < s.End(); i++ {
				key := dst.Points[scope.Start+i].MetadataEntry
				dst.Points[scope.Start+i] = points[i]
				dst.Points[scope.Start+i].MetadataEntry = key
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	ignore := make(map[string]struct{}, len(ignoreNames))
	for _, name := range ignoreNames {
		ignore[name] = struct{}{}
	}

	seen := make(map[string]AttributeType)
	for k, src := range m.sources {
		for _, attr := range src.In.Metadata.Attributes() {
			name := attr.Name()
			if _, skip := ignore[name]; skip {
				continue
			}
			if kept, ok := seen[name]; ok {
				if kept != attr.Type() {
					m.recordMismatch(Mismatch{Name: name, Kept: kept, Dropped: attr.Type(), Source: k})
				}
				continue
			}
			col, err := dst.Metadata.CopySchemaOf(attr)
			if err != nil {
				// The composite already holds name with another type.
				m.recordMismatch(Mismatch{Name: name, Kept: col.Type(), Dropped: attr.Type(), Source: k})
				seen[name] = col.Type()
				m.columns = append(m.columns, col)
				continue
			}
			seen[name] = attr.Type()
			m.columns = append(m.columns, col)
		}
	}

	metrics.MergedPoints.Add(float64(m.total))
	return nil
}

func (m *Merger) recordMismatch(mm Mismatch) {
	m.mismatches = append(m.mismatches, mm)
	metrics.MergeTypeMismatches.Inc()
	m.logger.Warn("[Merger] Attribute type mismatch, keeping first type",
		"attribute", mm.Name, "kept", mm.Kept.String(), "dropped", mm.Dropped.String(), "source", mm.Source)
}

// Write starts one task per destination column on manager. Each task copies
// the column's values from every source declaring it with the kept type;
// other rows keep the column default.
func (m *Merger) Write(manager *mt.Manager) error {
	if m.outKeys == nil {
		return fmt.Errorf("merger: Write called before Merge")
	}
	inKeys := make([]*Keys, len(m.sources))
	for k, src := range m.sources {
		keys, err := src.CreateInKeys()
		if err != nil {
			return err
		}
		inKeys[k] = keys
	}

	for _, col := range m.columns {
		_, err := manager.Start("merge-"+col.Name(), func(context.Context) error {
			for k, src := range m.sources {
				attr, ok := src.In.Metadata.Attribute(col.Name())
				if !ok {
					continue
				}
				scope := m.scopes[k]
				col.copyRange(attr, inKeys[k].All(), m.outKeys.Range(scope.Start, scope.Count))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// MergeSources merges sources into composite and blocks until every column
// is written.
func MergeSources(ctx context.Context, composite *PointIO, sources []*PointIO, ignoreNames []string, logger *slog.Logger) (*Merger, error) {
	manager := mt.NewManager(ctx, 0, logger)
	m := NewMerger(composite, logger)
	m.Append(sources...)
	if err := m.Merge(manager, ignoreNames); err != nil {
		return m, err
	}
	if err := m.Write(manager); err != nil {
		return m, err
	}
	if err := manager.Wait(); err != nil {
		return m, fmt.Errorf("merge: %w", err)
	}
	return m, nil
}
