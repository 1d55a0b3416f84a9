package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/minio/highwayhash"

	"github.com/sanonone/pcgcluster/pkg/data"
)

// EdgeType classifies the relation between two sockets. Values are bit
// flags so sets of types can be used as filters.
type EdgeType int32

const (
	EdgeUnknown  EdgeType = 0
	EdgeRoaming  EdgeType = 1 << 0
	EdgeShared   EdgeType = 1 << 1
	EdgeMatch    EdgeType = 1 << 2
	EdgeComplete EdgeType = 1 << 3
	EdgeMirror   EdgeType = 1 << 4
)

func (t EdgeType) String() string {
	switch t {
	case EdgeRoaming:
		return "roaming"
	case EdgeShared:
		return "shared"
	case EdgeMatch:
		return "match"
	case EdgeComplete:
		return "complete"
	case EdgeMirror:
		return "mirror"
	case EdgeUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("edgetype(%d)", int32(t))
	}
}

// Socket is one outgoing relation slot of every point of a graph.
type Socket struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	// Matching lists the sockets this one expects to connect to.
	Matching []string `yaml:"matching" json:"matching,omitempty"`

	index int
	owner string
}

// Index returns the position of the socket in its graph.
func (s *Socket) Index() int { return s.index }

// Matches reports whether s expects to connect to other.
func (s *Socket) Matches(other *Socket) bool {
	return slices.Contains(s.Matching, other.Name)
}

func (s *Socket) attrName(suffix string) string {
	return s.owner + "/" + s.Name + "." + suffix
}

// TargetName is the attribute holding the target point index.
func (s *Socket) TargetName() string { return s.attrName("Target") }

// EntryKeyName is the attribute holding the target metadata entry key.
func (s *Socket) EntryKeyName() string { return s.attrName("EntryKey") }

// EdgeTypeName is the attribute holding the relation EdgeType.
func (s *Socket) EdgeTypeName() string { return s.attrName("EdgeType") }

// EdgeTypeBetween classifies the relation from start to end, where end is a
// socket of the target pointing back at the start point.
func EdgeTypeBetween(start, end *Socket) EdgeType {
	switch {
	case start.Matches(end):
		if end.Matches(start) {
			return EdgeComplete
		}
		return EdgeMatch
	case start.index == end.index:
		return EdgeMirror
	case end.Matches(start):
		return EdgeMatch
	default:
		return EdgeShared
	}
}

// GraphParams describes one graph definition: an identifier and its sockets.
type GraphParams struct {
	Identifier string    `yaml:"identifier" json:"identifier" validate:"required"`
	Sockets    []*Socket `yaml:"sockets" json:"sockets" validate:"required,min=1,dive"`
}

// NewGraphParams binds sockets to identifier.
func NewGraphParams(identifier string, sockets ...*Socket) *GraphParams {
	g := &GraphParams{Identifier: identifier, Sockets: sockets}
	g.Bind()
	return g
}

// Bind assigns each socket its index and owner. Call it after decoding
// params from configuration.
func (g *GraphParams) Bind() {
	for i, s := range g.Sockets {
		s.index = i
		s.owner = g.Identifier
	}
}

// CachedIndexName is the attribute holding each point's index at the time
// the graph was written.
func (g *GraphParams) CachedIndexName() string {
	return g.Identifier + "/CachedIndex"
}

var hashKey = []byte("PCGExGraphParams0123456789ABCDEF")

// Hash returns a stable hash of the definition, used to collapse duplicate
// definitions.
func (g *GraphParams) Hash() (uint64, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0, err
	}
	var b strings.Builder
	b.WriteString(g.Identifier)
	for _, s := range g.Sockets {
		b.WriteByte(0)
		b.WriteString(s.Name)
		for _, m := range s.Matching {
			b.WriteByte(1)
			b.WriteString(m)
		}
	}
	if _, err := h.Write([]byte(b.String())); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// AttributeNames returns every attribute the graph writes.
func (g *GraphParams) AttributeNames() []string {
	names := []string{g.CachedIndexName()}
	for _, s := range g.Sockets {
		names = append(names, s.TargetName(), s.EntryKeyName(), s.EdgeTypeName())
	}
	return names
}

// HasMatchingGraphData reports whether md carries the target attribute of
// every socket.
func (g *GraphParams) HasMatchingGraphData(md *data.Metadata) bool {
	for _, s := range g.Sockets {
		if !md.HasAttribute(s.TargetName()) {
			return false
		}
	}
	return true
}

// DeleteFrom removes the graph's attributes from md and returns how many
// existed.
func (g *GraphParams) DeleteFrom(md *data.Metadata) int {
	n := 0
	for _, name := range g.AttributeNames() {
		if md.DeleteAttribute(name) {
			n++
		}
	}
	return n
}

// SocketAccess gives typed access to the attributes of one socket.
type SocketAccess struct {
	Socket   *Socket
	Target   *data.TypedAttribute[int64]
	EntryKey *data.TypedAttribute[int64]
	EdgeType *data.TypedAttribute[int32]
}

// GraphAccess gives typed access to a graph's attributes on one point set.
type GraphAccess struct {
	Params      *GraphParams
	CachedIndex *data.TypedAttribute[int64]
	Sockets     []SocketAccess
}

// Prepare creates or fetches the graph's attributes on md.
func (g *GraphParams) Prepare(md *data.Metadata) (*GraphAccess, error) {
	ga := &GraphAccess{Params: g}
	var err error
	if ga.CachedIndex, err = data.CreateAttribute(md, g.CachedIndexName(), int64(-1), false); err != nil {
		return nil, err
	}
	for _, s := range g.Sockets {
		sa := SocketAccess{Socket: s}
		if sa.Target, err = data.CreateAttribute(md, s.TargetName(), int64(-1), false); err != nil {
			return nil, err
		}
		if sa.EntryKey, err = data.CreateAttribute(md, s.EntryKeyName(), data.InvalidEntryKey, false); err != nil {
			return nil, err
		}
		if sa.EdgeType, err = data.CreateAttribute(md, s.EdgeTypeName(), int32(EdgeUnknown), false); err != nil {
			return nil, err
		}
		ga.Sockets = append(ga.Sockets, sa)
	}
	return ga, nil
}

// Connect writes a relation from point from through socket to point to.
func (ga *GraphAccess) Connect(points []data.Point, from, socket, to int) {
	key := points[from].MetadataEntry
	sa := ga.Sockets[socket]
	sa.Target.SetValue(key, int64(to))
	if to >= 0 && to < len(points) {
		sa.EntryKey.SetValue(key, points[to].MetadataEntry)
	} else {
		sa.EntryKey.SetValue(key, data.InvalidEntryKey)
	}
}

// EdgeTypeOf classifies the relation of point i through socket s against
// the sockets of its target. A target with no socket pointing back yields
// EdgeRoaming; an unresolved target yields EdgeUnknown.
func (ga *GraphAccess) EdgeTypeOf(points []data.Point, i, s int) EdgeType {
	key := points[i].MetadataEntry
	start := ga.Sockets[s]
	t := start.Target.Value(key)
	if t < 0 || t >= int64(len(points)) {
		return EdgeUnknown
	}
	targetKey := points[t].MetadataEntry
	best := EdgeRoaming
	for _, end := range ga.Sockets {
		if end.Target.Value(targetKey) != int64(i) {
			continue
		}
		if et := EdgeTypeBetween(start.Socket, end.Socket); et > best {
			best = et
		}
	}
	return best
}

// ComputeEdgeType recomputes and stores the edge type of every socket of
// point i.
func (ga *GraphAccess) ComputeEdgeType(points []data.Point, i int) {
	key := points[i].MetadataEntry
	for s := range ga.Sockets {
		ga.Sockets[s].EdgeType.SetValue(key, int32(ga.EdgeTypeOf(points, i, s)))
	}
}
