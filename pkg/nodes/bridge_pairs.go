package nodes

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanonone/pcgcluster/pkg/geom"
)

// BridgeMethod selects which cluster pairs get connected.
type BridgeMethod string

const (
	BridgeDelaunay3D BridgeMethod = "delaunay3d"
	BridgeDelaunay2D BridgeMethod = "delaunay2d"
	// BridgeLeastEdges connects each cluster to its nearest cluster not
	// visited yet, in index order.
	BridgeLeastEdges BridgeMethod = "least-edges"
	// BridgeMostEdges connects every pair of clusters once.
	BridgeMostEdges BridgeMethod = "most-edges"
)

// EffectiveMethod returns the method actually used for n clusters.
// Triangulations that cannot be built from so few sites fall back to
// BridgeMostEdges.
func EffectiveMethod(method BridgeMethod, n int) BridgeMethod {
	switch {
	case method == BridgeDelaunay3D && n < 4:
		return BridgeMostEdges
	case method == BridgeDelaunay2D && n < 3:
		return BridgeMostEdges
	}
	return method
}

// BridgePairs returns the pairs of centroid indices to connect. A failed
// triangulation returns the error and no pairs; callers report it and keep
// going with an empty bridge set.
func BridgePairs(method BridgeMethod, centroids []r3.Vec, proj geom.Projection, logger *slog.Logger) ([][2]int, error) {
	if len(centroids) < 2 {
		return nil, nil
	}
	safe := EffectiveMethod(method, len(centroids))
	if safe != method && logger != nil {
		logger.Debug("[Bridge] Too few clusters for triangulation, connecting every pair",
			"method", string(method), "clusters", len(centroids))
	}

	switch safe {
	case BridgeDelaunay3D:
		d, err := geom.Triangulate3(centroids)
		if err != nil {
			return nil, fmt.Errorf("delaunay 3d: %w", err)
		}
		return unpackPairs(d.Edges), nil

	case BridgeDelaunay2D:
		d, err := geom.Triangulate2(proj.ProjectAll(centroids))
		if err != nil {
			return nil, fmt.Errorf("delaunay 2d: %w", err)
		}
		return unpackPairs(d.Edges), nil

	case BridgeLeastEdges:
		var pairs [][2]int
		visited := make([]bool, len(centroids))
		for i := range centroids {
			visited[i] = true
			closest, best := -1, math.MaxFloat64
			for j := range centroids {
				if visited[j] {
					continue
				}
				if d := geom.DistSquared(centroids[i], centroids[j]); d < best {
					closest, best = j, d
				}
			}
			if closest >= 0 {
				pairs = append(pairs, [2]int{i, closest})
			}
		}
		return pairs, nil

	case BridgeMostEdges:
		pairs := make([][2]int, 0, len(centroids)*(len(centroids)-1)/2)
		for i := range centroids {
			for j := i + 1; j < len(centroids); j++ {
				pairs = append(pairs, [2]int{i, j})
			}
		}
		return pairs, nil
	}
	return nil, fmt.Errorf("unknown bridge method %q", method)
}

func unpackPairs(edges []uint64) [][2]int {
	out := make([][2]int, len(edges))
	for i, e := range edges {
		a, b := geom.H64Split(e)
		out[i] = [2]int{int(a), int(b)}
	}
	return out
}
