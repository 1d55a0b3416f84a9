package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sanonone/pcgcluster/pkg/nodes"
)

// Duration is a time.Duration that decodes from strings such as "10ms" or
// from integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalYAML writes the duration as a readable string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON handles both numbers (nanoseconds) and strings ("10s").
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		return d.parse(value)
	default:
		return fmt.Errorf("invalid duration")
	}
}

// MarshalJSON serializes the duration back to a readable string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) parse(s string) error {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	tmp, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(tmp)
	return nil
}

// Config is the top-level pipeline file.
type Config struct {
	// Workers bounds concurrent tasks per node. 0 uses GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers" validate:"gte=0"`
	// ChunkSize is the scope size of parallel loops over points.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size" validate:"gte=0"`
	// TickInterval is how long nodes wait between polls of running tasks.
	TickInterval Duration `yaml:"tick_interval" json:"tick_interval"`
	LogLevel     string   `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`

	Inputs []InputConfig `yaml:"inputs" json:"inputs" validate:"required,min=1,dive"`
	Steps  []StepConfig  `yaml:"steps" json:"steps" validate:"required,min=1,dive"`
	// Output is the collection file written after the last step. Empty
	// skips writing.
	Output string `yaml:"output" json:"output,omitempty"`
}

// DefaultConfig returns the defaults every loaded file starts from.
func DefaultConfig() Config {
	return Config{
		Workers:      0,
		ChunkSize:    256,
		TickInterval: Duration(time.Millisecond),
		LogLevel:     "info",
	}
}

// InputConfig is one input source. Exactly one field must be set.
type InputConfig struct {
	// File is a collection file written by a previous run.
	File    string        `yaml:"file,omitempty" json:"file,omitempty"`
	Cluster *ClusterInput `yaml:"cluster,omitempty" json:"cluster,omitempty"`
	Points  *PointsInput  `yaml:"points,omitempty" json:"points,omitempty"`
}

// ClusterInput declares a vtx set and its edge sets inline. Edges index
// positions.
type ClusterInput struct {
	Positions [][3]float64 `yaml:"positions" json:"positions" validate:"required,min=1"`
	EdgeSets  [][][2]int   `yaml:"edge_sets" json:"edge_sets" validate:"required,min=1"`
}

// PointsInput declares a plain point set on a pin.
type PointsInput struct {
	Pin       string       `yaml:"pin" json:"pin" validate:"required"`
	Positions [][3]float64 `yaml:"positions" json:"positions" validate:"required,min=1"`
}

// PartitionSettings is the (empty) configuration of PartitionVertices.
type PartitionSettings struct{}

// StepConfig is one node of the pipeline. Exactly one node field must be
// set.
type StepConfig struct {
	Name string `yaml:"name" json:"name,omitempty"`

	Consolidate       *nodes.ConsolidateSettings       `yaml:"consolidate,omitempty" json:"consolidate,omitempty"`
	Bridge            *nodes.BridgeSettings            `yaml:"bridge,omitempty" json:"bridge,omitempty"`
	Partition         *PartitionSettings               `yaml:"partition,omitempty" json:"partition,omitempty"`
	PickClosest       *nodes.PickClosestSettings       `yaml:"pick_closest,omitempty" json:"pick_closest,omitempty"`
	FindPointOnBounds *nodes.FindPointOnBoundsSettings `yaml:"find_point_on_bounds,omitempty" json:"find_point_on_bounds,omitempty"`
	DeleteGraph       *nodes.DeleteGraphSettings       `yaml:"delete_graph,omitempty" json:"delete_graph,omitempty"`
	CopyToPoints      *nodes.CopyToPointsSettings      `yaml:"copy_to_points,omitempty" json:"copy_to_points,omitempty"`
	RefineEdges       *nodes.RefineEdgesSettings       `yaml:"refine_edges,omitempty" json:"refine_edges,omitempty"`
	VtxSpecialEdges   *nodes.VtxSpecialEdgesSettings   `yaml:"vtx_special_edges,omitempty" json:"vtx_special_edges,omitempty"`
}

// Element builds the node the step describes.
func (s StepConfig) Element() (nodes.Element, error) {
	var els []nodes.Element
	if s.Consolidate != nil {
		els = append(els, nodes.NewConsolidateGraph(*s.Consolidate))
	}
	if s.Bridge != nil {
		els = append(els, nodes.NewBridgeClusters(*s.Bridge))
	}
	if s.Partition != nil {
		els = append(els, nodes.NewPartitionVertices())
	}
	if s.PickClosest != nil {
		els = append(els, nodes.NewPickClosestClusters(*s.PickClosest))
	}
	if s.FindPointOnBounds != nil {
		els = append(els, nodes.NewFindPointOnBounds(*s.FindPointOnBounds))
	}
	if s.DeleteGraph != nil {
		els = append(els, nodes.NewDeleteGraph(*s.DeleteGraph))
	}
	if s.CopyToPoints != nil {
		els = append(els, nodes.NewCopyClustersToPoints(*s.CopyToPoints))
	}
	if s.RefineEdges != nil {
		els = append(els, nodes.NewRefineEdges(*s.RefineEdges))
	}
	if s.VtxSpecialEdges != nil {
		els = append(els, nodes.NewWriteVtxSpecialEdges(*s.VtxSpecialEdges))
	}
	if len(els) != 1 {
		return nil, fmt.Errorf("step %q: exactly one node must be configured, found %d", s.Name, len(els))
	}
	return els[0], nil
}

// label returns the step name, or the node name when unnamed.
func (s StepConfig) label(el nodes.Element) string {
	if s.Name != "" {
		return s.Name
	}
	return el.Name()
}
