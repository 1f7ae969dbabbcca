// RemyR DNA persistence (spec.md §6 "Neural policy persistence"): a JSON
// document wrapping {min_point, max_point, min_action, max_action,
// hidden_layers, policy: base64(safetensors blob)}. No safetensors Go
// library exists anywhere in the example pack (checked: neither a teacher
// nor a rest-of-pack dependency), so the tensor blob is produced and parsed
// directly against the documented safetensors layout — an 8-byte
// little-endian header length, a JSON header describing each tensor's
// dtype/shape/byte offsets, then the raw tensor bytes back to back -
// mirroring how internal/remydna hand-rolls the (likewise unavailable)
// generated protobuf message for the sibling rule-tree format.
package neuralpolicy

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// DNA is the JSON wire shape of a .remyr.dna file.
type DNA struct {
	MinPoint     [3]float64 `json:"min_point"`
	MaxPoint     [3]float64 `json:"max_point"`
	MinAction    [3]float64 `json:"min_action"`
	MaxAction    [3]float64 `json:"max_action"`
	HiddenLayers [2]int     `json:"hidden_layers"`
	Policy       string     `json:"policy"` // base64(safetensors blob)
}

// tensorNames fixes the order and naming of the actor parameters stored in
// the safetensors blob; the critic is never serialized since RemyR
// deployment only ever needs the actor (§4.7.3's "deterministic policy
// snapshot").
var tensorNames = []string{"actor.w0", "actor.b0", "actor.w1", "actor.b1", "actor.w2", "actor.b2", "actor.log_stddev"}

// Save writes p's actor parameters and the given bounds to path as a
// .remyr.dna document.
func Save(path string, p *Policy, pointBounds, actionBounds Bounds) error {
	snap := p.Snapshot()
	tensors := map[string]safetensor{
		"actor.w0":         flattenMatrix(snap.w0),
		"actor.b0":         {shape: []int{len(snap.b0)}, data: snap.b0},
		"actor.w1":         flattenMatrix(snap.w1),
		"actor.b1":         {shape: []int{len(snap.b1)}, data: snap.b1},
		"actor.w2":         flattenMatrix(snap.w2),
		"actor.b2":         {shape: []int{len(snap.b2)}, data: snap.b2},
		"actor.log_stddev": {shape: []int{len(snap.logStddev)}, data: snap.logStddev},
	}
	blob, err := encodeSafetensors(tensors)
	if err != nil {
		return fmt.Errorf("neuralpolicy: encoding safetensors blob: %w", err)
	}
	d := DNA{
		MinPoint:     pointBounds.Min,
		MaxPoint:     pointBounds.Max,
		MinAction:    actionBounds.Min,
		MaxAction:    actionBounds.Max,
		HiddenLayers: [2]int{p.hp.Hidden0, p.hp.Hidden1},
		Policy:       base64.StdEncoding.EncodeToString(blob),
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("neuralpolicy: encoding DNA: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("neuralpolicy: writing %s: %w", path, err)
	}
	return nil
}

// Load reads path and returns a fresh Policy with its actor weights set
// from the stored tensors, plus the point/action bounds it was trained
// with.
func Load(path string) (*Policy, Bounds, Bounds, error) {
	var zero Bounds
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zero, zero, fmt.Errorf("neuralpolicy: reading %s: %w", path, err)
	}
	var d DNA
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, zero, zero, fmt.Errorf("neuralpolicy: parsing %s: %w", path, err)
	}
	blob, err := base64.StdEncoding.DecodeString(d.Policy)
	if err != nil {
		return nil, zero, zero, fmt.Errorf("neuralpolicy: decoding policy blob: %w", err)
	}
	tensors, err := decodeSafetensors(blob)
	if err != nil {
		return nil, zero, zero, fmt.Errorf("neuralpolicy: decoding safetensors blob: %w", err)
	}
	hp := Hyperparameters{Hidden0: d.HiddenLayers[0], Hidden1: d.HiddenLayers[1]}
	p := New(hp)
	if err := p.setActorWeights(tensors); err != nil {
		return nil, zero, zero, err
	}
	pointBounds := Bounds{Min: d.MinPoint, Max: d.MaxPoint}
	actionBounds := Bounds{Min: d.MinAction, Max: d.MaxAction}
	return p, pointBounds, actionBounds, nil
}

// setActorWeights overwrites p's actor parameter nodes in place with the
// given tensors, looked up by tensorNames. Held under p's lock since this
// mutates shared graph Value storage the same way a solver step would.
func (p *Policy) setActorWeights(tensors map[string]safetensor) error {
	p.Lock()
	defer p.Unlock()
	nodes := map[string]*nodeShape{
		"actor.w0":         {p.actorW0, []int{ObservationDim, p.hp.Hidden0}},
		"actor.b0":         {p.actorB0, []int{p.hp.Hidden0}},
		"actor.w1":         {p.actorW1, []int{p.hp.Hidden0, p.hp.Hidden1}},
		"actor.b1":         {p.actorB1, []int{p.hp.Hidden1}},
		"actor.w2":         {p.actorW2, []int{p.hp.Hidden1, ActionDim}},
		"actor.b2":         {p.actorB2, []int{ActionDim}},
		"actor.log_stddev": {p.logStddev, []int{ActionDim}},
	}
	for _, name := range tensorNames {
		t, ok := tensors[name]
		if !ok {
			return fmt.Errorf("neuralpolicy: DNA missing tensor %q", name)
		}
		ns, ok := nodes[name]
		if !ok {
			return fmt.Errorf("neuralpolicy: unrecognized tensor %q", name)
		}
		if !shapeEqual(t.shape, ns.shape) {
			return fmt.Errorf("neuralpolicy: tensor %q shape %v, want %v", name, t.shape, ns.shape)
		}
		backed := tensor.New(tensor.WithBacking(append([]float64(nil), t.data...)), tensor.WithShape(ns.shape...))
		if err := gorgonia.Let(ns.node, backed); err != nil {
			return fmt.Errorf("neuralpolicy: setting %q: %w", name, err)
		}
	}
	return nil
}

type nodeShape struct {
	node  *gorgonia.Node
	shape []int
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func flattenMatrix(m [][]float64) safetensor {
	if len(m) == 0 {
		return safetensor{shape: []int{0, 0}}
	}
	rows, cols := len(m), len(m[0])
	data := make([]float64, 0, rows*cols)
	for _, row := range m {
		data = append(data, row...)
	}
	return safetensor{shape: []int{rows, cols}, data: data}
}

// safetensor is one tensor's shape plus its flat row-major float64 data.
type safetensor struct {
	shape []int
	data  []float64
}

// safetensorsHeaderEntry is one tensor's JSON header record, per the
// safetensors format: dtype, shape, and the half-open byte range
// [begin, end) within the data section.
type safetensorsHeaderEntry struct {
	DType      string `json:"dtype"`
	Shape      []int  `json:"shape"`
	DataOffset [2]int `json:"data_offsets"`
}

// encodeSafetensors serializes tensors (F64, row-major) into the
// safetensors binary layout: an 8-byte little-endian header length, the
// JSON header, then the concatenated raw tensor bytes in the same order
// the header lists them (sorted by name for determinism).
func encodeSafetensors(tensors map[string]safetensor) ([]byte, error) {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]safetensorsHeaderEntry, len(names))
	var body bytes.Buffer
	offset := 0
	for _, name := range names {
		t := tensors[name]
		n := len(t.data) * 8
		if err := binary.Write(&body, binary.LittleEndian, t.data); err != nil {
			return nil, err
		}
		header[name] = safetensorsHeaderEntry{
			DType:      "F64",
			Shape:      t.shape,
			DataOffset: [2]int{offset, offset + n},
		}
		offset += n
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return nil, err
	}
	out.Write(headerJSON)
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// decodeSafetensors parses the layout encodeSafetensors produces.
func decodeSafetensors(blob []byte) (map[string]safetensor, error) {
	if len(blob) < 8 {
		return nil, fmt.Errorf("neuralpolicy: safetensors blob too short")
	}
	headerLen := binary.LittleEndian.Uint64(blob[:8])
	if uint64(len(blob)) < 8+headerLen {
		return nil, fmt.Errorf("neuralpolicy: safetensors blob truncated")
	}
	var header map[string]safetensorsHeaderEntry
	if err := json.Unmarshal(blob[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("neuralpolicy: parsing safetensors header: %w", err)
	}
	body := blob[8+headerLen:]

	out := make(map[string]safetensor, len(header))
	for name, entry := range header {
		if entry.DType != "F64" {
			return nil, fmt.Errorf("neuralpolicy: tensor %q has unsupported dtype %q", name, entry.DType)
		}
		begin, end := entry.DataOffset[0], entry.DataOffset[1]
		if begin < 0 || end > len(body) || begin > end {
			return nil, fmt.Errorf("neuralpolicy: tensor %q has invalid data_offsets %v", name, entry.DataOffset)
		}
		n := (end - begin) / 8
		data := make([]float64, n)
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint64(body[begin+i*8 : begin+i*8+8])
			data[i] = math.Float64frombits(bits)
		}
		out[name] = safetensor{shape: entry.Shape, data: data}
	}
	return out, nil
}
