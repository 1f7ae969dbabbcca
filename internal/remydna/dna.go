// Package remydna implements the binary DNA format for a rule tree
// (spec.md §6 "Rule-tree persistence (Remy DNA)"): a protocol-buffers
// encoding of a WhiskerTree message. No protoc-generated Go package is
// available in this environment, so the wire format is produced and
// parsed directly with google.golang.org/protobuf/encoding/protowire's
// low-level varint/length-delimited primitives — the same dependency the
// original Rust implementation pulls in directly (the `protobuf` crate,
// see original_source/src/ccas/remy/rule_tree.rs) and that ooni-netem
// carries transitively in this pack. Field numbers follow declaration
// order in spec.md §6's WhiskerTree/MemoryRange/Memory/Whisker grammar.
package remydna

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/ruletree"
)

// Field numbers, assigned in the order each field is declared in spec.md
// §6's grammar.
const (
	fieldMemoryRangeLower = 1
	fieldMemoryRangeUpper = 2

	fieldMemoryAckEWMA  = 1
	fieldMemorySendEWMA = 2
	fieldMemoryRTTRatio = 3

	fieldWhiskerWindowMultiple    = 1
	fieldWhiskerWindowIncrement   = 2
	fieldWhiskerIntersend         = 3
	fieldWhiskerDomain            = 4
	fieldWhiskerTreeDomain        = 1
	fieldWhiskerTreeLeaf          = 2
	fieldWhiskerTreeChildren      = 3
)

// Units holds the unit convention in effect for serialization: production
// DNA stores EWMA and intersend quantities in milliseconds; the "testing"
// variant (§6) stores them in seconds instead. rtt_ratio is dimensionless
// in both.
type Units struct {
	Testing bool
}

func (u Units) timeScale() float64 {
	if u.Testing {
		return 1
	}
	return 1000
}

// Marshal serializes tree to the WhiskerTree wire format.
func Marshal(tree *ruletree.RuleTree, units Units) []byte {
	return marshalNode(tree, tree.Root(), units)
}

func marshalMemory(p ruletree.Point, units Units) []byte {
	var b []byte
	scale := units.timeScale()
	b = protowire.AppendTag(b, fieldMemoryAckEWMA, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, doubleBits(p.AckEWMA*scale))
	b = protowire.AppendTag(b, fieldMemorySendEWMA, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, doubleBits(p.SendEWMA*scale))
	b = protowire.AppendTag(b, fieldMemoryRTTRatio, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, doubleBits(p.RTTRatio))
	return b
}

func marshalMemoryRange(c ruletree.Cube, units Units) []byte {
	var b []byte
	lower := marshalMemory(c.Min, units)
	upper := marshalMemory(c.Max, units)
	b = protowire.AppendTag(b, fieldMemoryRangeLower, protowire.BytesType)
	b = protowire.AppendBytes(b, lower)
	b = protowire.AppendTag(b, fieldMemoryRangeUpper, protowire.BytesType)
	b = protowire.AppendBytes(b, upper)
	return b
}

func marshalWhisker(a ruletree.Action, domain ruletree.Cube, units Units) []byte {
	var b []byte
	scale := units.timeScale()
	b = protowire.AppendTag(b, fieldWhiskerWindowMultiple, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, doubleBits(a.WindowMultiplier))
	b = protowire.AppendTag(b, fieldWhiskerWindowIncrement, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(int64(a.WindowIncrement)))
	b = protowire.AppendTag(b, fieldWhiskerIntersend, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, doubleBits(a.IntersendDelay.Milliseconds()*scale/1000))
	b = protowire.AppendTag(b, fieldWhiskerDomain, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalMemoryRange(domain, units))
	return b
}

func marshalNode(tree *ruletree.RuleTree, idx int, units Units) []byte {
	var b []byte
	domain := tree.Domain(idx)
	b = protowire.AppendTag(b, fieldWhiskerTreeDomain, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalMemoryRange(domain, units))
	if tree.IsLeaf(idx) {
		b = protowire.AppendTag(b, fieldWhiskerTreeLeaf, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalWhisker(tree.Action(idx), domain, units))
	} else {
		for _, c := range tree.Children(idx) {
			b = protowire.AppendTag(b, fieldWhiskerTreeChildren, protowire.BytesType)
			b = protowire.AppendBytes(b, marshalNode(tree, c, units))
		}
	}
	return b
}

func doubleBits(f float64) uint64 {
	return math.Float64bits(f)
}

func doubleFromBits(v uint64) float64 {
	return math.Float64frombits(v)
}

// Unmarshal parses the WhiskerTree wire format back into a RuleTree.
func Unmarshal(data []byte, units Units) (*ruletree.RuleTree, error) {
	b := ruletree.NewBuilder()
	root, _, err := unmarshalNode(b, data, units)
	if err != nil {
		return nil, err
	}
	return b.Finish(root), nil
}

type rawMemoryRange struct {
	lower, upper ruletree.Point
	haveLower    bool
	haveUpper    bool
}

func unmarshalMemory(data []byte) (ruletree.Point, error) {
	var p ruletree.Point
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return p, fmt.Errorf("remydna: bad tag in Memory: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if typ != protowire.Fixed64Type {
			return p, fmt.Errorf("remydna: unexpected wire type %v for Memory field %d", typ, num)
		}
		v, n := protowire.ConsumeFixed64(data)
		if n < 0 {
			return p, fmt.Errorf("remydna: bad fixed64 in Memory: %w", protowire.ParseError(n))
		}
		data = data[n:]
		f := doubleFromBits(v)
		switch num {
		case fieldMemoryAckEWMA:
			p.AckEWMA = f
		case fieldMemorySendEWMA:
			p.SendEWMA = f
		case fieldMemoryRTTRatio:
			p.RTTRatio = f
		}
	}
	return p, nil
}

func unmarshalMemoryRange(data []byte, units Units) (ruletree.Cube, error) {
	var r rawMemoryRange
	scale := units.timeScale()
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return ruletree.Cube{}, fmt.Errorf("remydna: bad tag in MemoryRange: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if typ != protowire.BytesType {
			return ruletree.Cube{}, fmt.Errorf("remydna: unexpected wire type %v for MemoryRange field %d", typ, num)
		}
		field, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return ruletree.Cube{}, fmt.Errorf("remydna: bad bytes in MemoryRange: %w", protowire.ParseError(n))
		}
		data = data[n:]
		p, err := unmarshalMemory(field)
		if err != nil {
			return ruletree.Cube{}, err
		}
		p.AckEWMA /= scale
		p.SendEWMA /= scale
		switch num {
		case fieldMemoryRangeLower:
			r.lower, r.haveLower = p, true
		case fieldMemoryRangeUpper:
			r.upper, r.haveUpper = p, true
		}
	}
	return ruletree.Cube{Min: r.lower, Max: r.upper}, nil
}

func unmarshalWhisker(data []byte, units Units) (ruletree.Action, error) {
	var a ruletree.Action
	scale := units.timeScale()
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return a, fmt.Errorf("remydna: bad tag in Whisker: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case fieldWhiskerWindowMultiple:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return a, fmt.Errorf("remydna: bad window_multiple: %w", protowire.ParseError(n))
			}
			data = data[n:]
			a.WindowMultiplier = doubleFromBits(v)
		case fieldWhiskerWindowIncrement:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return a, fmt.Errorf("remydna: bad window_increment: %w", protowire.ParseError(n))
			}
			data = data[n:]
			a.WindowIncrement = int32(int64(v))
		case fieldWhiskerIntersend:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return a, fmt.Errorf("remydna: bad intersend: %w", protowire.ParseError(n))
			}
			data = data[n:]
			ms := doubleFromBits(v) * 1000 / scale
			a.IntersendDelay = quantities.MillisecondsSpan(ms)
		case fieldWhiskerDomain:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return a, fmt.Errorf("remydna: bad domain: %w", protowire.ParseError(n))
			}
			data = data[n:]
			if _, err := unmarshalMemoryRange(v, units); err != nil {
				return a, err
			}
		default:
			n, ok := skipField(typ, data)
			if !ok {
				return a, fmt.Errorf("remydna: cannot skip Whisker field %d", num)
			}
			data = data[n:]
		}
	}
	return a, nil
}

// unmarshalNode parses one WhiskerTree message starting at data, appending
// nodes to b, and returns the index of the node it built.
func unmarshalNode(b *ruletree.Builder, data []byte, units Units) (int, int, error) {
	var domain ruletree.Cube
	var haveDomain bool
	var leafAction ruletree.Action
	var haveLeaf bool
	var children []int

	rest := data
	for len(rest) > 0 {
		num, typ, n := protowire.ConsumeTag(rest)
		if n < 0 {
			return 0, 0, fmt.Errorf("remydna: bad tag in WhiskerTree: %w", protowire.ParseError(n))
		}
		rest = rest[n:]
		if typ != protowire.BytesType {
			return 0, 0, fmt.Errorf("remydna: unexpected wire type %v for WhiskerTree field %d", typ, num)
		}
		field, n := protowire.ConsumeBytes(rest)
		if n < 0 {
			return 0, 0, fmt.Errorf("remydna: bad bytes in WhiskerTree: %w", protowire.ParseError(n))
		}
		rest = rest[n:]
		switch num {
		case fieldWhiskerTreeDomain:
			c, err := unmarshalMemoryRange(field, units)
			if err != nil {
				return 0, 0, err
			}
			domain, haveDomain = c, true
		case fieldWhiskerTreeLeaf:
			a, err := unmarshalWhisker(field, units)
			if err != nil {
				return 0, 0, err
			}
			leafAction, haveLeaf = a, true
		case fieldWhiskerTreeChildren:
			childIdx, _, err := unmarshalNode(b, field, units)
			if err != nil {
				return 0, 0, err
			}
			children = append(children, childIdx)
		}
	}
	if !haveDomain {
		return 0, 0, fmt.Errorf("remydna: WhiskerTree message missing domain")
	}
	if haveLeaf {
		return b.AddLeaf(domain, leafAction), len(data), nil
	}
	if len(children) != 8 {
		return 0, 0, fmt.Errorf("remydna: interior WhiskerTree node has %d children, want 8", len(children))
	}
	var arr [8]int
	copy(arr[:], children)
	return b.AddInterior(domain, arr), len(data), nil
}

func skipField(typ protowire.Type, data []byte) (int, bool) {
	n := protowire.ConsumeFieldValue(0, typ, data)
	if n < 0 {
		return 0, false
	}
	return n, true
}
