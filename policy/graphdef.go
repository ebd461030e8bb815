package policy

import (
	"encoding/binary"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// TensorFlow data types used by the supported ops.
const (
	dtFloat = 1
	dtInt32 = 3
	dtInt64 = 9
)

type nodeDef struct {
	name   string
	op     string
	inputs []string
	attrs  map[string]attrValue
}

type attrValue struct {
	s      []byte
	i      int64
	f      float32
	b      bool
	dtype  int64
	shape  *shapeProto
	tensor *tensorProto
}

type shapeProto struct {
	dims        []int64
	unknownRank bool
}

type tensorProto struct {
	dtype   int64
	shape   shapeProto
	content []byte
	floats  []float32
	ints    []int64
}

type field struct {
	num   protowire.Number
	typ   protowire.Type
	u     uint64
	bytes []byte
}

// fields calls fn for each field of the encoded message b. Varint and fixed
// width values are in u, length delimited payloads in bytes.
func fields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if typ == protowire.StartGroupType {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func parseGraphDef(b []byte) ([]nodeDef, error) {
	var nodes []nodeDef
	err := fields(b, func(f field) error {
		if f.num != 1 || f.typ != protowire.BytesType {
			return nil // versions, library
		}
		n, err := parseNodeDef(f.bytes)
		if err != nil {
			return err
		}
		nodes = append(nodes, n)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding graph: %w", err)
	}
	return nodes, nil
}

func parseNodeDef(b []byte) (nodeDef, error) {
	n := nodeDef{attrs: make(map[string]attrValue)}
	err := fields(b, func(f field) error {
		switch f.num {
		case 1:
			n.name = string(f.bytes)
		case 2:
			n.op = string(f.bytes)
		case 3:
			n.inputs = append(n.inputs, string(f.bytes))
		case 5:
			key, val, err := parseAttrEntry(f.bytes)
			if err != nil {
				return fmt.Errorf("node %q: %w", n.name, err)
			}
			n.attrs[key] = val
		}
		return nil
	})
	return n, err
}

func parseAttrEntry(b []byte) (string, attrValue, error) {
	var key string
	var val attrValue
	err := fields(b, func(f field) error {
		switch f.num {
		case 1:
			key = string(f.bytes)
		case 2:
			v, err := parseAttrValue(f.bytes)
			if err != nil {
				return err
			}
			val = v
		}
		return nil
	})
	return key, val, err
}

func parseAttrValue(b []byte) (attrValue, error) {
	var v attrValue
	err := fields(b, func(f field) error {
		switch f.num {
		case 2:
			v.s = f.bytes
		case 3:
			v.i = int64(f.u)
		case 4:
			v.f = math.Float32frombits(uint32(f.u))
		case 5:
			v.b = f.u != 0
		case 6:
			v.dtype = int64(f.u)
		case 7:
			s, err := parseShape(f.bytes)
			if err != nil {
				return err
			}
			v.shape = &s
		case 8:
			t, err := parseTensor(f.bytes)
			if err != nil {
				return err
			}
			v.tensor = &t
		}
		return nil
	})
	return v, err
}

func parseShape(b []byte) (shapeProto, error) {
	var s shapeProto
	err := fields(b, func(f field) error {
		switch f.num {
		case 2:
			var size int64
			err := fields(f.bytes, func(d field) error {
				if d.num == 1 {
					size = int64(d.u)
				}
				return nil
			})
			if err != nil {
				return err
			}
			s.dims = append(s.dims, size)
		case 3:
			s.unknownRank = f.u != 0
		}
		return nil
	})
	return s, err
}

func parseTensor(b []byte) (tensorProto, error) {
	var t tensorProto
	err := fields(b, func(f field) error {
		switch f.num {
		case 1:
			t.dtype = int64(f.u)
		case 2:
			s, err := parseShape(f.bytes)
			if err != nil {
				return err
			}
			t.shape = s
		case 4:
			t.content = f.bytes
		case 5:
			if f.typ == protowire.BytesType {
				if len(f.bytes)%4 != 0 {
					return fmt.Errorf("packed float_val of %d bytes", len(f.bytes))
				}
				for i := 0; i < len(f.bytes); i += 4 {
					t.floats = append(t.floats, math.Float32frombits(binary.LittleEndian.Uint32(f.bytes[i:])))
				}
			} else {
				t.floats = append(t.floats, math.Float32frombits(uint32(f.u)))
			}
		case 7, 10:
			if f.typ != protowire.BytesType {
				t.ints = append(t.ints, signed(f.num, f.u))
				return nil
			}
			for p := f.bytes; len(p) > 0; {
				u, n := protowire.ConsumeVarint(p)
				if n < 0 {
					return protowire.ParseError(n)
				}
				t.ints = append(t.ints, signed(f.num, u))
				p = p[n:]
			}
		}
		return nil
	})
	return t, err
}

// int_val holds int32 values encoded as sign extended varints.
func signed(num protowire.Number, u uint64) int64 {
	if num == 7 {
		return int64(int32(u))
	}
	return int64(u)
}
