// Package policytest builds small frozen TensorFlow graphs for tests.
package policytest

import (
	"encoding/binary"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	DTFloat = 1
	DTInt32 = 3
)

const (
	numActions = 110
	numInputs  = 208
)

// Graph accumulates encoded NodeDefs.
type Graph struct {
	nodes [][]byte
}

func New() *Graph { return &Graph{} }

// Bytes returns the serialized GraphDef.
func (g *Graph) Bytes() []byte {
	var b []byte
	for _, n := range g.nodes {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, n)
	}
	return b
}

// Attr is an encoded AttrValue.
type Attr []byte

func BoolAttr(v bool) Attr {
	b := protowire.AppendTag(nil, 5, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func TypeAttr(dtype int) Attr {
	b := protowire.AppendTag(nil, 6, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(dtype))
}

// ShapeAttr encodes a shape; -1 is an unknown dimension and nil dims an
// unknown rank.
func ShapeAttr(dims []int64) Attr {
	b := protowire.AppendTag(nil, 7, protowire.BytesType)
	return protowire.AppendBytes(b, shape(dims))
}

func FloatTensorAttr(dims []int64, values []float32) Attr {
	var t []byte
	t = protowire.AppendTag(t, 1, protowire.VarintType)
	t = protowire.AppendVarint(t, DTFloat)
	t = protowire.AppendTag(t, 2, protowire.BytesType)
	t = protowire.AppendBytes(t, shape(dims))
	content := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(content[4*i:], math.Float32bits(v))
	}
	t = protowire.AppendTag(t, 4, protowire.BytesType)
	t = protowire.AppendBytes(t, content)
	b := protowire.AppendTag(nil, 8, protowire.BytesType)
	return protowire.AppendBytes(b, t)
}

// Int32TensorAttr encodes a vector through the packed int_val field.
func Int32TensorAttr(values []int32) Attr {
	var t []byte
	t = protowire.AppendTag(t, 1, protowire.VarintType)
	t = protowire.AppendVarint(t, DTInt32)
	t = protowire.AppendTag(t, 2, protowire.BytesType)
	t = protowire.AppendBytes(t, shape([]int64{int64(len(values))}))
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, uint64(int64(v)))
	}
	t = protowire.AppendTag(t, 7, protowire.BytesType)
	t = protowire.AppendBytes(t, packed)
	b := protowire.AppendTag(nil, 8, protowire.BytesType)
	return protowire.AppendBytes(b, t)
}

func shape(dims []int64) []byte {
	var s []byte
	if dims == nil {
		s = protowire.AppendTag(s, 3, protowire.VarintType)
		return protowire.AppendVarint(s, 1)
	}
	for _, d := range dims {
		var dim []byte
		dim = protowire.AppendTag(dim, 1, protowire.VarintType)
		dim = protowire.AppendVarint(dim, uint64(d))
		s = protowire.AppendTag(s, 2, protowire.BytesType)
		s = protowire.AppendBytes(s, dim)
	}
	return s
}

// Node appends a node with the given attributes.
func (g *Graph) Node(name, op string, inputs []string, attrs map[string]Attr) *Graph {
	var n []byte
	n = protowire.AppendTag(n, 1, protowire.BytesType)
	n = protowire.AppendString(n, name)
	n = protowire.AppendTag(n, 2, protowire.BytesType)
	n = protowire.AppendString(n, op)
	for _, in := range inputs {
		n = protowire.AppendTag(n, 3, protowire.BytesType)
		n = protowire.AppendString(n, in)
	}
	for key, val := range attrs {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendBytes(entry, val)
		n = protowire.AppendTag(n, 5, protowire.BytesType)
		n = protowire.AppendBytes(n, entry)
	}
	g.nodes = append(g.nodes, n)
	return g
}

func (g *Graph) Placeholder(name string, dims []int64) *Graph {
	return g.Node(name, "Placeholder", nil, map[string]Attr{
		"dtype": TypeAttr(DTFloat),
		"shape": ShapeAttr(dims),
	})
}

func (g *Graph) Const(name string, dims []int64, values []float32) *Graph {
	return g.Node(name, "Const", nil, map[string]Attr{
		"dtype": TypeAttr(DTFloat),
		"value": FloatTensorAttr(dims, values),
	})
}

func (g *Graph) Op(name, op string, inputs ...string) *Graph {
	return g.Node(name, op, inputs, nil)
}

// Linear builds the usual exported policy head,
// output = activation(input · weights + bias), on a [N,208] input.
// An empty activation leaves the output linear.
func Linear(weights [][]float32, bias []float32, activation string) []byte {
	w := make([]float32, 0, numInputs*numActions)
	for _, row := range weights {
		w = append(w, row...)
	}
	g := New().
		Placeholder("input", []int64{-1, numInputs}).
		Const("w", []int64{numInputs, numActions}, w).
		Const("b", []int64{numActions}, bias).
		Op("matmul", "MatMul", "input", "w").
		Op("logits", "BiasAdd", "matmul", "b")
	if activation == "" {
		g.Op("not_activated_output", "Identity", "logits")
	} else {
		g.Op("not_activated_output", activation, "logits")
	}
	return g.Bytes()
}

// Bias returns a model whose scores ignore the observation.
func Bias(bias []float32) []byte {
	weights := make([][]float32, numInputs)
	for i := range weights {
		weights[i] = make([]float32, numActions)
	}
	return Linear(weights, bias, "Relu")
}
