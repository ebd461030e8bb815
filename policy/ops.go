package policy

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

// value is a dense row-major float32 tensor. Integer constants, which only
// feed Reshape, keep their exact values in ints.
type value struct {
	shape []int
	data  []float32
	ints  []int64
}

func (v value) dense() *tensor.Dense {
	return tensor.New(tensor.WithShape(v.shape...), tensor.WithBacking(v.data))
}

func size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func (n *node) eval(vals map[string]value) (value, error) {
	args := make([]value, len(n.inputs))
	for i, in := range n.inputs {
		args[i] = vals[in]
	}
	switch n.op {
	case "Const":
		return n.value, nil
	case "Identity", "StopGradient", "PlaceholderWithDefault":
		return args[0], nil
	case "MatMul":
		return matMul(args[0], args[1], n.transposeA, n.transposeB)
	case "Add", "AddV2", "BiasAdd":
		return binaryOp(args[0], args[1], func(x, y float32) float32 { return x + y })
	case "Sub":
		return binaryOp(args[0], args[1], func(x, y float32) float32 { return x - y })
	case "Mul":
		return binaryOp(args[0], args[1], func(x, y float32) float32 { return x * y })
	case "Relu":
		return unaryOp(args[0], func(x float32) float32 { return max(x, 0) }), nil
	case "Tanh":
		return unaryOp(args[0], math32.Tanh), nil
	case "Sigmoid":
		return unaryOp(args[0], func(x float32) float32 { return 1 / (1 + math32.Exp(-x)) }), nil
	case "Softmax":
		return softmax(args[0])
	case "Reshape":
		return reshape(args[0], args[1])
	}
	return value{}, fmt.Errorf("unsupported op %s", n.op)
}

func matMul(a, b value, transposeA, transposeB bool) (value, error) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return value{}, fmt.Errorf("matmul of shapes %v and %v", a.shape, b.shape)
	}
	if transposeA {
		a = transpose(a)
	}
	if transposeB {
		b = transpose(b)
	}
	if a.shape[1] != b.shape[0] {
		return value{}, fmt.Errorf("matmul of shapes %v and %v", a.shape, b.shape)
	}
	prod, err := tensor.MatMul(a.dense(), b.dense())
	if err != nil {
		return value{}, err
	}
	data, ok := prod.Data().([]float32)
	if !ok {
		return value{}, fmt.Errorf("matmul produced %T", prod.Data())
	}
	return value{shape: []int{a.shape[0], b.shape[1]}, data: data}, nil
}

func transpose(v value) value {
	rows, cols := v.shape[0], v.shape[1]
	data := make([]float32, len(v.data))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[j*rows+i] = v.data[i*cols+j]
		}
	}
	return value{shape: []int{cols, rows}, data: data}
}

// binaryOp applies fn elementwise, broadcasting the smaller operand when its
// shape is a suffix of the larger one, such as a bias vector or a scalar.
func binaryOp(a, b value, fn func(x, y float32) float32) (value, error) {
	swapped := false
	big, small := a, b
	if len(b.data) > len(a.data) {
		big, small, swapped = b, a, true
	}
	if !broadcastable(small.shape, big.shape) || len(small.data) == 0 {
		return value{}, fmt.Errorf("cannot broadcast %v with %v", a.shape, b.shape)
	}
	out := make([]float32, len(big.data))
	for i := range out {
		x, y := big.data[i], small.data[i%len(small.data)]
		if swapped {
			x, y = y, x
		}
		out[i] = fn(x, y)
	}
	return value{shape: slices.Clone(big.shape), data: out}, nil
}

func broadcastable(small, big []int) bool {
	if size(small) == 1 {
		return true
	}
	for len(small) > 0 && small[0] == 1 {
		small = small[1:]
	}
	if len(small) > len(big) {
		return false
	}
	return slices.Equal(small, big[len(big)-len(small):])
}

func unaryOp(v value, fn func(float32) float32) value {
	out := make([]float32, len(v.data))
	for i, x := range v.data {
		out[i] = fn(x)
	}
	return value{shape: slices.Clone(v.shape), data: out}
}

// softmax normalizes over the last axis.
func softmax(v value) (value, error) {
	if len(v.shape) == 0 || v.shape[len(v.shape)-1] == 0 {
		return value{}, fmt.Errorf("softmax of shape %v", v.shape)
	}
	width := v.shape[len(v.shape)-1]
	out := make([]float32, len(v.data))
	for start := 0; start < len(v.data); start += width {
		row := v.data[start : start+width]
		top := slices.Max(row)
		var sum float32
		for i, x := range row {
			out[start+i] = math32.Exp(x - top)
			sum += out[start+i]
		}
		for i := range row {
			out[start+i] /= sum
		}
	}
	return value{shape: slices.Clone(v.shape), data: out}, nil
}

func softmax64(xs []float64) {
	top := slices.Max(xs)
	sum := 0.0
	for i, x := range xs {
		xs[i] = math.Exp(x - top)
		sum += xs[i]
	}
	for i := range xs {
		xs[i] /= sum
	}
}

func reshape(v, shape value) (value, error) {
	dims := make([]int, 0, len(shape.ints))
	infer := -1
	known := 1
	for i, d := range shape.ints {
		switch {
		case d == -1 && infer < 0:
			infer = i
			d = 1
		case d < 0:
			return value{}, fmt.Errorf("cannot reshape %v to %v", v.shape, shape.ints)
		case d > 0 && int64(known) > int64(len(v.data))/d:
			return value{}, fmt.Errorf("cannot reshape %v to %v", v.shape, shape.ints)
		}
		known *= int(d)
		dims = append(dims, int(d))
	}
	if infer >= 0 {
		if known == 0 || len(v.data)%known != 0 {
			return value{}, fmt.Errorf("cannot reshape %v to %v", v.shape, shape.ints)
		}
		dims[infer] = len(v.data) / known
	}
	if size(dims) != len(v.data) {
		return value{}, fmt.Errorf("cannot reshape %v to %v", v.shape, shape.ints)
	}
	if len(dims) == 0 || len(v.shape) == 0 || len(v.data) == 0 {
		return value{shape: dims, data: v.data}, nil
	}
	d := v.dense()
	if err := d.Reshape(dims...); err != nil {
		return value{}, err
	}
	return value{shape: slices.Clone([]int(d.Shape())), data: d.Data().([]float32)}, nil
}

// maxConstElements bounds the elements of one constant. A policy head is
// 208x110 weights; anything far beyond that is a corrupt file.
const maxConstElements = 1 << 24

// constSize checks the declared shape of a constant and returns its element
// count.
func constSize(dims []int64) ([]int, int, error) {
	shape := make([]int, len(dims))
	n := int64(1)
	for i, d := range dims {
		if d < 0 {
			return nil, 0, fmt.Errorf("constant with unknown dimension %d", i)
		}
		if d > maxConstElements || (d > 0 && n > maxConstElements/d) {
			return nil, 0, fmt.Errorf("constant of shape %v exceeds %d elements", dims, maxConstElements)
		}
		n *= d
		shape[i] = int(d)
	}
	return shape, int(n), nil
}

// constValue materializes a TensorProto. Values must either fill the shape
// or be a single splat; no values at all means zeros.
func constValue(t *tensorProto) (value, error) {
	shape, n, err := constSize(t.shape.dims)
	if err != nil {
		return value{}, err
	}

	switch t.dtype {
	case dtFloat:
		switch {
		case len(t.content) > 0 && len(t.content) != 4*n:
			return value{}, fmt.Errorf("%d content bytes for %d floats", len(t.content), n)
		case len(t.content) == 0 && len(t.floats) > 1 && len(t.floats) != n:
			return value{}, fmt.Errorf("%d float values for %d elements", len(t.floats), n)
		}
		data := make([]float32, n)
		switch {
		case len(t.content) > 0:
			for i := range data {
				data[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.content[4*i:]))
			}
		case len(t.floats) == n:
			copy(data, t.floats)
		case len(t.floats) == 1:
			for i := range data {
				data[i] = t.floats[0]
			}
		}
		return value{shape: shape, data: data}, nil
	case dtInt32, dtInt64:
		width := 4
		if t.dtype == dtInt64 {
			width = 8
		}
		switch {
		case len(t.content) > 0 && len(t.content) != width*n:
			return value{}, fmt.Errorf("%d content bytes for %d ints", len(t.content), n)
		case len(t.content) == 0 && len(t.ints) > 1 && len(t.ints) != n:
			return value{}, fmt.Errorf("%d int values for %d elements", len(t.ints), n)
		}
		ints := make([]int64, n)
		switch {
		case len(t.content) > 0:
			for i := range ints {
				if width == 4 {
					ints[i] = int64(int32(binary.LittleEndian.Uint32(t.content[4*i:])))
				} else {
					ints[i] = int64(binary.LittleEndian.Uint64(t.content[8*i:]))
				}
			}
		case len(t.ints) == n:
			copy(ints, t.ints)
		case len(t.ints) == 1:
			for i := range ints {
				ints[i] = t.ints[0]
			}
		}
		data := make([]float32, n)
		for i, x := range ints {
			data[i] = float32(x)
		}
		return value{shape: shape, data: data, ints: ints}, nil
	}
	return value{}, fmt.Errorf("unsupported dtype %d", t.dtype)
}
