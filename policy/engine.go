package policy

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"ginrummy/card"
	"ginrummy/game"

	"github.com/rs/zerolog/log"
)

const (
	DefaultInputName  = "input"
	DefaultOutputName = "not_activated_output"
)

var supportedOps = map[string]bool{
	"Placeholder":            true,
	"PlaceholderWithDefault": true,
	"Const":                  true,
	"Identity":               true,
	"StopGradient":           true,
	"MatMul":                 true,
	"Add":                    true,
	"AddV2":                  true,
	"BiasAdd":                true,
	"Mul":                    true,
	"Sub":                    true,
	"Relu":                   true,
	"Tanh":                   true,
	"Sigmoid":                true,
	"Softmax":                true,
	"Reshape":                true,
}

type Option func(e *Engine)

func WithInputName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.input = name
		}
	}
}

func WithOutputName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.output = name
		}
	}
}

// WithLogits says whether the output tensor holds logits, which are passed
// through softmax, or probabilities, which are used as they are. Outputs are
// logits unless told otherwise, as is not_activated_output.
func WithLogits(logits bool) Option {
	return func(e *Engine) {
		e.logits = logits
	}
}

// Engine evaluates the average policy network of a frozen GraphDef. It holds
// no per-call state, so one engine can serve any number of agents.
type Engine struct {
	input     string
	output    string
	logits    bool
	feedShape []int
	order     []*node // reachable nodes in evaluation order, input excluded
}

type node struct {
	name       string
	op         string
	inputs     []string
	transposeA bool
	transposeB bool
	value      value // materialized Const
}

// LoadFile reads and loads the model at path.
func LoadFile(path string, options ...Option) (*Engine, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	e, err := Load(b, options...)
	if err != nil {
		var loadErr *ModelLoadError
		if errors.As(err, &loadErr) {
			loadErr.Path = path
		}
		return nil, err
	}
	return e, nil
}

// Load decodes a serialized GraphDef and checks that the input placeholder
// and the output tensor exist and that the output holds one score per action.
func Load(modelBytes []byte, options ...Option) (*Engine, error) {
	e := &Engine{
		input:  DefaultInputName,
		output: DefaultOutputName,
		logits: true,
	}
	for _, option := range options {
		option(e)
	}
	e.input, e.output = tensorName(e.input), tensorName(e.output)

	defs, err := parseGraphDef(modelBytes)
	if err != nil {
		return nil, &ModelLoadError{Err: err}
	}
	byName := make(map[string]*nodeDef, len(defs))
	for i := range defs {
		if _, dup := byName[defs[i].name]; dup {
			return nil, loadErrorf("duplicate node %q", defs[i].name)
		}
		byName[defs[i].name] = &defs[i]
	}

	in, ok := byName[e.input]
	if !ok {
		return nil, loadErrorf("input tensor %q not found", e.input)
	}
	if in.op != "Placeholder" && in.op != "PlaceholderWithDefault" {
		return nil, loadErrorf("input %q is a %s, not a placeholder", e.input, in.op)
	}
	if e.feedShape, err = feedShape(in); err != nil {
		return nil, &ModelLoadError{Err: err}
	}
	if _, ok := byName[e.output]; !ok {
		return nil, loadErrorf("output tensor %q not found", e.output)
	}
	if err := e.sort(byName); err != nil {
		return nil, &ModelLoadError{Err: err}
	}

	// A dry run on the empty observation validates the output shape.
	if _, err := e.Infer(game.Observation{}); err != nil {
		return nil, &ModelLoadError{Err: err}
	}
	log.Debug().Msgf("Loaded policy graph with %d nodes, feeding %v, logits %t", len(e.order), e.feedShape, e.logits)
	return e, nil
}

func (e *Engine) InputName() string  { return e.input }
func (e *Engine) OutputName() string { return e.output }

// InputShape is the shape observations are fed with, batch dimension included.
func (e *Engine) InputShape() []int { return append([]int(nil), e.feedShape...) }

// Infer runs one forward pass and returns a non-negative score per action id.
func (e *Engine) Infer(obs game.Observation) ([]float64, error) {
	vals := make(map[string]value, len(e.order)+1)
	vals[e.input] = value{shape: e.feedShape, data: obs.Vector()}
	for _, n := range e.order {
		v, err := n.eval(vals)
		if err != nil {
			return nil, &InferenceError{Node: n.name, Err: err}
		}
		vals[n.name] = v
	}

	out := vals[e.output]
	if len(out.data) != game.NumActions || (len(out.shape) == 2 && out.shape[0] != 1) {
		return nil, &InferenceError{Err: fmt.Errorf("output shape %v, want [1 %d]", out.shape, game.NumActions)}
	}
	scores := make([]float64, game.NumActions)
	for i, x := range out.data {
		if math.IsNaN(float64(x)) || (e.logits && math.IsInf(float64(x), 0)) {
			return nil, &InferenceError{Err: fmt.Errorf("score %g for action %d", x, i)}
		}
		if !e.logits && x < 0 {
			return nil, &InferenceError{Err: fmt.Errorf("negative probability %g for action %d", x, i)}
		}
		scores[i] = float64(x)
	}
	if e.logits {
		softmax64(scores)
	}
	return scores, nil
}

// sort orders the nodes reachable from the output so that inputs come first.
func (e *Engine) sort(byName map[string]*nodeDef) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var visit func(name string) error
	visit = func(name string) error {
		if name == e.input {
			return nil
		}
		switch state[name] {
		case visiting:
			return fmt.Errorf("cycle through node %q", name)
		case done:
			return nil
		}
		def, ok := byName[name]
		if !ok {
			return fmt.Errorf("node %q not found", name)
		}
		if !supportedOps[def.op] {
			return fmt.Errorf("node %q has unsupported op %s", name, def.op)
		}
		if def.op == "Placeholder" {
			return fmt.Errorf("placeholder %q is never fed", name)
		}
		state[name] = visiting
		n := &node{name: name, op: def.op}
		for _, in := range def.inputs {
			if strings.HasPrefix(in, "^") {
				continue // control dependency
			}
			if i := strings.IndexByte(in, ':'); i >= 0 && in[i:] != ":0" {
				return fmt.Errorf("node %q reads output %s", name, in)
			}
			in = tensorName(in)
			if err := visit(in); err != nil {
				return err
			}
			n.inputs = append(n.inputs, in)
		}
		if err := n.configure(def); err != nil {
			return err
		}
		state[name] = done
		e.order = append(e.order, n)
		return nil
	}
	return visit(e.output)
}

func (n *node) configure(def *nodeDef) error {
	arity := map[string]int{
		"Const": 0, "MatMul": 2, "Add": 2, "AddV2": 2, "BiasAdd": 2,
		"Mul": 2, "Sub": 2, "Reshape": 2,
	}
	want, ok := arity[n.op]
	if !ok {
		want = 1
	}
	if len(n.inputs) != want {
		return fmt.Errorf("node %q (%s) has %d inputs, want %d", n.name, n.op, len(n.inputs), want)
	}
	switch n.op {
	case "Const":
		attr, ok := def.attrs["value"]
		if !ok || attr.tensor == nil {
			return fmt.Errorf("const %q has no value", n.name)
		}
		v, err := constValue(attr.tensor)
		if err != nil {
			return fmt.Errorf("const %q: %w", n.name, err)
		}
		n.value = v
	case "MatMul":
		n.transposeA = def.attrs["transpose_a"].b
		n.transposeB = def.attrs["transpose_b"].b
	}
	return nil
}

// feedShape picks how observations are fed from the placeholder shape.
func feedShape(in *nodeDef) ([]int, error) {
	if dt, ok := in.attrs["dtype"]; ok && dt.dtype != dtFloat {
		return nil, fmt.Errorf("input %q has dtype %d, want float", in.name, dt.dtype)
	}
	attr, ok := in.attrs["shape"]
	if !ok || attr.shape == nil || attr.shape.unknownRank {
		return []int{1, game.ObservationSize}, nil
	}
	dims := attr.shape.dims
	batch := len(dims) > 0 && (dims[0] == -1 || dims[0] == 1)
	switch {
	case len(dims) == 3 && batch && dims[1] == game.NumRows && dims[2] == card.NumCards:
		return []int{1, game.NumRows, card.NumCards}, nil
	case len(dims) == 2 && batch && dims[1] == game.ObservationSize:
		return []int{1, game.ObservationSize}, nil
	}
	return nil, fmt.Errorf("input %q has shape %v, want [N 4 52] or [N 208]", in.name, dims)
}

// tensorName strips the ":0" output suffix.
func tensorName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}
