package pattern

import (
	"errors"
	"fmt"
	"sort"

	"github.com/boristopalov/openthechests/pkg/allen"
	"github.com/boristopalov/openthechests/pkg/sampling"
)

var (
	// ErrUnknownCommand is returned for a record whose command is not recognised.
	ErrUnknownCommand = errors.New("pattern: unknown command")
	// ErrMalformedInstruction is returned for structurally invalid instructions:
	// missing or repeated delay/noise, bad parameters, unbound variables.
	ErrMalformedInstruction = errors.New("pattern: malformed instruction")
	// ErrEmptyPattern is returned for a pattern that produces no events.
	ErrEmptyPattern = errors.New("pattern: no events")
)

const (
	CommandDelay       = "delay"
	CommandNoise       = "noise"
	CommandInstantiate = "instantiate"
)

// Instruction is one decoded command of a box configuration. The concrete
// types are Instantiate, Relation, Delay and Noise.
type Instruction interface {
	Command() string
	instruction()
}

// Instantiate binds Variable to a freshly drawn event. An empty Type or a
// missing attribute is drawn at random; a nil Duration is synthesised from
// the durations seen so far.
type Instantiate struct {
	Variable   string
	Type       string
	Attributes map[string]string
	Duration   *sampling.Dist
}

// Relation rebinds Variable to Operands[0] placed relative to Operands[1].
type Relation struct {
	Variable string
	Op       allen.Op
	Operands []string
	Gap      *sampling.Dist
}

// Delay is the maximum regeneration delay of a pattern.
type Delay struct {
	Timeout float64
}

// Noise is the per-event probability of injecting a noise event.
type Noise struct {
	Ratio float64
}

func (Instantiate) Command() string { return CommandInstantiate }
func (r Relation) Command() string  { return string(r.Op) }
func (Delay) Command() string       { return CommandDelay }
func (Noise) Command() string       { return CommandNoise }

func (Instantiate) instruction() {}
func (Relation) instruction()    {}
func (Delay) instruction()       {}
func (Noise) instruction()       {}

// Record is the loosely typed form of an instruction produced by
// configuration loaders:
//
//	{command: delay, parameters: 10}
//	{command: noise, parameters: 0.1}
//	{command: instantiate, parameters: [A, {bg: blue}, {mu: 5, sigma: 2}], variable_name: a}
//	{command: after, parameters: [b, a], variable_name: b, other: {gap_dist: {mu: 4, sigma: 1}}}
type Record struct {
	Command      string         `yaml:"command" json:"command"`
	Parameters   any            `yaml:"parameters" json:"parameters"`
	VariableName string         `yaml:"variable_name,omitempty" json:"variable_name,omitempty"`
	Other        map[string]any `yaml:"other,omitempty" json:"other,omitempty"`
}

// Decode converts a record into its typed instruction.
func Decode(rec Record) (Instruction, error) {
	switch rec.Command {
	case CommandDelay:
		v, err := toFloat(rec.Parameters)
		if err != nil {
			return nil, fmt.Errorf("%w: delay: %v", ErrMalformedInstruction, err)
		}
		return Delay{Timeout: v}, nil
	case CommandNoise:
		v, err := toFloat(rec.Parameters)
		if err != nil {
			return nil, fmt.Errorf("%w: noise: %v", ErrMalformedInstruction, err)
		}
		return Noise{Ratio: v}, nil
	case CommandInstantiate:
		return decodeInstantiate(rec)
	}
	op, err := allen.ParseOp(rec.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, rec.Command)
	}
	return decodeRelation(op, rec)
}

// DecodeAll decodes every record of one box configuration.
func DecodeAll(recs []Record) ([]Instruction, error) {
	out := make([]Instruction, 0, len(recs))
	for i, rec := range recs {
		ins, err := Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, ins)
	}
	return out, nil
}

func decodeInstantiate(rec Record) (Instruction, error) {
	if rec.VariableName == "" {
		return nil, fmt.Errorf("%w: instantiate without variable_name", ErrMalformedInstruction)
	}
	ins := Instantiate{Variable: rec.VariableName}

	var params []any
	switch p := rec.Parameters.(type) {
	case nil:
	case []any:
		params = p
	case string:
		params = []any{p}
	default:
		return nil, fmt.Errorf("%w: instantiate %s: parameters must be a list, got %T", ErrMalformedInstruction, rec.VariableName, rec.Parameters)
	}
	if len(params) > 3 {
		return nil, fmt.Errorf("%w: instantiate %s: %d parameters, want at most 3", ErrMalformedInstruction, rec.VariableName, len(params))
	}

	if len(params) > 0 && params[0] != nil {
		typ, ok := params[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: instantiate %s: type must be a string, got %T", ErrMalformedInstruction, rec.VariableName, params[0])
		}
		ins.Type = typ
	}
	if len(params) > 1 && params[1] != nil {
		attrs, err := toStringMap(params[1])
		if err != nil {
			return nil, fmt.Errorf("%w: instantiate %s: attributes: %v", ErrMalformedInstruction, rec.VariableName, err)
		}
		ins.Attributes = attrs
	}
	if len(params) > 2 && params[2] != nil {
		d, err := toDist(params[2])
		if err != nil {
			return nil, fmt.Errorf("%w: instantiate %s: duration: %v", ErrMalformedInstruction, rec.VariableName, err)
		}
		ins.Duration = &d
	}
	return ins, nil
}

func decodeRelation(op allen.Op, rec Record) (Instruction, error) {
	raw, ok := rec.Parameters.([]any)
	if !ok {
		if names, isStrings := rec.Parameters.([]string); isStrings {
			raw = make([]any, len(names))
			for i, n := range names {
				raw[i] = n
			}
		} else {
			return nil, fmt.Errorf("%w: %s: parameters must be a list of variable names", ErrMalformedInstruction, op)
		}
	}
	operands := make([]string, 0, len(raw))
	for _, r := range raw {
		name, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: operand %v is not a variable name", ErrMalformedInstruction, op, r)
		}
		operands = append(operands, name)
	}
	if len(operands) != 2 {
		return nil, fmt.Errorf("%w: %s takes 2 operands, got %d", ErrMalformedInstruction, op, len(operands))
	}

	rel := Relation{Variable: rec.VariableName, Op: op, Operands: operands}
	if rel.Variable == "" {
		rel.Variable = operands[0]
	}
	if g, ok := rec.Other["gap_dist"]; ok && g != nil {
		d, err := toDist(g)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: gap_dist: %v", ErrMalformedInstruction, op, err)
		}
		rel.Gap = &d
	}
	return rel, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func toStringMap(v any) (map[string]string, error) {
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]string:
		for k, val := range m {
			out[k] = val
		}
	case map[string]any:
		for k, val := range m {
			out[k] = fmt.Sprint(val)
		}
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", v)
	}
	return out, nil
}

func toDist(v any) (sampling.Dist, error) {
	switch m := v.(type) {
	case sampling.Dist:
		return m, nil
	case *sampling.Dist:
		return *m, nil
	case map[string]any:
		mu, err := toFloat(m["mu"])
		if err != nil {
			return sampling.Dist{}, fmt.Errorf("mu: %v", err)
		}
		sigma, err := toFloat(m["sigma"])
		if err != nil {
			return sampling.Dist{}, fmt.Errorf("sigma: %v", err)
		}
		return sampling.Dist{Mu: mu, Sigma: sigma}, nil
	case map[string]float64:
		return sampling.Dist{Mu: m["mu"], Sigma: m["sigma"]}, nil
	}
	return sampling.Dist{}, fmt.Errorf("expected {mu, sigma}, got %T", v)
}

// variables returns the names bound by instructions, in binding order.
func variables(instructions []Instruction) []string {
	seen := map[string]bool{}
	var names []string
	for _, ins := range instructions {
		var name string
		switch v := ins.(type) {
		case Instantiate:
			name = v.Variable
		case Relation:
			name = v.Variable
		default:
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// sortedKeys is used to keep error messages deterministic.
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
