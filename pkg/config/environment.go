package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/boristopalov/openthechests/pkg/environment"
	"github.com/boristopalov/openthechests/pkg/parser"
	"github.com/boristopalov/openthechests/pkg/pattern"
	"github.com/boristopalov/openthechests/pkg/sampling"
)

// EnvironmentFile lists the vocabulary and the pattern file of every box.
// Pattern paths are relative to the environment file.
type EnvironmentFile struct {
	EventTypes       Split[[]string]            `yaml:"EVENT_TYPES"`
	EventAttributes  Split[map[string][]string] `yaml:"EVENT_ATTRIBUTES"`
	Instructions     []string                   `yaml:"INSTRUCTIONS"`
	TimeoutThreshold int                        `yaml:"TIMEOUT_THRESHOLD"`
}

// Split separates pattern symbols from noise-only symbols.
type Split[T any] struct {
	Normal T `yaml:"NORMAL"`
	Noise  T `yaml:"NOISE"`
}

// PatternFile describes one box.
type PatternFile struct {
	General struct {
		Delay *float64 `yaml:"delay"`
		Noise *float64 `yaml:"noise"`
	} `yaml:"GENERAL"`
	Instantiate  []InstantiateEntry  `yaml:"INSTANTIATE"`
	Relationship []RelationshipEntry `yaml:"RELATIONSHIP"`
}

type InstantiateEntry struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Params   map[string]string `yaml:"params"`
	Duration *sampling.Dist    `yaml:"duration"`
}

type RelationshipEntry struct {
	Type   string         `yaml:"type"`
	Events []string       `yaml:"events"`
	Other  map[string]any `yaml:"other"`
}

// Records converts the file into instruction records: delay and noise
// first, then every instantiation, then every relationship. A relationship
// rebinds its first event.
func (f *PatternFile) Records() ([]pattern.Record, error) {
	if f.General.Delay == nil || f.General.Noise == nil {
		return nil, fmt.Errorf("%w: GENERAL needs both delay and noise", pattern.ErrMalformedInstruction)
	}
	recs := []pattern.Record{
		{Command: pattern.CommandDelay, Parameters: *f.General.Delay},
		{Command: pattern.CommandNoise, Parameters: *f.General.Noise},
	}
	for _, ev := range f.Instantiate {
		params := []any{nil, nil, nil}
		if ev.Type != "" {
			params[0] = ev.Type
		}
		if ev.Params != nil {
			params[1] = ev.Params
		}
		if ev.Duration != nil {
			params[2] = *ev.Duration
		}
		recs = append(recs, pattern.Record{
			Command:      pattern.CommandInstantiate,
			Parameters:   params,
			VariableName: ev.Name,
		})
	}
	for i, rel := range f.Relationship {
		if len(rel.Events) == 0 {
			return nil, fmt.Errorf("%w: relationship %d has no events", pattern.ErrMalformedInstruction, i)
		}
		recs = append(recs, pattern.Record{
			Command:      rel.Type,
			Parameters:   rel.Events,
			VariableName: rel.Events[0],
			Other:        rel.Other,
		})
	}
	return recs, nil
}

// LoadPattern reads and decodes one pattern file.
func LoadPattern(path string) ([]pattern.Instruction, error) {
	var f PatternFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}
	recs, err := f.Records()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	instr, err := pattern.DecodeAll(recs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return instr, nil
}

// LoadEnvironment reads an environment file and every pattern it lists.
func LoadEnvironment(path string) (environment.Definition, error) {
	var f EnvironmentFile
	if err := readYAML(path, &f); err != nil {
		return environment.Definition{}, err
	}
	if len(f.Instructions) == 0 {
		return environment.Definition{}, fmt.Errorf("%s: %w: INSTRUCTIONS is empty", path, pattern.ErrEmptyPattern)
	}

	def := environment.Definition{
		Vocabulary: parser.Vocabulary{
			EventTypes:      f.EventTypes.Normal,
			NoiseTypes:      f.EventTypes.Noise,
			EventAttributes: f.EventAttributes.Normal,
			NoiseAttributes: f.EventAttributes.Noise,
		},
		TimeoutThreshold: f.TimeoutThreshold,
	}
	dir := filepath.Dir(path)
	for _, name := range f.Instructions {
		p := name
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		instr, err := LoadPattern(p)
		if err != nil {
			return environment.Definition{}, err
		}
		def.Instructions = append(def.Instructions, instr)
	}
	return def, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
