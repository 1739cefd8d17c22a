// Package environment runs the open-the-chests game: a set of boxes whose
// patterns play out on one merged event timeline, and a player who tries to
// open each box while it is ready.
package environment

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/boristopalov/openthechests/pkg/box"
	"github.com/boristopalov/openthechests/pkg/core"
	"github.com/boristopalov/openthechests/pkg/event"
	"github.com/boristopalov/openthechests/pkg/generator"
	"github.com/boristopalov/openthechests/pkg/parser"
	"github.com/boristopalov/openthechests/pkg/pattern"
	"github.com/boristopalov/openthechests/pkg/sampling"
)

// DefaultTimeoutThreshold is the number of box timeouts, summed over all
// boxes, that ends an episode.
const DefaultTimeoutThreshold = 30

var (
	ErrEpisodeDone = errors.New("environment: episode is done, call Reset")
	ErrNotReset    = errors.New("environment: Reset has not been called")
)

// Definition is everything needed to build an environment: the symbol
// vocabulary and one instruction list per box.
type Definition struct {
	Vocabulary       parser.Vocabulary
	Instructions     [][]pattern.Instruction
	TimeoutThreshold int
}

// Space describes the shape of observations and actions. Actions is the
// number of discrete actions when Discrete is set, else the press vector
// length.
type Space struct {
	Boxes      int
	Types      int
	Attributes map[string]int
	Discrete   bool
	Actions    int
}

type options struct {
	timeoutThreshold int
	rng              *sampling.Rng
	logger           *log.Logger
	discrete         bool
	completionReward bool
}

type Option func(*options)

// WithTimeoutThreshold overrides the definition's threshold.
func WithTimeoutThreshold(n int) Option {
	return func(o *options) {
		o.timeoutThreshold = n
	}
}

func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.rng = sampling.New(seed)
	}
}

func WithRng(rng *sampling.Rng) Option {
	return func(o *options) {
		o.rng = rng
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDiscreteActions reports the action space as one integer in
// [0, 2^boxes) instead of a press vector. StepDiscrete works either way.
func WithDiscreteActions() Option {
	return func(o *options) {
		o.discrete = true
	}
}

// WithCompletionReward pays 1 on the step that opens the last box and 0
// otherwise, instead of the per-box shaped reward.
func WithCompletionReward() Option {
	return func(o *options) {
		o.completionReward = true
	}
}

// Environment is not goroutine-safe. Independent environments share no state.
type Environment struct {
	parser    *parser.Parser
	patterns  []*pattern.Pattern
	boxes     []*box.Box
	generator *generator.Generator
	logger    *log.Logger

	timeoutThreshold int
	discrete         bool
	completionReward bool

	started    bool
	done       bool
	steps      int
	time       float64
	context    event.Event
	lastAction core.Action
	lastReward int
}

// New builds the environment. Box i is driven by def.Instructions[i].
func New(def Definition, opts ...Option) (*Environment, error) {
	o := &options{
		timeoutThreshold: def.TimeoutThreshold,
		logger:           log.New(io.Discard, "", 0),
	}
	if o.timeoutThreshold <= 0 {
		o.timeoutThreshold = DefaultTimeoutThreshold
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = sampling.New(0)
	}
	if len(def.Instructions) == 0 {
		return nil, fmt.Errorf("%w: no boxes", pattern.ErrEmptyPattern)
	}

	p, err := parser.New(def.Vocabulary, o.rng)
	if err != nil {
		return nil, err
	}

	e := &Environment{
		parser:           p,
		logger:           o.logger,
		timeoutThreshold: o.timeoutThreshold,
		discrete:         o.discrete,
		completionReward: o.completionReward,
		context:          event.Empty(),
	}
	for id, instr := range def.Instructions {
		pat, err := pattern.New(id, instr)
		if err != nil {
			return nil, err
		}
		e.patterns = append(e.patterns, pat)
		e.boxes = append(e.boxes, box.New(id, box.WithLogger(o.logger)))
	}
	e.generator, err = generator.New(p, e.patterns, o.rng, generator.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	o.logger.Printf("event types: %v, noise types: %v", def.Vocabulary.EventTypes, def.Vocabulary.NoiseTypes)
	o.logger.Printf("initialising %d boxes with patterns", len(e.boxes))
	return e, nil
}

// Reset starts a new episode: time goes back to zero, every pattern gets a
// fresh timeline, every box is closed and activated, and one internal step
// seeds the context.
func (e *Environment) Reset() (core.Observation, error) {
	e.logger.Printf("starting reset")
	e.time, e.steps, e.lastReward = 0, 0, 0
	e.done = false
	e.lastAction = nil
	e.context = event.Empty()

	if err := e.generator.Reset(); err != nil {
		return core.Observation{}, err
	}
	for _, b := range e.boxes {
		b.Reset()
		b.Activate()
	}
	if err := e.internalStep(); err != nil {
		return core.Observation{}, err
	}
	e.started = true
	return e.Observation()
}

// Step applies action, advances the timeline by one event and returns the
// observation, the reward and whether the episode is over.
func (e *Environment) Step(action core.Action) (core.Observation, int, bool, error) {
	return e.step(action)
}

// StepDiscrete decodes n into a press vector and steps with it.
func (e *Environment) StepDiscrete(n int) (core.Observation, int, bool, error) {
	action, err := core.DecodeAction(n, len(e.boxes))
	if err != nil {
		return core.Observation{}, 0, false, err
	}
	return e.step(action)
}

func (e *Environment) step(action core.Action) (core.Observation, int, bool, error) {
	if !e.started {
		return core.Observation{}, 0, false, ErrNotReset
	}
	if e.done {
		return core.Observation{}, 0, true, ErrEpisodeDone
	}

	reward, err := e.ApplyAction(action)
	if err != nil {
		return core.Observation{}, 0, false, err
	}
	if err := e.internalStep(); err != nil {
		return core.Observation{}, 0, false, err
	}
	obs, err := e.Observation()
	if err != nil {
		return core.Observation{}, 0, false, err
	}
	e.done = e.CheckEnd()
	e.steps++

	if e.completionReward {
		reward = 0
		if e.done && e.allOpen() {
			reward = 1
		}
	}
	e.lastReward = reward
	return obs, reward, e.done, nil
}

// ApplyAction presses the selected buttons. An opened box earns +1 and its
// timeline is disabled; a press that fails or a ready box left alone costs
// -1. The sum over boxes is returned.
func (e *Environment) ApplyAction(action core.Action) (int, error) {
	if len(action) != len(e.boxes) {
		return 0, fmt.Errorf("%w: got %d entries for %d boxes", core.ErrInvalidAction, len(action), len(e.boxes))
	}
	e.lastAction = append(core.Action(nil), action...)
	e.logger.Printf("applying action %s", action)

	reward := 0
	for i, pressed := range action {
		b := e.boxes[i]
		switch {
		case pressed && b.PressButton():
			e.generator.DisableTimeline(i)
			reward++
		case pressed:
			reward--
		case b.IsReady():
			reward--
		}
	}
	return reward, nil
}

// internalStep pulls the next event from the timeline and updates every
// box with the signals raised for its pattern.
func (e *Environment) internalStep() error {
	next, signals, err := e.generator.NextEvent()
	if err != nil {
		return err
	}
	if !next.IsEmpty() {
		e.context = next
		e.time = next.End
	}
	e.logger.Printf("advancing time to %.3f, context %s", e.time, e.context)
	if e.logger.Writer() != io.Discard {
		e.logger.Printf("active timeline: %v", e.generator.Timeline())
	}

	for i, b := range e.boxes {
		b.Update(signals.Has(i, generator.SignalActive), signals.Has(i, generator.SignalSatisfied))
	}
	return nil
}

// CheckEnd reports whether every box is open or the boxes have timed out
// timeoutThreshold times between them.
func (e *Environment) CheckEnd() bool {
	deactivations := 0
	for _, b := range e.boxes {
		deactivations += b.Deactivations()
	}
	return e.allOpen() || deactivations >= e.timeoutThreshold
}

func (e *Environment) allOpen() bool {
	for _, b := range e.boxes {
		if !b.IsOpen() {
			return false
		}
	}
	return true
}

// Observation returns the box flags and the labelled context. Every
// attribute of the vocabulary is present in the context; values the event
// does not carry, and the type before the first event, are event.NoLabel.
func (e *Environment) Observation() (core.Observation, error) {
	obs := core.Observation{
		Active: make([]bool, len(e.boxes)),
		Open:   make([]bool, len(e.boxes)),
	}
	for i, b := range e.boxes {
		obs.Active[i] = b.IsActive()
		obs.Open[i] = b.IsOpen()
	}
	obs.Context = event.Labelled{Type: event.NoLabel, Attributes: map[string]int{}}
	if !e.context.IsEmpty() {
		ctx, err := e.parser.Label(e.context)
		if err != nil {
			return core.Observation{}, fmt.Errorf("label context: %w", err)
		}
		obs.Context = ctx
		obs.HasContext = true
	}
	for name := range e.parser.Attributes() {
		if _, ok := obs.Context.Attributes[name]; !ok {
			obs.Context.Attributes[name] = event.NoLabel
		}
	}
	return obs, nil
}

// Snapshot copies the state a renderer needs.
func (e *Environment) Snapshot() core.Snapshot {
	s := core.Snapshot{
		Step:       e.steps,
		Time:       e.time,
		Context:    e.context,
		LastAction: append(core.Action(nil), e.lastAction...),
		Reward:     e.lastReward,
		Done:       e.done,
		Boxes:      make([]core.BoxState, len(e.boxes)),
		History:    make([][]event.Event, len(e.patterns)),
	}
	for i, b := range e.boxes {
		s.Boxes[i] = core.BoxState{
			ID:            b.ID(),
			Phase:         b.State().String(),
			Open:          b.IsOpen(),
			Ready:         b.IsReady(),
			Active:        b.IsActive(),
			Deactivations: b.Deactivations(),
		}
	}
	for i, pat := range e.patterns {
		s.History[i] = pat.FullPattern()
	}
	return s
}

// Space describes observation and action shapes.
func (e *Environment) Space() Space {
	attrs := map[string]int{}
	for k, v := range e.parser.Attributes() {
		attrs[k] = len(v)
	}
	sp := Space{
		Boxes:      len(e.boxes),
		Types:      len(e.parser.Types()),
		Attributes: attrs,
		Discrete:   e.discrete,
		Actions:    len(e.boxes),
	}
	if e.discrete {
		sp.Actions = 1 << len(e.boxes)
	}
	return sp
}

func (s Space) String() string {
	names := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	attrs := make([]string, len(names))
	for i, k := range names {
		attrs[i] = fmt.Sprintf("%s:%d", k, s.Attributes[k])
	}
	kind := "press vectors"
	if s.Discrete {
		kind = "discrete actions"
	}
	return fmt.Sprintf("%d boxes, %d types, attributes {%s}, %d %s",
		s.Boxes, s.Types, strings.Join(attrs, " "), s.Actions, kind)
}

func (e *Environment) NumBoxes() int { return len(e.boxes) }

// Time is the end of the last observed event.
func (e *Environment) Time() float64 { return e.time }

// Context is the last observed event.
func (e *Environment) Context() event.Event { return e.context }

// Box exposes box i for inspection.
func (e *Environment) Box(i int) *box.Box { return e.boxes[i] }

// Generator exposes the merge engine, mainly for diagnostics.
func (e *Environment) Generator() *generator.Generator { return e.generator }

func (e *Environment) Done() bool { return e.done }
