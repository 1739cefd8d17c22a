package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/boristopalov/openthechests/pkg/core"
	"github.com/boristopalov/openthechests/pkg/memory"
	"github.com/boristopalov/openthechests/pkg/providers"
	"github.com/google/uuid"
)

const rules = `You are playing a game with %d closed chests. Every step you see one event
(a type, some attributes and a time interval, all given as integer labels) and
which chests are active or open. Each chest opens only right after its own
sequence of events has finished. Pressing a ready chest opens it (+1); pressing
any other chest costs -1, and so does ignoring a ready one.

Reply with one bit per chest, 1 to press and 0 to wait, on a final line like:
ANSWER: %s`

var answerRe = regexp.MustCompile(`(?i)ANSWER:\s*([01](?:[\s,]*[01])*)`)

var ErrNoProvider = errors.New("agent: no LLM provider")

type ModelInfo struct {
	Id     string         // e.g. "gpt-4o-mini"
	Config map[string]any // model-specific configuration
}

// LLMAgent asks a language model for every action. The prompt carries the
// rules, the newest steps from memory and the current observation.
type LLMAgent struct {
	id      string
	model   ModelInfo
	client  providers.Client
	memory  *memory.Memory
	history int
	step    int
	logger  *log.Logger
}

type AgentParams struct {
	Model    ModelInfo
	AgentID  string
	Provider providers.Client
	Memory   int
	Logger   *log.Logger
}

type AgentOption func(*AgentParams)

func WithModel(model ModelInfo) AgentOption {
	return func(p *AgentParams) {
		p.Model = model
	}
}

func WithAgentId(id string) AgentOption {
	return func(p *AgentParams) {
		p.AgentID = id
	}
}

func WithProvider(c providers.Client) AgentOption {
	return func(p *AgentParams) {
		p.Provider = c
	}
}

// WithMemory sets how many past steps are replayed in the prompt.
func WithMemory(steps int) AgentOption {
	return func(p *AgentParams) {
		p.Memory = steps
	}
}

func WithLogger(l *log.Logger) AgentOption {
	return func(p *AgentParams) {
		p.Logger = l
	}
}

func defaultAgentParams() *AgentParams {
	return &AgentParams{
		Model: ModelInfo{
			Id:     "gpt-4o-mini",
			Config: make(map[string]any),
		},
		AgentID: "agent-" + uuid.New().String(),
		Memory:  20,
		Logger:  log.New(io.Discard, "", 0),
	}
}

func NewLLMAgent(opts ...AgentOption) (*LLMAgent, error) {
	params := defaultAgentParams()
	for _, opt := range opts {
		opt(params)
	}
	if params.Provider == nil {
		return nil, ErrNoProvider
	}
	if params.Memory < 1 {
		params.Memory = 1
	}
	return &LLMAgent{
		id:      params.AgentID,
		model:   params.Model,
		client:  params.Provider,
		memory:  memory.NewMemory(params.Memory),
		history: params.Memory,
		logger:  params.Logger,
	}, nil
}

func (a *LLMAgent) ID() string { return a.id }

func (a *LLMAgent) GetModel() ModelInfo { return a.model }

// Act prompts the model. An answer that cannot be parsed falls back to
// pressing nothing.
func (a *LLMAgent) Act(ctx context.Context, obs core.Observation) (core.Action, error) {
	prompt := a.Prompt(obs)
	response, err := a.client.Complete(ctx, a.model.Id, prompt)
	if err != nil {
		return nil, fmt.Errorf("agent %s: completion: %w", a.id, err)
	}

	action, err := ParseAnswer(response, len(obs.Active))
	if err != nil {
		a.logger.Printf("agent %s: %v, pressing nothing", a.id, err)
		action = make(core.Action, len(obs.Active))
	}
	a.step++
	a.memory.Store(fmt.Sprintf("step %d: %s -> pressed %s", a.step, describe(obs), action))
	return action, nil
}

// Observe appends the reward of the last action to memory.
func (a *LLMAgent) Observe(reward int, done bool) {
	entry := fmt.Sprintf("reward %d", reward)
	if done {
		entry += ", game over"
	}
	a.memory.Store(entry)
}

// Reset forgets the previous episode.
func (a *LLMAgent) Reset() {
	a.memory.Reset()
	a.step = 0
}

// Prompt renders the text sent to the model for obs.
func (a *LLMAgent) Prompt(obs core.Observation) string {
	n := len(obs.Active)
	var b strings.Builder
	fmt.Fprintf(&b, rules, n, strings.Repeat("0 ", n-1)+"1")
	b.WriteString("\n\n")
	if past := a.memory.Recent(a.history); len(past) > 0 {
		b.WriteString("Previous steps:\n")
		for _, line := range past {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	b.WriteString("Now: ")
	b.WriteString(describe(obs))
	b.WriteByte('\n')
	return b.String()
}

func describe(obs core.Observation) string {
	if !obs.HasContext {
		return fmt.Sprintf("no event yet active=%s open=%s", core.Action(obs.Active), core.Action(obs.Open))
	}
	rec := obs.Context.Record()
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%.4g", k, rec[k]))
	}
	return fmt.Sprintf("event{%s} active=%s open=%s",
		strings.Join(fields, " "), core.Action(obs.Active), core.Action(obs.Open))
}

// ParseAnswer extracts the last "ANSWER:" line of a response.
func ParseAnswer(response string, boxes int) (core.Action, error) {
	matches := answerRe.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no ANSWER line", core.ErrInvalidAction)
	}
	bits := strings.NewReplacer(",", "", " ", "", "\t", "", "\n", "").Replace(matches[len(matches)-1][1])
	return core.ParseAction(bits, boxes)
}
