// Package experiment plays agents against fresh environments and collects
// per-episode results.
package experiment

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/boristopalov/openthechests/pkg/agent"
	"github.com/boristopalov/openthechests/pkg/config"
	"github.com/boristopalov/openthechests/pkg/core"
	"github.com/boristopalov/openthechests/pkg/messaging"
)

// EnvFactory builds the environment of one episode.
type EnvFactory func(seed uint64) (core.Environment, error)

// AgentFactory builds the agent of one episode.
type AgentFactory func(episode int, seed uint64) (core.Agent, error)

type EpisodeResult struct {
	Episode   int
	Seed      uint64
	Reward    int
	Steps     int
	Done      bool
	Completed bool // every box opened
	Duration  time.Duration
}

// Runner runs cfg.Episodes independent episodes, cfg.Parallel at a time.
// Episode i is seeded with cfg.Seed+i, so results do not depend on
// scheduling.
type Runner struct {
	cfg      config.ExperimentConfig
	runID    string
	newEnv   EnvFactory
	newAgent AgentFactory
	broker   messaging.Broker
	progress io.Writer
	logger   *log.Logger

	mu      sync.RWMutex
	status  core.ExperimentStatus
	results []EpisodeResult
}

var _ core.Experiment = (*Runner)(nil)

// discreteStepper is an environment that also takes actions as integers.
type discreteStepper interface {
	StepDiscrete(n int) (core.Observation, int, bool, error)
}

type Option func(*Runner)

// WithBroker publishes a snapshot after every step.
func WithBroker(b messaging.Broker) Option {
	return func(r *Runner) {
		r.broker = b
	}
}

// WithProgress draws a progress bar on w.
func WithProgress(w io.Writer) Option {
	return func(r *Runner) {
		r.progress = w
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

func NewRunner(cfg config.ExperimentConfig, envs EnvFactory, agents AgentFactory, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		runID:    uuid.New().String(),
		newEnv:   envs,
		newAgent: agents,
		logger:   log.New(io.Discard, "", 0),
	}
	if r.cfg.Parallel < 1 {
		r.cfg.Parallel = 1
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) RunID() string { return r.runID }

func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	r.mu.Lock()
	r.status = core.ExperimentStatus{Running: true, StartTime: time.Now(), Episodes: r.cfg.Episodes}
	r.results = make([]EpisodeResult, r.cfg.Episodes)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.status.Running = false
		r.status.EndTime = time.Now()
		r.mu.Unlock()
	}()

	var bar *progressbar.ProgressBar
	if r.progress != nil {
		bar = progressbar.NewOptions(r.cfg.Episodes,
			progressbar.OptionSetWriter(r.progress),
			progressbar.OptionSetDescription(r.cfg.Name),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "",
				BarEnd:        "",
			}),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallel)
	for i := 0; i < r.cfg.Episodes; i++ {
		g.Go(func() error {
			res, err := r.RunEpisode(ctx, i)
			r.mu.Lock()
			if err != nil {
				r.status.Errors = append(r.status.Errors, err)
			} else {
				r.results[i] = res
				r.status.Completed++
			}
			r.mu.Unlock()
			if bar != nil {
				_ = bar.Add(1)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("run %s: %w", r.runID, err)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return nil
}

// RunEpisode plays one episode to the end or to cfg.MaxSteps. With discrete
// actions configured, each press vector is sent as its integer encoding.
func (r *Runner) RunEpisode(ctx context.Context, episode int) (EpisodeResult, error) {
	seed := r.cfg.Seed + uint64(episode)
	res := EpisodeResult{Episode: episode, Seed: seed}
	start := time.Now()

	env, err := r.newEnv(seed)
	if err != nil {
		return res, fmt.Errorf("episode %d: environment: %w", episode, err)
	}
	player, err := r.newAgent(episode, seed)
	if err != nil {
		return res, fmt.Errorf("episode %d: agent: %w", episode, err)
	}
	if rs, ok := player.(agent.Resetter); ok {
		rs.Reset()
	}
	step := env.Step
	if r.cfg.Environment.DiscreteActions {
		ds, ok := env.(discreteStepper)
		if !ok {
			return res, fmt.Errorf("episode %d: %T takes no discrete actions", episode, env)
		}
		step = func(a core.Action) (core.Observation, int, bool, error) {
			return ds.StepDiscrete(a.Int())
		}
	}
	obs, err := env.Reset()
	if err != nil {
		return res, fmt.Errorf("episode %d: reset: %w", episode, err)
	}
	r.publish(episode, env)

	for res.Steps < r.cfg.MaxSteps && !res.Done {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		action, err := player.Act(ctx, obs)
		if err != nil {
			return res, fmt.Errorf("episode %d step %d: %w", episode, res.Steps, err)
		}
		var reward int
		obs, reward, res.Done, err = step(action)
		if err != nil {
			return res, fmt.Errorf("episode %d step %d: %w", episode, res.Steps, err)
		}
		if o, ok := player.(agent.Observer); ok {
			o.Observe(reward, res.Done)
		}
		res.Reward += reward
		res.Steps++
		r.publish(episode, env)
	}

	res.Completed = allOpen(env.Snapshot())
	res.Duration = time.Since(start)
	r.logger.Printf("episode %d (seed %d): reward %d in %d steps, completed=%v",
		episode, seed, res.Reward, res.Steps, res.Completed)
	return res, nil
}

func (r *Runner) publish(episode int, env core.Environment) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(messaging.Update{
		RunID:     r.runID,
		Episode:   episode,
		Snapshot:  env.Snapshot(),
		Timestamp: time.Now(),
	})
}

func allOpen(s core.Snapshot) bool {
	for _, b := range s.Boxes {
		if !b.Open {
			return false
		}
	}
	return len(s.Boxes) > 0
}

func (r *Runner) GetStatus() core.ExperimentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.status
	s.Errors = append([]error(nil), r.status.Errors...)
	return s
}

// Results returns the results in episode order. Episodes that failed or did
// not run are left zero.
func (r *Runner) Results() []EpisodeResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EpisodeResult(nil), r.results...)
}
