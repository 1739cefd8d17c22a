package experiment

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/boristopalov/openthechests/pkg/agent"
	"github.com/boristopalov/openthechests/pkg/config"
	"github.com/boristopalov/openthechests/pkg/core"
	"github.com/boristopalov/openthechests/pkg/environment"
	"github.com/boristopalov/openthechests/pkg/messaging"
	"github.com/boristopalov/openthechests/pkg/parser"
	"github.com/boristopalov/openthechests/pkg/pattern"
	"github.com/boristopalov/openthechests/pkg/sampling"
)

func definition() environment.Definition {
	return environment.Definition{
		Vocabulary: parser.Vocabulary{EventTypes: []string{"A", "B"}},
		Instructions: [][]pattern.Instruction{
			{
				pattern.Delay{Timeout: 10},
				pattern.Noise{Ratio: 0},
				pattern.Instantiate{Variable: "a", Type: "A", Duration: &sampling.Dist{Mu: 5, Sigma: 2}},
			},
			{
				pattern.Delay{Timeout: 4},
				pattern.Noise{Ratio: 0},
				pattern.Instantiate{Variable: "b", Type: "B", Duration: &sampling.Dist{Mu: 3, Sigma: 1}},
			},
		},
	}
}

func envFactory(seed uint64) (core.Environment, error) {
	return environment.New(definition(), environment.WithSeed(seed))
}

func testConfig() config.ExperimentConfig {
	cfg := config.Default()
	cfg.Name = "test"
	cfg.Episodes = 6
	cfg.MaxSteps = 50
	cfg.Parallel = 3
	cfg.Seed = 11
	return cfg
}

func TestEagerAgentOpensEverything(t *testing.T) {
	var bar bytes.Buffer
	r := NewRunner(testConfig(), envFactory,
		func(int, uint64) (core.Agent, error) { return agent.NewEagerAgent(), nil },
		WithProgress(&bar),
	)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status := r.GetStatus()
	if status.Running || status.Completed != 6 || len(status.Errors) != 0 {
		t.Fatalf("status: %+v", status)
	}
	for _, res := range r.Results() {
		// Opening both boxes earns 2; presses on boxes that are not ready yet
		// only subtract.
		if !res.Done || !res.Completed || res.Reward > 2 {
			t.Errorf("episode %d: %+v", res.Episode, res)
		}
	}
	if s := Summarize(r.Results()); s.CompletionRate != 1 || s.Episodes != 6 {
		t.Fatalf("summary: %s", s)
	}
	if bar.Len() == 0 {
		t.Fatal("no progress output")
	}
}

func TestResultsDoNotDependOnParallelism(t *testing.T) {
	random := func(_ int, seed uint64) (core.Agent, error) {
		return agent.NewRandomAgent(sampling.New(seed), 0.3), nil
	}
	run := func(parallel int) []EpisodeResult {
		cfg := testConfig()
		cfg.Parallel = parallel
		r := NewRunner(cfg, envFactory, random)
		if err := r.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return r.Results()
	}
	ignore := cmpopts.IgnoreFields(EpisodeResult{}, "Duration")
	if diff := cmp.Diff(run(1), run(4), ignore); diff != "" {
		t.Fatalf("results (-serial +parallel):\n%s", diff)
	}
}

func TestRunPublishesEverySnapshot(t *testing.T) {
	broker := messaging.NewBroker()
	updates := make(chan messaging.Update, 1024)
	if err := broker.Subscribe("test", updates); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Episodes = 1
	r := NewRunner(cfg, envFactory,
		func(int, uint64) (core.Agent, error) { return agent.NewEagerAgent(), nil },
		WithBroker(broker),
	)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(updates)

	res := r.Results()[0]
	n := 0
	for u := range updates {
		if u.RunID != r.RunID() || u.Snapshot.Step != n {
			t.Fatalf("update %d: run %s step %d", n, u.RunID, u.Snapshot.Step)
		}
		n++
	}
	// One snapshot after Reset and one per step.
	if n != res.Steps+1 {
		t.Fatalf("got %d updates for %d steps", n, res.Steps)
	}
}

type failingAgent struct{}

func (failingAgent) ID() string { return "failing" }

func (failingAgent) Act(context.Context, core.Observation) (core.Action, error) {
	return nil, errors.New("no idea")
}

func TestRunReportsAgentErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Parallel = 1
	r := NewRunner(cfg, envFactory, func(int, uint64) (core.Agent, error) { return failingAgent{}, nil })
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded with a failing agent")
	}
	if status := r.GetStatus(); len(status.Errors) == 0 || status.Running {
		t.Fatalf("status: %+v", status)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(testConfig(), envFactory,
		func(int, uint64) (core.Agent, error) { return agent.NewEagerAgent(), nil })
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]EpisodeResult{
		{Episode: 0, Reward: 1, Steps: 10, Completed: true},
		{Episode: 1, Reward: 3, Steps: 20},
	})
	want := Summary{Episodes: 2, MeanReward: 2, StdReward: 1, MeanSteps: 15, CompletionRate: 0.5, BestEpisode: 1, BestReward: 3}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("summary (-want +got):\n%s", diff)
	}
	if empty := Summarize(nil); empty.Episodes != 0 || empty.BestEpisode != -1 {
		t.Fatalf("empty summary: %+v", empty)
	}
}

type countingEnv struct {
	*environment.Environment
	discrete int
}

func (c *countingEnv) StepDiscrete(n int) (core.Observation, int, bool, error) {
	c.discrete++
	return c.Environment.StepDiscrete(n)
}

func TestDiscreteActionsGoThroughStepDiscrete(t *testing.T) {
	cfg := testConfig()
	cfg.Episodes = 1
	cfg.Environment.DiscreteActions = true
	var env *countingEnv
	r := NewRunner(cfg,
		func(seed uint64) (core.Environment, error) {
			e, err := environment.New(definition(), environment.WithSeed(seed), environment.WithDiscreteActions())
			if err != nil {
				return nil, err
			}
			env = &countingEnv{Environment: e}
			return env, nil
		},
		func(int, uint64) (core.Agent, error) { return agent.NewEagerAgent(), nil },
	)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := r.Results()[0]
	if !res.Completed || env.discrete != res.Steps {
		t.Fatalf("got %d discrete steps for %+v", env.discrete, res)
	}
}

type vectorOnlyEnv struct{ core.Environment }

func TestDiscreteActionsNeedADiscreteEnvironment(t *testing.T) {
	cfg := testConfig()
	cfg.Environment.DiscreteActions = true
	r := NewRunner(cfg,
		func(seed uint64) (core.Environment, error) {
			e, err := envFactory(seed)
			return vectorOnlyEnv{e}, err
		},
		func(int, uint64) (core.Agent, error) { return agent.NewEagerAgent(), nil },
	)
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run accepted an environment without discrete actions")
	}
}
