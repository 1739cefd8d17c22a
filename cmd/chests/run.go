package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/boristopalov/openthechests/pkg/agent"
	"github.com/boristopalov/openthechests/pkg/config"
	"github.com/boristopalov/openthechests/pkg/core"
	"github.com/boristopalov/openthechests/pkg/environment"
	"github.com/boristopalov/openthechests/pkg/experiment"
	"github.com/boristopalov/openthechests/pkg/messaging"
	"github.com/boristopalov/openthechests/pkg/providers"
	"github.com/boristopalov/openthechests/pkg/render"
	"github.com/boristopalov/openthechests/pkg/sampling"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <experiment.yaml>",
		Short: "Run an experiment and print reward statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  runExperiment,
	}
	cmd.Flags().Int("episodes", 0, "override the number of episodes")
	cmd.Flags().Int("parallel", 0, "override how many episodes run at once")
	cmd.Flags().Uint64("seed", 0, "override the base seed (default $CHESTS_SEED or the file's seed)")
	cmd.Flags().String("agent", "", "override the agent kind: random, eager or llm")
	cmd.Flags().Bool("progress", true, "draw a progress bar")
	cmd.Flags().Bool("watch", false, "print every step of every episode (turns off the progress bar)")
	return cmd
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(args[0])
	if err != nil {
		return err
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		return err
	}

	logger := newLogger(cmd, cfg.Logging.Verbose)
	if cfg.Logging.Path != "" {
		f, err := os.OpenFile(cfg.Logging.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logger = log.New(f, "", log.LstdFlags)
	}

	def, err := config.LoadEnvironment(cfg.Environment.Path)
	if err != nil {
		return err
	}
	envOpts := []environment.Option{environment.WithLogger(logger)}
	if cfg.Environment.TimeoutThreshold > 0 {
		envOpts = append(envOpts, environment.WithTimeoutThreshold(cfg.Environment.TimeoutThreshold))
	}
	if cfg.Environment.DiscreteActions {
		envOpts = append(envOpts, environment.WithDiscreteActions())
	}
	if cfg.Environment.CompletionReward {
		envOpts = append(envOpts, environment.WithCompletionReward())
	}
	envs := func(seed uint64) (core.Environment, error) {
		return environment.New(def, append([]environment.Option{environment.WithSeed(seed)}, envOpts...)...)
	}

	ctx, cancel := signalContext()
	defer cancel()

	agents, err := agentFactory(ctx, cfg.Agent, logger)
	if err != nil {
		return err
	}

	sample, err := environment.New(def, envOpts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", cfg.Environment.Path, sample.Space())

	opts := []experiment.Option{experiment.WithLogger(logger)}
	watch, _ := cmd.Flags().GetBool("watch")
	if p, _ := cmd.Flags().GetBool("progress"); p && !watch {
		opts = append(opts, experiment.WithProgress(os.Stderr))
	}
	stopWatch := func() {}
	if watch {
		broker := messaging.NewBroker()
		defer broker.Reset()
		out := cmd.OutOrStdout()
		stop, err := messaging.Watch(ctx, broker, "console", 256, func(u messaging.Update) {
			fmt.Fprintf(out, "episode %d\n%s\n", u.Episode, render.Snapshot(u.Snapshot, false))
		})
		if err != nil {
			return err
		}
		stopWatch = stop
		opts = append(opts, experiment.WithBroker(broker))
	}
	runner := experiment.NewRunner(*cfg, envs, agents, opts...)
	logger.Printf("run %s: %d episodes of %s, %d at a time", runner.RunID(), cfg.Episodes, cfg.Name, cfg.Parallel)

	runErr := runner.Run(ctx)
	stopWatch()
	status := runner.GetStatus()
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n", cfg.Name, runner.RunID(), status.EndTime.Sub(status.StartTime).Round(time.Millisecond))

	var finished []experiment.EpisodeResult
	for _, res := range runner.Results() {
		if res.Steps > 0 {
			finished = append(finished, res)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), experiment.Summarize(finished))
	return runErr
}

func applyOverrides(cmd *cobra.Command, cfg *config.ExperimentConfig) error {
	if n, _ := cmd.Flags().GetInt("episodes"); n > 0 {
		cfg.Episodes = n
	}
	if n, _ := cmd.Flags().GetInt("parallel"); n > 0 {
		cfg.Parallel = n
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed, _ = cmd.Flags().GetUint64("seed")
	} else if os.Getenv("CHESTS_SEED") != "" {
		cfg.Seed = defaultSeed()
	}
	if kind, _ := cmd.Flags().GetString("agent"); kind != "" {
		cfg.Agent.Kind = kind
	}
	return cfg.Validate()
}

func agentFactory(ctx context.Context, cfg config.AgentConfig, logger *log.Logger) (experiment.AgentFactory, error) {
	switch cfg.Kind {
	case "eager":
		return func(int, uint64) (core.Agent, error) {
			return agent.NewEagerAgent(), nil
		}, nil
	case "llm":
		client, err := providers.New(ctx, cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider: %w", err)
		}
		return func(episode int, _ uint64) (core.Agent, error) {
			opts := []agent.AgentOption{
				agent.WithProvider(client),
				agent.WithAgentId(fmt.Sprintf("%s-%d", cfg.Provider, episode)),
				agent.WithMemory(cfg.Memory),
				agent.WithLogger(logger),
			}
			if cfg.Model != "" {
				opts = append(opts, agent.WithModel(agent.ModelInfo{Id: cfg.Model, Config: map[string]any{}}))
			}
			return agent.NewLLMAgent(opts...)
		}, nil
	default:
		return func(_ int, seed uint64) (core.Agent, error) {
			// Offset so the agent's draws differ from the environment's.
			return agent.NewRandomAgent(sampling.New(seed^0x9e3779b97f4a7c15), 0.5), nil
		}, nil
	}
}
