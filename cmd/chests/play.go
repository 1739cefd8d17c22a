package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boristopalov/openthechests/pkg/config"
	"github.com/boristopalov/openthechests/pkg/core"
	"github.com/boristopalov/openthechests/pkg/environment"
	"github.com/boristopalov/openthechests/pkg/render"
)

func playCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <environment.yaml>",
		Short: "Play an episode by hand, one press vector per line (e.g. 010)",
		Args:  cobra.ExactArgs(1),
		RunE:  play,
	}
	cmd.Flags().Uint64("seed", 0, "random seed (default $CHESTS_SEED)")
	cmd.Flags().Bool("history", false, "show each box's last pattern instance")
	return cmd
}

func play(cmd *cobra.Command, args []string) error {
	def, err := config.LoadEnvironment(args[0])
	if err != nil {
		return err
	}
	seed := defaultSeed()
	if cmd.Flags().Changed("seed") {
		seed, _ = cmd.Flags().GetUint64("seed")
	}
	history, _ := cmd.Flags().GetBool("history")

	env, err := environment.New(def, environment.WithSeed(seed), environment.WithLogger(newLogger(cmd, false)))
	if err != nil {
		return err
	}
	if _, err := env.Reset(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, render.Snapshot(env.Snapshot(), history))

	total := 0
	in := bufio.NewScanner(cmd.InOrStdin())
	for fmt.Fprint(out, "> "); in.Scan(); fmt.Fprint(out, "> ") {
		line := strings.TrimSpace(in.Text())
		if line == "q" || line == "quit" {
			break
		}
		if line == "" {
			line = strings.Repeat("0", env.NumBoxes())
		}
		action, err := core.ParseAction(line, env.NumBoxes())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		_, reward, done, err := env.Step(action)
		if err != nil {
			return err
		}
		total += reward
		fmt.Fprintln(out, render.Snapshot(env.Snapshot(), history))
		if done {
			fmt.Fprintf(out, "episode over after %d steps, total reward %d\n", env.Snapshot().Step, total)
			return nil
		}
	}
	if err := in.Err(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nstopped, total reward %d\n", total)
	return nil
}
