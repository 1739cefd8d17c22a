package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boristopalov/openthechests/pkg/config"
	"github.com/boristopalov/openthechests/pkg/environment"
	"github.com/boristopalov/openthechests/pkg/render"
)

func timelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline <environment.yaml>",
		Short: "Print the first events of the merged timeline with their signals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := config.LoadEnvironment(args[0])
			if err != nil {
				return err
			}
			seed := defaultSeed()
			if cmd.Flags().Changed("seed") {
				seed, _ = cmd.Flags().GetUint64("seed")
			}
			n, _ := cmd.Flags().GetInt("events")

			env, err := environment.New(def, environment.WithSeed(seed), environment.WithLogger(newLogger(cmd, false)))
			if err != nil {
				return err
			}
			gen := env.Generator()
			if err := gen.Reset(); err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				ev, signals, err := gen.NextEvent()
				if err != nil {
					return err
				}
				if ev.IsEmpty() {
					break
				}
				fmt.Fprintln(cmd.OutOrStdout(), render.TimelineLine(i, ev, signals))
			}
			for id := 0; id < env.NumBoxes(); id++ {
				if gen.Live(id) {
					fmt.Fprintf(cmd.OutOrStdout(), "pattern %d: %d events pending\n", id, len(gen.Pending(id)))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntP("events", "n", 40, "number of events to print")
	cmd.Flags().Uint64("seed", 0, "random seed (default $CHESTS_SEED)")
	return cmd
}
