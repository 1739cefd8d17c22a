package experiment

import (
	"fmt"
	"math"
)

type Summary struct {
	Episodes       int
	MeanReward     float64
	StdReward      float64
	MeanSteps      float64
	CompletionRate float64
	BestEpisode    int
	BestReward     int
}

// Summarize computes reward statistics; StdReward is the population
// standard deviation.
func Summarize(results []EpisodeResult) Summary {
	s := Summary{Episodes: len(results), BestEpisode: -1}
	if len(results) == 0 {
		return s
	}
	var steps, completed float64
	for _, r := range results {
		s.MeanReward += float64(r.Reward)
		steps += float64(r.Steps)
		if r.Completed {
			completed++
		}
		if s.BestEpisode < 0 || r.Reward > s.BestReward {
			s.BestEpisode, s.BestReward = r.Episode, r.Reward
		}
	}
	n := float64(len(results))
	s.MeanReward /= n
	s.MeanSteps = steps / n
	s.CompletionRate = completed / n

	var ss float64
	for _, r := range results {
		d := float64(r.Reward) - s.MeanReward
		ss += d * d
	}
	s.StdReward = math.Sqrt(ss / n)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d episodes: reward %.2f ± %.2f, %.1f steps, %.0f%% completed, best episode %d (%d)",
		s.Episodes, s.MeanReward, s.StdReward, s.MeanSteps, 100*s.CompletionRate, s.BestEpisode, s.BestReward)
}
