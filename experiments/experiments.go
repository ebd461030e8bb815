package experiments

import (
	"context"
	"fmt"
	"time"

	"ginrummy/agent"
	"ginrummy/engine"
	"ginrummy/experiments/metrics"
	"ginrummy/policy"

	"github.com/rs/zerolog/log"
)

// Result summarizes the games of one match-up.
type Result struct {
	Configs   [2]metrics.AgentConfig
	Games     int
	Wins      [2]int // per config, not per seat
	Forfeits  int
	Hands     int
	Decisions [2]metrics.DecisionMetric
	Records   []metrics.GameRecord
	Duration  time.Duration
}

// WinRate is the share of games won by config i.
func (r Result) WinRate(i int) float64 {
	if r.Games == 0 {
		return 0
	}
	return float64(r.Wins[i]) / float64(r.Games)
}

// RunPolicyAgainstRules pits the model at modelPath against the rules-only
// agent.
func RunPolicyAgainstRules(ctx context.Context, modelPath string, games int, seed uint64) (Result, error) {
	configs := [2]metrics.AgentConfig{
		{ID: 1, Name: "nfsp", ModelPath: modelPath, RequireModel: true, Seed: seed},
		{ID: 2, Name: "rules", Seed: seed + 1},
	}
	return RunMatchUp(ctx, "policy_against_rules", configs, games, seed)
}

// RunMatchUp plays games between the two configurations, swapping seats every
// game so that both start equally often.
func RunMatchUp(ctx context.Context, name string, configs [2]metrics.AgentConfig, games int, seed uint64) (Result, error) {
	result := Result{Configs: configs}
	start := time.Now()

	var agents [2]*agent.Agent
	var collectors [2]metrics.Collector
	for i, config := range configs {
		collectors[i] = metrics.NewCollector()
		options := []agent.Option{
			agent.WithName(config.Name),
			agent.WithMetrics(collectors[i]),
			agent.WithRequireModel(config.RequireModel),
		}
		if config.Seed != 0 {
			options = append(options, agent.WithSeed(config.Seed))
		}
		if config.ModelPath != "" {
			policyOptions := []policy.Option{policy.WithLogits(!config.Probabilities)}
			if config.InputName != "" {
				policyOptions = append(policyOptions, policy.WithInputName(config.InputName))
			}
			if config.OutputName != "" {
				policyOptions = append(policyOptions, policy.WithOutputName(config.OutputName))
			}
			options = append(options, agent.WithPolicy(policy.Shared(config.ModelPath, policyOptions...)))
		}
		agents[i] = agent.New(options...)
	}

	log.Info().Msgf("starting %s experiment between agent1=%+v and agent2=%+v...", name, configs[0], configs[1])

	for g := 0; g < games; g++ {
		// Config first plays seat 0 in even games.
		first := g % 2
		players := [2]agent.Player{agents[first], agents[1-first]}

		var gameSeed uint64
		if seed != 0 {
			gameSeed = seed + uint64(g)
		}
		e := engine.NewLocalEngine(players, engine.WithSeed(gameSeed))
		winner, gameMetric, err := e.Run(ctx)
		if err != nil {
			return result, fmt.Errorf("game %d of %s: %w", g+1, name, err)
		}

		result.Games++
		result.Hands += gameMetric.Hands
		if gameMetric.Forfeit {
			result.Forfeits++
		}
		if winner >= 0 {
			// Seat 0 holds config first.
			if winner == 0 {
				result.Wins[first]++
			} else {
				result.Wins[1-first]++
			}
		}
		result.Records = append(result.Records, metrics.GameRecord{
			ID:         g + 1,
			Agent1:     configs[first].ID,
			Agent2:     configs[1-first].ID,
			GameMetric: gameMetric,
		})
		log.Debug().Msgf("completed game %d of %d with winner seat %d, scores %v", g+1, games, winner, gameMetric.Scores)
	}

	for i := range collectors {
		result.Decisions[i] = collectors[i].Complete()
	}
	result.Duration = time.Since(start)

	log.Info().Msgf("completed %s experiment: %s won %.2f, %s won %.2f over %d games (%d forfeits) in %s",
		name, configs[0].Name, result.WinRate(0), configs[1].Name, result.WinRate(1), result.Games, result.Forfeits, result.Duration)
	for i, d := range result.Decisions {
		log.Info().Msgf("%s decisions: policy=%d rules=%d fallbacks=%d inference_errors=%d violations=%d inference_time=%s",
			configs[i].Name, d.PolicyDecisions, d.RuleDecisions, d.Fallbacks, d.InferenceErrors, d.Violations, d.InferenceTime)
	}
	return result, nil
}
