package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ginrummy/agent"
	"ginrummy/communication/client"
	"ginrummy/communication/server"
	"ginrummy/config"
	"ginrummy/engine"
	"ginrummy/experiments"
	"ginrummy/experiments/metrics"
	"ginrummy/policy"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: ginrummy <command> [flags]

commands:
  match   play games between the policy agent and the rules agent, or a remote player
  serve   serve the agent over the line protocol (TCP and websocket)
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "match":
		err = runMatch(ctx, os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msgf("%s failed", os.Args[1])
	}
}

// settings binds the flags shared by every command. Flags that are set
// override the configuration file and environment.
type settings struct {
	fs           *flag.FlagSet
	configPath   *string
	envPath      *string
	modelPath    *string
	seed         *uint64
	verbose      *bool
	requireModel *bool
}

func newSettings(name string) *settings {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &settings{
		fs:           fs,
		configPath:   fs.String("config", "", "YAML configuration file"),
		envPath:      fs.String("env", ".env", "optional .env file"),
		modelPath:    fs.String("model", "", "frozen policy graph"),
		seed:         fs.Uint64("seed", 0, "random seed, 0 seeds from the clock"),
		verbose:      fs.Bool("v", false, "debug logging"),
		requireModel: fs.Bool("require-model", false, "fail instead of playing by the rules when the model cannot be loaded"),
	}
}

func (s *settings) load(args []string) (config.Config, error) {
	if err := s.fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(*s.configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(*s.envPath); err != nil {
		return cfg, err
	}
	s.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.ModelPath = *s.modelPath
		case "seed":
			cfg.Seed = *s.seed
		case "v":
			cfg.Verbose = *s.verbose
		case "require-model":
			cfg.RequireModel = *s.requireModel
		}
	})
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	return cfg, nil
}

func sharedHandle(cfg config.Config) *policy.Handle {
	return policy.Shared(cfg.ModelPath,
		policy.WithInputName(cfg.InputName),
		policy.WithOutputName(cfg.OutputName),
		policy.WithLogits(cfg.OutputLogits))
}

func runMatch(ctx context.Context, args []string) error {
	s := newSettings("match")
	games := s.fs.Int("games", 0, "number of games")
	remote := s.fs.String("remote", "", "address of a remote player to play against")
	cfg, err := s.load(args)
	if err != nil {
		return err
	}
	if *games > 0 {
		cfg.Games = *games
	}

	if *remote != "" {
		opponent, err := client.Dial(ctx, *remote)
		if err != nil {
			return err
		}
		defer opponent.Close()
		local := agent.New(agent.WithPolicy(sharedHandle(cfg)), agent.WithSeed(cfg.Seed), agent.WithRequireModel(cfg.RequireModel))
		for g := 0; g < cfg.Games; g++ {
			var seed uint64
			if cfg.Seed != 0 {
				seed = cfg.Seed + uint64(g)
			}
			winner, gm, err := engine.NewLocalEngine([2]agent.Player{local, opponent}, engine.WithSeed(seed)).Run(ctx)
			if err != nil {
				return err
			}
			log.Info().Msgf("Game %d: seat %d won %d:%d in %d hands (forfeit %t)", g+1, winner, gm.Scores[0], gm.Scores[1], gm.Hands, gm.Forfeit)
		}
		return nil
	}

	configs := [2]metrics.AgentConfig{
		{ID: 1, Name: "nfsp", ModelPath: cfg.ModelPath, InputName: cfg.InputName, OutputName: cfg.OutputName, Probabilities: !cfg.OutputLogits, RequireModel: cfg.RequireModel, Seed: cfg.Seed},
		{ID: 2, Name: "rules"},
	}
	if cfg.Seed != 0 {
		configs[1].Seed = cfg.Seed + 1
	}
	_, err = experiments.RunMatchUp(ctx, "match", configs, cfg.Games, cfg.Seed)
	return err
}

func runServe(ctx context.Context, args []string) error {
	s := newSettings("serve")
	listen := s.fs.String("listen", "", "TCP address of the line protocol")
	ws := s.fs.String("ws", "", "websocket address, empty disables it")
	cfg, err := s.load(args)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *ws != "" {
		cfg.WebSocketAddr = *ws
	}

	handle := sharedHandle(cfg)
	if cfg.RequireModel {
		if _, err := handle.Get(); err != nil {
			return err
		}
	}
	srv := server.NewServer(func(conn int64) agent.Player {
		return agent.New(
			agent.WithPolicy(handle),
			agent.WithSeed(connSeed(cfg.Seed, conn)),
			agent.WithRequireModel(cfg.RequireModel),
			agent.WithName(fmt.Sprintf("conn-%d", conn)),
		)
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 2)
	servers := 1
	go func() { errs <- srv.ListenAndServe(ctx, cfg.ListenAddr) }()
	if cfg.WebSocketAddr != "" {
		servers++
		go func() { errs <- srv.ListenAndServeWebSocket(ctx, cfg.WebSocketAddr) }()
	}

	var first error
	for i := 0; i < servers; i++ {
		if err := <-errs; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

// connSeed gives every served connection its own seed. 0 stays 0 so that
// each agent seeds from the clock.
func connSeed(seed uint64, conn int64) uint64 {
	if seed == 0 {
		return 0
	}
	return seed + uint64(conn)
}
