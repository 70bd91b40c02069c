/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind    string
	origins []string
	port    int
	prefix  string
	profile bool
	tlsCert string
	tlsKey  string
	verbose bool
	version bool

	codeLength    int
	maxPlayers    int
	maxRooms      int
	roomTimeout   time.Duration
	sweepInterval time.Duration

	attackCost   int
	resultsDelay time.Duration
	startDelay   time.Duration

	heartbeatInterval time.Duration

	limitGlobal       int
	limitGlobalWindow time.Duration
	limitDefault      int
	limitWindow       time.Duration
	limitUpdates      int
	limitAttacks      int
	limitRooms        int
	limitNavigation   int

	comboStep      int
	healthSlack    int
	scoreStep      int
	scoreTolerance int

	shutdownNotice time.Duration
	shutdownGrace  time.Duration
	shutdownLimit  time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.codeLength < 4 || c.codeLength > 12 {
		return fmt.Errorf("invalid room code length (must be between 4-12 inclusive): %d", c.codeLength)
	}
	if c.maxPlayers < 2 || c.maxPlayers > 16 {
		return fmt.Errorf("invalid player cap (must be between 2-16 inclusive): %d", c.maxPlayers)
	}
	if c.maxRooms < 1 {
		return fmt.Errorf("invalid room cap: %d", c.maxRooms)
	}
	if c.attackCost < 1 {
		return fmt.Errorf("invalid attack cost: %d", c.attackCost)
	}
	if c.scoreTolerance < 0 || c.scoreTolerance > 100 {
		return fmt.Errorf("invalid score tolerance percentage: %d", c.scoreTolerance)
	}
	if c.healthSlack < 0 || c.comboStep < 1 || c.scoreStep < 1 {
		return errors.New("anticheat deltas must be positive")
	}
	if c.shutdownLimit < c.shutdownNotice+c.shutdownGrace {
		return errors.New("--shutdown-limit must exceed --shutdown-notice plus --shutdown-grace")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("RHYTHMBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "rhythmbox",
		Short:         "Coordination server for competitive rhythm game matches.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: RHYTHMBOX_BIND)")
	fs.StringSliceVar(&cfg.origins, "origins", []string{}, "origins allowed to connect; empty allows all (env: RHYTHMBOX_ORIGINS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: RHYTHMBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: RHYTHMBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: RHYTHMBOX_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: RHYTHMBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: RHYTHMBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: RHYTHMBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: RHYTHMBOX_VERSION)")

	fs.IntVar(&cfg.codeLength, "code-length", 5, "length of generated room codes (env: RHYTHMBOX_CODE_LENGTH)")
	fs.IntVar(&cfg.maxPlayers, "max-players", 4, "maximum players per room (env: RHYTHMBOX_MAX_PLAYERS)")
	fs.IntVar(&cfg.maxRooms, "max-rooms", 500, "maximum concurrent rooms (env: RHYTHMBOX_MAX_ROOMS)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", 10*time.Minute, "time before inactive rooms are deleted (env: RHYTHMBOX_ROOM_TIMEOUT)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", time.Minute, "interval between room expiry sweeps (env: RHYTHMBOX_SWEEP_INTERVAL)")

	fs.IntVar(&cfg.attackCost, "attack-cost", 20, "combo spent per attack (env: RHYTHMBOX_ATTACK_COST)")
	fs.DurationVar(&cfg.resultsDelay, "results-delay", 10*time.Second, "time results are shown before the room resets (env: RHYTHMBOX_RESULTS_DELAY)")
	fs.DurationVar(&cfg.startDelay, "start-delay", 3*time.Second, "countdown between start and play (env: RHYTHMBOX_START_DELAY)")

	fs.DurationVar(&cfg.heartbeatInterval, "heartbeat-interval", 30*time.Second, "interval between liveness probes (env: RHYTHMBOX_HEARTBEAT_INTERVAL)")

	fs.IntVar(&cfg.limitGlobal, "limit-global", 2000, "server-wide inbound messages per window (env: RHYTHMBOX_LIMIT_GLOBAL)")
	fs.DurationVar(&cfg.limitGlobalWindow, "limit-global-window", time.Second, "window for the server-wide limit (env: RHYTHMBOX_LIMIT_GLOBAL_WINDOW)")
	fs.IntVar(&cfg.limitDefault, "limit-default", 20, "per-connection messages per window for unlisted actions (env: RHYTHMBOX_LIMIT_DEFAULT)")
	fs.DurationVar(&cfg.limitWindow, "limit-window", 5*time.Second, "window for per-connection limits (env: RHYTHMBOX_LIMIT_WINDOW)")
	fs.IntVar(&cfg.limitUpdates, "limit-updates", 40, "state updates per connection per second (env: RHYTHMBOX_LIMIT_UPDATES)")
	fs.IntVar(&cfg.limitAttacks, "limit-attacks", 10, "attacks per connection per second (env: RHYTHMBOX_LIMIT_ATTACKS)")
	fs.IntVar(&cfg.limitRooms, "limit-rooms", 5, "room create/join attempts per connection per window (env: RHYTHMBOX_LIMIT_ROOMS)")
	fs.IntVar(&cfg.limitNavigation, "limit-navigation", 10, "host navigation messages per connection per window (env: RHYTHMBOX_LIMIT_NAVIGATION)")

	fs.IntVar(&cfg.comboStep, "combo-step", 15, "largest accepted combo increase per update (env: RHYTHMBOX_COMBO_STEP)")
	fs.IntVar(&cfg.healthSlack, "health-slack", 10, "largest accepted health increase per update (env: RHYTHMBOX_HEALTH_SLACK)")
	fs.IntVar(&cfg.scoreStep, "score-step", 10000, "largest accepted score increase per update (env: RHYTHMBOX_SCORE_STEP)")
	fs.IntVar(&cfg.scoreTolerance, "score-tolerance", 5, "percentage a final score may exceed the tracked score (env: RHYTHMBOX_SCORE_TOLERANCE)")

	fs.DurationVar(&cfg.shutdownNotice, "shutdown-notice", time.Second, "delay between the shutdown notice and closing connections (env: RHYTHMBOX_SHUTDOWN_NOTICE)")
	fs.DurationVar(&cfg.shutdownGrace, "shutdown-grace", 3*time.Second, "time connections are given to close gracefully (env: RHYTHMBOX_SHUTDOWN_GRACE)")
	fs.DurationVar(&cfg.shutdownLimit, "shutdown-limit", 10*time.Second, "hard ceiling on the whole shutdown sequence (env: RHYTHMBOX_SHUTDOWN_LIMIT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("rhythmbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
