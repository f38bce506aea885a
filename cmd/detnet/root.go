package main

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// runConfig holds everything one run needs. A YAML file can provide the
// values; flags that are set explicitly override the file.
type runConfig struct {
	Seed     int64  `yaml:"seed"`
	Scenario string `yaml:"scenario"`
	Nodes    int    `yaml:"nodes"`
	Rounds   int    `yaml:"rounds"`

	DefaultDelay int64 `yaml:"default-delay"`
	MinDelay     int64 `yaml:"min-delay"`
	MaxDelay     int64 `yaml:"max-delay"`

	Steps   uint64 `yaml:"steps"`
	Horizon int64  `yaml:"horizon"`

	Record      string `yaml:"record"`
	MonitorPort int    `yaml:"monitor-port"`
}

var (
	cfg        runConfig
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "detnet",
	Short: "Deterministic discrete-event simulator for network protocols",
}

// runCmd executes one simulation using parameters from flags or a config
// file.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation and print its log digest",
	Run: func(cmd *cobra.Command, args []string) {
		setUpLogging()
		loadConfigFile(cmd)

		s, report := buildScenario(cfg)
		logrus.Infof("Starting scenario %q with seed %d", cfg.Scenario, cfg.Seed)

		if err := s.Run(); err != nil {
			logrus.Fatalf("Run faulted: %v", err)
		}

		report()
		fmt.Printf("state=%v time=%d deliveries=%d digest=%s\n",
			s.State(), s.Now(), len(s.DeliveryLog()), s.LogDigest())

		for _, perr := range s.ProtocolErrors() {
			logrus.Warnf("protocol error: %v", perr)
		}

		if cfg.MonitorPort != 0 {
			logrus.Info("Run complete. Monitor stays up until interrupt.")
			waitForInterrupt()
		}

		s.Terminate()
	},
}

// sweepCmd runs a range of seeds, each twice, and flags any seed whose two
// digests differ.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Replay a seed range twice and check digests match",
	Run: func(cmd *cobra.Command, args []string) {
		setUpLogging()
		loadConfigFile(cmd)

		type result struct {
			seed          int64
			first, second string
		}

		// Runs share nothing, so seeds can execute in parallel.
		results := make([]result, sweepCount)
		var wg sync.WaitGroup
		for i := 0; i < sweepCount; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				seedCfg := cfg
				seedCfg.Seed = sweepStart + int64(i)
				seedCfg.Record = ""
				seedCfg.MonitorPort = 0

				results[i] = result{
					seed:   seedCfg.Seed,
					first:  digestOf(seedCfg),
					second: digestOf(seedCfg),
				}
			}(i)
		}
		wg.Wait()

		mismatches := 0
		for _, r := range results {
			status := "ok"
			if r.first != r.second {
				status = "MISMATCH"
				mismatches++
			}
			fmt.Printf("seed=%d digest=%s %s\n", r.seed, r.first, status)
		}

		if mismatches > 0 {
			logrus.Fatalf("%d of %d seeds did not reproduce", mismatches, sweepCount)
		}
	},
}

// verifyCmd compares the recorded delivery logs of two runs.
var verifyCmd = &cobra.Command{
	Use:   "verify <run-a.sqlite3> <run-b.sqlite3>",
	Short: "Compare the recorded delivery logs of two runs",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		setUpLogging()

		if err := verifyRecordings(args[0], args[1]); err != nil {
			logrus.Fatalf("Verification failed: %v", err)
		}
		fmt.Println("identical")
	},
}

var (
	sweepStart int64
	sweepCount int
)

func setUpLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadConfigFile merges the YAML file, if any, under the explicitly set
// flags.
func loadConfigFile(cmd *cobra.Command) {
	if configFile == "" {
		return
	}

	flagCfg := cfg

	data, err := os.ReadFile(configFile)
	if err != nil {
		logrus.Fatalf("Cannot read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Fatalf("Cannot parse config file: %v", err)
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = flagCfg.Seed
	}
	if flags.Changed("scenario") {
		cfg.Scenario = flagCfg.Scenario
	}
	if flags.Changed("nodes") {
		cfg.Nodes = flagCfg.Nodes
	}
	if flags.Changed("rounds") {
		cfg.Rounds = flagCfg.Rounds
	}
	if flags.Changed("default-delay") {
		cfg.DefaultDelay = flagCfg.DefaultDelay
	}
	if flags.Changed("min-delay") {
		cfg.MinDelay = flagCfg.MinDelay
	}
	if flags.Changed("max-delay") {
		cfg.MaxDelay = flagCfg.MaxDelay
	}
	if flags.Changed("steps") {
		cfg.Steps = flagCfg.Steps
	}
	if flags.Changed("horizon") {
		cfg.Horizon = flagCfg.Horizon
	}
	if flags.Changed("record") {
		cfg.Record = flagCfg.Record
	}
	if flags.Changed("monitor-port") {
		cfg.MonitorPort = flagCfg.MonitorPort
	}
}

func digestOf(c runConfig) string {
	s, _ := buildScenario(c)
	if err := s.Run(); err != nil {
		logrus.Fatalf("Run faulted: %v", err)
	}
	return s.LogDigest()
}

func waitForInterrupt() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	<-ch
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 42, "Seed for the run's random source")
	cmd.Flags().StringVar(&cfg.Scenario, "scenario", "pingpong", "Scenario to run (pingpong, bft)")
	cmd.Flags().IntVar(&cfg.Nodes, "nodes", 4, "Number of nodes in the scenario")
	cmd.Flags().IntVar(&cfg.Rounds, "rounds", 3, "Rounds to drive (bft scenario)")
	cmd.Flags().Int64Var(&cfg.DefaultDelay, "default-delay", 1, "Network default delay (in ticks)")
	cmd.Flags().Int64Var(&cfg.MinDelay, "min-delay", 0, "Lower bound of the random message delay")
	cmd.Flags().Int64Var(&cfg.MaxDelay, "max-delay", 0, "Upper bound of the random message delay (0 uses the default delay)")
	cmd.Flags().Uint64Var(&cfg.Steps, "steps", 0, "Stop after this many deliveries (0 for no limit)")
	cmd.Flags().Int64Var(&cfg.Horizon, "horizon", math.MaxInt64, "Stop before events past this tick")
	cmd.Flags().StringVar(&configFile, "config", "", "YAML file providing the run configuration")
	cmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
}

func init() {
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&cfg.Record, "record", "", "Record the delivery log into this SQLite file")
	runCmd.Flags().IntVar(&cfg.MonitorPort, "monitor-port", 0, "Serve the read-only monitor on this port (0 disables)")

	addRunFlags(sweepCmd)
	sweepCmd.Flags().Int64Var(&sweepStart, "seed-start", 0, "First seed of the sweep")
	sweepCmd.Flags().IntVar(&sweepCount, "seed-count", 10, "Number of seeds to sweep")

	verifyCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(verifyCmd)
}
