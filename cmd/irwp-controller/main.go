// IRWP Wearable Countermeasure Controller
// Main entry point for the controller service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/irwp/wearable-controller/internal/engine"
	"github.com/irwp/wearable-controller/internal/safety"
	"github.com/irwp/wearable-controller/internal/transport"
)

// Config represents the configuration file structure
type Config struct {
	Serial transport.PortOptions `yaml:"serial"`

	WebSocket struct {
		Listen string `yaml:"listen"`
	} `yaml:"websocket"`

	ZMQ struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"zmq"`

	Safety struct {
		Policy         string  `yaml:"policy"` // enforcing or advisory
		TempThresholdC float64 `yaml:"temp_threshold_c"`
	} `yaml:"safety"`

	Timing struct {
		TickMs          int `yaml:"tick_ms"`
		TempIntervalSec int `yaml:"temp_interval_sec"`
		MotionIntMs     int `yaml:"motion_interval_ms"`
	} `yaml:"timing"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Persist struct {
		Path string `yaml:"path"`
	} `yaml:"persist"`
}

var (
	configFile string
	rootCmd    = &cobra.Command{
		Use:   "irwp-controller",
		Short: "IRWP Wearable Countermeasure Controller",
		Long:  "Controller service for the IRWP wearable infrared countermeasure. Drives the emitter zones and serves command channels over serial, WebSocket, and ZeroMQ.",
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the controller service",
		RunE:  runController,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("IRWP Wearable Controller v3.0.0")
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/irwp/controller.yaml", "Configuration file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

func parsePolicy(s string) (safety.Policy, error) {
	switch s {
	case "", "enforcing":
		return safety.Enforcing, nil
	case "advisory":
		return safety.Advisory, nil
	default:
		return safety.Enforcing, fmt.Errorf("safety.policy must be enforcing or advisory, got %q", s)
	}
}

func runController(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	policy, err := parsePolicy(cfg.Safety.Policy)
	if err != nil {
		return err
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.Serial = cfg.Serial
	engineCfg.WSListen = cfg.WebSocket.Listen
	engineCfg.ZMQEndpoint = cfg.ZMQ.Endpoint
	engineCfg.SafetyPolicy = policy

	if cfg.Safety.TempThresholdC > 0 {
		engineCfg.TempThresholdC = cfg.Safety.TempThresholdC
	}
	if cfg.Database.Path != "" {
		engineCfg.DatabasePath = cfg.Database.Path
	}
	if cfg.Persist.Path != "" {
		engineCfg.PersistPath = cfg.Persist.Path
	}
	if cfg.Timing.TickMs > 0 {
		engineCfg.TickInterval = time.Duration(cfg.Timing.TickMs) * time.Millisecond
	}
	if cfg.Timing.TempIntervalSec > 0 {
		engineCfg.TempInterval = time.Duration(cfg.Timing.TempIntervalSec) * time.Second
	}
	if cfg.Timing.MotionIntMs > 0 {
		engineCfg.MotionInterval = time.Duration(cfg.Timing.MotionIntMs) * time.Millisecond
	}

	eng, err := engine.New(engineCfg)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("Starting IRWP wearable controller (policy=%s)", policy)
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)

	if err := eng.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
