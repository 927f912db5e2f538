package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/cuemby/mastermind/pkg/balancelogic"
	"github.com/cuemby/mastermind/pkg/balancer"
	"github.com/cuemby/mastermind/pkg/config"
	"github.com/cuemby/mastermind/pkg/elliptics"
	"github.com/cuemby/mastermind/pkg/events"
	"github.com/cuemby/mastermind/pkg/infrastructure"
	"github.com/cuemby/mastermind/pkg/inventory"
	"github.com/cuemby/mastermind/pkg/log"
	"github.com/cuemby/mastermind/pkg/metrics"
	"github.com/cuemby/mastermind/pkg/namespace"
	"github.com/cuemby/mastermind/pkg/reconciler"
	"github.com/cuemby/mastermind/pkg/timedqueue"
	"github.com/cuemby/mastermind/pkg/topology"
	"github.com/cuemby/mastermind/pkg/transport"
	"github.com/cuemby/mastermind/pkg/worker"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the coordinator agent",
	Long: `Run the mastermind coordinator agent.

The agent connects to the storage fleet, builds the topology model,
keeps it reconciled against node statistics and metadata keys, and
serves the coordinator API over gRPC. Metrics and health endpoints
are served on a separate HTTP listener.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg := config.Default()
		if configPath != "" {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
		})

		fmt.Println("Starting mastermind agent...")
		fmt.Printf("  Storage driver: %s\n", cfg.Elliptics.Driver)
		fmt.Printf("  gRPC address:   %s\n", cfg.GRPCAddr)
		fmt.Printf("  Metrics:        %s\n", cfg.MetricsAddr)
		fmt.Println()

		metrics.SetVersion(Version)

		// Storage client
		client, err := elliptics.New(cfg.Elliptics)
		if err != nil {
			return fmt.Errorf("failed to create storage client: %v", err)
		}
		defer client.Close()
		metrics.RegisterComponent("elliptics", true, "driver "+cfg.Elliptics.Driver)

		// Durable group history
		history, err := infrastructure.New(cfg.Infrastructure.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open infrastructure store: %v", err)
		}
		defer history.Close()

		// Host-to-datacenter resolution
		inv, err := inventory.New(cfg.Inventory)
		if err != nil {
			return fmt.Errorf("failed to create inventory: %v", err)
		}

		state := topology.NewState(time.Duration(cfg.Reconciler.StallTimeout))
		balance := balancelogic.NewConfig(cfg.Balancer.MinFreeSpace, cfg.Balancer.MinFreeSpaceRelative)
		registry := namespace.NewRegistry(client, cfg.Metadata, state)

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		queue := timedqueue.New()
		queue.Start()

		updater := reconciler.New(client, state, queue, history, broker, balance, cfg)

		bal := balancer.New(balancer.Deps{
			Client:    client,
			State:     state,
			Inventory: inv,
			Registry:  registry,
			History:   history,
			Broker:    broker,
			Balance:   balance,
			Updater:   updater,
			Config:    cfg,
		})

		// The transport derives its service descriptor from the
		// registry, so every handler must be in before NewServer.
		handlers := worker.NewRegistry()
		bal.Register(handlers)
		srv := transport.NewServer(handlers)
		metrics.RegisterComponent("transport", false, "not serving yet")

		obs := metrics.NewServer()
		collector := metrics.NewCollector(state)

		// Initial synchronous load: the agent does not serve until the
		// model holds a first full view of the fleet.
		updater.Start()
		fmt.Println("✓ Topology model loaded")

		collector.Start()
		defer collector.Stop()

		var g run.Group
		g.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))

		// Coordinator events surface in the agent log
		eventSub := broker.Subscribe()
		g.Add(func() error {
			logger := log.WithComponent("events")
			for ev := range eventSub {
				e := logger.Info().Str("type", string(ev.Type))
				for k, v := range ev.Metadata {
					e = e.Str(k, v)
				}
				e.Msg(ev.Message)
			}
			return nil
		}, func(error) {
			broker.Unsubscribe(eventSub)
		})
		g.Add(func() error {
			metrics.UpdateComponent("transport", true, "serving on "+cfg.GRPCAddr)
			return srv.Start(cfg.GRPCAddr)
		}, func(error) {
			metrics.UpdateComponent("transport", false, "stopped")
			srv.Stop()
		})
		g.Add(func() error {
			return obs.Start(cfg.MetricsAddr)
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = obs.Shutdown(ctx)
		})

		fmt.Printf("✓ Agent is running with %d handlers. Press Ctrl+C to stop.\n", len(handlers.Names()))

		err = g.Run()
		fmt.Println("\nShutting down...")
		updater.Stop()

		var sig run.SignalError
		if errors.As(err, &sig) {
			err = nil
		}
		if err != nil {
			return err
		}

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	agentCmd.Flags().String("config", "", "Path to the agent YAML configuration file")
}
