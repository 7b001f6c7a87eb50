package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/testbench/inspection-agent/internal/config"
	"github.com/testbench/inspection-agent/internal/handlers"
	"github.com/testbench/inspection-agent/internal/hub"
	"github.com/testbench/inspection-agent/internal/metrics"
	"github.com/testbench/inspection-agent/internal/server"
	"github.com/testbench/inspection-agent/internal/services"
	"github.com/testbench/inspection-agent/internal/store"
	"github.com/testbench/inspection-agent/pkg/driver"
	"github.com/testbench/inspection-agent/pkg/retry"
	"github.com/testbench/inspection-agent/pkg/scheduler"
	"github.com/testbench/inspection-agent/pkg/transport/serial"
)

// NewRunCommand builds the `run` subcommand, binding all flags onto cfg.
func NewRunCommand(cfg *config.Configuration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the inspection agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateConfiguration(cfg); err != nil {
				return err
			}
			if err := initLogger(cfg.Server.ServerMode); err != nil {
				return err
			}
			defer func() { _ = zap.S().Sync() }()

			zap.S().Named("agent").Infow("starting", "config", cfg.DebugMap())
			return runAgent(cfg)
		},
	}

	flags := cmd.Flags()

	flags.IntVar(&cfg.Server.HTTPPort, "server-http-port", cfg.Server.HTTPPort, "port the HTTP API listens on")
	flags.StringVar(&cfg.Server.StaticsFolder, "server-statics-folder", cfg.Server.StaticsFolder, "folder with the operator UI statics (prod mode)")
	flags.StringVar(&cfg.Server.ServerMode, "server-mode", cfg.Server.ServerMode, "server mode: dev or prod")

	flags.StringVar(&cfg.Agent.ID, "agent-id", cfg.Agent.ID, "unique agent identifier (UUID)")
	flags.IntVar(&cfg.Agent.NumWorkers, "num-workers", cfg.Agent.NumWorkers, "size of the instrument command worker pool")
	flags.IntVar(&cfg.Agent.PhaseCapacity, "phase-capacity", cfg.Agent.PhaseCapacity, "per-phase measurement history capacity")
	flags.IntVar(&cfg.Agent.MergedCapacity, "merged-capacity", cfg.Agent.MergedCapacity, "merged measurement history capacity")
	flags.IntVar(&cfg.Agent.ResultsCapacity, "results-capacity", cfg.Agent.ResultsCapacity, "finished session archive capacity")
	flags.DurationVar(&cfg.Agent.SettleDelay, "settle-delay", cfg.Agent.SettleDelay, "delay between device disconnect and reconnect")

	flags.StringVar(&cfg.Driver.URL, "driver-url", cfg.Driver.URL, "base URL of the instrument driver backend")
	flags.StringVar(&cfg.Driver.StreamURL, "driver-stream-url", cfg.Driver.StreamURL, "websocket URL of the driver event stream")
	flags.StringVar(&cfg.Driver.SafetyTesterID, "driver-safety-tester-id", cfg.Driver.SafetyTesterID, "driver device id of the safety tester")
	flags.IntVar(&cfg.Driver.DialAttempts, "driver-dial-attempts", cfg.Driver.DialAttempts, "stream dial attempts before giving up")
	flags.DurationVar(&cfg.Driver.DialInterval, "driver-dial-interval", cfg.Driver.DialInterval, "initial backoff between stream dial attempts")

	flags.BoolVar(&cfg.Serial.Enabled, "serial-enabled", cfg.Serial.Enabled, "drive the safety tester directly over RS-232")
	flags.StringVar(&cfg.Serial.Port, "serial-port", cfg.Serial.Port, "serial port device path")
	flags.IntVar(&cfg.Serial.BaudRate, "serial-baud-rate", cfg.Serial.BaudRate, "serial port baud rate")

	return cmd
}

func validateConfiguration(cfg *config.Configuration) error {
	if cfg.Agent.ID == "" {
		return errors.New("agent-id cannot be empty")
	}
	if _, err := uuid.Parse(cfg.Agent.ID); err != nil {
		return errors.New("agent-id must be a valid UUID")
	}

	if cfg.Server.HTTPPort < 1 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http-port: %d", cfg.Server.HTTPPort)
	}
	if cfg.Agent.NumWorkers < 1 {
		return fmt.Errorf("invalid num-workers: %d", cfg.Agent.NumWorkers)
	}

	switch cfg.Server.ServerMode {
	case server.DevServer:
	case server.ProductionServer:
		if cfg.Server.StaticsFolder == "" {
			return errors.New("statics folder must be set in prod mode")
		}
	default:
		return fmt.Errorf("invalid server mode: %s", cfg.Server.ServerMode)
	}

	if cfg.Driver.URL == "" {
		return errors.New("driver-url cannot be empty")
	}
	if cfg.Serial.Enabled && cfg.Serial.Port == "" {
		return errors.New("serial-port must be set when serial is enabled")
	}

	return nil
}

func initLogger(serverMode string) error {
	var logger *zap.Logger
	var err error
	if serverMode == server.ProductionServer {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func runAgent(cfg *config.Configuration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(store.Config{
		PhaseCapacity:   cfg.Agent.PhaseCapacity,
		MergedCapacity:  cfg.Agent.MergedCapacity,
		ResultsCapacity: cfg.Agent.ResultsCapacity,
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	h := hub.New()

	pool := scheduler.NewScheduler(cfg.Agent.NumWorkers)
	defer pool.Close()

	client := driver.NewClient(cfg.Driver.URL)
	deviceSrv := services.NewDeviceService(client, st.Devices(), cfg.Agent.SettleDelay)
	inspectionSrv := services.NewInspectionService(client, deviceSrv, st, h, m, cfg.Agent.PhaseCapacity)

	var commander services.Commander
	if cfg.Serial.Enabled {
		serialCommander := serial.NewCommander(serial.Config{
			Port:     cfg.Serial.Port,
			BaudRate: cfg.Serial.BaudRate,
		})
		if err := serialCommander.Open(); err != nil {
			return err
		}
		defer serialCommander.Close()
		commander = serialCommander
	} else {
		commander = driver.NewCommander(client, cfg.Driver.SafetyTesterID)
	}
	safetySrv := services.NewSafetyService(inspectionSrv, commander, pool)

	streamSrv := services.NewStreamService(cfg.Driver.StreamURL, services.DefaultDial, inspectionSrv, retry.Config{
		MaxAttempts:  cfg.Driver.DialAttempts,
		InitialDelay: cfg.Driver.DialInterval,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}, m)
	defer streamSrv.Close()

	handler := handlers.New(deviceSrv, inspectionSrv, safetySrv, streamSrv, st, h, m)
	srv, err := server.NewServer(cfg, handler.RegisterRoutes, handler.RegisterRootRoutes)
	if err != nil {
		return err
	}

	// The agent stays useful without the stream: the operator can trigger
	// the reconnect action once the driver comes up.
	if err := streamSrv.Connect(ctx); err != nil {
		zap.S().Named("agent").Warnw("driver event stream unavailable at startup", "error", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return inspectionSrv.Run(groupCtx)
	})
	group.Go(func() error {
		return srv.Start(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(shutdownCtx)
		h.Close()
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
