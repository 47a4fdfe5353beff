// Command intercom-node drives a latching relay, counts bell presses and
// reports temperature to an MQTT coordinator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/intercom-node/internal/config"
	"github.com/sweeney/intercom-node/internal/gpio"
	"github.com/sweeney/intercom-node/internal/logic"
	"github.com/sweeney/intercom-node/internal/mqtt"
	"github.com/sweeney/intercom-node/internal/node"
	"github.com/sweeney/intercom-node/internal/scheduler"
	"github.com/sweeney/intercom-node/internal/sensor"
	"github.com/sweeney/intercom-node/internal/status"
	"github.com/sweeney/intercom-node/internal/web"
)

// statusRefresh is how often the status page view is copied from the node.
const statusRefresh = time.Second

func main() {
	printState := flag.Bool("print-state", false, "Print relay and temperature state and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, *printState, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.Level = lvl
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

func run(cfg config.Config, printState bool, logger *zap.Logger) error {
	sched := scheduler.New(time.Now, logger.Named("scheduler"))

	// Edge handlers post into the scheduler, so n only needs to be set
	// before the loop starts.
	var n *node.Node
	rb, err := gpio.NewRealBoard(cfg.GPIO(), node.Handlers(sched, &n))
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	var board gpio.Board = rb
	defer board.Close()

	var reader sensor.Reader
	if cfg.TemperaturePath != "" {
		hw, err := sensor.NewHwmonReader(cfg.TemperaturePath)
		if err != nil {
			logger.Warn("thermometer unavailable, temperature disabled", zap.Error(err))
		} else {
			reader = hw
		}
	}

	if printState {
		return printCurrentState(board, reader)
	}

	publisher, err := mqtt.NewRealPublisher(cfg.MQTT(), logger.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	mode, err := logic.ParseRemoteSetMode(cfg.RemoteSetMode)
	if err != nil {
		return err
	}
	n = node.New(node.Config{
		NodeID:              cfg.NodeID,
		Firmware:            cfg.Firmware,
		Version:             cfg.Version,
		PulseWidth:          cfg.RelayPulse,
		TemperatureInterval: cfg.TemperatureInterval,
		RemoteSetMode:       mode,
		Policy:              cfg.Policy(),
	}, sched, board, publisher, reader, logger.Named("node"))

	if err := n.Listen(publisher); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	tracker := status.NewTracker(time.Now(), cfg.Status())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	eg, ctx := errgroup.WithContext(ctx)
	if cfg.HTTPAddr != "" {
		_, script := cfg.Script()
		srv := web.New(cfg.HTTPAddr, tracker, script)
		eg.Go(func() error {
			logger.Info("http status server listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}
	eg.Go(func() error {
		defer cancel()
		return runLoop(ctx, sched, n, publisher, publisher, tracker, time.Now, sigCh, logger)
	})
	return eg.Wait()
}

// runLoop starts the node, runs the scheduler until a signal arrives or ctx
// ends, then publishes the shutdown event. Lifecycle events carry a full
// status snapshot.
func runLoop(ctx context.Context, sched *scheduler.Scheduler, n *node.Node, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, sig <-chan os.Signal, logger *zap.Logger) error {
	refresh := func() {
		tracker.Update(n.State())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}
	sched.RegisterAt(func() {
		refresh()
		sched.PlanCurrentRelative(statusRefresh)
	}, 0)

	n.Start()
	refresh()
	publishLifecycle(publisher, tracker, now, "STARTUP", "", logger)

	loopCtx, stop := context.WithCancel(ctx)
	defer stop()

	reason := ""
	eg, loopCtx := errgroup.WithContext(loopCtx)
	eg.Go(func() error {
		select {
		case s := <-sig:
			logger.Info("shutting down", zap.Stringer("signal", s))
			reason = signalName(s)
			stop()
		case <-loopCtx.Done():
		}
		return nil
	})
	eg.Go(func() error {
		err := sched.Run(loopCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	err := eg.Wait()

	// The loop has stopped, so node state can be read here.
	refresh()
	publishLifecycle(publisher, tracker, now, "SHUTDOWN", reason, logger)
	return err
}

func publishLifecycle(publisher mqtt.Publisher, tracker *status.Tracker, now func() time.Time, event, reason string, logger *zap.Logger) {
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  now(),
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(ev); err != nil {
		logger.Warn("failed to publish system event", zap.String("event", event), zap.Error(err))
		return
	}
	logger.Info("published system event", zap.String("event", event))
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func printCurrentState(board gpio.Board, reader sensor.Reader) error {
	closed, err := board.Feedback()
	if err != nil {
		return fmt.Errorf("read relay feedback: %w", err)
	}
	temp := "n/a"
	if reader != nil {
		if c, err := reader.ReadCelsius(); err == nil {
			temp = fmt.Sprintf("%.2f", c)
		}
	}
	fmt.Printf("Relay: %s, Temperature: %s\n", logic.RelayString(closed), temp)
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
