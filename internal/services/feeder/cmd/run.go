package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/feeder/internal/config"
	"github.com/LeonardoBeccarini/feeder/internal/configstore"
	"github.com/LeonardoBeccarini/feeder/internal/dispense"
	"github.com/LeonardoBeccarini/feeder/internal/history"
	"github.com/LeonardoBeccarini/feeder/internal/model/messages"
	"github.com/LeonardoBeccarini/feeder/internal/services/feeder"
	"github.com/LeonardoBeccarini/feeder/internal/telemetry"
	"github.com/LeonardoBeccarini/feeder/internal/timesource"
	"github.com/LeonardoBeccarini/feeder/pkg/dedup"
	"github.com/LeonardoBeccarini/feeder/pkg/logger"
	"github.com/LeonardoBeccarini/feeder/pkg/rabbitmq"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the feeder service",
	Long: `Starts the controller, the HTTP API on http_addr, the gRPC control service
on grpc_addr and, when mqtt.host is set, the MQTT command and status topics.`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runService(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)
	log := logger.New("main")
	log.Info("starting with config:\n%s", cfg.YAML())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := feeder.NewMetrics()

	// ---- config store ----
	store, err := openStore(cfg,
		configstore.WithReinitHook(metrics.StoreReinit),
		configstore.WithReadErrorHook(metrics.StoreReadFailed))
	if err != nil {
		return err
	}
	defer store.Close()

	// ---- MQTT ----
	// the broker connection outlives ctx so the final status still goes out
	mqttCtx, mqttCancel := context.WithCancel(context.Background())
	defer mqttCancel()

	topics := feeder.Topics{Prefix: cfg.MQTT.TopicPrefix, Device: cfg.DeviceID}
	var client mqtt.Client
	if cfg.MQTT.Enabled() {
		will, _ := json.Marshal(messages.Status{DeviceID: cfg.DeviceID, Running: false})
		client, err = rabbitmq.NewRabbitMQConn(&rabbitmq.RabbitMQConfig{
			Host:        cfg.MQTT.Host,
			Port:        cfg.MQTT.Port,
			User:        cfg.MQTT.User,
			Password:    cfg.MQTT.Password,
			ClientID:    cfg.MQTT.ClientID,
			WillTopic:   topics.Status(),
			WillPayload: string(will),
		}, mqttCtx)
		if err != nil {
			return fmt.Errorf("MQTT connect: %w", err)
		}
	}

	// ---- dispense engine ----
	var act dispense.Actuator
	switch cfg.Dispense.Actuator {
	case config.ActuatorMQTT:
		act = dispense.NewMQTTActuator(rabbitmq.NewPublisher(client, topics.Motor()))
	default:
		act = dispense.NewLogActuator(logger.New("motor"))
	}
	engine := dispense.NewEngine(act, dispense.RealClock{}, dispense.Config{
		SettleDelay: cfg.Dispense.SettleDelay,
		Duty:        cfg.Dispense.Duty,
	})

	// ---- time service ----
	daytime := timesource.NewClient(cfg.TimeService.Host, cfg.TimeService.Port)
	daytime.DialTimeout = cfg.TimeService.DialTimeout
	daytime.ReadTimeout = cfg.TimeService.ReadTimeout
	daytime.Settle = cfg.TimeService.Settle
	breaker := timesource.NewBreaker(daytime, timesource.BreakerSettings{
		Failures: cfg.TimeService.BreakerFailures,
		OpenFor:  cfg.TimeService.BreakerOpenFor,
		Interval: cfg.TimeService.BreakerResetEach,
		OnStateFunc: func(from, to string) {
			log.Warn("time service breaker %s -> %s", from, to)
		},
	})

	// ---- recorders ----
	opts := []feeder.Option{feeder.WithMetrics(metrics)}

	if cfg.HistoryPath != "" {
		db, err := history.New(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer db.Close()
		opts = append(opts, feeder.WithRecorders(db))
	}

	var influx *telemetry.Writer
	if cfg.Influx.Enabled() {
		influx = telemetry.Dial(telemetry.Config{
			URL:           cfg.Influx.URL,
			Token:         cfg.Influx.Token,
			Org:           cfg.Influx.Org,
			Bucket:        cfg.Influx.Bucket,
			BatchSize:     uint(cfg.Influx.BatchSize),
			FlushInterval: cfg.Influx.FlushInterval,
		})
		defer influx.Close()
		opts = append(opts, feeder.WithRecorders(influx))
	}

	if client != nil {
		opts = append(opts,
			feeder.WithRecorders(feeder.NewMQTTEventRecorder(rabbitmq.NewPublisher(client, topics.Events()))),
			feeder.WithStatusPublisher(feeder.NewMQTTStatusPublisher(rabbitmq.NewPublisher(client, topics.Status()))),
		)
	}

	// ---- controller ----
	ctrl := feeder.New(feeder.Config{
		DeviceID:      cfg.DeviceID,
		PollInterval:  cfg.PollInterval,
		Debounce:      cfg.Debounce,
		UTCOffset:     cfg.UTCOffset,
		DueSoonWindow: cfg.DueSoonWindow,
		FedWindow:     cfg.FedWindow,
		PollOnStart:   cfg.PollOnStart,
	}, store, breaker, engine, opts...)

	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()

	if client != nil {
		handler := feeder.NewCommandHandler(ctrl, topics, rabbitmq.NewPublisher(client, topics.Result()), dedup.New(10*time.Minute, 1000))
		consumer := rabbitmq.NewMultiConsumer(client, topics.Commands(), 1, handler.Handle)
		go func() {
			if err := consumer.ConsumeMessage(ctx); err != nil {
				log.Error("command consumer: %v", err)
				stop()
			}
		}()
	}

	// ---- HTTP ----
	health := feeder.HealthDeps{Controller: ctrl, MQTT: client, Influx: influx, TimeBreaker: breaker.State}
	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: feeder.NewHTTPMux(ctrl, feeder.MuxConfig{
			Metrics: metrics.Handler(),
			Health:  feeder.NewHealthHandler(health),
			Ready:   feeder.NewReadyHandler(health),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("HTTP API on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server: %v", err)
			stop()
		}
	}()

	// ---- gRPC ----
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		stop()
		<-runErr
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	grpcSrv, grpcHealth := feeder.NewGRPCServer(ctrl)
	go func() {
		log.Info("gRPC control service on %s", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("gRPC serve: %v", err)
			stop()
		}
	}()

	// ---- graceful shutdown ----
	<-ctx.Done()
	log.Info("shutting down...")

	grpcHealth.Shutdown()
	grpcSrv.GracefulStop()

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		log.Warn("HTTP shutdown: %v", err)
	}

	// an in-flight dispense finishes before Run returns
	if err := <-runErr; err != nil {
		return err
	}
	mqttCancel()
	return nil
}
