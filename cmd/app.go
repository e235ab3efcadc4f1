package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/api"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/config"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/database"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/evidence"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/kafka"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/mqtt"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/notify"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/outbox"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/pipeline"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/runner"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/s3"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/services/capture"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/services/detection"
)

// run wires every component from cfg and blocks until ctx is done or capture fails for good
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	start, end, err := cfg.Window()
	if err != nil {
		return err
	}

	normalizer, err := pipeline.NewNormalizer(cfg.Detection.Threshold, cfg.Detection.MinArea, cfg.Detection.Labels)
	if err != nil {
		return err
	}
	window := pipeline.NewWindow(start, end, loc)
	cooldown := pipeline.NewCooldown(cfg.Cooldown())

	persister, err := evidence.NewPersister(cfg.Evidence.Dir, cfg.Evidence.Ext, loc, log)
	if err != nil {
		return err
	}

	channels, err := buildChannels(cfg, log, &closers)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(channels, cfg.Alert.SendTimeout, loc, log)

	deps := runner.Deps{
		Normalizer: normalizer,
		Window:     window,
		Cooldown:   cooldown,
		Persister:  persister,
		Dispatcher: dispatcher,
	}

	source, err := buildSource(ctx, cfg, log, &deps, &closers)
	if err != nil {
		return err
	}
	deps.Source = capture.NewRetrying(source, cfg.Capture.BackoffInitial, cfg.Capture.BackoffMax, cfg.Capture.MaxOutage, log)

	if cfg.Minio.Endpoint != "" {
		mirror, err := s3.NewMinioClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey,
			cfg.Minio.Bucket, cfg.Minio.Secure, cfg.Minio.LinkExpiry, cfg.Node.Name)
		if err != nil {
			return err
		}
		if err := mirror.EnsureBucket(ctx); err != nil {
			log.Warn("evidence bucket not ready, uploads may fail", zap.Error(err))
		}
		deps.Mirror = mirror
	}

	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.HeartbeatTopic, cfg.Kafka.AlertTopic)
		if err != nil {
			return fmt.Errorf("failed to create Kafka producer: %w", err)
		}
		closers = append(closers, func() { _ = producer.Close() })
		deps.Heartbeats = producer
	}

	var history api.AlertHistory
	var background sync.WaitGroup
	if cfg.Postgres.DSN != "" {
		db, err := database.New(ctx, cfg.Postgres.DSN, log)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := db.Init(ctx); err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		deps.Recorder = db
		history = db

		if producer != nil {
			relay := outbox.NewRelay(db, producer, cfg.Kafka.OutboxInterval, log)
			background.Add(1)
			go func() {
				defer background.Done()
				relay.Run(ctx)
			}()
		}
	}

	r := runner.New(deps, runner.Options{
		Node:              cfg.Node.Name,
		Interval:          cfg.Capture.Interval,
		QueueSize:         cfg.Alert.QueueSize,
		ShutdownGrace:     cfg.Alert.ShutdownGrace,
		MirrorTimeout:     cfg.Alert.SendTimeout,
		HeartbeatInterval: cfg.Kafka.HeartbeatInterval,
	}, log)

	if cfg.HTTP.Addr != "" {
		handlers := api.NewHandlers(r, history, api.Info{
			Window:          window.String(),
			CooldownSeconds: int(cfg.Cooldown() / time.Second),
			Channels:        dispatcher.Channels(),
		}, log)
		server := api.NewServer(cfg.HTTP.Addr, handlers)

		background.Add(1)
		go func() {
			defer background.Done()
			log.Info("starting status server", zap.String("addr", cfg.HTTP.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status server failed", zap.Error(err))
			}
		}()
		background.Add(1)
		go func() {
			defer background.Done()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	err = r.Run(ctx)

	// stop the relay and the status server before their dependencies close
	cancel()
	background.Wait()
	return err
}

func buildSource(ctx context.Context, cfg *config.Config, log *zap.Logger, deps *runner.Deps, closers *[]func()) (capture.Source, error) {
	switch cfg.Capture.Source {
	case config.SourceDevice:
		return openDevice(cfg, deps, closers)
	case config.SourceKafka:
		consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.FrameTopic, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
		}
		*closers = append(*closers, func() { _ = consumer.Close() })
		consumer.StartListening(ctx)
		deps.Classifier = detection.NewClient(cfg.Detection.Endpoint, cfg.Detection.Timeout, log)
		deps.Annotator = newAnnotator()
		return capture.NewKafkaSource(consumer, cfg.Kafka.FrameTopic), nil
	default:
		deps.Classifier = detection.NewClient(cfg.Detection.Endpoint, cfg.Detection.Timeout, log)
		deps.Annotator = newAnnotator()
		return capture.NewHTTPSource(cfg.Capture.SnapshotURL, cfg.Detection.Timeout), nil
	}
}

func buildChannels(cfg *config.Config, log *zap.Logger, closers *[]func()) ([]notify.Channel, error) {
	email, err := notify.NewShoutrrrChannel("email", cfg.Email.Enabled,
		notify.EmailURL(cfg.Email.SMTPServer, cfg.Email.SMTPPort, cfg.Email.SenderEmail, cfg.Email.SenderPassword, cfg.Email.RecipientEmail),
		cfg.Alert.SendTimeout)
	if err != nil {
		return nil, err
	}
	push, err := notify.NewShoutrrrChannel("pushbullet", cfg.Pushbullet.Enabled,
		notify.PushbulletURL(cfg.Pushbullet.APIKey), cfg.Alert.SendTimeout)
	if err != nil {
		return nil, err
	}
	chat, err := notify.NewShoutrrrChannel("telegram", cfg.Telegram.Enabled,
		notify.TelegramURL(cfg.Telegram.BotToken, cfg.Telegram.ChatID), cfg.Alert.SendTimeout)
	if err != nil {
		return nil, err
	}

	channels := []notify.Channel{email, push, chat}

	if cfg.MQTT.Enabled {
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "sentry-" + cfg.Node.Name
		}
		client, err := mqtt.NewClient(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: clientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, log)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, client.Disconnect)
		channels = append(channels, notify.NewMQTTChannel(true, client, cfg.MQTT.Topic, cfg.MQTT.QoS))
	}

	return channels, nil
}
