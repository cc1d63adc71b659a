package main

import (
	"context"
	"seatflow/internal/adjustments/cache"
	"seatflow/internal/adjustments/notify"
	adjustmentsrepo "seatflow/internal/adjustments/repository"
	"seatflow/internal/adjustments/store"
	"seatflow/internal/adjustments/validator"
	"seatflow/internal/floor/handler"
	"seatflow/internal/floor/service"
	"seatflow/internal/lifecycle"
	reservationsrepo "seatflow/internal/reservations/repository"
	"seatflow/internal/scheduling"
	"seatflow/pkg/app"
	"seatflow/pkg/config"
	"seatflow/pkg/db/badger"
	"seatflow/pkg/kafka"
	kafka_config "seatflow/pkg/kafka/config"
	kafka_middleware "seatflow/pkg/kafka/middleware"
	"time"
)

const ServiceName = "seatflow"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting seatflow service")
	serverApp := app.NewApplication(cfg)

	db := openLocalStore(cfg)
	serverApp.OnShutdown("badger", func() {
		if err := db.Close(); err != nil {
			cfg.Log.Error("Failed to close local store", "error", err)
		}
	})

	adjustments := store.New(
		cache.NewBadgerCache(db.DB, cfg.Log),
		adjustmentsrepo.NewMongoAdjustmentRepository(cfg),
		cfg.Log,
		store.Options{RemoteTimeout: cfg.RemoteSyncTimeout},
	)
	serverApp.OnShutdown("adjustment-store", adjustments.Wait)

	if cfg.KafkaEnabled {
		startSync(cfg, serverApp, adjustments)
	}

	reservations := reservationsrepo.NewMongoReservationRepository(cfg)
	detector := scheduling.NewDetector(reservations, adjustments, cfg.Log)
	shifter := scheduling.NewShifter(reservations, adjustments, cfg.Log)
	tracker := lifecycle.NewTracker(lifecycle.Deps{
		Adjustments:   adjustments,
		Detector:      detector,
		Shifter:       shifter,
		Reservations:  reservations,
		Location:      cfg.Location,
		ExtensionStep: cfg.ExtensionStepMin,
		Log:           cfg.Log,
	}, reservations, lifecycle.TrackerOptions{
		CountdownInterval: cfg.CountdownInterval,
		OnExpire: func(m *lifecycle.Machine) {
			res := m.Reservation()
			cfg.Log.Info("Table awaiting clear or extend", "reservation_id", res.ID, "tables", res.TableIDs)
		},
	})
	serverApp.OnShutdown("tracker", tracker.Stop)

	floorService := service.NewFloorService(
		reservations,
		adjustments,
		tracker,
		detector,
		shifter,
		validator.NewAdjustmentValidator(cfg.Log),
		cfg,
	)
	resume(cfg, floorService)

	serverApp.SetApp(
		handler.NewFloorHandler(floorService, cfg.Log),
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
	)
	serverApp.Run()
}

func openLocalStore(cfg *config.Config) *badger.DB {
	db, err := badger.Open(badger.Config{
		Path:       cfg.BadgerPath,
		InMemory:   cfg.BadgerInMemory,
		GCInterval: cfg.BadgerGCInterval,
		Log:        cfg.Log,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to open local adjustment store", "path", cfg.BadgerPath, "error", err)
	}
	cfg.Log.Info("Local adjustment store opened", "path", cfg.BadgerPath, "in_memory", cfg.BadgerInMemory)
	return db
}

// startSync publishes local adjustment changes and refreshes on peer changes.
func startSync(cfg *config.Config, serverApp *app.Application, adjustments *store.Store) {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaAdjustmentsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.KafkaAdjustmentsTopic,
		cfg.KafkaConsumerGroup,
		notify.Handler(adjustments, adjustments.Origin(), cfg.Log),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))

	ctx, cancel := context.WithCancel(context.Background())
	broadcaster := notify.NewBroadcaster(producer, adjustments, cfg.Log, 0)
	go broadcaster.Run(ctx)
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			cfg.Log.Error("Adjustment change consumer stopped", "error", err)
		}
	}()

	serverApp.OnShutdown("kafka", func() {
		broadcaster.Stop()
		cancel()
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})
	cfg.Log.Info("Adjustment sync over Kafka enabled",
		"topic", cfg.KafkaAdjustmentsTopic,
		"group", cfg.KafkaConsumerGroup,
		"origin", adjustments.Origin(),
	)
}

func resume(cfg *config.Config, floorService service.FloorService) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := floorService.Resume(ctx); err != nil {
		cfg.Log.Warn("Could not resume seated reservations", "error", err)
	}
}
