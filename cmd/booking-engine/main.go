package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/ventecrm/booking-engine/internal/consumer"
	"github.com/ventecrm/booking-engine/internal/directory"
	"github.com/ventecrm/booking-engine/internal/engine"
	"github.com/ventecrm/booking-engine/internal/handlers"
	"github.com/ventecrm/booking-engine/internal/inbox"
	"github.com/ventecrm/booking-engine/internal/outbox"
	"github.com/ventecrm/booking-engine/internal/storage"
	"github.com/ventecrm/booking-engine/libs/config"
	"github.com/ventecrm/booking-engine/libs/db"
	"github.com/ventecrm/booking-engine/libs/httpx"
	"github.com/ventecrm/booking-engine/libs/kafkax"
	otelx "github.com/ventecrm/booking-engine/libs/otel"
	"github.com/ventecrm/booking-engine/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-engine")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 0)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	settingsRepo := storage.NewSettingsRepository(pool)
	meetingTypeRepo := storage.NewMeetingTypeRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool, outboxRepo)
	blackoutRepo := storage.NewUnavailableRepository(pool)
	idempotencyRepo := storage.NewIdempotencyRepository(pool)

	eng := engine.New(settingsRepo, meetingTypeRepo, bookingRepo, blackoutRepo, logger)

	directoryProvider, err := directory.NewProvider(config.String("DIRECTORY_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("directory provider init failed; host checks disabled", "err", err)
		directoryProvider = nil
	}

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	if topic := strings.TrimSpace(config.String("KAFKA_CONSUME_TOPIC", "directory.user.deactivated.v1")); topic != "" {
		deactivations := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "booking-engine"),
			Topic:   topic,
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				UserID string `json:"user_id"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.UserID == "" {
				logger.Error("missing user_id in event", "topic", msg.Topic)
				return nil
			}
			cancelled, err := bookingRepo.CancelFutureByHost(ctx, payload.UserID, time.Now().UTC(), "host deactivated")
			if err != nil {
				return err
			}
			logger.Info("cancelled bookings for deactivated host", "user_id", payload.UserID, "count", cancelled)
			return nil
		})
		go deactivations.Run(ctx)
	}

	bookingHandler := handlers.NewBookingHandler(eng, idempotencyRepo, directoryProvider, logger)
	calendarHandler := handlers.NewCalendarHandler(eng, blackoutRepo, meetingTypeRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/availability", bookingHandler.Availability)
	mux.HandleFunc("/api/v1/bookings", bookingHandler.Create)
	mux.HandleFunc("/api/v1/bookings/list", bookingHandler.List)
	mux.HandleFunc("/api/v1/bookings/reschedule", bookingHandler.Reschedule)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/calendar/settings", calendarHandler.Settings)
	mux.HandleFunc("/api/v1/calendar/unavailable-times", calendarHandler.UnavailableTimes)
	mux.HandleFunc("/api/v1/calendar/meeting-types", calendarHandler.MeetingTypes)

	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var limiter httpx.Middleware
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL; using in-memory rate limiter", "err", err)
			limiter = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
		} else {
			rdb := redis.NewClient(redisOpts)
			defer rdb.Close()
			limiter = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service).Middleware(logger, true)
		}
	} else {
		limiter = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(strings.Split(config.String("CORS_ALLOWED_ORIGINS", ""), ",")),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
		limiter,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking-engine")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
