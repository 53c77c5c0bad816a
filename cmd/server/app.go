package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	adminhandler "grievance/internal/admin/handler"
	adminservice "grievance/internal/admin/service"
	authhandler "grievance/internal/auth/handler"
	authservice "grievance/internal/auth/service"
	"grievance/internal/auth/store/pending"
	refreshtoken "grievance/internal/auth/store/refresh-token"
	"grievance/internal/auth/store/revocation"
	"grievance/internal/auth/store/user"
	"grievance/internal/complaint/adapters"
	complainthandler "grievance/internal/complaint/handler"
	complaintservice "grievance/internal/complaint/service"
	complaintstore "grievance/internal/complaint/store"
	"grievance/internal/complaint/tracking"
	employeehandler "grievance/internal/employee/handler"
	employeeservice "grievance/internal/employee/service"
	entityhandler "grievance/internal/entity/handler"
	entityservice "grievance/internal/entity/service"
	entitystore "grievance/internal/entity/store"
	jwttoken "grievance/internal/jwt_token"
	"grievance/internal/notification/dispatch"
	notificationhandler "grievance/internal/notification/handler"
	"grievance/internal/notification/mail"
	"grievance/internal/notification/push"
	notificationservice "grievance/internal/notification/service"
	notificationstore "grievance/internal/notification/store"
	"grievance/internal/platform/config"
	"grievance/internal/platform/database"
	"grievance/internal/platform/kafka"
	"grievance/internal/platform/metrics"
	platformredis "grievance/internal/platform/redis"
	ratelimitconfig "grievance/internal/ratelimit/config"
	ratelimithandler "grievance/internal/ratelimit/handler"
	ratelimitmw "grievance/internal/ratelimit/middleware"
	ratelimitservice "grievance/internal/ratelimit/service"
	"grievance/internal/ratelimit/store/blocklist"
	"grievance/internal/ratelimit/store/bucket"
	"grievance/internal/seed"
	"grievance/internal/storage"
	httptransport "grievance/internal/transport/http"
	"grievance/internal/upload"
	audit "grievance/pkg/platform/audit"
	"grievance/pkg/platform/audit/publisher"
	auditmemory "grievance/pkg/platform/audit/store/memory"
	auditpostgres "grievance/pkg/platform/audit/store/postgres"
	"grievance/pkg/platform/audit/worker"
	"grievance/pkg/platform/tx"
)

const appName = "Grievance"

// app owns every long-lived dependency of the process. Fields that depend on
// optional infrastructure (db, redis, producer, relay) stay nil when that
// infrastructure is not configured.
type app struct {
	cfg     config.Server
	logger  *slog.Logger
	metrics *metrics.Metrics

	db       *sqlx.DB
	redis    *platformredis.Client
	producer *kafka.Producer
	files    http.Handler

	users         user.Store
	refreshTokens refreshtoken.Store
	entities      entitystore.Store

	auth          *authservice.Service
	entityService *entityservice.Service
	employees     *employeeservice.Service
	complaints    *complaintservice.Service
	citizens      *adminservice.Service
	notifications *notificationservice.Service
	rateLimits    *ratelimitservice.Service

	tokens     *jwttoken.JWTServiceAdapter
	revoked    revocation.List
	limiter    *ratelimitmw.Middleware
	dispatcher *dispatch.Dispatcher
	relay      *worker.Worker
	localRates *bucket.InMemoryBucketStore

	closers []func()
}

type stores struct {
	users         user.Store
	pending       pending.Store
	refreshTokens refreshtoken.Store
	revocations   revocation.List
	entities      entitystore.Store
	complaints    complaintstore.Store
	sequence      tracking.Sequence
	inbox         notificationstore.Store
	audit         interface {
		audit.Store
		audit.Outbox
	}
	tx tx.Runner
}

func newApp(ctx context.Context, cfg config.Server, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	if !cfg.MemoryMode {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		a.db = db
		a.closers = append(a.closers, func() { _ = db.Close() })
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		a.redis = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
	}

	if cfg.Kafka.Brokers != "" {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		if producer != nil {
			a.producer = producer
			a.closers = append(a.closers, producer.Close)
		}
	}

	st := a.newStores()
	a.users = st.users
	a.refreshTokens = st.refreshTokens
	a.entities = st.entities
	a.revoked = st.revocations

	objects, err := a.newObjectStore(ctx)
	if err != nil {
		return err
	}

	auditPublisher := publisher.NewPublisher(st.audit, publisher.WithLogger(a.logger))
	if a.producer != nil {
		a.relay = worker.NewWorker(st.audit, a.producer, st.tx, worker.WithLogger(a.logger))
	}

	pusher, err := a.newPusher(ctx)
	if err != nil {
		return err
	}
	mailer := mail.NewMailer(a.newMailSender(), appName)
	a.dispatcher = dispatch.New(st.inbox, mailer, pusher,
		dispatch.WithLogger(a.logger),
		dispatch.WithMetrics(a.metrics),
		dispatch.WithWorkers(cfg.Notification.Workers),
		dispatch.WithQueueSize(cfg.Notification.QueueSize),
	)
	a.closers = append(a.closers, a.dispatcher.Close)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	a.tokens = jwttoken.NewJWTServiceAdapter(jwtService)

	a.auth, err = authservice.New(st.users, st.pending, st.refreshTokens, st.revocations, jwtService, mailer,
		authservice.Config{
			AccessTTL:       cfg.Auth.AccessTTL,
			RefreshTTL:      cfg.Auth.RefreshTTL,
			VerificationTTL: cfg.Auth.VerificationTTL,
		},
		authservice.WithLogger(a.logger),
		authservice.WithAuditPublisher(auditPublisher),
		authservice.WithTx(st.tx),
		authservice.WithMetrics(a.metrics),
		authservice.WithPushSender(pusher),
	)
	if err != nil {
		return err
	}

	a.employees = employeeservice.New(st.users, st.entities, st.refreshTokens,
		employeeservice.WithLogger(a.logger),
		employeeservice.WithAuditPublisher(auditPublisher),
		employeeservice.WithTx(st.tx),
	)
	a.entityService = entityservice.New(st.entities, st.complaints, a.employees,
		entityservice.WithLogger(a.logger),
		entityservice.WithAuditPublisher(auditPublisher),
		entityservice.WithTx(st.tx),
	)

	uploads := upload.NewService(objects, upload.WithLogger(a.logger), upload.WithMetrics(a.metrics))
	notifier := adapters.NewNotifier(st.users, st.entities, a.dispatcher, cfg.PublicOrigin, a.logger)
	a.complaints = complaintservice.New(st.complaints, st.entities, tracking.NewGenerator(st.sequence), uploads,
		complaintservice.WithLogger(a.logger),
		complaintservice.WithAuditPublisher(auditPublisher),
		complaintservice.WithTx(st.tx),
		complaintservice.WithNotifier(notifier),
		complaintservice.WithMetrics(a.metrics),
		complaintservice.WithLockTTL(cfg.Complaint.LockTTL),
	)
	a.citizens = adminservice.New(st.users, a.complaints)
	a.notifications = notificationservice.New(st.inbox)

	return a.buildRateLimits()
}

func (a *app) newStores() stores {
	if a.db == nil {
		st := stores{
			users:         user.NewInMemory(),
			pending:       pending.NewInMemory(),
			refreshTokens: refreshtoken.NewInMemory(),
			revocations:   revocation.NewInMemoryTRL(time.Now),
			entities:      entitystore.NewInMemory(),
			complaints:    complaintstore.NewInMemory(),
			sequence:      tracking.NewInMemorySequence(),
			inbox:         notificationstore.NewInMemory(),
			audit:         auditmemory.NewInMemoryStore(),
			tx:            tx.NewInMemory(),
		}
		if a.redis != nil {
			st.revocations = revocation.NewRedisTRL(a.redis.Client)
		}
		return st
	}

	st := stores{
		users:         user.NewPostgres(a.db),
		pending:       pending.NewPostgres(a.db),
		refreshTokens: refreshtoken.NewPostgres(a.db),
		revocations:   revocation.NewPostgresTRL(a.db),
		entities:      entitystore.NewPostgres(a.db),
		complaints:    complaintstore.NewPostgres(a.db),
		sequence:      tracking.NewPostgresSequence(a.db),
		inbox:         notificationstore.NewPostgres(a.db),
		audit:         auditpostgres.New(a.db),
		tx:            tx.NewPostgres(a.db),
	}
	if a.redis != nil {
		st.revocations = revocation.NewRedisTRL(a.redis.Client)
	}
	return st
}

func (a *app) newObjectStore(ctx context.Context) (storage.ObjectStore, error) {
	sc := a.cfg.Storage
	if sc.Driver == "minio" {
		store, err := storage.NewMinio(storage.MinioConfig{
			Endpoint:   sc.Endpoint,
			AccessKey:  sc.AccessKey,
			SecretKey:  sc.SecretKey,
			Bucket:     sc.Bucket,
			Region:     sc.Region,
			UseSSL:     sc.UseSSL,
			PresignTTL: sc.PresignTTL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx, sc.Region); err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := storage.NewLocal(sc.LocalDir, strings.TrimRight(a.cfg.PublicOrigin, "/")+"/files")
	if err != nil {
		return nil, err
	}
	a.files = store.Handler()
	return store, nil
}

func (a *app) newPusher(ctx context.Context) (dispatch.Pusher, error) {
	pc := a.cfg.Push
	if pc.ProjectID == "" {
		return push.Disabled{Logger: a.logger}, nil
	}
	fcm, err := push.NewFCM(ctx, push.Config{
		ProjectID:       pc.ProjectID,
		CredentialsFile: pc.CredentialsFile,
		RatePerSecond:   pc.RatePerSecond,
	}, push.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	return fcm, nil
}

func (a *app) newMailSender() mail.Sender {
	mc := a.cfg.Mail
	if mc.Host == "" {
		return mail.LogSender{Logger: a.logger}
	}
	return mail.NewSMTP(mail.Config{
		Host:     mc.Host,
		Port:     mc.Port,
		Username: mc.Username,
		Password: mc.Password,
		From:     mc.From,
		AppName:  appName,
	})
}

func (a *app) buildRateLimits() error {
	rc := a.cfg.RateLimit
	policies, err := ratelimitconfig.Load(rc.PolicyFile)
	if err != nil {
		return err
	}

	clock := time.Now
	a.localRates = bucket.New(bucket.WithClock(clock))
	var (
		buckets ratelimitservice.BucketStore = a.localRates
		blocks  ratelimitservice.BlockStore  = blocklist.NewInMemory(blocklist.WithClock(clock))
	)
	opts := []ratelimitservice.Option{
		ratelimitservice.WithClock(clock),
		ratelimitservice.WithLogger(a.logger),
		ratelimitservice.WithMetrics(a.metrics),
		ratelimitservice.WithBlockRule(rc.BlockThreshold, rc.BlockWindow, rc.BlockDuration),
	}
	if a.redis != nil {
		buckets = bucket.NewRedis(a.redis.Client)
		blocks = blocklist.NewRedis(a.redis.Client, blocklist.WithClock(clock))
		opts = append(opts, ratelimitservice.WithFallback(a.localRates))
	}

	a.rateLimits, err = ratelimitservice.New(policies, buckets, blocks, opts...)
	if err != nil {
		return err
	}
	a.limiter = ratelimitmw.New(a.rateLimits, a.logger, ratelimitmw.WithPolicies(a.rateLimits))
	return nil
}

func (a *app) router() http.Handler {
	auth := authhandler.New(a.auth, a.logger, a.limiter)
	entities := entityhandler.New(a.entityService, a.logger)
	employees := employeehandler.New(a.employees, a.logger)
	complaints := complainthandler.New(a.complaints, a.logger, a.limiter)
	notifications := notificationhandler.New(a.notifications, a.logger)
	citizens := adminhandler.New(a.citizens, a.complaints, a.logger)
	rateLimits := ratelimithandler.New(a.rateLimits, a.logger)

	return httptransport.NewRouter(httptransport.Config{
		Logger:      a.logger,
		Tokens:      a.tokens,
		Revocations: a.revoked,
		Guard:       a.limiter,
		Limiter:     a.limiter,
		Metrics:     a.metrics,
		Files:       a.files,
		Health:      a.healthChecks(),
	}, httptransport.Routes{
		Public:        []func(chi.Router){auth.RegisterPublic, entities.RegisterPublic, complaints.RegisterPublic},
		Authenticated: []func(chi.Router){auth.RegisterAuthenticated, notifications.Register},
		Citizen:       []func(chi.Router){complaints.RegisterCitizen},
		Employee:      []func(chi.Router){complaints.RegisterEmployee},
		AdminPublic:   []func(chi.Router){auth.RegisterAdminPublic},
		Admin: []func(chi.Router){
			auth.RegisterAdmin,
			entities.RegisterAdmin,
			employees.RegisterAdmin,
			citizens.RegisterAdmin,
			complaints.RegisterAdmin,
			rateLimits.RegisterAdmin,
		},
	})
}

func (a *app) healthChecks() []httptransport.HealthCheck {
	var checks []httptransport.HealthCheck
	if a.db != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "postgres", Check: a.db.PingContext})
	}
	if a.redis != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: a.redis.Health})
	}
	if a.producer != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "kafka", Check: a.producer.Health})
	}
	return checks
}

func (a *app) seeder() *seed.Seeder {
	return seed.New(a.users, a.entities)
}

// sweep runs every periodic cleanup once. Failures are logged so one broken
// job does not starve the others.
func (a *app) sweep(ctx context.Context, now time.Time) {
	if n, err := a.complaints.UnlockExpired(ctx, now); err != nil {
		a.logger.ErrorContext(ctx, "failed to release expired locks", "error", err)
	} else if n > 0 {
		a.logger.InfoContext(ctx, "expired locks released", "count", n)
	}
	if _, err := a.auth.CleanupExpiredRegistrations(ctx, now); err != nil {
		a.logger.ErrorContext(ctx, "failed to clean up registrations", "error", err)
	}
	if n, err := a.refreshTokens.DeleteExpired(ctx, now); err != nil {
		a.logger.ErrorContext(ctx, "failed to delete expired refresh tokens", "error", err)
	} else if n > 0 {
		a.logger.DebugContext(ctx, "expired refresh tokens deleted", "count", n)
	}
	a.localRates.Sweep(now)
}

func (a *app) requireDatabase() error {
	if a.db == nil {
		return errors.New("this command needs a database; unset memory_mode and set database.url")
	}
	return nil
}

// Close runs the registered closers in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func describeStorage(cfg config.StorageConfig) string {
	if cfg.Driver == "minio" {
		return fmt.Sprintf("minio bucket %s at %s", cfg.Bucket, cfg.Endpoint)
	}
	return "local directory " + cfg.LocalDir
}
