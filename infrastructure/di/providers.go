package di

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"comments-api/application/commands"
	"comments-api/application/commands/bus"
	cmdhandlers "comments-api/application/commands/handlers"
	"comments-api/application/moderation"
	"comments-api/application/ports"
	"comments-api/application/queries"
	querybus "comments-api/application/queries/bus"
	queryhandlers "comments-api/application/queries/handlers"
	domainconfig "comments-api/domain/config"
	"comments-api/domain/core/entities"
	"comments-api/domain/core/valueobjects"
	"comments-api/infrastructure/config"
	"comments-api/infrastructure/messaging/eventbridge"
	"comments-api/infrastructure/messaging/local"
	"comments-api/infrastructure/persistence/cache"
	"comments-api/infrastructure/persistence/dynamodb"
	"comments-api/infrastructure/persistence/memory"
	"comments-api/infrastructure/persistence/sqlstore"
	"comments-api/infrastructure/sanitizer"
	"comments-api/interfaces/http/rest"
	"comments-api/pkg/auth"
	pkgerrors "comments-api/pkg/errors"
	"comments-api/pkg/observability"
	"comments-api/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "comments-api"

// Store is the selected comment store before caching.
type Store struct {
	Repository ports.CommentRepository
	Ready      rest.ReadinessCheck
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zcfg.Level = level

	return zcfg.Build(zap.Fields(zap.String("service", serviceName)))
}

// ProvideDomainConfig applies the service settings to the domain rules.
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	dc := domainconfig.LoadDomainConfig(cfg.Environment)
	if cfg.HoldForReview {
		dc = dc.HoldForReview()
	}
	return dc
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client. DYNAMODB_ENDPOINT points
// it at DynamoDB Local.
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideStore opens the configured backend. SQL stores are migrated on
// open; the DynamoDB table is expected to exist unless an endpoint override
// says this is DynamoDB Local.
func ProvideStore(ctx context.Context, cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (*Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		if cfg.DynamoDBEndpoint != "" {
			if err := dynamodb.EnsureTable(ctx, client, cfg.TableName, logger); err != nil {
				return nil, nil, err
			}
		}
		ready := func(ctx context.Context) error {
			_, err := client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(cfg.TableName)})
			return err
		}
		return &Store{
			Repository: dynamodb.NewCommentRepository(client, cfg.TableName, logger),
			Ready:      ready,
		}, func() {}, nil

	case config.StorePostgres, config.StoreSQLite:
		db, dialect, err := OpenDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlstore.Migrate(db, dialect, logger); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		cleanup := func() {
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close database", zap.Error(err))
			}
		}
		return &Store{
			Repository: sqlstore.NewCommentRepository(db, dialect, logger),
			Ready:      db.PingContext,
		}, cleanup, nil

	default:
		logger.Warn("Using the in-memory store; comments are lost on restart")
		return &Store{Repository: memory.NewCommentRepository()}, func() {}, nil
	}
}

// OpenDatabase connects to the configured SQL backend.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, sqlstore.Dialect, error) {
	dialect, err := sqlstore.DialectFor(cfg.StoreBackend)
	if err != nil {
		return nil, sqlstore.Dialect{}, err
	}
	dsn := cfg.DatabaseURL
	if dialect.Name == sqlstore.SQLite.Name {
		dsn = cfg.SQLitePath
	}
	db, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, sqlstore.Dialect{}, err
	}
	return db, dialect, nil
}

// ProvideRedisClient connects to Redis when the redis cache is selected and
// returns nil otherwise.
func ProvideRedisClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, func(), error) {
	if cfg.CacheBackend != config.CacheRedis {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideCache selects the cache backend; nil means caching is off.
func ProvideCache(cfg *config.Config, client *redis.Client) ports.Cache {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		return cache.NewRedisCache(client)
	case config.CacheMemory:
		return cache.NewMemoryCache(cfg.CacheTTL)
	default:
		return nil
	}
}

// ProvideCommentRepository puts the cache, if any, in front of the store.
func ProvideCommentRepository(store *Store, c ports.Cache, cfg *config.Config, logger *zap.Logger) ports.CommentRepository {
	if c == nil {
		return store.Repository
	}
	cacheCfg := cache.DefaultConfig()
	cacheCfg.TTL = cfg.CacheTTL
	return cache.NewCachingCommentRepository(store.Repository, c, cacheCfg, logger)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideMetrics creates the service's collectors. They are always
// registered; ENABLE_METRICS only controls the /metrics endpoint. With
// CLOUDWATCH_NAMESPACE set, observations are also pushed to CloudWatch,
// which is the only way they leave a Lambda.
func ProvideMetrics(cfg *config.Config, client *awscloudwatch.Client) *observability.Metrics {
	m := observability.NewMetrics("comments")
	if cfg.CloudWatchNamespace != "" {
		m.ExportTo(observability.NewCloudWatchSink(client, cfg.CloudWatchNamespace))
	}
	return m
}

// ProvideTracer creates the X-Ray tracer.
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideModerationHook selects where review requests go.
func ProvideModerationHook(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.ModerationHook {
	if cfg.ModerationHook == config.HookEventBridge {
		return eventbridge.NewPublisher(client, cfg.EventBusName, serviceName, logger)
	}
	return local.NewLogPublisher(logger)
}

// ProvideEventPublisher sends domain events to the same place as reviews.
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.ModerationHook == config.HookEventBridge {
		return eventbridge.NewPublisher(client, cfg.EventBusName, serviceName, logger)
	}
	return local.NewLogPublisher(logger)
}

// ProvideDispatcher creates the moderation dispatcher. The caller starts it.
func ProvideDispatcher(
	hook ports.ModerationHook,
	cfg *config.Config,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *moderation.Dispatcher {
	dcfg := moderation.DefaultConfig()
	dcfg.Workers = cfg.ModerationWorkers
	dcfg.QueueSize = cfg.ModerationQueueSize
	dcfg.RatePerSecond = cfg.ModerationRatePerSecond
	dcfg.Timeout = cfg.ModerationTimeout
	return moderation.NewDispatcher(hook, dcfg, metrics, tracer, logger)
}

// ProvideReviewQueue exposes the dispatcher to the use cases.
func ProvideReviewQueue(d *moderation.Dispatcher) ports.ReviewQueue {
	return d
}

// ProvideCommentFactory wires the factory to its collaborators.
func ProvideCommentFactory(dc *domainconfig.DomainConfig) *entities.CommentFactory {
	return entities.NewCommentFactory(
		valueobjects.NewUUIDProvider(),
		sanitizer.NewHTMLSanitizer(),
		valueobjects.NewSourceFactory(utils.IPValidatorFunc(utils.IsValidIP)),
		dc,
	)
}

// ProvideCommandBus creates the command bus with all comment handlers.
func ProvideCommandBus(
	repo ports.CommentRepository,
	factory *entities.CommentFactory,
	reviews ports.ReviewQueue,
	publisher ports.EventPublisher,
	dc *domainconfig.DomainConfig,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.MetricsMiddleware(metrics),
		bus.TracingMiddleware(tracer),
		bus.LoggingMiddleware(logger),
		bus.ValidationMiddleware(),
	)

	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.AddCommentCommand{}, bus.Typed(cmdhandlers.NewAddCommentHandler(repo, factory, reviews, publisher, dc, logger).Handle)},
		{commands.EditCommentCommand{}, bus.Typed(cmdhandlers.NewEditCommentHandler(repo, factory, reviews, publisher, logger).Handle)},
		{commands.RemoveCommentCommand{}, bus.Typed(cmdhandlers.NewRemoveCommentHandler(repo, factory, publisher, logger).Handle)},
	}
	for _, r := range registrations {
		if err := commandBus.Register(r.cmd, r.handler); err != nil {
			return nil, err
		}
	}
	return commandBus, nil
}

// ProvideQueryBus creates the query bus with the listing handlers.
func ProvideQueryBus(repo ports.CommentRepository, metrics *observability.Metrics, logger *zap.Logger) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()
	mw := querybus.NewMetricsMiddleware(metrics)

	if err := queryBus.Register(queries.ListCommentsQuery{},
		mw.Wrap(querybus.Typed(queryhandlers.NewListCommentsHandler(repo, logger).Handle))); err != nil {
		return nil, err
	}
	if err := queryBus.Register(queries.ListMainCommentsQuery{},
		mw.Wrap(querybus.Typed(queryhandlers.NewListMainCommentsHandler(repo, logger).Handle))); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideJWTValidator returns nil when JWT_SECRET is unset, which leaves the
// moderator routes open.
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; moderator routes are unauthenticated")
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
}

// ProvideRateLimiter throttles comment posting per IP. With Redis available
// the budget is shared across instances.
func ProvideRateLimiter(cfg *config.Config, client *redis.Client) *auth.IPRateLimiter {
	if cfg.RateLimitPerMinute == 0 {
		return nil
	}
	if client != nil {
		return auth.NewIPRateLimiterWith(
			auth.NewRedisRateLimiter(client, cfg.RateLimitPerMinute, time.Minute, cache.DefaultConfig().KeyPrefix),
			cfg.RateLimitPerMinute,
		)
	}
	return auth.NewIPRateLimiter(cfg.RateLimitPerMinute)
}

// ProvideErrorHandler creates the HTTP error translator.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideHTTPHandler builds the routed HTTP handler.
func ProvideHTTPHandler(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *pkgerrors.ErrorHandler,
	store *Store,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	validator *auth.JWTValidator,
	limiter *auth.IPRateLimiter,
	logger *zap.Logger,
) http.Handler {
	opts := rest.Options{
		EnableCORS:     cfg.EnableCORS,
		AllowedOrigins: cfg.AllowedOrigins,
		Tracer:         tracer,
		Validator:      validator,
		Limiter:        limiter,
		Ready:          store.Ready,
	}
	if cfg.EnableMetrics {
		opts.Metrics = metrics
	}
	return rest.NewRouter(commandBus, queryBus, errorHandler, opts, logger).Setup()
}
