// Package bootstrap wires the gateway's config, connections, and routes
// together, following the teacher's internal/bootstrap/{config,server,
// service}.go split (see components/audit/internal/bootstrap for the
// closest-shaped teacher example: one HTTP server, no gRPC).
package bootstrap

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/gofiber/fiber/v2"

	gwbatch "github.com/yorutsuke/yorutsuke/components/gateway/internal/batch"
	gwhttp "github.com/yorutsuke/yorutsuke/components/gateway/internal/http"
	gwmongo "github.com/yorutsuke/yorutsuke/components/gateway/internal/mongo"
	gwpermit "github.com/yorutsuke/yorutsuke/components/gateway/internal/permit"
	"github.com/yorutsuke/yorutsuke/components/gateway/internal/postgres"
	"github.com/yorutsuke/yorutsuke/components/gateway/internal/quota"
	"github.com/yorutsuke/yorutsuke/internal/platform/mconfig"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
	"github.com/yorutsuke/yorutsuke/internal/platform/mmongo"
	"github.com/yorutsuke/yorutsuke/internal/platform/mobjectstore"
	"github.com/yorutsuke/yorutsuke/internal/platform/mpostgres"
	"github.com/yorutsuke/yorutsuke/internal/platform/mredis"
	"github.com/yorutsuke/yorutsuke/internal/platform/msecrets"
	"github.com/yorutsuke/yorutsuke/internal/platform/msystem"
	"github.com/yorutsuke/yorutsuke/internal/platform/mzap"
	"github.com/yorutsuke/yorutsuke/internal/platform/nethttp"
)

// ApplicationName identifies this binary in logs and telemetry.
const ApplicationName = "gateway"

// Config is the gateway's complete environment-driven configuration.
type Config struct {
	EnvName       string `env:"ENV_NAME"       envDefault:"local"`
	LogLevel      string `env:"LOG_LEVEL"      envDefault:"info"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:":8080"`

	PostgresPrimaryDSN string `env:"POSTGRES_PRIMARY_DSN"`
	PostgresReplicaDSN string `env:"POSTGRES_REPLICA_DSN"`
	PostgresDBName     string `env:"POSTGRES_DB_NAME" envDefault:"yorutsuke"`
	MigrationsPath     string `env:"MIGRATIONS_PATH"`

	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"yorutsuke"`

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	S3Bucket         string `env:"S3_BUCKET"`
	SecretsManagerID string `env:"PERMIT_SIGNING_SECRET_ID"`
	BedrockRoleArn   string `env:"BEDROCK_BATCH_ROLE_ARN"`
}

// Service is everything main.go needs to run and shut down the gateway.
type Service struct {
	*Server
	Logger mlog.Logger
}

// Init loads configuration, opens every backing connection, and wires the
// HTTP routes, returning a ready-to-run Service.
func Init(ctx context.Context) (*Service, error) {
	mconfig.LoadLocalEnv()

	cfg := &Config{}
	if err := mconfig.FromEnv(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}

	logger, err := mzap.New(cfg.EnvName, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build logger: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}

	objects := mobjectstore.New(s3.NewFromConfig(awsCfg), cfg.S3Bucket)
	secrets := msecrets.New(secretsmanager.NewFromConfig(awsCfg), cfg.SecretsManagerID)

	pg := &mpostgres.Connection{
		ConnectionStringPrimary: cfg.PostgresPrimaryDSN,
		ConnectionStringReplica: cfg.PostgresReplicaDSN,
		PrimaryDBName:           cfg.PostgresDBName,
		MigrationsPath:          cfg.MigrationsPath,
		Logger:                  logger,
	}
	transactions := postgres.NewTransactionRepository(pg)

	mongoConn := &mmongo.Connection{ConnectionStringSource: cfg.MongoURI, Database: cfg.MongoDatabase, Logger: logger}

	jobs, err := gwmongo.NewBatchJobRepository(ctx, mongoConn)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build batch job repository: %w", err)
	}

	redisConn := &mredis.Connection{ConnectionStringSource: cfg.RedisURL, Logger: logger}

	redisClient, err := redisConn.GetDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect redis: %w", err)
	}

	clock := msystem.Clock{}
	random := msystem.Random{}

	permits := &gwpermit.Issuer{Secrets: secrets, Clock: clock}

	orchestrator := &gwbatch.Orchestrator{
		Jobs:    jobs,
		Objects: objects,
		Vendor: &gwbatch.BedrockVendor{
			Client: bedrock.NewFromConfig(awsCfg), Bucket: cfg.S3Bucket, RoleArn: cfg.BedrockRoleArn,
		},
		Clock:  clock,
		Random: random,
		Logger: logger,
	}

	handler := &gwhttp.Handler{
		Objects:       objects,
		Permits:       permits,
		LegacyQuota:   &quota.LegacyCounter{Client: redisClient},
		EmergencyStop: &quota.EmergencyStop{Client: redisClient},
		Transactions:  transactions,
		BatchJobs:     jobs,
		Orchestrator:  orchestrator,
		Clock:         clock,
		Random:        random,
		Logger:        logger,
	}

	app := fiber.New()
	app.Use(nethttp.WithCORS())
	app.Use(nethttp.WithHTTPLogging(logger))
	gwhttp.RegisterRoutes(app, handler)

	server := NewServer(cfg, app, logger)

	return &Service{Server: server, Logger: logger}, nil
}
