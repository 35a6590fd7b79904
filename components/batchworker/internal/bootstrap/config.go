// Package bootstrap wires the batch worker's config and connections
// together, following the same Config/Service/Init/Run split as the
// gateway and instant processor bootstrap packages.
package bootstrap

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	gwmongo "github.com/yorutsuke/yorutsuke/components/gateway/internal/mongo"
	"github.com/yorutsuke/yorutsuke/components/gateway/internal/postgres"
	bwconsumer "github.com/yorutsuke/yorutsuke/components/batchworker/internal/consumer"
	"github.com/yorutsuke/yorutsuke/components/batchworker/internal/resulthandler"
	"github.com/yorutsuke/yorutsuke/internal/platform/mconfig"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
	"github.com/yorutsuke/yorutsuke/internal/platform/mmongo"
	"github.com/yorutsuke/yorutsuke/internal/platform/mobjectstore"
	"github.com/yorutsuke/yorutsuke/internal/platform/mpostgres"
	"github.com/yorutsuke/yorutsuke/internal/platform/mrabbitmq"
	"github.com/yorutsuke/yorutsuke/internal/platform/msystem"
	"github.com/yorutsuke/yorutsuke/internal/platform/mzap"
)

// ApplicationName identifies this binary in logs and telemetry.
const ApplicationName = "batchworker"

// Config is the batch worker's complete environment-driven configuration.
type Config struct {
	EnvName  string `env:"ENV_NAME"  envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	S3Bucket string `env:"S3_BUCKET"`

	RabbitMQURL       string `env:"RABBITMQ_URL"`
	ResultQueueName   string `env:"BATCH_RESULT_QUEUE_NAME" envDefault:"yorutsuke.batch-results"`

	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"yorutsuke"`

	PostgresPrimaryDSN string `env:"POSTGRES_PRIMARY_DSN"`
	PostgresReplicaDSN string `env:"POSTGRES_REPLICA_DSN"`
	PostgresDBName     string `env:"POSTGRES_DB_NAME" envDefault:"yorutsuke"`
	MigrationsPath     string `env:"MIGRATIONS_PATH"`
}

// Service is everything main.go needs to run the batch worker.
type Service struct {
	Consumer *bwconsumer.Consumer
	Logger   mlog.Logger
}

// Init loads configuration, opens every backing connection, and wires the
// result consumer, returning a ready-to-run Service.
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

	handler := &resulthandler.Handler{
		Objects:      objects,
		Jobs:         jobs,
		Transactions: transactions,
		Clock:        msystem.Clock{},
		Logger:       logger,
	}

	rabbit := &mrabbitmq.Connection{ConnectionStringSource: cfg.RabbitMQURL, Logger: logger}

	consumer := &bwconsumer.Consumer{
		Connection: rabbit,
		Handler:    handler,
		QueueName:  cfg.ResultQueueName,
		Logger:     logger,
	}

	return &Service{Consumer: consumer, Logger: logger}, nil
}
