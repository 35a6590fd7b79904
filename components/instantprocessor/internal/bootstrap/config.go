// Package bootstrap wires the instant processor's config, AWS clients, and
// SQS consumer loop together, following the same Config/Service/Init/Run
// split as components/gateway/internal/bootstrap and
// components/client/internal/bootstrap.
package bootstrap

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yorutsuke/yorutsuke/components/gateway/internal/postgres"
	ipconsumer "github.com/yorutsuke/yorutsuke/components/instantprocessor/internal/consumer"
	"github.com/yorutsuke/yorutsuke/components/instantprocessor/internal/pipeline"
	"github.com/yorutsuke/yorutsuke/components/instantprocessor/internal/vision"
	"github.com/yorutsuke/yorutsuke/internal/platform/mconfig"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
	"github.com/yorutsuke/yorutsuke/internal/platform/mobjectstore"
	"github.com/yorutsuke/yorutsuke/internal/platform/mpostgres"
	"github.com/yorutsuke/yorutsuke/internal/platform/msqs"
	"github.com/yorutsuke/yorutsuke/internal/platform/msystem"
	"github.com/yorutsuke/yorutsuke/internal/platform/mzap"
)

// ApplicationName identifies this binary in logs and telemetry.
const ApplicationName = "instantprocessor"

// Config is the instant processor's complete environment-driven
// configuration.
type Config struct {
	EnvName  string `env:"ENV_NAME"  envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	S3Bucket           string `env:"S3_BUCKET"`
	UploadEventsSQSURL string `env:"UPLOAD_EVENTS_SQS_URL"`
	VisionModelID      string `env:"VISION_MODEL_ID" envDefault:"anthropic.claude-3-haiku-20240307-v1:0"`

	PostgresPrimaryDSN string `env:"POSTGRES_PRIMARY_DSN"`
	PostgresReplicaDSN string `env:"POSTGRES_REPLICA_DSN"`
	PostgresDBName     string `env:"POSTGRES_DB_NAME" envDefault:"yorutsuke"`
	MigrationsPath     string `env:"MIGRATIONS_PATH"`
}

// Service is everything main.go needs to run and shut down the instant
// processor.
type Service struct {
	Consumer *ipconsumer.Consumer
	Logger   mlog.Logger
}

// Init loads configuration, opens every backing connection, and returns a
// ready-to-run Service.
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

	clock := msystem.Clock{}

	processor := &pipeline.Processor{
		Objects:      objects,
		Transactions: transactions,
		Vision:       &vision.BedrockModel{Client: bedrockruntime.NewFromConfig(awsCfg), ModelID: cfg.VisionModelID},
		Clock:        clock,
		Logger:       logger,
	}

	queue := &msqs.Queue{Client: sqs.NewFromConfig(awsCfg), QueueURL: cfg.UploadEventsSQSURL, Logger: logger}

	events := &ipconsumer.Consumer{Queue: queue, Pipeline: processor, Logger: logger}

	return &Service{Consumer: events, Logger: logger}, nil
}
