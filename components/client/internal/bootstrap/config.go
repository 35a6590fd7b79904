// Package bootstrap wires the client's config, local storage, and the
// three long-lived Apps (upload worker, sync engine, network monitor)
// together, following the same config/server/service split as the
// gateway's bootstrap package.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/yorutsuke/yorutsuke/components/client/internal/gatewayclient"
	"github.com/yorutsuke/yorutsuke/components/client/internal/localstore"
	"github.com/yorutsuke/yorutsuke/components/client/internal/netmonitor"
	"github.com/yorutsuke/yorutsuke/components/client/internal/quota"
	"github.com/yorutsuke/yorutsuke/components/client/internal/sync"
	"github.com/yorutsuke/yorutsuke/components/client/internal/uploadqueue"
	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
	"github.com/yorutsuke/yorutsuke/internal/platform/mconfig"
	"github.com/yorutsuke/yorutsuke/internal/platform/mkv"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
	"github.com/yorutsuke/yorutsuke/internal/platform/msystem"
	"github.com/yorutsuke/yorutsuke/internal/platform/mzap"
)

// ApplicationName identifies this binary in logs and telemetry.
const ApplicationName = "client"

// permitBucket is the bbolt bucket localstore.PermitCache expects to find
// among the buckets the caller opened the Store with.
const permitBucket = "permits"

// Config is the client's complete environment-driven configuration.
type Config struct {
	EnvName  string `env:"ENV_NAME"  envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	UserID string `env:"USER_ID" envDefault:"guest-local"`

	DataDir        string `env:"DATA_DIR"         envDefault:"./data"`
	GatewayBaseURL string `env:"GATEWAY_BASE_URL" envDefault:"http://localhost:8080"`

	SyncIntervalSeconds    int `env:"SYNC_INTERVAL_SECONDS"     envDefault:"60"`
	NetPollIntervalSeconds int `env:"NET_POLL_INTERVAL_SECONDS" envDefault:"15"`
	PermitValidDays        int `env:"PERMIT_VALID_DAYS"         envDefault:"30"`
}

// Service is everything main.go needs to run the client.
type Service struct {
	*Launcher
	Logger mlog.Logger
}

// Init loads configuration, opens the local SQLite/bbolt stores, and wires
// the upload worker, sync engine, and network monitor.
func Init() (*Service, error) {
	mconfig.LoadLocalEnv()

	cfg := &Config{}
	if err := mconfig.FromEnv(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}

	logger, err := mzap.New(cfg.EnvName, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build logger: %w", err)
	}

	userID, err := ids.NewUserID(cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: invalid USER_ID: %w", err)
	}

	db, err := localstore.Open(cfg.DataDir + "/client.db")
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open sqlite: %w", err)
	}

	kv, err := mkv.Open(cfg.DataDir, permitBucket)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open bbolt: %w", err)
	}

	images := localstore.NewImageRepository(db)
	transactions := localstore.NewTransactionRepository(db)
	offlineQueue := localstore.NewOfflineQueueRepository(db)
	permits := localstore.NewPermitCache(kv)

	clock := msystem.Clock{}
	random := msystem.Random{}

	gateway := gatewayclient.New(cfg.GatewayBaseURL, &http.Client{Timeout: 30 * time.Second})

	quotaChecker := &quota.Checker{Store: permits, Clock: clock}

	blobs := localstore.NewBlobStore(cfg.DataDir + "/blobs")
	queue := uploadqueue.New(images, blobs, passthroughCompressor{}, logger)

	worker := &uploadqueue.Worker{
		Queue:      queue,
		Repo:       images,
		Blobs:      blobs,
		Compressor: passthroughCompressor{},
		Presign:    gateway,
		Quota:      quotaChecker,
		HTTP:       &http.Client{Timeout: 60 * time.Second},
		Clock:      clock,
		Random:     random,
		Logger:     logger,
	}

	if err := ensurePermit(cfg, permits, gateway, userID); err != nil {
		logger.Warnf("bootstrap: could not obtain initial permit: %v", err)
	}

	monitor := netmonitor.New(true)
	syncEngine := sync.New(transactions, offlineQueue, gateway, monitor, logger)

	netApp := &networkPoller{
		Monitor:  monitor,
		BaseURL:  cfg.GatewayBaseURL,
		Interval: time.Duration(cfg.NetPollIntervalSeconds) * time.Second,
	}

	syncApp := &syncScheduler{
		Engine:   syncEngine,
		UserID:   userID,
		Interval: time.Duration(cfg.SyncIntervalSeconds) * time.Second,
		Logger:   logger,
	}

	launcher := NewLauncher(logger, worker, syncApp, netApp)

	return &Service{Launcher: launcher, Logger: logger}, nil
}

// ensurePermit seeds the local permit cache on first run, issuing one from
// the gateway if none is cached yet (spec.md §4.4's client-side trigger:
// "on startup, if no permit is cached").
func ensurePermit(cfg *Config, permits *localstore.PermitCache, gateway *gatewayclient.Client, userID ids.UserID) error {
	ctx := context.Background()

	if _, err := permits.Load(ctx, userID); err == nil {
		return nil
	} else if _, ok := err.(mzerrors.EntityNotFoundError); !ok {
		return err
	}

	issued, err := gateway.IssuePermit(ctx, userID, cfg.PermitValidDays)
	if err != nil {
		return fmt.Errorf("bootstrap: issue permit: %w", err)
	}

	return permits.Save(ctx, userID, permit.StoredPermit{Permit: issued})
}
