// Package http wires the gateway's Fiber routes (spec.md §6.2) to the
// domain packages that do the actual work: permit issuance/verification,
// quota enforcement, the batch orchestrator, the Postgres transaction
// store, and the Mongo job store. Handlers stay thin — decode, dispatch,
// encode — following the teacher's adapters/http/in convention.
package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	gwmongo "github.com/yorutsuke/yorutsuke/components/gateway/internal/mongo"
	gwpermit "github.com/yorutsuke/yorutsuke/components/gateway/internal/permit"
	"github.com/yorutsuke/yorutsuke/components/gateway/internal/quota"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
	"github.com/yorutsuke/yorutsuke/internal/platform/nethttp"
)

// presignTTL is the presigned PUT URL lifetime (spec.md §4.1 step 5).
const presignTTL = 30 * time.Minute

// TransactionStore is the narrow slice of the Postgres transaction
// repository the HTTP layer needs, satisfied by
// components/gateway/internal/postgres.TransactionRepository and by a
// fake in tests.
type TransactionStore interface {
	CreateIfAbsent(ctx context.Context, tx *transaction.Transaction) (bool, error)
	UpdateWithVersionCheck(ctx context.Context, tx *transaction.Transaction) (bool, *transaction.Transaction, error)
	ListSince(ctx context.Context, userID ids.UserID, cursor string, limit int) ([]transaction.Transaction, string, error)
	DeleteAllForUser(ctx context.Context, userID ids.UserID) (int64, error)
	EarliestGuestTTL(ctx context.Context, userID ids.UserID) (*int64, error)
}

// JobStatusStore is the narrow slice of the Mongo batch-job repository the
// /batch/jobs/{jobId} poll endpoint needs.
type JobStatusStore interface {
	FindByJobID(ctx context.Context, jobID ids.JobID) (gwmongo.BatchJob, bool, error)
}

// Handler holds every dependency the gateway's routes need. Each field is a
// capability (interface or a narrow concrete type from a sibling package),
// so tests substitute fakes without standing up Postgres, Mongo, or Redis.
type Handler struct {
	Objects       ports.ObjectStore
	Permits       *gwpermit.Issuer
	LegacyQuota   *quota.LegacyCounter
	EmergencyStop *quota.EmergencyStop
	Transactions  TransactionStore
	BatchJobs     JobStatusStore
	Orchestrator  ports.BatchOrchestrator
	Clock         ports.Clock
	Random        ports.Random
	Logger        mlog.Logger
}

func (h *Handler) logger() mlog.Logger {
	if h.Logger != nil {
		return h.Logger
	}

	return &mlog.NoneLogger{}
}

// RegisterRoutes mounts every gateway endpoint spec.md §6.2 names onto app.
func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", nethttp.Ping)

	app.Post("/presign", nethttp.WithBody(&presignRequest{}, h.Presign))
	app.Post("/permit", nethttp.WithBody(&permitRequest{}, h.IssuePermit))
	app.Post("/quota", nethttp.WithBody(&quotaRequest{}, h.Quota))

	app.Post("/batch/submit", nethttp.WithBody(&batchSubmitRequest{}, h.BatchSubmit))
	app.Get("/batch/jobs/:jobId", h.BatchJobStatus)

	app.Get("/admin/control", h.AdminControlGet)
	app.Post("/admin/control", nethttp.WithBody(&adminControlRequest{}, h.AdminControlPost))
	app.Post("/admin/delete-data", nethttp.WithBody(&adminDeleteDataRequest{}, h.AdminDeleteData))

	app.Post("/sync/push", nethttp.WithBody(&syncPushRequest{}, h.SyncPush))
	app.Post("/sync/pull", nethttp.WithBody(&syncPullRequest{}, h.SyncPull))
}
