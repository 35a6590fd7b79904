// Package ports declares the capability interfaces spec.md §9 names in
// place of dynamically-typed "service" objects: PresignGate, PermitStore,
// BatchOrchestrator, ObjectStore, KVStore, RelationalStore, Clock, Random,
// HTTPClient. Every concrete adapter (AWS, Postgres, in-memory fake)
// satisfies exactly one of these; domain code depends only on the
// interface, never the concrete type, so tests substitute a fake without
// touching the domain logic.
package ports

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/permit"
)

// Clock abstracts wall-clock reads so tests can control "now".
type Clock interface {
	Now() time.Time
}

// Random abstracts identifier/nonce generation.
type Random interface {
	UUID() string
}

// HTTPClient abstracts outbound HTTP calls (uploads, OCR submission, sync
// round-trips) so tests can substitute a recording fake instead of a real
// network call.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// KVStore is a small bucketed key-value capability, satisfied by mkv.Store
// client-side.
type KVStore interface {
	Put(bucket, key string, value any) error
	Get(bucket, key string, out any) error
	Delete(bucket, key string) error
	ForEach(bucket string, fn func(key string, value []byte) error) error
}

// ObjectStore is the blob storage capability (S3 in production), used for
// both presigned URL issuance and direct server-side object access.
type ObjectStore interface {
	PresignPut(ctx context.Context, key string, ttl time.Duration, metadata map[string]string) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// PresignGate is the client-facing capability for requesting a presigned
// upload URL, backed by an HTTP call to the gateway's /presign endpoint.
type PresignGate interface {
	Presign(ctx context.Context, req PresignRequest) (PresignResponse, error)
}

// PresignRequest mirrors spec.md §6.2's /presign request body.
type PresignRequest struct {
	UserID      ids.UserID
	FileName    string
	ContentType string
	Permit      *permit.Permit
	TraceID     ids.TraceID
}

// PresignResponse mirrors spec.md §6.2's /presign 200 response body.
type PresignResponse struct {
	URL     string
	Key     string
	TraceID ids.TraceID
}

// PermitStore is the capability for reading/writing the locally cached
// Permit and its usage counters (client-side), or for issuing/verifying
// permits (server-side) — both sides satisfy this narrow read/write shape,
// keeping the quota domain logic free of storage details.
type PermitStore interface {
	Load(ctx context.Context, userID ids.UserID) (permit.StoredPermit, error)
	Save(ctx context.Context, userID ids.UserID, stored permit.StoredPermit) error
}

// BatchOrchestrator is the capability for submitting an OCR batch job and
// checking its idempotency state (spec.md §4.5.2).
type BatchOrchestrator interface {
	Submit(ctx context.Context, req BatchSubmitRequest) (BatchSubmitResponse, error)
}

// BatchSubmitRequest mirrors spec.md §6.2's /batch/submit request body.
type BatchSubmitRequest struct {
	IntentID        ids.IntentID
	PendingImageIDs []ids.ImageID
	ModelID         string
	UserID          ids.UserID
}

// BatchSubmitResponse mirrors spec.md §6.2's /batch/submit 202 response.
type BatchSubmitResponse struct {
	JobID               ids.JobID
	Status               string
	StatusURL            string
	ImageCount           int
	EstimatedCostUSDCents int64
	EstimatedDuration    time.Duration
	Cached               bool
}

// RelationalStore is a minimal capability seam over a SQL-backed store,
// used where domain code needs to express "run this in a transaction"
// without depending on database/sql directly.
type RelationalStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
