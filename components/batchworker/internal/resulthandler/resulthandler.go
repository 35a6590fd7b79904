// Package resulthandler implements the batch result handler (spec.md
// §4.5.3): parse a vendor's output.jsonl, airlock each line, conditionally
// write the Transaction row in chunks with backoff, migrate the source
// object, and dead-letter what can't be migrated.
package resulthandler

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/yorutsuke/yorutsuke/components/gateway/internal/mongo"
	"github.com/yorutsuke/yorutsuke/internal/core/airlock"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/money"
	"github.com/yorutsuke/yorutsuke/internal/core/objectkey"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// chunkSize is the vendor batch-write limit spec.md §4.5.3 step 4 names.
const chunkSize = 25

// maxWriteAttempts bounds the exponential backoff on a single row write
// (spec.md §4.5.3 step 4: "chunked writes ... with exponential backoff
// 100·2^n ms").
const maxWriteAttempts = 4

const transactionIDLength = 24

// contentType matches the instant path: every receipt blob is compressed
// to WebP before it ever lands in uploads/.
const contentType = "image/webp"

// BatchJobStore is the slice of the gateway's Mongo-backed jobs table this
// handler needs: resolving a job's owner and marking it terminal once its
// output has been fully ingested.
type BatchJobStore interface {
	FindByJobID(ctx context.Context, jobID ids.JobID) (mongo.BatchJob, bool, error)
	MarkTerminal(ctx context.Context, jobID ids.JobID, status mongo.Status) error
}

// TransactionStore is the narrow write capability this handler needs,
// satisfied directly by components/gateway/internal/postgres.TransactionRepository
// — the instant and batch paths write the very same table under the same
// conditional-insert contract, so both reuse it rather than each keeping a
// private copy.
type TransactionStore interface {
	CreateIfAbsent(ctx context.Context, tx *transaction.Transaction) (bool, error)
}

// Handler ingests one job's output.jsonl.
type Handler struct {
	Objects      ports.ObjectStore
	Jobs         BatchJobStore
	Transactions TransactionStore
	Clock        ports.Clock
	Logger       mlog.Logger
}

func (h *Handler) logger() mlog.Logger {
	if h.Logger != nil {
		return h.Logger
	}

	return &mlog.NoneLogger{}
}

// outputLine is one JSON-Lines record in the vendor's output.jsonl, per
// spec.md §4.5.1 step 2's manifest schema echoed back with a result.
type outputLine struct {
	CustomData string `json:"customData"`
	Output     struct {
		Text string `json:"text"`
	} `json:"output"`
}

// HandleOutput runs spec.md §4.5.3's five steps against the job named by
// outputKey (a "batch-output/{jobId}/output.jsonl" key).
func (h *Handler) HandleOutput(ctx context.Context, outputKey string) error {
	jobID, err := objectkey.ParseBatchOutput(outputKey)
	if err != nil {
		return fmt.Errorf("resulthandler: %w", err)
	}

	job, found, err := h.Jobs.FindByJobID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("resulthandler: find job %s: %w", jobID, err)
	}

	if !found {
		return fmt.Errorf("resulthandler: job %s not found", jobID)
	}

	lines, err := h.readLines(ctx, outputKey)
	if err != nil {
		return fmt.Errorf("resulthandler: read %s: %w", outputKey, err)
	}

	now := h.Clock.Now()

	for start := 0; start < len(lines); start += chunkSize {
		end := start + chunkSize
		if end > len(lines) {
			end = len(lines)
		}

		h.processChunk(ctx, job, lines[start:end], now)
	}

	return h.Jobs.MarkTerminal(ctx, jobID, mongo.StatusCompleted)
}

func (h *Handler) readLines(ctx context.Context, key string) ([]string, error) {
	reader, err := h.Objects.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var lines []string

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, err
	}

	return lines, nil
}

func (h *Handler) processChunk(ctx context.Context, job mongo.BatchJob, lines []string, now time.Time) {
	for _, raw := range lines {
		var line outputLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil || line.CustomData == "" || line.Output.Text == "" {
			h.logger().Errorf("resulthandler: job %s: rejecting malformed line: %v", job.JobID, err)
			continue
		}

		imageID, err := ids.NewImageID(line.CustomData)
		if err != nil {
			h.logger().Errorf("resulthandler: job %s: bad image id %q: %v", job.JobID, line.CustomData, err)
			continue
		}

		h.processLine(ctx, job, imageID, line.Output.Text, now)
	}
}

func (h *Handler) processLine(ctx context.Context, job mongo.BatchJob, imageID ids.ImageID, outputText string, now time.Time) {
	fields, validationErrs := airlock.Parse(outputText)

	transactionID := DeriveTransactionID(job.JobID, imageID, job.SubmitTime)

	tx, err := toTransaction(transactionID, job.UserID, imageID, fields, validationErrs, now)
	if err != nil {
		h.logger().Errorf("resulthandler: job %s: image %s: build transaction: %v", job.JobID, imageID, err)
		return
	}

	if err := h.writeWithBackoff(ctx, tx); err != nil {
		h.logger().Errorf("resulthandler: job %s: image %s: write transaction: %v", job.JobID, imageID, err)
		return
	}

	if err := h.migrate(ctx, job.UserID, imageID, now); err != nil {
		h.logger().Errorf("resulthandler: job %s: image %s: migrate object, dead-lettering: %v", job.JobID, imageID, err)
		h.deadLetter(ctx, job.JobID, job.UserID, imageID, outputText, job.SubmitTime, now)
	}
}

// writeWithBackoff retries CreateIfAbsent against transient errors with
// spec.md §4.5.3 step 4's 100·2^n ms backoff. A non-error "already exists"
// result is not retried — it's the conditional-insert's designed outcome.
func (h *Handler) writeWithBackoff(ctx context.Context, tx *transaction.Transaction) error {
	var lastErr error

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(100*(1<<uint(attempt))) * time.Millisecond)
		}

		_, err := h.Transactions.CreateIfAbsent(ctx, tx)
		if err == nil {
			return nil
		}

		lastErr = err
	}

	return lastErr
}

// migrate copies uploads/{userId}/{imageId} to processed/{jstDate}/... and
// deletes the source, per spec.md §4.5.3 step 5.
func (h *Handler) migrate(ctx context.Context, userID ids.UserID, imageID ids.ImageID, now time.Time) error {
	sourceKey := objectkey.Upload(userID, imageID)

	reader, err := h.Objects.Get(ctx, sourceKey)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("buffer source: %w", err)
	}

	destKey := objectkey.Processed(now.In(resultJSTLocation()).Format("2006-01-02"), userID, imageID)
	if err := h.Objects.Put(ctx, destKey, bytes.NewReader(data), contentType); err != nil {
		return fmt.Errorf("copy to %s: %w", destKey, err)
	}

	return h.Objects.Delete(ctx, sourceKey)
}

// DeadLetterEnvelope is the JSON shape written to objectkey.DeadLetter on a
// migration failure — enough for an operator to replay steps 2-3 later via
// ReplayDeadLetter without re-running the whole batch.
type DeadLetterEnvelope struct {
	JobID      ids.JobID   `json:"jobId"`
	UserID     ids.UserID  `json:"userId"`
	ImageID    ids.ImageID `json:"imageId"`
	OutputText string      `json:"outputText"`
	SubmitTime time.Time   `json:"submitTime"`
}

func (h *Handler) deadLetter(ctx context.Context, jobID ids.JobID, userID ids.UserID, imageID ids.ImageID, outputText string, submitTime, now time.Time) {
	envelope := DeadLetterEnvelope{JobID: jobID, UserID: userID, ImageID: imageID, OutputText: outputText, SubmitTime: submitTime}

	payload, err := json.Marshal(envelope)
	if err != nil {
		h.logger().Errorf("resulthandler: encode dead letter for %s/%s: %v", jobID, imageID, err)
		return
	}

	key := objectkey.DeadLetter(jobID, now.UnixMilli())
	if err := h.Objects.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		h.logger().Errorf("resulthandler: write dead letter %s: %v", key, err)
	}
}

// ReplayDeadLetter re-runs spec.md §4.5.3 steps 2-3 (airlock, derive
// transactionId) against a previously-written DeadLetterEnvelope. It is a
// pure function: the caller is responsible for writing the returned row
// (via TransactionStore) and retrying the object migration — this only
// recomputes what a fresh ingest would have produced.
func ReplayDeadLetter(envelope DeadLetterEnvelope) (transaction.Transaction, error) {
	fields, validationErrs := airlock.Parse(envelope.OutputText)

	transactionID := DeriveTransactionID(envelope.JobID, envelope.ImageID, envelope.SubmitTime)

	tx, err := toTransaction(transactionID, envelope.UserID, envelope.ImageID, fields, validationErrs, envelope.SubmitTime)
	if err != nil {
		return transaction.Transaction{}, err
	}

	return *tx, nil
}

// DeriveTransactionID computes spec.md §4.5.3 step 3's deterministic id:
// sha256("{jobId}#{imageId}#{timestamp}")[:24]. submitTime (the job's own,
// immutable submission instant) stands in for "timestamp" so the id is
// stable across any retry of this same job.
func DeriveTransactionID(jobID ids.JobID, imageID ids.ImageID, submitTime time.Time) ids.TransactionID {
	input := jobID.String() + "#" + imageID.String() + "#" + strconv.FormatInt(submitTime.UnixMilli(), 10)
	sum := sha256.Sum256([]byte(input))

	return ids.TransactionID(hex.EncodeToString(sum[:])[:transactionIDLength])
}

func toTransaction(id ids.TransactionID, userID ids.UserID, imageID ids.ImageID, fields airlock.Fields, validationErrs []string, now time.Time) (*transaction.Transaction, error) {
	if len(validationErrs) > 0 {
		return &transaction.Transaction{
			ID: id, UserID: userID, ImageID: &imageID, Amount: 0, Type: transaction.TypeExpense,
			Date:        now.In(resultJSTLocation()).Format("2006-01-02"),
			Status:      transaction.StatusNeedsReview,
			Description: "needs_review: " + joinErrors(validationErrs),
			Version:     1, CreatedAt: now, UpdatedAt: now,
		}, nil
	}

	amount, err := money.New(fields.Amount)
	if err != nil {
		return nil, err
	}

	return &transaction.Transaction{
		ID: id, UserID: userID, ImageID: &imageID, Amount: amount, Type: transaction.Type(fields.Type),
		Date: fields.Date, Merchant: fields.Merchant, Category: transaction.Category(fields.Category),
		Description: fields.Description, Status: transaction.StatusUnconfirmed,
		Version: 1, CreatedAt: now, UpdatedAt: now,
	}, nil
}

func joinErrors(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}

		out += e
	}

	return out
}

func resultJSTLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}

	return loc
}
