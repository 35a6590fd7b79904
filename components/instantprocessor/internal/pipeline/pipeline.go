// Package pipeline implements the instant (per-object) OCR path, spec.md
// §4.5.1: derive identifiers from the triggering key, invoke the vision
// model, airlock its response, conditionally write the Transaction row,
// and move the object out of uploads/.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yorutsuke/yorutsuke/internal/core/airlock"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
	"github.com/yorutsuke/yorutsuke/internal/core/money"
	"github.com/yorutsuke/yorutsuke/internal/core/objectkey"
	"github.com/yorutsuke/yorutsuke/internal/core/ports"
	"github.com/yorutsuke/yorutsuke/internal/core/transaction"
	"github.com/yorutsuke/yorutsuke/internal/platform/mlog"
)

// contentType is what the upload queue always compresses a receipt blob
// to before it ever reaches uploads/ (components/client/internal/uploadqueue
// compresses to WebP); the instant processor never sees any other shape.
const contentType = "image/webp"

// VisionModel is the capability for invoking the single-image vision model
// (components/instantprocessor/internal/vision.BedrockModel in production).
type VisionModel interface {
	Describe(ctx context.Context, image []byte, contentType string) (string, error)
}

// TransactionStore is the narrow slice of the gateway's authoritative
// transaction repository this pipeline needs — satisfied directly by
// components/gateway/internal/postgres.TransactionRepository, reused
// across process boundaries rather than duplicated, since both services
// write the same table under the same conditional-insert contract.
type TransactionStore interface {
	CreateIfAbsent(ctx context.Context, tx *transaction.Transaction) (bool, error)
}

// JSTLocation is the timezone processed/ partitioning uses (spec.md
// §4.5.3's "JST date used exclusively for dated partitioning" applies
// equally to the instant path's own processed/ destination).
var JSTLocation = mustLoadJST()

func mustLoadJST() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}

	return loc
}

// Processor runs the instant OCR path for one object key at a time.
type Processor struct {
	Objects      ports.ObjectStore
	Transactions TransactionStore
	Vision       VisionModel
	Clock        ports.Clock
	Logger       mlog.Logger
}

func (p *Processor) logger() mlog.Logger {
	if p.Logger != nil {
		return p.Logger
	}

	return &mlog.NoneLogger{}
}

// ProcessObject runs spec.md §4.5.1's five steps against key, an
// "uploads/{userId}/{timestamp}-{filename}" object key.
func (p *Processor) ProcessObject(ctx context.Context, key string) error {
	userID, imageID, err := objectkey.ParseUpload(key)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	transactionID := ids.TransactionIDForImage(imageID)

	reader, err := p.Objects.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("pipeline: read %s: %w", key, err)
	}

	image, err := io.ReadAll(reader)
	reader.Close()

	if err != nil {
		return fmt.Errorf("pipeline: buffer %s: %w", key, err)
	}

	raw, err := p.Vision.Describe(ctx, image, contentType)
	if err != nil {
		return fmt.Errorf("pipeline: describe %s: %w", key, err)
	}

	fields, validationErrs := airlock.Parse(raw)

	now := p.Clock.Now()

	tx, err := toTransaction(transactionID, userID, imageID, fields, validationErrs, now)
	if err != nil {
		return fmt.Errorf("pipeline: build transaction for %s: %w", key, err)
	}

	created, err := p.Transactions.CreateIfAbsent(ctx, tx)
	if err != nil {
		return fmt.Errorf("pipeline: write transaction %s: %w", transactionID, err)
	}

	if !created {
		p.logger().Infof("pipeline: transaction %s already exists, skipping", transactionID)
	}

	if err := p.moveToProcessed(ctx, key, image, userID, imageID, now); err != nil {
		return fmt.Errorf("pipeline: move %s: %w", key, err)
	}

	return nil
}

// toTransaction maps an airlock result onto a Transaction row. On
// validation failure the row is written needs_review with the failures
// recorded in Description — the Transaction type carries no separate
// validation-errors column, so this is the attachment point spec.md
// §4.5.1 step 3 calls for ("attach the validation errors").
func toTransaction(id ids.TransactionID, userID ids.UserID, imageID ids.ImageID, fields airlock.Fields, validationErrs []string, now time.Time) (*transaction.Transaction, error) {
	if len(validationErrs) > 0 {
		return &transaction.Transaction{
			ID: id, UserID: userID, ImageID: &imageID, Amount: 0, Type: transaction.TypeExpense,
			Date: now.In(JSTLocation).Format("2006-01-02"), Status: transaction.StatusNeedsReview,
			Description: "needs_review: " + strings.Join(validationErrs, "; "),
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

// moveToProcessed copies the already-fetched image bytes to their post-OCR
// resting place, then deletes the source — spec.md §4.5.1 step 5.
func (p *Processor) moveToProcessed(ctx context.Context, sourceKey string, image []byte, userID ids.UserID, imageID ids.ImageID, now time.Time) error {
	destKey := objectkey.Processed(now.In(JSTLocation).Format("2006-01-02"), userID, imageID)
	if err := p.Objects.Put(ctx, destKey, bytes.NewReader(image), contentType); err != nil {
		return fmt.Errorf("copy to %s: %w", destKey, err)
	}

	return p.Objects.Delete(ctx, sourceKey)
}
