package localstore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/yorutsuke/yorutsuke/components/client/internal/uploadqueue"
	mzerrors "github.com/yorutsuke/yorutsuke/internal/core/errors"
	"github.com/yorutsuke/yorutsuke/internal/core/ids"
)

const timeLayout = time.RFC3339Nano

// ImageModel is the row shape for the images table, adapted from the
// teacher's Postgres "*PostgreSQLModel" FromEntity/ToEntity pattern.
type ImageModel struct {
	ID             string
	UserID         string
	TraceID        string
	Status         string
	LocalPath      string
	ObjectKey      string
	MD5            string
	OriginalSize   int
	CompressedSize int
	CreatedAt      string
	UploadedAt     sql.NullString
	ProcessedAt    sql.NullString
	Error          string
	RetryCount     int
}

// FromEntity populates m from img.
func (m *ImageModel) FromEntity(img *uploadqueue.Image) {
	m.ID = img.ID.String()
	m.UserID = img.UserID.String()
	m.TraceID = img.TraceID.String()
	m.Status = string(img.Status)
	m.LocalPath = img.LocalPath
	m.ObjectKey = img.ObjectKey
	m.OriginalSize = img.OriginalSize
	m.CompressedSize = img.CompressedSize
	m.CreatedAt = img.CreatedAt.Format(timeLayout)
	m.Error = img.Error
	m.RetryCount = img.RetryCount

	if img.HasMD5 {
		m.MD5 = hex.EncodeToString(img.MD5[:])
	}

	if img.UploadedAt != nil {
		m.UploadedAt = sql.NullString{String: img.UploadedAt.Format(timeLayout), Valid: true}
	}

	if img.ProcessedAt != nil {
		m.ProcessedAt = sql.NullString{String: img.ProcessedAt.Format(timeLayout), Valid: true}
	}
}

// ToEntity converts m back into an *uploadqueue.Image.
func (m *ImageModel) ToEntity() (*uploadqueue.Image, error) {
	id, err := ids.NewImageID(m.ID)
	if err != nil {
		return nil, err
	}

	userID, err := ids.NewUserID(m.UserID)
	if err != nil {
		return nil, err
	}

	traceID, err := ids.NewTraceID(m.TraceID)
	if err != nil {
		return nil, err
	}

	createdAt, err := time.Parse(timeLayout, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("localstore: parse image created_at: %w", err)
	}

	img := &uploadqueue.Image{
		ID:             id,
		UserID:         userID,
		TraceID:        traceID,
		Status:         uploadqueue.ImageStatus(m.Status),
		LocalPath:      m.LocalPath,
		ObjectKey:      m.ObjectKey,
		OriginalSize:   m.OriginalSize,
		CompressedSize: m.CompressedSize,
		CreatedAt:      createdAt,
		Error:          m.Error,
		RetryCount:     m.RetryCount,
	}

	if m.MD5 != "" {
		raw, err := hex.DecodeString(m.MD5)
		if err == nil && len(raw) == 16 {
			copy(img.MD5[:], raw)
			img.HasMD5 = true
		}
	}

	if m.UploadedAt.Valid {
		t, err := time.Parse(timeLayout, m.UploadedAt.String)
		if err == nil {
			img.UploadedAt = &t
		}
	}

	if m.ProcessedAt.Valid {
		t, err := time.Parse(timeLayout, m.ProcessedAt.String)
		if err == nil {
			img.ProcessedAt = &t
		}
	}

	return img, nil
}

// ImageRepository implements uploadqueue.Repository over SQLite.
type ImageRepository struct {
	db *sql.DB
}

// NewImageRepository wraps an already-opened *sql.DB.
func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

func (r *ImageRepository) Create(ctx context.Context, img *uploadqueue.Image) error {
	model := &ImageModel{}
	model.FromEntity(img)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO images (id, user_id, trace_id, status, local_path, object_key, md5,
			original_size, compressed_size, created_at, uploaded_at, processed_at, error, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		model.ID, model.UserID, model.TraceID, model.Status, model.LocalPath, model.ObjectKey, model.MD5,
		model.OriginalSize, model.CompressedSize, model.CreatedAt, model.UploadedAt, model.ProcessedAt, model.Error, model.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("localstore: insert image: %w", err)
	}

	return nil
}

func (r *ImageRepository) Update(ctx context.Context, img *uploadqueue.Image) error {
	model := &ImageModel{}
	model.FromEntity(img)

	result, err := r.db.ExecContext(ctx, `
		UPDATE images SET status=?, local_path=?, object_key=?, md5=?, original_size=?, compressed_size=?,
			uploaded_at=?, processed_at=?, error=?, retry_count=? WHERE id=?`,
		model.Status, model.LocalPath, model.ObjectKey, model.MD5, model.OriginalSize, model.CompressedSize,
		model.UploadedAt, model.ProcessedAt, model.Error, model.RetryCount, model.ID,
	)
	if err != nil {
		return fmt.Errorf("localstore: update image %s: %w", img.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return mzerrors.EntityNotFoundError{EntityType: "image", Message: fmt.Sprintf("image %s not found", img.ID)}
	}

	return nil
}

func (r *ImageRepository) Get(ctx context.Context, id ids.ImageID) (*uploadqueue.Image, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, trace_id, status, local_path, object_key, md5,
		original_size, compressed_size, created_at, uploaded_at, processed_at, error, retry_count
		FROM images WHERE id = ?`, id.String())

	model, err := scanImageRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mzerrors.EntityNotFoundError{EntityType: "image", Message: fmt.Sprintf("image %s not found", id)}
		}

		return nil, err
	}

	return model.ToEntity()
}

func (r *ImageRepository) FindByMD5(ctx context.Context, userID ids.UserID, md5 [16]byte) (*uploadqueue.Image, bool, error) {
	hexSum := hex.EncodeToString(md5[:])

	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, trace_id, status, local_path, object_key, md5,
		original_size, compressed_size, created_at, uploaded_at, processed_at, error, retry_count
		FROM images WHERE user_id = ? AND md5 = ? ORDER BY created_at ASC LIMIT 1`, userID.String(), hexSum)

	model, err := scanImageRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, err
	}

	img, err := model.ToEntity()
	if err != nil {
		return nil, false, err
	}

	return img, true, nil
}

func (r *ImageRepository) ListByStatus(ctx context.Context, status uploadqueue.ImageStatus) ([]*uploadqueue.Image, error) {
	query, args, err := squirrel.Select("id", "user_id", "trace_id", "status", "local_path", "object_key", "md5",
		"original_size", "compressed_size", "created_at", "uploaded_at", "processed_at", "error", "retry_count").
		From("images").
		Where(squirrel.Eq{"status": string(status)}).
		ToSql()
	if err != nil {
		return nil, err
	}

	return r.queryImages(ctx, query, args...)
}

func (r *ImageRepository) ListAll(ctx context.Context) ([]*uploadqueue.Image, error) {
	query, args, err := squirrel.Select("id", "user_id", "trace_id", "status", "local_path", "object_key", "md5",
		"original_size", "compressed_size", "created_at", "uploaded_at", "processed_at", "error", "retry_count").
		From("images").
		ToSql()
	if err != nil {
		return nil, err
	}

	return r.queryImages(ctx, query, args...)
}

func (r *ImageRepository) Delete(ctx context.Context, id ids.ImageID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id.String())
	return err
}

func (r *ImageRepository) queryImages(ctx context.Context, query string, args ...any) ([]*uploadqueue.Image, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("localstore: query images: %w", err)
	}
	defer rows.Close()

	var out []*uploadqueue.Image

	for rows.Next() {
		model, err := scanImageRow(rows)
		if err != nil {
			return nil, err
		}

		img, err := model.ToEntity()
		if err != nil {
			return nil, err
		}

		out = append(out, img)
	}

	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImageRow(row rowScanner) (*ImageModel, error) {
	m := &ImageModel{}

	err := row.Scan(&m.ID, &m.UserID, &m.TraceID, &m.Status, &m.LocalPath, &m.ObjectKey, &m.MD5,
		&m.OriginalSize, &m.CompressedSize, &m.CreatedAt, &m.UploadedAt, &m.ProcessedAt, &m.Error, &m.RetryCount)
	if err != nil {
		return nil, err
	}

	return m, nil
}
