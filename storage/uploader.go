package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/utils"
)

// DefaultContentType is used when the caller does not know the media type.
const DefaultContentType = "image/jpeg"

var (
	ErrTooLarge     = errors.New("file size exceeds limit")
	ErrInvalidOwner = errors.New("invalid owner id")
)

// Uploader stores media under an owner (the post id) and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, ownerID string, media Media, contentType string) (string, error)
}

// DiskUploader writes blobs to <dir>/posts/<ownerID>/<uuid><ext> and serves them
// from <baseURL>/posts/<ownerID>/<uuid><ext>. Every blob is recorded in the
// uploaded_files ledger when a database is configured.
type DiskUploader struct {
	dir      string
	baseURL  string
	maxBytes int64
	db       *gorm.DB
	logger   *zap.Logger
}

func NewDiskUploader(dir, baseURL string, maxSizeMB int, db *gorm.DB, logger *zap.Logger) *DiskUploader {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	return &DiskUploader{
		dir:      dir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		db:       db,
		logger:   utils.OrNop(logger),
	}
}

func (u *DiskUploader) Upload(ctx context.Context, ownerID string, media Media, contentType string) (string, error) {
	url, err := u.upload(ctx, ownerID, media, contentType)
	if err != nil {
		u.logger.Warn("upload failed", zap.String("owner_id", ownerID), zap.Error(err))
		return "", &models.UploadError{Err: err}
	}
	return url, nil
}

func (u *DiskUploader) upload(ctx context.Context, ownerID string, media Media, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ownerID == "" || ownerID != filepath.Base(ownerID) || strings.HasPrefix(ownerID, ".") {
		return "", ErrInvalidOwner
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = DefaultContentType
	}

	src, err := media.Open()
	if err != nil {
		return "", fmt.Errorf("open media: %w", err)
	}
	defer src.Close()

	baseDir := filepath.Join(u.dir, "posts", ownerID)
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	name := uuid.NewString() + extension(media.Name())
	dstPath := filepath.Join(baseDir, name)
	out, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	// one byte past the limit tells an oversized file apart from an exact fit
	lr := &io.LimitedReader{R: src, N: u.maxBytes + 1}
	written, err := io.Copy(out, &ctxReader{ctx: ctx, r: lr})
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > u.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("write file: %w", err)
	}

	url := u.baseURL + "/" + path.Join("posts", ownerID, name)
	u.record(ctx, ownerID, dstPath, url, contentType)
	return url, nil
}

// record is best effort: a missing ledger row only means the cleaner never sees the blob.
func (u *DiskUploader) record(ctx context.Context, ownerID, filePath, url, contentType string) {
	if u.db == nil {
		return
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		absPath = filePath
	}
	row := models.UploadedFile{OwnerID: ownerID, FilePath: absPath, URL: url, ContentType: contentType}
	if err := u.db.WithContext(ctx).Create(&row).Error; err != nil {
		u.logger.Warn("record upload failed", zap.String("url", url), zap.Error(err))
	}
}

func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		return ""
	}
	return ext
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
