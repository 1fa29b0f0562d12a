// Package storage keeps uploaded recipe images and hands out the URLs the
// model provider and the UI load them from.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/recipelens/platform/pkg/common/logger"
	"gorm.io/gorm"
)

var (
	ErrObjectNotFound     = errors.New("stored object not found")
	ErrUploadTokenInvalid = errors.New("upload token is invalid, expired or already used")
	ErrUnsupportedMedia   = errors.New("only image uploads are accepted")
	ErrObjectTooLarge     = errors.New("upload exceeds the size limit")
	ErrEmptyUpload        = errors.New("upload is empty")
)

// ObjectStore is the image storage used by the API and the extraction workflow.
type ObjectStore interface {
	GenerateUploadURL(ctx context.Context) (string, error)
	Put(ctx context.Context, token string, r io.Reader) (string, error)
	URL(ctx context.Context, ref string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, *Object, error)
	Stat(ctx context.Context, ref string) (*Object, error)
	PublicURL(ref string) string
}

type Options struct {
	Dir           string
	PublicBaseURL string
	InlineImages  bool
	TokenTTL      time.Duration
	MaxBytes      int64
}

// DiskStore writes images under a directory and tracks tokens and object
// metadata in the database, so several API replicas can share one volume.
type DiskStore struct {
	db   *gorm.DB
	opts Options
	now  func() time.Time
}

func NewDiskStore(db *gorm.DB, opts Options) (*DiskStore, error) {
	if opts.Dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 15 * time.Minute
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &DiskStore{db: db, opts: opts, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *DiskStore) AutoMigrate() error {
	return s.db.AutoMigrate(&UploadToken{}, &Object{})
}

// GenerateUploadURL issues a single-use upload URL.
func (s *DiskStore) GenerateUploadURL(ctx context.Context) (string, error) {
	now := s.now()
	token := UploadToken{
		Token:     uuid.New().String(),
		ExpiresAt: now.Add(s.opts.TokenTTL),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
		return "", err
	}
	return s.opts.PublicBaseURL + "/api/v1/uploads/" + token.Token, nil
}

// Put stores the body uploaded with token and returns the new storage ref.
// The content is checked before the token is spent.
func (s *DiskStore) Put(ctx context.Context, token string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.opts.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	if int64(len(data)) > s.opts.MaxBytes {
		return "", ErrObjectTooLarge
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrUnsupportedMedia
	}

	if err := s.consumeToken(ctx, token); err != nil {
		return "", err
	}

	ref := uuid.New().String()
	if err := writeFile(s.path(ref), data); err != nil {
		return "", fmt.Errorf("writing object: %w", err)
	}

	obj := Object{Ref: ref, ContentType: contentType, Size: int64(len(data)), CreatedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(&obj).Error; err != nil {
		_ = os.Remove(s.path(ref))
		return "", err
	}

	logger.Log.WithFields(map[string]interface{}{
		"ref":          ref,
		"content_type": contentType,
		"size":         obj.Size,
	}).Info("Stored uploaded image")
	return ref, nil
}

func (s *DiskStore) consumeToken(ctx context.Context, token string) error {
	if _, err := uuid.Parse(token); err != nil {
		return ErrUploadTokenInvalid
	}
	now := s.now()
	result := s.db.WithContext(ctx).Model(&UploadToken{}).
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
		Update("used_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUploadTokenInvalid
	}
	return nil
}

// URL resolves ref to something the model provider can fetch: a public URL,
// or a data URL when images are inlined.
func (s *DiskStore) URL(ctx context.Context, ref string) (string, error) {
	obj, err := s.lookup(ctx, ref)
	if err != nil {
		return "", err
	}
	if !s.opts.InlineImages {
		return s.PublicURL(obj.Ref), nil
	}

	data, err := os.ReadFile(s.path(obj.Ref))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrObjectNotFound
	}
	if err != nil {
		return "", err
	}
	return "data:" + obj.ContentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (s *DiskStore) Open(ctx context.Context, ref string) (io.ReadCloser, *Object, error) {
	obj, err := s.lookup(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.path(obj.Ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return f, obj, nil
}

func (s *DiskStore) Stat(ctx context.Context, ref string) (*Object, error) {
	return s.lookup(ctx, ref)
}

// PublicURL is where browsers load ref from, regardless of inlining.
func (s *DiskStore) PublicURL(ref string) string {
	return s.opts.PublicBaseURL + "/files/" + ref
}

// PurgeExpiredTokens deletes tokens that can no longer be used.
func (s *DiskStore) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ? OR used_at IS NOT NULL", s.now()).
		Delete(&UploadToken{})
	return result.RowsAffected, result.Error
}

func (s *DiskStore) lookup(ctx context.Context, ref string) (*Object, error) {
	// Refs are uuids; anything else could escape the storage directory.
	if _, err := uuid.Parse(ref); err != nil {
		return nil, ErrObjectNotFound
	}
	var obj Object
	result := s.db.WithContext(ctx).First(&obj, "ref = ?", ref)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrObjectNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &obj, nil
}

func (s *DiskStore) path(ref string) string {
	return filepath.Join(s.opts.Dir, ref)
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
