// Package banners manages the promotional banners of the public landing page.
package banners

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/sentinel"
	"github.com/eduevent/backend/pkg/storage"
)

// Store persists banners.
type Store interface {
	List(ctx context.Context, activeOnly bool) ([]models.Banner, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Banner, error)
	Create(ctx context.Context, b *models.Banner) error
	Update(ctx context.Context, b *models.Banner) error
	ToggleActive(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Input is the editable part of a banner.
type Input struct {
	Title       string
	Description string
	ButtonText  string
	ButtonLink  string
	IsActive    bool
	SortOrder   int
}

// Image is an uploaded banner image.
type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Service manages banners and their images.
type Service struct {
	store  Store
	files  storage.FileStore
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a banners service.
func NewService(store Store, files storage.FileStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, files: files, logger: logger, now: time.Now}
}

// ListActive returns the banners shown to visitors.
func (s *Service) ListActive(ctx context.Context) ([]models.Banner, error) {
	return s.list(ctx, true)
}

// ListAll returns every banner, for the admin panel.
func (s *Service) ListAll(ctx context.Context) ([]models.Banner, error) {
	return s.list(ctx, false)
}

func (s *Service) list(ctx context.Context, activeOnly bool) ([]models.Banner, error) {
	list, err := s.store.List(ctx, activeOnly)
	if err != nil {
		s.logger.Error("list banners", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "list banners", err)
	}
	out := make([]models.Banner, 0, len(list))
	for i := range list {
		out = append(out, s.withURL(list[i]))
	}
	return out, nil
}

// Create stores img and inserts a banner pointing at it.
func (s *Service) Create(ctx context.Context, in Input, img Image) (*models.Banner, error) {
	if img.Body == nil {
		return nil, apperr.WithReason(apperr.KindValidation, "file_missing", "banner image is required")
	}
	b := &models.Banner{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		ButtonText:  in.ButtonText,
		ButtonLink:  in.ButtonLink,
		IsActive:    in.IsActive,
		SortOrder:   in.SortOrder,
	}
	key, err := s.saveImage(ctx, b.ID, img)
	if err != nil {
		return nil, err
	}
	b.ImagePath = key
	if err := s.store.Create(ctx, b); err != nil {
		s.removeFile(ctx, key)
		return nil, s.mapErr("create banner", b.ID, err)
	}
	out := s.withURL(*b)
	return &out, nil
}

// Update replaces a banner's fields and, when img is given, its image.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input, img *Image) (*models.Banner, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapErr("load banner", id, err)
	}
	oldImage := b.ImagePath
	b.Title = in.Title
	b.Description = in.Description
	b.ButtonText = in.ButtonText
	b.ButtonLink = in.ButtonLink
	b.IsActive = in.IsActive
	b.SortOrder = in.SortOrder
	if img != nil {
		key, err := s.saveImage(ctx, id, *img)
		if err != nil {
			return nil, err
		}
		b.ImagePath = key
	}
	if err := s.store.Update(ctx, b); err != nil {
		if b.ImagePath != oldImage {
			s.removeFile(ctx, b.ImagePath)
		}
		return nil, s.mapErr("update banner", id, err)
	}
	if b.ImagePath != oldImage {
		s.removeFile(ctx, oldImage)
	}
	out := s.withURL(*b)
	return &out, nil
}

// Toggle flips a banner's visibility and returns the new state.
func (s *Service) Toggle(ctx context.Context, id uuid.UUID) (bool, error) {
	active, err := s.store.ToggleActive(ctx, id)
	if err != nil {
		return false, s.mapErr("toggle banner", id, err)
	}
	return active, nil
}

// Delete removes a banner and its image.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return s.mapErr("load banner", id, err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.mapErr("delete banner", id, err)
	}
	s.removeFile(ctx, b.ImagePath)
	return nil
}

func (s *Service) saveImage(ctx context.Context, id uuid.UUID, img Image) (string, error) {
	if s.files == nil {
		return "", apperr.New(apperr.KindStorageUnavailable, "file storage not configured")
	}
	ext, ok := storage.ImageExtension(img.ContentType, img.Filename)
	if !ok {
		return "", apperr.WithReason(apperr.KindValidation, "file_type", "banner must be an image")
	}
	data, err := storage.ReadLimited(img.Body, storage.MaxImageSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return "", apperr.WithReason(apperr.KindValidation, "file_too_large", "banner exceeds 5MB")
		}
		return "", apperr.Wrap(apperr.KindValidation, "read banner image", err)
	}
	key := storage.BannerKey(fmt.Sprintf("%s-%d", id, s.now().UnixNano()), ext)
	if err := s.files.Save(ctx, key, data, storage.ContentTypeForFilename(key)); err != nil {
		s.logger.Error("save banner image", zap.String("banner_id", id.String()), zap.Error(err))
		return "", apperr.Wrap(apperr.KindStorageUnavailable, "save banner image", err)
	}
	return key, nil
}

func (s *Service) withURL(b models.Banner) models.Banner {
	if b.ImagePath != "" && s.files != nil {
		b.ImageURL = s.files.URL(b.ImagePath)
	}
	return b
}

func (s *Service) removeFile(ctx context.Context, key string) {
	if key == "" || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.Warn("delete banner image", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) mapErr(op string, id uuid.UUID, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "banner not found")
	}
	s.logger.Error(op, zap.String("banner_id", id.String()), zap.Error(err))
	return apperr.Wrap(apperr.KindStorageUnavailable, op, err)
}
