// Package api implements the operations the recipe UI calls.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/recipelens/platform/pkg/observability/metrics"
	"github.com/recipelens/platform/pkg/recipe"
	"github.com/recipelens/platform/pkg/storage"
	"github.com/recipelens/platform/pkg/view"
	"github.com/recipelens/platform/pkg/workflow"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrImageNotFound  = errors.New("image not found")
	ErrNotReady       = errors.New("recipe extraction has not succeeded")
)

// Reader loads a single recipe; the cached reader and the repository both fit.
type Reader interface {
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
}

type Service struct {
	repo    *recipe.Repository
	reader  Reader
	store   storage.ObjectStore
	starter workflow.Starter
}

func NewService(repo *recipe.Repository, reader Reader, store storage.ObjectStore, starter workflow.Starter) *Service {
	if reader == nil {
		reader = repo
	}
	return &Service{repo: repo, reader: reader, store: store, starter: starter}
}

func (s *Service) GenerateUploadURL(ctx context.Context) (string, error) {
	return s.store.GenerateUploadURL(ctx)
}

func (s *Service) Upload(ctx context.Context, token string, body io.Reader) (string, error) {
	ref, err := s.store.Put(ctx, token, body)
	if err != nil {
		return "", err
	}
	metrics.UploadStored()
	return ref, nil
}

// CreateRecipe records a pending recipe for an uploaded image and starts its
// extraction. If the start fails the recipe is marked failed, so it never
// stays pending with nothing driving it.
func (s *Service) CreateRecipe(ctx context.Context, imageID string) (string, error) {
	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return "", fmt.Errorf("%w: imageId is required", ErrInvalidRequest)
	}
	if _, err := s.store.Stat(ctx, imageID); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", ErrImageNotFound
		}
		return "", fmt.Errorf("checking image: %w", err)
	}

	rec, err := s.repo.Create(ctx, imageID)
	if err != nil {
		return "", fmt.Errorf("persisting recipe: %w", err)
	}
	metrics.RecipeCreated()

	if startErr := s.starter.Start(ctx, rec.ID); startErr != nil {
		logger.Log.WithError(startErr).WithField("recipe_id", rec.ID).Error("failed to start extraction")
		if _, err := s.repo.Transition(ctx, rec.ID, recipe.Failed("could not start extraction: "+startErr.Error())); err != nil {
			logger.Log.WithError(err).WithField("recipe_id", rec.ID).Error("failed to mark recipe as failed")
		} else {
			metrics.ExtractionFailed()
		}
		return "", fmt.Errorf("starting extraction: %w", startErr)
	}

	logger.Log.WithField("recipe_id", rec.ID).Info("Recipe created")
	return rec.ID, nil
}

func (s *Service) GetRecipe(ctx context.Context, id, locale string) (*view.View, error) {
	rec, err := s.reader.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := view.Serialize(rec, s.imageURL(ctx, rec), locale)
	return &v, nil
}

// ListRecipes returns the newest recipes first.
func (s *Service) ListRecipes(ctx context.Context, limit int, locale string) ([]view.View, error) {
	recs, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]view.View, 0, len(recs))
	for i := range recs {
		views = append(views, view.Serialize(&recs[i], s.imageURL(ctx, &recs[i]), locale))
	}
	return views, nil
}

// Export returns the interchange file for a successful recipe.
func (s *Service) Export(ctx context.Context, id string) (string, []byte, error) {
	fields, err := s.successFields(ctx, id)
	if err != nil {
		return "", nil, err
	}
	data, err := recipe.Export(*fields)
	if err != nil {
		return "", nil, err
	}
	return recipe.Filename(fields.Title), data, nil
}

func (s *Service) JSONLD(ctx context.Context, id, lang string) ([]byte, error) {
	rec, err := s.reader.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fields, err := fieldsOf(rec)
	if err != nil {
		return nil, err
	}
	return view.JSONLD(*fields, s.imageURL(ctx, rec), lang)
}

func (s *Service) OpenImage(ctx context.Context, ref string) (io.ReadCloser, *storage.Object, error) {
	return s.store.Open(ctx, ref)
}

func (s *Service) successFields(ctx context.Context, id string) (*recipe.Fields, error) {
	rec, err := s.reader.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return fieldsOf(rec)
}

func fieldsOf(rec *recipe.Recipe) (*recipe.Fields, error) {
	ext, err := rec.DecodeExtraction()
	if err != nil {
		return nil, err
	}
	if ext.Status != recipe.StatusSuccess || ext.Fields == nil {
		return nil, ErrNotReady
	}
	return ext.Fields, nil
}

// imageURL is "" when the image cannot be resolved; views show it as null.
func (s *Service) imageURL(ctx context.Context, rec *recipe.Recipe) string {
	if rec.ImageRef == "" {
		return ""
	}
	if _, err := s.store.Stat(ctx, rec.ImageRef); err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			logger.Log.WithError(err).WithField("recipe_id", rec.ID).Warn("failed to resolve recipe image")
		}
		return ""
	}
	return s.store.PublicURL(rec.ImageRef)
}
