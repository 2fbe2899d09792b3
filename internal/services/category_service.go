package services

import (
	"context"
	"fmt"

	"weekspend/internal/categories"
	"weekspend/internal/core"
	"weekspend/internal/log"
	"weekspend/internal/ports"
)

type CategoryService struct {
	store      ports.CategoryStore
	classifier *categories.Classifier
	logger     *log.Logger
}

func NewCategoryService(store ports.CategoryStore, classifier *categories.Classifier, logger *log.Logger) *CategoryService {
	if logger == nil {
		logger = log.Discard()
	}
	if classifier == nil {
		classifier = categories.NewClassifier(categories.DefaultRules())
	}
	return &CategoryService{
		store:      store,
		classifier: classifier,
		logger:     logger.WithComponent(log.ComponentClassifier),
	}
}

// List returns the user's categories, seeding the defaults on first access.
func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if len(cats) > 0 {
		return cats, nil
	}

	defs := categories.Defaults()
	seed := make([]core.Category, len(defs))
	for i, d := range defs {
		seed[i] = core.Category{UserID: userID, Name: d.Name, Icon: d.Icon, Color: d.Color, IsDefault: true}
	}
	if err := s.store.CreateCategories(ctx, userID, seed); err != nil {
		return nil, fmt.Errorf("seed categories: %w", err)
	}
	s.logger.InfoContext(ctx, "Seeded default categories", log.FieldUserID, userID, "count", len(seed))

	return s.store.ListCategories(ctx, userID)
}

// Suggest returns the category whose keywords match description.
func (s *CategoryService) Suggest(description string) (string, bool) {
	return s.classifier.Suggest(description)
}

// Presets returns the quick-add buttons.
func (s *CategoryService) Presets() []categories.Preset {
	return categories.QuickPresets()
}
