package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/herald/internal/model"
)

func (s *Service) GetTemplate(ctx context.Context, t model.Type) (model.Template, error) {
	tmpl, err := s.repo.GetTemplate(ctx, t)
	if err != nil {
		return model.Template{}, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return model.Template{}, fmt.Errorf("template %q: %w", t, model.ErrTemplateNotFound)
	}
	return *tmpl, nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]model.Template, error) {
	tmpls, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return tmpls, nil
}

// SaveTemplate stores tmpl under its type, filling the priority from the
// type when unset.
func (s *Service) SaveTemplate(ctx context.Context, tmpl model.Template) (model.Template, error) {
	if !tmpl.Type.Valid() {
		return model.Template{}, fmt.Errorf("type %q: %w", tmpl.Type, ErrInvalidTemplate)
	}
	if tmpl.DefaultPriority == "" {
		tmpl.DefaultPriority = tmpl.Type.DefaultPriority()
	}
	if !tmpl.DefaultPriority.Valid() {
		return model.Template{}, fmt.Errorf("priority %q: %w", tmpl.DefaultPriority, ErrInvalidTemplate)
	}
	for _, c := range tmpl.DefaultChannels {
		if !c.Valid() {
			return model.Template{}, fmt.Errorf("channel %q: %w", c, ErrInvalidTemplate)
		}
	}
	if len(tmpl.DefaultChannels) > 0 {
		tmpl.DefaultChannels = model.NormalizeChannels(tmpl.DefaultChannels)
	}
	if tmpl.DefaultExpiration < 0 {
		tmpl.DefaultExpiration = 0
	}
	tmpl.UpdatedAt = s.now()

	if err := s.repo.SaveTemplate(ctx, tmpl); err != nil {
		return model.Template{}, fmt.Errorf("save template: %w", err)
	}
	s.logger.Info("template saved", "type", tmpl.Type)
	return tmpl, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, t model.Type) error {
	err := s.repo.DeleteTemplate(ctx, t)
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("template %q: %w", t, model.ErrTemplateNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}
