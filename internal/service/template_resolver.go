package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/academic360/notifier/internal/core"
	"github.com/academic360/notifier/internal/data"
	"github.com/academic360/notifier/internal/domain/model"
	apperrors "github.com/academic360/notifier/internal/errors"
)

// DefaultFallbackTemplate is used for notifications without a template id when the
// payload names none.
const DefaultFallbackTemplate = "generic_alert"

var (
	// ErrTemplateInactive classifies a deactivated template. It is permanent.
	ErrTemplateInactive = errors.New("template inactive")
	// ErrMissingPlaceholders is returned in strict mode when content is short of the
	// template's enabled fields. It is retryable.
	ErrMissingPlaceholders = errors.New("missing placeholder values")
)

// TemplateResolverOptions groups dependencies for TemplateResolver.
type TemplateResolverOptions struct {
	Templates core.TemplateRepository      // Required: template registry (usually cached)
	Sequences core.FieldSequenceRepository // Required: per-template field order
	Contents  core.ContentRepository       // Required: notification content values
	// FallbackTemplate names the template for notifications without one. Defaults to
	// DefaultFallbackTemplate.
	FallbackTemplate string
	// RequireAllPlaceholders rejects resolutions with fewer non-empty values than fields.
	RequireAllPlaceholders bool
	Logger                 *slog.Logger // Optional: structured logger
}

// TemplateResolver turns a notification into a template name and ordered body values.
type TemplateResolver struct {
	templates  core.TemplateRepository
	sequences  core.FieldSequenceRepository
	contents   core.ContentRepository
	fallback   string
	requireAll bool
	logger     *slog.Logger
}

// NewTemplateResolver constructs a TemplateResolver.
func NewTemplateResolver(opts TemplateResolverOptions) (*TemplateResolver, error) {
	switch {
	case opts.Templates == nil:
		return nil, errors.New("TemplateRepository is required")
	case opts.Sequences == nil:
		return nil, errors.New("FieldSequenceRepository is required")
	case opts.Contents == nil:
		return nil, errors.New("ContentRepository is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fallback := strings.TrimSpace(opts.FallbackTemplate)
	if fallback == "" {
		fallback = DefaultFallbackTemplate
	}

	return &TemplateResolver{
		templates:  opts.Templates,
		sequences:  opts.Sequences,
		contents:   opts.Contents,
		fallback:   fallback,
		requireAll: opts.RequireAllPlaceholders,
		logger:     logger.With("component", "template_resolver"),
	}, nil
}

// Resolve computes the template and body values for j. Inactive or missing templates
// return an ErrCodePermanent error; everything else is retryable.
func (r *TemplateResolver) Resolve(ctx context.Context, j *model.Job) (*model.ResolvedTemplate, error) {
	n := &j.Notification
	if n.TemplateID == nil {
		return r.fallbackResolution(j.Payload), nil
	}
	templateID := *n.TemplateID

	tpl, err := r.templates.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, data.ErrTemplateNotFound) {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodePermanent, "template %d", templateID)
		}
		return nil, fmt.Errorf("load template %d: %w", templateID, err)
	}
	if !tpl.IsActive {
		return nil, apperrors.Wrapf(ErrTemplateInactive, apperrors.ErrCodePermanent, "template %q", tpl.Name)
	}

	entries, err := r.sequences.ListEnabled(ctx, tpl.ID)
	if err != nil {
		return nil, fmt.Errorf("load field sequence for template %d: %w", tpl.ID, err)
	}
	entries = orderedEnabled(entries)
	if len(entries) == 0 {
		return &model.ResolvedTemplate{
			TemplateName: tpl.Name,
			BodyValues:   slices.Clone(j.Payload.BodyValues),
		}, nil
	}

	contents, err := r.contents.ListByNotification(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("load contents for notification %d: %w", n.ID, err)
	}

	values, filled := fillFields(entries, contents)
	// Every field blank is treated like no fields at all, which keeps producers that only
	// send body_values rendering. Deliberate; do not narrow this to len(entries) == 0.
	if filled == 0 && len(j.Payload.BodyValues) > 0 {
		r.logger.DebugContext(ctx, "no field content, using payload body values",
			"notification_id", n.ID, "template", tpl.Name)
		return &model.ResolvedTemplate{
			TemplateName: tpl.Name,
			BodyValues:   slices.Clone(j.Payload.BodyValues),
			Expected:     len(entries),
		}, nil
	}

	if filled < len(entries) {
		if r.requireAll {
			return nil, fmt.Errorf("%w: template %q expected %d, got %d",
				ErrMissingPlaceholders, tpl.Name, len(entries), filled)
		}
		r.logger.DebugContext(ctx, "template resolved with empty placeholders",
			"notification_id", n.ID, "template", tpl.Name,
			"expected", len(entries), "filled", filled)
	}

	return &model.ResolvedTemplate{
		TemplateName: tpl.Name,
		BodyValues:   values,
		Expected:     len(entries),
	}, nil
}

func (r *TemplateResolver) fallbackResolution(p model.Payload) *model.ResolvedTemplate {
	name := strings.TrimSpace(p.Template)
	if name == "" {
		name = r.fallback
	}
	return &model.ResolvedTemplate{
		TemplateName: name,
		BodyValues:   slices.Clone(p.BodyValues),
	}
}

// orderedEnabled keeps enabled entries in ascending sequence, whatever order the
// repository returned them in.
func orderedEnabled(entries []model.FieldSequenceEntry) []model.FieldSequenceEntry {
	out := make([]model.FieldSequenceEntry, 0, len(entries))
	for _, e := range entries {
		if e.Enabled {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b model.FieldSequenceEntry) int {
		return cmp.Or(cmp.Compare(a.Sequence, b.Sequence), cmp.Compare(a.FieldID, b.FieldID))
	})
	return out
}

// fillFields pops the oldest content value per field for each entry. Fields that run
// out resolve to "". It returns the values and how many were non-empty.
func fillFields(entries []model.FieldSequenceEntry, contents []model.ContentValue) ([]string, int) {
	sorted := slices.Clone(contents)
	slices.SortStableFunc(sorted, func(a, b model.ContentValue) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	queues := make(map[int64][]string, len(entries))
	for _, c := range sorted {
		queues[c.FieldID] = append(queues[c.FieldID], c.Content)
	}

	values := make([]string, len(entries))
	filled := 0
	for i, e := range entries {
		q := queues[e.FieldID]
		if len(q) == 0 {
			continue
		}
		values[i], queues[e.FieldID] = q[0], q[1:]
		if strings.TrimSpace(values[i]) != "" {
			filled++
		}
	}
	return values, filled
}
