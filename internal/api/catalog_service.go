package api

import (
	"context"
	"errors"
	"fmt"

	"kaizen/internal/annotation"
	"kaizen/internal/catalog"
	"kaizen/internal/subtitle"
)

var (
	// ErrInvalidAnnotation reports a drawn annotation that cannot be stored.
	ErrInvalidAnnotation = errors.New("invalid annotation")
	// ErrFrameUnknown reports a video whose frame size has not been probed.
	ErrFrameUnknown = errors.New("video frame size unknown")
)

// CatalogReader abstracts the catalog interactions needed for API queries.
type CatalogReader interface {
	Projects(ctx context.Context) ([]catalog.Project, error)
	StagesByProject(ctx context.Context, projectID int64) ([]catalog.Stage, error)
	Stage(ctx context.Context, id int64) (*catalog.Stage, error)
	ProcessesByStage(ctx context.Context, stageID int64) ([]catalog.Process, error)
	StageTimeSaved(ctx context.Context, stageID int64) (float64, error)
	AnnotationsByProcess(ctx context.Context, processID int64, videoType annotation.VideoType) ([]annotation.Annotation, error)
	CreateAnnotation(ctx context.Context, a annotation.Annotation) (*annotation.Annotation, error)
	Setting(ctx context.Context, key string, dest any) (bool, error)
	PutSetting(ctx context.Context, key string, value any) error
}

// CatalogService exposes catalog operations returning API payloads.
type CatalogService struct {
	store    CatalogReader
	defaults subtitle.Style
}

// NewCatalogService constructs a CatalogService. defaults is the style used
// until one has been saved.
func NewCatalogService(store CatalogReader, defaults subtitle.Style) *CatalogService {
	if store == nil {
		return nil
	}
	return &CatalogService{store: store, defaults: defaults.Clamp()}
}

// Projects lists every project.
func (s *CatalogService) Projects(ctx context.Context) (ProjectListResponse, error) {
	if s == nil {
		return ProjectListResponse{}, nil
	}
	projects, err := s.store.Projects(ctx)
	if err != nil {
		return ProjectListResponse{}, err
	}
	if projects == nil {
		projects = []catalog.Project{}
	}
	return ProjectListResponse{Projects: projects}, nil
}

// Stages lists the stages of a project.
func (s *CatalogService) Stages(ctx context.Context, projectID int64) (StageListResponse, error) {
	if s == nil {
		return StageListResponse{}, nil
	}
	stages, err := s.store.StagesByProject(ctx, projectID)
	if err != nil {
		return StageListResponse{}, err
	}
	if stages == nil {
		stages = []catalog.Stage{}
	}
	return StageListResponse{Stages: stages}, nil
}

// Stage loads a stage with its processes in play order.
func (s *CatalogService) Stage(ctx context.Context, id int64) (StageResponse, error) {
	if s == nil {
		return StageResponse{}, catalog.ErrNotFound
	}
	stage, err := s.store.Stage(ctx, id)
	if err != nil {
		return StageResponse{}, err
	}
	processes, err := s.store.ProcessesByStage(ctx, id)
	if err != nil {
		return StageResponse{}, err
	}
	saved, err := s.store.StageTimeSaved(ctx, id)
	if err != nil {
		return StageResponse{}, err
	}
	if processes == nil {
		processes = []catalog.Process{}
	}
	return StageResponse{Stage: *stage, Processes: processes, TimeSaved: saved}, nil
}

// Annotations returns every annotation of a process grouped by video type.
func (s *CatalogService) Annotations(ctx context.Context, processID int64) (map[annotation.VideoType][]annotation.Annotation, error) {
	out := map[annotation.VideoType][]annotation.Annotation{}
	if s == nil || processID == 0 {
		return out, nil
	}
	all, err := s.store.AnnotationsByProcess(ctx, processID, "")
	if err != nil {
		return nil, err
	}
	for _, a := range all {
		out[a.VideoType] = append(out[a.VideoType], a)
	}
	return out, nil
}

// AddAnnotation stores an annotation drawn in viewport pixels on a video of
// the given frame size. The anchor point must land on the frame; the
// geometry is stored normalized to it.
func (s *CatalogService) AddAnnotation(ctx context.Context, req AnnotationRequest, frame FrameSize) (*annotation.Annotation, error) {
	if s == nil {
		return nil, fmt.Errorf("add annotation: catalog unavailable")
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("%w: %s video of process %d", ErrFrameUnknown, req.VideoType, req.ProcessID)
	}
	rect, ok := annotation.RenderRect(req.Viewport.Width, req.Viewport.Height, float64(frame.Width), float64(frame.Height))
	if !ok {
		return nil, fmt.Errorf("%w: viewport must have a positive size", ErrInvalidAnnotation)
	}
	if !rect.Contains(req.Pixel.X, req.Pixel.Y) {
		return nil, fmt.Errorf("%w: point (%.0f, %.0f) is outside the video frame", ErrInvalidAnnotation, req.Pixel.X, req.Pixel.Y)
	}
	n := rect.ToNormalized(req.Pixel)
	a := annotation.Annotation{
		ProcessID:   req.ProcessID,
		VideoType:   req.VideoType,
		Kind:        req.Kind,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		X:           n.X,
		Y:           n.Y,
		Width:       n.Width,
		Height:      n.Height,
		EndX:        n.EndX,
		EndY:        n.EndY,
		Text:        req.Text,
		Color:       req.Color,
		StrokeWidth: req.StrokeWidth,
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnnotation, err)
	}
	return s.store.CreateAnnotation(ctx, a)
}

// Style returns the saved subtitle style, or the configured defaults.
func (s *CatalogService) Style(ctx context.Context) (subtitle.Style, error) {
	if s == nil {
		return subtitle.Style{}, nil
	}
	style := s.defaults
	found, err := s.store.Setting(ctx, subtitle.StyleSettingKey, &style)
	if err != nil {
		return s.defaults, err
	}
	if !found {
		return s.defaults, nil
	}
	return style.Clamp(), nil
}

// SaveStyle clamps, validates, and persists a style.
func (s *CatalogService) SaveStyle(ctx context.Context, style subtitle.Style) (subtitle.Style, error) {
	if s == nil {
		return subtitle.Style{}, fmt.Errorf("save subtitle style: catalog unavailable")
	}
	style = style.Clamp()
	if err := style.Validate(); err != nil {
		return subtitle.Style{}, err
	}
	if err := s.store.PutSetting(ctx, subtitle.StyleSettingKey, style); err != nil {
		return subtitle.Style{}, err
	}
	return style, nil
}
