package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vendacrm/venda-engine/pkg/adapters/datasource"
	"github.com/vendacrm/venda-engine/pkg/apperrors"
	"github.com/vendacrm/venda-engine/pkg/display"
	"github.com/vendacrm/venda-engine/pkg/models"
	"github.com/vendacrm/venda-engine/pkg/repositories"
	"github.com/vendacrm/venda-engine/pkg/sqlbind"
	"github.com/vendacrm/venda-engine/pkg/sqlguard"
)

// DrillDownService orchestrates drill-down execution and config management.
// It is the library-level contract consumed by the HTTP layer; tenantID
// always comes from the authenticated caller, never from request payloads.
type DrillDownService interface {
	// Execute runs the drill-down behind a clicked chart element and returns
	// a display-ready payload.
	Execute(ctx context.Context, clientID int64, chartPosition int, clicked map[string]any) (*DrillDownResult, error)

	// HasDrillDown reports whether an active config exists for the slot.
	HasDrillDown(ctx context.Context, clientID int64, chartPosition int, groupID *string) (bool, error)

	ListConfigs(ctx context.Context, clientID int64) ([]*models.DrillDownConfig, error)
	GetConfig(ctx context.Context, clientID int64, chartPosition int, groupID *string) (*models.DrillDownConfig, error)
	CreateConfig(ctx context.Context, clientID int64, req *CreateConfigRequest) (*models.DrillDownConfig, error)
	UpdateConfig(ctx context.Context, clientID int64, id uuid.UUID, req *UpdateConfigRequest) (*models.DrillDownConfig, error)
	DeleteConfig(ctx context.Context, clientID int64, id uuid.UUID) error
}

// DrillDownResult is the display payload returned to the caller.
type DrillDownResult struct {
	Title     string              `json:"title"`
	Columns   []models.GridColumn `json:"columns"`
	Rows      []map[string]any    `json:"rows"`
	TotalRows int                 `json:"total_rows"`
	ModalSize models.ModalSize    `json:"modal_size"`
	Link      *models.LinkConfig  `json:"link,omitempty"`
}

// CreateConfigRequest contains fields for creating a drill-down config.
type CreateConfigRequest struct {
	ChartPosition int     `json:"chart_position"`
	GroupID       *string `json:"group_id,omitempty"`

	ChartTitle    string `json:"chart_title"`
	ChartSubtitle string `json:"chart_subtitle,omitempty"`
	XAxisField    string `json:"x_axis_field,omitempty"`
	YAxisField    string `json:"y_axis_field,omitempty"`

	DetailSQLQuery  string              `json:"detail_sql_query"`
	DetailSQLParams models.ParamMapping `json:"detail_sql_params"`

	DetailGridTitle   string              `json:"detail_grid_title"`
	DetailGridColumns []models.GridColumn `json:"detail_grid_columns"`

	DetailLinkColumn     string `json:"detail_link_column,omitempty"`
	DetailLinkTemplate   string `json:"detail_link_template,omitempty"`
	DetailLinkTextColumn string `json:"detail_link_text_column,omitempty"`

	ModalSize           models.ModalSize `json:"modal_size,omitempty"`
	MaxResults          int              `json:"max_results,omitempty"`
	QueryTimeoutSeconds int              `json:"query_timeout_seconds,omitempty"`

	IsActive bool `json:"is_active"`
}

// UpdateConfigRequest contains fields for updating a config.
// All fields are optional - only non-nil values are updated. An empty GroupID
// string clears the group.
type UpdateConfigRequest struct {
	ChartPosition *int    `json:"chart_position,omitempty"`
	GroupID       *string `json:"group_id,omitempty"`

	ChartTitle    *string `json:"chart_title,omitempty"`
	ChartSubtitle *string `json:"chart_subtitle,omitempty"`
	XAxisField    *string `json:"x_axis_field,omitempty"`
	YAxisField    *string `json:"y_axis_field,omitempty"`

	DetailSQLQuery  *string              `json:"detail_sql_query,omitempty"`
	DetailSQLParams *models.ParamMapping `json:"detail_sql_params,omitempty"`

	DetailGridTitle   *string              `json:"detail_grid_title,omitempty"`
	DetailGridColumns *[]models.GridColumn `json:"detail_grid_columns,omitempty"`

	DetailLinkColumn     *string `json:"detail_link_column,omitempty"`
	DetailLinkTemplate   *string `json:"detail_link_template,omitempty"`
	DetailLinkTextColumn *string `json:"detail_link_text_column,omitempty"`

	ModalSize           *models.ModalSize `json:"modal_size,omitempty"`
	MaxResults          *int              `json:"max_results,omitempty"`
	QueryTimeoutSeconds *int              `json:"query_timeout_seconds,omitempty"`

	IsActive *bool `json:"is_active,omitempty"`
}

type drillDownService struct {
	configRepo repositories.ConfigRepository
	resolver   datasource.Resolver
	executor   *QueryExecutor
	logger     *zap.Logger
}

// NewDrillDownService creates a DrillDownService with dependencies.
func NewDrillDownService(
	configRepo repositories.ConfigRepository,
	resolver datasource.Resolver,
	executor *QueryExecutor,
	logger *zap.Logger,
) DrillDownService {
	return &drillDownService{
		configRepo: configRepo,
		resolver:   resolver,
		executor:   executor,
		logger:     logger,
	}
}

// Execute reads the config for the clicked slot, binds the payload, runs the
// detail query under a timeout, and formats the rows for the grid.
func (s *drillDownService) Execute(ctx context.Context, clientID int64, chartPosition int, clicked map[string]any) (*DrillDownResult, error) {
	groupID := groupFromClicked(clicked)

	cfg, err := s.configRepo.GetActive(ctx, clientID, chartPosition, groupID)
	if err != nil {
		return nil, err
	}

	// Defensive re-validation against tampered storage: the template was
	// validated at write time, but execution never trusts that.
	if err := sqlguard.Validate(cfg.DetailSQLQuery); err != nil {
		s.logger.Error("stored drill-down query failed re-validation",
			zap.Int64("client_id", clientID),
			zap.String("config_id", cfg.ID.String()),
		)
		return nil, err
	}

	if err := sqlguard.CheckClickedValues(clicked); err != nil {
		s.logger.Warn("clicked payload failed injection screening",
			zap.Int64("client_id", clientID),
			zap.Int("chart_position", chartPosition),
		)
		return nil, err
	}

	bound, err := sqlbind.Bind(cfg.DetailSQLQuery, cfg.DetailSQLParams, clicked, clientID)
	if err != nil {
		return nil, err
	}

	querier, err := s.resolver.ForTenant(ctx, clientID)
	if err != nil {
		s.logger.Error("failed to resolve tenant datasource",
			zap.Int64("client_id", clientID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: tenant datasource unavailable", apperrors.ErrExecution)
	}

	result, err := s.executor.Execute(ctx, querier, cfg.DetailSQLQuery, bound, cfg.MaxResults, cfg.QueryTimeoutSeconds)
	if err != nil {
		return nil, err
	}

	rows := display.Format(result.Rows, cfg.DetailGridColumns, cfg.Link())

	modalSize := cfg.ModalSize
	if !models.ValidModalSize(modalSize) {
		modalSize = models.ModalMedium
	}

	s.logger.Info("executed drill-down",
		zap.Int64("client_id", clientID),
		zap.Int("chart_position", chartPosition),
		zap.Int("rows", len(rows)),
		zap.String("style", bound.Style.String()),
	)

	return &DrillDownResult{
		Title:     cfg.DetailGridTitle,
		Columns:   cfg.DetailGridColumns,
		Rows:      rows,
		TotalRows: len(rows),
		ModalSize: modalSize,
		Link:      cfg.Link(),
	}, nil
}

// HasDrillDown reports whether the slot has an active config.
func (s *drillDownService) HasDrillDown(ctx context.Context, clientID int64, chartPosition int, groupID *string) (bool, error) {
	return s.configRepo.ExistsActive(ctx, clientID, chartPosition, groupID, nil)
}

func (s *drillDownService) ListConfigs(ctx context.Context, clientID int64) ([]*models.DrillDownConfig, error) {
	return s.configRepo.List(ctx, clientID)
}

func (s *drillDownService) GetConfig(ctx context.Context, clientID int64, chartPosition int, groupID *string) (*models.DrillDownConfig, error) {
	return s.configRepo.GetActive(ctx, clientID, chartPosition, groupID)
}

// CreateConfig validates and persists a new config. The conflict pre-check is
// a fast-fail optimization; the repository maps the schema's unique index
// violation to the same conflict error for racing writers.
func (s *drillDownService) CreateConfig(ctx context.Context, clientID int64, req *CreateConfigRequest) (*models.DrillDownConfig, error) {
	if req.ChartPosition < 1 {
		return nil, fmt.Errorf("chart_position must be >= 1")
	}
	if strings.TrimSpace(req.DetailSQLQuery) == "" {
		return nil, fmt.Errorf("detail_sql_query is required")
	}
	if err := sqlguard.Validate(req.DetailSQLQuery); err != nil {
		return nil, err
	}

	if req.IsActive {
		exists, err := s.configRepo.ExistsActive(ctx, clientID, req.ChartPosition, req.GroupID, nil)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperrors.ErrConfigConflict
		}
	}

	modalSize := req.ModalSize
	if modalSize == "" {
		modalSize = models.ModalMedium
	}
	if !models.ValidModalSize(modalSize) {
		return nil, fmt.Errorf("invalid modal_size %q", modalSize)
	}

	cfg := &models.DrillDownConfig{
		ClientID:             clientID,
		ChartPosition:        req.ChartPosition,
		GroupID:              req.GroupID,
		ChartTitle:           req.ChartTitle,
		ChartSubtitle:        req.ChartSubtitle,
		XAxisField:           req.XAxisField,
		YAxisField:           req.YAxisField,
		DetailSQLQuery:       req.DetailSQLQuery,
		DetailSQLParams:      req.DetailSQLParams,
		DetailGridTitle:      req.DetailGridTitle,
		DetailGridColumns:    req.DetailGridColumns,
		DetailLinkColumn:     req.DetailLinkColumn,
		DetailLinkTemplate:   req.DetailLinkTemplate,
		DetailLinkTextColumn: req.DetailLinkTextColumn,
		ModalSize:            modalSize,
		MaxResults:           req.MaxResults,
		QueryTimeoutSeconds:  req.QueryTimeoutSeconds,
		IsActive:             req.IsActive,
	}

	if err := s.configRepo.Create(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("created drill-down config",
		zap.String("id", cfg.ID.String()),
		zap.Int64("client_id", clientID),
		zap.Int("chart_position", cfg.ChartPosition),
	)
	return cfg, nil
}

// UpdateConfig applies a partial update. Validation failures happen before
// the write, so a failed update leaves the stored config untouched.
func (s *drillDownService) UpdateConfig(ctx context.Context, clientID int64, id uuid.UUID, req *UpdateConfigRequest) (*models.DrillDownConfig, error) {
	cfg, err := s.configRepo.GetByID(ctx, clientID, id)
	if err != nil {
		return nil, err
	}

	slotChanged := false
	if req.ChartPosition != nil && *req.ChartPosition != cfg.ChartPosition {
		if *req.ChartPosition < 1 {
			return nil, fmt.Errorf("chart_position must be >= 1")
		}
		cfg.ChartPosition = *req.ChartPosition
		slotChanged = true
	}
	if req.GroupID != nil {
		if *req.GroupID == "" {
			cfg.GroupID = nil
		} else {
			cfg.GroupID = req.GroupID
		}
		slotChanged = true
	}

	if req.DetailSQLQuery != nil && *req.DetailSQLQuery != cfg.DetailSQLQuery {
		if err := sqlguard.Validate(*req.DetailSQLQuery); err != nil {
			return nil, err
		}
		cfg.DetailSQLQuery = *req.DetailSQLQuery
	}

	if req.ChartTitle != nil {
		cfg.ChartTitle = *req.ChartTitle
	}
	if req.ChartSubtitle != nil {
		cfg.ChartSubtitle = *req.ChartSubtitle
	}
	if req.XAxisField != nil {
		cfg.XAxisField = *req.XAxisField
	}
	if req.YAxisField != nil {
		cfg.YAxisField = *req.YAxisField
	}
	if req.DetailSQLParams != nil {
		cfg.DetailSQLParams = *req.DetailSQLParams
	}
	if req.DetailGridTitle != nil {
		cfg.DetailGridTitle = *req.DetailGridTitle
	}
	if req.DetailGridColumns != nil {
		cfg.DetailGridColumns = *req.DetailGridColumns
	}
	if req.DetailLinkColumn != nil {
		cfg.DetailLinkColumn = *req.DetailLinkColumn
	}
	if req.DetailLinkTemplate != nil {
		cfg.DetailLinkTemplate = *req.DetailLinkTemplate
	}
	if req.DetailLinkTextColumn != nil {
		cfg.DetailLinkTextColumn = *req.DetailLinkTextColumn
	}
	if req.ModalSize != nil {
		if !models.ValidModalSize(*req.ModalSize) {
			return nil, fmt.Errorf("invalid modal_size %q", *req.ModalSize)
		}
		cfg.ModalSize = *req.ModalSize
	}
	if req.MaxResults != nil {
		cfg.MaxResults = *req.MaxResults
	}
	if req.QueryTimeoutSeconds != nil {
		cfg.QueryTimeoutSeconds = *req.QueryTimeoutSeconds
	}
	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}

	if cfg.IsActive && (slotChanged || req.IsActive != nil) {
		exists, err := s.configRepo.ExistsActive(ctx, clientID, cfg.ChartPosition, cfg.GroupID, &id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperrors.ErrConfigConflict
		}
	}

	if err := s.configRepo.Update(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("updated drill-down config",
		zap.String("id", id.String()),
		zap.Int64("client_id", clientID),
	)
	return cfg, nil
}

func (s *drillDownService) DeleteConfig(ctx context.Context, clientID int64, id uuid.UUID) error {
	if err := s.configRepo.Delete(ctx, clientID, id); err != nil {
		return err
	}
	s.logger.Info("deleted drill-down config",
		zap.String("id", id.String()),
		zap.Int64("client_id", clientID),
	)
	return nil
}

// groupFromClicked extracts the optional dashboard-tab group from the clicked
// payload. The payload shape belongs to the charting front end; only this one
// well-known field is interpreted here.
func groupFromClicked(clicked map[string]any) *string {
	if v, ok := clicked["group_id"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return &s
		}
	}
	return nil
}
