package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendacrm/venda-engine/pkg/apperrors"
	"github.com/vendacrm/venda-engine/pkg/models"
)

// ConfigRepository provides tenant-scoped data access for drill-down configs.
// The JSON-typed columns (detail_sql_params, detail_grid_columns) are parsed
// exactly once, at scan time; the rest of the pipeline only sees typed
// structures.
type ConfigRepository interface {
	Create(ctx context.Context, cfg *models.DrillDownConfig) error
	GetActive(ctx context.Context, clientID int64, chartPosition int, groupID *string) (*models.DrillDownConfig, error)
	GetByID(ctx context.Context, clientID int64, id uuid.UUID) (*models.DrillDownConfig, error)
	List(ctx context.Context, clientID int64) ([]*models.DrillDownConfig, error)
	Update(ctx context.Context, cfg *models.DrillDownConfig) error
	Delete(ctx context.Context, clientID int64, id uuid.UUID) error

	// ExistsActive reports whether another active config occupies the
	// (client, position, group) slot. Used as a fast-fail check before
	// writes; the partial unique index in the schema is the authoritative
	// guard against concurrent writers.
	ExistsActive(ctx context.Context, clientID int64, chartPosition int, groupID *string, excludeID *uuid.UUID) (bool, error)
}

type configRepository struct {
	pool *pgxpool.Pool
}

// NewConfigRepository creates a ConfigRepository over the engine database.
func NewConfigRepository(pool *pgxpool.Pool) ConfigRepository {
	return &configRepository{pool: pool}
}

var _ ConfigRepository = (*configRepository)(nil)

const configColumns = `
	id, client_id, chart_position, group_id,
	chart_title, chart_subtitle, x_axis_field, y_axis_field,
	detail_sql_query, detail_sql_params,
	detail_grid_title, detail_grid_columns,
	detail_link_column, detail_link_template, detail_link_text_column,
	modal_size, max_results, query_timeout_seconds,
	is_active, created_at, updated_at`

func (r *configRepository) Create(ctx context.Context, cfg *models.DrillDownConfig) error {
	now := time.Now()
	cfg.ID = uuid.New()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	paramsJSON, columnsJSON, err := encodeConfigJSON(cfg)
	if err != nil {
		return err
	}

	sql := `
		INSERT INTO crm_drilldown_configs (` + configColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	_, err = r.pool.Exec(ctx, sql,
		cfg.ID, cfg.ClientID, cfg.ChartPosition, cfg.GroupID,
		cfg.ChartTitle, cfg.ChartSubtitle, cfg.XAxisField, cfg.YAxisField,
		cfg.DetailSQLQuery, paramsJSON,
		cfg.DetailGridTitle, columnsJSON,
		cfg.DetailLinkColumn, cfg.DetailLinkTemplate, cfg.DetailLinkTextColumn,
		cfg.ModalSize, cfg.MaxResults, cfg.QueryTimeoutSeconds,
		cfg.IsActive, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConfigConflict
		}
		return fmt.Errorf("failed to create drill-down config: %w", err)
	}
	return nil
}

func (r *configRepository) GetActive(ctx context.Context, clientID int64, chartPosition int, groupID *string) (*models.DrillDownConfig, error) {
	sql := `
		SELECT ` + configColumns + `
		FROM crm_drilldown_configs
		WHERE client_id = $1 AND chart_position = $2
		  AND COALESCE(group_id, '') = COALESCE($3, '')
		  AND is_active`

	row := r.pool.QueryRow(ctx, sql, clientID, chartPosition, groupID)
	cfg, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConfigNotFound
		}
		return nil, err
	}
	return cfg, nil
}

func (r *configRepository) GetByID(ctx context.Context, clientID int64, id uuid.UUID) (*models.DrillDownConfig, error) {
	sql := `
		SELECT ` + configColumns + `
		FROM crm_drilldown_configs
		WHERE client_id = $1 AND id = $2`

	row := r.pool.QueryRow(ctx, sql, clientID, id)
	cfg, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConfigNotFound
		}
		return nil, err
	}
	return cfg, nil
}

func (r *configRepository) List(ctx context.Context, clientID int64) ([]*models.DrillDownConfig, error) {
	sql := `
		SELECT ` + configColumns + `
		FROM crm_drilldown_configs
		WHERE client_id = $1
		ORDER BY COALESCE(group_id, ''), chart_position`

	rows, err := r.pool.Query(ctx, sql, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list drill-down configs: %w", err)
	}
	defer rows.Close()

	configs := make([]*models.DrillDownConfig, 0)
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drill-down configs: %w", err)
	}
	return configs, nil
}

func (r *configRepository) Update(ctx context.Context, cfg *models.DrillDownConfig) error {
	cfg.UpdatedAt = time.Now()

	paramsJSON, columnsJSON, err := encodeConfigJSON(cfg)
	if err != nil {
		return err
	}

	sql := `
		UPDATE crm_drilldown_configs
		SET chart_position = $3,
		    group_id = $4,
		    chart_title = $5,
		    chart_subtitle = $6,
		    x_axis_field = $7,
		    y_axis_field = $8,
		    detail_sql_query = $9,
		    detail_sql_params = $10,
		    detail_grid_title = $11,
		    detail_grid_columns = $12,
		    detail_link_column = $13,
		    detail_link_template = $14,
		    detail_link_text_column = $15,
		    modal_size = $16,
		    max_results = $17,
		    query_timeout_seconds = $18,
		    is_active = $19,
		    updated_at = $20
		WHERE client_id = $1 AND id = $2`

	result, err := r.pool.Exec(ctx, sql,
		cfg.ClientID, cfg.ID,
		cfg.ChartPosition, cfg.GroupID,
		cfg.ChartTitle, cfg.ChartSubtitle, cfg.XAxisField, cfg.YAxisField,
		cfg.DetailSQLQuery, paramsJSON,
		cfg.DetailGridTitle, columnsJSON,
		cfg.DetailLinkColumn, cfg.DetailLinkTemplate, cfg.DetailLinkTextColumn,
		cfg.ModalSize, cfg.MaxResults, cfg.QueryTimeoutSeconds,
		cfg.IsActive, cfg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConfigConflict
		}
		return fmt.Errorf("failed to update drill-down config: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrConfigNotFound
	}
	return nil
}

func (r *configRepository) Delete(ctx context.Context, clientID int64, id uuid.UUID) error {
	sql := `DELETE FROM crm_drilldown_configs WHERE client_id = $1 AND id = $2`

	result, err := r.pool.Exec(ctx, sql, clientID, id)
	if err != nil {
		return fmt.Errorf("failed to delete drill-down config: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Wrong tenant or missing id: an error, never a silent success.
		return apperrors.ErrConfigNotFound
	}
	return nil
}

func (r *configRepository) ExistsActive(ctx context.Context, clientID int64, chartPosition int, groupID *string, excludeID *uuid.UUID) (bool, error) {
	sql := `
		SELECT 1 FROM crm_drilldown_configs
		WHERE client_id = $1 AND chart_position = $2
		  AND COALESCE(group_id, '') = COALESCE($3, '')
		  AND is_active
		  AND ($4::uuid IS NULL OR id <> $4)
		LIMIT 1`

	var one int
	err := r.pool.QueryRow(ctx, sql, clientID, chartPosition, groupID, excludeID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check config conflict: %w", err)
	}
	return true, nil
}

func encodeConfigJSON(cfg *models.DrillDownConfig) (paramsJSON, columnsJSON []byte, err error) {
	paramsJSON, err = json.Marshal(cfg.DetailSQLParams)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode detail_sql_params: %w", err)
	}
	columnsJSON, err = json.Marshal(cfg.DetailGridColumns)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode detail_grid_columns: %w", err)
	}
	return paramsJSON, columnsJSON, nil
}

func scanConfig(row pgx.Row) (*models.DrillDownConfig, error) {
	var (
		cfg         models.DrillDownConfig
		paramsJSON  []byte
		columnsJSON []byte
	)

	err := row.Scan(
		&cfg.ID, &cfg.ClientID, &cfg.ChartPosition, &cfg.GroupID,
		&cfg.ChartTitle, &cfg.ChartSubtitle, &cfg.XAxisField, &cfg.YAxisField,
		&cfg.DetailSQLQuery, &paramsJSON,
		&cfg.DetailGridTitle, &columnsJSON,
		&cfg.DetailLinkColumn, &cfg.DetailLinkTemplate, &cfg.DetailLinkTextColumn,
		&cfg.ModalSize, &cfg.MaxResults, &cfg.QueryTimeoutSeconds,
		&cfg.IsActive, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeConfigJSON(&cfg, paramsJSON, columnsJSON); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeConfigJSON parses the stored JSON columns. A parse failure marks the
// row as malformed rather than crashing the request.
func decodeConfigJSON(cfg *models.DrillDownConfig, paramsJSON, columnsJSON []byte) error {
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &cfg.DetailSQLParams); err != nil {
			return fmt.Errorf("%w: detail_sql_params: %v", apperrors.ErrMalformedConfig, err)
		}
	}
	if len(columnsJSON) > 0 {
		if err := json.Unmarshal(columnsJSON, &cfg.DetailGridColumns); err != nil {
			return fmt.Errorf("%w: detail_grid_columns: %v", apperrors.ErrMalformedConfig, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
