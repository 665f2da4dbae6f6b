package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vendacrm/venda-engine/pkg/adapters/datasource"
	"github.com/vendacrm/venda-engine/pkg/apperrors"
	"github.com/vendacrm/venda-engine/pkg/models"
)

// mockConfigRepo is an in-memory ConfigRepository for service tests.
type mockConfigRepo struct {
	configs map[uuid.UUID]*models.DrillDownConfig

	createErr error
}

func newMockConfigRepo() *mockConfigRepo {
	return &mockConfigRepo{configs: make(map[uuid.UUID]*models.DrillDownConfig)}
}

func (m *mockConfigRepo) Create(ctx context.Context, cfg *models.DrillDownConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	stored := *cfg
	m.configs[cfg.ID] = &stored
	return nil
}

func (m *mockConfigRepo) GetActive(ctx context.Context, clientID int64, chartPosition int, groupID *string) (*models.DrillDownConfig, error) {
	for _, cfg := range m.configs {
		if cfg.ClientID == clientID && cfg.ChartPosition == chartPosition && cfg.IsActive && sameGroup(cfg.GroupID, groupID) {
			copied := *cfg
			return &copied, nil
		}
	}
	return nil, apperrors.ErrConfigNotFound
}

func (m *mockConfigRepo) GetByID(ctx context.Context, clientID int64, id uuid.UUID) (*models.DrillDownConfig, error) {
	cfg, ok := m.configs[id]
	if !ok || cfg.ClientID != clientID {
		return nil, apperrors.ErrConfigNotFound
	}
	copied := *cfg
	return &copied, nil
}

func (m *mockConfigRepo) List(ctx context.Context, clientID int64) ([]*models.DrillDownConfig, error) {
	out := make([]*models.DrillDownConfig, 0)
	for _, cfg := range m.configs {
		if cfg.ClientID == clientID {
			copied := *cfg
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockConfigRepo) Update(ctx context.Context, cfg *models.DrillDownConfig) error {
	existing, ok := m.configs[cfg.ID]
	if !ok || existing.ClientID != cfg.ClientID {
		return apperrors.ErrConfigNotFound
	}
	stored := *cfg
	m.configs[cfg.ID] = &stored
	return nil
}

func (m *mockConfigRepo) Delete(ctx context.Context, clientID int64, id uuid.UUID) error {
	cfg, ok := m.configs[id]
	if !ok || cfg.ClientID != clientID {
		return apperrors.ErrConfigNotFound
	}
	delete(m.configs, id)
	return nil
}

func (m *mockConfigRepo) ExistsActive(ctx context.Context, clientID int64, chartPosition int, groupID *string, excludeID *uuid.UUID) (bool, error) {
	for _, cfg := range m.configs {
		if excludeID != nil && cfg.ID == *excludeID {
			continue
		}
		if cfg.ClientID == clientID && cfg.ChartPosition == chartPosition && cfg.IsActive && sameGroup(cfg.GroupID, groupID) {
			return true, nil
		}
	}
	return false, nil
}

func sameGroup(a, b *string) bool {
	av, bv := "", ""
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// recordingQuerier captures the query and arguments it was called with.
type recordingQuerier struct {
	result *datasource.QueryResult
	err    error

	query      string
	positional []any
	named      map[string]any
}

func (q *recordingQuerier) QueryPositional(ctx context.Context, query string, args []any) (*datasource.QueryResult, error) {
	q.query = query
	q.positional = args
	return q.result, q.err
}

func (q *recordingQuerier) QueryNamed(ctx context.Context, query string, args map[string]any) (*datasource.QueryResult, error) {
	q.query = query
	q.named = args
	return q.result, q.err
}

func (q *recordingQuerier) Close() error { return nil }

type staticTenantResolver struct {
	querier datasource.RowQuerier
	err     error
}

func (r *staticTenantResolver) ForTenant(ctx context.Context, clientID int64) (datasource.RowQuerier, error) {
	return r.querier, r.err
}

func newTestService(repo *mockConfigRepo, querier datasource.RowQuerier) DrillDownService {
	logger := zap.NewNop()
	return NewDrillDownService(repo, &staticTenantResolver{querier: querier}, NewQueryExecutor(logger, 0, 0), logger)
}

func seedConfig(repo *mockConfigRepo, cfg *models.DrillDownConfig) *models.DrillDownConfig {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	repo.configs[cfg.ID] = cfg
	return cfg
}

func TestExecute_TenantIsolationEndToEnd(t *testing.T) {
	repo := newMockConfigRepo()
	seedConfig(repo, &models.DrillDownConfig{
		ClientID:       7,
		ChartPosition:  1,
		DetailSQLQuery: "SELECT id, nome FROM leads WHERE client_id = ? AND status = ?",
		DetailSQLParams: models.ParamMapping{Pairs: []models.ParamPair{
			{Name: "client_id", Field: "client_id"},
			{Name: "status", Field: "status"},
		}},
		DetailGridTitle: "Leads",
		DetailGridColumns: []models.GridColumn{
			{Field: "id", Title: "ID", Type: models.ColumnNumber},
			{Field: "nome", Title: "Nome", Type: models.ColumnText},
		},
		ModalSize:           models.ModalLarge,
		MaxResults:          100,
		QueryTimeoutSeconds: 5,
		IsActive:            true,
	})

	querier := &recordingQuerier{
		result: &datasource.QueryResult{
			Columns: []string{"id", "nome"},
			Rows:    []map[string]any{{"id": 1, "nome": "Maria"}},
		},
	}
	svc := newTestService(repo, querier)

	// The clicked payload tries to smuggle another tenant's id.
	clicked := map[string]any{"client_id": 999, "status": "quente"}
	result, err := svc.Execute(context.Background(), 7, 1, clicked)
	require.NoError(t, err)

	require.Len(t, querier.positional, 2)
	assert.Equal(t, int64(7), querier.positional[0])
	assert.Equal(t, "quente", querier.positional[1])

	assert.Equal(t, "Leads", result.Title)
	assert.Equal(t, 1, result.TotalRows)
	assert.Equal(t, models.ModalLarge, result.ModalSize)
}

func TestExecute_NoConfigForSlot(t *testing.T) {
	svc := newTestService(newMockConfigRepo(), &recordingQuerier{})

	_, err := svc.Execute(context.Background(), 7, 3, map[string]any{})
	assert.True(t, errors.Is(err, apperrors.ErrConfigNotFound), "got %v", err)
}

func TestExecute_GroupFromClickedPayload(t *testing.T) {
	repo := newMockConfigRepo()
	group := "vendas"
	seedConfig(repo, &models.DrillDownConfig{
		ClientID:        7,
		ChartPosition:   1,
		GroupID:         &group,
		DetailSQLQuery:  "SELECT 1",
		DetailGridTitle: "Grouped",
		IsActive:        true,
	})

	querier := &recordingQuerier{result: &datasource.QueryResult{}}
	svc := newTestService(repo, querier)

	// Without the group the slot does not resolve.
	_, err := svc.Execute(context.Background(), 7, 1, map[string]any{})
	assert.True(t, errors.Is(err, apperrors.ErrConfigNotFound))

	result, err := svc.Execute(context.Background(), 7, 1, map[string]any{"group_id": "vendas"})
	require.NoError(t, err)
	assert.Equal(t, "Grouped", result.Title)
}

func TestExecute_RejectsTamperedStoredQuery(t *testing.T) {
	repo := newMockConfigRepo()
	seedConfig(repo, &models.DrillDownConfig{
		ClientID:       7,
		ChartPosition:  1,
		DetailSQLQuery: "SELECT 1; DROP TABLE leads",
		IsActive:       true,
	})

	svc := newTestService(repo, &recordingQuerier{})

	_, err := svc.Execute(context.Background(), 7, 1, map[string]any{})
	assert.True(t, errors.Is(err, apperrors.ErrUnsafeQuery), "got %v", err)
}

func TestExecute_RejectsInjectionInClickedValues(t *testing.T) {
	repo := newMockConfigRepo()
	seedConfig(repo, &models.DrillDownConfig{
		ClientID:       7,
		ChartPosition:  1,
		DetailSQLQuery: "SELECT * FROM leads WHERE status = ?",
		DetailSQLParams: models.ParamMapping{Pairs: []models.ParamPair{
			{Name: "status", Field: "status"},
		}},
		IsActive: true,
	})

	querier := &recordingQuerier{result: &datasource.QueryResult{}}
	svc := newTestService(repo, querier)

	_, err := svc.Execute(context.Background(), 7, 1, map[string]any{"status": "' OR 1=1 --"})
	assert.True(t, errors.Is(err, apperrors.ErrBinding), "got %v", err)
	assert.Empty(t, querier.query, "query must not reach the data source")
}

func TestExecute_ResolverFailureIsSanitized(t *testing.T) {
	repo := newMockConfigRepo()
	seedConfig(repo, &models.DrillDownConfig{
		ClientID:       7,
		ChartPosition:  1,
		DetailSQLQuery: "SELECT 1",
		IsActive:       true,
	})

	logger := zap.NewNop()
	svc := NewDrillDownService(repo, &staticTenantResolver{
		err: errors.New("dial tcp 10.0.0.5:5432: connection refused"),
	}, NewQueryExecutor(logger, 0, 0), logger)

	_, err := svc.Execute(context.Background(), 7, 1, map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrExecution))
	assert.NotContains(t, err.Error(), "10.0.0.5")
}

func TestCreateConfig(t *testing.T) {
	repo := newMockConfigRepo()
	svc := newTestService(repo, &recordingQuerier{})
	ctx := context.Background()

	created, err := svc.CreateConfig(ctx, 7, &CreateConfigRequest{
		ChartPosition:   1,
		DetailSQLQuery:  "SELECT id FROM leads WHERE client_id = ?",
		DetailGridTitle: "Leads",
		IsActive:        true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, int64(7), created.ClientID)
	assert.Equal(t, models.ModalMedium, created.ModalSize, "modal size defaults to medium")

	t.Run("conflict on occupied slot", func(t *testing.T) {
		_, err := svc.CreateConfig(ctx, 7, &CreateConfigRequest{
			ChartPosition:  1,
			DetailSQLQuery: "SELECT 1",
			IsActive:       true,
		})
		assert.True(t, errors.Is(err, apperrors.ErrConfigConflict), "got %v", err)
	})

	t.Run("inactive config may share the slot", func(t *testing.T) {
		_, err := svc.CreateConfig(ctx, 7, &CreateConfigRequest{
			ChartPosition:  1,
			DetailSQLQuery: "SELECT 1",
			IsActive:       false,
		})
		assert.NoError(t, err)
	})

	t.Run("same slot in another group is free", func(t *testing.T) {
		group := "financeiro"
		_, err := svc.CreateConfig(ctx, 7, &CreateConfigRequest{
			ChartPosition:  1,
			GroupID:        &group,
			DetailSQLQuery: "SELECT 1",
			IsActive:       true,
		})
		assert.NoError(t, err)
	})

	t.Run("unsafe query rejected", func(t *testing.T) {
		_, err := svc.CreateConfig(ctx, 7, &CreateConfigRequest{
			ChartPosition:  2,
			DetailSQLQuery: "DELETE FROM leads",
		})
		assert.True(t, errors.Is(err, apperrors.ErrUnsafeQuery), "got %v", err)
	})

	t.Run("invalid position rejected", func(t *testing.T) {
		_, err := svc.CreateConfig(ctx, 7, &CreateConfigRequest{
			ChartPosition:  0,
			DetailSQLQuery: "SELECT 1",
		})
		assert.Error(t, err)
	})
}

func TestUpdateConfig(t *testing.T) {
	repo := newMockConfigRepo()
	svc := newTestService(repo, &recordingQuerier{})
	ctx := context.Background()

	cfg := seedConfig(repo, &models.DrillDownConfig{
		ClientID:        7,
		ChartPosition:   1,
		DetailSQLQuery:  "SELECT 1",
		DetailGridTitle: "Original",
		ModalSize:       models.ModalMedium,
		IsActive:        true,
	})

	t.Run("partial update touches only provided fields", func(t *testing.T) {
		title := "Renamed"
		updated, err := svc.UpdateConfig(ctx, 7, cfg.ID, &UpdateConfigRequest{DetailGridTitle: &title})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.DetailGridTitle)
		assert.Equal(t, "SELECT 1", updated.DetailSQLQuery)
		assert.Equal(t, 1, updated.ChartPosition)
	})

	t.Run("new query is validated before write", func(t *testing.T) {
		bad := "TRUNCATE leads"
		_, err := svc.UpdateConfig(ctx, 7, cfg.ID, &UpdateConfigRequest{DetailSQLQuery: &bad})
		assert.True(t, errors.Is(err, apperrors.ErrUnsafeQuery), "got %v", err)

		stored, err := repo.GetByID(ctx, 7, cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1", stored.DetailSQLQuery, "failed update must not change storage")
	})

	t.Run("moving into an occupied slot conflicts", func(t *testing.T) {
		other := seedConfig(repo, &models.DrillDownConfig{
			ClientID:       7,
			ChartPosition:  2,
			DetailSQLQuery: "SELECT 2",
			IsActive:       true,
		})
		pos := 1
		_, err := svc.UpdateConfig(ctx, 7, other.ID, &UpdateConfigRequest{ChartPosition: &pos})
		assert.True(t, errors.Is(err, apperrors.ErrConfigConflict), "got %v", err)
	})

	t.Run("wrong tenant sees not found", func(t *testing.T) {
		title := "x"
		_, err := svc.UpdateConfig(ctx, 8, cfg.ID, &UpdateConfigRequest{DetailGridTitle: &title})
		assert.True(t, errors.Is(err, apperrors.ErrConfigNotFound), "got %v", err)
	})
}

func TestDeleteConfig(t *testing.T) {
	repo := newMockConfigRepo()
	svc := newTestService(repo, &recordingQuerier{})
	ctx := context.Background()

	cfg := seedConfig(repo, &models.DrillDownConfig{
		ClientID:       7,
		ChartPosition:  1,
		DetailSQLQuery: "SELECT 1",
	})

	err := svc.DeleteConfig(ctx, 8, cfg.ID)
	assert.True(t, errors.Is(err, apperrors.ErrConfigNotFound), "cross-tenant delete must fail")

	require.NoError(t, svc.DeleteConfig(ctx, 7, cfg.ID))

	err = svc.DeleteConfig(ctx, 7, cfg.ID)
	assert.True(t, errors.Is(err, apperrors.ErrConfigNotFound), "second delete must fail")
}

func TestHasDrillDown(t *testing.T) {
	repo := newMockConfigRepo()
	seedConfig(repo, &models.DrillDownConfig{
		ClientID:       7,
		ChartPosition:  1,
		DetailSQLQuery: "SELECT 1",
		IsActive:       true,
	})
	svc := newTestService(repo, &recordingQuerier{})
	ctx := context.Background()

	has, err := svc.HasDrillDown(ctx, 7, 1, nil)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = svc.HasDrillDown(ctx, 7, 2, nil)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = svc.HasDrillDown(ctx, 8, 1, nil)
	require.NoError(t, err)
	assert.False(t, has)
}
