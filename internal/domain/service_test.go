package domain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "metaquery/internal/core/context"
	"metaquery/internal/domain/criteria"
	"metaquery/internal/domain/filter"
	"metaquery/internal/domain/query"
	"metaquery/internal/domain/shop"
)

type stubStore struct {
	mu      sync.Mutex
	queries []query.Query
	scopes  []*appctx.QueryScope
	err     error
}

func (s *stubStore) record(ctx context.Context, q query.Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	s.scopes = append(s.scopes, appctx.GetQueryScope(ctx))
}

func (s *stubStore) Find(ctx context.Context, q query.Query, page *PageRequest) ([]shop.Category, error) {
	s.record(ctx, q)
	return []shop.Category{{ID: 1}}, s.err
}

func (s *stubStore) Count(ctx context.Context, q query.Query) (int64, error) {
	s.record(ctx, q)
	return 1, s.err
}

type observation struct {
	entity, operation string
	err               error
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveQuery(entity, operation string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{entity, operation, err})
}

func TestQueryService_ScopesAndObserves(t *testing.T) {
	store := &stubStore{}
	obs := &recordingObserver{}
	svc := NewQueryService(QueryServiceConfig[shop.Category]{
		Entity:   shop.CategoryDef(),
		Store:    store,
		Observer: obs,
	})

	ctx := appctx.WithRequestID(context.Background(), "req-1")
	c := criteria.New(svc.Entity()).MustSet("id", filter.Eq[int64](1))
	_, err := svc.FindByCriteria(ctx, c)
	require.NoError(t, err)

	require.Len(t, store.queries, 1)
	assert.Equal(t, "id = 1", store.queries[0].Where.String())
	scope := store.scopes[0]
	require.NotNil(t, scope)
	assert.Equal(t, "req-1", scope.RequestID)
	assert.Equal(t, shop.EntityCategory, scope.Entity)
	assert.NotEmpty(t, scope.QueryID)

	assert.Equal(t, []observation{{shop.EntityCategory, "find", nil}}, obs.obs)
}

func TestQueryService_FindPageRunsBothCalls(t *testing.T) {
	store := &stubStore{}
	obs := &recordingObserver{}
	svc := NewQueryService(QueryServiceConfig[shop.Category]{
		Entity:   shop.CategoryDef(),
		Store:    store,
		Observer: obs,
	})

	page, err := svc.FindPageByCriteria(context.Background(), nil, PageRequest{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalCount)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 10, page.Limit)

	ops := make([]string, 0, len(obs.obs))
	for _, o := range obs.obs {
		ops = append(ops, o.operation)
	}
	assert.ElementsMatch(t, []string{"find_page", "count"}, ops)
	assert.NotEqual(t, store.scopes[0].QueryID, store.scopes[1].QueryID)
}

func TestQueryService_ObservesFailures(t *testing.T) {
	boom := errors.New("boom")
	store := &stubStore{err: boom}
	obs := &recordingObserver{}
	svc := NewQueryService(QueryServiceConfig[shop.Category]{
		Entity:   shop.CategoryDef(),
		Store:    store,
		Observer: obs,
	})

	_, err := svc.CountByCriteria(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.Len(t, obs.obs, 1)
	assert.ErrorIs(t, obs.obs[0].err, boom)
}

func TestQueryService_RejectsNegativePaging(t *testing.T) {
	svc := NewQueryService(QueryServiceConfig[shop.Category]{Entity: shop.CategoryDef(), Store: &stubStore{}})
	_, err := svc.FindPageByCriteria(context.Background(), nil, PageRequest{Offset: -1})
	assert.Error(t, err)
}
