package refresh_test

import (
	"encoding/json"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports/mocks"
	"github.com/merchkit/storesync/internal/engine/cache"
	"github.com/merchkit/storesync/internal/engine/origin"
	"github.com/merchkit/storesync/internal/engine/refresh"
	"go.trai.ch/zerr"
)

const testDebounce = 500 * time.Millisecond

type dispatcherTestEnv struct {
	dispatcher *refresh.Dispatcher
	gateway    *mocks.MockGateway
	cache      *cache.Store
	origins    *origin.Registry

	mu      sync.Mutex
	tenant  string
	gen     domain.Generation
	applied []domain.CacheEntry
}

func (e *dispatcherTestEnv) setCurrent(tenant string, gen domain.Generation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tenant, e.gen = tenant, gen
}

func (e *dispatcherTestEnv) appliedKinds() []domain.Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	kinds := make([]domain.Kind, 0, len(e.applied))
	for _, entry := range e.applied {
		kinds = append(kinds, entry.Kind)
	}
	return kinds
}

func setupDispatcher(t *testing.T) *dispatcherTestEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockGateway(ctrl)
	mirror := mocks.NewMockSnapshotStore(ctrl)
	mirror.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()

	env := &dispatcherTestEnv{
		gateway: gateway,
		cache:   cache.NewStore(mirror, logger),
		origins: origin.NewRegistry(2 * time.Second),
		tenant:  "t1",
		gen:     1,
	}
	env.dispatcher = refresh.NewDispatcher(
		gateway, env.cache, env.origins, domain.NewRegistry(), logger,
		testDebounce, time.Second,
		func() (string, domain.Generation) {
			env.mu.Lock()
			defer env.mu.Unlock()
			return env.tenant, env.gen
		},
		func(entry domain.CacheEntry) {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.applied = append(env.applied, entry)
		},
	)
	t.Cleanup(env.dispatcher.Close)
	return env
}

func TestDispatcher_BurstCoalescesToOneFetch(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupDispatcher(t)
		env.gateway.EXPECT().
			FetchEntity(gomock.Any(), domain.KindProducts, "t1").
			Return(json.RawMessage(`[{"id":1}]`), nil).
			Times(1)

		for range 5 {
			env.dispatcher.Request(domain.RefreshSignal{Kind: domain.KindProducts, TenantID: "t1"})
			time.Sleep(50 * time.Millisecond)
		}
		time.Sleep(testDebounce)
		synctest.Wait()

		entry, ok := env.cache.Get(domain.KindProducts, "t1")
		require.True(t, ok)
		assert.Equal(t, domain.OriginSocket, entry.Origin)
		assert.JSONEq(t, `[{"id":1}]`, string(entry.Value))
		assert.Equal(t, []domain.Kind{domain.KindProducts}, env.appliedKinds())
	})
}

func TestDispatcher_LastTenantWins(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupDispatcher(t)
		env.setCurrent("t2", 2)
		env.gateway.EXPECT().
			FetchEntity(gomock.Any(), domain.KindOrders, "t2").
			Return(json.RawMessage(`[]`), nil).
			Times(1)

		env.dispatcher.Request(domain.RefreshSignal{Kind: domain.KindOrders, TenantID: "t1"})
		time.Sleep(100 * time.Millisecond)
		env.dispatcher.Request(domain.RefreshSignal{Kind: domain.KindOrders, TenantID: "t2"})
		time.Sleep(testDebounce)
		synctest.Wait()

		_, ok := env.cache.Get(domain.KindOrders, "t1")
		assert.False(t, ok)
		_, ok = env.cache.Get(domain.KindOrders, "t2")
		assert.True(t, ok)
	})
}

func TestDispatcher_SeparateKindsFetchIndependently(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupDispatcher(t)
		env.gateway.EXPECT().FetchEntity(gomock.Any(), domain.KindProducts, "t1").Return(json.RawMessage(`[]`), nil)
		env.gateway.EXPECT().FetchEntity(gomock.Any(), domain.KindTags, "t1").Return(json.RawMessage(`[]`), nil)

		env.dispatcher.Request(domain.RefreshSignal{Kind: domain.KindProducts, TenantID: "t1"})
		env.dispatcher.Request(domain.RefreshSignal{Kind: domain.KindTags, TenantID: "t1"})
		time.Sleep(testDebounce)
		synctest.Wait()

		assert.Len(t, env.appliedKinds(), 2)
	})
}

func TestDispatcher_DropsWhenTenantSwitchedBeforeFire(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupDispatcher(t)

		env.dispatcher.Request(domain.RefreshSignal{Kind: domain.KindProducts, TenantID: "t1"})
		env.setCurrent("t2", 2)
		time.Sleep(testDebounce)
		synctest.Wait()

		assert.Empty(t, env.appliedKinds())
	})
}

func TestDispatcher_DiscardsResponseAfterGenerationAdvance(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupDispatcher(t)
		env.gateway.EXPECT().
			FetchEntity(gomock.Any(), domain.KindProducts, "t1").
			DoAndReturn(func(ctx any, kind domain.Kind, tenantID string) (json.RawMessage, error) {
				// Tenant switches away and back while the fetch is slow.
				env.setCurrent("t1", 3)
				return json.RawMessage(`[{"id":1}]`), nil
			})

		env.dispatcher.Request(domain.RefreshSignal{Kind: domain.KindProducts, TenantID: "t1"})
		time.Sleep(testDebounce)
		synctest.Wait()

		_, ok := env.cache.Get(domain.KindProducts, "t1")
		assert.False(t, ok)
	})
}

func TestDispatcher_NotFoundAppliesKindDefault(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupDispatcher(t)
		env.gateway.EXPECT().
			FetchEntity(gomock.Any(), domain.KindTags, "t1").
			Return(nil, domain.ErrNotFound)

		env.dispatcher.Request(domain.RefreshSignal{Kind: domain.KindTags, TenantID: "t1"})
		time.Sleep(testDebounce)
		synctest.Wait()

		entry, ok := env.cache.Get(domain.KindTags, "t1")
		require.True(t, ok)
		assert.JSONEq(t, `[]`, string(entry.Value))
	})
}

func TestDispatcher_FetchErrorKeepsCachedValue(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupDispatcher(t)
		env.gateway.EXPECT().
			FetchEntity(gomock.Any(), domain.KindProducts, "t1").
			Return(nil, zerr.Wrap(domain.ErrNetwork, "gateway unreachable"))

		env.dispatcher.Request(domain.RefreshSignal{Kind: domain.KindProducts, TenantID: "t1"})
		time.Sleep(testDebounce)
		synctest.Wait()

		_, ok := env.cache.Get(domain.KindProducts, "t1")
		assert.False(t, ok)
		assert.Empty(t, env.appliedKinds())
	})
}

func TestDispatcher_MarksSocketOrigin(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupDispatcher(t)
		env.gateway.EXPECT().
			FetchEntity(gomock.Any(), domain.KindProducts, "t1").
			Return(json.RawMessage(`[]`), nil)

		env.dispatcher.Request(domain.RefreshSignal{Kind: domain.KindProducts, TenantID: "t1"})
		time.Sleep(testDebounce)
		synctest.Wait()

		assert.True(t, env.origins.Consume(domain.KindProducts, "t1"))
	})
}

func TestDispatcher_UnknownKindDropped(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupDispatcher(t)

		env.dispatcher.Request(domain.RefreshSignal{Kind: "bogus", TenantID: "t1"})
		time.Sleep(testDebounce)
		synctest.Wait()

		assert.Empty(t, env.appliedKinds())
	})
}
