package engine_test

import (
	"context"
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
	"github.com/merchkit/storesync/internal/engine"
)

const (
	testRefreshDebounce = 500 * time.Millisecond
	testSaveDebounce    = 1200 * time.Millisecond
	testJoinDelay       = 100 * time.Millisecond
)

// fakeTransport stands in for the push stream and lets tests emit change
// events directly.
type fakeTransport struct {
	mu      sync.Mutex
	joined  []string
	left    []string
	handler func(domain.ChangeEvent)
}

func (f *fakeTransport) Join(room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, room)
	return nil
}

func (f *fakeTransport) Leave(room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, room)
	return nil
}

func (f *fakeTransport) Subscribe(fn func(domain.ChangeEvent)) (cancel func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = fn
	return func() {}
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) emit(ev domain.ChangeEvent) {
	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

type engineTestEnv struct {
	engine    *engine.Engine
	gateway   *mocks.MockGateway
	mirror    *mocks.MockSnapshotStore
	notifier  *mocks.MockNotifier
	transport *fakeTransport
}

func setupEngine(t *testing.T, disabled bool) *engineTestEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Error(gomock.Any(), gomock.Any()).AnyTimes()

	env := &engineTestEnv{
		gateway:   mocks.NewMockGateway(ctrl),
		mirror:    mocks.NewMockSnapshotStore(ctrl),
		notifier:  mocks.NewMockNotifier(ctrl),
		transport: &fakeTransport{},
	}
	env.mirror.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	env.mirror.EXPECT().LoadTenant(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	env.mirror.EXPECT().Close().Return(nil).AnyTimes()

	env.engine = engine.New(engine.Options{
		Gateway:           env.gateway,
		Snapshots:         env.mirror,
		Transport:         env.transport,
		Notifier:          env.notifier,
		Logger:            logger,
		Kinds:             domain.NewRegistry(),
		RefreshDebounce:   testRefreshDebounce,
		SaveDebounce:      testSaveDebounce,
		JoinDelay:         testJoinDelay,
		SocketFlagTTL:     2 * time.Second,
		RequestTimeout:    time.Second,
		DisableRemoteSave: disabled,
	})
	t.Cleanup(func() { _ = env.engine.Close() })
	return env
}

func (e *engineTestEnv) expectSwitch(tenantID string, primary, secondary map[domain.Kind]json.RawMessage) {
	e.gateway.EXPECT().Bootstrap(gomock.Any(), tenantID).
		Return(domain.Bundle{TenantID: tenantID, Values: primary}, nil)
	e.gateway.EXPECT().SecondaryBootstrap(gomock.Any(), tenantID).
		Return(domain.Bundle{TenantID: tenantID, Values: secondary}, nil)
}

func TestEngine_PushEventRefreshesWithoutEcho(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupEngine(t, false)
		env.expectSwitch("t1", map[domain.Kind]json.RawMessage{
			domain.KindProducts: json.RawMessage(`[{"id":1}]`),
		}, nil)
		require.NoError(t, env.engine.Switch(context.Background(), "t1"))

		// A remote edit lands: push event, then the debounced refetch.
		env.gateway.EXPECT().
			FetchEntity(gomock.Any(), domain.KindProducts, "t1").
			Return(json.RawMessage(`[{"id":1},{"id":2}]`), nil)

		env.transport.emit(domain.ChangeEvent{Kind: domain.KindProducts, TenantID: "t1"})
		time.Sleep(testRefreshDebounce)
		synctest.Wait()

		h, err := env.engine.Handle(domain.KindProducts)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":1},{"id":2}]`, string(h.Value))
		assert.Equal(t, domain.OriginSocket, h.Origin)

		// The fetched value must not be saved back. Give the immediate
		// save path room to fire if it incorrectly would.
		time.Sleep(testSaveDebounce)
		synctest.Wait()
	})
}

func TestEngine_LocalEditIsSaved(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupEngine(t, false)
		env.expectSwitch("t1", map[domain.Kind]json.RawMessage{
			domain.KindProducts: json.RawMessage(`[{"id":1}]`),
		}, nil)
		require.NoError(t, env.engine.Switch(context.Background(), "t1"))

		env.gateway.EXPECT().
			SaveEntity(gomock.Any(), domain.KindProducts, "t1", gomock.Any()).
			DoAndReturn(func(_ any, _ domain.Kind, _ string, value json.RawMessage) error {
				assert.JSONEq(t, `[{"id":1},{"id":2}]`, string(value))
				return nil
			})

		require.NoError(t, env.engine.Update(context.Background(),
			domain.KindProducts, []byte(`[{"id":1},{"id":2}]`)))
		time.Sleep(time.Millisecond)
		synctest.Wait()

		h, err := env.engine.Handle(domain.KindProducts)
		require.NoError(t, err)
		assert.Equal(t, domain.OriginLocal, h.Origin)
	})
}

func TestEngine_BootstrapValueNotEchoed(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupEngine(t, false)
		env.expectSwitch("t1", map[domain.Kind]json.RawMessage{
			domain.KindProducts:    json.RawMessage(`[{"id":1}]`),
			domain.KindThemeConfig: json.RawMessage(`{"color":"red"}`),
		}, map[domain.Kind]json.RawMessage{
			domain.KindBrands: json.RawMessage(`["acme"]`),
		})

		require.NoError(t, env.engine.Switch(context.Background(), "t1"))
		time.Sleep(testSaveDebounce)
		synctest.Wait()
	})
}

func TestEngine_TenantIsolationAcrossSwitch(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupEngine(t, false)
		env.expectSwitch("t1", map[domain.Kind]json.RawMessage{
			domain.KindProducts: json.RawMessage(`["t1-data"]`),
		}, nil)
		require.NoError(t, env.engine.Switch(context.Background(), "t1"))

		env.expectSwitch("t2", map[domain.Kind]json.RawMessage{
			domain.KindProducts: json.RawMessage(`["t2-data"]`),
		}, nil)
		require.NoError(t, env.engine.Switch(context.Background(), "t2"))

		h, err := env.engine.Handle(domain.KindProducts)
		require.NoError(t, err)
		assert.JSONEq(t, `["t2-data"]`, string(h.Value))

		// An event for the old tenant must not trigger anything.
		env.transport.emit(domain.ChangeEvent{Kind: domain.KindProducts, TenantID: "t1"})
		time.Sleep(testRefreshDebounce)
		synctest.Wait()
	})
}

func TestEngine_SwitchJoinsRoomAfterDelay(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupEngine(t, false)
		env.expectSwitch("t1", nil, nil)
		require.NoError(t, env.engine.Switch(context.Background(), "t1"))

		time.Sleep(testJoinDelay)
		synctest.Wait()

		env.transport.mu.Lock()
		defer env.transport.mu.Unlock()
		assert.Equal(t, []string{"t1"}, env.transport.joined)
	})
}

func TestEngine_SubscribersSeeAppliedWrites(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupEngine(t, true)
		env.expectSwitch("t1", map[domain.Kind]json.RawMessage{
			domain.KindProducts: json.RawMessage(`[]`),
		}, nil)

		var (
			mu   sync.Mutex
			seen []domain.Kind
		)
		cancel := env.engine.Subscribe(func(entry domain.CacheEntry) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, entry.Kind)
		})
		defer cancel()

		require.NoError(t, env.engine.Switch(context.Background(), "t1"))
		require.NoError(t, env.engine.Update(context.Background(), domain.KindProducts, []byte(`[1]`)))
		synctest.Wait()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []domain.Kind{domain.KindProducts, domain.KindProducts}, seen)
	})
}

func TestEngine_ClearBypassesEmptyRegressionGuard(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupEngine(t, false)
		env.expectSwitch("t1", map[domain.Kind]json.RawMessage{
			domain.KindProducts: json.RawMessage(`[{"id":1}]`),
		}, nil)
		require.NoError(t, env.engine.Switch(context.Background(), "t1"))

		env.gateway.EXPECT().
			SaveEntity(gomock.Any(), domain.KindProducts, "t1", gomock.Any()).
			DoAndReturn(func(_ any, _ domain.Kind, _ string, value json.RawMessage) error {
				assert.JSONEq(t, `[]`, string(value))
				return nil
			})

		require.NoError(t, env.engine.Clear(context.Background(), domain.KindProducts))
		time.Sleep(time.Millisecond)
		synctest.Wait()
	})
}

func TestEngine_HandleErrors(t *testing.T) {
	env := setupEngine(t, true)

	_, err := env.engine.Handle(domain.KindProducts)
	assert.ErrorIs(t, err, domain.ErrNoActiveTenant)

	_, err = env.engine.Handle("bogus")
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestEngine_HandleReportsLoadingBeforeData(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupEngine(t, true)
		// Primary bundle arrives without orders; the admin phase only
		// completes with the secondary bundle, which stays empty here.
		env.gateway.EXPECT().Bootstrap(gomock.Any(), "t1").
			Return(domain.Bundle{TenantID: "t1"}, nil)
		env.gateway.EXPECT().SecondaryBootstrap(gomock.Any(), "t1").
			Return(domain.Bundle{}, domain.ErrNetwork)

		require.NoError(t, env.engine.Switch(context.Background(), "t1"))

		h, err := env.engine.Handle(domain.KindOrders)
		require.NoError(t, err)
		assert.True(t, h.Loading)
		assert.JSONEq(t, `[]`, string(h.Value))
	})
}

func TestEngine_HandleSurfacesSaveFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupEngine(t, false)
		env.expectSwitch("t1", nil, map[domain.Kind]json.RawMessage{
			domain.KindOrders: json.RawMessage(`[]`),
		})
		require.NoError(t, env.engine.Switch(context.Background(), "t1"))

		env.gateway.EXPECT().
			SaveEntity(gomock.Any(), domain.KindOrders, "t1", gomock.Any()).
			Return(domain.ErrNetwork)
		env.notifier.EXPECT().SaveFailed(domain.KindOrders, "t1", gomock.Any())

		require.NoError(t, env.engine.Update(context.Background(), domain.KindOrders, []byte(`[1]`)))
		time.Sleep(testSaveDebounce)
		synctest.Wait()

		h, err := env.engine.Handle(domain.KindOrders)
		require.NoError(t, err)
		assert.ErrorIs(t, h.Err, domain.ErrNetwork)
		// The local value stays in place despite the failed save.
		assert.JSONEq(t, `[1]`, string(h.Value))

		// The next edit clears the surfaced error. Its own save is still
		// inside the debounce window when the engine shuts down.
		require.NoError(t, env.engine.Update(context.Background(), domain.KindOrders, []byte(`[1,2]`)))
		h, err = env.engine.Handle(domain.KindOrders)
		require.NoError(t, err)
		assert.NoError(t, h.Err)
	})
}

func TestEngine_DeleteAllPurgesActiveTenant(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		env := setupEngine(t, true)
		env.expectSwitch("t1", map[domain.Kind]json.RawMessage{
			domain.KindProducts: json.RawMessage(`[1]`),
		}, nil)
		require.NoError(t, env.engine.Switch(context.Background(), "t1"))

		env.mirror.EXPECT().DeleteTenant(gomock.Any(), "t1").Return(nil)
		require.NoError(t, env.engine.DeleteAll(context.Background()))

		h, err := env.engine.Handle(domain.KindProducts)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(h.Value))
		assert.Equal(t, domain.Origin(""), h.Origin)
	})
}

func TestEngine_ClosedRejectsOperations(t *testing.T) {
	env := setupEngine(t, true)
	require.NoError(t, env.engine.Close())

	assert.ErrorIs(t, env.engine.Switch(context.Background(), "t1"), domain.ErrEngineClosed)
	_, err := env.engine.Handle(domain.KindProducts)
	assert.ErrorIs(t, err, domain.ErrEngineClosed)
	assert.ErrorIs(t, env.engine.Update(context.Background(), domain.KindProducts, nil), domain.ErrEngineClosed)
	assert.ErrorIs(t, env.engine.Refresh(domain.KindProducts), domain.ErrEngineClosed)
}
