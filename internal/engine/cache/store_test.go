package cache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports/mocks"
	"github.com/merchkit/storesync/internal/engine/cache"
	"go.trai.ch/zerr"
)

func newStore(t *testing.T) (*cache.Store, *mocks.MockSnapshotStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mirror := mocks.NewMockSnapshotStore(ctrl)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	return cache.NewStore(mirror, logger), mirror
}

func TestStore_PutGet(t *testing.T) {
	s, mirror := newStore(t)
	mirror.EXPECT().
		Store(gomock.Any(), domain.KindProducts, "t1", gomock.Any(), gomock.Any()).
		Return(nil)

	s.Put(context.Background(), domain.CacheEntry{
		Kind:     domain.KindProducts,
		TenantID: "t1",
		Value:    json.RawMessage(`[{"id":1}]`),
		Origin:   domain.OriginLocal,
	})

	e, ok := s.Get(domain.KindProducts, "t1")
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":1}]`, string(e.Value))
	assert.False(t, e.LastSyncedAt.IsZero())
}

func TestStore_TenantIsolation(t *testing.T) {
	s, mirror := newStore(t)
	mirror.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	s.Put(context.Background(), domain.CacheEntry{Kind: domain.KindTags, TenantID: "t1", Value: json.RawMessage(`["a"]`)})
	s.Put(context.Background(), domain.CacheEntry{Kind: domain.KindTags, TenantID: "t2", Value: json.RawMessage(`["b"]`)})

	e1, ok := s.Get(domain.KindTags, "t1")
	require.True(t, ok)
	assert.JSONEq(t, `["a"]`, string(e1.Value))

	e2, ok := s.Get(domain.KindTags, "t2")
	require.True(t, ok)
	assert.JSONEq(t, `["b"]`, string(e2.Value))
}

func TestStore_PutSurvivesMirrorFailure(t *testing.T) {
	s, mirror := newStore(t)
	mirror.EXPECT().
		Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(zerr.New("disk full"))

	s.Put(context.Background(), domain.CacheEntry{Kind: domain.KindRoles, TenantID: "t1", Value: json.RawMessage(`[]`)})

	_, ok := s.Get(domain.KindRoles, "t1")
	assert.True(t, ok)
}

func TestStore_WarmFromSkipsFresherEntries(t *testing.T) {
	s, mirror := newStore(t)
	mirror.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	mirror.EXPECT().LoadTenant(gomock.Any(), "t1").Return([]domain.CacheEntry{
		{Kind: domain.KindProducts, TenantID: "t1", Value: json.RawMessage(`["stale"]`), Origin: domain.OriginInitial},
		{Kind: domain.KindBrands, TenantID: "t1", Value: json.RawMessage(`["persisted"]`), Origin: domain.OriginInitial},
	}, nil)

	s.Put(context.Background(), domain.CacheEntry{Kind: domain.KindProducts, TenantID: "t1", Value: json.RawMessage(`["live"]`)})

	applied, err := s.WarmFrom(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, domain.KindBrands, applied[0].Kind)

	e, _ := s.Get(domain.KindProducts, "t1")
	assert.JSONEq(t, `["live"]`, string(e.Value))
	e, _ = s.Get(domain.KindBrands, "t1")
	assert.JSONEq(t, `["persisted"]`, string(e.Value))
}

func TestStore_ResetAllDropsOnlyTenant(t *testing.T) {
	s, mirror := newStore(t)
	mirror.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	s.Put(context.Background(), domain.CacheEntry{Kind: domain.KindTags, TenantID: "t1", Value: json.RawMessage(`[]`)})
	s.Put(context.Background(), domain.CacheEntry{Kind: domain.KindTags, TenantID: "t2", Value: json.RawMessage(`[]`)})

	s.ResetAll("t1")

	_, ok := s.Get(domain.KindTags, "t1")
	assert.False(t, ok)
	_, ok = s.Get(domain.KindTags, "t2")
	assert.True(t, ok)
}

func TestStore_PurgeDeletesMirror(t *testing.T) {
	s, mirror := newStore(t)
	mirror.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	mirror.EXPECT().DeleteTenant(gomock.Any(), "t1").Return(nil)

	s.Put(context.Background(), domain.CacheEntry{Kind: domain.KindTags, TenantID: "t1", Value: json.RawMessage(`[]`), LastSyncedAt: time.Now()})

	require.NoError(t, s.Purge(context.Background(), "t1"))
	_, ok := s.Get(domain.KindTags, "t1")
	assert.False(t, ok)
}
