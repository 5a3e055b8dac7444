package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

func setupCacheDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Status{}, &model.User{}, &model.StatusReference{},
		&model.PagingTimeline{}, &model.PagingCursor{}, &model.Emoji{},
	))
	return db
}

func mustPayload(t *testing.T, platform model.PlatformType, v any) model.Payload {
	t.Helper()
	p, err := model.NewPayload(platform, v)
	require.NoError(t, err)
	return p
}

func TestUpsertStatusIdempotent(t *testing.T) {
	db := setupCacheDB(t)
	repo := NewStatusRepository(db, NewInvalidator())
	ctx := context.Background()

	first := model.Status{
		StatusKey:    "1@mastodon.social",
		UserKey:      "u1@mastodon.social",
		PlatformType: model.PlatformMastodon,
		Content:      mustPayload(t, model.PlatformMastodon, map[string]string{"content": "v1"}),
	}
	require.NoError(t, repo.UpsertStatuses(ctx, []model.Status{first}))

	second := first
	second.Content = mustPayload(t, model.PlatformMastodon, map[string]string{"content": "v2"})
	require.NoError(t, repo.UpsertStatuses(ctx, []model.Status{second}))

	var cnt int64
	require.NoError(t, db.Model(&model.Status{}).Count(&cnt).Error)
	require.EqualValues(t, 1, cnt)

	got, err := repo.GetStatus(ctx, "1@mastodon.social")
	require.NoError(t, err)
	require.NotNil(t, got)
	var payload map[string]string
	ok, err := got.Content.Decode(model.PlatformMastodon, &payload)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", payload["content"])
}

func TestUpsertReferenceUniquePerEdge(t *testing.T) {
	db := setupCacheDB(t)
	repo := NewStatusRepository(db, NewInvalidator())
	ctx := context.Background()

	edge := model.StatusReference{
		ReferenceType:      model.ReferenceQuote,
		StatusKey:          "a@h",
		ReferenceStatusKey: "b@h",
	}
	require.NoError(t, repo.UpsertReferences(ctx, []model.StatusReference{edge}))
	require.NoError(t, repo.UpsertReferences(ctx, []model.StatusReference{edge}))

	var cnt int64
	require.NoError(t, db.Model(&model.StatusReference{}).Count(&cnt).Error)
	require.EqualValues(t, 1, cnt)
}

func TestUpdateStatusContentTransform(t *testing.T) {
	db := setupCacheDB(t)
	repo := NewStatusRepository(db, NewInvalidator())
	ctx := context.Background()

	row := model.Status{
		StatusKey:    "1@h",
		UserKey:      "u@h",
		PlatformType: model.PlatformMastodon,
		Content:      mustPayload(t, model.PlatformMastodon, map[string]any{"favourited": false}),
	}
	require.NoError(t, repo.UpsertStatuses(ctx, []model.Status{row}))

	err := repo.UpdateStatusContent(ctx, "1@h", model.PlatformMastodon, func(raw json.RawMessage) (json.RawMessage, error) {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		m["favourited"] = true
		return json.Marshal(m)
	})
	require.NoError(t, err)

	got, err := repo.GetStatus(ctx, "1@h")
	require.NoError(t, err)
	var m map[string]any
	_, err = got.Content.Decode(model.PlatformMastodon, &m)
	require.NoError(t, err)
	require.Equal(t, true, m["favourited"])
}

func TestUpdateStatusContentTypeMismatchIsNoop(t *testing.T) {
	db := setupCacheDB(t)
	repo := NewStatusRepository(db, NewInvalidator())
	ctx := context.Background()

	row := model.Status{
		StatusKey:    "1@h",
		UserKey:      "u@h",
		PlatformType: model.PlatformMastodon,
		Content:      mustPayload(t, model.PlatformMastodon, map[string]any{"favourited": false}),
	}
	require.NoError(t, repo.UpsertStatuses(ctx, []model.Status{row}))

	called := false
	err := repo.UpdateStatusContent(ctx, "1@h", model.PlatformMisskey, func(raw json.RawMessage) (json.RawMessage, error) {
		called = true
		return raw, nil
	})
	require.NoError(t, err)
	require.False(t, called)

	got, err := repo.GetStatus(ctx, "1@h")
	require.NoError(t, err)
	var m map[string]any
	ok, err := got.Content.Decode(model.PlatformMastodon, &m)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, false, m["favourited"])
}

func TestUpdateStatusContentMissingRowIsNoop(t *testing.T) {
	db := setupCacheDB(t)
	repo := NewStatusRepository(db, NewInvalidator())

	err := repo.UpdateStatusContent(context.Background(), "missing@h", model.PlatformMastodon,
		func(raw json.RawMessage) (json.RawMessage, error) { return raw, nil })
	require.NoError(t, err)
}

func TestObserveStatusEmitsOnUpsert(t *testing.T) {
	db := setupCacheDB(t)
	inv := NewInvalidator()
	repo := NewStatusRepository(db, inv)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := repo.ObserveStatus(ctx, "1@h")

	// 首次发射：尚未入库，为 nil
	got := recvStatus(t, ch)
	require.Nil(t, got)

	row := model.Status{
		StatusKey:    "1@h",
		UserKey:      "u@h",
		PlatformType: model.PlatformMastodon,
		Content:      mustPayload(t, model.PlatformMastodon, map[string]string{"content": "hi"}),
	}
	require.NoError(t, repo.UpsertStatuses(ctx, []model.Status{row}))

	got = recvStatus(t, ch)
	require.NotNil(t, got)
	require.Equal(t, "1@h", got.StatusKey)
}

func recvStatus(t *testing.T, ch <-chan *model.Status) *model.Status {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status emission")
		return nil
	}
}
