package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

func mastodonFixture(statuses []MastodonStatus) (*MastodonSource, *struct{ maxID, minID string }) {
	seen := &struct{ maxID, minID string }{}
	src := NewMastodonSource("mastodon.social", func(ctx context.Context, maxID, minID string, limit int) ([]MastodonStatus, error) {
		seen.maxID, seen.minID = maxID, minID
		return statuses, nil
	})
	return src, seen
}

func TestMastodonRefreshMapsStatuses(t *testing.T) {
	statuses := []MastodonStatus{
		{ID: "300", CreatedAt: time.Now(), Content: "newest", Account: MastodonAccount{ID: "u1", Username: "alice", DisplayName: "Alice"}},
		{ID: "200", CreatedAt: time.Now(), Content: "middle", Account: MastodonAccount{ID: "u1", Username: "alice", DisplayName: "Alice"}},
		{ID: "100", CreatedAt: time.Now(), Content: "oldest", Account: MastodonAccount{ID: "u2", Username: "bob", DisplayName: "Bob"}},
	}
	src, seen := mastodonFixture(statuses)

	res, err := src.FetchPage(context.Background(), PageRequest{Kind: LoadRefresh, Limit: 3})
	require.NoError(t, err)
	require.Empty(t, seen.maxID)
	require.Empty(t, seen.minID)
	require.Len(t, res.Rows, 3)

	require.Equal(t, "300@mastodon.social", res.Rows[0].Status.StatusKey)
	require.Equal(t, "u1@mastodon.social", res.Rows[0].Status.UserKey)
	require.EqualValues(t, 300, res.Rows[0].SortID)
	require.Equal(t, model.PlatformMastodon, res.Rows[0].Status.PlatformType)
	require.Equal(t, "@alice@mastodon.social", res.Rows[0].Users[0].Handle)

	// 双向游标取首尾 id
	require.NotNil(t, res.NextKey)
	require.Equal(t, "100", *res.NextKey)
	require.NotNil(t, res.PrevKey)
	require.Equal(t, "300", *res.PrevKey)
}

func TestMastodonAppendUsesMaxID(t *testing.T) {
	src, seen := mastodonFixture([]MastodonStatus{
		{ID: "90", Account: MastodonAccount{ID: "u1", Username: "alice"}},
	})

	res, err := src.FetchPage(context.Background(), PageRequest{Kind: LoadAppend, Cursor: "100", Limit: 1})
	require.NoError(t, err)
	require.Equal(t, "100", seen.maxID)
	require.Empty(t, seen.minID)
	require.NotNil(t, res.NextKey)
	require.Equal(t, "90", *res.NextKey)
	require.Nil(t, res.PrevKey)
}

func TestMastodonEmptyPageDeclaresEnd(t *testing.T) {
	src, _ := mastodonFixture(nil)

	res, err := src.FetchPage(context.Background(), PageRequest{Kind: LoadAppend, Cursor: "100", Limit: 20})
	require.NoError(t, err)
	require.Empty(t, res.Rows)
	require.Nil(t, res.NextKey)
	require.Nil(t, res.PrevKey)
}

func TestMastodonReblogProducesReferenceRows(t *testing.T) {
	src, _ := mastodonFixture([]MastodonStatus{{
		ID:      "500",
		Account: MastodonAccount{ID: "u1", Username: "alice"},
		Reblog: &MastodonStatus{
			ID:          "400",
			Content:     "original",
			InReplyToID: "350",
			Account:     MastodonAccount{ID: "u2", Username: "bob"},
		},
	}})

	res, err := src.FetchPage(context.Background(), PageRequest{Kind: LoadRefresh, Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]

	// 被转发的帖子进实体集合，不单独占时间线位置
	require.Len(t, row.Statuses, 1)
	require.Equal(t, "400@mastodon.social", row.Statuses[0].StatusKey)
	require.Len(t, row.Users, 2)

	require.Len(t, row.References, 2)
	require.Equal(t, model.ReferenceRetweet, row.References[0].ReferenceType)
	require.Equal(t, "500@mastodon.social", row.References[0].StatusKey)
	require.Equal(t, "400@mastodon.social", row.References[0].ReferenceStatusKey)
	// 嵌套帖子的回复边也随行带出，目标可悬空
	require.Equal(t, model.ReferenceReply, row.References[1].ReferenceType)
	require.Equal(t, "400@mastodon.social", row.References[1].StatusKey)
	require.Equal(t, "350@mastodon.social", row.References[1].ReferenceStatusKey)
}

func TestMastodonSortIDFallsBackToTimestamp(t *testing.T) {
	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	require.EqualValues(t, created.UnixMilli(), mastodonSortID(&MastodonStatus{
		ID:        "not-a-snowflake",
		CreatedAt: created,
	}))
}

func TestMastodonFetchErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	src := NewMastodonSource("mastodon.social", func(ctx context.Context, maxID, minID string, limit int) ([]MastodonStatus, error) {
		return nil, boom
	})

	_, err := src.FetchPage(context.Background(), PageRequest{Kind: LoadRefresh, Limit: 20})
	require.ErrorIs(t, err, boom)
}
