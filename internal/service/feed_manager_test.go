package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/timeline-cache/internal/datasource"
	"github.com/d60-Lab/timeline-cache/internal/repository"
	"github.com/d60-Lab/timeline-cache/pkg/database"
)

func TestFeedManagerRegisterIsIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	inv := repository.NewInvalidator()
	mgr := NewFeedManager(repository.NewTimelineRepository(db, inv), repository.NewCursorRepository(db))

	src := &fakeSource{pages: map[datasource.LoadKind][]*datasource.PageResult{
		datasource.LoadRefresh: {fakePage(t, 2, 1, nil, nil)},
	}}
	first := mgr.Register("acct@test.host", "home", src)
	second := mgr.Register("acct@test.host", "home", &fakeSource{})
	require.Same(t, first, second)
	require.ElementsMatch(t, []string{"home"}, mgr.PagingKeys())

	res, err := mgr.Load(context.Background(), "home", TriggerRefresh, 2)
	require.NoError(t, err)
	require.False(t, res.EndOfPagination)
	require.Equal(t, 1, src.calls)

	_, err = mgr.Load(context.Background(), "missing", TriggerRefresh, 2)
	require.ErrorIs(t, err, ErrFeedNotRegistered)
}
