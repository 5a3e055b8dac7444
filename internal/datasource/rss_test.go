package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>https://blog.example.com/</link>
    <description>Posts about things</description>
    <item>
      <title>Third post</title>
      <link>https://blog.example.com/3</link>
      <guid>post-3</guid>
      <pubDate>Mon, 03 Aug 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second post</title>
      <link>https://blog.example.com/2</link>
      <guid>post-2</guid>
      <pubDate>Sun, 02 Aug 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>First post</title>
      <link>https://blog.example.com/1</link>
      <pubDate>Sat, 01 Aug 2026 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func staticRSS(doc string) RSSFetch {
	return func(ctx context.Context, feedURL string) ([]byte, error) {
		return []byte(doc), nil
	}
}

func TestRSSSourceIsSingleShot(t *testing.T) {
	src := NewRSSSource("https://blog.example.com/feed.xml", staticRSS(sampleRSS))
	require.True(t, src.SingleShot())
}

func TestRSSFetchPageMapsDocument(t *testing.T) {
	src := NewRSSSource("https://blog.example.com/feed.xml", staticRSS(sampleRSS))

	res, err := src.FetchPage(context.Background(), PageRequest{Kind: LoadRefresh, Limit: 20})
	require.NoError(t, err)
	// 单发源没有任何方向的游标
	require.Nil(t, res.NextKey)
	require.Nil(t, res.PrevKey)
	require.Len(t, res.Rows, 3)

	// 文档序 = 负的行号：全局 sort_id DESC 读出来仍是文档序
	require.Equal(t, "post-3@blog.example.com", res.Rows[0].Status.StatusKey)
	require.EqualValues(t, 0, res.Rows[0].SortID)
	require.EqualValues(t, -1, res.Rows[1].SortID)
	require.EqualValues(t, -2, res.Rows[2].SortID)

	// guid 缺失时回退到 link
	require.Equal(t, "https://blog.example.com/1@blog.example.com", res.Rows[2].Status.StatusKey)

	var item RSSItem
	ok, err := res.Rows[0].Status.Content.Decode(model.PlatformRSS, &item)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Third post", item.Title)
	require.NotNil(t, item.Published)
}

func TestRSSSyntheticChannelAuthor(t *testing.T) {
	src := NewRSSSource("https://blog.example.com/feed.xml", staticRSS(sampleRSS))

	res, err := src.FetchPage(context.Background(), PageRequest{Kind: LoadRefresh, Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Len(t, res.Rows[0].Users, 1)

	author := res.Rows[0].Users[0]
	require.Equal(t, author.UserKey, res.Rows[0].Status.UserKey)
	require.Equal(t, "Example Blog", author.Name)
	require.Equal(t, "blog.example.com", author.Handle)
	require.Equal(t, model.PlatformRSS, author.PlatformType)

	var ch RSSChannel
	ok, err := author.Content.Decode(model.PlatformRSS, &ch)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Posts about things", ch.Description)
}

func TestRSSFetchPageHonorsLimit(t *testing.T) {
	src := NewRSSSource("https://blog.example.com/feed.xml", staticRSS(sampleRSS))

	res, err := src.FetchPage(context.Background(), PageRequest{Kind: LoadRefresh, Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
}

func TestRSSFetchOrParseFailure(t *testing.T) {
	boom := errors.New("connection refused")
	src := NewRSSSource("https://blog.example.com/feed.xml",
		func(ctx context.Context, feedURL string) ([]byte, error) { return nil, boom })
	_, err := src.FetchPage(context.Background(), PageRequest{Kind: LoadRefresh})
	require.ErrorIs(t, err, boom)

	src = NewRSSSource("https://blog.example.com/feed.xml", staticRSS("not xml at all"))
	_, err = src.FetchPage(context.Background(), PageRequest{Kind: LoadRefresh})
	require.Error(t, err)
}
