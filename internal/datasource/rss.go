package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

// RSSItem is the normalized item payload stored in the cache.
type RSSItem struct {
	GUID        string     `json:"guid"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description"`
	Published   *time.Time `json:"published,omitempty"`
}

// RSSChannel is the feed-level payload stored for the synthetic author row.
type RSSChannel struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
}

// RSSFetch returns the raw feed document.
type RSSFetch func(ctx context.Context, feedURL string) ([]byte, error)

// RSSSource treats one RSS/Atom feed as a single-shot timeline: every load is
// a full document fetch, there are no cursors, and sort ids are a negative
// running index preserving document order.
type RSSSource struct {
	feedURL string
	host    string
	fetch   RSSFetch
	parser  *gofeed.Parser
}

func NewRSSSource(feedURL string, fetch RSSFetch) *RSSSource {
	host := feedURL
	if u, err := url.Parse(feedURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &RSSSource{feedURL: feedURL, host: host, fetch: fetch, parser: gofeed.NewParser()}
}

func (s *RSSSource) SingleShot() bool { return true }

func (s *RSSSource) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	body, err := s.fetch(ctx, s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("rss fetch %s: %w", s.feedURL, err)
	}
	feed, err := s.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("rss parse %s: %w", s.feedURL, err)
	}

	author := s.mapChannel(feed)
	items := feed.Items
	if req.Limit > 0 && len(items) > req.Limit {
		items = items[:req.Limit]
	}
	res := &PageResult{Rows: make([]Row, 0, len(items))}
	for i, item := range items {
		res.Rows = append(res.Rows, s.mapItem(item, author, int64(i)))
	}
	return res, nil
}

func (s *RSSSource) mapItem(item *gofeed.Item, author model.User, index int64) Row {
	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}
	dto := RSSItem{
		GUID:        guid,
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Published:   item.PublishedParsed,
	}
	content, _ := model.NewPayload(model.PlatformRSS, dto)
	return Row{
		// feeds have no native numeric order: negative running index keeps
		// document order under the global sort_id DESC read
		SortID: -index,
		Status: model.Status{
			StatusKey:    model.NewKey(guid, s.host).String(),
			UserKey:      author.UserKey,
			PlatformType: model.PlatformRSS,
			Content:      content,
		},
		Users: []model.User{author},
	}
}

func (s *RSSSource) mapChannel(feed *gofeed.Feed) model.User {
	content, _ := model.NewPayload(model.PlatformRSS, RSSChannel{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
	})
	name := feed.Title
	if name == "" {
		name = s.host
	}
	return model.User{
		UserKey:      model.NewKey("feed:"+s.feedURL, s.host).String(),
		Name:         name,
		Handle:       strings.TrimPrefix(s.host, "www."),
		PlatformType: model.PlatformRSS,
		Content:      content,
	}
}
