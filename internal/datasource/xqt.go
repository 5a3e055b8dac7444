package datasource

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

// XQTUser is the legacy user subset the cache keeps.
type XQTUser struct {
	RestID     string `json:"rest_id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// XQTTweet is the tweet DTO stored as the tagged payload.
type XQTTweet struct {
	RestID          string    `json:"rest_id"`
	SortIndex       string    `json:"sort_index"`
	FullText        string    `json:"full_text"`
	CreatedAt       time.Time `json:"created_at"`
	User            XQTUser   `json:"user"`
	RetweetedStatus *XQTTweet `json:"retweeted_status,omitempty"`
	QuotedStatus    *XQTTweet `json:"quoted_status,omitempty"`
	InReplyToID     string    `json:"in_reply_to_id,omitempty"`
	FavoriteCount   int64     `json:"favorite_count"`
	Favorited       bool      `json:"favorited"`
	Bookmarked      bool      `json:"bookmarked"`
}

// XQTPage mirrors the timeline instruction response: entries plus top and
// bottom cursors.
type XQTPage struct {
	Tweets []XQTTweet `json:"tweets"`
	Top    *string    `json:"top"`
	Bottom *string    `json:"bottom"`
}

// XQTFetch fetches one timeline page for the given opaque cursor.
type XQTFetch func(ctx context.Context, cursor string, limit int) (*XQTPage, error)

// XQTSource pages an XQT timeline using the response's top/bottom cursors.
// Sort order follows sort_index, falling back to the tweet id snowflake.
type XQTSource struct {
	host  string
	fetch XQTFetch
}

func NewXQTSource(host string, fetch XQTFetch) *XQTSource {
	return &XQTSource{host: host, fetch: fetch}
}

func (s *XQTSource) SingleShot() bool { return false }

func (s *XQTSource) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	cursor := ""
	if req.Kind != LoadRefresh {
		cursor = req.Cursor
	}
	page, err := s.fetch(ctx, cursor, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("xqt fetch: %w", err)
	}

	res := &PageResult{Rows: make([]Row, 0, len(page.Tweets))}
	for i := range page.Tweets {
		res.Rows = append(res.Rows, s.mapTweet(&page.Tweets[i]))
	}
	switch req.Kind {
	case LoadRefresh:
		res.NextKey = page.Bottom
		res.PrevKey = page.Top
	case LoadAppend:
		res.NextKey = page.Bottom
	case LoadPrepend:
		res.PrevKey = page.Top
	}
	return res, nil
}

func (s *XQTSource) mapTweet(dto *XQTTweet) Row {
	statusKey := model.NewKey(dto.RestID, s.host).String()
	row := Row{SortID: xqtSortID(dto)}
	content, _ := model.NewPayload(model.PlatformXQT, dto)
	row.Status = model.Status{
		StatusKey:    statusKey,
		UserKey:      model.NewKey(dto.User.RestID, s.host).String(),
		PlatformType: model.PlatformXQT,
		Content:      content,
	}
	row.Users = append(row.Users, s.mapUser(&dto.User))

	if dto.RetweetedStatus != nil {
		inner := s.mapTweet(dto.RetweetedStatus)
		row.Statuses = append(row.Statuses, inner.Status)
		row.Statuses = append(row.Statuses, inner.Statuses...)
		row.Users = append(row.Users, inner.Users...)
		row.References = append(row.References, model.StatusReference{
			ReferenceType:      model.ReferenceRetweet,
			StatusKey:          statusKey,
			ReferenceStatusKey: inner.Status.StatusKey,
		})
		row.References = append(row.References, inner.References...)
	}
	if dto.QuotedStatus != nil {
		inner := s.mapTweet(dto.QuotedStatus)
		row.Statuses = append(row.Statuses, inner.Status)
		row.Statuses = append(row.Statuses, inner.Statuses...)
		row.Users = append(row.Users, inner.Users...)
		row.References = append(row.References, model.StatusReference{
			ReferenceType:      model.ReferenceQuote,
			StatusKey:          statusKey,
			ReferenceStatusKey: inner.Status.StatusKey,
		})
		row.References = append(row.References, inner.References...)
	}
	if dto.InReplyToID != "" {
		row.References = append(row.References, model.StatusReference{
			ReferenceType:      model.ReferenceReply,
			StatusKey:          statusKey,
			ReferenceStatusKey: model.NewKey(dto.InReplyToID, s.host).String(),
		})
	}
	return row
}

func (s *XQTSource) mapUser(dto *XQTUser) model.User {
	content, _ := model.NewPayload(model.PlatformXQT, dto)
	return model.User{
		UserKey:      model.NewKey(dto.RestID, s.host).String(),
		Name:         dto.Name,
		Handle:       "@" + dto.ScreenName,
		PlatformType: model.PlatformXQT,
		Content:      content,
	}
}

func xqtSortID(dto *XQTTweet) int64 {
	if v, err := strconv.ParseInt(dto.SortIndex, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseInt(dto.RestID, 10, 64); err == nil {
		return v
	}
	return dto.CreatedAt.UnixMilli()
}
