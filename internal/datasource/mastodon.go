package datasource

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

// MastodonAccount is the subset of the Mastodon account entity the cache keeps.
type MastodonAccount struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// MastodonStatus is the Mastodon status DTO stored as the tagged payload.
type MastodonStatus struct {
	ID              string          `json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	Content         string          `json:"content"`
	Account         MastodonAccount `json:"account"`
	Reblog          *MastodonStatus `json:"reblog,omitempty"`
	InReplyToID     string          `json:"in_reply_to_id,omitempty"`
	Favourited      bool            `json:"favourited"`
	FavouritesCount int64           `json:"favourites_count"`
	Bookmarked      bool            `json:"bookmarked"`
}

// MastodonFetch fetches one timeline page. maxID pages toward older statuses,
// minID toward newer ones; both empty means the head of the feed.
type MastodonFetch func(ctx context.Context, maxID, minID string, limit int) ([]MastodonStatus, error)

// MastodonSource pages a Mastodon timeline. Cursors are status ids; sort order
// follows the id snowflake.
type MastodonSource struct {
	host  string
	fetch MastodonFetch
}

func NewMastodonSource(host string, fetch MastodonFetch) *MastodonSource {
	return &MastodonSource{host: host, fetch: fetch}
}

func (s *MastodonSource) SingleShot() bool { return false }

func (s *MastodonSource) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	var maxID, minID string
	switch req.Kind {
	case LoadAppend:
		maxID = req.Cursor
	case LoadPrepend:
		minID = req.Cursor
	}
	statuses, err := s.fetch(ctx, maxID, minID, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("mastodon fetch: %w", err)
	}

	res := &PageResult{Rows: make([]Row, 0, len(statuses))}
	for i := range statuses {
		res.Rows = append(res.Rows, s.mapStatus(&statuses[i]))
	}
	if len(statuses) > 0 {
		switch req.Kind {
		case LoadRefresh:
			res.NextKey = strptr(statuses[len(statuses)-1].ID)
			res.PrevKey = strptr(statuses[0].ID)
		case LoadAppend:
			res.NextKey = strptr(statuses[len(statuses)-1].ID)
		case LoadPrepend:
			res.PrevKey = strptr(statuses[0].ID)
		}
	}
	return res, nil
}

func (s *MastodonSource) mapStatus(dto *MastodonStatus) Row {
	statusKey := model.NewKey(dto.ID, s.host).String()
	row := Row{SortID: mastodonSortID(dto)}
	content, _ := model.NewPayload(model.PlatformMastodon, dto)
	row.Status = model.Status{
		StatusKey:    statusKey,
		UserKey:      model.NewKey(dto.Account.ID, s.host).String(),
		PlatformType: model.PlatformMastodon,
		Content:      content,
	}
	row.Users = append(row.Users, s.mapAccount(&dto.Account))

	if dto.Reblog != nil {
		inner := s.mapStatus(dto.Reblog)
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
	if dto.InReplyToID != "" {
		// 边先落库，被回复的帖子等后续抓取触达后再补全
		row.References = append(row.References, model.StatusReference{
			ReferenceType:      model.ReferenceReply,
			StatusKey:          statusKey,
			ReferenceStatusKey: model.NewKey(dto.InReplyToID, s.host).String(),
		})
	}
	return row
}

func (s *MastodonSource) mapAccount(acct *MastodonAccount) model.User {
	content, _ := model.NewPayload(model.PlatformMastodon, acct)
	return model.User{
		UserKey:      model.NewKey(acct.ID, s.host).String(),
		Name:         acct.DisplayName,
		Handle:       "@" + acct.Username + "@" + s.host,
		PlatformType: model.PlatformMastodon,
		Content:      content,
	}
}

func mastodonSortID(dto *MastodonStatus) int64 {
	if v, err := strconv.ParseInt(dto.ID, 10, 64); err == nil {
		return v
	}
	return dto.CreatedAt.UnixMilli()
}
