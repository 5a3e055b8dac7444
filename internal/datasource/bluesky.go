package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

// BlueskyAuthor is the profile-view subset the cache keeps.
type BlueskyAuthor struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// BlueskyPost is an app.bsky.feed post view.
type BlueskyPost struct {
	URI       string        `json:"uri"`
	CID       string        `json:"cid"`
	Author    BlueskyAuthor `json:"author"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"createdAt"`
	IndexedAt time.Time     `json:"indexedAt"`
	LikeCount int64         `json:"likeCount"`
	Liked     bool          `json:"liked"`
}

// BlueskyFeedViewPost is one hydrated feed slice: the post plus an optional
// quoted record and reply parent.
type BlueskyFeedViewPost struct {
	Post      BlueskyPost  `json:"post"`
	Embed     *BlueskyPost `json:"embed,omitempty"`
	ReplyRoot string       `json:"replyRoot,omitempty"`
	ReplyTo   string       `json:"replyTo,omitempty"`
}

// BlueskyFeedPage mirrors the AT protocol feed response: slices plus a single
// forward cursor.
type BlueskyFeedPage struct {
	Feed   []BlueskyFeedViewPost `json:"feed"`
	Cursor *string               `json:"cursor"`
}

// BlueskyFetch fetches one feed page; an empty cursor means the feed head.
type BlueskyFetch func(ctx context.Context, cursor string, limit int) (*BlueskyFeedPage, error)

// BlueskySource pages a Bluesky feed. The AT protocol only pages forward, so
// refresh never yields a prev cursor and the first prepend ends immediately.
// Sort order is the indexing time in millis.
type BlueskySource struct {
	host  string
	fetch BlueskyFetch
}

func NewBlueskySource(host string, fetch BlueskyFetch) *BlueskySource {
	return &BlueskySource{host: host, fetch: fetch}
}

func (s *BlueskySource) SingleShot() bool { return false }

func (s *BlueskySource) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	if req.Kind == LoadPrepend {
		// no backward cursor in the protocol
		return &PageResult{}, nil
	}
	cursor := ""
	if req.Kind == LoadAppend {
		cursor = req.Cursor
	}
	page, err := s.fetch(ctx, cursor, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("bluesky fetch: %w", err)
	}

	res := &PageResult{Rows: make([]Row, 0, len(page.Feed)), NextKey: page.Cursor}
	for i := range page.Feed {
		res.Rows = append(res.Rows, s.mapFeedPost(&page.Feed[i]))
	}
	return res, nil
}

func (s *BlueskySource) mapFeedPost(dto *BlueskyFeedViewPost) Row {
	statusKey := model.NewKey(dto.Post.URI, s.host).String()
	row := Row{SortID: dto.Post.IndexedAt.UnixMilli()}
	content, _ := model.NewPayload(model.PlatformBluesky, dto)
	row.Status = model.Status{
		StatusKey:    statusKey,
		UserKey:      model.NewKey(dto.Post.Author.DID, s.host).String(),
		PlatformType: model.PlatformBluesky,
		Content:      content,
	}
	row.Users = append(row.Users, s.mapAuthor(&dto.Post.Author))

	if dto.Embed != nil {
		embedKey := model.NewKey(dto.Embed.URI, s.host).String()
		embedContent, _ := model.NewPayload(model.PlatformBluesky, dto.Embed)
		row.Statuses = append(row.Statuses, model.Status{
			StatusKey:    embedKey,
			UserKey:      model.NewKey(dto.Embed.Author.DID, s.host).String(),
			PlatformType: model.PlatformBluesky,
			Content:      embedContent,
		})
		row.Users = append(row.Users, s.mapAuthor(&dto.Embed.Author))
		row.References = append(row.References, model.StatusReference{
			ReferenceType:      model.ReferenceQuote,
			StatusKey:          statusKey,
			ReferenceStatusKey: embedKey,
		})
	}
	if dto.ReplyTo != "" {
		row.References = append(row.References, model.StatusReference{
			ReferenceType:      model.ReferenceReply,
			StatusKey:          statusKey,
			ReferenceStatusKey: model.NewKey(dto.ReplyTo, s.host).String(),
		})
	}
	return row
}

func (s *BlueskySource) mapAuthor(dto *BlueskyAuthor) model.User {
	name := dto.DisplayName
	if name == "" {
		name = dto.Handle
	}
	content, _ := model.NewPayload(model.PlatformBluesky, dto)
	return model.User{
		UserKey:      model.NewKey(dto.DID, s.host).String(),
		Name:         name,
		Handle:       "@" + dto.Handle,
		PlatformType: model.PlatformBluesky,
		Content:      content,
	}
}
