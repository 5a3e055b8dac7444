package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

// MisskeyUser is the subset of the Misskey user entity the cache keeps.
type MisskeyUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// MisskeyNote is the Misskey note DTO stored as the tagged payload.
type MisskeyNote struct {
	ID         string       `json:"id"`
	CreatedAt  time.Time    `json:"createdAt"`
	Text       string       `json:"text"`
	User       MisskeyUser  `json:"user"`
	Renote     *MisskeyNote `json:"renote,omitempty"`
	ReplyID    string       `json:"replyId,omitempty"`
	MyReaction string       `json:"myReaction,omitempty"`
}

// MisskeyFetch fetches one timeline page. untilID pages toward older notes,
// sinceID toward newer ones.
type MisskeyFetch func(ctx context.Context, untilID, sinceID string, limit int) ([]MisskeyNote, error)

// MisskeySource pages a Misskey timeline. Cursors are note ids; sort order is
// the note creation time in millis (Misskey ids are not numerically ordered).
type MisskeySource struct {
	host  string
	fetch MisskeyFetch
}

func NewMisskeySource(host string, fetch MisskeyFetch) *MisskeySource {
	return &MisskeySource{host: host, fetch: fetch}
}

func (s *MisskeySource) SingleShot() bool { return false }

func (s *MisskeySource) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	var untilID, sinceID string
	switch req.Kind {
	case LoadAppend:
		untilID = req.Cursor
	case LoadPrepend:
		sinceID = req.Cursor
	}
	notes, err := s.fetch(ctx, untilID, sinceID, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("misskey fetch: %w", err)
	}

	res := &PageResult{Rows: make([]Row, 0, len(notes))}
	for i := range notes {
		res.Rows = append(res.Rows, s.mapNote(&notes[i]))
	}
	if len(notes) > 0 {
		switch req.Kind {
		case LoadRefresh:
			res.NextKey = strptr(notes[len(notes)-1].ID)
			res.PrevKey = strptr(notes[0].ID)
		case LoadAppend:
			res.NextKey = strptr(notes[len(notes)-1].ID)
		case LoadPrepend:
			res.PrevKey = strptr(notes[0].ID)
		}
	}
	return res, nil
}

func (s *MisskeySource) mapNote(dto *MisskeyNote) Row {
	statusKey := model.NewKey(dto.ID, s.host).String()
	row := Row{SortID: dto.CreatedAt.UnixMilli()}
	content, _ := model.NewPayload(model.PlatformMisskey, dto)
	row.Status = model.Status{
		StatusKey:    statusKey,
		UserKey:      model.NewKey(dto.User.ID, s.host).String(),
		PlatformType: model.PlatformMisskey,
		Content:      content,
	}
	row.Users = append(row.Users, s.mapUser(&dto.User))

	if dto.Renote != nil {
		inner := s.mapNote(dto.Renote)
		row.Statuses = append(row.Statuses, inner.Status)
		row.Statuses = append(row.Statuses, inner.Statuses...)
		row.Users = append(row.Users, inner.Users...)
		refType := model.ReferenceRetweet
		if dto.Text != "" {
			// renote 带正文即引用
			refType = model.ReferenceQuote
		}
		row.References = append(row.References, model.StatusReference{
			ReferenceType:      refType,
			StatusKey:          statusKey,
			ReferenceStatusKey: inner.Status.StatusKey,
		})
		row.References = append(row.References, inner.References...)
	}
	if dto.ReplyID != "" {
		row.References = append(row.References, model.StatusReference{
			ReferenceType:      model.ReferenceReply,
			StatusKey:          statusKey,
			ReferenceStatusKey: model.NewKey(dto.ReplyID, s.host).String(),
		})
	}
	return row
}

func (s *MisskeySource) mapUser(dto *MisskeyUser) model.User {
	name := dto.Name
	if name == "" {
		name = dto.Username
	}
	content, _ := model.NewPayload(model.PlatformMisskey, dto)
	return model.User{
		UserKey:      model.NewKey(dto.ID, s.host).String(),
		Name:         name,
		Handle:       "@" + dto.Username + "@" + s.host,
		PlatformType: model.PlatformMisskey,
		Content:      content,
	}
}
