package datasource

import (
	"context"
	"fmt"
	"strconv"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

// NostrEvent is a kind-1 text note as delivered by a relay subscription.
type NostrEvent struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// NostrFetch queries the relay for events in (since, until); zero disables a
// bound. Events come newest first.
type NostrFetch func(ctx context.Context, until, since int64, limit int) ([]NostrEvent, error)

// NostrSource pages a relay timeline. Cursors are unix-second timestamps and
// sort order is the event creation time, as there is no server-side ordering
// beyond it.
type NostrSource struct {
	relay string
	fetch NostrFetch
}

func NewNostrSource(relay string, fetch NostrFetch) *NostrSource {
	return &NostrSource{relay: relay, fetch: fetch}
}

func (s *NostrSource) SingleShot() bool { return false }

func (s *NostrSource) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	var until, since int64
	switch req.Kind {
	case LoadAppend:
		v, err := strconv.ParseInt(req.Cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("nostr cursor %q: %w", req.Cursor, err)
		}
		until = v
	case LoadPrepend:
		v, err := strconv.ParseInt(req.Cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("nostr cursor %q: %w", req.Cursor, err)
		}
		since = v
	}
	events, err := s.fetch(ctx, until, since, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("nostr fetch: %w", err)
	}

	res := &PageResult{Rows: make([]Row, 0, len(events))}
	var newest, oldest int64
	for i := range events {
		ev := &events[i]
		if newest == 0 || ev.CreatedAt > newest {
			newest = ev.CreatedAt
		}
		if oldest == 0 || ev.CreatedAt < oldest {
			oldest = ev.CreatedAt
		}
		res.Rows = append(res.Rows, s.mapEvent(ev))
	}
	if len(events) > 0 {
		switch req.Kind {
		case LoadRefresh:
			res.NextKey = strptr(strconv.FormatInt(oldest, 10))
			res.PrevKey = strptr(strconv.FormatInt(newest, 10))
		case LoadAppend:
			res.NextKey = strptr(strconv.FormatInt(oldest, 10))
		case LoadPrepend:
			res.PrevKey = strptr(strconv.FormatInt(newest, 10))
		}
	}
	return res, nil
}

func (s *NostrSource) mapEvent(ev *NostrEvent) Row {
	statusKey := model.NewKey(ev.ID, s.relay).String()
	row := Row{SortID: ev.CreatedAt}
	content, _ := model.NewPayload(model.PlatformNostr, ev)
	row.Status = model.Status{
		StatusKey:    statusKey,
		UserKey:      model.NewKey(ev.PubKey, s.relay).String(),
		PlatformType: model.PlatformNostr,
		Content:      content,
	}
	row.Users = append(row.Users, s.mapAuthor(ev.PubKey))

	// NIP-10: "e" 标签指向被回复/引用的事件
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[0] != "e" {
			continue
		}
		refType := model.ReferenceReply
		if len(tag) >= 4 && tag[3] == "mention" {
			refType = model.ReferenceQuote
		}
		row.References = append(row.References, model.StatusReference{
			ReferenceType:      refType,
			StatusKey:          statusKey,
			ReferenceStatusKey: model.NewKey(tag[1], s.relay).String(),
		})
	}
	return row
}

func (s *NostrSource) mapAuthor(pubkey string) model.User {
	short := pubkey
	if len(short) > 12 {
		short = short[:12]
	}
	content, _ := model.NewPayload(model.PlatformNostr, map[string]string{"pubkey": pubkey})
	return model.User{
		UserKey:      model.NewKey(pubkey, s.relay).String(),
		Name:         short,
		Handle:       short,
		PlatformType: model.PlatformNostr,
		Content:      content,
	}
}
