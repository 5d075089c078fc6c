package live

import (
	"context"
	"sort"

	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/push"
	"github.com/iliyamo/storefront-live/internal/session"
)

// Inbox is the append-only message list of the session user. Staff see every
// message; other roles only those addressed to them, sent by them or
// broadcast.
type Inbox struct {
	view
	Store *Store[model.Message]
	sess  session.Identity
}

func NewInbox(src Source, sess session.Identity) (*Inbox, error) {
	in := &Inbox{view: newView(src, "inbox"), Store: NewStore[model.Message](), sess: sess}
	if err := on(in.view, push.EventMessageReceived, func(_ context.Context, m model.Message) {
		in.Add(m)
	}); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

// Add stores m if it belongs in this inbox. Messages are deduped by id.
func (in *Inbox) Add(m model.Message) bool {
	if !in.visible(m) {
		return false
	}
	return in.Store.Merge(m) == Inserted
}

// Load merges a page fetched from the API and returns how many were new.
func (in *Inbox) Load(page []model.Message) int {
	n := 0
	for _, m := range page {
		if in.Add(m) {
			n++
		}
	}
	return n
}

func (in *Inbox) visible(m model.Message) bool {
	if in.sess.Role.IsStaff() {
		return true
	}
	return m.Broadcast() || m.To.ID == in.sess.UserID || m.From.ID == in.sess.UserID
}

// Messages returns the inbox newest first.
func (in *Inbox) Messages() []model.Message {
	out := in.Store.Snapshot()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Page returns one page of Messages; page is 1-based.
func (in *Inbox) Page(page, limit int) []model.Message {
	all := in.Messages()
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []model.Message{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
