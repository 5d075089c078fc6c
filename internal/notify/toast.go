// Package notify turns push events into terminal toasts with a bell sound.
package notify

import (
	"fmt"
	"time"

	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/push"
	"github.com/iliyamo/storefront-live/internal/session"
)

// Toast is one transient notification.
type Toast struct {
	Event string    `json:"event"`
	Title string    `json:"title"`
	Body  string    `json:"body,omitempty"`
	Link  string    `json:"link,omitempty"`
	At    time.Time `json:"at"`

	// dedupe key, not rendered
	key string
}

// Events lists the push events that can produce a toast.
var Events = []string{
	push.EventNewOrder,
	push.EventUserRegistered,
	push.EventOrderStatusClient,
	push.EventOrderStatusUpdated,
	push.EventMessageReceived,
}

// OrderStatusKey is the dedupe key shared by both order status events.
func OrderStatusKey(entity string, st model.OrderStatus) string {
	return "order-status|" + entity + "|" + string(st)
}

// orderLink is the console route of an order detail page.
func orderLink(number string) string { return "/orderDetails/" + number }

// build decodes ev and renders the toast for sess. ok is false when the
// event has no toast or is not meant for this session.
func build(ev push.Event, sess session.Identity) (t Toast, ok bool, err error) {
	switch ev.Name {
	case push.EventNewOrder:
		var o model.Order
		if err := push.Decode(ev, &o); err != nil {
			return Toast{}, false, err
		}
		body := ""
		if o.UserName != "" {
			body = fmt.Sprintf("%s, %.2f", o.UserName, o.Total)
		}
		return Toast{
			Event: ev.Name,
			Title: "New order #" + o.Number,
			Body:  body,
			Link:  orderLink(o.Number),
			key:   "new-order|" + o.Key(),
		}, true, nil

	case push.EventUserRegistered:
		var u model.User
		if err := push.Decode(ev, &u); err != nil {
			return Toast{}, false, err
		}
		return Toast{
			Event: ev.Name,
			Title: "New user registered " + u.Name,
			Body:  u.Email,
			Link:  "/users",
			key:   "user-registered|" + u.ID,
		}, true, nil

	case push.EventOrderStatusClient, push.EventOrderStatusUpdated:
		var c model.StatusChange
		if err := push.Decode(ev, &c); err != nil {
			return Toast{}, false, err
		}
		if sess.Role == model.RoleClient && c.UserID != sess.UserID {
			return Toast{}, false, nil
		}
		o := c.Apply(model.Order{})
		return Toast{
			Event: ev.Name,
			Title: fmt.Sprintf("Order #%s is now %s", c.Number, c.Status),
			Link:  orderLink(c.Number),
			key:   OrderStatusKey(o.Key(), c.Status),
		}, true, nil

	case push.EventMessageReceived:
		var m model.Message
		if err := push.Decode(ev, &m); err != nil {
			return Toast{}, false, err
		}
		if m.From.ID != "" && m.From.ID == sess.UserID {
			return Toast{}, false, nil
		}
		if !m.Broadcast() && m.To.ID != sess.UserID {
			return Toast{}, false, nil
		}
		body := m.Body
		if r := []rune(body); len(r) > 80 {
			body = string(r[:77]) + "..."
		}
		return Toast{
			Event: ev.Name,
			Title: "New message from " + m.From.Name,
			Body:  body,
			Link:  "/messages",
			key:   "message|" + m.ID,
		}, true, nil
	}
	return Toast{}, false, nil
}
