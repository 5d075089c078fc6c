package push

import "github.com/iliyamo/storefront-live/internal/model"

// Policy decides which events a session role may observe. The manager
// consults it once, when a subscription is made.
type Policy interface {
	CanSee(event string, role model.Role) bool
}

// PolicyTable maps an event name to the roles allowed to see it. Events
// without an entry are visible to every role.
type PolicyTable map[string][]model.Role

func (t PolicyTable) CanSee(event string, role model.Role) bool {
	roles, ok := t[event]
	if !ok {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// DefaultPolicy is the visibility table of the marketplace console.
var DefaultPolicy = PolicyTable{
	EventNewOrder:           {model.RoleAdmin},
	EventUserRegistered:     {model.RoleAdmin},
	EventUserLoggedIn:       {model.RoleAdmin, model.RoleModerator},
	EventUserDisconnected:   {model.RoleAdmin, model.RoleModerator},
	EventOrderStatusUpdated: {model.RoleAdmin, model.RoleModerator, model.RoleDelivery},
	EventAdminJoin:          {model.RoleAdmin},
}
