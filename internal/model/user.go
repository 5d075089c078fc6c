package model

import "time"

// User is the console's copy of an account as shown in user-management tables.
type User struct {
	ID        string    `json:"_id" mapstructure:"_id"`
	Name      string    `json:"name" mapstructure:"name"`
	Email     string    `json:"email" mapstructure:"email"`
	Role      Role      `json:"role" mapstructure:"role"`
	Online    bool      `json:"online" mapstructure:"online"`
	Version   uint64    `json:"version,omitempty" mapstructure:"version"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" mapstructure:"updatedAt"`
}

func (u User) Key() string        { return u.ID }
func (u User) Revision() Revision { return Revision{Version: u.Version, UpdatedAt: u.UpdatedAt} }
