package model

import (
	"time"
)

// Session is the persisted record for one managed account: the registry row
// plus, at runtime, an optional live transport connection tracked elsewhere.
type Session struct {
	Identity    string        `db:"identity" json:"identity"`
	PhoneNumber string        `db:"phone_number" json:"phoneNumber"`
	Flags       FlagSet       `db:"flags" json:"flags"`
	Status      SessionStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	LastOpenAt  *time.Time    `db:"last_open_at" json:"lastOpenAt,omitempty"`
}

// UpsertSessionParams is a partial session record. Nil fields are left
// untouched when merging onto an existing row; a missing row is created with
// registry defaults for the absent fields.
type UpsertSessionParams struct {
	Identity    string
	PhoneNumber *string
	Flags       *FlagSet
	Status      *SessionStatus
	CreatedAt   *time.Time
	LastOpenAt  *time.Time
}
