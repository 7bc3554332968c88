package models

import "time"

// SessionToken is a persisted record of an issued access token. A token is
// only honored while its row exists, independent of signature expiry.
type SessionToken struct {
	ID          int       `json:"id"`
	UserID      int       `json:"userId"`
	AccessToken string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}
