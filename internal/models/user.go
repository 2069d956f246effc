package models

import "time"

// User is a panel user, created on first Discord login and refreshed on
// every later one.
type User struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	DiscordID   string    `bson:"discordId" json:"discordId"`
	Username    string    `bson:"username" json:"username"`
	GlobalName  string    `bson:"globalName,omitempty" json:"globalName,omitempty"`
	Avatar      string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	LastLoginAt time.Time `bson:"lastLoginAt" json:"lastLoginAt"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}
