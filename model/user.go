package model

import "time"

/*

User is an account provisioned by the external identity provider.

Id: primary key
AuthId: opaque reference handed to us by the identity provider, unique
Email/Name/AvatarUrl: profile fields refreshed on every login

*/
type User struct {
	Id          string `gorm:"primaryKey"`
	CreatedAt   time.Time
	AuthId      string `gorm:"uniqueIndex"`
	Email       string
	Name        string
	AvatarUrl   *string
	LastLoginAt *time.Time
}
