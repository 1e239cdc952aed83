package model

import "time"

// MaxCommentLength caps comment bodies after trimming.
const MaxCommentLength = 240

/*

ReelComment is an append-only comment on a reel.

Id: primary key
ReelID: the commented reel, references the canonical reel not a placement
UserID: author
Body: trimmed, non-empty, at most MaxCommentLength characters

*/
type ReelComment struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	ReelID    string `gorm:"index"`
	UserID    string
	Body      string
}
