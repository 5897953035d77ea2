package models

import (
	"time"
)

type Post struct {
	ID     string    `json:"_id"`
	Text   string    `json:"text"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar"`
	User   string    `json:"user"`
	Likes  []Like    `json:"likes"`
	Date   time.Time `json:"date"`
}

// Like marks a user's approval; a post holds at most one per user, newest first.
type Like struct {
	User string `json:"user" bson:"user"`
}

// PostInput is the body accepted when creating a post
type PostInput struct {
	Text   string `json:"text"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// LikedBy reports whether userID already has an entry in the likes
func (p *Post) LikedBy(userID string) bool {
	for _, like := range p.Likes {
		if like.User == userID {
			return true
		}
	}
	return false
}
