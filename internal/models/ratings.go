package models

import "time"

// Accepted score bounds, inclusive.
const (
	RatingMin = 1
	RatingMax = 5
)

type Rating struct {
	UserID    int64     `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	GameID    int64     `json:"game_id" gorm:"primaryKey;autoIncrement:false;index"`
	Score     int       `json:"score" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Rating) TableName() string {
	return "ratings"
}

// RatingResult reports whether SubmitRating inserted a new row or overwrote one.
type RatingResult struct {
	Rating  Rating `json:"rating"`
	Created bool   `json:"created"`
}
