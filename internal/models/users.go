package models

import "time"

const DefaultProfileImage = "/static/images/alt_profile_img.svg"

type User struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"size:20;not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"not null"`
	ProfileImage string    `json:"profile_image" gorm:"size:500"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Profile is the public page of a user.
type Profile struct {
	User    User       `json:"user"`
	Lists   []GameList `json:"lists"`
	Ratings []Rating   `json:"ratings"`
	// GameNames maps rated game ids to catalog names. Ids the catalog did
	// not answer for are absent.
	GameNames map[int64]string `json:"game_names"`
}
