package models

import "time"

const (
	ListTitleMaxLen = 80
	ListMaxGames    = 500
)

type GameList struct {
	ID        int64       `json:"id" gorm:"primaryKey"`
	UserID    int64       `json:"user_id" gorm:"not null;index"`
	Title     string      `json:"title" gorm:"size:80;not null"`
	Entries   []ListEntry `json:"-" gorm:"foreignKey:ListID"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (GameList) TableName() string {
	return "lists"
}

// GameIDs returns the member ids in list order.
func (l *GameList) GameIDs() []int64 {
	ids := make([]int64, 0, len(l.Entries))
	for _, e := range l.Entries {
		ids = append(ids, e.GameID)
	}
	return ids
}

type ListEntry struct {
	ID       int64 `json:"id" gorm:"primaryKey"`
	ListID   int64 `json:"list_id" gorm:"not null;index"`
	GameID   int64 `json:"game_id" gorm:"not null"`
	Position int   `json:"position" gorm:"not null"`
}

func (ListEntry) TableName() string {
	return "list_games"
}

// ListView is a list with its members resolved against the catalog. A member
// whose lookup failed is kept as a placeholder with Missing set.
type ListView struct {
	List  GameList     `json:"list"`
	Games []ListedGame `json:"games"`
}

type ListedGame struct {
	GameID  int64 `json:"game_id"`
	Game    *Game `json:"game,omitempty"`
	Missing bool  `json:"missing"`
}
