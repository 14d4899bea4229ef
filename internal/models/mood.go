package models

import (
	"strings"
	"time"
)

const (
	MoodHappy      = "Happy"
	MoodLoved      = "Loved"
	MoodPeaceful   = "Peaceful"
	MoodThoughtful = "Thoughtful"
	MoodSad        = "Sad"
	MoodFrustrated = "Frustrated"
)

type MoodEntry struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CoupleID  string    `gorm:"not null;index" json:"couple_id"`
	UserID    string    `gorm:"not null" json:"user_id"`
	Mood      string    `gorm:"not null" json:"mood"`
	Note      string    `gorm:"not null;default:''" json:"note"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

type MoodOption struct {
	Label string
	Emoji string
}

func MoodOptions() []MoodOption {
	return []MoodOption{
		{Label: MoodHappy, Emoji: "😊"},
		{Label: MoodLoved, Emoji: "🥰"},
		{Label: MoodPeaceful, Emoji: "😌"},
		{Label: MoodThoughtful, Emoji: "🤔"},
		{Label: MoodSad, Emoji: "😔"},
		{Label: MoodFrustrated, Emoji: "😤"},
	}
}

// CanonicalMood matches raw case-insensitively against the mood catalog.
func CanonicalMood(raw string) (MoodOption, bool) {
	value := strings.TrimSpace(raw)
	for _, option := range MoodOptions() {
		if strings.EqualFold(option.Label, value) {
			return option, true
		}
	}
	return MoodOption{}, false
}
