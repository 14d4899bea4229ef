package models

type Feature struct {
	Title       string
	Description string
	Emoji       string
	Route       string
}

func Features() []Feature {
	return []Feature{
		{
			Title:       "Joint Diary",
			Description: "Create and share memories together. Add photos, videos, and voice notes to capture your special moments.",
			Emoji:       "📝",
			Route:       "Diary",
		},
		{
			Title:       "Mood Sync",
			Description: "Track your moods together and stay emotionally connected with your partner.",
			Emoji:       "❤️",
			Route:       "MoodSync",
		},
		{
			Title:       "Memory Map",
			Description: "Visualize your journey together on a map. See where you've been and plan where you'll go.",
			Emoji:       "🗺️",
			Route:       "MemoryMap",
		},
		{
			Title:       "Dream Board",
			Description: "Set goals and dreams together. Track your progress and celebrate achievements.",
			Emoji:       "✨",
			Route:       "DreamBoard",
		},
	}
}
