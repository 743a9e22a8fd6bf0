package utils

import (
	"time"
)

// GetUserLevel 根据声望返回用户等级
func GetUserLevel(reputation int) (name string, icon string) {
	switch {
	case reputation >= 5000:
		return "Scholar", "🎓"
	case reputation >= 1000:
		return "Mentor", "🏆"
	case reputation >= 200:
		return "Contributor", "📚"
	case reputation >= 50:
		return "Learner", "✏️"
	default:
		return "Newcomer", "🌱"
	}
}

// GetDaysSinceJoined 计算注册天数
func GetDaysSinceJoined(createdAt time.Time) int {
	return int(time.Since(createdAt).Hours() / 24)
}
