package conversation

import "time"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "nunca"
	}

	return t.Format("15:04:05")
}
