package calendar

import "time"

// Event is the provider-neutral calendar event shape the tools work with.
type Event struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// User is a directory entry returned by the Microsoft Graph user search.
type User struct {
	DisplayName string
	Email       string
}

// Window converts a look-ahead in days to a [from, to) time range
// starting now. Days below 1 fall back to 7, matching the assistant's
// declared default.
func Window(now time.Time, days int) (from, to time.Time) {
	if days < 1 {
		days = 7
	}
	return now, now.AddDate(0, 0, days)
}
