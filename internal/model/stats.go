package model

import "sort"

// Dashboard is the admin overview.
type Dashboard struct {
	Stats                 DashboardTotals   `json:"stats"`
	PostsByLanguage       []LanguageCount   `json:"postsByLanguage"`
	UserRegistrationTrend []RegistrationDay `json:"userRegistrationTrend"`
	MostActiveUsers       []ActiveUser      `json:"mostActiveUsers"`
}

type DashboardTotals struct {
	TotalUsers       int `json:"totalUsers"`
	TotalPosts       int `json:"totalPosts"`
	TotalAdmins      int `json:"totalAdmins"`
	TotalModerators  int `json:"totalModerators"`
	NewUsersThisWeek int `json:"newUsersThisWeek"`
	NewPostsThisWeek int `json:"newPostsThisWeek"`
}

// LanguageCount is one bucket of the posts-by-language histogram.
type LanguageCount struct {
	Language string `json:"_id"`
	Count    int    `json:"count"`
}

// RegistrationDay counts sign-ups on one calendar day (UTC).
type RegistrationDay struct {
	Date  RegistrationDate `json:"_id"`
	Count int              `json:"count"`
}

type RegistrationDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// ActiveUser ranks a user by number of posts.
type ActiveUser struct {
	UserID    string      `json:"_id"`
	User      UserSummary `json:"user"`
	PostCount int         `json:"postCount"`
}

// RegistrationTrend orders per-day sign-up counts chronologically.
func RegistrationTrend(counts map[RegistrationDate]int) []RegistrationDay {
	out := make([]RegistrationDay, 0, len(counts))
	for day, n := range counts {
		out = append(out, RegistrationDay{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Date, out[j].Date
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Day < b.Day
	})
	return out
}
