package constants

import "time"

const (
	// Notes touched within this window count as recent activity
	RecentActivityDays   = 7
	RecentActivityWindow = RecentActivityDays * 24 * time.Hour

	// Default scheduler intervals
	HourlyInterval  = time.Hour
	DailyInterval   = 24 * time.Hour
	WeeklyInterval  = 7 * DailyInterval
	MonthlyInterval = 30 * DailyInterval

	// Watcher settles for this long before triggering a run
	WatchDebounce = 5 * time.Second

	// Default provider request timeout
	RequestTimeout = 60 * time.Second
)
