package service

import (
	"testing"
	"time"

	"github.com/iliyamo/session-booking/internal/model"
)

func TestIsBookableWindows(t *testing.T) {
	start := time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)
	three := 3

	cases := []struct {
		name   string
		sess   model.Session
		now    time.Time
		ok     bool
		reason string
	}{
		{
			name: "no constraints",
			sess: model.Session{Status: model.StatusOpen, StartsAt: start, WindowKind: model.WindowNone},
			now:  start.AddDate(0, 0, -30),
			ok:   true,
		},
		{
			name:   "days before not yet",
			sess:   model.Session{Status: model.StatusOpen, StartsAt: start, WindowKind: model.WindowDaysBefore, WindowDays: &three},
			now:    start.AddDate(0, 0, -3).Add(-time.Minute),
			reason: ReasonWindowShut,
		},
		{
			name: "days before at opening",
			sess: model.Session{Status: model.StatusOpen, StartsAt: start, WindowKind: model.WindowDaysBefore, WindowDays: &three},
			now:  start.AddDate(0, 0, -3),
			ok:   true,
		},
		{
			name:   "same day previous evening",
			sess:   model.Session{Status: model.StatusOpen, StartsAt: start, WindowKind: model.WindowSameDay, WindowHour: 8},
			now:    start.Add(-24 * time.Hour),
			reason: ReasonWindowShut,
		},
		{
			name:   "same day before opening time",
			sess:   model.Session{Status: model.StatusOpen, StartsAt: start, WindowKind: model.WindowSameDay, WindowHour: 8, WindowMinute: 30},
			now:    time.Date(2026, time.March, 10, 8, 29, 0, 0, time.UTC),
			reason: ReasonWindowShut,
		},
		{
			name: "same day after opening time",
			sess: model.Session{Status: model.StatusOpen, StartsAt: start, WindowKind: model.WindowSameDay, WindowHour: 8, WindowMinute: 30},
			now:  time.Date(2026, time.March, 10, 8, 30, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name:   "days before without N falls back to same day",
			sess:   model.Session{Status: model.StatusOpen, StartsAt: start, WindowKind: model.WindowDaysBefore, WindowHour: 9},
			now:    time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC),
			reason: ReasonWindowShut,
		},
		{
			name:   "full",
			sess:   model.Session{Status: model.StatusFull, StartsAt: start, WindowKind: model.WindowNone},
			now:    start.Add(-time.Hour),
			reason: ReasonFull,
		},
		{
			name:   "upcoming",
			sess:   model.Session{Status: model.StatusUpcoming, StartsAt: start, WindowKind: model.WindowNone},
			now:    start.Add(-time.Hour),
			reason: ReasonNotOpen,
		},
		{
			name:   "closed",
			sess:   model.Session{Status: model.StatusClosed, StartsAt: start, WindowKind: model.WindowNone},
			now:    start.Add(-time.Hour),
			reason: ReasonClosed,
		},
		{
			name:   "started but not yet swept",
			sess:   model.Session{Status: model.StatusOpen, StartsAt: start, WindowKind: model.WindowNone},
			now:    start,
			reason: ReasonStarted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := IsBookable(tc.sess, tc.now)
			if ok != tc.ok || reason != tc.reason {
				t.Fatalf("IsBookable = (%v, %q), want (%v, %q)", ok, reason, tc.ok, tc.reason)
			}
		})
	}
}

func TestNextStatus(t *testing.T) {
	start := time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)
	one := 1
	base := model.Session{Capacity: 2, StartsAt: start, WindowKind: model.WindowDaysBefore, WindowDays: &one}

	with := func(status string) model.Session {
		s := base
		s.Status = status
		return s
	}

	cases := []struct {
		name      string
		sess      model.Session
		now       time.Time
		committed int
		want      string
	}{
		{"upcoming before window", with(model.StatusUpcoming), start.Add(-48 * time.Hour), 0, model.StatusUpcoming},
		{"upcoming at window", with(model.StatusUpcoming), start.Add(-24 * time.Hour), 0, model.StatusOpen},
		{"upcoming at window already full", with(model.StatusUpcoming), start.Add(-24 * time.Hour), 2, model.StatusFull},
		{"open fills", with(model.StatusOpen), start.Add(-time.Hour), 2, model.StatusFull},
		{"full frees", with(model.StatusFull), start.Add(-time.Hour), 1, model.StatusOpen},
		{"start closes", with(model.StatusFull), start, 2, model.StatusClosed},
		{"closed is terminal", with(model.StatusClosed), start.Add(-48 * time.Hour), 0, model.StatusClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextStatus(tc.sess, tc.now, tc.committed); got != tc.want {
				t.Fatalf("NextStatus = %s, want %s", got, tc.want)
			}
		})
	}
}
