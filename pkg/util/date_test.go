package util

import (
	"testing"
	"time"
)

func TestParseDayIST(t *testing.T) {
	d, err := ParseDay("2024-06-03", time.Now())
	if err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if d.Format(time.RFC3339) != "2024-06-03T00:00:00+05:30" {
		t.Fatalf("unexpected day %v", d)
	}
	if _, err := ParseDay("03/06/2024", time.Now()); err == nil {
		t.Fatalf("expected error for bad layout")
	}
	now := time.Date(2024, 6, 3, 20, 0, 0, 0, time.UTC) // 01:30 IST on the 4th
	d, _ = ParseDay("", now)
	if d.Day() != 4 {
		t.Fatalf("expected IST day 4, got %v", d)
	}
}

func TestSessionBounds(t *testing.T) {
	open, close := SessionBounds(time.Date(2024, 6, 3, 5, 0, 0, 0, time.UTC))
	if open.Format("15:04") != "09:15" || close.Format("15:04") != "15:30" {
		t.Fatalf("unexpected bounds %v %v", open, close)
	}
	if !InSession(time.Date(2024, 6, 3, 9, 15, 0, 0, IST)) {
		t.Fatalf("09:15 Monday should be in session")
	}
	if InSession(time.Date(2024, 6, 3, 15, 30, 0, 0, IST)) {
		t.Fatalf("15:30 should be closed")
	}
	if InSession(time.Date(2024, 6, 1, 10, 0, 0, 0, IST)) {
		t.Fatalf("Saturday should be closed")
	}
}

func TestAlignToBar(t *testing.T) {
	at := time.Date(2024, 6, 3, 9, 31, 40, 0, IST)
	cases := map[time.Duration]string{
		time.Minute:      "09:31",
		5 * time.Minute:  "09:30",
		15 * time.Minute: "09:30",
	}
	for bar, want := range cases {
		if got := AlignToBar(at, bar).In(IST).Format("15:04"); got != want {
			t.Fatalf("bar %v: got %s, want %s", bar, got, want)
		}
	}
	late := time.Date(2024, 6, 3, 9, 44, 0, 0, IST)
	if got := AlignToBar(late, 15*time.Minute).In(IST).Format("15:04"); got != "09:30" {
		t.Fatalf("15m bar for 09:44 = %s, want 09:30", got)
	}
}
