package application

import (
	"testing"
	"time"
)

func TestParseDailyAt(t *testing.T) {
	hour, minute, err := parseDailyAt("02:30")
	if err != nil {
		t.Fatalf("parse daily at: %v", err)
	}
	if hour != 2 || minute != 30 {
		t.Fatalf("expected 02:30, got %02d:%02d", hour, minute)
	}
	if _, _, err := parseDailyAt("half past two"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestSchedulerShouldRun(t *testing.T) {
	s := &Scheduler{dailyAt: "02:30"}

	at := time.Date(2026, time.March, 1, 2, 30, 10, 0, time.UTC)
	if !s.shouldRun(at) {
		t.Fatal("expected run at 02:30")
	}
	if s.shouldRun(at.Add(time.Minute)) {
		t.Fatal("expected no run at 02:31")
	}

	broken := &Scheduler{dailyAt: "later"}
	if broken.shouldRun(at) {
		t.Fatal("expected no run with an invalid schedule")
	}
}
