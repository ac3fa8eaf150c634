package report

import (
	"math"
	"testing"
	"time"

	"paydeck/timeclock/internal/models"
)

func closed(userID, taskID, projectID int64, start time.Time, durationSecs int64, manual bool) *models.TimeSession {
	end := start.Add(time.Duration(durationSecs) * time.Second)
	return &models.TimeSession{
		UserID:    userID,
		TaskID:    taskID,
		ProjectID: projectID,
		StartTime: start,
		EndTime:   &end,
		Duration:  durationSecs,
		IsManual:  manual,
	}
}

func running(userID int64, start time.Time) *models.TimeSession {
	return &models.TimeSession{UserID: userID, StartTime: start}
}

func approx(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.01 {
		t.Fatalf("expected ~%.3f, got %.3f", want, got)
	}
}

// ============================================================
// Sums
// ============================================================

func TestSumByUser(t *testing.T) {
	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	sessions := []*models.TimeSession{
		closed(1, 10, 100, day, 3600, false),
		closed(1, 11, 100, day.Add(2*time.Hour), 1800, true),
		closed(2, 10, 100, day, 600, false),
		running(1, day.Add(5*time.Hour)),
	}

	totals := SumByUser(sessions)
	if totals[1] != 5400 {
		t.Fatalf("expected user 1 total 5400, got %d", totals[1])
	}
	if totals[2] != 600 {
		t.Fatalf("expected user 2 total 600, got %d", totals[2])
	}

	// Summing twice over the same slice gives the same answer.
	again := SumByUser(sessions)
	if again[1] != totals[1] || again[2] != totals[2] {
		t.Fatal("expected identical totals on repeat")
	}
}

func TestSumByProjectAndTask(t *testing.T) {
	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	sessions := []*models.TimeSession{
		closed(1, 10, 100, day, 3600, false),
		closed(2, 10, 100, day, 1800, false),
		closed(1, 11, 200, day, 600, false),
	}

	byProject := SumByProject(sessions)
	if byProject[100] != 5400 || byProject[200] != 600 {
		t.Fatalf("unexpected project totals: %v", byProject)
	}

	byTask := SumByTask(sessions)
	if byTask[10] != 5400 || byTask[11] != 600 {
		t.Fatalf("unexpected task totals: %v", byTask)
	}
}

func TestInProgressByUser(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	sessions := []*models.TimeSession{
		running(1, now.Add(-30*time.Minute)),
		closed(1, 10, 100, now.Add(-4*time.Hour), 3600, false),
		running(2, now.Add(time.Minute)), // start in the future: clamp to 0
	}

	live := InProgressByUser(sessions, now)
	if live[1] != 1800 {
		t.Fatalf("expected 1800 live seconds, got %d", live[1])
	}
	if live[2] != 0 {
		t.Fatalf("expected clamp to 0, got %d", live[2])
	}
}

// ============================================================
// Tracked vs manual split
// ============================================================

func TestSplitTrackedVsManual(t *testing.T) {
	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	sessions := []*models.TimeSession{
		closed(1, 10, 100, day, 3600, false),
		closed(1, 10, 100, day.Add(2*time.Hour), 1800, true),
		running(1, day.Add(5*time.Hour)),
	}

	split := SplitTrackedVsManual(sessions)
	if split.TrackedSeconds != 3600 {
		t.Fatalf("expected 3600 tracked, got %d", split.TrackedSeconds)
	}
	if split.ManualSeconds != 1800 {
		t.Fatalf("expected 1800 manual, got %d", split.ManualSeconds)
	}
	if split.Total() != 5400 {
		t.Fatalf("expected 5400 total, got %d", split.Total())
	}
}

func TestGroupByUser(t *testing.T) {
	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	sessions := []*models.TimeSession{
		closed(1, 10, 100, day, 3600, false),
		closed(2, 10, 100, day, 1800, false),
		closed(1, 11, 100, day.Add(time.Hour), 600, false),
	}

	grouped := GroupByUser(sessions)
	if len(grouped[1]) != 2 || len(grouped[2]) != 1 {
		t.Fatalf("unexpected grouping: %d/%d", len(grouped[1]), len(grouped[2]))
	}
	if !grouped[1][0].StartTime.Before(grouped[1][1].StartTime) {
		t.Fatal("expected input order preserved")
	}
}

// ============================================================
// Timeline
// ============================================================

func TestTimelinePositions(t *testing.T) {
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	// 09:00 to 17:00: offset 9/24, width 8/24.
	sessions := []*models.TimeSession{
		closed(1, 10, 100, date.Add(9*time.Hour), 8*3600, false),
	}

	bars := Timeline(sessions, date, date.Add(23*time.Hour))
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	approx(t, bars[0].OffsetPercent, 37.5)
	approx(t, bars[0].WidthPercent, 100.0/3)
}

func TestTimelineExcludesOtherDays(t *testing.T) {
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	sessions := []*models.TimeSession{
		closed(1, 10, 100, date.AddDate(0, 0, -1).Add(9*time.Hour), 3600, false),
		closed(1, 10, 100, date.AddDate(0, 0, 1).Add(9*time.Hour), 3600, false),
		closed(1, 10, 100, date.Add(9*time.Hour), 3600, false),
	}

	bars := Timeline(sessions, date, date.Add(23*time.Hour))
	if len(bars) != 1 {
		t.Fatalf("expected only the in-day session, got %d bars", len(bars))
	}
}

func TestTimelineRunningSessionExtendsToNow(t *testing.T) {
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	now := date.Add(10 * time.Hour)
	sessions := []*models.TimeSession{
		running(1, date.Add(9*time.Hour)),
	}

	bars := Timeline(sessions, date, now)
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	approx(t, bars[0].WidthPercent, 100.0/24)
}

func TestTimelineMarksBreaks(t *testing.T) {
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	notes := models.BreakNotePrefix + " lunch"
	s := closed(1, 10, 100, date.Add(12*time.Hour), 1800, false)
	s.Notes = &notes

	bars := Timeline([]*models.TimeSession{s}, date, date.Add(23*time.Hour))
	if len(bars) != 1 || !bars[0].IsBreak {
		t.Fatalf("expected break bar, got %+v", bars)
	}
}

// ============================================================
// Payroll
// ============================================================

func TestPayroll(t *testing.T) {
	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	sessions := []*models.TimeSession{
		closed(1, 10, 100, day, 2*3600, false),
		closed(1, 10, 100, day.Add(3*time.Hour), 1800, true),
		closed(2, 10, 100, day, 3600, false),
	}

	entries := Payroll(sessions, 40)
	approx(t, entries[1].Amount, 100) // 2.5h * 40
	approx(t, entries[2].Amount, 40)
	if entries[1].TotalSeconds != 9000 {
		t.Fatalf("expected 9000s, got %d", entries[1].TotalSeconds)
	}
}
