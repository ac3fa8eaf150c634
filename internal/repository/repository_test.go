package repository

import (
	"database/sql"
	"testing"
	"time"

	"paydeck/timeclock/internal/database"
	"paydeck/timeclock/internal/models"

	"go.uber.org/zap"
)

type fixture struct {
	sessions *SessionRepository
	users    *UserRepository
	tasks    *TaskRepository
	userID   int64
	taskID   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewMemory(zap.NewNop())
	if err != nil {
		t.Fatalf("new memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		sessions: NewSessionRepository(db.DB),
		users:    NewUserRepository(db.DB),
		tasks:    NewTaskRepository(db.DB),
	}

	user, err := f.users.Create("alice@example.com", "Alice", models.RoleEmployee, 30)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f.userID = user.ID

	project, err := f.tasks.CreateProject("Website")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	task, err := f.tasks.Create(project.ID, "Design", true)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	f.taskID = task.ID
	return f
}

// ============================================================
// Running sessions
// ============================================================

func TestCreateRunning(t *testing.T) {
	f := newFixture(t)

	session, err := f.sessions.CreateRunning(f.userID, f.taskID, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if session.ID == 0 {
		t.Fatal("expected non-zero ID")
	}
	if session.EndTime != nil {
		t.Fatal("expected open session")
	}
}

func TestCreateRunningSecondConflicts(t *testing.T) {
	f := newFixture(t)

	if _, err := f.sessions.CreateRunning(f.userID, f.taskID, time.Now()); err != nil {
		t.Fatal(err)
	}
	_, err := f.sessions.CreateRunning(f.userID, f.taskID, time.Now())
	if err != ErrActiveSessionExists {
		t.Fatalf("expected ErrActiveSessionExists, got %v", err)
	}
}

func TestCreateRunningAfterCloseSucceeds(t *testing.T) {
	f := newFixture(t)

	first, err := f.sessions.CreateRunning(f.userID, f.taskID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.Close(first.ID, time.Now(), 3600, 0, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := f.sessions.CreateRunning(f.userID, f.taskID, time.Now()); err != nil {
		t.Fatalf("start after close: %v", err)
	}
}

func TestDifferentUsersRunConcurrently(t *testing.T) {
	f := newFixture(t)
	bob, err := f.users.Create("bob@example.com", "Bob", models.RoleEmployee, 30)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.sessions.CreateRunning(f.userID, f.taskID, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sessions.CreateRunning(bob.ID, f.taskID, time.Now()); err != nil {
		t.Fatalf("second user's start should not conflict: %v", err)
	}
}

func TestCloseAlreadyClosed(t *testing.T) {
	f := newFixture(t)

	session, err := f.sessions.CreateRunning(f.userID, f.taskID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.Close(session.ID, time.Now(), 3600, 0, nil); err != nil {
		t.Fatal(err)
	}

	err = f.sessions.Close(session.ID, time.Now(), 3600, 0, nil)
	if err != ErrSessionNotRunning {
		t.Fatalf("expected ErrSessionNotRunning, got %v", err)
	}
}

func TestFindActiveByUser(t *testing.T) {
	f := newFixture(t)

	session, err := f.sessions.FindActiveByUser(f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if session != nil {
		t.Fatalf("expected nil for no active session, got %+v", session)
	}

	created, err := f.sessions.CreateRunning(f.userID, f.taskID, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	session, err = f.sessions.FindActiveByUser(f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if session == nil || session.ID != created.ID {
		t.Fatalf("expected session %d, got %+v", created.ID, session)
	}
	if session.TaskName != "Design" || session.ProjectName != "Website" {
		t.Fatalf("expected joined task/project names, got %+v", session)
	}
}

// ============================================================
// Manual entries
// ============================================================

func TestCreateClosed(t *testing.T) {
	f := newFixture(t)

	start := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	notes := "retro backfill"
	session, err := f.sessions.CreateClosed(f.userID, f.taskID, start, end, 3600, &notes)
	if err != nil {
		t.Fatal(err)
	}
	if !session.IsManual {
		t.Fatal("expected manual flag")
	}
	if session.IdleDuration != 0 {
		t.Fatalf("manual entries carry no idle time, got %d", session.IdleDuration)
	}

	// A manual entry never blocks a live start.
	if _, err := f.sessions.CreateRunning(f.userID, f.taskID, time.Now()); err != nil {
		t.Fatalf("start after manual entry: %v", err)
	}
}

// ============================================================
// Range queries
// ============================================================

func TestFindByUserAndRange(t *testing.T) {
	f := newFixture(t)

	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	for _, hour := range []int{9, 14, 26} { // third one is the next day
		start := day.Add(time.Duration(hour) * time.Hour)
		if _, err := f.sessions.CreateClosed(f.userID, f.taskID, start, start.Add(time.Hour), 3600, nil); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := f.sessions.FindByUserAndRange(f.userID, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions in day, got %d", len(sessions))
	}
	if !sessions[0].StartTime.Before(sessions[1].StartTime) {
		t.Fatal("expected ascending start order")
	}
}

func TestFindByRangeCoversAllUsers(t *testing.T) {
	f := newFixture(t)
	bob, err := f.users.Create("bob@example.com", "Bob", models.RoleEmployee, 30)
	if err != nil {
		t.Fatal(err)
	}

	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	for _, userID := range []int64{f.userID, bob.ID} {
		start := day.Add(9 * time.Hour)
		if _, err := f.sessions.CreateClosed(userID, f.taskID, start, start.Add(time.Hour), 3600, nil); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := f.sessions.FindByRange(day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
}

// ============================================================
// Delete and screenshots
// ============================================================

func TestDeleteMissingSession(t *testing.T) {
	f := newFixture(t)
	if err := f.sessions.Delete(999); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestScreenshotRoundTrip(t *testing.T) {
	f := newFixture(t)

	session, err := f.sessions.CreateRunning(f.userID, f.taskID, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	capturedAt := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	shot, err := f.sessions.CreateScreenshot(session.ID, "http://localhost/blobs/a.png", capturedAt)
	if err != nil {
		t.Fatal(err)
	}
	if shot.ID == 0 {
		t.Fatal("expected non-zero screenshot ID")
	}

	shots, err := f.sessions.ListScreenshotsBySession(session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(shots) != 1 || shots[0].ImageURL != "http://localhost/blobs/a.png" {
		t.Fatalf("unexpected screenshots: %+v", shots)
	}

	if err := f.sessions.DeleteScreenshotsBySession(session.ID); err != nil {
		t.Fatal(err)
	}
	shots, err = f.sessions.ListScreenshotsBySession(session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(shots) != 0 {
		t.Fatalf("expected no screenshots after delete, got %d", len(shots))
	}
}

// ============================================================
// Users and tasks
// ============================================================

func TestGetUserMissing(t *testing.T) {
	f := newFixture(t)
	user, err := f.users.GetByID(999)
	if err != nil {
		t.Fatal(err)
	}
	if user != nil {
		t.Fatalf("expected nil for missing user, got %+v", user)
	}
}

func TestListManagers(t *testing.T) {
	f := newFixture(t)
	if _, err := f.users.Create("boss@example.com", "Boss", models.RoleEmployer, 30); err != nil {
		t.Fatal(err)
	}
	if _, err := f.users.Create("root@example.com", "Root", models.RoleAdmin, 30); err != nil {
		t.Fatal(err)
	}

	managers, err := f.users.ListManagers()
	if err != nil {
		t.Fatal(err)
	}
	if len(managers) != 2 {
		t.Fatalf("expected 2 managers, got %d", len(managers))
	}
}

func TestListNotDisabledExcludesDisabled(t *testing.T) {
	f := newFixture(t)
	disabled, err := f.users.Create("gone@example.com", "Gone", models.RoleEmployee, 30)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.users.UpdateStatus(disabled.ID, models.StatusDisabled); err != nil {
		t.Fatal(err)
	}

	users, err := f.users.ListNotDisabled()
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range users {
		if u.ID == disabled.ID {
			t.Fatal("disabled user should be excluded")
		}
	}
}

func TestTaskAssignees(t *testing.T) {
	f := newFixture(t)

	project, err := f.tasks.CreateProject("Internal")
	if err != nil {
		t.Fatal(err)
	}
	task, err := f.tasks.Create(project.ID, "Restricted", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.tasks.AddAssignee(task.ID, f.userID); err != nil {
		t.Fatal(err)
	}
	// Adding twice is a no-op.
	if err := f.tasks.AddAssignee(task.ID, f.userID); err != nil {
		t.Fatal(err)
	}

	loaded, err := f.tasks.GetByID(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.AssigneeIDs) != 1 || loaded.AssigneeIDs[0] != f.userID {
		t.Fatalf("unexpected assignees: %v", loaded.AssigneeIDs)
	}
}
