package job

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"paydeck/timeclock/internal/models"

	"go.uber.org/zap"
)

type fakeSessionSource struct {
	sessions []*models.TimeSession
}

func (f *fakeSessionSource) FindByRange(start, end time.Time) ([]*models.TimeSession, error) {
	var out []*models.TimeSession
	for _, s := range f.sessions {
		if !s.StartTime.Before(start) && s.StartTime.Before(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeUserSource struct {
	users    []*models.User
	managers []*models.User
}

func (f *fakeUserSource) ListNotDisabled() ([]*models.User, error) { return f.users, nil }
func (f *fakeUserSource) ListManagers() ([]*models.User, error)    { return f.managers, nil }

type fakeSender struct {
	mu      sync.Mutex
	failFor map[string]bool
	mails   []sentMail
}

type sentMail struct {
	to      string
	subject string
	html    string
}

func (f *fakeSender) Send(to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[to] {
		return errors.New("smtp rejected")
	}
	f.mails = append(f.mails, sentMail{to: to, subject: subject, html: html})
	return nil
}

func (f *fakeSender) sentTo(to string) *sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.mails {
		if f.mails[i].to == to {
			return &f.mails[i]
		}
	}
	return nil
}

func closedSession(userID int64, start time.Time, durationSecs int64, manual bool) *models.TimeSession {
	end := start.Add(time.Duration(durationSecs) * time.Second)
	return &models.TimeSession{
		UserID:    userID,
		StartTime: start,
		EndTime:   &end,
		Duration:  durationSecs,
		IsManual:  manual,
	}
}

func newTestReport(sessions *fakeSessionSource, users *fakeUserSource, sender *fakeSender, now time.Time) *DailyReport {
	j := NewDailyReport(sessions, users, sender, 40, "USD", 7, zap.NewNop())
	j.SetClock(func() time.Time { return now })
	return j
}

// ============================================================
// Run
// ============================================================

func TestRunSendsPerUserMail(t *testing.T) {
	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	sessions := &fakeSessionSource{sessions: []*models.TimeSession{
		closedSession(1, yesterday, 2*3600, false),
		closedSession(1, yesterday.Add(3*time.Hour), 1800, true),
	}}
	users := &fakeUserSource{users: []*models.User{
		{ID: 1, Email: "alice@example.com", Name: "Alice"},
	}}
	sender := &fakeSender{}

	if err := newTestReport(sessions, users, sender, now).Run(); err != nil {
		t.Fatal(err)
	}

	mail := sender.sentTo("alice@example.com")
	if mail == nil {
		t.Fatal("expected mail to alice")
	}
	if !strings.Contains(mail.html, "2h 00m") {
		t.Fatalf("expected tracked hours in body, got %q", mail.html)
	}
	if !strings.Contains(mail.html, "0h 30m") {
		t.Fatalf("expected manual hours in body, got %q", mail.html)
	}
}

func TestRunOneFailureDoesNotBlockOthers(t *testing.T) {
	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	sessions := &fakeSessionSource{sessions: []*models.TimeSession{
		closedSession(1, yesterday, 3600, false),
		closedSession(2, yesterday, 3600, false),
	}}
	users := &fakeUserSource{users: []*models.User{
		{ID: 1, Email: "broken@example.com", Name: "Broken"},
		{ID: 2, Email: "bob@example.com", Name: "Bob"},
	}}
	sender := &fakeSender{failFor: map[string]bool{"broken@example.com": true}}

	if err := newTestReport(sessions, users, sender, now).Run(); err != nil {
		t.Fatalf("run must tolerate per-user failures: %v", err)
	}
	if sender.sentTo("bob@example.com") == nil {
		t.Fatal("expected mail to bob despite earlier failure")
	}
}

func TestRunWeekWindowExcludesOlderSessions(t *testing.T) {
	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)
	old := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC) // outside trailing 7 days

	sessions := &fakeSessionSource{sessions: []*models.TimeSession{
		closedSession(1, old, 8*3600, false),
	}}
	users := &fakeUserSource{users: []*models.User{
		{ID: 1, Email: "alice@example.com", Name: "Alice"},
	}}
	sender := &fakeSender{}

	if err := newTestReport(sessions, users, sender, now).Run(); err != nil {
		t.Fatal(err)
	}

	mail := sender.sentTo("alice@example.com")
	if mail == nil {
		t.Fatal("expected mail to alice")
	}
	if !strings.Contains(mail.html, "0h 00m") {
		t.Fatalf("expected empty totals, got %q", mail.html)
	}
	if strings.Contains(mail.html, "8h 00m") {
		t.Fatalf("old session must not count, got %q", mail.html)
	}
}

// ============================================================
// Admin digest
// ============================================================

func TestRunSendsAdminDigest(t *testing.T) {
	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	sessions := &fakeSessionSource{sessions: []*models.TimeSession{
		closedSession(1, yesterday, 3600, false),
	}}
	users := &fakeUserSource{
		users: []*models.User{
			{ID: 1, Email: "alice@example.com", Name: "Alice"},
		},
		managers: []*models.User{
			{ID: 9, Email: "boss@example.com", Name: "Boss", Role: models.RoleEmployer},
		},
	}
	sender := &fakeSender{}

	if err := newTestReport(sessions, users, sender, now).Run(); err != nil {
		t.Fatal(err)
	}

	digest := sender.sentTo("boss@example.com")
	if digest == nil {
		t.Fatal("expected digest to manager")
	}
	if !strings.Contains(digest.html, "Alice") {
		t.Fatalf("expected employee row in digest, got %q", digest.html)
	}
}

func TestRunNoManagersNoDigest(t *testing.T) {
	now := time.Date(2026, 8, 31, 7, 0, 0, 0, time.UTC)

	sessions := &fakeSessionSource{}
	users := &fakeUserSource{users: []*models.User{
		{ID: 1, Email: "alice@example.com", Name: "Alice"},
	}}
	sender := &fakeSender{}

	if err := newTestReport(sessions, users, sender, now).Run(); err != nil {
		t.Fatal(err)
	}
	if len(sender.mails) != 1 {
		t.Fatalf("expected only the user mail, got %d", len(sender.mails))
	}
}

// ============================================================
// Scheduler
// ============================================================

func TestStartStopIdempotent(t *testing.T) {
	j := newTestReport(&fakeSessionSource{}, &fakeUserSource{}, &fakeSender{}, time.Now())
	j.Start()
	j.Stop()
	j.Stop()
}
