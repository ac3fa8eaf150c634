// Package job runs the daily summary batch: per-user mails with yesterday
// and trailing-7-day totals, plus one combined digest for managers.
package job

import (
	"bytes"
	"fmt"
	"html/template"
	"sync"
	"time"

	"paydeck/timeclock/internal/models"
	"paydeck/timeclock/internal/report"

	"go.uber.org/zap"
)

// SessionSource supplies sessions for a half-open time range.
type SessionSource interface {
	FindByRange(start, end time.Time) ([]*models.TimeSession, error)
}

// UserSource supplies report recipients.
type UserSource interface {
	ListNotDisabled() ([]*models.User, error)
	ListManagers() ([]*models.User, error)
}

// Sender delivers one HTML mail.
type Sender interface {
	Send(to, subject, html string) error
}

// DailyReport composes and sends the daily summaries. The scheduled
// trigger and the manual "send now" path both call Run; duplicate sends
// are accepted (at-least-once delivery).
type DailyReport struct {
	sessions   SessionSource
	users      UserSource
	mailer     Sender
	hourlyRate float64
	currency   string
	sendHour   int
	logger     *zap.Logger
	now        func() time.Time

	lastRunDay string
	mu         sync.Mutex
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

func NewDailyReport(
	sessions SessionSource,
	users UserSource,
	mailer Sender,
	hourlyRate float64,
	currency string,
	sendHour int,
	logger *zap.Logger,
) *DailyReport {
	return &DailyReport{
		sessions:   sessions,
		users:      users,
		mailer:     mailer,
		hourlyRate: hourlyRate,
		currency:   currency,
		sendHour:   sendHour,
		logger:     logger,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// SetClock overrides the time source. Used by tests.
func (j *DailyReport) SetClock(now func() time.Time) {
	j.now = now
}

// Start begins the once-per-day scheduler.
func (j *DailyReport) Start() {
	j.wg.Add(1)
	go j.scheduleLoop()

	j.logger.Info("Daily report scheduler started", zap.Int("send_hour", j.sendHour))
}

// Stop ends the scheduler.
func (j *DailyReport) Stop() {
	j.mu.Lock()
	select {
	case <-j.stopChan:
		j.mu.Unlock()
		return
	default:
		close(j.stopChan)
	}
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Info("Daily report scheduler stopped")
}

func (j *DailyReport) scheduleLoop() {
	defer j.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := j.now()
			day := now.Format("2006-01-02")

			j.mu.Lock()
			due := now.Hour() == j.sendHour && j.lastRunDay != day
			if due {
				j.lastRunDay = day
			}
			j.mu.Unlock()

			if due {
				if err := j.Run(); err != nil {
					j.logger.Error("Daily report run failed", zap.Error(err))
				}
			}
		case <-j.stopChan:
			return
		}
	}
}

// Run computes and sends all reports for yesterday. One user's failing
// mail never blocks the rest of the batch.
func (j *DailyReport) Run() error {
	now := j.now()
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayStart := dayEnd.AddDate(0, 0, -1)
	weekStart := dayEnd.AddDate(0, 0, -7)

	weekSessions, err := j.sessions.FindByRange(weekStart, dayEnd)
	if err != nil {
		return fmt.Errorf("failed to load week sessions: %w", err)
	}

	var daySessions []*models.TimeSession
	for _, s := range weekSessions {
		if !s.StartTime.Before(dayStart) && s.StartTime.Before(dayEnd) {
			daySessions = append(daySessions, s)
		}
	}

	users, err := j.users.ListNotDisabled()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	dayByUser := report.GroupByUser(daySessions)
	weekByUser := report.GroupByUser(weekSessions)

	var summaries []userSummary
	sent, failed := 0, 0
	for _, user := range users {
		summary := userSummary{
			Name:     user.Name,
			Email:    user.Email,
			Day:      report.SplitTrackedVsManual(dayByUser[user.ID]),
			Week:     report.SplitTrackedVsManual(weekByUser[user.ID]),
			Date:     dayStart.Format("Mon, 02 Jan 2006"),
			Currency: j.currency,
		}
		summary.Amount = float64(summary.Week.Total()) / 3600 * j.hourlyRate
		summaries = append(summaries, summary)

		html, err := renderUserReport(summary)
		if err != nil {
			j.logger.Error("Failed to render report", zap.Error(err), zap.Int64("user_id", user.ID))
			failed++
			continue
		}

		subject := fmt.Sprintf("Your time report for %s", summary.Date)
		if err := j.mailer.Send(user.Email, subject, html); err != nil {
			j.logger.Warn("Failed to send report",
				zap.Error(err),
				zap.Int64("user_id", user.ID),
			)
			failed++
			continue
		}
		sent++
	}

	j.sendAdminDigest(summaries, dayStart)

	j.logger.Info("Daily report run completed",
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
	return nil
}

func (j *DailyReport) sendAdminDigest(summaries []userSummary, day time.Time) {
	managers, err := j.users.ListManagers()
	if err != nil {
		j.logger.Error("Failed to list managers", zap.Error(err))
		return
	}
	if len(managers) == 0 {
		return
	}

	html, err := renderAdminDigest(adminDigest{
		Date:      day.Format("Mon, 02 Jan 2006"),
		Summaries: summaries,
	})
	if err != nil {
		j.logger.Error("Failed to render admin digest", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("Team time report for %s", day.Format("Mon, 02 Jan 2006"))
	for _, manager := range managers {
		if err := j.mailer.Send(manager.Email, subject, html); err != nil {
			j.logger.Warn("Failed to send admin digest",
				zap.Error(err),
				zap.Int64("user_id", manager.ID),
			)
		}
	}
}

type userSummary struct {
	Name     string
	Email    string
	Date     string
	Day      report.Split
	Week     report.Split
	Amount   float64
	Currency string
}

type adminDigest struct {
	Date      string
	Summaries []userSummary
}

var tmplFuncs = template.FuncMap{
	"hours": func(seconds int64) string {
		return fmt.Sprintf("%dh %02dm", seconds/3600, seconds%3600/60)
	},
}

var userTmpl = template.Must(template.New("user").Funcs(tmplFuncs).Parse(`
<h2>Time report for {{.Date}}</h2>
<p>Hi {{.Name}},</p>
<table border="1" cellpadding="6" cellspacing="0">
  <tr><th></th><th>Tracked</th><th>Manual</th><th>Total</th></tr>
  <tr><td>Yesterday</td><td>{{hours .Day.TrackedSeconds}}</td><td>{{hours .Day.ManualSeconds}}</td><td>{{hours .Day.Total}}</td></tr>
  <tr><td>Last 7 days</td><td>{{hours .Week.TrackedSeconds}}</td><td>{{hours .Week.ManualSeconds}}</td><td>{{hours .Week.Total}}</td></tr>
</table>
{{if gt .Amount 0.0}}<p>Estimated pay for the last 7 days: {{printf "%.2f" .Amount}} {{.Currency}}</p>{{end}}
`))

var adminTmpl = template.Must(template.New("admin").Funcs(tmplFuncs).Parse(`
<h2>Team time report for {{.Date}}</h2>
<table border="1" cellpadding="6" cellspacing="0">
  <tr><th>Employee</th><th>Yesterday</th><th>Last 7 days</th></tr>
  {{range .Summaries}}
  <tr><td>{{.Name}}</td><td>{{hours .Day.Total}}</td><td>{{hours .Week.Total}}</td></tr>
  {{end}}
</table>
`))

func renderUserReport(s userSummary) (string, error) {
	var buf bytes.Buffer
	if err := userTmpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("failed to render user report: %w", err)
	}
	return buf.String(), nil
}

func renderAdminDigest(d adminDigest) (string, error) {
	var buf bytes.Buffer
	if err := adminTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render admin digest: %w", err)
	}
	return buf.String(), nil
}
