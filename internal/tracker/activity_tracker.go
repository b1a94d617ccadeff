package tracker

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/progress/internal/error_values"
	"github.com/limbo/progress/pkg/entity"
)

// maxRestorableSeconds bounds how much elapsed time a reload may recover.
// Anything outside [0, 24h] means a stale row or a skewed clock, and the
// orphaned timer gets force-stopped instead of resumed.
const maxRestorableSeconds = 24 * 60 * 60

const tickInterval = time.Second

// ActivityTracker mirrors the signed-in user's activity rows and owns the
// elapsed-time accounting for the one activity that may be running.
// The cache is write-through: every mutation goes to the gateway first,
// then the full user-scoped set is reloaded. Nothing is merged locally.
type ActivityTracker struct {
	gateway ActivityGateway
	session AuthSession
	clock   Clock

	mu         sync.Mutex
	activities []*entity.Activity
	current    *entity.Activity
	hasActive  bool
	elapsed    int
	progress   int
	timer      *tickHandle
}

// tickHandle is the single allowed tick source. Installing a new one
// always goes through cancelTimerLocked first, otherwise two goroutines
// would double-count elapsed seconds.
type tickHandle struct {
	ticker Ticker
	done   chan struct{}
}

func NewActivityTracker(gateway ActivityGateway, session AuthSession) *ActivityTracker {
	return NewActivityTrackerWithClock(gateway, session, realClock{})
}

func NewActivityTrackerWithClock(gateway ActivityGateway, session AuthSession, clock Clock) *ActivityTracker {
	if gateway == nil || session == nil || clock == nil {
		log.Fatal("provided nil dependency to activity tracker")
	}
	return &ActivityTracker{
		gateway:    gateway,
		session:    session,
		clock:      clock,
		activities: make([]*entity.Activity, 0),
	}
}

// ---- queries (cache only, never fail) ----

func (t *ActivityTracker) Activities() []*entity.Activity {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*entity.Activity, len(t.activities))
	copy(out, t.activities)
	return out
}

// ActivitiesByDate returns cached activities created within the local
// calendar day of d.
func (t *ActivityTracker) ActivitiesByDate(d time.Time) []*entity.Activity {
	dayStart := midnight(d)
	dayEnd := dayStart.AddDate(0, 0, 1)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filterByRangeLocked(dayStart, dayEnd)
}

// WeeklyActivities returns cached activities created since the start of
// the current week. Weeks start on the locale's day zero (Sunday).
func (t *ActivityTracker) WeeklyActivities() []*entity.Activity {
	now := t.clock.Now()
	weekStart := midnight(now).AddDate(0, 0, -int(now.Weekday()))
	weekEnd := weekStart.AddDate(0, 0, 7)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filterByRangeLocked(weekStart, weekEnd)
}

func (t *ActivityTracker) DailyActivities() []*entity.Activity {
	return t.ActivitiesByDate(t.clock.Now())
}

func (t *ActivityTracker) ActivityByID(id uuid.UUID) (*entity.Activity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.findLocked(id)
	return a, a != nil
}

func (t *ActivityTracker) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *ActivityTracker) ElapsedSeconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

func (t *ActivityTracker) HasActiveActivity() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasActive
}

func (t *ActivityTracker) CurrentActivity() *entity.Activity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// ---- fetches ----

// FetchActivities reloads the full activity set for the current user and
// recomputes progress.
func (t *ActivityTracker) FetchActivities(ctx context.Context) error {
	uid, err := t.session.CurrentUser()
	if err != nil {
		return err
	}
	return t.reload(ctx, uid)
}

// FilterByRange narrows the cached set in place to activities created
// within [start, end) and recomputes progress. Purely local.
func (t *ActivityTracker) FilterByRange(start, end time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activities = t.filterByRangeLocked(start, end)
	t.recalcProgressLocked()
}

// FetchActivitiesForGoal loads the user's activities attached to goalID,
// oldest first. Pending rows created before today are reclassified expired
// with a single batched write before the cache is replaced. This is the
// only expiry sweep in the system; it runs at read time, never on a schedule.
func (t *ActivityTracker) FetchActivitiesForGoal(ctx context.Context, goalID uuid.UUID) ([]*entity.Activity, error) {
	uid, err := t.session.CurrentUser()
	if err != nil {
		return nil, err
	}
	rows, err := t.gateway.GetByUserAndGoal(ctx, uid, goalID)
	if err != nil {
		return nil, errorvalues.Remote("fetch goal activities", err)
	}
	todayStart := midnight(t.clock.Now())
	overdue := make([]uuid.UUID, 0)
	for _, a := range rows {
		if a.Status == entity.ActivityStatusPending && a.CreatedAt.Before(todayStart) {
			overdue = append(overdue, a.ID)
		}
	}
	if len(overdue) > 0 {
		if err := t.gateway.ExpireBatch(ctx, overdue); err != nil {
			return nil, errorvalues.Remote("expire activities", err)
		}
		for _, a := range rows {
			if a.Status == entity.ActivityStatusPending && a.CreatedAt.Before(todayStart) {
				a.Status = entity.ActivityStatusExpired
			}
		}
	}
	t.mu.Lock()
	t.activities = rows
	t.recalcProgressLocked()
	t.mu.Unlock()
	return rows, nil
}

// ---- mutations (write, then unconditional reload) ----

func (t *ActivityTracker) Add(ctx context.Context, activity *entity.Activity) (*entity.Activity, error) {
	uid, err := t.session.CurrentUser()
	if err != nil {
		return nil, err
	}
	activity.UserID = uid
	id, err := t.gateway.Create(ctx, activity)
	if err != nil {
		return nil, errorvalues.Remote("insert activity", err)
	}
	if err := t.reload(ctx, uid); err != nil {
		return nil, err
	}
	created, ok := t.ActivityByID(id)
	if !ok {
		// the insert succeeded but the reload came back without the row
		return nil, errorvalues.ErrActivityNotFound
	}
	return created, nil
}

func (t *ActivityTracker) AddBatch(ctx context.Context, activities []*entity.Activity) error {
	uid, err := t.session.CurrentUser()
	if err != nil {
		return err
	}
	for _, a := range activities {
		a.UserID = uid
	}
	if err := t.gateway.CreateBatch(ctx, activities); err != nil {
		return errorvalues.Remote("insert activities", err)
	}
	return t.reload(ctx, uid)
}

func (t *ActivityTracker) Update(ctx context.Context, activity *entity.Activity) error {
	uid, err := t.session.CurrentUser()
	if err != nil {
		return err
	}
	if err := t.checkOwned(activity.ID, uid); err != nil {
		return err
	}
	if err := t.gateway.Update(ctx, activity); err != nil {
		return errorvalues.Remote("update activity", err)
	}
	return t.reload(ctx, uid)
}

func (t *ActivityTracker) Complete(ctx context.Context, id uuid.UUID) error {
	uid, err := t.session.CurrentUser()
	if err != nil {
		return err
	}
	if err := t.checkOwned(id, uid); err != nil {
		return err
	}
	if err := t.gateway.MarkCompleted(ctx, id, t.clock.Now()); err != nil {
		return errorvalues.Remote("complete activity", err)
	}
	return t.reload(ctx, uid)
}

func (t *ActivityTracker) Delete(ctx context.Context, id uuid.UUID) error {
	uid, err := t.session.CurrentUser()
	if err != nil {
		return err
	}
	if err := t.checkOwned(id, uid); err != nil {
		return err
	}
	if err := t.gateway.Delete(ctx, id); err != nil {
		return errorvalues.Remote("delete activity", err)
	}
	return t.reload(ctx, uid)
}

// ---- timer state machine ----

// Start moves the activity to active and installs the tick source.
// Any previously running tick source is cancelled first; its elapsed
// count is discarded rather than double-counted.
func (t *ActivityTracker) Start(ctx context.Context, id uuid.UUID) error {
	t.mu.Lock()
	if t.findLocked(id) == nil {
		t.mu.Unlock()
		return errorvalues.ErrActivityNotFound
	}
	t.mu.Unlock()

	now := t.clock.Now()
	if err := t.gateway.SetStarted(ctx, id, now); err != nil {
		return errorvalues.Remote("start activity", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelTimerLocked()
	if a := t.findLocked(id); a != nil {
		a.Status = entity.ActivityStatusActive
		startAt := now
		a.StartTime = &startAt
		t.current = a
	}
	t.hasActive = true
	t.elapsed = 0
	t.startTickerLocked()
	return nil
}

// Stop finishes the activity: end_time = start_time + elapsed, duration
// accumulates across sessions. Silently no-ops when id is not cached.
func (t *ActivityTracker) Stop(ctx context.Context, id uuid.UUID) error {
	t.mu.Lock()
	a := t.findLocked(id)
	if a == nil {
		t.mu.Unlock()
		return nil
	}
	elapsed := t.elapsed
	startAt := t.clock.Now().Add(-time.Duration(elapsed) * time.Second)
	if a.StartTime != nil {
		startAt = *a.StartTime
	}
	endAt := startAt.Add(time.Duration(elapsed) * time.Second)
	duration := a.Duration + elapsed
	t.mu.Unlock()

	if err := t.gateway.SetFinished(ctx, id, endAt, duration); err != nil {
		return errorvalues.Remote("finish activity", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if a := t.findLocked(id); a != nil {
		a.Status = entity.ActivityStatusDone
		a.EndTime = &endAt
		a.Duration = duration
	}
	t.cancelTimerLocked()
	t.hasActive = false
	t.elapsed = 0
	return nil
}

// RestoreTimerState resumes a timer that was running before the process
// restarted. It scans the cache for an active row and recovers elapsed
// seconds from its start_time. A recovered value outside the sanity bound
// force-stops the activity instead, so an orphaned row can't resurrect a
// runaway timer.
func (t *ActivityTracker) RestoreTimerState(ctx context.Context) error {
	t.mu.Lock()
	var running *entity.Activity
	for _, a := range t.activities {
		if a.Status == entity.ActivityStatusActive {
			running = a
			break
		}
	}
	if running == nil {
		t.mu.Unlock()
		return nil
	}
	elapsed := -1
	if running.StartTime != nil {
		elapsed = int(t.clock.Now().Sub(*running.StartTime) / time.Second)
	}
	if elapsed < 0 || elapsed > maxRestorableSeconds {
		// stale row or clock skew: persist a clamped duration and stop
		t.elapsed = min(max(elapsed, 0), maxRestorableSeconds)
		id := running.ID
		t.mu.Unlock()
		return t.Stop(ctx, id)
	}
	t.cancelTimerLocked()
	t.current = running
	t.hasActive = true
	t.elapsed = elapsed
	t.startTickerLocked()
	t.mu.Unlock()
	return nil
}

// Shutdown cancels the tick source if one is running. The remote row is
// left active; the next RestoreTimerState picks it up.
func (t *ActivityTracker) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelTimerLocked()
}

// ---- internals ----

func (t *ActivityTracker) reload(ctx context.Context, uid uuid.UUID) error {
	rows, err := t.gateway.GetByUserID(ctx, uid)
	if err != nil {
		return errorvalues.Remote("fetch activities", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activities = rows
	t.recalcProgressLocked()
	return nil
}

func (t *ActivityTracker) checkOwned(id, uid uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.findLocked(id)
	if a == nil {
		return errorvalues.ErrActivityNotFound
	}
	if a.UserID != uid {
		return errorvalues.ErrWrongOwner
	}
	return nil
}

func (t *ActivityTracker) findLocked(id uuid.UUID) *entity.Activity {
	for _, a := range t.activities {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (t *ActivityTracker) filterByRangeLocked(start, end time.Time) []*entity.Activity {
	out := make([]*entity.Activity, 0)
	for _, a := range t.activities {
		if !a.CreatedAt.Before(start) && a.CreatedAt.Before(end) {
			out = append(out, a)
		}
	}
	return out
}

func (t *ActivityTracker) recalcProgressLocked() {
	dayStart := midnight(t.clock.Now())
	daily := t.filterByRangeLocked(dayStart, dayStart.AddDate(0, 0, 1))
	if len(daily) == 0 {
		t.progress = 0
		return
	}
	completed := 0
	for _, a := range daily {
		if a.Completed {
			completed++
		}
	}
	t.progress = int(math.Round(float64(completed) / float64(len(daily)) * 100))
}

func (t *ActivityTracker) startTickerLocked() {
	h := &tickHandle{
		ticker: t.clock.NewTicker(tickInterval),
		done:   make(chan struct{}),
	}
	t.timer = h
	go func() {
		for {
			select {
			case <-h.done:
				return
			case <-h.ticker.C():
				t.mu.Lock()
				t.elapsed++
				t.mu.Unlock()
			}
		}
	}()
}

func (t *ActivityTracker) cancelTimerLocked() {
	if t.timer == nil {
		return
	}
	close(t.timer.done)
	t.timer.ticker.Stop()
	t.timer = nil
}

func midnight(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}
