package bookings

import (
	"context"
	"os"
	"time"

	"tutorbook/internal/shared/constants"
	"tutorbook/pkg/atomicstore"
	"tutorbook/pkg/logger"
)

// reminderClaimTTL outlives the business day the claim is for
const reminderClaimTTL = 36 * time.Hour

// releaseTimeout bounds the claim release after a failed run
const releaseTimeout = 5 * time.Second

// ReminderConfig controls the daily reminder run
type ReminderConfig struct {
	CheckInterval time.Duration
	// Local wall-clock time after which the day's reminders go out
	SendHour   int
	SendMinute int
}

// DefaultReminderConfig returns default reminder configuration
func DefaultReminderConfig() *ReminderConfig {
	return &ReminderConfig{
		CheckInterval: 15 * time.Minute,
		SendHour:      8,
		SendMinute:    30,
	}
}

// ReminderJob sends same-day session reminders once per business day
// across all instances
type ReminderJob struct {
	service  Service
	store    atomicstore.Store
	config   *ReminderConfig
	instance string
	log      *logger.Logger
	now      func() time.Time
	done     chan struct{}
}

func NewReminderJob(service Service, store atomicstore.Store, config *ReminderConfig) *ReminderJob {
	if config == nil {
		config = DefaultReminderConfig()
	}

	instance, _ := os.Hostname()
	return &ReminderJob{
		service:  service,
		store:    store,
		config:   config,
		instance: instance,
		log:      logger.GetDefault().WithComponent("reminders"),
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start starts the reminder loop
func (j *ReminderJob) Start(ctx context.Context) {
	j.log.Info("starting reminder job", "check_interval", j.config.CheckInterval.String())
	go j.loop(ctx)
}

// Stop stops the reminder loop
func (j *ReminderJob) Stop() {
	close(j.done)
	j.log.Info("reminder job stopped")
}

func (j *ReminderJob) loop(ctx context.Context) {
	ticker := time.NewTicker(j.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-j.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce sends today's reminders if it is a weekday, past the send time,
// and no instance has sent them yet. It reports how many were sent.
func (j *ReminderJob) RunOnce(ctx context.Context) int {
	local := j.now().In(j.service.Location())
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return 0
	}
	sendAt := time.Date(local.Year(), local.Month(), local.Day(), j.config.SendHour, j.config.SendMinute, 0, 0, local.Location())
	if local.Before(sendAt) {
		return 0
	}

	key := constants.ReminderKey(local.Format("20060102"))
	claimed, err := atomicstore.ClaimOnce(ctx, j.store, key, j.instance, reminderClaimTTL)
	if err != nil {
		j.log.ErrorContext(ctx, "reminder claim failed", "error", err)
		return 0
	}
	if !claimed {
		return 0
	}

	sent, err := j.service.SendReminders(ctx, local)
	if err != nil && sent == 0 {
		// Nothing went out, so a later tick may try the day again
		j.releaseClaim(ctx, key)
		j.log.ErrorContext(ctx, "reminder run failed, claim released", "error", err)
		return 0
	}
	if err != nil {
		j.log.ErrorContext(ctx, "some reminders were not sent", "sent", sent, "error", err)
	} else {
		j.log.InfoContext(ctx, "reminders sent", "sent", sent)
	}
	return sent
}

// releaseClaim drops the day's claim if this instance still holds it
func (j *ReminderJob) releaseClaim(ctx context.Context, key string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	_, err := j.store.ConditionalWrite(releaseCtx, key,
		atomicstore.Matches(map[string]string{"owner": j.instance}),
		atomicstore.Mutation{Delete: true},
	)
	if err != nil {
		j.log.WarnContext(ctx, "reminder claim not released, the day will be skipped", "key", key, "error", err)
	}
}
