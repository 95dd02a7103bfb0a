// Package schedule pushes tasks into a processor on a cron schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/asyncproc"
)

const Namespace = "schedule"

var (
	ErrInvalidSpec = errors.New(Namespace + ": invalid schedule spec")
	ErrNilPusher   = errors.New(Namespace + ": pusher is nil")
)

var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Pusher accepts tasks. *asyncproc.Processor and the processors in package steps implement it.
type Pusher interface {
	PushTask(values ...asyncproc.Value) error
}

// ValuesFunc builds the task values for a run fired at t.
type ValuesFunc func(t time.Time) []asyncproc.Value

// Scheduler fires registered jobs on their schedules, each pushing one task into its Pusher.
// Specs use the cron format with an optional leading seconds field, or descriptors such as "@every 5s".
type Scheduler struct {
	c   *cron.Cron
	log zerolog.Logger

	mu    sync.Mutex
	specs map[cron.EntryID]string
}

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	logger   zerolog.Logger
	location *time.Location
}

// WithLogger sets the scheduler logger. Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLocation sets the time zone specs are interpreted in. Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// New returns a stopped Scheduler.
func New(opts ...Option) *Scheduler {
	o := options{logger: zerolog.Nop(), location: time.Local}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Scheduler{
		c:     cron.New(cron.WithLocation(o.location)),
		log:   o.logger,
		specs: make(map[cron.EntryID]string),
	}
}

// Add registers a job pushing values(t) into p each time spec fires.
// A nil values pushes an empty task.
func (s *Scheduler) Add(spec string, p Pusher, values ValuesFunc) (cron.EntryID, error) {
	if p == nil {
		return 0, ErrNilPusher
	}
	sched, err := specParser.Parse(spec)
	if err != nil {
		return 0, errorc.With(fmt.Errorf("%w: %v", ErrInvalidSpec, err), errorc.String("spec", spec))
	}
	return s.add(sched, spec, p, values), nil
}

// AddSchedule registers a job firing on sched.
func (s *Scheduler) AddSchedule(sched cron.Schedule, p Pusher, values ValuesFunc) (cron.EntryID, error) {
	if p == nil {
		return 0, ErrNilPusher
	}
	if sched == nil {
		return 0, ErrInvalidSpec
	}
	return s.add(sched, fmt.Sprintf("%T", sched), p, values), nil
}

func (s *Scheduler) add(sched cron.Schedule, spec string, p Pusher, values ValuesFunc) cron.EntryID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.c.Schedule(sched, cron.FuncJob(func() {
		now := time.Now()
		var vals []asyncproc.Value
		if values != nil {
			vals = values(now)
		}
		if err := p.PushTask(vals...); err != nil {
			s.log.Warn().Err(err).Str("spec", spec).Msg("scheduled push failed")
			return
		}
		s.log.Debug().Str("spec", spec).Int("values", len(vals)).Msg("scheduled task pushed")
	}))
	s.specs[id] = spec
	s.log.Info().Int("entry", int(id)).Str("spec", spec).Msg("job scheduled")
	return id
}

// Remove unregisters the job. Unknown ids are ignored.
func (s *Scheduler) Remove(id cron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.specs[id]; !ok {
		return
	}
	s.c.Remove(id)
	delete(s.specs, id)
	s.log.Info().Int("entry", int(id)).Msg("job removed")
}

// Entries returns the registered job ids in ascending order.
func (s *Scheduler) Entries() []cron.EntryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]cron.EntryID, 0, len(s.specs))
	for id := range s.specs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Next reports the next fire time of the job, or false if the job is unknown
// or the scheduler has not computed it yet.
func (s *Scheduler) Next(id cron.EntryID) (time.Time, bool) {
	e := s.c.Entry(id)
	if !e.Valid() || e.Next.IsZero() {
		return time.Time{}, false
	}
	return e.Next, true
}

// Start begins firing jobs in the background. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.c.Start()
	s.log.Info().Int("jobs", len(s.Entries())).Msg("scheduler started")
}

// Stop stops firing jobs and waits for running ones to return, or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
