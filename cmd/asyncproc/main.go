// Package main implements asyncproc, a line-oriented host for asynchronous processors.
//
// Each stdin line is a JSON array holding a command name followed by its arguments:
//
//	["new"]
//	["pushTask", 1, 2.5, "a"]
//	["popResult", 1]
//	["schedule", 1, "@every 2s", "tick"]
//
// Each reply is one JSON object on stdout: {"ok":true,"out":[...]} or {"ok":false,"error":"..."}.
//
// Usage:
//
//	asyncproc -kind echo -delay 100ms -metrics-addr :8080
//
// Kinds: echo, params, persistent, csv, sqlite, redis.
// APP_ENV=production switches logs to JSON; LOG_LEVEL sets the level.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/ygrebnov/asyncproc"
	"github.com/ygrebnov/asyncproc/internal/logger"
	"github.com/ygrebnov/asyncproc/metrics"
	"github.com/ygrebnov/asyncproc/schedule"
	"github.com/ygrebnov/asyncproc/session"
	"github.com/ygrebnov/asyncproc/steps"
)

const (
	CmdSchedule   = "schedule"
	CmdUnschedule = "unschedule"
)

type settings struct {
	kind        string
	delay       time.Duration
	start       bool
	queueCap    int
	sqliteDSN   string
	redisAddr   string
	metricsAddr string
}

func parseFlags(args []string) (settings, error) {
	var s settings
	fs := flag.NewFlagSet("asyncproc", flag.ContinueOnError)
	fs.StringVar(&s.kind, "kind", "echo", "processor kind: echo, params, persistent, csv, sqlite, redis")
	fs.DurationVar(&s.delay, "delay", 0, "per-task delay of the echo step")
	fs.BoolVar(&s.start, "start", false, "start processing loops on creation")
	fs.IntVar(&s.queueCap, "queue-capacity", 0, "task queue base capacity")
	fs.StringVar(&s.sqliteDSN, "sqlite-dsn", "file:asyncproc.db", "SQLite database for the sqlite kind")
	fs.StringVar(&s.redisAddr, "redis-addr", "127.0.0.1:6379", "Redis address for the redis kind")
	fs.StringVar(&s.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address when set")
	if err := fs.Parse(args); err != nil {
		return settings{}, err
	}
	return s, nil
}

func main() {
	log := logger.FromEnv()

	s, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, s, os.Stdin, os.Stdout, log); err != nil {
		log.Error().Err(err).Msg("asyncproc failed")
		os.Exit(1)
	}
}

// run serves commands from in until EOF or ctx is done, then releases every object.
func run(ctx context.Context, s settings, in io.Reader, out io.Writer, log zerolog.Logger) error {
	opts := []asyncproc.Option{asyncproc.WithLogger(log)}
	if s.start {
		opts = append(opts, asyncproc.WithStartImmediately())
	}
	if s.queueCap > 0 {
		opts = append(opts, asyncproc.WithQueueCapacity(s.queueCap))
	}

	if s.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, asyncproc.WithMetrics(metrics.NewPrometheusProvider(reg)))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: s.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info().Str("addr", s.metricsAddr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sched := schedule.New(schedule.WithLogger(log))
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("scheduler stop timed out")
		}
	}()

	h, err := newHost(s, opts, sched, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.close(); err != nil {
			log.Warn().Err(err).Msg("release failed")
		}
	}()

	log.Info().Str("kind", s.kind).Msg("asyncproc ready")
	return serve(ctx, h, in, out, log)
}

type reply struct {
	OK    bool              `json:"ok"`
	Out   []asyncproc.Value `json:"out,omitempty"`
	Error string            `json:"error,omitempty"`
}

func serve(ctx context.Context, h *host, in io.Reader, out io.Writer, log zerolog.Logger) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			if len(line) == 0 {
				continue
			}
			if err := enc.Encode(h.handle(ctx, line)); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
		}
	}
}

// host binds the command dispatcher of one processor kind to its resources.
type host struct {
	call    func(ctx context.Context, name string, args ...asyncproc.Value) ([]asyncproc.Value, error)
	release func() error
	log     zerolog.Logger
}

func (h *host) handle(ctx context.Context, line []byte) reply {
	var cmd []asyncproc.Value
	if err := json.Unmarshal(line, &cmd); err != nil {
		return reply{Error: "malformed command: " + err.Error()}
	}
	if len(cmd) == 0 {
		return reply{Error: "empty command"}
	}
	name, ok := cmd[0].(string)
	if !ok {
		return reply{Error: "command name must be a string"}
	}

	out, err := h.call(ctx, name, cmd[1:]...)
	if err != nil {
		h.log.Debug().Err(err).Str("command", name).Msg("command failed")
		return reply{Error: err.Error()}
	}
	return reply{OK: true, Out: out}
}

func (h *host) close() error { return h.release() }

func newHost(s settings, opts []asyncproc.Option, sched *schedule.Scheduler, log zerolog.Logger) (*host, error) {
	// processors outlive the command that created them
	base := context.Background()

	switch s.kind {
	case "echo":
		return build(
			func(_ context.Context, _ []asyncproc.Value) (*asyncproc.Processor, error) {
				return asyncproc.New(base, steps.Echo(s.delay), opts...)
			},
			closeProcessor,
			func(m *session.Manager[*asyncproc.Processor]) error {
				return session.RegisterAsyncCommands(m, identity)
			},
			func(p *asyncproc.Processor) schedule.Pusher { return p },
			sched, log, nil)

	case "params":
		return build(
			func(_ context.Context, _ []asyncproc.Value) (*steps.ParamProcessor, error) {
				return steps.NewParamProcessor(base, echoWithParams(s.delay), opts...)
			},
			func(pp *steps.ParamProcessor) error { return closeProcessor(pp.Processor) },
			func(m *session.Manager[*steps.ParamProcessor]) error {
				return steps.RegisterParamCommands(m, identity)
			},
			func(pp *steps.ParamProcessor) schedule.Pusher { return pp },
			sched, log, nil)

	case "persistent":
		return build(
			func(_ context.Context, _ []asyncproc.Value) (*steps.PersistentArgsProcessor, error) {
				return steps.NewPersistentArgsProcessor(base, steps.Echo(s.delay), opts...)
			},
			func(pa *steps.PersistentArgsProcessor) error { return closeProcessor(pa.Processor) },
			func(m *session.Manager[*steps.PersistentArgsProcessor]) error {
				return steps.RegisterPersistentArgsCommands(m, identity)
			},
			func(pa *steps.PersistentArgsProcessor) schedule.Pusher { return pa },
			sched, log, nil)

	case "csv":
		return build(
			func(_ context.Context, _ []asyncproc.Value) (*steps.CSVWriter, error) {
				return steps.NewCSVWriter(base, opts...)
			},
			(*steps.CSVWriter).Close,
			func(m *session.Manager[*steps.CSVWriter]) error {
				return steps.RegisterCSVCommands(m, identity)
			},
			func(w *steps.CSVWriter) schedule.Pusher { return w },
			sched, log, nil)

	case "sqlite":
		db, err := sql.Open("sqlite", s.sqliteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		return build(
			func(ctx context.Context, args []asyncproc.Value) (*asyncproc.Processor, error) {
				table, err := optionalString(args, "tasks")
				if err != nil {
					return nil, err
				}
				w, err := steps.NewSQLiteWriter(ctx, db, table)
				if err != nil {
					return nil, err
				}
				return asyncproc.New(base, w.Step, opts...)
			},
			closeProcessor,
			func(m *session.Manager[*asyncproc.Processor]) error {
				return session.RegisterAsyncCommands(m, identity)
			},
			func(p *asyncproc.Processor) schedule.Pusher { return p },
			sched, log, db.Close)

	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: s.redisAddr})
		return build(
			func(_ context.Context, args []asyncproc.Value) (*asyncproc.Processor, error) {
				key, err := optionalString(args, "asyncproc:results")
				if err != nil {
					return nil, err
				}
				return asyncproc.New(base, steps.NewRedisWriter(rdb, key).Step, opts...)
			},
			closeProcessor,
			func(m *session.Manager[*asyncproc.Processor]) error {
				return session.RegisterAsyncCommands(m, identity)
			},
			func(p *asyncproc.Processor) schedule.Pusher { return p },
			sched, log, rdb.Close)
	}
	return nil, fmt.Errorf("unknown processor kind %q", s.kind)
}

// build wires a Manager for one object type, adds the schedule commands and
// returns a host releasing the objects and then closer.
// Releasing an object removes its scheduled jobs first.
func build[O comparable](
	factory session.Factory[O],
	release func(O) error,
	register func(*session.Manager[O]) error,
	pusher func(O) schedule.Pusher,
	sched *schedule.Scheduler,
	log zerolog.Logger,
	closer func() error,
) (*host, error) {
	j := newJobs[O](sched)
	m := session.NewManager(factory, func(o O) error {
		j.removeAll(o)
		if release == nil {
			return nil
		}
		return release(o)
	}, session.WithLogger(log))
	if err := register(m); err != nil {
		return nil, err
	}
	if err := registerScheduleCommands(m, j, pusher); err != nil {
		return nil, err
	}
	return &host{
		call: m.Call,
		release: func() error {
			err := m.Objects().Clear()
			if closer != nil {
				err = errors.Join(err, closer())
			}
			return err
		},
		log: log,
	}, nil
}

// jobs tracks the scheduled entries owned by each object.
type jobs[O comparable] struct {
	sched *schedule.Scheduler

	mu    sync.Mutex
	owned map[O]map[cron.EntryID]struct{}
}

func newJobs[O comparable](sched *schedule.Scheduler) *jobs[O] {
	return &jobs[O]{sched: sched, owned: make(map[O]map[cron.EntryID]struct{})}
}

func (j *jobs[O]) add(o O, spec string, p schedule.Pusher, values schedule.ValuesFunc) (cron.EntryID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	id, err := j.sched.Add(spec, p, values)
	if err != nil {
		return 0, err
	}
	if j.owned[o] == nil {
		j.owned[o] = make(map[cron.EntryID]struct{})
	}
	j.owned[o][id] = struct{}{}
	return id, nil
}

// remove unregisters id if o owns it and reports whether it did.
func (j *jobs[O]) remove(o O, id cron.EntryID) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.owned[o][id]; !ok {
		return false
	}
	j.sched.Remove(id)
	delete(j.owned[o], id)
	if len(j.owned[o]) == 0 {
		delete(j.owned, o)
	}
	return true
}

func (j *jobs[O]) removeAll(o O) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for id := range j.owned[o] {
		j.sched.Remove(id)
	}
	delete(j.owned, o)
}

// registerScheduleCommands adds schedule(handle, spec, values...) -> entry id and unschedule(handle, id).
// An object can only unschedule its own entries.
func registerScheduleCommands[O comparable](m *session.Manager[O], j *jobs[O], pusher func(O) schedule.Pusher) error {
	err := m.AddCommand(CmdSchedule, session.AtLeast(1),
		func(_ context.Context, o O, args []asyncproc.Value) ([]asyncproc.Value, error) {
			spec, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("%w: schedule spec must be a string", session.ErrInvalidArgument)
			}
			values := append([]asyncproc.Value(nil), args[1:]...)
			id, err := j.add(o, spec, pusher(o), func(time.Time) []asyncproc.Value { return values })
			if err != nil {
				return nil, err
			}
			return []asyncproc.Value{int(id)}, nil
		})
	if err != nil {
		return err
	}
	return m.AddCommand(CmdUnschedule, session.Exactly(1),
		func(_ context.Context, o O, args []asyncproc.Value) ([]asyncproc.Value, error) {
			id, err := entryID(args[0])
			if err != nil {
				return nil, err
			}
			if !j.remove(o, id) {
				return nil, fmt.Errorf("%w: no schedule entry %d for this object", session.ErrInvalidArgument, id)
			}
			return nil, nil
		})
}

func echoWithParams(delay time.Duration) steps.ParamStep {
	echo := steps.Echo(delay)
	return func(ctx context.Context, t asyncproc.Task, params steps.Params) (asyncproc.Result, error) {
		out, err := echo(ctx, t)
		if err != nil || len(params) == 0 {
			return out, err
		}
		return append(out, map[string]asyncproc.Value(params)), nil
	}
}

func closeProcessor(p *asyncproc.Processor) error {
	p.Close()
	return nil
}

func identity[T any](v T) T { return v }

func optionalString(args []asyncproc.Value, def string) (string, error) {
	switch len(args) {
	case 0:
		return def, nil
	case 1:
		s, ok := args[0].(string)
		if !ok {
			return "", fmt.Errorf("%w: expected a string, got %T", session.ErrInvalidArgument, args[0])
		}
		return s, nil
	}
	return "", fmt.Errorf("%w: want at most 1 argument, got %d", session.ErrArgCount, len(args))
}

func entryID(v asyncproc.Value) (cron.EntryID, error) {
	switch n := v.(type) {
	case int:
		return cron.EntryID(n), nil
	case float64:
		if n == float64(int(n)) {
			return cron.EntryID(n), nil
		}
	}
	return 0, fmt.Errorf("%w: entry id must be an integer, got %v", session.ErrInvalidArgument, v)
}
