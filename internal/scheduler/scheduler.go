// Package scheduler runs named recurring jobs. One Scheduler owns every timer;
// a job is never started again while its previous run is still in flight.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/penwyp/go-pensieve/internal/core/constants"
	"github.com/penwyp/go-pensieve/internal/util"
)

// Action is the work a job performs on every tick
type Action func(ctx context.Context)

// JobInfo describes a scheduled job
type JobInfo struct {
	Name     string
	Interval time.Duration
	Runs     int
	LastRun  time.Time
	Running  bool
}

type job struct {
	name     string
	interval time.Duration
	action   Action
	cancel   context.CancelFunc
	done     chan struct{}

	mu      sync.Mutex
	runs    int
	lastRun time.Time
	running bool
}

// Scheduler owns a set of named recurring jobs
type Scheduler struct {
	ctx  context.Context
	mu   sync.Mutex
	jobs map[string]*job
}

// New creates a scheduler whose jobs stop when ctx is done
func New(ctx context.Context) *Scheduler {
	return &Scheduler{ctx: ctx, jobs: make(map[string]*job)}
}

// Start schedules action every interval under name, replacing a job with the
// same name. The first run happens after one interval.
func (s *Scheduler) Start(name string, interval time.Duration, action Action) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %v", name, interval)
	}
	s.Stop(name)

	ctx, cancel := context.WithCancel(s.ctx)
	j := &job{name: name, interval: interval, action: action, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.jobs[name] = j
	s.mu.Unlock()

	go j.loop(ctx)
	util.LogInfof("Scheduled job %s every %s", name, interval)
	return nil
}

func (j *job) loop(ctx context.Context) {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

// run executes the action inline, so ticks that arrive meanwhile are dropped
func (j *job) run(ctx context.Context) {
	j.mu.Lock()
	j.running = true
	j.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			util.LogErrorf("Job %s panicked: %v", j.name, r)
		}
		j.mu.Lock()
		j.running = false
		j.runs++
		j.lastRun = time.Now()
		j.mu.Unlock()
	}()

	util.LogDebugf("Running job %s", j.name)
	j.action(ctx)
}

// Stop cancels the named job and waits for an in-flight run to finish
func (s *Scheduler) Stop(name string) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	delete(s.jobs, name)
	s.mu.Unlock()
	if !ok {
		return
	}
	j.cancel()
	<-j.done
	util.LogDebugf("Stopped job %s", name)
}

// StopAll cancels every job
func (s *Scheduler) StopAll() {
	for _, info := range s.Jobs() {
		s.Stop(info.Name)
	}
}

// Jobs lists scheduled jobs by name
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		infos = append(infos, JobInfo{
			Name:     j.name,
			Interval: j.interval,
			Runs:     j.runs,
			LastRun:  j.lastRun,
			Running:  j.running,
		})
		j.mu.Unlock()
	}
	sort.Slice(infos, func(a, b int) bool { return infos[a].Name < infos[b].Name })
	return infos
}

// ParseInterval accepts hourly, daily, weekly, monthly or a Go duration
func ParseInterval(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hourly":
		return constants.HourlyInterval, nil
	case "daily", "":
		return constants.DailyInterval, nil
	case "weekly":
		return constants.WeeklyInterval, nil
	case "monthly":
		return constants.MonthlyInterval, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q (use hourly, daily, weekly, monthly or a duration like 30m)", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %q", s)
	}
	return d, nil
}
