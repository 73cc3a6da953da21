package chrono

import (
	"context"
	"fmt"
	"packwatch/internal/components/telemetry"
	"sync"

	"github.com/robfig/cron/v3"
)

// CronAPI is the interface that anything depending on things to happen on a cron job should use.
type CronAPI interface {
	Cron(spec string, callback func()) error
}

// StandardCron is the standard implementation of CronAPI using `github.com/robfig/cron/v3`
type StandardCron struct {
	cron *cron.Cron
	// runs started by CronNow outside of the scheduler
	immediate *sync.WaitGroup
}

// NewStandardCron creates and starts a cron scheduler. Jobs still running
// when a tick fires are not started again (SkipIfStillRunning), so a slow
// refresh pass never overlaps with the next one.
func NewStandardCron(tel telemetry.API) StandardCron {
	logger := cronLogger{tel: telemetry.NewScopedAPI("cron", tel)}
	cronner := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	)
	cronner.Start()

	return StandardCron{
		cron:      cronner,
		immediate: &sync.WaitGroup{},
	}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

// CronNow schedules callback like Cron and also starts one run right away.
// The immediate run goes through the same job chain, so a tick that fires
// while it is still going is skipped, and Stop waits for it.
func (s StandardCron) CronNow(spec string, callback func()) error {
	id, err := s.cron.AddFunc(spec, callback)
	if err != nil {
		return err
	}
	job := s.cron.Entry(id).WrappedJob
	if job == nil {
		return fmt.Errorf("cron entry %d not found", id)
	}

	s.immediate.Add(1)
	go func() {
		defer s.immediate.Done()
		job.Run()
	}()
	return nil
}

// Stop stops scheduling new jobs, the returned context is done once running
// jobs have completed.
func (s StandardCron) Stop() context.Context {
	stopped := s.cron.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stopped.Done()
		s.immediate.Wait()
		cancel()
	}()
	return ctx
}

type cronLogger struct {
	tel telemetry.API
}

func (l cronLogger) formatParams(keysAndValues []any) []any {
	params := []any{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		params = append(params, fmt.Sprintf("%v: %v", keysAndValues[i], keysAndValues[i+1]))
	}
	return params
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(msg, l.formatParams(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken(
		"job",
		fmt.Errorf("%s: %w", msg, err),
		l.formatParams(keysAndValues),
	)
}
