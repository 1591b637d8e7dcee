package client

import (
	"context"
	"time"

	"imgtutu/internal/model"
)

// State poller state machine states
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

const (
	basePollInterval    = 2 * time.Second
	maxPollInterval     = 30 * time.Second
	tightenAfter        = 2 * time.Minute
	tightenedInterval   = 5 * time.Second
	maxTransientRetries = 3
	transientRetryDelay = 2 * time.Second
)

// Update is one observation pushed to the caller during a watch.
type Update struct {
	State    State
	Status   model.TaskStatus
	Progress int
	Stage    string
	ImageURL string
	Err      error
}

// Poller watches one task until it reaches a terminal state.
type Poller struct {
	client *Client
	state  State

	// now is swapped in tests
	now func() time.Time
}

// NewPoller creates a poller.
func NewPoller(client *Client) *Poller {
	return &Poller{client: client, state: StateIdle, now: time.Now}
}

// State returns the current poller state.
func (p *Poller) State() State {
	return p.state
}

// Watch submits the request and polls until terminal. Each observation is
// sent on the returned channel; the channel closes when the watch ends.
// Cancelling ctx stops polling and resets the poller to idle.
func (p *Poller) Watch(ctx context.Context, req *model.GenerateRequest) <-chan Update {
	updates := make(chan Update, 8)
	go func() {
		defer close(updates)
		p.run(ctx, req, updates)
	}()
	return updates
}

func (p *Poller) run(ctx context.Context, req *model.GenerateRequest, updates chan<- Update) {
	p.state = StateLoading
	submitted, err := p.client.Generate(ctx, req)
	if err != nil {
		p.state = StateError
		updates <- Update{State: StateError, Err: err}
		return
	}

	start := p.now()
	transientFailures := 0
	lastProgress := 0

	for {
		status, err := p.client.TaskStatus(ctx, submitted.TaskID)
		if err != nil {
			if ctx.Err() != nil {
				p.state = StateIdle
				return
			}
			// A single failed poll is not a task failure; give the
			// network a few chances before giving up.
			transientFailures++
			if transientFailures > maxTransientRetries {
				p.state = StateError
				updates <- Update{State: StateError, Err: err}
				return
			}
			if !sleepCtx(ctx, transientRetryDelay) {
				p.state = StateIdle
				return
			}
			continue
		}
		transientFailures = 0

		elapsed := p.now().Sub(start)
		switch status.Status {
		case model.TaskStatusCompleted:
			p.state = StateSuccess
			u := Update{State: StateSuccess, Status: status.Status, Progress: 100, Stage: "done"}
			if status.ImageURL != nil {
				u.ImageURL = *status.ImageURL
			}
			updates <- u
			return
		case model.TaskStatusFailed, model.TaskStatusCancelled:
			p.state = StateError
			u := Update{State: StateError, Status: status.Status}
			if status.Error != nil {
				u.Err = &APIError{StatusCode: 0, Message: *status.Error}
			}
			updates <- u
			return
		default:
			progress, stage := EstimateProgress(elapsed)
			// Server-reported progress, when present, is authoritative;
			// the local clamp only keeps the displayed value from moving
			// backwards between polls.
			if status.Progress != nil {
				progress = *status.Progress
			}
			if progress < lastProgress {
				progress = lastProgress
			}
			lastProgress = progress
			if status.Stage != "" {
				stage = status.Stage
			}
			updates <- Update{State: StateLoading, Status: status.Status, Progress: progress, Stage: stage}
		}

		if !sleepCtx(ctx, NextInterval(elapsed)) {
			p.state = StateIdle
			return
		}
	}
}

// CancelTask cancels the watched task and resets the poller.
func (p *Poller) CancelTask(ctx context.Context, taskID string) error {
	_, err := p.client.Cancel(ctx, taskID)
	p.state = StateIdle
	return err
}

// NextInterval returns the poll delay for a task that has been pending for
// elapsed time. The interval grows from seconds to a capped maximum, then
// tightens again once the task has run long enough that completion could
// land at any moment.
func NextInterval(elapsed time.Duration) time.Duration {
	if elapsed >= tightenAfter {
		return tightenedInterval
	}
	// Grow by 50% per elapsed 10s bucket.
	interval := basePollInterval
	for step := time.Duration(0); step+10*time.Second <= elapsed; step += 10 * time.Second {
		interval = interval * 3 / 2
		if interval >= maxPollInterval {
			return maxPollInterval
		}
	}
	return interval
}

// EstimateProgress maps elapsed wall-clock time to a displayed progress
// percentage and stage label. Non-decreasing in elapsed time, capped below
// 100 so only a real completion shows done.
func EstimateProgress(elapsed time.Duration) (int, string) {
	secs := elapsed.Seconds()
	switch {
	case secs < 10:
		return int(secs * 1.5), "queued" // 0..15
	case secs < 60:
		return 15 + int((secs-10)*1.1), "generating" // 15..70
	case secs < 180:
		return 70 + int((secs-60)/6), "refining" // 70..90
	default:
		p := 90 + int((secs-180)/60)
		if p > 95 {
			p = 95
		}
		return p, "finishing"
	}
}

// sleepCtx sleeps, returning false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
