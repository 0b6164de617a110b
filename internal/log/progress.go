package log

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ProgressIndicator renders a single-line progress bar for long
// generation runs. With Plain set (no TTY), it stays silent and leaves
// reporting to the structured log.
type ProgressIndicator struct {
	mu        sync.Mutex
	name      string
	total     int
	current   int
	startTime time.Time
	plain     bool
}

// NewProgressIndicator creates a progress indicator for total items
func NewProgressIndicator(name string, total int, plain bool) *ProgressIndicator {
	return &ProgressIndicator{
		name:      name,
		total:     total,
		startTime: time.Now(),
		plain:     plain,
	}
}

// Increment advances progress by one step
func (pi *ProgressIndicator) Increment(message string) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	pi.current++
	pi.print(message)
}

// Finish completes the indicator and reports the elapsed time
func (pi *ProgressIndicator) Finish() {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	duration := time.Since(pi.startTime).Round(time.Millisecond)
	if pi.plain {
		log.Info().Str("task", pi.name).Int("items", pi.total).Dur("duration", duration).Msg("Completed")
		return
	}
	fmt.Printf("\r\033[K%s completed (%d items, %v)\n", pi.name, pi.total, duration)
}

// Fail reports an aborted run
func (pi *ProgressIndicator) Fail(reason string) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.plain {
		log.Error().Str("task", pi.name).Str("reason", reason).Msg("Failed")
		return
	}
	fmt.Printf("\r\033[K%s failed: %s\n", pi.name, reason)
}

func (pi *ProgressIndicator) print(message string) {
	if pi.plain || pi.total <= 0 {
		return
	}

	var out strings.Builder
	out.WriteString("\r\033[K")
	out.WriteString(pi.name)

	const barWidth = 20
	filled := barWidth * pi.current / pi.total
	out.WriteString(" [")
	for i := 0; i < barWidth; i++ {
		if i < filled {
			out.WriteString("█")
		} else {
			out.WriteString("░")
		}
	}
	percentage := float64(pi.current) / float64(pi.total) * 100
	out.WriteString(fmt.Sprintf("] %d/%d (%.1f%%)", pi.current, pi.total, percentage))

	if pi.current > 0 && pi.current < pi.total {
		elapsed := time.Since(pi.startTime)
		rate := float64(pi.current) / elapsed.Seconds()
		eta := time.Duration(float64(pi.total-pi.current)/rate) * time.Second
		out.WriteString(fmt.Sprintf(" ETA: %v", eta.Round(time.Second)))
	}

	if message != "" {
		out.WriteString(" - ")
		out.WriteString(message)
	}

	fmt.Print(out.String())
}

// StepLogger tracks named pipeline steps and their durations
type StepLogger struct {
	mu        sync.Mutex
	steps     []string
	current   int
	started   time.Time
	stepStart time.Time
	stepTimes []time.Duration
}

// NewStepLogger creates a step logger for an ordered list of steps
func NewStepLogger(steps []string) *StepLogger {
	now := time.Now()
	return &StepLogger{
		steps:     steps,
		current:   -1,
		started:   now,
		stepStart: now,
		stepTimes: make([]time.Duration, len(steps)),
	}
}

// StartStep begins the named step, closing out the previous one
func (sl *StepLogger) StartStep(name string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	index := -1
	for i, step := range sl.steps {
		if step == name {
			index = i
			break
		}
	}
	if index == -1 {
		log.Warn().Str("step", name).Msg("Unknown pipeline step")
		return
	}

	sl.closeCurrent()
	sl.current = index
	sl.stepStart = time.Now()

	log.Info().
		Str("step", name).
		Int("step_number", index+1).
		Int("total_steps", len(sl.steps)).
		Msg("Starting pipeline step")
}

// Finish closes the last step and logs the timing summary
func (sl *StepLogger) Finish() {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.closeCurrent()
	total := time.Since(sl.started)
	log.Info().Dur("total_duration", total).Msg("Pipeline completed")

	for i, step := range sl.steps {
		if sl.stepTimes[i] == 0 {
			continue
		}
		log.Info().
			Str("step", step).
			Dur("duration", sl.stepTimes[i]).
			Msgf("  %d. %s", i+1, step)
	}
}

// Fail logs the pipeline failure with the step it died in
func (sl *StepLogger) Fail(reason string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	step := "unknown"
	if sl.current >= 0 && sl.current < len(sl.steps) {
		step = sl.steps[sl.current]
	}
	log.Error().
		Str("failed_step", step).
		Int("total_steps", len(sl.steps)).
		Str("reason", reason).
		Msg("Pipeline failed")
}

func (sl *StepLogger) closeCurrent() {
	if sl.current < 0 {
		return
	}
	duration := time.Since(sl.stepStart)
	sl.stepTimes[sl.current] = duration
	log.Info().
		Str("step", sl.steps[sl.current]).
		Dur("duration", duration).
		Msg("Pipeline step completed")
}
