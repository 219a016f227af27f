package ats

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

// DragTimeout bounds how long a drag gesture may stay open without a
// drag-end before the tracker resets itself. Guards against a stuck
// gesture from a lost pointer event.
const DragTimeout = 5 * time.Second

// StageMover maps board drag gestures onto candidate stage mutations.
// States: idle -> dragging(candidateID) -> idle. The only automatic
// recovery is the drag timeout; it is a liveness guard, not an error
// handler.
type StageMover struct {
	candidates *Collection
	logger     *ActivityLogger
	timeout    time.Duration

	mu       sync.Mutex
	activeID string
	timer    *time.Timer
	gen      uint64
}

func NewStageMover(store engine.Store, logger *ActivityLogger) *StageMover {
	return &StageMover{
		candidates: NewCollection(store, CollectionCandidates, true),
		logger:     logger,
		timeout:    DragTimeout,
	}
}

// ActiveID returns the candidate currently being dragged, or "".
func (m *StageMover) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// DragStart marks a candidate as in flight and arms the liveness timer.
func (m *StageMover) DragStart(candidateID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.activeID = candidateID
	m.timer = time.AfterFunc(m.timeout, func() { m.expire(gen) })
}

// expire is the timeout path back to idle. Stop cannot unschedule a timer
// that already fired and is waiting on the lock, so the generation stamp
// keeps a stale expiry from clearing a newer gesture.
func (m *StageMover) expire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	m.activeID = ""
	m.timer = nil
}

// DragCancel returns to idle without mutating anything.
func (m *StageMover) DragCancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// DragEnd completes a gesture. With no drop target it is a plain cancel.
// With a valid target the candidate's stage is written through the
// tenant-enforced update path and one stage_changed activity is appended.
// Gesture state is back to idle before the write resolves, so a failed
// write never rolls the gesture back; open subscriptions re-render the
// board once the write lands.
func (m *StageMover) DragEnd(ctx Context, candidateID, target string) error {
	m.mu.Lock()
	m.reset()
	m.mu.Unlock()

	if target == "" {
		return nil
	}
	// Stale or malformed column ids would otherwise write an unreachable
	// stage onto the candidate.
	if !ValidStage(target) {
		return fmt.Errorf("%w: %q", ErrUnknownStage, target)
	}

	doc, err := m.candidates.Get(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("move candidate %s: %w", candidateID, err)
	}
	oldStage, _ := doc["stage"].(string)
	name, _ := doc["name"].(string)
	surname, _ := doc["surname"].(string)
	fullName := strings.TrimSpace(name + " " + surname)

	if err := m.candidates.Update(ctx, candidateID, engine.Document{"stage": target}); err != nil {
		return fmt.Errorf("move candidate %s: %w", candidateID, err)
	}

	metadata := map[string]any{
		"candidateId":   candidateID,
		"candidateName": fullName,
		"oldStage":      oldStage,
		"newStage":      target,
	}
	return m.logger.Log(Activity{
		UserID:      ctx.UserID,
		CompanyID:   ctx.CompanyID,
		Type:        ActivityStageChanged,
		Description: DescribeActivity(ActivityStageChanged, metadata),
		Metadata:    metadata,
	})
}

// reset must be called with m.mu held.
func (m *StageMover) reset() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
	m.activeID = ""
}
