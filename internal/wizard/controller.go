package wizard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Step is one page of the registration wizard.
type Step int

const (
	StepHeaderGreeting Step = iota + 1
	StepCompanyProfile
	StepPersonalInfo
	StepTechTools
	StepCommunication
	StepPayment
)

const (
	FirstStep = StepHeaderGreeting
	LastStep  = StepPayment
)

var stepNames = map[Step]string{
	StepHeaderGreeting: "ヘッダー・挨拶文",
	StepCompanyProfile: "会社プロフィール",
	StepPersonalInfo:   "個人情報",
	StepTechTools:      "テックツール",
	StepCommunication:  "コミュニケーション",
	StepPayment:        "お支払い",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step %d", int(s))
}

// Valid reports whether s is within 1..6.
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

// selectionOnly steps are never pre-saved when jumping ahead.
func (s Step) selectionOnly() bool {
	return s == StepTechTools || s == StepCommunication
}

// StepState is the submit state of one step.
type StepState int

const (
	StateIdle StepState = iota
	StateSubmitting
)

var (
	ErrInvalidStep = errors.New("invalid wizard step")
	ErrSubmitting  = errors.New("step is already submitting")
)

// StepSaver persists one step's payload.
type StepSaver interface {
	SaveStep(ctx context.Context, step Step, payload CardPayload) error
}

// Indicator is told about every navigation.
type Indicator func(current Step, completed []Step)

// Controller owns the wizard navigation state.
type Controller struct {
	saver     StepSaver
	uploader  Uploader
	store     ProgressStore
	indicator Indicator
	log       *logrus.Entry

	mu        sync.Mutex
	current   Step
	completed map[Step]bool
	states    map[Step]StepState
	drafts    map[Step]Form
	snapshot  CardPayload
}

// NewController returns a controller on step 1. uploader may be nil when no
// form has deferred images.
func NewController(saver StepSaver, uploader Uploader, store ProgressStore) *Controller {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Controller{
		saver:     saver,
		uploader:  uploader,
		store:     store,
		log:       logrus.WithField("component", "wizard"),
		current:   FirstStep,
		completed: map[Step]bool{},
		states:    map[Step]StepState{},
		drafts:    map[Step]Form{},
	}
}

// SetIndicator registers the navigation callback.
func (c *Controller) SetIndicator(fn Indicator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indicator = fn
}

// SetDraft records the live, unsaved values of a step's form. Drafts of
// earlier steps are saved when the user jumps ahead.
func (c *Controller) SetDraft(form Form) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drafts[form.Step()] = form
}

// Current is the visible step.
func (c *Controller) Current() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Completed returns the completed steps in ascending order.
func (c *Controller) Completed() []Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completedLocked()
}

// IsCompleted reports whether step was saved.
func (c *Controller) IsCompleted(step Step) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed[step]
}

// State is the submit state of step.
func (c *Controller) State(step Step) StepState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[step]
}

// Snapshot is the merged payload of every saved step.
func (c *Controller) Snapshot() CardPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// GoToStep moves to target. Unless skipSave is set, every earlier incomplete
// step with a draft is saved first; steps 4 and 5 are never pre-saved. A
// failed pre-save leaves the current step unchanged.
func (c *Controller) GoToStep(ctx context.Context, target Step, skipSave bool) error {
	if !target.Valid() {
		return ErrInvalidStep
	}

	if !skipSave {
		for step := FirstStep; step < target; step++ {
			if step.selectionOnly() {
				continue
			}
			c.mu.Lock()
			draft, done := c.drafts[step], c.completed[step]
			c.mu.Unlock()
			if done || draft == nil {
				continue
			}
			if err := c.save(ctx, draft); err != nil {
				return fmt.Errorf("save %s: %w", step, err)
			}
		}
	}

	c.mu.Lock()
	c.current = target
	indicator := c.indicator
	completed := c.completedLocked()
	c.mu.Unlock()

	if indicator != nil {
		indicator(target, completed)
	}
	return nil
}

// Submit saves form and advances to the next step. A second Submit for the
// same step while one is in flight returns ErrSubmitting. On failure the step
// returns to Idle and does not advance.
func (c *Controller) Submit(ctx context.Context, form Form) error {
	step := form.Step()
	if !step.Valid() {
		return ErrInvalidStep
	}

	c.mu.Lock()
	if c.states[step] == StateSubmitting {
		c.mu.Unlock()
		return ErrSubmitting
	}
	c.states[step] = StateSubmitting
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.states[step] = StateIdle
		c.mu.Unlock()
	}()

	if err := c.save(ctx, form); err != nil {
		c.log.WithError(err).WithField("step", int(step)).Warn("step save failed")
		return err
	}

	next := step + 1
	if next > LastStep {
		next = LastStep
	}
	return c.GoToStep(ctx, next, true)
}

// Restore reloads the completed set and snapshot from the store. It does not
// navigate.
func (c *Controller) Restore() error {
	progress, err := c.store.Load()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = map[Step]bool{}
	for _, step := range progress.CompletedSteps {
		if step.Valid() {
			c.completed[step] = true
		}
	}
	c.snapshot = progress.RegisterData
	return nil
}

func (c *Controller) save(ctx context.Context, form Form) error {
	step := form.Step()

	if p, ok := form.(Preparer); ok && c.uploader != nil {
		if err := p.Prepare(ctx, c.uploader); err != nil {
			return err
		}
	}

	payload, err := form.Payload()
	if err != nil {
		return err
	}
	if err := c.saver.SaveStep(ctx, step, payload); err != nil {
		return err
	}

	c.mu.Lock()
	c.completed[step] = true
	c.snapshot.Merge(payload)
	delete(c.drafts, step)
	progress := Progress{CompletedSteps: c.completedLocked(), RegisterData: c.snapshot}
	c.mu.Unlock()

	if err := c.store.Save(progress); err != nil {
		c.log.WithError(err).Warn("persist wizard progress failed")
	}
	c.log.WithField("step", int(step)).Debug("step saved")
	return nil
}

func (c *Controller) completedLocked() []Step {
	out := make([]Step, 0, len(c.completed))
	for step := range c.completed {
		out = append(out, step)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
