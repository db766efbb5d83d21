package wizard

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savedStep struct {
	step    Step
	payload CardPayload
}

type fakeSaver struct {
	mu    sync.Mutex
	saved []savedStep
	err   error
	block chan struct{}
	began chan struct{}
}

func (f *fakeSaver) SaveStep(ctx context.Context, step Step, payload CardPayload) error {
	if f.began != nil {
		f.began <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, savedStep{step, payload})
	return nil
}

func (f *fakeSaver) steps() []Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Step{}
	for _, s := range f.saved {
		out = append(out, s.step)
	}
	return out
}

func companyForm(name string) *CompanyProfileForm {
	return &CompanyProfileForm{CompanyName: name}
}

func TestSubmitSavesAndAdvances(t *testing.T) {
	saver := &fakeSaver{}
	store := NewMemoryStore()
	c := NewController(saver, nil, store)

	var seen []Step
	c.SetIndicator(func(current Step, _ []Step) { seen = append(seen, current) })

	form := NewHeaderGreetingForm()
	form.CompanyName = "ABC不動産"
	form.Greetings.Append(GreetingRow{Title: "こんにちは", Content: "よろしく"})

	require.NoError(t, c.Submit(context.Background(), form))
	assert.Equal(t, StepCompanyProfile, c.Current())
	assert.Equal(t, []Step{StepHeaderGreeting}, c.Completed())
	assert.Equal(t, []Step{StepCompanyProfile}, seen)
	assert.Equal(t, StateIdle, c.State(StepHeaderGreeting))

	require.Len(t, saver.saved, 1)
	greetings := *saver.saved[0].payload.Greetings
	assert.Equal(t, []Greeting{{Title: "こんにちは", Content: "よろしく", DisplayOrder: 0}}, greetings)

	progress, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []Step{StepHeaderGreeting}, progress.CompletedSteps)
	require.NotNil(t, progress.RegisterData.CompanyName)
	assert.Equal(t, "ABC不動産", *progress.RegisterData.CompanyName)
}

func TestSubmitFailureDoesNotAdvance(t *testing.T) {
	saver := &fakeSaver{err: errors.New("サーバーエラーが発生しました")}
	c := NewController(saver, nil, nil)

	err := c.Submit(context.Background(), companyForm("ABC不動産"))
	require.Error(t, err)
	assert.Equal(t, StepHeaderGreeting, c.Current())
	assert.Empty(t, c.Completed())
	assert.Equal(t, StateIdle, c.State(StepCompanyProfile))
}

func TestSubmitValidationFailure(t *testing.T) {
	saver := &fakeSaver{}
	c := NewController(saver, nil, nil)

	err := c.Submit(context.Background(), &TechToolsForm{Selected: []string{"mdb"}})
	assert.ErrorIs(t, err, ErrTooFewTechTools)
	assert.Empty(t, saver.steps())
}

func TestSubmitRejectsDoubleSubmit(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{}), began: make(chan struct{}, 1)}
	c := NewController(saver, nil, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Submit(ctx, companyForm("ABC不動産")) }()
	<-saver.began

	assert.Equal(t, StateSubmitting, c.State(StepCompanyProfile))
	assert.ErrorIs(t, c.Submit(ctx, companyForm("ABC不動産")), ErrSubmitting)

	close(saver.block)
	require.NoError(t, <-done)
	assert.Equal(t, []Step{StepCompanyProfile}, saver.steps())
}

func TestGoToStepPreSavesEarlierIncompleteSteps(t *testing.T) {
	saver := &fakeSaver{}
	c := NewController(saver, nil, nil)
	ctx := context.Background()

	c.SetDraft(companyForm("ABC不動産"))
	c.SetDraft(&TechToolsForm{Selected: []string{"mdb", "rlp"}})
	c.SetDraft(NewCommunicationForm())
	c.SetDraft(&PersonalInfoForm{LastName: "山田", FirstName: "太郎", MobilePhone: "090-0000-0000"})

	require.NoError(t, c.GoToStep(ctx, StepPayment, false))
	assert.Equal(t, StepPayment, c.Current())
	assert.Equal(t, []Step{StepCompanyProfile, StepPersonalInfo}, saver.steps())

	// completed steps are not saved again
	c.SetDraft(companyForm("XYZ"))
	require.NoError(t, c.GoToStep(ctx, StepPayment, false))
	assert.Len(t, saver.steps(), 2)
}

func TestGoToStepSkipSave(t *testing.T) {
	saver := &fakeSaver{}
	c := NewController(saver, nil, nil)
	c.SetDraft(companyForm("ABC不動産"))

	require.NoError(t, c.GoToStep(context.Background(), StepPersonalInfo, true))
	assert.Empty(t, saver.steps())
	assert.ErrorIs(t, c.GoToStep(context.Background(), Step(7), true), ErrInvalidStep)
	assert.ErrorIs(t, c.GoToStep(context.Background(), Step(0), true), ErrInvalidStep)
}

func TestGoToStepStopsOnPreSaveFailure(t *testing.T) {
	saver := &fakeSaver{}
	c := NewController(saver, nil, nil)
	c.SetDraft(companyForm(""))

	err := c.GoToStep(context.Background(), StepPersonalInfo, false)
	require.Error(t, err)
	assert.Equal(t, StepHeaderGreeting, c.Current())
}

func TestRestoreDoesNotNavigate(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "progress.json"))
	first := NewController(&fakeSaver{}, nil, store)
	ctx := context.Background()
	require.NoError(t, first.Submit(ctx, companyForm("ABC不動産")))

	second := NewController(&fakeSaver{}, nil, store)
	require.NoError(t, second.Restore())
	assert.Equal(t, StepHeaderGreeting, second.Current())
	assert.True(t, second.IsCompleted(StepCompanyProfile))
	snapshot := second.Snapshot()
	require.NotNil(t, snapshot.CompanyName)
	assert.Equal(t, "ABC不動産", *snapshot.CompanyName)
}

func TestFileStoreMissingFile(t *testing.T) {
	p, err := NewFileStore(filepath.Join(t.TempDir(), "none.json")).Load()
	require.NoError(t, err)
	assert.Empty(t, p.CompletedSteps)
}

func TestStep2CompanyName(t *testing.T) {
	assert.Equal(t, "編集中", Step2CompanyName(" 編集中 ", "保存済み"))
	assert.Equal(t, "保存済み", Step2CompanyName("", "保存済み"))
}
