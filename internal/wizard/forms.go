package wizard

import (
	"context"
	"errors"
	"strings"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/catalog"
	"github.com/Max0709202/real-estate-ai-card-sub002/internal/utils"
)

// ErrTooFewTechTools is returned when fewer than two tools are selected.
var ErrTooFewTechTools = errors.New("テックツールは2つ以上選択してください")

// Form is the typed input of one wizard step.
type Form interface {
	Step() Step
	Payload() (CardPayload, error)
}

// Preparer is implemented by forms with deferred uploads. Submit calls
// Prepare before Payload.
type Preparer interface {
	Prepare(ctx context.Context, up Uploader) error
}

// GreetingRow is one editable greeting block.
type GreetingRow struct {
	Title   string
	Content string
}

// HeaderGreetingForm is step 1.
type HeaderGreetingForm struct {
	CompanyName string `validate:"max=255"`
	Logo        *ImageField
	Photo       *ImageField
	Greetings   *OrderedList[GreetingRow]
}

// NewHeaderGreetingForm returns an empty step 1 form.
func NewHeaderGreetingForm() *HeaderGreetingForm {
	return &HeaderGreetingForm{
		Logo:      NewImageField(FileTypeLogo),
		Photo:     NewImageField(FileTypePhoto),
		Greetings: NewOrderedList[GreetingRow](),
	}
}

func (f *HeaderGreetingForm) Step() Step { return StepHeaderGreeting }

// Prepare uploads cropped logo and photo selections.
func (f *HeaderGreetingForm) Prepare(ctx context.Context, up Uploader) error {
	for _, field := range []*ImageField{f.Logo, f.Photo} {
		if field == nil {
			continue
		}
		if _, err := field.Flush(ctx, up); err != nil {
			return err
		}
	}
	return nil
}

func (f *HeaderGreetingForm) Payload() (CardPayload, error) {
	if err := utils.ValidateStruct(f); err != nil {
		return CardPayload{}, err
	}

	p := CardPayload{CompanyName: strPtr(strings.TrimSpace(f.CompanyName))}
	if f.Logo != nil && f.Logo.Path() != "" {
		p.CompanyLogo = strPtr(f.Logo.Path())
	}
	if f.Photo != nil && f.Photo.Path() != "" {
		p.ProfilePhoto = strPtr(f.Photo.Path())
	}

	greetings := []Greeting{}
	if f.Greetings != nil {
		for _, row := range f.Greetings.Items() {
			title, content := strings.TrimSpace(row.Title), strings.TrimSpace(row.Content)
			if title == "" || content == "" {
				continue
			}
			greetings = append(greetings, Greeting{Title: title, Content: content, DisplayOrder: len(greetings)})
		}
	}
	p.Greetings = &greetings
	return p, nil
}

// CompanyProfileForm is step 2.
type CompanyProfileForm struct {
	CompanyName                         string `validate:"required,max=255"`
	CompanyPostalCode                   string `validate:"max=16"`
	CompanyAddress                      string `validate:"max=512"`
	CompanyPhone                        string `validate:"max=32"`
	CompanyWebsite                      string `validate:"omitempty,url"`
	RealEstateLicensePrefecture         string `validate:"max=32"`
	RealEstateLicenseRenewalNumber      string `validate:"max=16"`
	RealEstateLicenseRegistrationNumber string `validate:"max=32"`
	BranchDepartment                    string `validate:"max=255"`
	Position                            string `validate:"max=255"`
}

func (f *CompanyProfileForm) Step() Step { return StepCompanyProfile }

func (f *CompanyProfileForm) Payload() (CardPayload, error) {
	if err := utils.ValidateStruct(f); err != nil {
		return CardPayload{}, err
	}
	return CardPayload{
		CompanyName:                         strPtr(strings.TrimSpace(f.CompanyName)),
		CompanyPostalCode:                   strPtr(strings.TrimSpace(f.CompanyPostalCode)),
		CompanyAddress:                      strPtr(strings.TrimSpace(f.CompanyAddress)),
		CompanyPhone:                        strPtr(strings.TrimSpace(f.CompanyPhone)),
		CompanyWebsite:                      strPtr(strings.TrimSpace(f.CompanyWebsite)),
		RealEstateLicensePrefecture:         strPtr(strings.TrimSpace(f.RealEstateLicensePrefecture)),
		RealEstateLicenseRenewalNumber:      strPtr(strings.TrimSpace(f.RealEstateLicenseRenewalNumber)),
		RealEstateLicenseRegistrationNumber: strPtr(strings.TrimSpace(f.RealEstateLicenseRegistrationNumber)),
		BranchDepartment:                    strPtr(strings.TrimSpace(f.BranchDepartment)),
		Position:                            strPtr(strings.TrimSpace(f.Position)),
	}, nil
}

// Step2CompanyName picks the company name shown when step 2 opens: the live
// step 1 value wins over the last persisted one.
func Step2CompanyName(live, persisted string) string {
	if v := strings.TrimSpace(live); v != "" {
		return v
	}
	return persisted
}

// PersonalInfoForm is step 3.
type PersonalInfoForm struct {
	LastName         string `validate:"required,max=100"`
	FirstName        string `validate:"required,max=100"`
	NameRomaji       string `validate:"max=255"`
	MobilePhone      string `validate:"required,max=32"`
	BirthDate        string `validate:"omitempty,datetime=2006-01-02"`
	CurrentResidence string `validate:"max=255"`
	Hometown         string `validate:"max=255"`
	AlmaMater        string `validate:"max=255"`
	Hobbies          string `validate:"max=2000"`
	Qualifications   *QualificationSet
	FreeInput        *FreeInputBuilder
}

func (f *PersonalInfoForm) Step() Step { return StepPersonalInfo }

func (f *PersonalInfoForm) Payload() (CardPayload, error) {
	if err := utils.ValidateStruct(f); err != nil {
		return CardPayload{}, err
	}
	p := CardPayload{
		Name:             strPtr(JoinName(f.LastName, f.FirstName)),
		NameRomaji:       strPtr(strings.TrimSpace(f.NameRomaji)),
		MobilePhone:      strPtr(strings.TrimSpace(f.MobilePhone)),
		BirthDate:        strPtr(f.BirthDate),
		CurrentResidence: strPtr(strings.TrimSpace(f.CurrentResidence)),
		Hometown:         strPtr(strings.TrimSpace(f.Hometown)),
		AlmaMater:        strPtr(strings.TrimSpace(f.AlmaMater)),
		Hobbies:          strPtr(strings.TrimSpace(f.Hobbies)),
		Qualifications:   strPtr(f.Qualifications.String()),
	}
	if f.FreeInput != nil {
		raw, err := f.FreeInput.JSON()
		if err != nil {
			return CardPayload{}, err
		}
		p.FreeInput = raw
	}
	return p, nil
}

// TechToolsForm is step 4. Selected keeps the display order.
type TechToolsForm struct {
	Selected []string
}

func (f *TechToolsForm) Step() Step { return StepTechTools }

func (f *TechToolsForm) Payload() (CardPayload, error) {
	tools := []TechTool{}
	seen := map[string]bool{}
	for _, t := range f.Selected {
		if !catalog.IsTechTool(t) || seen[t] {
			continue
		}
		seen[t] = true
		tools = append(tools, TechTool{ToolType: t, DisplayOrder: len(tools), IsActive: true})
	}
	if len(tools) < catalog.MinActiveTechTools {
		return CardPayload{}, ErrTooFewTechTools
	}
	return CardPayload{TechTools: &tools}, nil
}

// CommunicationEntry is one messaging app or SNS row. Value is an account id
// for id-based apps and a URL otherwise.
type CommunicationEntry struct {
	MethodType string
	Value      string
	Active     bool
}

// CommunicationForm is step 5.
type CommunicationForm struct {
	MessageApps *OrderedList[CommunicationEntry]
	SNS         *OrderedList[CommunicationEntry]
}

// NewCommunicationForm returns an empty step 5 form.
func NewCommunicationForm() *CommunicationForm {
	return &CommunicationForm{
		MessageApps: NewOrderedList[CommunicationEntry](),
		SNS:         NewOrderedList[CommunicationEntry](),
	}
}

func (f *CommunicationForm) Step() Step { return StepCommunication }

// Payload emits message apps first and SNS second, each in list order, with
// one zero-based display_order across both groups.
func (f *CommunicationForm) Payload() (CardPayload, error) {
	methods := []CommunicationMethod{}
	for _, group := range []*OrderedList[CommunicationEntry]{f.MessageApps, f.SNS} {
		if group == nil {
			continue
		}
		for _, e := range group.Items() {
			value := strings.TrimSpace(e.Value)
			if value == "" || !catalog.IsCommunicationMethod(e.MethodType) {
				continue
			}
			m := CommunicationMethod{MethodType: e.MethodType, DisplayOrder: len(methods), IsActive: e.Active}
			if catalog.IsIDBasedMethod(e.MethodType) {
				m.MethodID = value
			} else {
				m.MethodURL = value
			}
			methods = append(methods, m)
		}
	}
	return CardPayload{CommunicationMethods: &methods}, nil
}
