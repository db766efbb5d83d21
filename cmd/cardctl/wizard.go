package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Max0709202/real-estate-ai-card-sub002/internal/wizard"
	"github.com/Max0709202/real-estate-ai-card-sub002/pkg/cardclient"
)

type greetingSpec struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type headerSpec struct {
	CompanyName string         `json:"company_name"`
	LogoFile    string         `json:"logo_file"`
	PhotoFile   string         `json:"photo_file"`
	Greetings   []greetingSpec `json:"greetings"`
}

type freeImageSpec struct {
	File string `json:"file"`
	Link string `json:"link"`
}

type personalSpec struct {
	LastName         string          `json:"last_name"`
	FirstName        string          `json:"first_name"`
	NameRomaji       string          `json:"name_romaji"`
	MobilePhone      string          `json:"mobile_phone"`
	BirthDate        string          `json:"birth_date"`
	CurrentResidence string          `json:"current_residence"`
	Hometown         string          `json:"hometown"`
	AlmaMater        string          `json:"alma_mater"`
	Hobbies          string          `json:"hobbies"`
	Qualifications   []string        `json:"qualifications"`
	FreeTexts        []string        `json:"free_texts"`
	FreeImages       []freeImageSpec `json:"free_images"`
}

type communicationSpec struct {
	MethodType string `json:"method_type"`
	Value      string `json:"value"`
	Active     *bool  `json:"active"`
}

type companySpec struct {
	CompanyName                         string `json:"company_name"`
	CompanyPostalCode                   string `json:"company_postal_code"`
	CompanyAddress                      string `json:"company_address"`
	CompanyPhone                        string `json:"company_phone"`
	CompanyWebsite                      string `json:"company_website"`
	RealEstateLicensePrefecture         string `json:"real_estate_license_prefecture"`
	RealEstateLicenseRenewalNumber      string `json:"real_estate_license_renewal_number"`
	RealEstateLicenseRegistrationNumber string `json:"real_estate_license_registration_number"`
	BranchDepartment                    string `json:"branch_department"`
	Position                            string `json:"position"`
}

// formFile is the -forms document: one section per wizard step.
type formFile struct {
	Header      headerSpec          `json:"header"`
	Company     companySpec         `json:"company"`
	Personal    personalSpec        `json:"personal"`
	TechTools   []string            `json:"tech_tools"`
	MessageApps []communicationSpec `json:"message_apps"`
	SNS         []communicationSpec `json:"sns"`
}

func loadFormFile(path string) (*formFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f formFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &f, nil
}

// cachedCard is the subset of the stored card the forms are populated from.
type cachedCard struct {
	CompanyName  *string         `json:"company_name"`
	CompanyLogo  *string         `json:"company_logo"`
	ProfilePhoto *string         `json:"profile_photo"`
	FreeInput    json.RawMessage `json:"free_input"`
}

type clientSaver struct {
	client *cardclient.Client
}

func (s clientSaver) SaveStep(ctx context.Context, _ wizard.Step, payload wizard.CardPayload) error {
	_, err := s.client.UpdateCard(ctx, payload)
	return err
}

type clientUploader struct {
	client *cardclient.Client
}

func (u clientUploader) Upload(ctx context.Context, fileType, filename string, data []byte) (string, error) {
	res, err := u.client.Upload(ctx, fileType, filename, data)
	if err != nil {
		return "", err
	}
	return res.FilePath, nil
}

func runWizard(ctx context.Context, client *cardclient.Client, doc *formFile, statePath string) (json.RawMessage, error) {
	raw, err := client.GetCard(ctx)
	if err != nil {
		return nil, err
	}
	var cached cachedCard
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("decode card: %w", err)
	}

	uploader := clientUploader{client: client}
	ctrl := wizard.NewController(clientSaver{client: client}, uploader, wizard.NewFileStore(statePath))
	if err := ctrl.Restore(); err != nil {
		return nil, err
	}
	ctrl.SetIndicator(func(current wizard.Step, completed []wizard.Step) {
		fmt.Fprintf(os.Stderr, "step %d %s (completed %v)\n", int(current), current, completed)
	})

	header, err := buildHeader(doc.Header, cached)
	if err != nil {
		return nil, err
	}
	company := buildCompany(doc.Company, header.CompanyName, deref(cached.CompanyName))
	personal, err := buildPersonal(ctx, doc.Personal, cached, uploader)
	if err != nil {
		return nil, err
	}

	forms := []wizard.Form{
		header,
		company,
		personal,
		&wizard.TechToolsForm{Selected: doc.TechTools},
		buildCommunication(doc.MessageApps, doc.SNS),
	}
	for _, form := range forms {
		if ctrl.IsCompleted(form.Step()) {
			continue
		}
		if err := ctrl.GoToStep(ctx, form.Step(), true); err != nil {
			return nil, err
		}
		if err := ctrl.Submit(ctx, form); err != nil {
			return nil, fmt.Errorf("%s: %w", form.Step(), err)
		}
	}
	if err := ctrl.GoToStep(ctx, wizard.StepPayment, true); err != nil {
		return nil, err
	}

	return client.GetCard(ctx)
}

func buildHeader(doc headerSpec, cached cachedCard) (*wizard.HeaderGreetingForm, error) {
	form := wizard.NewHeaderGreetingForm()
	form.CompanyName = doc.CompanyName
	form.Logo.SetCached(deref(cached.CompanyLogo))
	form.Photo.SetCached(deref(cached.ProfilePhoto))

	for _, f := range []struct {
		field *wizard.ImageField
		path  string
	}{{form.Logo, doc.LogoFile}, {form.Photo, doc.PhotoFile}} {
		if f.path == "" {
			continue
		}
		if err := selectSquare(f.field, f.path); err != nil {
			return nil, err
		}
	}

	for _, g := range doc.Greetings {
		form.Greetings.Append(wizard.GreetingRow{Title: g.Title, Content: g.Content})
	}
	return form, nil
}

func buildCompany(doc companySpec, liveName, persistedName string) *wizard.CompanyProfileForm {
	name := doc.CompanyName
	if name == "" {
		name = wizard.Step2CompanyName(liveName, persistedName)
	}
	return &wizard.CompanyProfileForm{
		CompanyName:                         name,
		CompanyPostalCode:                   doc.CompanyPostalCode,
		CompanyAddress:                      doc.CompanyAddress,
		CompanyPhone:                        doc.CompanyPhone,
		CompanyWebsite:                      doc.CompanyWebsite,
		RealEstateLicensePrefecture:         doc.RealEstateLicensePrefecture,
		RealEstateLicenseRenewalNumber:      doc.RealEstateLicenseRenewalNumber,
		RealEstateLicenseRegistrationNumber: doc.RealEstateLicenseRegistrationNumber,
		BranchDepartment:                    doc.BranchDepartment,
		Position:                            doc.Position,
	}
}

func buildPersonal(ctx context.Context, doc personalSpec, cached cachedCard, up wizard.Uploader) (*wizard.PersonalInfoForm, error) {
	quals := wizard.ParseQualifications("")
	for _, q := range doc.Qualifications {
		quals.Check(q)
	}

	free := wizard.ParseFreeInput(cached.FreeInput)
	for _, text := range doc.FreeTexts {
		free.AddText(text)
	}
	for _, img := range doc.FreeImages {
		path := ""
		if img.File != "" {
			data, err := os.ReadFile(img.File)
			if err != nil {
				return nil, err
			}
			path, err = wizard.NewImageField(wizard.FileTypeFree).UploadNow(ctx, up, filepath.Base(img.File), data)
			if err != nil {
				return nil, err
			}
		}
		free.AddImage(path, img.Link)
	}

	return &wizard.PersonalInfoForm{
		LastName:         doc.LastName,
		FirstName:        doc.FirstName,
		NameRomaji:       doc.NameRomaji,
		MobilePhone:      doc.MobilePhone,
		BirthDate:        doc.BirthDate,
		CurrentResidence: doc.CurrentResidence,
		Hometown:         doc.Hometown,
		AlmaMater:        doc.AlmaMater,
		Hobbies:          doc.Hobbies,
		Qualifications:   quals,
		FreeInput:        free,
	}, nil
}

func buildCommunication(apps, sns []communicationSpec) *wizard.CommunicationForm {
	form := wizard.NewCommunicationForm()
	for _, group := range []struct {
		list  *wizard.OrderedList[wizard.CommunicationEntry]
		specs []communicationSpec
	}{{form.MessageApps, apps}, {form.SNS, sns}} {
		for _, s := range group.specs {
			active := s.Active == nil || *s.Active
			group.list.Append(wizard.CommunicationEntry{MethodType: s.MethodType, Value: s.Value, Active: active})
		}
	}
	return form
}

// selectSquare crops the centered square of an image file into field.
func selectSquare(field *wizard.ImageField, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	side := cfg.Width
	if cfg.Height < side {
		side = cfg.Height
	}
	rect := wizard.CropRect{X: (cfg.Width - side) / 2, Y: (cfg.Height - side) / 2, Width: side, Height: side}

	mtype := mimetype.Detect(data).String()
	dataURL := "data:" + mtype + ";base64," + base64.StdEncoding.EncodeToString(data)
	return field.SelectCropped(dataURL, filepath.Base(path), mtype, rect)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
