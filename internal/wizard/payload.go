// Package wizard drives the six-step card registration flow from the client
// side: typed step forms, the step controller with its progress store, ordered
// child lists and deferred image uploads.
package wizard

import "encoding/json"

// CardPayload is the JSON body sent to the update and autosave endpoints.
// Nil fields are omitted so a step only sends what it owns. Child lists are
// pointers so an empty list is still sent and clears the rows.
type CardPayload struct {
	Name       *string `json:"name,omitempty"`
	NameRomaji *string `json:"name_romaji,omitempty"`

	CompanyName                         *string `json:"company_name,omitempty"`
	CompanyLogo                         *string `json:"company_logo,omitempty"`
	CompanyPostalCode                   *string `json:"company_postal_code,omitempty"`
	CompanyAddress                      *string `json:"company_address,omitempty"`
	CompanyPhone                        *string `json:"company_phone,omitempty"`
	CompanyWebsite                      *string `json:"company_website,omitempty"`
	RealEstateLicensePrefecture         *string `json:"real_estate_license_prefecture,omitempty"`
	RealEstateLicenseRenewalNumber      *string `json:"real_estate_license_renewal_number,omitempty"`
	RealEstateLicenseRegistrationNumber *string `json:"real_estate_license_registration_number,omitempty"`
	BranchDepartment                    *string `json:"branch_department,omitempty"`
	Position                            *string `json:"position,omitempty"`

	MobilePhone      *string         `json:"mobile_phone,omitempty"`
	BirthDate        *string         `json:"birth_date,omitempty"`
	CurrentResidence *string         `json:"current_residence,omitempty"`
	Hometown         *string         `json:"hometown,omitempty"`
	AlmaMater        *string         `json:"alma_mater,omitempty"`
	Qualifications   *string         `json:"qualifications,omitempty"`
	Hobbies          *string         `json:"hobbies,omitempty"`
	FreeInput        json.RawMessage `json:"free_input,omitempty"`
	ProfilePhoto     *string         `json:"profile_photo,omitempty"`

	Greetings            *[]Greeting            `json:"greetings,omitempty"`
	TechTools            *[]TechTool            `json:"tech_tools,omitempty"`
	CommunicationMethods *[]CommunicationMethod `json:"communication_methods,omitempty"`
}

// Greeting is one greeting row.
type Greeting struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	DisplayOrder int    `json:"display_order"`
}

// TechTool is one tech tool selection. ToolURL is derived server-side when empty.
type TechTool struct {
	ToolType     string `json:"tool_type"`
	ToolURL      string `json:"tool_url,omitempty"`
	DisplayOrder int    `json:"display_order"`
	IsActive     bool   `json:"is_active"`
}

// CommunicationMethod is one messaging app or SNS row.
type CommunicationMethod struct {
	MethodType   string `json:"method_type"`
	MethodURL    string `json:"method_url,omitempty"`
	MethodID     string `json:"method_id,omitempty"`
	DisplayOrder int    `json:"display_order"`
	IsActive     bool   `json:"is_active"`
}

// Merge overlays the non-nil fields of other onto p.
func (p *CardPayload) Merge(other CardPayload) {
	mergeString(&p.Name, other.Name)
	mergeString(&p.NameRomaji, other.NameRomaji)
	mergeString(&p.CompanyName, other.CompanyName)
	mergeString(&p.CompanyLogo, other.CompanyLogo)
	mergeString(&p.CompanyPostalCode, other.CompanyPostalCode)
	mergeString(&p.CompanyAddress, other.CompanyAddress)
	mergeString(&p.CompanyPhone, other.CompanyPhone)
	mergeString(&p.CompanyWebsite, other.CompanyWebsite)
	mergeString(&p.RealEstateLicensePrefecture, other.RealEstateLicensePrefecture)
	mergeString(&p.RealEstateLicenseRenewalNumber, other.RealEstateLicenseRenewalNumber)
	mergeString(&p.RealEstateLicenseRegistrationNumber, other.RealEstateLicenseRegistrationNumber)
	mergeString(&p.BranchDepartment, other.BranchDepartment)
	mergeString(&p.Position, other.Position)
	mergeString(&p.MobilePhone, other.MobilePhone)
	mergeString(&p.BirthDate, other.BirthDate)
	mergeString(&p.CurrentResidence, other.CurrentResidence)
	mergeString(&p.Hometown, other.Hometown)
	mergeString(&p.AlmaMater, other.AlmaMater)
	mergeString(&p.Qualifications, other.Qualifications)
	mergeString(&p.Hobbies, other.Hobbies)
	mergeString(&p.ProfilePhoto, other.ProfilePhoto)
	if other.FreeInput != nil {
		p.FreeInput = other.FreeInput
	}
	if other.Greetings != nil {
		p.Greetings = other.Greetings
	}
	if other.TechTools != nil {
		p.TechTools = other.TechTools
	}
	if other.CommunicationMethods != nil {
		p.CommunicationMethods = other.CommunicationMethods
	}
}

func mergeString(dst **string, src *string) {
	if src != nil {
		*dst = src
	}
}

func strPtr(s string) *string {
	return &s
}
