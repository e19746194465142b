package domain

// CompanyInfoDraft is the unsaved company settings form.
type CompanyInfoDraft struct {
	Name    string `json:"name" validate:"omitempty,max=255"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Website string `json:"website" validate:"omitempty,url,max=255"`
	Address string `json:"address" validate:"omitempty,max=500"`
}

// BillingInfoDraft is the unsaved billing contact form.
type BillingInfoDraft struct {
	ContactName  string `json:"contact_name" validate:"omitempty,max=255"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email,max=255"`
	Country      string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	PostalCode   string `json:"postal_code" validate:"omitempty,max=16"`
}
