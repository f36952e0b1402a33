package domain

import "time"

// Services offered on the site. A lead may name one of them.
var Services = []string{
	"financial-planning",
	"retirement-planning",
	"investment-education",
	"tax-planning",
	"workshops",
}

// LeadRequest is a contact form submission
type LeadRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
	SourceURL string `json:"source_url,omitempty"`
}

// Lead is a stored contact request
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	Service   string    `json:"service,omitempty"`
	Message   string    `json:"message"`
	SourceURL string    `json:"source_url,omitempty"`
	ClientIP  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
