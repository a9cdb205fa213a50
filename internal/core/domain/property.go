package domain

import "time"

// Read models served by the property-management data layer. Only the fields
// tools surface to the model are kept.

type Property struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Address   string `json:"address" yaml:"address"`
	City      string `json:"city" yaml:"city"`
	Units     int    `json:"units" yaml:"units"`
	Occupied  int    `json:"occupied" yaml:"occupied"`
	Type      string `json:"type" yaml:"type"`
	OwnerName string `json:"owner_name,omitempty" yaml:"owner_name"`
}

type Tenant struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Email      string     `json:"email,omitempty" yaml:"email"`
	Phone      string     `json:"phone,omitempty" yaml:"phone"`
	PropertyID string     `json:"property_id" yaml:"property_id"`
	Unit       string     `json:"unit,omitempty" yaml:"unit"`
	Status     string     `json:"status" yaml:"status"`
	LeaseEnd   *time.Time `json:"lease_end,omitempty" yaml:"lease_end"`
	RentCents  int64      `json:"rent_cents" yaml:"rent_cents"`
}

type MaintenanceRequest struct {
	ID          string    `json:"id" yaml:"id"`
	PropertyID  string    `json:"property_id" yaml:"property_id"`
	TenantID    string    `json:"tenant_id,omitempty" yaml:"tenant_id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Priority    string    `json:"priority" yaml:"priority"`
	Status      string    `json:"status" yaml:"status"`
	Category    string    `json:"category,omitempty" yaml:"category"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

type RentalApplication struct {
	ID            string    `json:"id" yaml:"id"`
	PropertyID    string    `json:"property_id" yaml:"property_id"`
	ApplicantName string    `json:"applicant_name" yaml:"applicant_name"`
	Status        string    `json:"status" yaml:"status"`
	MonthlyIncome int64     `json:"monthly_income_cents,omitempty" yaml:"monthly_income_cents"`
	SubmittedAt   time.Time `json:"submitted_at" yaml:"submitted_at"`
}

type Payment struct {
	ID          string     `json:"id" yaml:"id"`
	TenantID    string     `json:"tenant_id" yaml:"tenant_id"`
	PropertyID  string     `json:"property_id" yaml:"property_id"`
	AmountCents int64      `json:"amount_cents" yaml:"amount_cents"`
	Status      string     `json:"status" yaml:"status"`
	DueDate     time.Time  `json:"due_date" yaml:"due_date"`
	PaidAt      *time.Time `json:"paid_at,omitempty" yaml:"paid_at"`
}

// DirectoryFilter narrows read queries. Empty fields match everything.
type DirectoryFilter struct {
	ID         string
	PropertyID string
	TenantID   string
	Status     string
	Limit      int
}
