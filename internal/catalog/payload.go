package catalog

import "time"

// Item is a sellable product.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Variation is one variant of an item as seen by availability handlers. An
// item without variants is represented by a single Variation with an empty ID.
// Price is in minor currency units; nil means the handler sets no price.
type Variation struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Available bool   `json:"available"`
	Price     *int64 `json:"price,omitempty"`
}

// Empty reports whether v stands for an item without variations.
func (v Variation) Empty() bool { return v.ID == "" }

// AvailabilityRequest is the availability-check payload. Handlers must return
// []Variation and must not modify Variations in place.
type AvailabilityRequest struct {
	Item       Item        `json:"item"`
	Variations []Variation `json:"variations"`
	Context    string      `json:"context,omitempty"`
	Cache      Cache       `json:"-"`
}

// Order is the subset of an order that notification handlers see.
type Order struct {
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	Email     string    `json:"email,omitempty"`
	Total     int64     `json:"total"`
	Positions int       `json:"positions"`
	Datetime  time.Time `json:"datetime"`
}

// OrderEvent is the order-placed and order-paid payload.
type OrderEvent struct {
	Order Order `json:"order"`
}

// SettingsField describes one per-tenant setting a descriptor exposes.
type SettingsField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required,omitempty"`
	Secret   bool   `json:"secret,omitempty"`
}

// PaymentProvider is a register-payment-providers response.
type PaymentProvider struct {
	Identifier  string          `json:"identifier"`
	VerboseName string          `json:"verbose_name"`
	Settings    []SettingsField `json:"settings,omitempty"`
}

// TicketOutput is a register-ticket-outputs response.
type TicketOutput struct {
	Identifier         string          `json:"identifier"`
	VerboseName        string          `json:"verbose_name"`
	DownloadButtonText string          `json:"download_button_text,omitempty"`
	DownloadButtonIcon string          `json:"download_button_icon,omitempty"`
	Settings           []SettingsField `json:"settings,omitempty"`
}

// Exporter is a register-data-exporters response.
type Exporter struct {
	Identifier  string `json:"identifier"`
	VerboseName string `json:"verbose_name"`
	Format      string `json:"format"`
}
