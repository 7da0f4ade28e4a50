package models

import "time"

// EquipmentCategory groups equipment items. Deleting a category requires it
// to own zero items; the handler enforces the guard, the schema backs it
// with a RESTRICT foreign key.
type EquipmentCategory struct {
	ID          int64     `json:"id"`
	CompanyID   int64     `json:"company_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EquipmentItem is a physical asset tracked under a category. Certificates
// are owned exclusively by the item and returned ordered with it.
type EquipmentItem struct {
	ID           int64         `json:"id"`
	CompanyID    int64         `json:"company_id"`
	CategoryID   int64         `json:"category_id"`
	Name         string        `json:"name"`
	SerialNumber *string       `json:"serial_number,omitempty"`
	PlantNumber  *string       `json:"plant_number,omitempty"`
	Make         *string       `json:"make,omitempty"`
	Model        *string       `json:"model,omitempty"`
	Notes        *string       `json:"notes,omitempty"`
	Certificates []Certificate `json:"certificates"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Certificate is a compliance document attached to an equipment item. A
// certificate with no expiry date never participates in reminders
// regardless of its reminder flags.
type Certificate struct {
	ID               int64      `json:"id"`
	EquipmentItemID  int64      `json:"equipment_item_id"`
	Name             string     `json:"name"`
	FileURL          string     `json:"file_url"`
	FileType         string     `json:"file_type"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
	Has30DayReminder bool       `json:"has_30_day_reminder"`
	Has7DayReminder  bool       `json:"has_7_day_reminder"`
	UploadedBy       string     `json:"uploaded_by"`
	UploadedAt       time.Time  `json:"uploaded_at"`
}

// CreateCategoryRequest represents the request body for creating a category
type CreateCategoryRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	Description *string `json:"description,omitempty"`
}

// CreateEquipmentItemRequest represents the request body for creating an item
type CreateEquipmentItemRequest struct {
	CategoryID   int64   `json:"category_id" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	SerialNumber *string `json:"serial_number,omitempty"`
	PlantNumber  *string `json:"plant_number,omitempty"`
	Make         *string `json:"make,omitempty"`
	Model        *string `json:"model,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// UpdateEquipmentItemRequest represents the request body for updating an item
type UpdateEquipmentItemRequest struct {
	CategoryID   *int64  `json:"category_id,omitempty"`
	Name         *string `json:"name,omitempty"`
	SerialNumber *string `json:"serial_number,omitempty"`
	PlantNumber  *string `json:"plant_number,omitempty"`
	Make         *string `json:"make,omitempty"`
	Model        *string `json:"model,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// CreateCertificateRequest represents the request body for attaching a
// certificate to an equipment item
type CreateCertificateRequest struct {
	Name             string     `json:"name" validate:"required"`
	FileURL          string     `json:"file_url" validate:"required"`
	FileType         string     `json:"file_type" validate:"required"`
	ExpiryDate       *time.Time `json:"expiry_date,omitempty"`
	Has30DayReminder bool       `json:"has_30_day_reminder"`
	Has7DayReminder  bool       `json:"has_7_day_reminder"`
}
