package model

import "time"

// Template is a named, editable schema
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Schema      Schema    `json:"schema"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Document is a filled template. The schema and values are snapshots taken
// at submission and never change afterwards.
type Document struct {
	ID            string    `json:"id"`
	TemplateID    string    `json:"templateId"`
	PatientID     string    `json:"patientId,omitempty"`
	DoctorID      string    `json:"doctorId,omitempty"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	Schema        Schema    `json:"schema"`
	Values        FormData  `json:"values"`
	CreatedAt     time.Time `json:"createdAt"`
}
