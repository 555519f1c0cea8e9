package model

// PatientRecord is the patient row as seen by prefill
type PatientRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"` // YYYY-MM-DD
	Gender      string `json:"gender,omitempty"`
	BloodGroup  string `json:"bloodGroup,omitempty"`
	Address     string `json:"address,omitempty"`
}

// DoctorRecord is the doctor row as seen by prefill
type DoctorRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Clinic string `json:"clinic,omitempty"`
}

// AppointmentRecord is the appointment row as seen by prefill
type AppointmentRecord struct {
	ID        string `json:"id"`
	PatientID string `json:"patientId,omitempty"`
	DoctorID  string `json:"doctorId,omitempty"`
	Date      string `json:"date,omitempty"` // YYYY-MM-DD
	Time      string `json:"time,omitempty"` // HH:MM
}

// SystemRecord carries values supplied at resolution time
type SystemRecord struct {
	CurrentDate string `json:"currentDate"`
	CurrentTime string `json:"currentTime"`
	Place       string `json:"place,omitempty"`
}

// PrefillData is built fresh for every fill or submission request and is
// never persisted. Any record may be nil.
type PrefillData struct {
	Patient     *PatientRecord     `json:"patient,omitempty"`
	Doctor      *DoctorRecord      `json:"doctor,omitempty"`
	Appointment *AppointmentRecord `json:"appointment,omitempty"`
	System      *SystemRecord      `json:"system,omitempty"`
}
