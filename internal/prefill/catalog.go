// Package prefill resolves element values from patient, doctor, appointment
// and system data, and applies the read-only policy of prefilled fields.
package prefill

import (
	"time"

	"clinicdocs/internal/calc"
	"clinicdocs/internal/model"
)

// Field keys per source
const (
	FieldPatientName   = "patient_name"
	FieldPatientPhone  = "patient_phone"
	FieldPatientEmail  = "patient_email"
	FieldPatientID     = "patient_id"
	FieldPatientAge    = "patient_age"
	FieldPatientGender = "patient_gender"

	FieldDoctorName   = "doctor_name"
	FieldDoctorClinic = "doctor_clinic"
	FieldDoctorID     = "doctor_id"

	FieldAppointmentDate = "appointment_date"
	FieldAppointmentTime = "appointment_time"
	FieldAppointmentID   = "appointment_id"

	FieldCurrentDate = "current_date"
	FieldCurrentTime = "current_time"
	FieldPlace       = "place"
)

// Catalog is the closed set of resolvable fields per source
var Catalog = map[model.PrefillSource][]string{
	model.SourcePatient: {
		FieldPatientName, FieldPatientPhone, FieldPatientEmail,
		FieldPatientID, FieldPatientAge, FieldPatientGender,
	},
	model.SourceDoctor:      {FieldDoctorName, FieldDoctorClinic, FieldDoctorID},
	model.SourceAppointment: {FieldAppointmentDate, FieldAppointmentTime, FieldAppointmentID},
	model.SourceSystem:      {FieldCurrentDate, FieldCurrentTime, FieldPlace},
}

// ValidSource reports whether source is one of the four known sources
func ValidSource(source model.PrefillSource) bool {
	_, ok := Catalog[source]
	return ok
}

// ValidField reports whether field belongs to the catalogue of source
func ValidField(source model.PrefillSource, field string) bool {
	for _, f := range Catalog[source] {
		if f == field {
			return true
		}
	}
	return false
}

// Resolve looks up field of source in data. ok is false when the source
// record is absent or the field is unset; it never fails otherwise.
func Resolve(source model.PrefillSource, field string, data model.PrefillData) (any, bool) {
	var v string
	switch source {
	case model.SourcePatient:
		p := data.Patient
		if p == nil {
			return nil, false
		}
		switch field {
		case FieldPatientName:
			v = p.Name
		case FieldPatientPhone:
			v = p.Phone
		case FieldPatientEmail:
			v = p.Email
		case FieldPatientID:
			v = p.ID
		case FieldPatientGender:
			v = p.Gender
		case FieldPatientAge:
			dob, ok := calc.ParseDate(p.DateOfBirth)
			if !ok {
				return nil, false
			}
			age, ok := calc.AgeInYears(dob, referenceDate(data))
			if !ok {
				return nil, false
			}
			return float64(age), true
		}
	case model.SourceDoctor:
		d := data.Doctor
		if d == nil {
			return nil, false
		}
		switch field {
		case FieldDoctorName:
			v = d.Name
		case FieldDoctorClinic:
			v = d.Clinic
		case FieldDoctorID:
			v = d.ID
		}
	case model.SourceAppointment:
		a := data.Appointment
		if a == nil {
			return nil, false
		}
		switch field {
		case FieldAppointmentDate:
			v = a.Date
		case FieldAppointmentTime:
			v = a.Time
		case FieldAppointmentID:
			v = a.ID
		}
	case model.SourceSystem:
		s := data.System
		if s == nil {
			return nil, false
		}
		switch field {
		case FieldCurrentDate:
			v = s.CurrentDate
		case FieldCurrentTime:
			v = s.CurrentTime
		case FieldPlace:
			v = s.Place
		}
	}
	if v == "" {
		return nil, false
	}
	return v, true
}

// referenceDate is the system record's date when present so that derived
// values agree with current_date.
func referenceDate(data model.PrefillData) time.Time {
	if data.System != nil {
		if d, ok := calc.ParseDate(data.System.CurrentDate); ok {
			return d
		}
	}
	return time.Now()
}
