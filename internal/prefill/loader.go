package prefill

import (
	"context"
	"time"

	"clinicdocs/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sources fetches the persisted records prefill reads from. A missing row
// is reported as a nil record and a nil error.
type Sources interface {
	FetchPatient(ctx context.Context, id string) (*model.PatientRecord, error)
	FetchDoctor(ctx context.Context, id string) (*model.DoctorRecord, error)
	FetchAppointment(ctx context.Context, id string) (*model.AppointmentRecord, error)
}

// Request identifies the records of one fill or submission
type Request struct {
	PatientID     string `json:"patientId,omitempty"`
	DoctorID      string `json:"doctorId,omitempty"`
	AppointmentID string `json:"appointmentId,omitempty"`
	Place         string `json:"place,omitempty"`
}

// Loader builds PrefillData from Sources
type Loader struct {
	sources Sources
	now     func() time.Time
	log     *zap.Logger
	place   string
}

// NewLoader creates a loader. A nil clock means time.Now.
func NewLoader(sources Sources, now func() time.Time, log *zap.Logger) *Loader {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{sources: sources, now: now, log: log}
}

// SetDefaultPlace sets the place used when a request names none
func (l *Loader) SetDefaultPlace(place string) {
	l.place = place
}

// Load fetches patient, doctor and appointment concurrently. A source that
// fails or has no row leaves its record nil; Load itself never fails.
func (l *Loader) Load(ctx context.Context, req Request) model.PrefillData {
	var data model.PrefillData

	g, gctx := errgroup.WithContext(ctx)

	if req.PatientID != "" {
		g.Go(func() error {
			p, err := l.sources.FetchPatient(gctx, req.PatientID)
			if err != nil {
				l.log.Warn("Failed to fetch patient for prefill", zap.String("patient_id", req.PatientID), zap.Error(err))
				return nil
			}
			data.Patient = p
			return nil
		})
	}

	if req.DoctorID != "" {
		g.Go(func() error {
			d, err := l.sources.FetchDoctor(gctx, req.DoctorID)
			if err != nil {
				l.log.Warn("Failed to fetch doctor for prefill", zap.String("doctor_id", req.DoctorID), zap.Error(err))
				return nil
			}
			data.Doctor = d
			return nil
		})
	}

	if req.AppointmentID != "" {
		g.Go(func() error {
			a, err := l.sources.FetchAppointment(gctx, req.AppointmentID)
			if err != nil {
				l.log.Warn("Failed to fetch appointment for prefill", zap.String("appointment_id", req.AppointmentID), zap.Error(err))
				return nil
			}
			data.Appointment = a
			return nil
		})
	}

	// every goroutine returns nil
	_ = g.Wait()

	place := req.Place
	if place == "" {
		place = l.place
	}
	now := l.now()
	data.System = &model.SystemRecord{
		CurrentDate: now.Format("2006-01-02"),
		CurrentTime: now.Format("15:04"),
		Place:       place,
	}
	return data
}
