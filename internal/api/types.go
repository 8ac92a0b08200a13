package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/directory"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/patient"
	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/visit"
)

// Requests

type RegisterPatientRequest struct {
	NationalID string `json:"national_id" validate:"required,len=16,numeric"`
	Name       string `json:"name" validate:"required,max=200"`
	BirthDate  string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Address    string `json:"address" validate:"max=500"`
	Phone      string `json:"phone" validate:"required,max=32"`
}

type CreateClinicRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Code string `json:"code" validate:"required,max=8,alphanum"`
}

type CreateDoctorRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	ClinicID string `json:"clinic_id" validate:"required,uuid"`
}

type CreateScheduleRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

type CreateVisitRequest struct {
	NationalID string `json:"national_id" validate:"required"`
	ClinicID   string `json:"clinic_id" validate:"required,uuid"`
	DoctorID   string `json:"doctor_id" validate:"required,uuid"`
}

// Responses

type PatientResponse struct {
	ID                  uuid.UUID `json:"id"`
	NationalID          string    `json:"national_id"`
	Name                string    `json:"name"`
	BirthDate           string    `json:"birth_date,omitempty"`
	Address             string    `json:"address,omitempty"`
	Phone               string    `json:"phone"`
	MedicalRecordNumber string    `json:"medical_record_number"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toPatientResponse(p *patient.Patient) PatientResponse {
	return PatientResponse{
		ID:                  p.ID,
		NationalID:          p.NationalID,
		Name:                p.Name,
		BirthDate:           p.BirthDate,
		Address:             p.Address,
		Phone:               p.Phone,
		MedicalRecordNumber: p.MedicalRecordNumber,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

type ClinicResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Code string    `json:"code"`
}

func toClinicResponse(c directory.Clinic) ClinicResponse {
	return ClinicResponse{ID: c.ID, Name: c.Name, Code: c.Code}
}

type DoctorResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	ClinicID   uuid.UUID `json:"clinic_id"`
	ClinicName string    `json:"clinic_name"`
	Active     bool      `json:"active"`
}

func toDoctorResponse(d directory.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:         d.ID,
		Name:       d.Name,
		ClinicID:   d.ClinicID,
		ClinicName: d.ClinicName,
		Active:     d.Active,
	}
}

type ScheduleResponse struct {
	ID         uuid.UUID `json:"id"`
	DoctorID   uuid.UUID `json:"doctor_id"`
	DoctorName string    `json:"doctor_name"`
	Day        string    `json:"day"`
	Weekday    int       `json:"weekday"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
}

func toScheduleResponse(s directory.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:         s.ID,
		DoctorID:   s.DoctorID,
		DoctorName: s.DoctorName,
		Day:        directory.DayName(s.Day),
		Weekday:    int(s.Day),
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
	}
}

type VisitResponse struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	ClinicID         uuid.UUID  `json:"clinic_id"`
	DoctorID         uuid.UUID  `json:"doctor_id"`
	RegistrationDate string     `json:"registration_date"`
	QueueNumber      int        `json:"queue_number"`
	DisplayCode      string     `json:"display_code"`
	Status           string     `json:"status"`
	PatientName      string     `json:"patient_name"`
	ClinicName       string     `json:"clinic_name"`
	DoctorName       string     `json:"doctor_name"`
	CreatedAt        time.Time  `json:"created_at"`
	CalledAt         *time.Time `json:"called_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func toVisitResponse(v visit.Visit) VisitResponse {
	return VisitResponse{
		ID:               v.ID,
		PatientID:        v.PatientID,
		ClinicID:         v.ClinicID,
		DoctorID:         v.DoctorID,
		RegistrationDate: v.RegistrationDate,
		QueueNumber:      v.QueueNumber,
		DisplayCode:      v.DisplayCode,
		Status:           string(v.Status),
		PatientName:      v.PatientName,
		ClinicName:       v.ClinicName,
		DoctorName:       v.DoctorName,
		CreatedAt:        v.CreatedAt,
		CalledAt:         v.CalledAt,
		CompletedAt:      v.CompletedAt,
	}
}

func toVisitResponses(visits []visit.Visit) []VisitResponse {
	out := make([]VisitResponse, 0, len(visits))
	for _, v := range visits {
		out = append(out, toVisitResponse(v))
	}
	return out
}

type BoardResponse struct {
	Date       string          `json:"date"`
	Visits     []VisitResponse `json:"visits"`
	NowServing []VisitResponse `json:"now_serving"`
	Stats      visit.Stats     `json:"stats"`
	Consistent bool            `json:"consistent"`
}

type NowServingResponse struct {
	ClinicID   uuid.UUID      `json:"clinic_id"`
	NowServing *VisitResponse `json:"now_serving"`
}

type NextNumberResponse struct {
	ClinicID    uuid.UUID `json:"clinic_id"`
	QueueNumber int       `json:"queue_number"`
	DisplayCode string    `json:"display_code"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
