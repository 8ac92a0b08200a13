package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/directory"
)

// Clinics

func listClinicsHandler(svc DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinics, err := svc.ListClinics(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		resp := make([]ClinicResponse, 0, len(clinics))
		for _, c := range clinics {
			resp = append(resp, toClinicResponse(c))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getClinicHandler(svc DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}

		c, err := svc.GetClinic(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toClinicResponse(*c))
	}
}

func createClinicHandler(svc DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateClinicRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		c, err := svc.CreateClinic(r.Context(), req.Name, req.Code)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toClinicResponse(*c))
	}
}

func deleteClinicHandler(svc DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}

		if err := svc.DeleteClinic(r.Context(), id); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Doctors

func listDoctorsHandler(svc DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := queryUUID(w, r, "clinic_id")
		if !ok {
			return
		}

		doctors, err := svc.ListDoctors(r.Context(), clinicID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, toDoctorResponse(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getDoctorHandler(svc DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}

		d, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDoctorResponse(*d))
	}
}

func createDoctorHandler(svc DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDoctorRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		d, err := svc.CreateDoctor(r.Context(), req.Name, uuid.MustParse(req.ClinicID))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDoctorResponse(*d))
	}
}

func deactivateDoctorHandler(svc DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}

		if err := svc.DeactivateDoctor(r.Context(), id); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// doctorScheduleHandler answers when a doctor practices on a given date,
// today by default.
func doctorScheduleHandler(svc DirectoryService, today func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}

		raw := r.URL.Query().Get("date")
		if raw == "" {
			raw = today()
		}
		date, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		if _, err := svc.GetDoctor(r.Context(), id); err != nil {
			writeDomainError(w, r, err)
			return
		}

		schedules, err := svc.SchedulesOn(r.Context(), id, date)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponses(schedules))
	}
}

// Schedules

func listSchedulesHandler(svc DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := queryUUID(w, r, "doctor_id")
		if !ok {
			return
		}

		f := directory.ScheduleFilter{DoctorID: doctorID}
		if raw := r.URL.Query().Get("day"); raw != "" {
			day, err := directory.ParseDay(raw)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			f.Day = &day
		}

		schedules, err := svc.ListSchedules(r.Context(), f)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponses(schedules))
	}
}

func createScheduleHandler(svc DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateScheduleRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		day, err := directory.ParseDay(req.Day)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		s, err := svc.CreateSchedule(r.Context(), uuid.MustParse(req.DoctorID), day, req.StartTime, req.EndTime)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toScheduleResponse(*s))
	}
}

func deleteScheduleHandler(svc DirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}

		if err := svc.DeleteSchedule(r.Context(), id); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func toScheduleResponses(schedules []directory.Schedule) []ScheduleResponse {
	resp := make([]ScheduleResponse, 0, len(schedules))
	for _, s := range schedules {
		resp = append(resp, toScheduleResponse(s))
	}
	return resp
}
