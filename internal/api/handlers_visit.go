package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/visit"
)

func createVisitHandler(svc VisitService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateVisitRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		v, err := svc.CreateVisit(r.Context(), visit.CreateVisitInput{
			NationalID: req.NationalID,
			ClinicID:   uuid.MustParse(req.ClinicID),
			DoctorID:   uuid.MustParse(req.DoctorID),
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toVisitResponse(*v))
	}
}

// listVisitsHandler serves the monitoring view: ?month=YYYY-MM&date=&clinic_id=&doctor_id=&limit=&offset=
func listVisitsHandler(svc VisitService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		clinicID, ok := queryUUID(w, r, "clinic_id")
		if !ok {
			return
		}
		doctorID, ok := queryUUID(w, r, "doctor_id")
		if !ok {
			return
		}

		f := visit.Filter{
			Month:    q.Get("month"),
			Date:     q.Get("date"),
			ClinicID: clinicID,
			DoctorID: doctorID,
		}
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
				return
			}
			f.Limit = n
		}
		if raw := q.Get("offset"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
				return
			}
			f.Offset = n
		}

		visits, err := svc.ListVisits(r.Context(), f)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponses(visits))
	}
}

func getVisitHandler(svc VisitService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}

		v, err := svc.GetVisit(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponse(*v))
	}
}

func callVisitHandler(svc VisitService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}

		v, err := svc.Call(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponse(*v))
	}
}

func completeVisitHandler(svc VisitService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}

		v, err := svc.Complete(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toVisitResponse(*v))
	}
}
