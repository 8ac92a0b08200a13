package api

import (
	"net/http"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/patient"
)

func registerPatientHandler(svc PatientService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterPatientRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		p, created, err := svc.Register(r.Context(), patient.Registration{
			NationalID: req.NationalID,
			Name:       req.Name,
			BirthDate:  req.BirthDate,
			Address:    req.Address,
			Phone:      req.Phone,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, toPatientResponse(p))
	}
}

func lookupPatientHandler(svc PatientService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nationalID := r.URL.Query().Get("national_id")
		if nationalID == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "national_id is required")
			return
		}

		p, err := svc.Resolve(r.Context(), nationalID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

func getPatientHandler(svc PatientService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}

		p, err := svc.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}
