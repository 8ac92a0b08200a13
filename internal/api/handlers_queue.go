package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const streamKeepAlive = 25 * time.Second

func queueBoardHandler(q QueueReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := queryUUID(w, r, "clinic_id")
		if !ok {
			return
		}

		board, err := q.Board(r.Context(), clinicID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, BoardResponse{
			Date:       board.Date,
			Visits:     toVisitResponses(board.Visits),
			NowServing: toVisitResponses(board.NowServing),
			Stats:      board.Stats,
			Consistent: board.Consistent,
		})
	}
}

func nowServingHandler(q QueueReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := queryUUID(w, r, "clinic_id")
		if !ok {
			return
		}
		if clinicID == nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "clinic_id is required")
			return
		}

		v, err := q.NowServing(r.Context(), *clinicID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		resp := NowServingResponse{ClinicID: *clinicID}
		if v != nil {
			vr := toVisitResponse(*v)
			resp.NowServing = &vr
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func nextNumberHandler(dir DirectoryService, visits VisitService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := queryUUID(w, r, "clinic_id")
		if !ok {
			return
		}
		if clinicID == nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "clinic_id is required")
			return
		}
		if _, err := dir.GetClinic(r.Context(), *clinicID); err != nil {
			writeDomainError(w, r, err)
			return
		}

		n, code, err := visits.PeekNext(r.Context(), *clinicID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, NextNumberResponse{ClinicID: *clinicID, QueueNumber: n, DisplayCode: code})
	}
}

// queueStreamHandler pushes visit events as server-sent events so displays
// can refresh without polling.
func queueStreamHandler(sub EventSubscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, ok := queryUUID(w, r, "clinic_id")
		if !ok {
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer cannot stream")
			return
		}

		events, err := sub.Subscribe(r.Context(), clinicID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ticker := time.NewTicker(streamKeepAlive)
		defer ticker.Stop()

		log := zerolog.Ctx(r.Context())
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case ev, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					log.Warn().Err(err).Msg("skipping unencodable event")
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
