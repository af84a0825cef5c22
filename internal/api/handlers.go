package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"music-action-service/internal/catalog"
	"music-action-service/internal/executor"
	"music-action-service/internal/filter"
	"music-action-service/internal/playlist"
	"music-action-service/internal/program"
	"music-action-service/internal/schema"
)

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.exec.Registry().Describe())
}

func (s *Server) handleParseFilter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filter string `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	expr, err := filter.Parse(body.Filter)
	if err != nil {
		resp := map[string]any{"error": err.Error()}
		var se *filter.SyntaxError
		if errors.As(err, &se) {
			resp["offset"] = se.Pos
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clauses":   expr.Clauses,
		"groups":    expr.Groups(),
		"canonical": expr.String(),
	})
}

// decodeCall reads a single {"@func", "@args"} call. References only make
// sense inside a program and are refused here.
func decodeCall(w http.ResponseWriter, r *http.Request) (schema.Call, bool) {
	var step program.Step
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&step); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return schema.Call{}, false
	}
	if step.Func == "" {
		writeError(w, http.StatusBadRequest, "@func is required")
		return schema.Call{}, false
	}
	for _, raw := range step.Args {
		refs, err := program.Refs(raw)
		if err != nil || len(refs) > 0 {
			writeError(w, http.StatusBadRequest, "step references are only allowed inside a program")
			return schema.Call{}, false
		}
	}
	return step.Call(), true
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	call, ok := decodeCall(w, r)
	if !ok {
		return
	}
	out, err := s.exec.Execute(r.Context(), call)
	if err != nil {
		writeExecError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleValidateAction(w http.ResponseWriter, r *http.Request) {
	call, ok := decodeCall(w, r)
	if !ok {
		return
	}
	args, err := s.exec.Registry().Decode(call)
	if err != nil {
		writeExecError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  true,
		"action": args.Action(),
		"args":   args,
	})
}

func (s *Server) handleRunProgram(w http.ResponseWriter, r *http.Request) {
	p, err := program.Parse(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.exec.Run(r.Context(), p)
	if rep == nil {
		writeExecError(w, err)
		return
	}
	if err != nil {
		var se *executor.StepError
		if errors.As(err, &se) {
			log.Printf("music-action-service: run %s stopped at step %d: %v", rep.RunID, se.Index, se.Err)
		}
		writeJSON(w, statusFor(err), rep)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleValidateProgram(w http.ResponseWriter, r *http.Request) {
	p, err := program.Parse(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := program.Validate(s.exec.Registry(), p); err != nil {
		writeExecError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"steps": len(p.Steps),
	})
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	pls, err := s.playlists.List(r.Context(), catalog.ListenerFrom(r.Context()))
	if err != nil {
		log.Printf("music-action-service: list playlists: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, pls)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	pl, err := s.playlists.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, playlist.ErrNotFound) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("music-action-service: get playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, pl)
}
