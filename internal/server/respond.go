package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"quill/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeInternalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", logging.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

// decodeBody parses a JSON request body into dst and validates it. The
// returned bool reports whether the request should proceed; on false a
// response has already been written.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0]
			s.writeError(w, http.StatusBadRequest,
				fmt.Sprintf("field %q failed %q validation", field.Field(), field.Tag()))
			return false
		}
		s.writeError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}
