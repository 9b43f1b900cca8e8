package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/oseayemenre/novelnest/internal/models"
)

var validate = validator.New()

func respondWithSuccess(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func respondWithError(w http.ResponseWriter, code int, err error) {
	respondWithSuccess(w, code, models.ErrorResponse{Error: err.Error()})
}

func decodeJson(r *http.Request, params any) error {
	return json.NewDecoder(r.Body).Decode(params)
}
