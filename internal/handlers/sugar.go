package handlers

import (
	"net/http"

	"github.com/cambosugarscan/apiserver/internal/rules"
	"github.com/cambosugarscan/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const healthMessage = "Cambo Sugar Scan API is running"

type HealthResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type SugarScoreResponse struct {
	Value *float64         `json:"value"`
	Level types.SugarLevel `json:"level"`
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{OK: true, Message: healthMessage})
}

// SugarScore classifies the grams of sugar per 100g given in the path.
func SugarScore(w http.ResponseWriter, r *http.Request) {
	value, level, ok := rules.ClassifySugarText(chi.URLParam(r, "value"))
	resp := SugarScoreResponse{Level: level}
	if ok {
		resp.Value = &value
	}
	writeJSON(w, http.StatusOK, resp)
}
