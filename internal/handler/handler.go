package handler

import (
	"encoding/json"
	"net/http"

	"github.com/letterdrop/letterdrop/internal/config"
	"github.com/letterdrop/letterdrop/internal/letter"
	"github.com/letterdrop/letterdrop/internal/logger"
	"github.com/letterdrop/letterdrop/internal/service"
)

// Handler holds all HTTP handlers
type Handler struct {
	log       *logger.Logger
	cfg       *config.Config
	batchSvc  *service.BatchService
	converter *letter.Converter // nil when conversion is disabled
}

// New creates a new Handler instance
func New(log *logger.Logger, cfg *config.Config, batchSvc *service.BatchService, converter *letter.Converter) *Handler {
	return &Handler{
		log:       log,
		cfg:       cfg,
		batchSvc:  batchSvc,
		converter: converter,
	}
}

// JSON helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}
