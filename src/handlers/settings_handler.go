package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/model"
	"github.com/username/tillpoint/backend/src/services"
	"github.com/username/tillpoint/backend/src/utils"
)

type SettingsHandler struct {
	settingsService services.SettingsService
}

func NewSettingsHandler(settingsService services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

func (h *SettingsHandler) ListSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.All()
	if err != nil {
		logger.L.Error("settings listing failed", "error", err)
		utils.SendJSONError(w, "Error fetching settings", http.StatusInternalServerError)
		return
	}
	if settings == nil {
		settings = []model.Setting{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		logger.L.Error("error encoding settings response", "error", err)
	}
}

func (h *SettingsHandler) GetSettingHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, err := h.settingsService.Get(key)
	if err != nil {
		if errors.Is(err, model.ErrSettingNotFound) {
			utils.SendJSONError(w, "Setting not found: "+key, http.StatusNotFound)
			return
		}
		logger.L.Error("setting lookup failed", "key", key, "error", err)
		utils.SendJSONError(w, "Error fetching setting", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"key": key, "value": value})
}

func (h *SettingsHandler) UpdateSettingHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.settingsService.Set(key, req.Value); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if userID, ok := GetUserIDFromContext(r.Context()); ok {
		logger.L.Info("setting changed via API", "key", key, "updatedBy", userID)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"key": key, "value": req.Value})
}
