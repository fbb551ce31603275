package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"territory-router/internal/models"
)

// CreateCampaignRequest represents the request for campaign creation
type CreateCampaignRequest struct {
	Name string `json:"name"`
}

// HandleCreateCampaign handles POST /api/v1/campaigns
func (h *Handler) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[HTTP] POST /api/v1/campaigns: invalid_json err=%v", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Campaign name is required")
		return
	}

	campaign, err := h.DB.Campaigns().Create(r.Context(), &models.Campaign{Name: req.Name})
	if err != nil {
		log.Printf("[ERROR] Failed to create campaign: err=%v", err)
		writeDomainError(w, err)
		return
	}

	log.Printf("[HTTP] POST /api/v1/campaigns: created id=%d name=%s", campaign.ID, campaign.Name)
	writeJSON(w, http.StatusCreated, campaign)
}

// ImportAddressesRequest represents a bulk address import. The surrounding
// application is the source of truth for addresses; this endpoint replaces
// the campaign's working set.
type ImportAddressesRequest struct {
	Addresses []models.AddressPoint `json:"addresses"`
}

// ImportAddressesResponse reports how many addresses were stored and how
// many lack usable coordinates
type ImportAddressesResponse struct {
	Imported    int `json:"imported"`
	Unlocatable int `json:"unlocatable"`
}

// HandleImportAddresses handles PUT /api/v1/campaigns/{id}/addresses
func (h *Handler) HandleImportAddresses(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid campaign id")
		return
	}

	var req ImportAddressesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[HTTP] PUT /api/v1/campaigns/%d/addresses: invalid_json err=%v", id, err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.DB.Campaigns().GetByID(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	stored, err := h.DB.Addresses().ReplaceForCampaign(r.Context(), id, req.Addresses)
	if err != nil {
		log.Printf("[ERROR] Failed to import addresses: campaign=%d err=%v", id, err)
		writeDomainError(w, err)
		return
	}

	unlocatable := 0
	for i := range stored {
		if !stored[i].Locatable() {
			unlocatable++
		}
	}

	log.Printf("[HTTP] PUT /api/v1/campaigns/%d/addresses: imported=%d unlocatable=%d", id, len(stored), unlocatable)
	writeJSON(w, http.StatusOK, ImportAddressesResponse{
		Imported:    len(stored),
		Unlocatable: unlocatable,
	})
}
