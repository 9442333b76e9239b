package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"flyergen/internal/domain"
	"flyergen/internal/middleware"
)

// generateFlyersResponse is the success body of the generation endpoint.
// PDFURL is null when the campaign produced no flyers.
type generateFlyersResponse struct {
	Success         bool     `json:"success"`
	Message         string   `json:"message"`
	FlyersGenerated int      `json:"flyers_generated"`
	PDFURL          *string  `json:"pdf_url"`
	ImageURLs       []string `json:"img_urls"`
}

// GenerateFlyers runs one campaign synchronously. The response only goes
// out once every page is rendered and published, which is why the server's
// write timeout is configured in minutes.
func (a *App) GenerateFlyers(w http.ResponseWriter, r *http.Request) {
	var campaign domain.Campaign
	if err := json.NewDecoder(r.Body).Decode(&campaign); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	campaign.Locale = middleware.LocaleFromContext(r.Context())

	result, err := a.Flyers.Run(r.Context(), campaign)
	if err != nil {
		a.Logger.Error().
			Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("supermarket", campaign.SupermarketName).
			Msg("flyer generation failed")
		switch {
		case errors.Is(err, domain.ErrValidation):
			a.error(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		case errors.Is(err, domain.ErrRateLimited):
			a.error(w, http.StatusServiceUnavailable, "rate_limited", "image model is rate limited, try again later")
		default:
			a.error(w, http.StatusInternalServerError, "internal", err.Error())
		}
		return
	}

	var pdfURL *string
	if result.DocumentURL != "" {
		pdfURL = &result.DocumentURL
	}
	imageURLs := result.ImageURLs
	if imageURLs == nil {
		imageURLs = []string{}
	}

	a.json(w, http.StatusOK, generateFlyersResponse{
		Success:         true,
		Message:         fmt.Sprintf("Successfully generated %d flyer(s)", result.FlyerCount),
		FlyersGenerated: result.FlyerCount,
		PDFURL:          pdfURL,
		ImageURLs:       imageURLs,
	})
}
