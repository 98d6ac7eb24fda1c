// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	appErrors "github.com/mailmergehq/mailmerge-backend/internal/errors"
	"github.com/mailmergehq/mailmerge-backend/internal/model"
	"github.com/mailmergehq/mailmerge-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Logger          logrus.FieldLogger
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name               string            `json:"name"`
		Subject            string            `json:"subject"`
		Body               string            `json:"body"`
		PlaceholderMapping map[string]string `json:"placeholder_mapping"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(userID(r), body.Name, body.Subject, body.Body, body.PlaceholderMapping)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(userID(r), page, pageSize, status)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	details, err := c.CampaignService.GetCampaignDetails(id, userID(r))
	if err != nil {
		c.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// Launch accepts the full campaign payload, synchronously persists the
// recipients and activates the campaign, then enqueues the dispatch job
// and acknowledges immediately. Delivery outcomes are observed through
// subsequent reads of the campaign and its recipients.
func (c *CampaignController) Launch(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	var req service.LaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	result, err := c.CampaignService.Launch(userID(r), id, req)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"campaign_id":      result.CampaignID,
		"total_recipients": result.TotalRecipients,
	})
}

// TestSend delivers a single fixed preview message synchronously.
func (c *CampaignController) TestSend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To           string             `json:"to"`
		Subject      string             `json:"subject"`
		Body         string             `json:"body"`
		SenderConfig model.SenderConfig `json:"sender_config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	messageID, err := c.CampaignService.TestSend(r.Context(), body.To, body.Subject, body.Body, body.SenderConfig)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message_id": messageID,
	})
}

func (c *CampaignController) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	var body struct {
		Record map[string]string `json:"record"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	subject, html, err := c.CampaignService.RenderPreview(id, userID(r), body.Record)
	if err != nil {
		c.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subject": subject,
		"body":    html,
	})
}

func (c *CampaignController) writeServiceError(w http.ResponseWriter, err error) {
	switch err.(type) {
	case *appErrors.ErrCampaignNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case *appErrors.ErrCampaignNotLaunchable:
		writeError(w, http.StatusConflict, err.Error())
	case *appErrors.ErrEmptyRecipients:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		c.logger().WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (c *CampaignController) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}

func campaignID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
