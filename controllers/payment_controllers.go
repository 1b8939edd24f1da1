package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/douxbatter/storefront/services"
	"github.com/douxbatter/storefront/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PaymentController receives payment provider webhooks.
type PaymentController struct {
	Webhooks *services.WebhookService
}

func NewPaymentController(webhooks *services.WebhookService) *PaymentController {
	return &PaymentController{Webhooks: webhooks}
}

// HandleWebhook -> verify and apply a Ziina payment_intent event.
func (pc *PaymentController) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondMessage(c, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		utils.RespondMessage(c, http.StatusBadRequest, "could not read request body")
		return
	}

	outcome, err := pc.Webhooks.HandleWebhook(c.Request.Context(), payload, c.GetHeader(services.SignatureHeader))
	switch {
	case errors.Is(err, services.ErrInvalidSignature):
		utils.ErrorLogger.WithFields(logrus.Fields{
			"ip":        c.ClientIP(),
			"signature": c.GetHeader(services.SignatureHeader) != "",
		}).Warn("Rejected webhook with invalid signature")
		utils.RespondMessage(c, http.StatusUnauthorized, "invalid signature")
		return
	case errors.Is(err, services.ErrMalformedWebhook):
		utils.ErrorLogger.WithError(err).Error("Could not parse signed webhook")
		utils.RespondMessage(c, http.StatusInternalServerError, "webhook processing failed")
		return
	case err != nil:
		utils.ErrorLogger.WithError(err).Error("Webhook processing failed")
		respondServiceError(c, err, "")
		return
	}

	utils.RespondJSON(c, http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
