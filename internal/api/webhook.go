package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/oseayemenre/novelnest/internal/models"
	"github.com/oseayemenre/novelnest/internal/payment"
)

const maxWebhookBody = int64(65536)

// HandleWebhook records memberships for completed checkouts. It is the path
// that still works when the buyer never returns to the success page.
func (a *Api) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("error reading payload: %v", err), "service", "HandleWebhook")
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("error reading payload: %v", err))
		return
	}

	confirmation, err := a.payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, payment.ErrPaymentNotCompleted) {
		respondWithSuccess(w, http.StatusOK, &models.MessageResponse{Message: "ignored"})
		return
	}
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, payment.ErrInvalidSignature) {
			code = http.StatusBadRequest
		}
		a.logger.Warn(err.Error(), "service", "HandleWebhook")
		respondWithError(w, code, err)
		return
	}

	if confirmation == nil {
		respondWithSuccess(w, http.StatusOK, &models.MessageResponse{Message: "ignored"})
		return
	}

	if _, err := a.memberships.Activate(r.Context(), purchase(confirmation)); err != nil {
		a.logger.Error(err.Error(), "service", "HandleWebhook")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, &models.MessageResponse{Message: "membership recorded"})
}
