package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/oseayemenre/novelnest/internal/membership"
	"github.com/oseayemenre/novelnest/internal/models"
	"github.com/oseayemenre/novelnest/internal/payment"
)

var errPaymentOwner = errors.New("payment belongs to another user")

func purchase(c *payment.Confirmation) membership.Purchase {
	return membership.Purchase{
		UserID:      c.UserID,
		PaymentID:   c.PaymentID,
		Amount:      c.Amount,
		Currency:    c.Currency,
		PurchasedAt: c.PaidAt,
	}
}

// HandleGetMembership godoc
//
//	@Summary		Membership state
//	@Description	One of loading, unauthenticated, no_membership or active
//	@Tags			membership
//	@Produce		json
//	@Success		200	{object}	models.HandleMembershipStateResponse
//	@Router			/membership [get]
func (a *Api) HandleGetMembership(w http.ResponseWriter, r *http.Request) {
	gate := readerFrom(r).Gate

	respondWithSuccess(w, http.StatusOK, &models.HandleMembershipStateResponse{
		State:      gate.State().String(),
		Membership: gate.Current(),
	})
}

// HandleCheckout godoc
//
//	@Summary		Start a membership checkout
//	@Description	Creates a hosted checkout for a one year membership
//	@Tags			membership
//	@Produce		json
//	@Success		200	{object}	models.HandleCheckoutResponse
//	@Failure		401	{object}	models.ErrorResponse
//	@Failure		404	{object}	models.ErrorResponse
//	@Failure		502	{object}	models.ErrorResponse
//	@Router			/membership/checkout [post]
func (a *Api) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	user, err := a.auth.GetUser(r.Context(), userIDFrom(r))
	if err != nil {
		a.logger.Warn(err.Error(), "service", "HandleCheckout")
		respondWithError(w, http.StatusNotFound, err)
		return
	}

	checkout, err := a.payments.NewCheckout(r.Context(), payment.CheckoutRequest{
		UserID:     user.ID,
		Email:      user.Email,
		Amount:     a.config.MembershipPrice,
		Currency:   a.config.MembershipCurrency,
		SuccessURL: a.config.Host + "/membership/success",
		CancelURL:  a.config.Host + "/membership",
	})
	if err != nil {
		a.logger.Error(fmt.Sprintf("error creating checkout: %v", err), "service", "HandleCheckout")
		respondWithError(w, http.StatusBadGateway, errors.New(payment.UserMessage(err)))
		return
	}

	respondWithSuccess(w, http.StatusOK, &models.HandleCheckoutResponse{Url: checkout.URL})
}

// HandleConfirmMembership godoc
//
//	@Summary		Confirm a membership payment
//	@Description	Verifies the checkout token and records the membership
//	@Tags			membership
//	@Accept			json
//	@Produce		json
//	@Param			params	body		models.HandleConfirmMembershipParams	true	"payment token"
//	@Success		201		{object}	models.Membership
//	@Failure		400		{object}	models.ErrorResponse
//	@Failure		402		{object}	models.ErrorResponse
//	@Failure		403		{object}	models.ErrorResponse
//	@Failure		500		{object}	models.ErrorResponse
//	@Router			/membership/confirm [post]
func (a *Api) HandleConfirmMembership(w http.ResponseWriter, r *http.Request) {
	var params models.HandleConfirmMembershipParams

	if err := decodeJson(r, &params); err != nil {
		a.logger.Warn(err.Error(), "service", "HandleConfirmMembership")
		respondWithError(w, http.StatusBadRequest, err)
		return
	}

	if err := validate.Struct(&params); err != nil {
		a.logger.Warn(fmt.Sprintf("error validating fields: %v", err), "service", "HandleConfirmMembership")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("error validating fields: %v", err))
		return
	}

	confirmation, err := a.payments.Confirm(r.Context(), params.Token)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotCompleted) {
			respondWithError(w, http.StatusPaymentRequired, err)
			return
		}
		a.logger.Error(err.Error(), "service", "HandleConfirmMembership")
		respondWithError(w, http.StatusBadGateway, errors.New(payment.UserMessage(err)))
		return
	}

	if confirmation.UserID != userIDFrom(r) {
		a.logger.Warn(errPaymentOwner.Error(), "service", "HandleConfirmMembership")
		respondWithError(w, http.StatusForbidden, errPaymentOwner)
		return
	}

	m, err := a.memberships.Activate(r.Context(), purchase(confirmation))
	if err != nil {
		a.logger.Error(err.Error(), "service", "HandleConfirmMembership")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	respondWithSuccess(w, http.StatusCreated, m)
}
