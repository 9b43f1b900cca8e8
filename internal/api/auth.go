package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/markbates/goth/gothic"

	"github.com/oseayemenre/novelnest/internal/auth"
	"github.com/oseayemenre/novelnest/internal/models"
)

// signIn issues the token cookies and binds the device session to the user.
func (a *Api) signIn(w http.ResponseWriter, r *http.Request, user *models.User) error {
	if err := auth.SetTokenCookies(w, user.ID, a.config.JwtSecret, a.config.SessionSecure); err != nil {
		return err
	}

	if err := readerFrom(r).Attach(r.Context(), user.ID); err != nil {
		a.logger.Warn(err.Error(), "service", "signIn", "user", user.ID)
	}
	return nil
}

// HandleGoogleSignIn godoc
//
//	@Summary		Sign in with google
//	@Description	Sign in with google
//	@Tags			auth
//	@Success		302
//	@Success		307
//	@Router			/auth/google [get]
func (a *Api) HandleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	gothic.BeginAuthHandler(w, gothic.GetContextWithProvider(r, "google"))
}

// HandleGoogleSignInCallback godoc
//
//	@Summary		Google auth callback url
//	@Description	Google auth callback url
//	@Tags			auth
//	@Failure		401	{object}	models.ErrorResponse
//	@Failure		500	{object}	models.ErrorResponse
//	@Success		302
//	@Header			302	{string}	Set-Cookie	"access_token=12345 refresh_token=12345"
//	@Router			/auth/google/callback [get]
func (a *Api) HandleGoogleSignInCallback(w http.ResponseWriter, r *http.Request) {
	gu, err := gothic.CompleteUserAuth(w, gothic.GetContextWithProvider(r, "google"))
	if err != nil {
		a.logger.Warn(fmt.Sprintf("error retrieving user details: %v", err), "service", "HandleGoogleSignInCallback")
		respondWithError(w, http.StatusUnauthorized, fmt.Errorf("error retrieving user details: %v", err))
		return
	}

	user, err := a.auth.GoogleSignIn(r.Context(), gu)
	if err != nil {
		a.logger.Error(err.Error(), "service", "HandleGoogleSignInCallback")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	if err := a.signIn(w, r, user); err != nil {
		a.logger.Error(err.Error(), "service", "HandleGoogleSignInCallback")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	http.Redirect(w, r, a.config.Host+"/", http.StatusFound)
}

// HandleRegister godoc
//
//	@Summary		Register user
//	@Description	Register user using email, display name and password
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			user	body		models.HandleRegisterParams	true	"user"
//	@Failure		400		{object}	models.ErrorResponse
//	@Failure		409		{object}	models.ErrorResponse
//	@Failure		500		{object}	models.ErrorResponse
//	@Success		201		{object}	models.HandleAuthResponse
//	@Header			201		{string}	Set-Cookie	"access_token=12345 refresh_token=12345"
//	@Router			/auth/register [post]
func (a *Api) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var params models.HandleRegisterParams

	if err := decodeJson(r, &params); err != nil {
		a.logger.Warn(err.Error(), "service", "HandleRegister")
		respondWithError(w, http.StatusBadRequest, err)
		return
	}

	if err := validate.Struct(&params); err != nil {
		a.logger.Warn(fmt.Sprintf("error validating fields: %v", err), "service", "HandleRegister")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("error validating fields: %v", err))
		return
	}

	user, err := a.auth.Register(r.Context(), params.Email, params.DisplayName, params.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			a.logger.Warn(err.Error(), "service", "HandleRegister")
			respondWithError(w, http.StatusConflict, err)
			return
		}
		a.logger.Error(err.Error(), "service", "HandleRegister")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	if err := a.signIn(w, r, user); err != nil {
		a.logger.Error(err.Error(), "service", "HandleRegister")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	respondWithSuccess(w, http.StatusCreated, &models.HandleAuthResponse{ID: user.ID})
}

// HandleLogin godoc
//
//	@Summary		Login user
//	@Description	Login user using email and password
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			user	body		models.HandleLoginParams	true	"user"
//	@Failure		400		{object}	models.ErrorResponse
//	@Failure		401		{object}	models.ErrorResponse
//	@Failure		500		{object}	models.ErrorResponse
//	@Success		200		{object}	models.HandleAuthResponse
//	@Header			200		{string}	Set-Cookie	"access_token=12345 refresh_token=12345"
//	@Router			/auth/login [post]
func (a *Api) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var params models.HandleLoginParams

	if err := decodeJson(r, &params); err != nil {
		a.logger.Warn(err.Error(), "service", "HandleLogin")
		respondWithError(w, http.StatusBadRequest, err)
		return
	}

	if err := validate.Struct(&params); err != nil {
		a.logger.Warn(fmt.Sprintf("error validating fields: %v", err), "service", "HandleLogin")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("error validating fields: %v", err))
		return
	}

	user, err := a.auth.Login(r.Context(), params.Email, params.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			a.logger.Warn(err.Error(), "service", "HandleLogin")
			respondWithError(w, http.StatusUnauthorized, err)
			return
		}
		a.logger.Error(err.Error(), "service", "HandleLogin")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	if err := a.signIn(w, r, user); err != nil {
		a.logger.Error(err.Error(), "service", "HandleLogin")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, &models.HandleAuthResponse{ID: user.ID})
}

// HandleLogout godoc
//
//	@Summary		Logout user
//	@Description	Clears the token cookies. Pending reading state is saved first
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	models.MessageResponse
//	@Router			/auth/logout [post]
func (a *Api) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := readerFrom(r).Attach(r.Context(), ""); err != nil {
		a.logger.Warn(err.Error(), "service", "HandleLogout")
	}

	auth.ClearTokenCookies(w, a.config.SessionSecure)
	respondWithSuccess(w, http.StatusOK, &models.MessageResponse{Message: "signed out"})
}

// HandleRefreshToken godoc
//
//	@Summary		Refresh tokens
//	@Description	Issues a new token pair from a valid refresh token cookie
//	@Tags			auth
//	@Produce		json
//	@Failure		401	{object}	models.ErrorResponse
//	@Failure		500	{object}	models.ErrorResponse
//	@Success		200	{object}	models.HandleAuthResponse
//	@Header			200	{string}	Set-Cookie	"access_token=12345 refresh_token=12345"
//	@Router			/auth/refresh-token [post]
func (a *Api) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshTokenCookie)
	if err != nil {
		a.logger.Warn("refresh token cookie not found", "service", "HandleRefreshToken")
		respondWithError(w, http.StatusUnauthorized, fmt.Errorf("refresh token cookie not found"))
		return
	}

	id, err := auth.DecodeJWTToken(cookie.Value, a.config.JwtSecret)
	if err != nil {
		a.logger.Warn(err.Error(), "service", "HandleRefreshToken")
		respondWithError(w, http.StatusUnauthorized, err)
		return
	}

	if err := a.signIn(w, r, &models.User{ID: id}); err != nil {
		a.logger.Error(err.Error(), "service", "HandleRefreshToken")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, &models.HandleAuthResponse{ID: id})
}

// HandleGetProfile godoc
//
//	@Summary		Current user
//	@Tags			users
//	@Produce		json
//	@Success		200	{object}	models.User
//	@Failure		401	{object}	models.ErrorResponse
//	@Failure		404	{object}	models.ErrorResponse
//	@Router			/users/me [get]
func (a *Api) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := a.auth.GetUser(r.Context(), userIDFrom(r))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, err)
			return
		}
		a.logger.Error(err.Error(), "service", "HandleGetProfile")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, user)
}
