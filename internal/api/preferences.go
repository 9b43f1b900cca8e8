package api

import (
	"fmt"
	"net/http"

	"github.com/oseayemenre/novelnest/internal/localstore"
	"github.com/oseayemenre/novelnest/internal/models"
)

// HandleGetPreferences godoc
//
//	@Summary		Display preferences
//	@Tags			preferences
//	@Produce		json
//	@Success		200	{object}	models.Preferences
//	@Failure		500	{object}	models.ErrorResponse
//	@Router			/preferences [get]
func (a *Api) HandleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := localstore.LoadPreferences(readerFrom(r).Local)
	if err != nil {
		a.logger.Error(err.Error(), "service", "HandleGetPreferences")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, &models.Preferences{Theme: prefs.Theme, FontSize: prefs.FontSize, LastView: prefs.LastView})
}

// HandleUpdatePreferences godoc
//
//	@Summary		Update display preferences
//	@Description	Only the fields sent are changed
//	@Tags			preferences
//	@Accept			json
//	@Produce		json
//	@Param			preferences	body		models.Preferences	true	"preferences"
//	@Success		200			{object}	models.Preferences
//	@Failure		400			{object}	models.ErrorResponse
//	@Failure		500			{object}	models.ErrorResponse
//	@Router			/preferences [put]
func (a *Api) HandleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var params models.Preferences

	if err := decodeJson(r, &params); err != nil {
		a.logger.Warn(err.Error(), "service", "HandleUpdatePreferences")
		respondWithError(w, http.StatusBadRequest, err)
		return
	}

	if err := validate.Struct(&params); err != nil {
		a.logger.Warn(fmt.Sprintf("error validating fields: %v", err), "service", "HandleUpdatePreferences")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("error validating fields: %v", err))
		return
	}

	local := readerFrom(r).Local
	if err := localstore.SavePreferences(local, localstore.Preferences{Theme: params.Theme, FontSize: params.FontSize, LastView: params.LastView}); err != nil {
		a.logger.Error(err.Error(), "service", "HandleUpdatePreferences")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	a.HandleGetPreferences(w, r)
}
