package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/oseayemenre/novelnest/internal/models"
)

// HandleSearch godoc
//
//	@Summary		Search published novels
//	@Description	Case-insensitive match on title, author or genre. The term is saved to the search history
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"search term"
//	@Success		200	{object}	models.HandleSearchResponse
//	@Failure		400	{object}	models.ErrorResponse
//	@Failure		500	{object}	models.ErrorResponse
//	@Router			/search [get]
func (a *Api) HandleSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("search term is required"))
		return
	}

	results, err := a.search.Search(r.Context(), term)
	if err != nil {
		a.logger.Error(err.Error(), "service", "HandleSearch")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	if _, err := readerFrom(r).Search.Add(term); err != nil {
		a.logger.Warn(err.Error(), "service", "HandleSearch")
	}

	respondWithSuccess(w, http.StatusOK, &models.HandleSearchResponse{Novels: results})
}

// HandleGetSearchHistory godoc
//
//	@Summary		Recent search terms
//	@Description	The last five unique terms, most recent first
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	models.HandleSearchHistoryResponse
//	@Failure		500	{object}	models.ErrorResponse
//	@Router			/search/history [get]
func (a *Api) HandleGetSearchHistory(w http.ResponseWriter, r *http.Request) {
	terms, err := readerFrom(r).Search.Terms()
	if err != nil {
		a.logger.Error(err.Error(), "service", "HandleGetSearchHistory")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, &models.HandleSearchHistoryResponse{Terms: terms})
}
