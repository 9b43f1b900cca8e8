package api

import (
	"fmt"
	"net/http"

	"github.com/oseayemenre/novelnest/internal/catalog"
	"github.com/oseayemenre/novelnest/internal/models"
)

func feedPage(page catalog.Page, state catalog.State) *models.FeedPageResponse {
	novels := page.Novels
	if novels == nil {
		novels = []models.Novel{}
	}
	return &models.FeedPageResponse{Novels: novels, HasMore: page.HasMore, ConnectionError: state.ConnectionError}
}

// HandleLoadFeed godoc
//
//	@Summary		Load the first feed page
//	@Description	Resets the device feed and loads the newest published novels
//	@Tags			feed
//	@Accept			json
//	@Produce		json
//	@Param			params	body		models.HandleLoadFeedParams	false	"page size"
//	@Failure		400		{object}	models.ErrorResponse
//	@Success		200		{object}	models.FeedPageResponse
//	@Router			/feed [post]
func (a *Api) HandleLoadFeed(w http.ResponseWriter, r *http.Request) {
	var params models.HandleLoadFeedParams

	if r.ContentLength > 0 {
		if err := decodeJson(r, &params); err != nil {
			a.logger.Warn(err.Error(), "service", "HandleLoadFeed")
			respondWithError(w, http.StatusBadRequest, err)
			return
		}
	}

	if err := validate.Struct(&params); err != nil {
		a.logger.Warn(fmt.Sprintf("error validating fields: %v", err), "service", "HandleLoadFeed")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("error validating fields: %v", err))
		return
	}

	feed := readerFrom(r).Feed
	page := feed.LoadInitialPage(r.Context(), params.PageSize)

	respondWithSuccess(w, http.StatusOK, feedPage(page, feed.State()))
}

// HandleLoadNextPage godoc
//
//	@Summary		Load the next feed page
//	@Description	Appends the next page after the stored cursor. Returns an empty page when there is nothing to load
//	@Tags			feed
//	@Produce		json
//	@Success		200	{object}	models.FeedPageResponse
//	@Router			/feed/next [post]
func (a *Api) HandleLoadNextPage(w http.ResponseWriter, r *http.Request) {
	feed := readerFrom(r).Feed
	page := feed.LoadNextPage(r.Context())

	respondWithSuccess(w, http.StatusOK, feedPage(page, feed.State()))
}

// HandleRetryFeed godoc
//
//	@Summary		Retry the feed
//	@Description	Clears the connection error and reloads from the first page
//	@Tags			feed
//	@Produce		json
//	@Success		200	{object}	models.FeedPageResponse
//	@Router			/feed/retry [post]
func (a *Api) HandleRetryFeed(w http.ResponseWriter, r *http.Request) {
	feed := readerFrom(r).Feed
	page := feed.Retry(r.Context())

	respondWithSuccess(w, http.StatusOK, feedPage(page, feed.State()))
}

// HandleGetFeedState godoc
//
//	@Summary		Feed state
//	@Description	Everything loaded so far plus loading and connection error flags
//	@Tags			feed
//	@Produce		json
//	@Success		200	{object}	models.FeedStateResponse
//	@Router			/feed [get]
func (a *Api) HandleGetFeedState(w http.ResponseWriter, r *http.Request) {
	state := readerFrom(r).Feed.State()

	res := &models.FeedStateResponse{
		Novels:          state.Novels,
		HasMore:         state.HasMore,
		Loading:         state.Loading,
		ConnectionError: state.ConnectionError,
		Attempts:        state.Attempts,
	}
	if res.Novels == nil {
		res.Novels = []models.Novel{}
	}
	if state.LastError != nil {
		res.LastError = state.LastError.Error()
	}

	respondWithSuccess(w, http.StatusOK, res)
}
