package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oseayemenre/novelnest/internal/models"
)

// HandleToggleBookmark godoc
//
//	@Summary		Toggle a bookmark
//	@Tags			reading
//	@Produce		json
//	@Param			novelId	path		string	true	"novel id"
//	@Success		200		{object}	models.HandleToggleBookmarkResponse
//	@Router			/novels/{novelId}/bookmark [put]
func (a *Api) HandleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	bookmarked := readerFrom(r).Reading.ToggleBookmark(chi.URLParam(r, "novelId"))

	respondWithSuccess(w, http.StatusOK, &models.HandleToggleBookmarkResponse{Bookmarked: bookmarked})
}

// HandleGetBookmarks godoc
//
//	@Summary		Bookmarked novel ids
//	@Tags			reading
//	@Produce		json
//	@Success		200	{object}	models.HandleGetBookmarksResponse
//	@Router			/bookmarks [get]
func (a *Api) HandleGetBookmarks(w http.ResponseWriter, r *http.Request) {
	respondWithSuccess(w, http.StatusOK, &models.HandleGetBookmarksResponse{Bookmarks: readerFrom(r).Reading.Bookmarks()})
}

// HandleGetHistory godoc
//
//	@Summary		Reading history
//	@Description	Up to 50 chapters, most recent first
//	@Tags			reading
//	@Produce		json
//	@Success		200	{object}	models.HandleGetHistoryResponse
//	@Router			/history [get]
func (a *Api) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	respondWithSuccess(w, http.StatusOK, &models.HandleGetHistoryResponse{History: readerFrom(r).Reading.History()})
}

// HandleAddToHistory godoc
//
//	@Summary		Record a chapter read
//	@Tags			reading
//	@Accept			json
//	@Produce		json
//	@Param			entry	body		models.HandleAddToHistoryParams	true	"entry"
//	@Success		201		{object}	models.HandleGetHistoryResponse
//	@Failure		400		{object}	models.ErrorResponse
//	@Router			/history [post]
func (a *Api) HandleAddToHistory(w http.ResponseWriter, r *http.Request) {
	var params models.HandleAddToHistoryParams

	if err := decodeJson(r, &params); err != nil {
		a.logger.Warn(err.Error(), "service", "HandleAddToHistory")
		respondWithError(w, http.StatusBadRequest, err)
		return
	}

	if err := validate.Struct(&params); err != nil {
		a.logger.Warn(fmt.Sprintf("error validating fields: %v", err), "service", "HandleAddToHistory")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("error validating fields: %v", err))
		return
	}

	state := readerFrom(r).Reading
	state.AddToHistory(models.HistoryEntry{
		NovelID:      params.NovelID,
		ChapterID:    params.ChapterID,
		NovelTitle:   params.NovelTitle,
		ChapterTitle: params.ChapterTitle,
	})

	respondWithSuccess(w, http.StatusCreated, &models.HandleGetHistoryResponse{History: state.History()})
}

// HandleUpdateProgress godoc
//
//	@Summary		Save reading progress
//	@Description	Fraction of the chapter read. Values are clamped to [0,1]
//	@Tags			reading
//	@Accept			json
//	@Produce		json
//	@Param			novelId		path		string								true	"novel id"
//	@Param			chapterId	path		string								true	"chapter id"
//	@Param			progress	body		models.HandleUpdateProgressParams	true	"progress"
//	@Success		200			{object}	models.HandleGetProgressResponse
//	@Failure		400			{object}	models.ErrorResponse
//	@Router			/novels/{novelId}/chapters/{chapterId}/progress [put]
func (a *Api) HandleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var params models.HandleUpdateProgressParams

	if err := decodeJson(r, &params); err != nil {
		a.logger.Warn(err.Error(), "service", "HandleUpdateProgress")
		respondWithError(w, http.StatusBadRequest, err)
		return
	}

	if err := validate.Struct(&params); err != nil {
		a.logger.Warn(fmt.Sprintf("error validating fields: %v", err), "service", "HandleUpdateProgress")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("error validating fields: %v", err))
		return
	}

	novelID, chapterID := chi.URLParam(r, "novelId"), chi.URLParam(r, "chapterId")
	state := readerFrom(r).Reading
	state.UpdateProgress(novelID, chapterID, *params.Fraction)

	respondWithSuccess(w, http.StatusOK, &models.HandleGetProgressResponse{Fraction: state.Progress(novelID, chapterID)})
}

// HandleGetProgress godoc
//
//	@Summary		Reading progress for a chapter
//	@Tags			reading
//	@Produce		json
//	@Param			novelId		path		string	true	"novel id"
//	@Param			chapterId	path		string	true	"chapter id"
//	@Success		200			{object}	models.HandleGetProgressResponse
//	@Router			/novels/{novelId}/chapters/{chapterId}/progress [get]
func (a *Api) HandleGetProgress(w http.ResponseWriter, r *http.Request) {
	fraction := readerFrom(r).Reading.Progress(chi.URLParam(r, "novelId"), chi.URLParam(r, "chapterId"))

	respondWithSuccess(w, http.StatusOK, &models.HandleGetProgressResponse{Fraction: fraction})
}
