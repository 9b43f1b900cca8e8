package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oseayemenre/novelnest/internal/chapters"
	"github.com/oseayemenre/novelnest/internal/models"
	"github.com/oseayemenre/novelnest/internal/novels"
)

var errMembershipRequired = errors.New("an active membership is required to read this chapter")

// HandleGetChapters godoc
//
//	@Summary		List chapters
//	@Description	Chapter titles and numbers without content, in reading order
//	@Tags			chapters
//	@Produce		json
//	@Param			novelId	path		string	true	"novel id"
//	@Success		200		{object}	models.HandleGetChaptersResponse
//	@Failure		404		{object}	models.ErrorResponse
//	@Failure		500		{object}	models.ErrorResponse
//	@Router			/novels/{novelId}/chapters [get]
func (a *Api) HandleGetChapters(w http.ResponseWriter, r *http.Request) {
	if !a.novelVisible(w, r, "HandleGetChapters") {
		return
	}

	list := a.chapters.ListChapters(r.Context(), chi.URLParam(r, "novelId"))
	if list == nil {
		list = []models.ChapterSummary{}
	}

	respondWithSuccess(w, http.StatusOK, &models.HandleGetChaptersResponse{Chapters: list})
}

// HandleGetChapter godoc
//
//	@Summary		Read a chapter
//	@Description	Full chapter content. Premium chapters need an active membership
//	@Tags			chapters
//	@Produce		json
//	@Param			novelId		path		string	true	"novel id"
//	@Param			chapterId	path		string	true	"chapter id"
//	@Success		200			{object}	models.Chapter
//	@Failure		402			{object}	models.ErrorResponse
//	@Failure		404			{object}	models.ErrorResponse
//	@Failure		500			{object}	models.ErrorResponse
//	@Router			/novels/{novelId}/chapters/{chapterId} [get]
func (a *Api) HandleGetChapter(w http.ResponseWriter, r *http.Request) {
	if !a.novelVisible(w, r, "HandleGetChapter") {
		return
	}

	chapter, err := a.chapters.GetChapterContent(r.Context(), chi.URLParam(r, "novelId"), chi.URLParam(r, "chapterId"))
	if err != nil {
		if errors.Is(err, chapters.ErrChapterNotFound) {
			respondWithError(w, http.StatusNotFound, err)
			return
		}
		a.logger.Error(err.Error(), "service", "HandleGetChapter")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	if chapter.IsPremium && !readerFrom(r).Gate.Allows() {
		respondWithError(w, http.StatusPaymentRequired, errMembershipRequired)
		return
	}

	respondWithSuccess(w, http.StatusOK, chapter)
}

// novelVisible writes a 404 unless the novel exists and is published or the
// caller may view drafts.
func (a *Api) novelVisible(w http.ResponseWriter, r *http.Request, service string) bool {
	novel, err := a.novels.Get(r.Context(), chi.URLParam(r, "novelId"))
	if err != nil {
		if errors.Is(err, novels.ErrNovelNotFound) {
			respondWithError(w, http.StatusNotFound, err)
			return false
		}
		a.logger.Error(err.Error(), "service", service)
		respondWithError(w, http.StatusInternalServerError, err)
		return false
	}

	if !novel.Published && !a.canViewDrafts(r) {
		respondWithError(w, http.StatusNotFound, novels.ErrNovelNotFound)
		return false
	}
	return true
}

// HandleAddChapter godoc
//
//	@Summary		Add a chapter
//	@Tags			chapters
//	@Accept			json
//	@Produce		json
//	@Param			novelId	path		string							true	"novel id"
//	@Param			chapter	body		models.HandleAddChapterParams	true	"chapter"
//	@Success		201		{object}	models.HandleAddChapterResponse
//	@Failure		400		{object}	models.ErrorResponse
//	@Failure		404		{object}	models.ErrorResponse
//	@Failure		500		{object}	models.ErrorResponse
//	@Router			/novels/{novelId}/chapters [post]
func (a *Api) HandleAddChapter(w http.ResponseWriter, r *http.Request) {
	var params models.HandleAddChapterParams

	if err := decodeJson(r, &params); err != nil {
		a.logger.Warn(err.Error(), "service", "HandleAddChapter")
		respondWithError(w, http.StatusBadRequest, err)
		return
	}

	if err := validate.Struct(&params); err != nil {
		a.logger.Warn(fmt.Sprintf("error validating fields: %v", err), "service", "HandleAddChapter")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("error validating fields: %v", err))
		return
	}

	chapter, err := a.novels.AddChapter(r.Context(), chi.URLParam(r, "novelId"), models.Chapter{
		Number:    params.Number,
		Title:     params.Title,
		Content:   params.Content,
		IsPremium: params.IsPremium,
	})
	if err != nil {
		if errors.Is(err, novels.ErrNovelNotFound) {
			respondWithError(w, http.StatusNotFound, err)
			return
		}
		a.logger.Error(err.Error(), "service", "HandleAddChapter")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	respondWithSuccess(w, http.StatusCreated, &models.HandleAddChapterResponse{ID: chapter.ID})
}
