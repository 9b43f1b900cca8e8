package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oseayemenre/novelnest/internal/models"
	"github.com/oseayemenre/novelnest/internal/novels"
	"github.com/oseayemenre/novelnest/internal/objectstore"
)

const maxNovelForm = objectstore.MaxImageSize + 1<<20

// HandleCreateNovel godoc
//
//	@Summary		Create a novel
//	@Description	Creates an unpublished novel with an optional cover image
//	@Tags			novels
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			title			formData	string	true	"Title"
//	@Param			author			formData	string	true	"Author"
//	@Param			genre			formData	string	true	"Genre"
//	@Param			summary			formData	string	true	"Summary"
//	@Param			status			formData	string	false	"Ongoing or Completed"
//	@Param			total_chapters	formData	int		false	"Planned chapter count"
//	@Param			featured		formData	bool	false	"Featured"
//	@Param			cover			formData	file	false	"Cover image (max 5MB)"
//	@Success		201				{object}	models.HandleCreateNovelResponse
//	@Failure		400				{object}	models.ErrorResponse
//	@Failure		401				{object}	models.ErrorResponse
//	@Failure		403				{object}	models.ErrorResponse
//	@Failure		413				{object}	models.ErrorResponse
//	@Failure		502				{object}	models.ErrorResponse
//	@Router			/novels [post]
func (a *Api) HandleCreateNovel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNovelForm)

	if err := r.ParseMultipartForm(maxNovelForm); err != nil {
		a.logger.Warn(fmt.Sprintf("error parsing form: %v", err), "service", "HandleCreateNovel")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("error parsing form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	params := models.HandleCreateNovelRequest{
		Title:   r.FormValue("title"),
		Author:  r.FormValue("author"),
		Genre:   r.FormValue("genre"),
		Summary: r.FormValue("summary"),
		Status:  r.FormValue("status"),
	}

	if v := r.FormValue("total_chapters"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			a.logger.Warn("total_chapters must be a number", "service", "HandleCreateNovel")
			respondWithError(w, http.StatusBadRequest, fmt.Errorf("total_chapters must be a number"))
			return
		}
		params.TotalChapters = n
	}
	params.Featured, _ = strconv.ParseBool(r.FormValue("featured"))

	if err := validate.Struct(&params); err != nil {
		a.logger.Warn(fmt.Sprintf("validation error: %v", err), "service", "HandleCreateNovel")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("validation error: %v", err))
		return
	}

	var cover io.Reader
	file, _, err := r.FormFile("cover")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		a.logger.Warn(fmt.Sprintf("error reading cover: %v", err), "service", "HandleCreateNovel")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("error reading cover: %v", err))
		return
	}
	if err == nil {
		defer file.Close()

		data, _, err := objectstore.ReadImage(file)
		if err != nil {
			code := http.StatusBadRequest
			if errors.Is(err, objectstore.ErrFileTooLarge) {
				code = http.StatusRequestEntityTooLarge
			}
			a.logger.Warn(err.Error(), "service", "HandleCreateNovel")
			respondWithError(w, code, errors.New(objectstore.UserMessage(err)))
			return
		}
		cover = bytes.NewReader(data)
	}

	novel, err := a.novels.Create(r.Context(), novels.CreateInput{
		Title:         params.Title,
		Author:        params.Author,
		Genre:         params.Genre,
		Summary:       params.Summary,
		Status:        models.NovelStatus(params.Status),
		TotalChapters: params.TotalChapters,
		Featured:      params.Featured,
	}, cover)
	if err != nil {
		a.logger.Error(err.Error(), "service", "HandleCreateNovel")
		if errors.Is(err, novels.ErrCoverUpload) {
			respondWithError(w, http.StatusBadGateway, errors.New(objectstore.UserMessage(err)))
			return
		}
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	respondWithSuccess(w, http.StatusCreated, &models.HandleCreateNovelResponse{ID: novel.ID})
}

// HandleGetNovel godoc
//
//	@Summary		Get a novel
//	@Description	Returns a published novel and counts a view. Editors can also read drafts
//	@Tags			novels
//	@Produce		json
//	@Param			novelId	path		string	true	"novel id"
//	@Success		200		{object}	models.Novel
//	@Failure		404		{object}	models.ErrorResponse
//	@Failure		500		{object}	models.ErrorResponse
//	@Router			/novels/{novelId} [get]
func (a *Api) HandleGetNovel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "novelId")

	novel, err := a.novels.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, novels.ErrNovelNotFound) {
			respondWithError(w, http.StatusNotFound, err)
			return
		}
		a.logger.Error(err.Error(), "service", "HandleGetNovel")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	if !novel.Published && !a.canViewDrafts(r) {
		respondWithError(w, http.StatusNotFound, novels.ErrNovelNotFound)
		return
	}

	if novel.Published {
		a.novels.RecordView(novel.ID)
	}

	respondWithSuccess(w, http.StatusOK, novel)
}

// HandlePublishNovel godoc
//
//	@Summary		Publish or unpublish a novel
//	@Tags			novels
//	@Accept			json
//	@Produce		json
//	@Param			novelId	path		string							true	"novel id"
//	@Param			params	body		models.HandlePublishNovelParams	true	"published"
//	@Success		200		{object}	models.MessageResponse
//	@Failure		400		{object}	models.ErrorResponse
//	@Failure		404		{object}	models.ErrorResponse
//	@Failure		500		{object}	models.ErrorResponse
//	@Router			/novels/{novelId}/publish [patch]
func (a *Api) HandlePublishNovel(w http.ResponseWriter, r *http.Request) {
	var params models.HandlePublishNovelParams

	if err := decodeJson(r, &params); err != nil {
		a.logger.Warn(err.Error(), "service", "HandlePublishNovel")
		respondWithError(w, http.StatusBadRequest, err)
		return
	}

	if err := validate.Struct(&params); err != nil {
		a.logger.Warn(fmt.Sprintf("error validating fields: %v", err), "service", "HandlePublishNovel")
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("error validating fields: %v", err))
		return
	}

	if err := a.novels.SetPublished(r.Context(), chi.URLParam(r, "novelId"), *params.Published); err != nil {
		if errors.Is(err, novels.ErrNovelNotFound) {
			respondWithError(w, http.StatusNotFound, err)
			return
		}
		a.logger.Error(err.Error(), "service", "HandlePublishNovel")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	msg := "novel unpublished"
	if *params.Published {
		msg = "novel published"
	}
	respondWithSuccess(w, http.StatusOK, &models.MessageResponse{Message: msg})
}

// HandleDeleteNovel godoc
//
//	@Summary		Delete a novel
//	@Description	Deletes the novel and its chapters
//	@Tags			novels
//	@Param			novelId	path	string	true	"novel id"
//	@Success		204
//	@Failure		404	{object}	models.ErrorResponse
//	@Failure		500	{object}	models.ErrorResponse
//	@Router			/novels/{novelId} [delete]
func (a *Api) HandleDeleteNovel(w http.ResponseWriter, r *http.Request) {
	if err := a.novels.Delete(r.Context(), chi.URLParam(r, "novelId")); err != nil {
		if errors.Is(err, novels.ErrNovelNotFound) {
			respondWithError(w, http.StatusNotFound, err)
			return
		}
		a.logger.Error(err.Error(), "service", "HandleDeleteNovel")
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
