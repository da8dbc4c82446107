package main

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/commentservice"
	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/common"
	"github.com/narkinsbuilders/narkins-builders-new-sub000/internal/contentservice"
)

func (app *application) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	index, err := app.contentManager.ListPosts(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{
		"success":     true,
		"posts":       index.Posts,
		"totalPosts":  index.TotalPosts,
		"lastUpdated": index.LastUpdated,
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) getPostHandler(w http.ResponseWriter, r *http.Request) {
	slug := app.readSlugParam(r)
	if !contentservice.SlugRX.MatchString(slug) {
		app.notFoundErrorResponse(w, r)
		return
	}

	entry, err := app.contentManager.GetCompiled(r.Context(), slug)
	if err != nil {
		switch {
		case errors.Is(err, contentservice.ErrContentNotFound), errors.Is(err, fs.ErrNotExist):
			app.notFoundErrorResponse(w, r)
		case errors.Is(err, contentservice.ErrContentUnavailable):
			app.contentUnavailableResponse(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "post": entry}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) cacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	err := app.writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"stats":   app.contentManager.Stats(),
		"workers": app.contentManager.Workers(),
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	slug := app.readSlugParam(r)

	comments, err := app.commentService.ListApproved(r.Context(), slug, r.URL.Query().Get("sort"))
	if err != nil {
		switch {
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "comments": comments}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) commentStatsHandler(w http.ResponseWriter, r *http.Request) {
	slug := app.readSlugParam(r)

	stats, err := app.commentService.Stats(r.Context(), slug)
	if err != nil {
		switch {
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "stats": stats}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) submitCommentHandler(w http.ResponseWriter, r *http.Request) {
	var input commentservice.SubmitCommentRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	input.BlogSlug = app.readSlugParam(r)
	input.SourceIP = app.clientIP(r)

	res, err := app.commentService.Submit(r.Context(), &input)
	if err != nil {
		switch {
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			if validationErr.Errors["blog_slug"] == commentservice.UnknownPostMessage {
				app.notFoundErrorResponse(w, r)
				return
			}
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		case errors.Is(err, commentservice.ErrCaptchaFailed):
			app.captchaFailedResponse(w, r)
		case errors.Is(err, commentservice.ErrRateLimited):
			app.rateLimitExceededResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	message := "Comment posted."
	if res.Pending {
		message = "Comment submitted and awaiting moderation."
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{
		"success": true,
		"message": message,
		"comment": res,
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) likeCommentHandler(w http.ResponseWriter, r *http.Request) {
	res, ok := app.vote(w, r, commentservice.VoteLike)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"success": true, "liked": res.DidApply, "likeCount": res.NewCount}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) helpfulCommentHandler(w http.ResponseWriter, r *http.Request) {
	res, ok := app.vote(w, r, commentservice.VoteHelpful)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"success": true, "voted": res.DidApply, "helpfulCount": res.NewCount}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// vote writes the error response itself and reports false when the vote did not go through.
func (app *application) vote(w http.ResponseWriter, r *http.Request, kind commentservice.VoteKind) (*commentservice.VoteResult, bool) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return nil, false
	}

	res, err := app.commentService.Vote(r.Context(), id, app.voterIdentity(r), kind)
	if err != nil {
		switch {
		case errors.Is(err, commentservice.ErrCommentNotFound):
			app.notFoundErrorResponse(w, r)
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return nil, false
	}

	return res, true
}
