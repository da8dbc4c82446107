package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundErrorResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedErrorResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthCheckHandler)

	// content
	router.HandlerFunc(http.MethodGet, "/v1/blog", app.listPostsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/blog/:slug", app.getPostHandler)
	router.HandlerFunc(http.MethodGet, "/v1/blog-cache/stats", app.cacheStatsHandler)

	// comments
	router.HandlerFunc(http.MethodGet, "/v1/comments/:slug", app.listCommentsHandler)
	router.HandlerFunc(http.MethodPost, "/v1/comments/:slug", app.submitCommentHandler)
	router.HandlerFunc(http.MethodGet, "/v1/comments/:slug/stats", app.commentStatsHandler)
	router.HandlerFunc(http.MethodPost, "/v1/comment-votes/:id/like", app.likeCommentHandler)
	router.HandlerFunc(http.MethodPost, "/v1/comment-votes/:id/helpful", app.helpfulCommentHandler)

	return app.recoverPanic(app.logRequest(app.enableCORS(app.rateLimit(router))))
}
