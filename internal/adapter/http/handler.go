// Package http is the gin transport: routing, session middleware and the
// mapping from domain errors to HTTP responses.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
	"github.com/sloanfm/biscuit/internal/usecase"
)

// User-visible messages. Internal error detail never crosses this boundary.
const (
	msgNotSignedIn     = "Not signed in."
	msgInvalidForm     = "Invalid form data."
	msgReviewNotFound  = "Review does not exist."
	msgReleaseNotFound = "Release not found."
	msgUnexpected      = "An unexpected error occurred."
)

const loginPath = "/login"

// The handler depends on the services through these interfaces so transport
// tests can stand in for them.

type reviewService interface {
	CreateOrUpdateReview(ctx context.Context, session *domain.Session, input usecase.CreateReviewInput) (*domain.Review, bool, error)
	DeleteReview(ctx context.Context, session *domain.Session, releaseID string) error
}

type feedService interface {
	GetReviews(ctx context.Context, viewer *domain.Session, params usecase.FeedParams) (*usecase.FeedPage, error)
	SearchReleases(ctx context.Context, term string, params domain.SearchParams) ([]domain.Release, error)
}

type likeService interface {
	ToggleLike(ctx context.Context, session *domain.Session, reviewID string) (*domain.LikeStatus, error)
	GetLikeStatus(ctx context.Context, session *domain.Session, reviewID string) (bool, error)
}

// Handler holds the route handlers for the JSON API.
type Handler struct {
	reviews reviewService
	feed    feedService
	likes   likeService
	logger  *logger.Logger
}

func NewHandler(reviews reviewService, feed feedService, likes likeService, log *logger.Logger) *Handler {
	return &Handler{
		reviews: reviews,
		feed:    feed,
		likes:   likes,
		logger:  log.Named("Handler"),
	}
}

// createReviewRequest is the review submission body.
type createReviewRequest struct {
	ReleaseID     string  `json:"releaseId" form:"releaseId" binding:"required"`
	ArtistID      string  `json:"artistId" form:"artistId" binding:"required"`
	Rating        float64 `json:"rating" form:"rating"`
	Content       string  `json:"content" form:"content"`
	ShouldPublish bool    `json:"shouldPublish" form:"shouldPublish"`
}

func (h *Handler) GetFeed(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.Query("limit"), 10, 64)
	params := usecase.FeedParams{
		SortBy: domain.FeedSort(c.Query("sortBy")),
		Limit:  limit,
		Author: c.Query("author"),
	}

	page, err := h.feed.GetReviews(c.Request.Context(), sessionFromContext(c), params)
	if err != nil {
		h.respondError(c, err, msgReleaseNotFound)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) CreateReview(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgNotSignedIn})
		return
	}

	var req createReviewRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidForm})
		return
	}

	review, created, err := h.reviews.CreateOrUpdateReview(c.Request.Context(), session, usecase.CreateReviewInput{
		ReleaseID:     req.ReleaseID,
		ArtistID:      req.ArtistID,
		Rating:        req.Rating,
		Content:       req.Content,
		ShouldPublish: req.ShouldPublish,
	})
	if err != nil {
		h.respondError(c, err, msgReviewNotFound)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, review)
}

func (h *Handler) DeleteReview(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgNotSignedIn})
		return
	}

	if err := h.reviews.DeleteReview(c.Request.Context(), session, c.Param("releaseId")); err != nil {
		h.respondError(c, err, msgReviewNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleLike flips the viewer's like. An anonymous viewer is sent to the
// sign-in page rather than handed an error payload, since this route is hit
// straight from a form.
func (h *Handler) ToggleLike(c *gin.Context) {
	status, err := h.likes.ToggleLike(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			c.Redirect(http.StatusSeeOther, loginPath)
			return
		}
		h.respondError(c, err, msgReviewNotFound)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) GetLikeStatus(c *gin.Context) {
	liked, err := h.likes.GetLikeStatus(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, msgReviewNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasLiked": liked})
}

func (h *Handler) SearchReleases(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	params := domain.SearchParams{
		Limit:    limit,
		Explicit: c.Query("explicit") == "true",
	}

	releases, err := h.feed.SearchReleases(c.Request.Context(), c.Query("term"), params)
	if err != nil {
		h.respondError(c, err, msgReleaseNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": releases})
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps a domain error to a status and user-visible message.
// notFoundMessage names the entity the route was looking for.
func (h *Handler) respondError(c *gin.Context, err error, notFoundMessage string) {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgNotSignedIn})
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidForm})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage})
	case errors.Is(err, domain.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": msgUnexpected})
	case errors.Is(err, domain.ErrCatalogUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": msgUnexpected})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgUnexpected})
	}
}
