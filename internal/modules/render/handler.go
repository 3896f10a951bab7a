package render

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ai-narray/core/internal/modules/deck"
	"github.com/ai-narray/core/internal/pkg/response"
)

type Handler struct {
	compositor *Compositor
}

func NewHandler(compositor *Compositor) *Handler {
	return &Handler{compositor: compositor}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	decks := rg.Group("/decks")
	decks.POST("/:id/render", h.startRender)
	decks.GET("/:id/render/artifact", h.artifactInfo)
	decks.GET("/:id/render/artifact/download", h.download)
	decks.DELETE("/:id/render/artifact", h.deleteArtifact)
}

func (h *Handler) startRender(c *gin.Context) {
	task, err := h.compositor.StartRender(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, deck.ErrDeckNotFound):
		response.NotFound(c)
	case errors.Is(err, ErrNotReady):
		response.UnprocessableEntity(c, "every slide needs a script and audio before rendering")
	case errors.Is(err, deck.ErrBusy):
		response.Conflict(c, err.Error())
	case err != nil:
		response.InternalError(c, err)
	default:
		response.Accepted(c, task)
	}
}

func (h *Handler) artifactInfo(c *gin.Context) {
	artifact, ok := h.compositor.ArtifactFor(c.Param("id"))
	if !ok {
		response.NotFoundMsg(c, "no artifact for this deck")
		return
	}
	response.OK(c, artifact)
}

func (h *Handler) download(c *gin.Context) {
	artifact, ok := h.compositor.ArtifactFor(c.Param("id"))
	if !ok {
		response.NotFoundMsg(c, "no artifact for this deck")
		return
	}
	c.FileAttachment(artifact.Path, artifact.Filename)
}

func (h *Handler) deleteArtifact(c *gin.Context) {
	if !h.compositor.RemoveArtifact(c.Param("id")) {
		response.NotFound(c)
		return
	}
	response.NoContent(c)
}
