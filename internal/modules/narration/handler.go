package narration

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ai-narray/core/internal/modules/deck"
	"github.com/ai-narray/core/internal/pkg/pcm"
	"github.com/ai-narray/core/internal/pkg/response"
	"github.com/ai-narray/core/internal/pkg/retry"
)

type Handler struct {
	orch   *Orchestrator
	status *CredentialStatus
}

func NewHandler(orch *Orchestrator, status *CredentialStatus) *Handler {
	return &Handler{orch: orch, status: status}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	ai := rg.Group("/ai")
	ai.GET("/options", h.options)
	ai.GET("/status", h.credentialStatus)
	ai.POST("/probe", h.probe)

	decks := rg.Group("/decks")
	decks.POST("/:id/slides/:slideId/script/generate", h.generateSlideScript)
	decks.POST("/:id/scripts/generate", h.generateAllScripts)
	decks.POST("/:id/audio/generate", h.generateAllAudio)
	decks.POST("/:id/speech/preview", h.previewSpeech)
}

func (h *Handler) options(c *gin.Context) {
	response.OK(c, gin.H{
		"styles": StyleOptions,
		"tones":  ToneOptions,
		"voices": VoiceOptions,
		"speeds": deck.SpeedPresets,
	})
}

func (h *Handler) credentialStatus(c *gin.Context) {
	valid, known := h.status.Snapshot()
	response.OK(c, gin.H{
		"valid": valid,
		"known": known,
	})
}

func (h *Handler) probe(c *gin.Context) {
	if err := h.orch.Probe(c.Request.Context()); err != nil {
		response.OK(c, gin.H{"valid": false, "error": err.Error()})
		return
	}
	response.OK(c, gin.H{"valid": true})
}

func (h *Handler) generateSlideScript(c *gin.Context) {
	result, err := h.orch.GenerateSlideScript(c.Request.Context(), c.Param("id"), c.Param("slideId"))
	switch {
	case errors.Is(err, deck.ErrDeckNotFound), errors.Is(err, deck.ErrSlideNotFound):
		response.NotFound(c)
	case err != nil:
		response.InternalError(c, err)
	default:
		response.OK(c, result)
	}
}

func (h *Handler) generateAllScripts(c *gin.Context) {
	results, err := h.orch.GenerateAllScripts(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, deck.ErrDeckNotFound):
		response.NotFound(c)
	case errors.Is(err, deck.ErrBusy):
		response.Conflict(c, err.Error())
	case errors.Is(err, retry.ErrInvalidCredential):
		response.UnprocessableEntity(c, err.Error())
	case err != nil:
		response.InternalError(c, err)
	default:
		response.OK(c, gin.H{"results": results})
	}
}

func (h *Handler) generateAllAudio(c *gin.Context) {
	task, err := h.orch.StartAudioGeneration(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, deck.ErrDeckNotFound):
		response.NotFound(c)
	case errors.Is(err, deck.ErrBusy):
		response.Conflict(c, err.Error())
	case err != nil:
		response.InternalError(c, err)
	default:
		response.Accepted(c, task)
	}
}

type previewSpeechDTO struct {
	Text string `json:"text"`
}

// previewSpeech returns the synthesized audio as WAV for direct
// playback. Synthesis failures answer 204: preview is best-effort.
func (h *Handler) previewSpeech(c *gin.Context) {
	var dto previewSpeechDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	text := strings.TrimSpace(dto.Text)
	if text == "" {
		response.BadRequest(c, "text is required")
		return
	}

	audio, ok := h.orch.PreviewSpeech(c.Request.Context(), c.Param("id"), text)
	if !ok {
		response.NoContent(c)
		return
	}
	c.Data(http.StatusOK, "audio/wav", pcm.WAV(audio))
}
