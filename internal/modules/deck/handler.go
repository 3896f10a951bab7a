package deck

import (
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ai-narray/core/internal/pkg/response"
)

type Handler struct {
	store      *Store
	rasterizer *Rasterizer
	uploadsDir string
}

func NewHandler(store *Store, rasterizer *Rasterizer, uploadsDir string) *Handler {
	return &Handler{
		store:      store,
		rasterizer: rasterizer,
		uploadsDir: uploadsDir,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/decks")

	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.updateConfig)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/steps", h.steps)

	g.POST("/:id/slides", h.uploadSlides)
	g.GET("/:id/slides/:slideId/image", h.slideImage)
	g.PATCH("/:id/slides/:slideId/script", h.updateScript)
	g.DELETE("/:id/slides/:slideId", h.removeSlide)
}

type createDeckDTO struct {
	Aspect string  `json:"aspect"`
	Style  string  `json:"style"`
	Tone   string  `json:"tone"`
	Voice  string  `json:"voice"`
	Speed  float64 `json:"speed"`
}

func (h *Handler) create(c *gin.Context) {
	var dto createDeckDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	aspect := AspectRatio(dto.Aspect)
	if dto.Aspect == "" {
		aspect = AspectLandscape
	}
	if !aspect.Valid() {
		response.BadRequest(c, "aspect must be 16:9 or 9:16")
		return
	}
	if dto.Speed == 0 {
		dto.Speed = 1.0
	}
	if !ValidSpeed(dto.Speed) {
		response.BadRequest(c, "speed must be one of 0.8, 1.0, 1.2")
		return
	}

	d := h.store.Create(aspect, dto.Style, dto.Tone, dto.Voice, dto.Speed)
	response.Created(c, d)
}

func (h *Handler) get(c *gin.Context) {
	d, err := h.store.Get(c.Param("id"))
	if err != nil {
		response.NotFound(c)
		return
	}
	response.OK(c, d)
}

type updateDeckDTO struct {
	Style *string  `json:"style"`
	Tone  *string  `json:"tone"`
	Voice *string  `json:"voice"`
	Speed *float64 `json:"speed"`
}

// updateConfig changes session options. Existing scripts are kept even
// when style or tone changes; regeneration is an explicit user action.
func (h *Handler) updateConfig(c *gin.Context) {
	var dto updateDeckDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if dto.Speed != nil && !ValidSpeed(*dto.Speed) {
		response.BadRequest(c, "speed must be one of 0.8, 1.0, 1.2")
		return
	}

	err := h.store.UpdateConfig(c.Param("id"), func(d *Deck) {
		if dto.Style != nil {
			d.Style = *dto.Style
		}
		if dto.Tone != nil {
			d.Tone = *dto.Tone
		}
		if dto.Voice != nil {
			d.Voice = *dto.Voice
		}
		if dto.Speed != nil {
			d.Speed = *dto.Speed
		}
	})
	if err != nil {
		response.NotFound(c)
		return
	}

	d, _ := h.store.Get(c.Param("id"))
	response.OK(c, d)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		response.NotFound(c)
		return
	}
	response.NoContent(c)
}

func (h *Handler) steps(c *gin.Context) {
	d, err := h.store.Get(c.Param("id"))
	if err != nil {
		response.NotFound(c)
		return
	}
	response.OK(c, d.steps())
}

// uploadSlides accepts a multipart form of images and PDF documents.
// PDFs are rasterized into one slide per page; everything else enters
// as a single slide. Unsupported files are reported back, not fatal.
func (h *Handler) uploadSlides(c *gin.Context) {
	deckID := c.Param("id")
	if _, err := h.store.Get(deckID); err != nil {
		response.NotFound(c)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.BadRequest(c, "files is required")
		return
	}

	dir := filepath.Join(h.uploadsDir, deckID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		response.InternalError(c, err)
		return
	}

	added := make([]*Slide, 0, len(files))
	skipped := make([]string, 0)
	for _, fh := range files {
		slides, err := h.intake(c, fh, dir, deckID)
		if err != nil {
			skipped = append(skipped, fh.Filename)
			continue
		}
		added = append(added, slides...)
	}

	if len(added) == 0 {
		response.UnprocessableEntity(c, "no usable images in upload")
		return
	}
	response.Created(c, gin.H{
		"slides":  added,
		"skipped": skipped,
	})
}

func (h *Handler) intake(c *gin.Context, fh *multipart.FileHeader, dir, deckID string) ([]*Slide, error) {
	if isPDF(fh.Filename) {
		pdfPath := filepath.Join(dir, uuid.NewString()+".pdf")
		if err := c.SaveUploadedFile(fh, pdfPath); err != nil {
			return nil, err
		}
		defer os.Remove(pdfPath)

		pages, err := h.rasterizer.Rasterize(c.Request.Context(), pdfPath, dir)
		if err != nil {
			return nil, err
		}
		slides := make([]*Slide, 0, len(pages))
		for _, page := range pages {
			sl, err := h.store.AppendSlide(deckID, page, "image/png")
			if err != nil {
				removeAll(pages[len(slides):])
				return nil, err
			}
			slides = append(slides, sl)
		}
		return slides, nil
	}

	mime := mimeForPath(fh.Filename)
	if mime == "" {
		return nil, errors.New("unsupported file type")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	path := filepath.Join(dir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(fh, path); err != nil {
		return nil, err
	}
	sl, err := h.store.AppendSlide(deckID, path, mime)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return []*Slide{sl}, nil
}

func (h *Handler) slideImage(c *gin.Context) {
	d, err := h.store.Get(c.Param("id"))
	if err != nil {
		response.NotFound(c)
		return
	}
	slideID := c.Param("slideId")
	for _, sl := range d.Slides {
		if sl.ID == slideID {
			c.Header("Cache-Control", "private, max-age=3600")
			c.File(sl.ImagePath)
			return
		}
	}
	response.NotFound(c)
}

type updateScriptDTO struct {
	Script string `json:"script"`
}

func (h *Handler) updateScript(c *gin.Context) {
	var dto updateScriptDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	err := h.store.SetScript(c.Param("id"), c.Param("slideId"), strings.TrimSpace(dto.Script))
	switch {
	case errors.Is(err, ErrDeckNotFound), errors.Is(err, ErrSlideNotFound):
		response.NotFound(c)
	case err != nil:
		response.InternalError(c, err)
	default:
		response.NoContent(c)
	}
}

func (h *Handler) removeSlide(c *gin.Context) {
	err := h.store.RemoveSlide(c.Param("id"), c.Param("slideId"))
	switch {
	case errors.Is(err, ErrDeckNotFound), errors.Is(err, ErrSlideNotFound):
		response.NotFound(c)
	case err != nil:
		response.InternalError(c, err)
	default:
		response.NoContent(c)
	}
}
