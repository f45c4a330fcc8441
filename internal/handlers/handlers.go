package handlers

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/RanjanPM/potato-disease-classification/internal/logging"
	"github.com/RanjanPM/potato-disease-classification/internal/presenter"
	"github.com/RanjanPM/potato-disease-classification/internal/session"
	"github.com/RanjanPM/potato-disease-classification/internal/upload"
)

// previewWait bounds how long a response waits for a fresh preview.
const previewWait = 2 * time.Second

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"sizeKB": func(size int64) int64 { return (size + 1023) / 1024 },
}).ParseFS(templateFS, "templates/index.html"))

// RegisterRoutes wires the HTTP handlers to the Gin router. sessions must
// attach a *session.Session to every request.
func RegisterRoutes(router *gin.Engine, sessions gin.HandlerFunc, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{logger: logger.Named("handlers")}

	router.SetHTMLTemplate(pageTemplate)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	app := router.Group("/", sessions)
	app.GET("/", h.index)
	app.GET("/api/state", h.state)
	app.POST("/image", h.selectImage)
	app.POST("/predict", h.predict)
	app.POST("/clear", h.clear)
}

type handler struct {
	logger *zap.Logger
}

func (h *handler) index(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	h.awaitPreview(c, sess)
	c.HTML(http.StatusOK, "index.html", newPage(sess))
}

func (h *handler) state(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newStateResponse(sess))
}

func (h *handler) selectImage(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var file *upload.File
	reader, err := c.Request.MultipartReader()
	if err == nil {
		acq, readErr := readAcquisition(reader)
		if readErr != nil {
			h.logger.Warn("malformed upload", zap.Error(readErr), zap.String("session_id", sess.ID))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed upload"})
			return
		}
		file = acq.File
		h.logger.Debug("image received", zap.String("session_id", sess.ID), zap.String("source", acq.Source))
	}

	err = sess.Controller.SelectImage(file)
	if err == nil {
		h.awaitPreview(c, sess)
	}
	h.respond(c, sess, err)
}

func (h *handler) predict(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	_, err := sess.Controller.Submit(c.Request.Context())
	var uerr *upload.Error
	if errors.As(err, &uerr) && uerr.Kind.Remote() {
		fields := append(logging.ErrorFields(err), zap.String("session_id", sess.ID), zap.Stringer("kind", uerr.Kind))
		h.logger.Warn("remote prediction failed", fields...)
	}
	h.respond(c, sess, err)
}

// awaitPreview gives the staged candidate's preview a short time to finish
// so the response can include it.
func (h *handler) awaitPreview(c *gin.Context, sess *session.Session) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), previewWait)
	defer cancel()
	if _, err := sess.Controller.Preview(ctx); err != nil && !errors.Is(err, upload.ErrNoCandidate) {
		h.logger.Debug("preview not ready", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

func (h *handler) clear(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Controller.Clear()
	h.respond(c, sess, nil)
}

func (h *handler) session(c *gin.Context) (*session.Session, bool) {
	sess, ok := session.FromContext(c)
	if !ok {
		h.logger.Error("request without session", zap.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
	}
	return sess, ok
}

// respond answers fetch callers with the JSON state and form posts with a
// redirect back to the page.
func (h *handler) respond(c *gin.Context, sess *session.Session, err error) {
	if !strings.Contains(c.GetHeader("Accept"), "application/json") {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.JSON(statusFor(err), newStateResponse(sess))
}

func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, upload.ErrSubmissionInFlight) || errors.Is(err, upload.ErrSuperseded) {
		return http.StatusConflict
	}
	if errors.Is(err, upload.ErrCanceled) {
		return http.StatusRequestTimeout
	}
	var uerr *upload.Error
	if !errors.As(err, &uerr) {
		return http.StatusInternalServerError
	}
	switch uerr.Kind {
	case upload.InvalidFileType:
		return http.StatusUnsupportedMediaType
	case upload.FileTooLarge:
		return http.StatusRequestEntityTooLarge
	case upload.NoFileSelected:
		return http.StatusBadRequest
	case upload.Timeout:
		return http.StatusGatewayTimeout
	case upload.RemoteValidationRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

type imageResponse struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type stateResponse struct {
	State   string             `json:"state"`
	Image   *imageResponse     `json:"image,omitempty"`
	Preview string             `json:"preview,omitempty"`
	Error   *errorResponse     `json:"error,omitempty"`
	Result  *presenter.Outcome `json:"result,omitempty"`
}

func newStateResponse(sess *session.Session) stateResponse {
	view := sess.Controller.Snapshot()
	resp := stateResponse{
		State:   view.State.String(),
		Preview: view.Preview,
		Result:  visibleOutcome(sess, view),
	}
	if view.Image != nil {
		resp.Image = &imageResponse{Name: view.Image.Name, MIMEType: view.Image.MIMEType, Size: view.Image.Size}
	}
	if view.Error != nil {
		resp.Error = &errorResponse{Kind: view.Error.Kind.String(), Message: view.Error.Message}
	}
	return resp
}

// visibleOutcome returns the session's outcome only while the controller is
// resting on a staged image, so a result never shows next to a spinner or an
// error.
func visibleOutcome(sess *session.Session, view upload.View) *presenter.Outcome {
	if view.State != upload.StateImageSelected {
		return nil
	}
	out, ok := sess.Outcome()
	if !ok {
		return nil
	}
	return &out
}

type page struct {
	Image      *upload.ImageInfo
	Preview    template.URL
	Error      string
	Submitting bool
	Result     *presenter.Outcome
	MaxSizeMB  int64
}

func newPage(sess *session.Session) page {
	view := sess.Controller.Snapshot()
	p := page{
		Image:      view.Image,
		Submitting: view.State == upload.StateSubmitting,
		Result:     visibleOutcome(sess, view),
		MaxSizeMB:  upload.MaxImageSize >> 20,
	}
	if strings.HasPrefix(view.Preview, "data:") {
		// generated locally by the preview package
		p.Preview = template.URL(view.Preview)
	}
	if view.Error != nil {
		p.Error = view.Error.Message
	}
	return p
}
