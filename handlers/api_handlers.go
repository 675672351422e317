package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"school-server-go/models"
	"school-server-go/service"
)

var logger = loggo.GetLogger("school.handlers")

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// APIHandler serves the routes of one record type.
type APIHandler[T any, PT models.Entity[T]] struct {
	Service *service.Service[T, PT]
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler[T any, PT models.Entity[T]](svc *service.Service[T, PT]) *APIHandler[T, PT] {
	return &APIHandler[T, PT]{
		Service: svc,
	}
}

// Register adds the record routes to group.
func (h *APIHandler[T, PT]) Register(group *gin.RouterGroup) {
	group.POST("/add", h.Create)
	group.GET("/retrieve", h.Retrieve)
	group.PUT("/update/:id", h.Update)
	group.DELETE("/delete/:id", h.Delete)
	group.POST("/import", h.Import)
	group.GET("/export", h.Export)
}

// Create handles POST /<group>/add
func (h *APIHandler[T, PT]) Create(c *gin.Context) {
	in, ok := h.bind(c, opCreate)
	if !ok {
		return
	}
	rec, err := h.Service.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, opCreate, err)
		return
	}
	succeed(c, rec)
}

// Retrieve handles GET /<group>/retrieve?first_name=X
func (h *APIHandler[T, PT]) Retrieve(c *gin.Context) {
	filter := c.Query(h.Service.Schema().FilterColumn)
	recs, err := h.Service.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, opList, err)
		return
	}
	succeed(c, recs)
}

// Update handles PUT /<group>/update/:id
func (h *APIHandler[T, PT]) Update(c *gin.Context) {
	id := c.Param("id")
	in, ok := h.bind(c, opUpdate)
	if !ok {
		return
	}
	changed, err := h.Service.Update(c.Request.Context(), id, in)
	if err != nil {
		fail(c, opUpdate, err)
		return
	}
	schema := h.Service.Schema()
	if !changed {
		c.JSON(http.StatusOK, models.Response{
			Status:     models.StatusInfo,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("No changes were made to the %s data.", schema.Noun),
		})
		return
	}
	message(c, fmt.Sprintf("%s was updated successfully.", schema.Entity))
}

// Delete handles DELETE /<group>/delete/:id
func (h *APIHandler[T, PT]) Delete(c *gin.Context) {
	if err := h.Service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, opDelete, err)
		return
	}
	message(c, fmt.Sprintf("%s was deleted successfully!", h.Service.Schema().Entity))
}

// Import handles POST /<group>/import with an .xlsx file in the "file" form field.
func (h *APIHandler[T, PT]) Import(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		fail(c, opImport, errors.NewNotValid(err, "Error retrieving uploaded file"))
		return
	}
	defer file.Close()

	logger.Infof("received file upload %s for %s", header.Filename, h.Service.Schema().Collection)
	result, err := h.Service.ImportExcel(c.Request.Context(), file)
	if err != nil {
		fail(c, opImport, err)
		return
	}
	succeed(c, result)
}

// Export handles GET /<group>/export
func (h *APIHandler[T, PT]) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.Service.ExportExcel(c.Request.Context(), &buf); err != nil {
		fail(c, opExport, err)
		return
	}
	filename := h.Service.Schema().Collection + ".xlsx"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// bind decodes the JSON body. An empty body binds to an empty record so
// that the missing field is reported by validation.
func (h *APIHandler[T, PT]) bind(c *gin.Context, op operation) (*T, bool) {
	in := new(T)
	if err := c.ShouldBindJSON(in); err != nil && !errors.Is(err, io.EOF) {
		fail(c, op, errors.NewNotValid(nil, "Invalid request body: "+err.Error()))
		return nil, false
	}
	return in, true
}

// Pinger is implemented by anything that can check its backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingHandler handles GET /ping by checking every store is reachable.
func PingHandler(pingers ...Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range pingers {
			if err := p.Ping(c.Request.Context()); err != nil {
				logger.Errorf("ping failed: %v", err)
				respond(c, http.StatusServiceUnavailable, models.StatusError, nil, err.Error())
				return
			}
		}
		message(c, "Pong!")
	}
}
