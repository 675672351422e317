package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"

	"school-server-go/models"
	"school-server-go/service"
)

type operation int

const (
	opCreate operation = iota
	opList
	opUpdate
	opDelete
	opImport
	opExport
)

// statusFor maps a service error onto the HTTP status of the operation.
func statusFor(op operation, err error) int {
	var storeErr *service.StoreError
	switch {
	case errors.Is(err, errors.NotValid), errors.Is(err, errors.BadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errors.NotFound):
		return http.StatusNotFound
	case errors.As(err, &storeErr):
		return storeStatus(op, storeErr.Phase)
	case errors.Is(err, errors.AlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// storeStatus is the status reported for a store failure. Failed lookups
// before a write are server errors; failed reads and writes the client asked
// for directly are reported as bad requests.
func storeStatus(op operation, phase service.Phase) int {
	switch op {
	case opList, opExport, opImport:
		return http.StatusBadRequest
	case opUpdate:
		return http.StatusInternalServerError
	}
	if phase == service.PhaseWrite {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respond(c *gin.Context, code int, status string, data any, message string) {
	c.JSON(code, models.Response{
		Status:     status,
		StatusCode: code,
		Data:       data,
		Message:    message,
	})
}

func succeed(c *gin.Context, data any) {
	respond(c, http.StatusOK, models.StatusSuccess, data, "")
}

func message(c *gin.Context, msg string) {
	respond(c, http.StatusOK, models.StatusSuccess, nil, msg)
}

func fail(c *gin.Context, op operation, err error) {
	code := statusFor(op, err)
	if code >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		logger.Debugf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	respond(c, code, models.StatusError, nil, err.Error())
}
