package framework

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openg2p/vci-service/pkg/storage"
)

// Respond writes data as JSON. A nil payload or a 204 writes the status alone.
func Respond(c *gin.Context, data any, statusCode int) {
	if statusCode == http.StatusNoContent || data == nil {
		c.Status(statusCode)
		return
	}

	c.JSON(statusCode, data)
}

// RespondError returns the message and fields of a SafeError under its status. Any other error is recorded on
// the context for the Errors middleware and answered with a bare 500. A storage integrity failure is recorded as a
// shutdown error whatever the response.
func RespondError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrIntegrity) {
		_ = c.Error(NewShutdownError(err.Error()))
	}

	var safeErr *SafeError
	if errors.As(err, &safeErr) {
		Respond(c, safeErr.response(), safeErr.StatusCode)
		return
	}

	_ = c.Error(err)
	Respond(c, ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}, http.StatusInternalServerError)
}

// LoggingRespondErrWithMsg logs err with errMsg and responds with errMsg and statusCode. The message must be safe
// to show to the requester.
func LoggingRespondErrWithMsg(c *gin.Context, err error, errMsg string, statusCode int) {
	logrus.WithError(err).Error(errMsg)
	RespondError(c, NewRequestError(errors.Wrap(err, errMsg), statusCode))
}

// LoggingRespondErrMsg logs errMsg and responds with it and statusCode.
func LoggingRespondErrMsg(c *gin.Context, errMsg string, statusCode int) {
	logrus.Error(errMsg)
	RespondError(c, NewRequestErrorMsg(errMsg, statusCode))
}
