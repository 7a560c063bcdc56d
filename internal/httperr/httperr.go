// Package httperr renders service errors and messages as localized HTTP responses.
package httperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/i18n"
	"github.com/eduevent/backend/pkg/response"
)

// Status returns the HTTP status for an error kind. Every domain rule
// violation is a 400; clients tell them apart by the code.
func Status(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindEventNotRegistrable, apperr.KindAlreadyRegistered, apperr.KindAlreadyCancelled,
		apperr.KindNotConfirmed, apperr.KindAlreadyCheckedIn, apperr.KindInvalidToken,
		apperr.KindWindowClosed, apperr.KindNotAttended, apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Responder writes localized responses. The language is negotiated from the
// request's Accept-Language header.
type Responder struct {
	tr     *i18n.Translator
	logger *zap.Logger
}

// NewResponder creates a Responder.
func NewResponder(tr *i18n.Translator, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{tr: tr, logger: logger}
}

// Lang returns the request language.
func (r *Responder) Lang(c *gin.Context) i18n.Language {
	return r.tr.Negotiate(c.GetHeader("Accept-Language"))
}

// T translates key for the request.
func (r *Responder) T(c *gin.Context, key string) string {
	return r.tr.T(r.Lang(c), key)
}

// Translator returns the underlying translator.
func (r *Responder) Translator() *i18n.Translator { return r.tr }

// Error writes err. Infrastructure failures get a generic message; their
// cause has already been logged by the service.
func (r *Responder) Error(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		r.logger.Error("unclassified error", zap.String("path", c.FullPath()), zap.Error(err))
		e = apperr.Wrap(apperr.KindInternal, "unclassified", err)
	}
	lang := r.Lang(c)
	msg := r.tr.T(lang, e.Key())
	if msg == e.Key() {
		msg = r.tr.T(lang, string(e.Kind))
	}
	code := string(e.Kind)
	if e.Reason != "" {
		code = e.Key()
	}
	response.Error(c, Status(e.Kind), code, msg)
}

// Validation writes a 400 for a request that failed binding.
func (r *Responder) Validation(c *gin.Context, err error) {
	r.logger.Debug("invalid request", zap.String("path", c.FullPath()), zap.Error(err))
	response.Error(c, http.StatusBadRequest, string(apperr.KindValidation),
		r.T(c, string(apperr.KindValidation))+": "+err.Error())
}

// ParamID parses the UUID path parameter name. On failure it writes a 400 and
// returns false.
func (r *Responder) ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, http.StatusBadRequest, string(apperr.KindValidation),
			r.T(c, string(apperr.KindValidation))+": "+name)
		return uuid.Nil, false
	}
	return id, true
}
