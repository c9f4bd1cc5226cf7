package handler

import (
	"errors"
	"net/http"

	"lantern/internal/domain"
	"lantern/internal/httputil"
)

// respondDomainError maps a domain error to an HTTP error response. Upstream
// failures carry their original status as a structured extra so the
// presentation layer can render actionable text.
func respondDomainError(w http.ResponseWriter, err error) {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		httputil.RespondErrorWithExtras(w, upstream.StatusCode(), upstream.Error(), map[string]interface{}{
			"upstreamStatus": upstream.Status,
		})
		return
	}

	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}

	httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
}
