package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	apperrors "lifeasagame.dev/internal/platform/errors"
	"lifeasagame.dev/internal/platform/httpx"
	"lifeasagame.dev/internal/platform/pagination"
)

// errorHeader carries the envelope message so proxies and clients can read
// the failure without parsing the body.
const errorHeader = "X-Error"

// listSizes bounds the page sizes accepted by list endpoints.
var listSizes = pagination.SizeConfig{Default: 10, Max: 100}

type fieldErrorBody struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

// errorBody is the wire envelope for every failing request. The fields array
// is always present, detail only when set.
type errorBody struct {
	Message    string           `json:"message"`
	Detail     string           `json:"detail,omitempty"`
	StatusCode int              `json:"status_code"`
	Fields     []fieldErrorBody `json:"fields"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, payload any) {
	_ = httpx.WriteJSON(w, status, payload)
}

// writeError renders a domain error as the envelope. Errors without a domain
// code fall back to the opaque 500.
func (a *API) writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Unexpected("")
		appErr.Cause = err
	}

	status := appErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("request failed code=%s detail=%q cause=%v", appErr.Code, appErr.Detail, appErr.Cause)
	}
	body := errorBody{
		Message:    appErr.Message,
		Detail:     appErr.Detail,
		StatusCode: status,
		Fields:     make([]fieldErrorBody, 0, len(appErr.Fields)),
	}
	for _, field := range appErr.Fields {
		body.Fields = append(body.Fields, fieldErrorBody{Name: field.Name, Detail: field.Detail})
	}

	w.Header().Set(errorHeader, appErr.Message)
	a.writeJSON(w, status, body)
}

// writeInvalidPayload renders a request-decoding failure: the decode error
// text becomes the message and the detail marks the payload as the culprit.
func (a *API) writeInvalidPayload(w http.ResponseWriter, err error) {
	message := "Request body is required"
	if err != nil && !errors.Is(err, io.EOF) {
		message = err.Error()
	}
	body := errorBody{
		Message:    message,
		Detail:     "Invalid JSON payload",
		StatusCode: http.StatusUnprocessableEntity,
		Fields:     []fieldErrorBody{},
	}
	w.Header().Set(errorHeader, "Invalid JSON payload")
	a.writeJSON(w, http.StatusUnprocessableEntity, body)
}

// decodeJSON reads the request body into target. Unknown fields are ignored,
// matching the lenient decoding of the rest of the API surface.
func (a *API) decodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

// parsePage reads the pagination query parameters, reporting a payload-level
// failure for a malformed size.
func (a *API) parsePage(w http.ResponseWriter, r *http.Request) (pagination.Params, bool) {
	params, err := pagination.ParseParams(r.URL.Query(), listSizes)
	if err != nil {
		a.writeInvalidPayload(w, err)
		return pagination.Params{}, false
	}
	return params, true
}

// mapPage converts a page of storage records into its wire payload form.
func mapPage[T any, U any](page pagination.Page[T], convert func(T) U) pagination.Page[U] {
	data := make([]U, 0, len(page.Data))
	for _, item := range page.Data {
		data = append(data, convert(item))
	}
	return pagination.Page[U]{
		Data:    data,
		Total:   page.Total,
		Page:    page.Page,
		HasNext: page.HasNext,
	}
}
