package handlers

import (
	"errors"
	"io"
	"net/http"
)

// Upload serves POST /v1/uploads with a multipart "file" field and returns
// a provider URL usable as a reference input.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, r, http.StatusRequestEntityTooLarge, errorBody{Code: "payload_too_large", Message: "upload exceeds the size limit"})
			return
		}
		a.error(w, r, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "multipart field \"file\" is required", Field: "file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, a.maxUploadBytes+1))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "could not read upload"})
		return
	}
	if int64(len(data)) > a.maxUploadBytes {
		a.error(w, r, http.StatusRequestEntityTooLarge, errorBody{Code: "payload_too_large", Message: "upload exceeds the size limit"})
		return
	}
	url, err := a.generations.Upload(r.Context(), data, header.Filename)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"url": url, "bytes": len(data)})
}
