package api

import (
	"io"
	"net/http"
	"path"
	"strings"
)

const maxUploadBytes = 10 << 20 // 10 MB

// UploadContract handles POST /api/contracts (multipart/form-data, field "file").
// An optional "path" field places the document under a subdirectory of the
// contracts directory; otherwise the uploaded file name is used.
//
//	@Summary		Upload a contract document
//	@Tags			contracts
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"OpenAPI or Swagger document"
//	@Param			path	formData	string	false	"Destination path"
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contracts [post]
func (h *Handler) UploadContract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respond(w, r, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respond(w, r, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond(w, r, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	dest := header.Filename
	if p := strings.TrimSpace(r.FormValue("path")); p != "" {
		dest = path.Clean(strings.TrimPrefix(p, "/"))
	}

	sum, err := h.svc.UploadContract(r.Context(), dest, data)
	if err != nil {
		writeError(w, r, "upload contract", err)
		return
	}
	respond(w, r, http.StatusCreated, UploadResponse{Path: dest, Size: int64(len(data)), Contract: *sum})
}
