package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/checkin/internal/core"
	"github.com/JonMunkholm/checkin/internal/csv"
	"github.com/JonMunkholm/checkin/internal/logging"
)

// multipartOverhead leaves room for the form envelope around the file.
const multipartOverhead = 64 << 10

type importResponse struct {
	core.ImportResult
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type previewResponse struct {
	Rows []csv.Row `json:"rows"`
}

// openUpload returns the multipart "file" part. The caller closes it and
// removes the form's temporary files.
func (s *Server) openUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, maxSize)
		}
		return nil, nil, fmt.Errorf("%w: %w", core.ErrInvalidCSV, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: no file provided", core.ErrInvalidCSV)
	}
	if header.Size > maxSize {
		file.Close()
		return nil, nil, fmt.Errorf("%w: %d bytes", core.ErrFileTooLarge, header.Size)
	}
	return file, header, nil
}

// handleImport registers every row of the uploaded CSV in one transaction.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.openUpload(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	ctx := withActor(r)
	logging.WithFields(ctx, "file", header.Filename, "size", header.Size).Info("import started")

	result, err := s.service.ImportCSV(ctx, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	locale := s.locale(r)
	resp := importResponse{ImportResult: result}
	if result.Empty {
		resp.Code = core.CodeNothingToImport
		resp.Message = s.msgs.T(locale, core.CodeNothingToImport, nil)
	} else {
		resp.Message = s.msgs.T(locale, "ImportDone", map[string]any{"Count": result.Imported})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePreview returns the first rows as they would be imported.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	file, _, err := s.openUpload(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	rows, err := s.service.PreviewCSV(r.Context(), file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []csv.Row{}
	}
	writeJSON(w, http.StatusOK, previewResponse{Rows: rows})
}

// handleSample serves the sample CSV with a UTF-8 byte-order mark.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+csv.SampleFileName+`"`)
	if err := csv.WriteSample(w); err != nil {
		logging.FromContext(r.Context()).Error("write sample csv", "error", err)
	}
}
