package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/usecase"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// multipartMemory is how much of a multipart body is kept in memory
	// before parts spill to temp files.
	multipartMemory = 8 << 20
	// multipartOverhead covers boundaries and part headers on top of the
	// file payloads.
	multipartOverhead = 1 << 20
	// maxDropFiles caps how many files a single drop may carry.
	maxDropFiles = 4
)

type workflowResponse struct {
	domain.WorkflowRecord
	AvailableEvents []domain.WorkflowEvent `json:"available_events"`
	View            *domain.ResultView     `json:"view,omitempty"`
}

func newWorkflowResponse(w *domain.Workflow) workflowResponse {
	return workflowResponse{
		WorkflowRecord:  w.Record(),
		AvailableEvents: domain.AvailableEvents(w.State()),
		View:            usecase.PresentWorkflow(w),
	}
}

func (rt *Router) createWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := rt.workflows.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/workflows/"+wf.ID)
	writeJSON(w, http.StatusCreated, newWorkflowResponse(wf))
}

func (rt *Router) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := rt.workflows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newWorkflowResponse(wf))
}

func (rt *Router) retryAnalysis(w http.ResponseWriter, r *http.Request) {
	wf, err := rt.workflows.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newWorkflowResponse(wf))
}

func (rt *Router) resetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := rt.workflows.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newWorkflowResponse(wf))
}

func (rt *Router) toggleClause(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "toggle clause", fmt.Errorf("clause index must be an integer")))
		return
	}
	wf, err := rt.workflows.ToggleClause(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newWorkflowResponse(wf))
}

// uploadDocument accepts the picker's single "file" part or a drop's
// "files" parts. An explicit ?channel= overrides the inferred channel.
func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes*maxDropFiles+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, domain.WrapError(domain.ErrFileTooLarge, "upload", err))
			return
		}
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("multipart form: %w", err)))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	picked := r.MultipartForm.File["file"]
	dropped := r.MultipartForm.File["files"]

	channel := domain.ChannelPicker
	if raw := r.URL.Query().Get("channel"); raw != "" {
		parsed, err := domain.ParseUploadChannel(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		channel = parsed
	} else if len(picked) == 0 && len(dropped) > 0 {
		channel = domain.ChannelDrop
	}

	headers := append(append([]*multipart.FileHeader(nil), picked...), dropped...)
	if channel == domain.ChannelDrop {
		headers = append(append([]*multipart.FileHeader(nil), dropped...), picked...)
	}
	if len(headers) == 0 {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("multipart field 'file' or 'files' is required")))
		return
	}
	if len(headers) > maxDropFiles {
		headers = headers[:maxDropFiles]
	}

	candidates := make([]domain.UploadCandidate, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, r, fmt.Errorf("open multipart file: %w", err))
			return
		}
		defer f.Close()
		candidates = append(candidates, domain.UploadCandidate{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Content:  f,
		})
	}

	wf, err := rt.uploader.Upload(r.Context(), chi.URLParam(r, "id"), channel, candidates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newWorkflowResponse(wf))
}

func (rt *Router) exportReport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	doc, err := rt.exporter.Export(r.Context(), chi.URLParam(r, "id"), &buf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": reportFilename(doc.Name),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, body, err := rt.previewer.OpenDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", domain.PDFMimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Name}))
	if doc.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("document_stream_failed", "request_id", requestIDFromContext(r.Context()), "error", err.Error())
	}
}

func (rt *Router) getPreview(w http.ResponseWriter, r *http.Request) {
	view, err := rt.previewer.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) applyPreview(w http.ResponseWriter, r *http.Request) {
	var cmd domain.PreviewCommand
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&cmd); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "preview command", fmt.Errorf("invalid json: %w", err)))
		return
	}
	view, err := rt.previewer.Apply(r.Context(), chi.URLParam(r, "id"), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func reportFilename(documentName string) string {
	base := strings.TrimSuffix(filepath.Base(documentName), filepath.Ext(documentName))
	if base == "" || base == "." {
		base = "lease"
	}
	return base + "-report.xlsx"
}
