package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/ports"
)

// UploadRejection is reported for every candidate the upload surface turns
// away, for metrics.
type UploadRejection func(channel domain.UploadChannel, reason error)

type UploadDocumentUseCase struct {
	workflows ports.WorkflowService
	storage   ports.ObjectStorage
	maxBytes  int64
	onReject  UploadRejection
}

func NewUploadDocumentUseCase(
	workflows ports.WorkflowService,
	storage ports.ObjectStorage,
	maxBytes int64,
	onReject UploadRejection,
) *UploadDocumentUseCase {
	if maxBytes <= 0 {
		maxBytes = domain.DefaultMaxUploadBytes
	}
	if onReject == nil {
		onReject = func(domain.UploadChannel, error) {}
	}
	return &UploadDocumentUseCase{
		workflows: workflows,
		storage:   storage,
		maxBytes:  maxBytes,
		onReject:  onReject,
	}
}

// Upload picks the candidate for channel, validates it as a PDF, stores it and
// starts analysis. A rejected file leaves the workflow untouched.
func (uc *UploadDocumentUseCase) Upload(
	ctx context.Context,
	workflowID string,
	channel domain.UploadChannel,
	candidates []domain.UploadCandidate,
) (*domain.Workflow, error) {
	candidate, err := selectCandidate(channel, candidates)
	if err != nil {
		uc.onReject(channel, err)
		return nil, err
	}
	if candidate.Size > uc.maxBytes {
		err := domain.WrapError(domain.ErrFileTooLarge, "upload", fmt.Errorf("%s is %d bytes, limit %d", candidate.Name, candidate.Size, uc.maxBytes))
		uc.onReject(channel, err)
		return nil, err
	}

	body := bufio.NewReaderSize(candidate.Content, 512)
	head, err := body.Peek(domain.PDFMagicLen())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read upload header: %w", err)
	}
	if !domain.HasPDFMagic(head) {
		err := domain.WrapError(domain.ErrInvalidFileType, "upload", fmt.Errorf("%s does not contain PDF data", candidate.Name))
		uc.onReject(channel, err)
		return nil, err
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(candidate.Name))
	limited := &limitedReader{r: body, remaining: uc.maxBytes}
	if err := uc.storage.Save(ctx, storageKey, limited); err != nil {
		if limited.exceeded {
			err = domain.WrapError(domain.ErrFileTooLarge, "upload", fmt.Errorf("%s exceeds %d bytes", candidate.Name, uc.maxBytes))
			uc.onReject(channel, err)
			uc.discard(ctx, storageKey)
			return nil, err
		}
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := domain.UploadedDocument{
		ID:         id,
		Name:       candidate.Name,
		MimeType:   domain.PDFMimeType,
		SizeBytes:  limited.read,
		StorageKey: storageKey,
		UploadedAt: time.Now().UTC(),
	}
	w, err := uc.workflows.StartAnalysis(ctx, workflowID, doc)
	if err != nil {
		uc.discard(ctx, storageKey)
		return nil, err
	}
	return w, nil
}

func (uc *UploadDocumentUseCase) discard(ctx context.Context, storageKey string) {
	if err := uc.storage.Delete(context.WithoutCancel(ctx), storageKey); err != nil {
		slog.Warn("document_delete_failed", "storage_key", storageKey, "error", err.Error())
	}
}

// selectCandidate applies the channel rule: a drop takes the first PDF among
// the dropped files, a picker takes exactly the first file.
func selectCandidate(channel domain.UploadChannel, candidates []domain.UploadCandidate) (domain.UploadCandidate, error) {
	if len(candidates) == 0 {
		return domain.UploadCandidate{}, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("no file provided"))
	}
	switch channel {
	case domain.ChannelDrop:
		for _, c := range candidates {
			if domain.IsPDFMediaType(c.MimeType, c.Name) {
				return c, nil
			}
		}
		return domain.UploadCandidate{}, domain.WrapError(domain.ErrInvalidFileType, "upload", fmt.Errorf("none of %d dropped files is a PDF", len(candidates)))
	default:
		first := candidates[0]
		if !domain.IsPDFMediaType(first.MimeType, first.Name) {
			return domain.UploadCandidate{}, domain.WrapError(domain.ErrInvalidFileType, "upload", fmt.Errorf("%s has type %q", first.Name, first.MimeType))
		}
		return first, nil
	}
}

// limitedReader fails once more than remaining bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	read      int64
	exceeded  bool
}

var errUploadTooLarge = errors.New("upload exceeds size limit")

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.remaining {
		l.exceeded = true
		return n, errUploadTooLarge
	}
	return n, err
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "/" {
		return "document.pdf"
	}
	return base
}
