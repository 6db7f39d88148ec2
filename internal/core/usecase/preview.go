package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/ports"
)

type previewSession struct {
	mu         sync.Mutex
	storageKey string
	document   string
	handle     ports.DocumentHandle
	viewport   domain.Viewport
	closed     bool
}

func (s *previewSession) release() {
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			slog.Warn("preview_handle_close_failed", "storage_key", s.storageKey, "error", err.Error())
		}
	}
	s.handle = nil
	s.closed = true
}

// DocumentPreviewUseCase owns one display handle per workflow. Handles are
// opened lazily, replaced when the workflow's document changes, and released
// on reset or Close.
type DocumentPreviewUseCase struct {
	workflows ports.WorkflowService
	storage   ports.ObjectStorage
	opener    ports.DocumentOpener

	mu       sync.Mutex
	sessions map[string]*previewSession
}

func NewDocumentPreviewUseCase(
	workflows ports.WorkflowService,
	storage ports.ObjectStorage,
	opener ports.DocumentOpener,
) *DocumentPreviewUseCase {
	return &DocumentPreviewUseCase{
		workflows: workflows,
		storage:   storage,
		opener:    opener,
		sessions:  make(map[string]*previewSession),
	}
}

func (uc *DocumentPreviewUseCase) View(ctx context.Context, workflowID string) (*domain.PreviewView, error) {
	return uc.withSession(ctx, workflowID, func(s *previewSession) error { return nil })
}

func (uc *DocumentPreviewUseCase) Apply(ctx context.Context, workflowID string, cmd domain.PreviewCommand) (*domain.PreviewView, error) {
	return uc.withSession(ctx, workflowID, func(s *previewSession) error {
		next, err := cmd.Apply(s.viewport)
		if err != nil {
			return err
		}
		s.viewport = next
		return nil
	})
}

// OpenDocument streams the raw uploaded bytes. The caller closes the reader.
func (uc *DocumentPreviewUseCase) OpenDocument(ctx context.Context, workflowID string) (*domain.UploadedDocument, io.ReadCloser, error) {
	doc, err := uc.currentDocument(ctx, workflowID)
	if err != nil {
		return nil, nil, err
	}
	body, err := uc.storage.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open stored document: %w", err)
	}
	return doc, body, nil
}

// WorkflowChanged drops the handle once the workflow no longer holds the
// document it was opened for.
func (uc *DocumentPreviewUseCase) WorkflowChanged(_ context.Context, w *domain.Workflow) {
	uc.mu.Lock()
	session, ok := uc.sessions[w.ID]
	uc.mu.Unlock()
	if !ok {
		return
	}

	doc := w.Document()
	session.mu.Lock()
	stale := doc == nil || doc.StorageKey != session.storageKey
	session.mu.Unlock()
	if stale {
		uc.Release(w.ID)
	}
}

// Close releases every open handle.
func (uc *DocumentPreviewUseCase) Close() error {
	uc.mu.Lock()
	sessions := uc.sessions
	uc.sessions = make(map[string]*previewSession)
	uc.mu.Unlock()

	for _, session := range sessions {
		session.mu.Lock()
		session.release()
		session.mu.Unlock()
	}
	return nil
}

// OpenHandles reports how many display handles are held.
func (uc *DocumentPreviewUseCase) OpenHandles() int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return len(uc.sessions)
}

// Release closes the handle held for workflowID, if any.
func (uc *DocumentPreviewUseCase) Release(workflowID string) {
	uc.mu.Lock()
	session, ok := uc.sessions[workflowID]
	delete(uc.sessions, workflowID)
	uc.mu.Unlock()
	if !ok {
		return
	}
	session.mu.Lock()
	session.release()
	session.mu.Unlock()
}

func (uc *DocumentPreviewUseCase) currentDocument(ctx context.Context, workflowID string) (*domain.UploadedDocument, error) {
	w, err := uc.workflows.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	doc := w.Document()
	if doc == nil {
		return nil, domain.WrapError(domain.ErrInvalidTransition, "preview", errors.New("workflow has no document"))
	}
	return doc, nil
}

func (uc *DocumentPreviewUseCase) withSession(
	ctx context.Context,
	workflowID string,
	fn func(*previewSession) error,
) (*domain.PreviewView, error) {
	doc, err := uc.currentDocument(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	for {
		if view, ok, err := uc.lockedUse(ctx, workflowID, uc.session(workflowID), doc, fn); ok {
			return view, err
		}
	}
}

// lockedUse runs useSession under the session lock. ok is false when the
// session was released concurrently and a fresh one is needed.
func (uc *DocumentPreviewUseCase) lockedUse(
	ctx context.Context,
	workflowID string,
	session *previewSession,
	doc *domain.UploadedDocument,
	fn func(*previewSession) error,
) (view *domain.PreviewView, ok bool, err error) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.closed {
		return nil, false, nil
	}
	view, err = uc.useSession(ctx, workflowID, session, doc, fn)
	return view, true, err
}

func (uc *DocumentPreviewUseCase) session(workflowID string) *previewSession {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	session, ok := uc.sessions[workflowID]
	if !ok {
		session = &previewSession{}
		uc.sessions[workflowID] = session
	}
	return session
}

// useSession runs fn with session locked, reopening the handle when the
// document differs from the one it holds.
func (uc *DocumentPreviewUseCase) useSession(
	ctx context.Context,
	workflowID string,
	session *previewSession,
	doc *domain.UploadedDocument,
	fn func(*previewSession) error,
) (*domain.PreviewView, error) {
	if session.handle == nil || session.storageKey != doc.StorageKey {
		if session.handle != nil {
			_ = session.handle.Close()
			session.handle = nil
		}
		handle, err := uc.open(ctx, doc.StorageKey)
		if err != nil {
			return nil, err
		}
		session.handle = handle
		session.storageKey = doc.StorageKey
		session.document = doc.Name
		session.viewport = domain.NewViewport(handle.NumPages())
	}

	if err := fn(session); err != nil {
		return nil, err
	}
	text, err := session.handle.PageText(session.viewport.Page)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", session.viewport.Page, err)
	}
	return &domain.PreviewView{
		WorkflowID:  workflowID,
		Document:    session.document,
		Viewport:    session.viewport,
		ZoomPercent: session.viewport.ZoomPercent(),
		PageText:    text,
	}, nil
}

func (uc *DocumentPreviewUseCase) open(ctx context.Context, storageKey string) (ports.DocumentHandle, error) {
	body, err := uc.storage.Open(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("open stored document: %w", err)
	}
	defer body.Close()

	handle, err := uc.opener.OpenDocument(ctx, body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidFileType, "open preview", err)
	}
	return handle, nil
}

// WithPreview opens a handle over content for the duration of fn.
func WithPreview(ctx context.Context, opener ports.DocumentOpener, content io.Reader, fn func(ports.DocumentHandle) error) error {
	handle, err := opener.OpenDocument(ctx, content)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidFileType, "open preview", err)
	}
	defer handle.Close()
	return fn(handle)
}
