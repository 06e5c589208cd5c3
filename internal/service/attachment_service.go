package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/upload"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

// ImageUploader is the upload pipeline as seen by the attachment flow.
type ImageUploader interface {
	UploadImage(ctx context.Context, data []byte, contentType, folder string, onProgress upload.ProgressFunc) (string, error)
}

// AttachmentService attaches photos and signatures to tickets. Upload
// failures and ticket write failures are reported separately: a URL that was
// uploaded but could not be recorded is returned alongside the store error.
type AttachmentService struct {
	tickets  *TicketStore
	uploader ImageUploader
	logger   *zap.Logger
}

// NewAttachmentService constructs the service.
func NewAttachmentService(tickets *TicketStore, uploader ImageUploader, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{tickets: tickets, uploader: uploader, logger: logger}
}

// AddPhoto uploads a photo and appends its URL to the ticket. The photo cap is
// checked before anything is uploaded and again when the URL is appended, so
// concurrent uploads can neither drop a URL nor overshoot the cap.
func (s *AttachmentService) AddPhoto(ctx context.Context, key string, data []byte, contentType string, onProgress upload.ProgressFunc) (string, error) {
	ticket, err := s.tickets.Ticket(ctx, key)
	if err != nil {
		return "", err
	}
	if len(ticket.Photos) >= s.tickets.MaxPhotos() {
		return "", apperrors.NewValidationError("photo limit reached", map[string]any{
			"photos": len(ticket.Photos),
			"max":    s.tickets.MaxPhotos(),
		})
	}

	url, err := s.uploader.UploadImage(ctx, data, contentType, upload.FolderTicketPhotos, onProgress)
	if err != nil {
		return "", err
	}

	if err := s.tickets.UpdateTicket(ctx, key, domain.TicketPatch{AppendPhoto: &url}); err != nil {
		s.logger.Warn("photo uploaded but not recorded", zap.String("key", key), zap.String("url", url), zap.Error(err))
		return url, err
	}
	return url, nil
}

// SetSignature stores a signature-pad data URL and records it on the ticket.
func (s *AttachmentService) SetSignature(ctx context.Context, key, dataURL string) (string, error) {
	data, contentType, err := upload.DecodeDataURL(dataURL)
	if err != nil {
		return "", apperrors.NewValidationError("invalid signature", map[string]any{"data_url": err.Error()})
	}
	if _, err := s.tickets.Ticket(ctx, key); err != nil {
		return "", err
	}

	url, err := s.uploader.UploadImage(ctx, data, contentType, upload.FolderSignatures, nil)
	if err != nil {
		return "", err
	}
	if err := s.tickets.UpdateTicket(ctx, key, domain.TicketPatch{CustomerSignature: &url}); err != nil {
		s.logger.Warn("signature uploaded but not recorded", zap.String("key", key), zap.String("url", url), zap.Error(err))
		return url, err
	}
	return url, nil
}
