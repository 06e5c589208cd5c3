package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-desk/internal/access"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/upload"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

type mockUploader struct {
	UploadImageFunc func(ctx context.Context, data []byte, contentType, folder string, onProgress upload.ProgressFunc) (string, error)
	calls           int
}

func (m *mockUploader) UploadImage(ctx context.Context, data []byte, contentType, folder string, onProgress upload.ProgressFunc) (string, error) {
	m.calls++
	return m.UploadImageFunc(ctx, data, contentType, folder, onProgress)
}

func TestAddPhoto_AppendsURL(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	key, err := store.CreateTicket(ctx, draft("Nisha"))
	require.NoError(t, err)

	uploader := &mockUploader{UploadImageFunc: func(_ context.Context, _ []byte, _, folder string, _ upload.ProgressFunc) (string, error) {
		return "https://files/" + folder + "/1.jpg", nil
	}}
	svc := NewAttachmentService(store, uploader, nil)

	url, err := svc.AddPhoto(ctx, key, []byte("img"), "image/jpeg", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://files/ticket-photos/1.jpg", url)

	ticket, err := store.Ticket(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{url}, ticket.Photos)
}

// gatedUploader holds every upload until release is closed, so concurrent
// AddPhoto calls all pass the pre-upload cap check before any of them writes.
type gatedUploader struct {
	release chan struct{}
	started chan struct{}
	n       atomic.Int32
}

func (g *gatedUploader) UploadImage(ctx context.Context, _ []byte, _, folder string, _ upload.ProgressFunc) (string, error) {
	id := g.n.Add(1)
	g.started <- struct{}{}
	<-g.release
	return fmt.Sprintf("https://files/%s/p%d.jpg", folder, id), nil
}

func addPhotosConcurrently(t *testing.T, svc *AttachmentService, uploader *gatedUploader, key string, n int) []error {
	t.Helper()
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddPhoto(context.Background(), key, []byte("img"), "image/jpeg", nil)
		}(i)
	}
	for i := 0; i < n; i++ {
		<-uploader.started
	}
	close(uploader.release)
	wg.Wait()
	return errs
}

func TestAddPhoto_ConcurrentUploadsKeepEveryURL(t *testing.T) {
	store, _, _ := newTestStore(t)
	key, err := store.CreateTicket(context.Background(), draft("Race"))
	require.NoError(t, err)

	uploader := &gatedUploader{release: make(chan struct{}), started: make(chan struct{}, 2)}
	errs := addPhotosConcurrently(t, NewAttachmentService(store, uploader, nil), uploader, key, 2)
	for _, err := range errs {
		require.NoError(t, err)
	}

	ticket, err := store.Ticket(context.Background(), key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://files/ticket-photos/p1.jpg", "https://files/ticket-photos/p2.jpg"}, ticket.Photos)
}

func TestAddPhoto_ConcurrentUploadsRespectCap(t *testing.T) {
	store, _, _ := newTestStore(t)
	d := draft("AlmostFull")
	d.Photos = []string{"a", "b", "c", "d"}
	key, err := store.CreateTicket(context.Background(), d)
	require.NoError(t, err)

	uploader := &gatedUploader{release: make(chan struct{}), started: make(chan struct{}, 2)}
	errs := addPhotosConcurrently(t, NewAttachmentService(store, uploader, nil), uploader, key, 2)

	var failed int
	for _, err := range errs {
		if err != nil {
			failed++
			assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
		}
	}
	assert.Equal(t, 1, failed)

	ticket, err := store.Ticket(context.Background(), key)
	require.NoError(t, err)
	assert.Len(t, ticket.Photos, domain.DefaultMaxPhotos)
}

func TestAddPhoto_CapCheckedBeforeUpload(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	d := draft("Full")
	d.Photos = []string{"a", "b", "c", "d", "e"}
	key, err := store.CreateTicket(ctx, d)
	require.NoError(t, err)

	uploader := &mockUploader{}
	svc := NewAttachmentService(store, uploader, nil)

	_, err = svc.AddPhoto(ctx, key, []byte("img"), "image/jpeg", nil)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
	assert.Zero(t, uploader.calls)
}

func TestAddPhoto_UploadAndStoreErrorsAreDistinct(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	key, err := store.CreateTicket(ctx, draft("Omar"))
	require.NoError(t, err)

	failing := &mockUploader{UploadImageFunc: func(context.Context, []byte, string, string, upload.ProgressFunc) (string, error) {
		return "", apperrors.NewUploadFailed(errors.New("bucket offline"))
	}}
	_, err = NewAttachmentService(store, failing, nil).AddPhoto(ctx, key, []byte("img"), "image/png", nil)
	assert.Equal(t, apperrors.CodeUploadFailed, apperrors.CodeOf(err))

	ok := &mockUploader{UploadImageFunc: func(context.Context, []byte, string, string, upload.ProgressFunc) (string, error) {
		return "https://files/x.png", nil
	}}
	one := 1
	techCtx := access.WithActor(ctx, access.Actor{UID: "t1", Role: domain.RoleTechnician, TechnicianID: &one})
	url, err := NewAttachmentService(store, ok, nil).AddPhoto(techCtx, key, []byte("img"), "image/png", nil)
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))
	assert.Equal(t, "https://files/x.png", url)
}

func TestSetSignature(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	key, err := store.CreateTicket(ctx, draft("Sign"))
	require.NoError(t, err)

	var gotFolder, gotType string
	uploader := &mockUploader{UploadImageFunc: func(_ context.Context, data []byte, contentType, folder string, _ upload.ProgressFunc) (string, error) {
		gotFolder, gotType = folder, contentType
		return "https://files/signatures/s.png", nil
	}}
	svc := NewAttachmentService(store, uploader, nil)

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})
	url, err := svc.SetSignature(ctx, key, dataURL)
	require.NoError(t, err)
	assert.Equal(t, upload.FolderSignatures, gotFolder)
	assert.Equal(t, "image/png", gotType)

	ticket, err := store.Ticket(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, url, ticket.CustomerSignature)

	_, err = svc.SetSignature(ctx, key, "not-a-data-url")
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}
