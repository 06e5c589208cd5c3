package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
	"github.com/spec-kit/repair-desk/pkg/util/retry"
)

// ProgressFunc receives upload progress as a percentage in [0, 100]. Values
// never decrease within one upload.
type ProgressFunc func(percent float64)

// PipelineConfig tunes the pipeline.
type PipelineConfig struct {
	MaxDimension int
	MaxPixels    int
	MaxAttempts  int
	Backoff      time.Duration

	// OnResult, when set, is told the outcome of every store write.
	OnResult func(folder string, ok bool)
}

// Pipeline downscales images and writes them to a BlobStore.
type Pipeline struct {
	store     BlobStore
	logger    *zap.Logger
	maxDim    int
	maxPixels int
	policy    retry.Policy
	now       func() time.Time
	onResult  func(folder string, ok bool)
}

// NewPipeline builds a pipeline around store.
func NewPipeline(store BlobStore, logger *zap.Logger, cfg PipelineConfig) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Pipeline{
		store:     store,
		logger:    logger,
		maxDim:    cfg.MaxDimension,
		maxPixels: cfg.MaxPixels,
		policy: retry.Policy{
			MaxAttempts:     cfg.MaxAttempts,
			InitialInterval: cfg.Backoff,
			MaxInterval:     10 * cfg.Backoff,
			Retryable:       transient,
		},
		now:       time.Now,
		onResult:  cfg.OnResult,
	}
}

// UploadImage downscales data, stores it under folder and returns its
// durable URL.
func (p *Pipeline) UploadImage(ctx context.Context, data []byte, contentType, folder string, onProgress ProgressFunc) (string, error) {
	tracker := &progress{total: int64(len(data)), last: -1, fn: onProgress}
	tracker.report(0)

	if len(data) == 0 {
		return "", apperrors.NewValidationError("empty image", map[string]any{"image": "no data"})
	}
	scaled, scaledType, err := Downscale(data, contentType, p.maxDim, p.maxPixels)
	if errors.Is(err, ErrImageTooLarge) {
		return "", apperrors.NewValidationError("image too large", map[string]any{"image": err.Error()})
	}
	if err != nil {
		return "", apperrors.NewValidationError("unsupported image", map[string]any{"image": err.Error()})
	}

	key := ObjectKey(folder, p.now(), scaledType)
	tracker.total = int64(len(scaled))

	err = retry.Do(ctx, p.policy, func(ctx context.Context) error {
		r := &progressReader{r: bytes.NewReader(scaled), progress: tracker}
		return p.store.Put(ctx, key, r, int64(len(scaled)), scaledType)
	})
	if p.onResult != nil {
		p.onResult(folder, err == nil)
	}
	if err != nil {
		p.logger.Warn("image upload failed", zap.String("key", key), zap.Error(err))
		return "", apperrors.NewUploadFailed(err)
	}

	tracker.complete()
	p.logger.Info("image uploaded",
		zap.String("key", key),
		zap.Int("original_bytes", len(data)),
		zap.Int("stored_bytes", len(scaled)))
	return p.store.URL(key), nil
}

func transient(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrInvalidKey)
}

type progress struct {
	total int64
	last  float64
	fn    ProgressFunc
}

func (p *progress) report(done int64) {
	pct := 0.0
	if p.total > 0 {
		pct = float64(done) * 100 / float64(p.total)
	}
	// The last few percent are held back until the store confirms the write.
	p.emit(min(pct, 99))
}

func (p *progress) complete() {
	p.emit(100)
}

func (p *progress) emit(pct float64) {
	pct = max(0, min(pct, 100))
	if p.fn == nil || pct <= p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}

type progressReader struct {
	r        io.Reader
	read     int64
	progress *progress
}

func (r *progressReader) Read(b []byte) (int, error) {
	n, err := r.r.Read(b)
	if n > 0 {
		r.read += int64(n)
		r.progress.report(r.read)
	}
	return n, err
}
