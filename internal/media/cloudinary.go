package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/MrSnakeDoc/mapmarks/internal/metrics"
	"github.com/MrSnakeDoc/mapmarks/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrNotConfigured is returned when no Cloudinary cloud name is set.
var ErrNotConfigured = errors.New("media uploads are not configured")

// uploadConcurrency bounds parallel uploads of one batch.
const uploadConcurrency = 4

type Uploader struct {
	baseURL string // ex: https://api.cloudinary.com/v1_1
	cloud   string
	preset  string
	limits  Limits
	http    *http.Client
	log     logger.Logger
}

type UploaderOptions struct {
	BaseURL string
	Cloud   string
	Preset  string
	Limits  Limits
	Client  *http.Client // nil => 2 minute timeout client
	Logger  logger.Logger
}

func NewUploader(opts UploaderOptions) *Uploader {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 2 * time.Minute}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Uploader{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		cloud:   opts.Cloud,
		preset:  opts.Preset,
		limits:  opts.Limits,
		http:    opts.Client,
		log:     opts.Logger,
	}
}

func (u *Uploader) Limits() Limits { return u.limits }

// UploadImages prechecks the whole batch, then uploads concurrently and
// returns the hosted URLs in input order. The first failure (or ctx
// cancellation) aborts the remaining uploads.
func (u *Uploader) UploadImages(ctx context.Context, files []File) ([]string, error) {
	if err := u.limits.CheckBatch(files); err != nil {
		return nil, err
	}
	if u.cloud == "" {
		return nil, apperr.Wrap(apperr.KindUpload, "Uploads are disabled.", ErrNotConfigured)
	}

	urls := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			url, err := u.upload(gctx, KindImage, f)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// UploadVideo prechecks and uploads one video.
func (u *Uploader) UploadVideo(ctx context.Context, f File) (string, error) {
	if _, err := u.limits.Check(KindVideo, f); err != nil {
		return "", err
	}
	if u.cloud == "" {
		return "", apperr.Wrap(apperr.KindUpload, "Uploads are disabled.", ErrNotConfigured)
	}
	return u.upload(ctx, KindVideo, f)
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (u *Uploader) upload(ctx context.Context, kind Kind, f File) (url string, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveUpstream("cloudinary", string(kind), start, err)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.MediaUploaded.WithLabelValues(string(kind), outcome).Inc()
	}()

	body, contentType, err := u.form(f)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpload, "Error uploading file", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/upload", u.baseURL, u.cloud, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpload, "Error uploading file", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperr.Wrap(apperr.KindUpload, "Upload cancelled", ctx.Err())
		}
		u.log.Warn("media host unreachable", logger.String("file", f.Name), logger.Error(err))
		return "", apperr.Wrap(apperr.KindUpload, "Error uploading file", err)
	}
	defer utils.DrainClose(resp.Body)

	var out uploadResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out)

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("media host returned %d", resp.StatusCode)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		u.log.Warn("upload rejected", logger.String("file", f.Name), logger.Int("status", resp.StatusCode), logger.String("message", msg))
		return "", apperr.Wrap(apperr.KindUpload, "Error uploading file", errors.New(msg))
	}
	if decodeErr != nil || out.SecureURL == "" {
		return "", apperr.Wrap(apperr.KindUpload, "Error uploading file", fmt.Errorf("no secure_url in response: %v", decodeErr))
	}

	u.log.Debug("file uploaded", logger.String("file", f.Name), logger.String("url", out.SecureURL))
	return out.SecureURL, nil
}

// form builds the unsigned-upload multipart body.
func (u *Uploader) form(f File) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := f.Name
	if name == "" {
		name = "upload"
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("upload_preset", u.preset); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("public_id", uuid.NewString()); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
