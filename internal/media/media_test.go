package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
)

func pngFile(name string) File {
	return File{Name: name, Data: append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)}
}

func jpegFile(name string) File {
	return File{Name: name, Data: append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 64)...)}
}

func mp4File(name string) File {
	head := []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")
	return File{Name: name, Data: append(head, make([]byte, 64)...)}
}

func textFile(name string) File {
	return File{Name: name, Data: []byte("just some text, definitely not an image")}
}

func TestLimitsCheck(t *testing.T) {
	limits := Limits{MaxImageBytes: 100, MaxVideoBytes: 200, MaxImages: 2}

	tests := []struct {
		name     string
		kind     Kind
		file     File
		wantKind apperr.Kind
		wantErr  bool
		wantMIME string
	}{
		{name: "png ok", kind: KindImage, file: pngFile("a.png"), wantMIME: "image/png"},
		{name: "jpeg ok", kind: KindImage, file: jpegFile("a.jpg"), wantMIME: "image/jpeg"},
		{name: "text as image", kind: KindImage, file: textFile("a.png"), wantErr: true, wantKind: apperr.KindUnsupportedMedia},
		{name: "too large", kind: KindImage, file: File{Name: "big.png", Data: append(pngFile("").Data, make([]byte, 100)...)}, wantErr: true, wantKind: apperr.KindTooLarge},
		{name: "empty", kind: KindImage, file: File{Name: "e.png"}, wantErr: true, wantKind: apperr.KindValidation},
		{name: "image as video", kind: KindVideo, file: pngFile("a.png"), wantErr: true, wantKind: apperr.KindUnsupportedMedia},
		{name: "mp4 ok", kind: KindVideo, file: mp4File("v.mp4")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, err := limits.Check(tt.kind, tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && apperr.KindOf(err) != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", apperr.KindOf(err), tt.wantKind)
			}
			if !tt.wantErr && tt.wantMIME != "" && mime != tt.wantMIME {
				t.Errorf("mime = %q, want %q", mime, tt.wantMIME)
			}
		})
	}
}

func TestCheckBatchCount(t *testing.T) {
	limits := Limits{MaxImageBytes: 1 << 20, MaxImages: 2}
	err := limits.CheckBatch([]File{pngFile("1"), pngFile("2"), pngFile("3")})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("CheckBatch() error = %v, want validation", err)
	}
	if err := limits.CheckBatch(nil); err == nil {
		t.Error("CheckBatch(nil) should fail")
	}
}

func TestEncode(t *testing.T) {
	enc, err := Encode(pngFile("p.png"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if enc.Name != "p.png" || enc.Type != "image/png" || enc.Size != 72 || enc.Base64 == "" {
		t.Errorf("Encode() = %+v", enc)
	}
	if _, err := Encode(File{Name: "empty"}); err == nil {
		t.Error("Encode() of empty file should fail")
	}
}

func newCloudinary(t *testing.T, h http.HandlerFunc) *Uploader {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewUploader(UploaderOptions{
		BaseURL: srv.URL + "/v1_1",
		Cloud:   "demo",
		Preset:  "ml_default",
		Limits:  DefaultLimits,
	})
}

func TestUploadImages(t *testing.T) {
	var calls atomic.Int32
	u := newCloudinary(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1_1/demo/image/upload" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		if r.FormValue("upload_preset") != "ml_default" {
			t.Errorf("upload_preset = %q", r.FormValue("upload_preset"))
		}
		if r.FormValue("public_id") == "" {
			t.Error("public_id missing")
		}
		_, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		_, _ = io.WriteString(w, `{"secure_url":"https://res.example/`+hdr.Filename+`"}`)
	})

	urls, err := u.UploadImages(context.Background(), []File{pngFile("a.png"), jpegFile("b.jpg"), pngFile("c.png")})
	if err != nil {
		t.Fatalf("UploadImages() error = %v", err)
	}
	want := []string{"https://res.example/a.png", "https://res.example/b.jpg", "https://res.example/c.png"}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestUploadPrecheckAvoidsNetwork(t *testing.T) {
	var calls atomic.Int32
	u := newCloudinary(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := u.UploadImages(context.Background(), []File{pngFile("ok.png"), textFile("bad.png")})
	if apperr.KindOf(err) != apperr.KindUnsupportedMedia {
		t.Errorf("UploadImages() error = %v, want unsupported media", err)
	}
	if calls.Load() != 0 {
		t.Errorf("network called %d times despite failed precheck", calls.Load())
	}
}

func TestUploadFailureReported(t *testing.T) {
	u := newCloudinary(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Upload preset not found"}}`)
	})

	_, err := u.UploadImages(context.Background(), []File{pngFile("a.png")})
	if apperr.KindOf(err) != apperr.KindUpload {
		t.Fatalf("UploadImages() error = %v, want upload", err)
	}
	if !strings.Contains(err.Error(), "Upload preset not found") {
		t.Errorf("error %q should carry the host message", err)
	}
}

func TestUploadVideo(t *testing.T) {
	u := newCloudinary(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1_1/demo/video/upload" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"secure_url":"https://res.example/v.mp4"}`)
	})

	url, err := u.UploadVideo(context.Background(), mp4File("v.mp4"))
	if err != nil || url != "https://res.example/v.mp4" {
		t.Errorf("UploadVideo() = %q, %v", url, err)
	}
}

func TestUploadCancelled(t *testing.T) {
	release := make(chan struct{})
	u := newCloudinary(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := u.UploadImages(ctx, []File{pngFile("a.png")})
	if apperr.KindOf(err) != apperr.KindUpload {
		t.Errorf("UploadImages() error = %v, want upload", err)
	}
}

func TestUploadNotConfigured(t *testing.T) {
	u := NewUploader(UploaderOptions{Limits: DefaultLimits})
	if _, err := u.UploadImages(context.Background(), []File{pngFile("a.png")}); apperr.KindOf(err) != apperr.KindUpload {
		t.Errorf("UploadImages() error = %v, want upload", err)
	}
}
