package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"pmds/internal/platform/requestctx"
	"pmds/internal/transport/http/api"
)

var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// ClientIP prefers the address captured by the request id middleware.
func ClientIP(r *http.Request) string {
	if client := requestctx.GetClient(r.Context()); client.IP != "" {
		return client.IP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// DecodeJSON decodes the body into dst and writes the invalid_payload
// response itself when decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestctx.GetRequestID(r.Context()))
		return false
	}
	return true
}

// Rating validates an optional 0-4 rating with at most two decimals.
func (v *Validator) Rating(field string, value *decimal.Decimal) {
	if value == nil {
		return
	}
	if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(4)) {
		v.Add(field, "must be between 0 and 4")
		return
	}
	if !value.Equal(value.Round(2)) {
		v.Add(field, "must have at most two decimal places")
	}
}

func (v *Validator) Percent(field string, value decimal.Decimal) {
	if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(100)) {
		v.Add(field, "must be between 0 and 100")
	}
}

type Upload struct {
	File        multipart.File
	Filename    string
	Size        int64
	ContentType string
}

// ReadUpload opens a single multipart file field. The caller closes File.
func ReadUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024*1024)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Upload{}, ErrUploadTooLarge
		}
		return Upload{}, fmt.Errorf("parse multipart form: %w", err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return Upload{}, fmt.Errorf("read %s: %w", field, err)
	}
	if header.Size > maxBytes {
		_ = file.Close()
		return Upload{}, ErrUploadTooLarge
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(file, head)
		contentType = http.DetectContentType(head[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			_ = file.Close()
			return Upload{}, err
		}
	}
	return Upload{
		File:        file,
		Filename:    filepath.Base(header.Filename),
		Size:        header.Size,
		ContentType: contentType,
	}, nil
}
