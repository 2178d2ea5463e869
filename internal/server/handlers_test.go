package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/export"
	"github.com/joseph-ayodele/register-extractor/internal/llm"
	"github.com/joseph-ayodele/register-extractor/internal/pipeline"
)

type upload struct {
	name string
	data []byte
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func multipartBody(t *testing.T, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile(uploadField, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

// fakeRecognizer answers by image name; "fail" in the name simulates a service failure.
func newTestRouter(t *testing.T, calls *int32) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := llm.RecognizerFunc(func(_ context.Context, img llm.Image, _ string) (string, error) {
		atomic.AddInt32(calls, 1)
		if strings.Contains(img.Name, "fail") {
			return "", errors.New("service unavailable")
		}
		return `[{"Date":"1/1","Name":"Sanjana","Age":"3O","Mobile No":"99","Amount":"10","Ward":"B"}]`, nil
	})
	proc := pipeline.NewProcessor(rec, nil)
	h := NewHandler(proc, export.NewService(common.ExportConfig{}, nil), 1<<20, nil)
	return NewRouter(h, nil)
}

func TestHealthzAndForm(t *testing.T) {
	var calls int32
	r := newTestRouter(t, &calls)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="images"`)
}

func TestExtract_EmptyBatch(t *testing.T) {
	var calls int32
	r := newTestRouter(t, &calls)

	body, ct := multipartBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "empty batch")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader("")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEqual(t, export.MIMEType, w.Header().Get("Content-Type"))

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestExtract_IsolatesFailedImage(t *testing.T) {
	var calls int32
	r := newTestRouter(t, &calls)

	img := pngBytes(t)
	body, ct := multipartBody(t,
		upload{"p1.png", img},
		upload{"p2-fail.png", img},
		upload{"notes.txt", []byte("hello")},
		upload{"p3.png", img},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp extractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BatchID)
	assert.Equal(t, []string{"Date", "Name", "Age", "Mobile No", "Amount", "SourceFile", "Ward"}, resp.Columns)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, []string{"1/1", "Ranjana", "30", "99", "10", "p1.png", "B"}, resp.Rows[0])
	assert.Equal(t, "p3.png", resp.Rows[1][5])

	require.Len(t, resp.Outcomes, 3)
	assert.Equal(t, "OK", resp.Outcomes[0].Status)
	assert.Equal(t, "FAILED", resp.Outcomes[1].Status)
	assert.Contains(t, resp.Outcomes[1].Error, "p2-fail.png")
	assert.Equal(t, "OK", resp.Outcomes[2].Status)

	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, "notes.txt", resp.Rejected[0].Source)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestExtract_OnlyRejectedUploads(t *testing.T) {
	var calls int32
	r := newTestRouter(t, &calls)

	body, ct := multipartBody(t, upload{"notes.txt", []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Rejected, 1)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestExport_ReturnsWorkbook(t *testing.T) {
	var calls int32
	r := newTestRouter(t, &calls)

	img := pngBytes(t)
	body, ct := multipartBody(t, upload{"a.png", img}, upload{"b.png", img})
	req := httptest.NewRequest(http.MethodPost, "/api/export", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, export.MIMEType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Patient_Records.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "0", w.Header().Get("X-Images-Failed"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Records")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a.png", rows[1][5])
	assert.Equal(t, "b.png", rows[2][5])
}
