package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"casefinder-backend/index"
	"casefinder-backend/models"
	"casefinder-backend/service"
	"casefinder-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProcessor struct {
	resp     *models.QueryResponse
	err      error
	requests []service.QueryRequest
	analysis *models.Analysis
	list     []models.Analysis
	limit    int
	getErr   error
}

func (f *fakeProcessor) Process(ctx context.Context, text string) (*models.QueryResponse, error) {
	return f.ProcessRequest(ctx, service.QueryRequest{Text: text, Source: models.SourceText})
}

func (f *fakeProcessor) ProcessRequest(ctx context.Context, req service.QueryRequest) (*models.QueryResponse, error) {
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func (f *fakeProcessor) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	return f.analysis, f.getErr
}

func (f *fakeProcessor) ListAnalyses(ctx context.Context, limit int) ([]models.Analysis, error) {
	f.limit = limit
	return f.list, f.getErr
}

type fakeInfo struct{}

func (fakeInfo) Len() int        { return 3 }
func (fakeInfo) Dimension() int  { return 768 }
func (fakeInfo) ModelID() string { return "legal-bert" }

func okResponse() *models.QueryResponse {
	link := "https://example.org/1"
	return &models.QueryResponse{
		Issues:     []string{"breach of contract"},
		Cases:      []models.CaseRecord{{Title: "Smith v. Jones", Jurisdiction: "NY", Summary: "lease", Link: &link}},
		References: []string{"UCC §2-207"},
		Links:      []*string{&link},
	}
}

func newTestRouter(p *fakeProcessor, archive storage.Storage, maxSize int64, origins ...string) *gin.Engine {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h := NewQueryHandler(p, fakeInfo{}, archive, maxSize, logr.Discard())
	return NewRouter(h, origins)
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	return errBody["code"].(string)
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRootAndHealth(t *testing.T) {
	r := newTestRouter(&fakeProcessor{}, nil, 0)

	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["message"], "/api/query")

	w = do(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(3), body["cases"])
	assert.Equal(t, float64(768), body["dimension"])
	assert.Equal(t, "legal-bert", body["embedder"])
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(&fakeProcessor{}, nil, 0)
	w := do(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "casefinder_corpus_cases")
}

func TestQueryReturnsResponseShape(t *testing.T) {
	p := &fakeProcessor{resp: okResponse()}
	r := newTestRouter(p, nil, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"landlord kept my deposit"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	for _, key := range []string{"issues", "cases", "references", "links", "raw_llm"} {
		assert.Contains(t, body, key)
	}
	assert.Nil(t, body["raw_llm"])
	assert.Equal(t, []any{"breach of contract"}, body["issues"])
	assert.Equal(t, []any{"https://example.org/1"}, body["links"])

	require.Len(t, p.requests, 1)
	assert.Equal(t, "landlord kept my deposit", p.requests[0].Text)
	assert.Equal(t, models.SourceText, p.requests[0].Source)
}

func TestQueryRejectsBadBody(t *testing.T) {
	r := newTestRouter(&fakeProcessor{}, nil, 0)

	for _, body := range []string{`not json`, `{}`, `{"query":""}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := do(r, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
	}
}

func TestQueryErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrEmptyQuery, http.StatusBadRequest, "EMPTY_QUERY"},
		{fmt.Errorf("analyze: %w", service.ErrReasoningUnavailable), http.StatusBadGateway, "REASONING_UNAVAILABLE"},
		{fmt.Errorf("search index: %w", index.ErrDimensionMismatch), http.StatusInternalServerError, "PROCESSING_FAILED"},
		{fmt.Errorf("unexpected"), http.StatusInternalServerError, "PROCESSING_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r := newTestRouter(&fakeProcessor{err: tt.err}, nil, 0)
			req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"q"}`))
			req.Header.Set("Content-Type", "application/json")
			w := do(r, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestUploadTextWithLatin1Fallback(t *testing.T) {
	archiveDir := t.TempDir()
	archive, err := storage.NewLocalStorage(archiveDir)
	require.NoError(t, err)

	p := &fakeProcessor{resp: okResponse()}
	r := newTestRouter(p, archive, 0)

	w := do(r, uploadRequest(t, "file", "Facts.TXT", []byte("Caf\xe9 owner broke the lease")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, p.requests, 1)
	assert.Equal(t, "Café owner broke the lease", p.requests[0].Text)
	assert.Equal(t, models.SourceUpload, p.requests[0].Source)
	require.NotNil(t, p.requests[0].Filename)
	assert.Equal(t, "Facts.TXT", *p.requests[0].Filename)

	archived := archivedFiles(t, archiveDir)
	require.Len(t, archived, 1)
	assert.True(t, strings.HasSuffix(archived[0], "_Facts.txt"))
}

func archivedFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	require.NoError(t, filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, filepath.Base(path))
		}
		return err
	}))
	return files
}

func TestUploadFailureDiscardsArchive(t *testing.T) {
	archiveDir := t.TempDir()
	archive, err := storage.NewLocalStorage(archiveDir)
	require.NoError(t, err)

	p := &fakeProcessor{err: fmt.Errorf("wrapped: %w", service.ErrReasoningUnavailable)}
	r := newTestRouter(p, archive, 0)

	w := do(r, uploadRequest(t, "file", "facts.txt", []byte("tenant withheld rent")))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	require.Len(t, p.requests, 1)
	assert.Empty(t, archivedFiles(t, archiveDir))
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name    string
		req     func(t *testing.T) *http.Request
		maxSize int64
		status  int
		code    string
	}{
		{"wrong extension", func(t *testing.T) *http.Request {
			return uploadRequest(t, "file", "malware.exe", []byte("MZ"))
		}, 0, http.StatusBadRequest, "INVALID_FILE_TYPE"},
		{"too large", func(t *testing.T) *http.Request {
			return uploadRequest(t, "file", "big.txt", bytes.Repeat([]byte("a"), 100))
		}, 10, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"body over multipart limit", func(t *testing.T) *http.Request {
			return uploadRequest(t, "file", "huge.txt", bytes.Repeat([]byte("a"), 3<<20))
		}, 10, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"no text", func(t *testing.T) *http.Request {
			return uploadRequest(t, "file", "blank.txt", []byte("   \n"))
		}, 0, http.StatusBadRequest, "EXTRACTION_FAILED"},
		{"corrupt docx", func(t *testing.T) *http.Request {
			return uploadRequest(t, "file", "broken.docx", []byte("not a zip"))
		}, 0, http.StatusBadRequest, "EXTRACTION_FAILED"},
		{"missing file", func(t *testing.T) *http.Request {
			return uploadRequest(t, "document", "facts.txt", []byte("text"))
		}, 0, http.StatusBadRequest, "MISSING_FILE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{resp: okResponse()}
			r := newTestRouter(p, nil, tt.maxSize)
			w := do(r, tt.req(t))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
			assert.Empty(t, p.requests)
		})
	}
}

func TestGetAnalysis(t *testing.T) {
	id := uuid.New()

	r := newTestRouter(&fakeProcessor{analysis: &models.Analysis{ID: id, Source: models.SourceText}}, nil, 0)
	w := do(r, httptest.NewRequest(http.MethodGet, "/api/analyses/"+id.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, id.String(), body["data"].(map[string]any)["id"])

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/analyses/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ANALYSIS_ID", errorCode(t, w))

	r = newTestRouter(&fakeProcessor{getErr: service.ErrAnalysisNotFound}, nil, 0)
	w = do(r, httptest.NewRequest(http.MethodGet, "/api/analyses/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	r = newTestRouter(&fakeProcessor{getErr: service.ErrHistoryDisabled}, nil, 0)
	w = do(r, httptest.NewRequest(http.MethodGet, "/api/analyses/"+id.String(), nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListAnalyses(t *testing.T) {
	p := &fakeProcessor{list: []models.Analysis{{ID: uuid.New(), Source: models.SourceUpload}}}
	r := newTestRouter(p, nil, 0)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/analyses", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, p.limit)
	body := decode(t, w)
	assert.Len(t, body["data"], 1)

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/analyses?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, p.limit)

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/analyses?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_LIMIT", errorCode(t, w))

	r = newTestRouter(&fakeProcessor{getErr: service.ErrHistoryDisabled}, nil, 0)
	w = do(r, httptest.NewRequest(http.MethodGet, "/api/analyses", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORS(t *testing.T) {
	r := newTestRouter(&fakeProcessor{}, nil, 0)
	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	w := do(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "content-type", w.Header().Get("Access-Control-Allow-Headers"))

	r = newTestRouter(&fakeProcessor{}, nil, 0, "https://app.example.org")
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.org")
	w = do(r, req)
	assert.Equal(t, "https://app.example.org", w.Header().Get("Access-Control-Allow-Origin"))
}
