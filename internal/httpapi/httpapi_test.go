package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weimengliu/textproof/internal/adaptercache"
	"github.com/weimengliu/textproof/internal/catalog"
	"github.com/weimengliu/textproof/internal/config"
	"github.com/weimengliu/textproof/internal/precorrector"
	"github.com/weimengliu/textproof/internal/prompt"
	"github.com/weimengliu/textproof/internal/provider"
	"github.com/weimengliu/textproof/internal/store"
	"github.com/weimengliu/textproof/internal/task"
)

// fakeAdapter implements provider.Adapter without any network access;
// it appends a fixed marker so tests can assert the correction ran.
type fakeAdapter struct{ name string }

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Correct(_ context.Context, text, _ string) (string, error) {
	return text + "改", nil
}
func (f *fakeAdapter) HealthCheck(_ context.Context) bool { return true }

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfgStore, err := config.NewStore("", nil)
	require.NoError(t, err)

	promptMgr, err := prompt.NewManager("", "")
	require.NoError(t, err)
	t.Cleanup(func() { promptMgr.Close() })

	st, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tasks := task.NewManager(st, nil)
	t.Cleanup(tasks.Stop)

	cache, err := adaptercache.New(0, cfgStore, nil)
	require.NoError(t, err)

	cat, err := catalog.Load(nil)
	require.NoError(t, err)

	app := NewApp(cfgStore, promptMgr, cache, tasks, cat, precorrector.Noop{}, nil)

	// Seed the adapter cache so resolveEngine never calls provider.New
	// (which would try to build a real network-backed adapter).
	_, err = cache.GetOrCreate("openai", "test-model", func() (provider.Adapter, error) {
		return &fakeAdapter{name: "openai"}, nil
	})
	require.NoError(t, err)

	return app
}

func TestHandleCorrectReturnsCorrectedText(t *testing.T) {
	app := newTestApp(t)
	router := app.Router(nil)

	body, _ := json.Marshal(CorrectRequest{Text: "原文", Provider: "openai", ModelName: "test-model"})
	req := httptest.NewRequest(http.MethodPost, "/api/correct", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CorrectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "原文改", resp.Corrected)
	assert.True(t, resp.HasChanges)
}

func TestHandleDiffComputesSegments(t *testing.T) {
	app := newTestApp(t)
	router := app.Router(nil)

	body, _ := json.Marshal(DiffRequest{Text: "原文", Corrected: "原文改"})
	req := httptest.NewRequest(http.MethodPost, "/api/diff", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		HasChanges bool `json:"has_changes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.HasChanges)
}

func TestHandleCorrectFileRejectsUTF16Upload(t *testing.T) {
	app := newTestApp(t)
	router := app.Router(nil)

	utf16Bytes := encodeUTF16BOM("这是一段需要校对的文本。")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "novel.txt")
	require.NoError(t, err)
	_, err = part.Write(utf16Bytes)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/correct/file", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCorrectFileAcceptsUTF8AndCreatesTask(t *testing.T) {
	app := newTestApp(t)
	router := app.Router(nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "novel.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("这是一段需要校对的文本。"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("provider", "openai"))
	require.NoError(t, w.WriteField("model_name", "test-model"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/correct/file", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, "processing", resp.Status)
}

func encodeUTF16BOM(s string) []byte {
	runes := utf16.Encode([]rune(s))
	out := []byte{0xFF, 0xFE}
	for _, r := range runes {
		out = append(out, byte(r&0xFF), byte(r>>8))
	}
	return out
}
