package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/Vox/internal/services"
	"github.com/soaringjerry/Vox/internal/storage"
)

const testUserID = "6f1c2a4e-8a55-4c1e-9a43-2f0b1f5d7e10"

type testEnv struct {
	store *MemoryStore
	blobs *storage.LocalStore
	srv   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := NewMemoryStore()
	mux := http.NewServeMux()
	srv := httptest.NewUnstartedServer(nil)
	blobs, err := storage.NewLocalStore(t.TempDir(), "recordings", "http://"+srv.Listener.Addr().String(), []byte("k"), nil)
	require.NoError(t, err)
	rt := NewRouter(Config{
		Store:              store,
		Blobs:              blobs,
		Bucket:             "recordings",
		RecordingsPassword: "correct",
		SetupSecret:        "boot",
	})
	rt.Register(mux)
	mux.Handle(storage.SignPrefix, blobs.Handler())
	srv.Config.Handler = rt.Handler(mux)
	srv.Start()
	t.Cleanup(srv.Close)
	return &testEnv{store: store, blobs: blobs, srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-session-token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (e *testEnv) doRaw(t *testing.T, path, token, body string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-session-token", token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/verify-password", "", map[string]string{"password": "correct"})
	require.Equal(t, http.StatusOK, status)
	return body["sessionToken"].(string)
}

func (e *testEnv) upload(t *testing.T, question int, contentType string, data []byte) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("user_id", testUserID))
	require.NoError(t, mw.WriteField("question_id", itoa(question)))
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="audio"; filename="answer"`}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write(data)
	require.NoError(t, mw.Close())
	resp, err := http.Post(e.srv.URL+"/api/recordings", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func itoa(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestVerifyPassword(t *testing.T) {
	env := newTestEnv(t)
	before := time.Now().UTC()

	status, body := env.do(t, http.MethodPost, "/api/verify-password", "", map[string]string{"password": "correct"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])
	assert.Regexp(t, hex64, body["sessionToken"])
	exp, err := time.Parse(time.RFC3339, body["expiresAt"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(24*time.Hour), exp, 5*time.Second)

	status, body = env.do(t, http.MethodPost, "/api/verify-password", "", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["valid"])

	status, body = env.do(t, http.MethodPost, "/api/verify-password", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["valid"])
}

func TestVerifyPasswordMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Post(env.srv.URL+"/api/verify-password", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// Login, list within the window newest first, then force expiry and get a
// 401 on the same call.
func TestRecordingsListLifecycle(t *testing.T) {
	env := newTestEnv(t)
	for q := 1; q <= 3; q++ {
		env.upload(t, q, "audio/wav", []byte("RIFF"))
		time.Sleep(2 * time.Millisecond)
	}
	token := env.login(t)

	status, body := env.do(t, http.MethodPost, "/api/get-recordings", token, nil)
	require.Equal(t, http.StatusOK, status)
	recs := body["recordings"].([]any)
	require.Len(t, recs, 3)
	assert.EqualValues(t, 3, recs[0].(map[string]any)["question_id"])
	assert.EqualValues(t, 1, recs[2].(map[string]any)["question_id"])

	status, _ = env.do(t, http.MethodGet, "/api/get-recordings", token, nil)
	assert.Equal(t, http.StatusOK, status)

	require.True(t, env.store.ExpireSession(token, time.Now().Add(-time.Second)))
	status, body = env.do(t, http.MethodPost, "/api/get-recordings", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	expiredMsg := body["error"]

	status, body = env.do(t, http.MethodPost, "/api/get-recordings", "never-issued", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, expiredMsg, body["error"], "expired and unknown tokens look the same")

	status, _ = env.do(t, http.MethodPost, "/api/get-recordings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestDownloadRecording(t *testing.T) {
	env := newTestEnv(t)
	up := env.upload(t, 2, "audio/basic", []byte{0xff, 0x7f})
	token := env.login(t)

	status, body := env.do(t, http.MethodPost, "/api/download-recording", token, map[string]string{"filePath": up["objectKey"].(string)})
	require.Equal(t, http.StatusOK, status)
	signed := body["signedUrl"].(string)
	resp, err := http.Get(signed)
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte{0xff, 0x7f}, data)

	status, _ = env.do(t, http.MethodPost, "/api/download-recording", token, map[string]string{"audioUrl": up["audioUrl"].(string)})
	assert.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPost, "/api/download-recording", token, map[string]string{"recordingId": up["id"].(string)})
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodPost, "/api/download-recording", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	status, body = env.do(t, http.MethodPost, "/api/download-recording", token, map[string]string{"filePath": "nobody/1-1.wav"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Failed to create download URL", body["error"])
	status, _ = env.do(t, http.MethodPost, "/api/download-recording", token, map[string]string{"recordingId": "never-uploaded"})
	assert.Equal(t, http.StatusInternalServerError, status)
	status, _ = env.do(t, http.MethodPost, "/api/download-recording", "", map[string]string{"filePath": up["objectKey"].(string)})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Post(env.srv.URL+"/api/recordings", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A zero-byte recording is still a valid upload.
	out := env.upload(t, 0, "audio/wav", nil)
	assert.NotEmpty(t, out["objectKey"])
}

func TestManageRolesAndBootstrap(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	// The password session's user holds no role yet.
	status, _ := env.do(t, http.MethodPost, "/api/manage-roles", token, map[string]string{"action": "list", "userId": "x", "role": "admin"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPost, "/api/setup-initial-admin", "", map[string]string{"setupSecret": "bad", "userId": services.PasswordUserID})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.do(t, http.MethodPost, "/api/setup-initial-admin", "", map[string]string{"setupSecret": "boot"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, body := env.do(t, http.MethodPost, "/api/setup-initial-admin", "", map[string]string{"setupSecret": "boot", "userId": services.PasswordUserID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	status, _ = env.do(t, http.MethodPost, "/api/setup-initial-admin", "", map[string]string{"setupSecret": "boot", "userId": "someone-else"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodPost, "/api/manage-roles", token, map[string]string{"action": "add", "userId": "u2", "role": "admin"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Role added successfully", body["message"])

	status, body = env.do(t, http.MethodPost, "/api/manage-roles", token, map[string]string{"action": "list", "userId": "u2", "role": "admin"})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["roles"], 2)

	status, _ = env.do(t, http.MethodPost, "/api/manage-roles", token, map[string]string{"action": "promote", "userId": "u2", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestManageRolesChecksAdminBeforeBody(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	assert.Equal(t, http.StatusForbidden, env.doRaw(t, "/api/manage-roles", token, "{not json"))
	assert.Equal(t, http.StatusForbidden, env.doRaw(t, "/api/manage-roles", token, ""))

	status, _ := env.do(t, http.MethodPost, "/api/setup-initial-admin", "", map[string]string{"setupSecret": "boot", "userId": services.PasswordUserID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.StatusBadRequest, env.doRaw(t, "/api/manage-roles", token, "{not json"))
}

func TestSignOutInvalidatesToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	status, _ := env.do(t, http.MethodPost, "/api/sign-out", token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPost, "/api/get-recordings", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCheckWhitelist(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.AddWhitelistEmail(context.Background(), "ops@example.com"))
	status, body := env.do(t, http.MethodPost, "/api/check-whitelist", "", map[string]string{"email": "Ops@Example.com"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["allowed"])
	status, _ = env.do(t, http.MethodPost, "/api/check-whitelist", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestQuestionsLocalized(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodGet, "/api/questions?lang=es", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "es", body["locale"])
	assert.Len(t, body["questions"], services.QuestionCount)
}

func TestPreflightAndMethods(t *testing.T) {
	env := newTestEnv(t)
	req, _ := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/manage-roles", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, _ := env.do(t, http.MethodGet, "/api/verify-password", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}
