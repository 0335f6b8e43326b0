package api

import (
	"bitwise74/audio-api/middleware"
	"bitwise74/audio-api/model"
	"bitwise74/audio-api/service"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// copyTranscoder stands in for ffmpeg: it renames the raw upload into
// its canonical sibling without touching the bytes
type copyTranscoder struct{}

func (copyTranscoder) Transcode(_ context.Context, rawPath string) (string, error) {
	outPath := strings.TrimSuffix(rawPath, ".raw")
	outPath = strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".mp3"

	if err := os.Rename(rawPath, outPath); err != nil {
		return "", err
	}

	return outPath, nil
}

func newTestAPI(t *testing.T) *API {
	return newTestAPIWithLimit(t, 10<<20)
}

func newTestAPIWithLimit(t *testing.T, maxUpload int64) *API {
	t.Helper()

	gin.SetMode(gin.TestMode)
	viper.Set("jwt.secret", "test-secret")
	viper.Set("upload.max_size", maxUpload)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.Asset{}))

	storage := service.NewStorage(t.TempDir())

	a := &API{
		DB:      db,
		Router:  gin.New(),
		Manager: service.NewManager(storage, copyTranscoder{}, service.NewIndex(db)),
	}

	a.Router.Use(middleware.NewRequestIDMiddleware())
	a.registerRoutes()

	return a
}

func signToken(t *testing.T, userID, role string) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}

// wavBytes builds a minimal PCM wav file around the given payload so
// the upload validator's content sniffing accepts it
func wavBytes(payload []byte) []byte {
	var b bytes.Buffer

	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(payload)))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))     // PCM
	binary.Write(&b, binary.LittleEndian, uint16(1))     // mono
	binary.Write(&b, binary.LittleEndian, uint32(8000))  // sample rate
	binary.Write(&b, binary.LittleEndian, uint32(16000)) // byte rate
	binary.Write(&b, binary.LittleEndian, uint16(2))     // block align
	binary.Write(&b, binary.LittleEndian, uint16(16))    // bits per sample

	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(payload)))
	b.Write(payload)

	return b.Bytes()
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "audio/wav")

	part, err := w.CreatePart(h)
	require.NoError(t, err)

	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/audio/file/upload-file", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return req
}

func doUpload(t *testing.T, a *API, userID, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := uploadRequest(t, filename, content)
	req.Header.Set("Authorization", "Bearer "+signToken(t, userID, middleware.RoleUser))

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	return rec
}

func linkTail(t *testing.T, link string) string {
	t.Helper()

	u, err := url.Parse(link)
	require.NoError(t, err)

	return u.Path + "?" + u.RawQuery
}

func TestUploadAndDownloadRoundTrip(t *testing.T) {
	a := newTestAPI(t)

	content := wavBytes([]byte("payload"))

	rec := doUpload(t, a, "u1", "note.wav", content)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Link string `json:"link"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Link, "/audio/record?record_id=")
	assert.Contains(t, resp.Link, "user_id=u1")

	// Following the returned link streams back the stored bytes
	req := httptest.NewRequest(http.MethodGet, linkTail(t, resp.Link), nil)
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "note.mp3")
}

func TestUploadDuplicateRejected(t *testing.T) {
	a := newTestAPI(t)

	content := wavBytes([]byte("payload"))

	rec := doUpload(t, a, "u1", "note.wav", content)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doUpload(t, a, "u1", "note.wav", content)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestUploadRequiresToken(t *testing.T) {
	a := newTestAPI(t)

	req := uploadRequest(t, "note.wav", wavBytes(nil))

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadRejectsNonWav(t *testing.T) {
	a := newTestAPI(t)

	rec := doUpload(t, a, "u1", "note.wav", []byte("definitely not audio"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadOverLimitBody(t *testing.T) {
	a := newTestAPIWithLimit(t, 1<<10)

	content := wavBytes(bytes.Repeat([]byte("x"), 4<<10))

	// A declared length over the limit trips the middleware fast path
	rec := doUpload(t, a, "u1", "big.wav", content)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	// With no declared length only the capped reader catches it, and
	// the handler must still answer 413 rather than a generic 500
	req := uploadRequest(t, "big.wav", content)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u1", middleware.RoleUser))
	req.ContentLength = -1

	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestRecordUnknownLink(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/audio/record?record_id=missing&user_id=u1", nil)
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordWrongOwnerLink(t *testing.T) {
	a := newTestAPI(t)

	rec := doUpload(t, a, "u1", "note.wav", wavBytes([]byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Link string `json:"link"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// Swap the claimed owner, the link must stop resolving
	forged := strings.Replace(linkTail(t, resp.Link), "user_id=u1", "user_id=u2", 1)

	req := httptest.NewRequest(http.MethodGet, forged, nil)
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAudioURLsAdminOnly(t *testing.T) {
	a := newTestAPI(t)

	rec := doUpload(t, a, "u1", "note.wav", wavBytes([]byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/audio/audio_urls", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u1", middleware.RoleUser))
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/audio/audio_urls", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "admin1", middleware.RoleAdmin))
	req.Host = "cdn.example.com"
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var urls []service.RecordURL
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &urls))
	require.Len(t, urls, 1)
	assert.Equal(t, "u1/note.mp3", urls[0].Name)
	assert.Contains(t, urls[0].Link, "http://cdn.example.com/audio/record?record_id=")
}

func TestDeleteByUserScoped(t *testing.T) {
	a := newTestAPI(t)

	rec := doUpload(t, a, "u1", "note.wav", wavBytes([]byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Link string `json:"link"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assetID, _, err := service.DecodeRecordURL(resp.Link)
	require.NoError(t, err)

	// Someone else's delete reads as not-found and changes nothing
	req := httptest.NewRequest(http.MethodDelete, "/audio/delete_audio_by_user?record_id="+assetID, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u2", middleware.RoleUser))
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/audio/delete_audio_by_user?record_id="+assetID, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u1", middleware.RoleUser))
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var deleted []model.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	require.Len(t, deleted, 1)
	assert.Equal(t, assetID, deleted[0].ID)

	// The link is dead afterwards
	req = httptest.NewRequest(http.MethodGet, linkTail(t, resp.Link), nil)
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteByAdmin(t *testing.T) {
	a := newTestAPI(t)

	rec := doUpload(t, a, "u1", "note.wav", wavBytes([]byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Link string `json:"link"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assetID, _, err := service.DecodeRecordURL(resp.Link)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/audio/delete_audio_by_admin?record_id="+assetID, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "admin1", middleware.RoleAdmin))
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/audio/delete_audio_by_admin?record_id=missing", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "admin1", middleware.RoleAdmin))
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeartbeat(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodHead, "/api/heartbeat", nil)
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
