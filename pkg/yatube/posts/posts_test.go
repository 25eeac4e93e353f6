package posts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/yatube/pkg/yatube/auth"
	"github.com/mikepea/yatube/pkg/yatube/config"
	"github.com/mikepea/yatube/pkg/yatube/database"
	"github.com/mikepea/yatube/pkg/yatube/models"
	"github.com/mikepea/yatube/pkg/yatube/permissions"
	"github.com/mikepea/yatube/pkg/yatube/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testTokens = auth.NewTokenManager("test-secret", time.Hour, time.Hour)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	return db
}

func setupTestRouter(t *testing.T, db *gorm.DB) (*gin.Engine, *storage.DiskStorage) {
	gin.SetMode(gin.TestMode)
	store := storage.NewDiskStorage(t.TempDir(), "/media/")

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(auth.Authenticate(testTokens, db), permissions.OwnerOrReadOnly())
	NewHandler(db, store, "posts/").RegisterRoutes(api)
	r.GET("/media/*filepath", storage.Handler(store))
	return r, store
}

func createTestUser(t *testing.T, db *gorm.DB, username string) models.User {
	user := models.User{Username: username, PasswordHash: "hash", Active: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestPost(t *testing.T, db *gorm.DB, author models.User, text string) models.Post {
	post := models.Post{AuthorID: author.ID, Text: text}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("Failed to create test post: %v", err)
	}
	return post
}

func getAuthHeader(user models.User) string {
	pair, _ := testTokens.IssuePair(&user)
	return "Bearer " + pair.Access
}

func doJSON(router *gin.Engine, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Host = "testserver"
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func postPath(id uint) string {
	return "/api/v1/posts/" + strconv.FormatUint(uint64(id), 10) + "/"
}

func testPNG(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodePost(t *testing.T, resp *httptest.ResponseRecorder) PostResponse {
	var post PostResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &post))
	return post
}

func TestCreatePost(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db)
	user := createTestUser(t, db, "leo")
	group := models.Group{Title: "Art", Slug: "art", Description: "d"}
	require.NoError(t, db.Create(&group).Error)

	resp := doJSON(router, "POST", "/api/v1/posts/", gin.H{"text": "hi", "group": group.ID}, getAuthHeader(user))
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	post := decodePost(t, resp)
	assert.Equal(t, "hi", post.Text)
	assert.Equal(t, "leo", post.Author)
	require.NotNil(t, post.Group)
	assert.Equal(t, group.ID, *post.Group)
	assert.Nil(t, post.Image)
	_, err := time.Parse(PubDateFormat, post.PubDate)
	assert.NoError(t, err)
}

func TestCreatePostIgnoresClientAuthor(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db)
	user := createTestUser(t, db, "leo")
	other := createTestUser(t, db, "ann")

	resp := doJSON(router, "POST", "/api/v1/posts/", gin.H{
		"text":     "hi",
		"author":   other.Username,
		"pub_date": "2000-01-01 00:00",
		"id":       99,
	}, getAuthHeader(user))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	post := decodePost(t, resp)
	assert.Equal(t, "leo", post.Author)
	assert.NotEqual(t, uint(99), post.ID)
	assert.NotEqual(t, "2000-01-01 00:00", post.PubDate)

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, user.ID, stored.AuthorID)
}

func TestCreatePostAnonymous(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db)

	resp := doJSON(router, "POST", "/api/v1/posts/", gin.H{"text": "hi"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	var count int64
	db.Model(&models.Post{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCreatePostValidation(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db)
	user := createTestUser(t, db, "leo")

	tests := []struct {
		name  string
		body  interface{}
		field string
		msg   string
	}{
		{"missing text", gin.H{}, "text", "This field is required."},
		{"blank text", gin.H{"text": "   "}, "text", "This field may not be blank."},
		{"null text", gin.H{"text": nil}, "text", "This field may not be null."},
		{"unknown group", gin.H{"text": "hi", "group": 42}, "group", `Invalid pk "42" - object does not exist.`},
		{"bad group type", gin.H{"text": "hi", "group": true}, "group", "Incorrect type. Expected pk value, received bool."},
		{"plain string image", gin.H{"text": "hi", "image": "cat.png"}, "image", "The submitted data was not a file. Check the encoding type on the form."},
		{"broken base64 image", gin.H{"text": "hi", "image": "data:image/png;base64,@@@"}, "image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(router, "POST", "/api/v1/posts/", tt.body, getAuthHeader(user))
			require.Equal(t, http.StatusUnprocessableEntity, resp.Code, resp.Body.String())

			var body struct {
				Fields map[string][]string `json:"fields"`
			}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			assert.Equal(t, []string{tt.msg}, body.Fields[tt.field])
		})
	}

	var count int64
	db.Model(&models.Post{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCreatePostMalformedJSON(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db)
	user := createTestUser(t, db, "leo")

	req, _ := http.NewRequest("POST", "/api/v1/posts/", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPostInlineImageRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db)
	user := createTestUser(t, db, "leo")
	raw := testPNG(t)

	resp := doJSON(router, "POST", "/api/v1/posts/", gin.H{
		"text":  "with image",
		"image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw),
	}, getAuthHeader(user))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	post := decodePost(t, resp)
	require.NotNil(t, post.Image)
	assert.True(t, strings.HasPrefix(*post.Image, "http://testserver/media/posts/"), *post.Image)
	assert.True(t, strings.HasSuffix(*post.Image, ".png"), *post.Image)

	req, _ := http.NewRequest("GET", strings.TrimPrefix(*post.Image, "http://testserver"), nil)
	media := httptest.NewRecorder()
	router.ServeHTTP(media, req)
	require.Equal(t, http.StatusOK, media.Code)
	assert.Equal(t, raw, media.Body.Bytes())
}

func TestCreatePostMultipart(t *testing.T) {
	db := setupTestDB(t)
	router, store := setupTestRouter(t, db)
	user := createTestUser(t, db, "leo")
	raw := testPNG(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("text", "from a form"))
	part, err := w.CreateFormFile("image", "cat.png")
	require.NoError(t, err)
	_, err = part.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, _ := http.NewRequest("POST", "/api/v1/posts/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	post := decodePost(t, resp)
	assert.Equal(t, "from a form", post.Text)
	require.NotNil(t, post.Image)

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	require.NotNil(t, stored.Image)
	blob, err := store.Open(context.Background(), *stored.Image)
	require.NoError(t, err)
	defer blob.Close()
	data, err := io.ReadAll(blob)
	require.NoError(t, err)
	assert.Equal(t, raw, data)
}

func TestListPosts(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db)
	user := createTestUser(t, db, "leo")
	createTestPost(t, db, user, "first")
	createTestPost(t, db, user, "second")
	createTestPost(t, db, user, "third")

	resp := doJSON(router, "GET", "/api/v1/posts/", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var posts []PostResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &posts))
	require.Len(t, posts, 3)
	assert.Equal(t, "first", posts[0].Text)
	assert.Equal(t, "leo", posts[0].Author)

	resp = doJSON(router, "GET", "/api/v1/posts/?limit=2&offset=1", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var page struct {
		Count    int64          `json:"count"`
		Next     *string        `json:"next"`
		Previous *string        `json:"previous"`
		Results  []PostResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	assert.Equal(t, int64(3), page.Count)
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Previous)
	assert.Equal(t, "http://testserver/api/v1/posts/?limit=2", *page.Previous)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "second", page.Results[0].Text)
}

func TestGetPostIdempotent(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db)
	user := createTestUser(t, db, "leo")
	post := createTestPost(t, db, user, "hello")

	first := doJSON(router, "GET", postPath(post.ID), nil, "")
	second := doJSON(router, "GET", postPath(post.ID), nil, "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	resp := doJSON(router, "GET", postPath(post.ID+100), nil, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdatePost(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db)
	author := createTestUser(t, db, "leo")
	other := createTestUser(t, db, "ann")
	post := createTestPost(t, db, author, "original")

	// PUT requires text
	resp := doJSON(router, "PUT", postPath(post.ID), gin.H{"group": nil}, getAuthHeader(author))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = doJSON(router, "PUT", postPath(post.ID), gin.H{"text": "rewritten"}, getAuthHeader(author))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "rewritten", decodePost(t, resp).Text)

	resp = doJSON(router, "PATCH", postPath(post.ID), gin.H{"text": "stolen"}, getAuthHeader(other))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = doJSON(router, "PATCH", postPath(post.ID), gin.H{"text": "anonymous"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, "rewritten", stored.Text)
	assert.Equal(t, author.ID, stored.AuthorID)
	assert.WithinDuration(t, post.PubDate, stored.PubDate, time.Second)
}

func TestPartialUpdateKeepsOmittedFields(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db)
	author := createTestUser(t, db, "leo")
	group := models.Group{Title: "Art", Slug: "art", Description: "d"}
	require.NoError(t, db.Create(&group).Error)

	resp := doJSON(router, "POST", "/api/v1/posts/", gin.H{"text": "hi", "group": group.ID}, getAuthHeader(author))
	require.Equal(t, http.StatusCreated, resp.Code)
	created := decodePost(t, resp)

	resp = doJSON(router, "PATCH", postPath(created.ID), gin.H{"text": "edited"}, getAuthHeader(author))
	require.Equal(t, http.StatusOK, resp.Code)
	patched := decodePost(t, resp)
	assert.Equal(t, "edited", patched.Text)
	require.NotNil(t, patched.Group)
	assert.Equal(t, group.ID, *patched.Group)

	resp = doJSON(router, "PATCH", postPath(created.ID), gin.H{"group": nil}, getAuthHeader(author))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, decodePost(t, resp).Group)
}

func TestReplacingImageRemovesOldBlob(t *testing.T) {
	db := setupTestDB(t)
	router, store := setupTestRouter(t, db)
	author := createTestUser(t, db, "leo")
	inline := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t))

	resp := doJSON(router, "POST", "/api/v1/posts/", gin.H{"text": "hi", "image": inline}, getAuthHeader(author))
	require.Equal(t, http.StatusCreated, resp.Code)
	created := decodePost(t, resp)

	var stored models.Post
	require.NoError(t, db.First(&stored, created.ID).Error)
	oldName := *stored.Image

	resp = doJSON(router, "PATCH", postPath(created.ID), gin.H{"image": inline}, getAuthHeader(author))
	require.Equal(t, http.StatusOK, resp.Code)

	_, err := store.Open(context.Background(), oldName)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, db.First(&stored, created.ID).Error)
	newName := *stored.Image
	assert.NotEqual(t, oldName, newName)

	resp = doJSON(router, "PATCH", postPath(created.ID), gin.H{"image": nil}, getAuthHeader(author))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, decodePost(t, resp).Image)
	_, err = store.Open(context.Background(), newName)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeletePost(t *testing.T) {
	db := setupTestDB(t)
	router, _ := setupTestRouter(t, db)
	author := createTestUser(t, db, "leo")
	other := createTestUser(t, db, "ann")
	post := createTestPost(t, db, author, "bye")
	comment := models.Comment{AuthorID: other.ID, PostID: post.ID, Text: "c"}
	require.NoError(t, db.Create(&comment).Error)

	resp := doJSON(router, "DELETE", postPath(post.ID), nil, getAuthHeader(other))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = doJSON(router, "DELETE", postPath(post.ID), nil, getAuthHeader(author))
	assert.Equal(t, http.StatusNoContent, resp.Code)

	var count int64
	db.Model(&models.Post{}).Count(&count)
	assert.Equal(t, int64(0), count)
	db.Model(&models.Comment{}).Count(&count)
	assert.Equal(t, int64(0), count)

	resp = doJSON(router, "DELETE", postPath(post.ID), nil, getAuthHeader(author))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
