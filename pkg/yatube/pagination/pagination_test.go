package pagination

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/yatube/pkg/yatube/config"
	"github.com/mikepea/yatube/pkg/yatube/database"
	"github.com/mikepea/yatube/pkg/yatube/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T, groups int) *gorm.DB {
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	require.NoError(t, models.AutoMigrate(db))
	for i := 1; i <= groups; i++ {
		g := models.Group{Title: fmt.Sprintf("Group %d", i), Slug: fmt.Sprintf("group-%d", i)}
		require.NoError(t, db.Create(&g).Error)
	}
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/groups/", func(c *gin.Context) {
		page := FromQuery(c)
		var groups []models.Group
		count, err := page.Find(db.Model(&models.Group{}).Order("id"), &groups)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		Respond(c, page, count, groups)
	})
	return r
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	req.Host = "testserver"
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestUnpaginatedWithoutLimit(t *testing.T) {
	router := setupTestRouter(setupTestDB(t, 3))

	resp := get(router, "/groups/")
	require.Equal(t, http.StatusOK, resp.Code)

	var groups []models.Group
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &groups))
	assert.Len(t, groups, 3)
}

func TestPaginated(t *testing.T) {
	router := setupTestRouter(setupTestDB(t, 5))

	tests := []struct {
		query        string
		wantIDs      []uint
		wantNext     string
		wantPrevious string
	}{
		{"limit=2", []uint{1, 2}, "http://testserver/groups/?limit=2&offset=2", ""},
		{"limit=2&offset=2", []uint{3, 4}, "http://testserver/groups/?limit=2&offset=4", "http://testserver/groups/?limit=2"},
		{"limit=2&offset=4", []uint{5}, "", "http://testserver/groups/?limit=2&offset=2"},
		{"limit=10&offset=bogus", []uint{1, 2, 3, 4, 5}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := get(router, "/groups/?"+tt.query)
			require.Equal(t, http.StatusOK, resp.Code)

			var body struct {
				Count    int64          `json:"count"`
				Next     *string        `json:"next"`
				Previous *string        `json:"previous"`
				Results  []models.Group `json:"results"`
			}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))

			assert.Equal(t, int64(5), body.Count)
			var ids []uint
			for _, g := range body.Results {
				ids = append(ids, g.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)

			if tt.wantNext == "" {
				assert.Nil(t, body.Next)
			} else if assert.NotNil(t, body.Next) {
				assert.Equal(t, tt.wantNext, *body.Next)
			}
			if tt.wantPrevious == "" {
				assert.Nil(t, body.Previous)
			} else if assert.NotNil(t, body.Previous) {
				assert.Equal(t, tt.wantPrevious, *body.Previous)
			}
		})
	}
}

func TestInvalidLimitIsUnpaginated(t *testing.T) {
	router := setupTestRouter(setupTestDB(t, 2))

	for _, q := range []string{"limit=abc", "limit=0", "limit=-1"} {
		resp := get(router, "/groups/?"+q)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, byte('['), resp.Body.Bytes()[0], q)
	}
}

func TestEmptyPage(t *testing.T) {
	router := setupTestRouter(setupTestDB(t, 0))

	resp := get(router, "/groups/?limit=5")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"count":0,"next":null,"previous":null,"results":[]}`, resp.Body.String())
}
