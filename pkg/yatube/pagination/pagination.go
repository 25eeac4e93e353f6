// Package pagination implements limit/offset pagination of list endpoints.
// Lists are paginated only when the client asks for it with a limit parameter.
package pagination

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	LimitParam  = "limit"
	OffsetParam = "offset"
)

// Page is a limit/offset window requested by the client
type Page struct {
	Limit  int
	Offset int
}

// Response is the envelope of a paginated list
type Response struct {
	Count    int64       `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

// FromQuery reads the window from the query string.
// It returns nil when no usable limit was supplied; an unusable offset reads as zero.
func FromQuery(c *gin.Context) *Page {
	limit, err := strconv.Atoi(c.Query(LimitParam))
	if err != nil || limit <= 0 {
		return nil
	}
	offset, err := strconv.Atoi(c.Query(OffsetParam))
	if err != nil || offset < 0 {
		offset = 0
	}
	return &Page{Limit: limit, Offset: offset}
}

// Find loads query into dest, restricted to the page when p is not nil, and returns the
// total number of rows the unrestricted query matches. preload is applied to the row query only.
func (p *Page) Find(query *gorm.DB, dest interface{}, preload ...string) (int64, error) {
	query = query.Session(&gorm.Session{})

	var count int64
	rows := query
	if p != nil {
		if err := query.Count(&count).Error; err != nil {
			return 0, err
		}
		rows = query.Limit(p.Limit).Offset(p.Offset)
	}
	for _, name := range preload {
		rows = rows.Preload(name)
	}
	if err := rows.Find(dest).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Respond writes results as a plain array, or inside the paginated envelope when p is not nil
func Respond(c *gin.Context, p *Page, count int64, results interface{}) {
	if p == nil {
		c.JSON(http.StatusOK, results)
		return
	}
	c.JSON(http.StatusOK, Response{
		Count:    count,
		Next:     p.nextURL(c, count),
		Previous: p.previousURL(c),
		Results:  results,
	})
}

func (p *Page) nextURL(c *gin.Context, count int64) *string {
	if int64(p.Offset+p.Limit) >= count {
		return nil
	}
	return pageURL(c, func(q url.Values) {
		q.Set(LimitParam, strconv.Itoa(p.Limit))
		q.Set(OffsetParam, strconv.Itoa(p.Offset+p.Limit))
	})
}

func (p *Page) previousURL(c *gin.Context) *string {
	if p.Offset <= 0 {
		return nil
	}
	return pageURL(c, func(q url.Values) {
		q.Set(LimitParam, strconv.Itoa(p.Limit))
		if p.Offset-p.Limit <= 0 {
			q.Del(OffsetParam)
			return
		}
		q.Set(OffsetParam, strconv.Itoa(p.Offset-p.Limit))
	})
}

func pageURL(c *gin.Context, edit func(url.Values)) *string {
	u := AbsoluteURL(c, c.Request.URL.Path)
	q := c.Request.URL.Query()
	edit(q)
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}

// AbsoluteURL resolves path against the scheme and host the request was made to
func AbsoluteURL(c *gin.Context, path string) *url.URL {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return &url.URL{Scheme: scheme, Host: c.Request.Host, Path: path}
}
