// Package permissions implements the owner-or-read-only access policy shared by posts and comments.
package permissions

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/auth"
	"github.com/mikepea/yatube/pkg/yatube/models"
)

// Authored is implemented by every object that records its author
type Authored interface {
	AuthoredBy() uint
}

// IsSafeMethod reports whether method never mutates state
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// HasPermission is the collection-level check: reads are open, writes need an actor
func HasPermission(method string, actor *models.User) bool {
	return IsSafeMethod(method) || actor != nil
}

// HasObjectPermission is the object-level check: reads are open, writes are for the author only
func HasObjectPermission(method string, actor *models.User, obj Authored) bool {
	if IsSafeMethod(method) {
		return true
	}
	return actor != nil && obj != nil && actor.ID == obj.AuthoredBy()
}

// OwnerOrReadOnly rejects anonymous writers before the handler runs
func OwnerOrReadOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := auth.CurrentUser(c)
		if !HasPermission(c.Request.Method, actor) {
			apierror.Respond(c, apierror.ErrAuthenticationRequired)
			return
		}
		c.Next()
	}
}

// Authorize applies the object-level check for the current request.
// It returns nil when the request may act on obj.
func Authorize(c *gin.Context, obj Authored) error {
	actor, _ := auth.CurrentUser(c)
	if HasObjectPermission(c.Request.Method, actor, obj) {
		return nil
	}
	if actor == nil {
		return apierror.ErrAuthenticationRequired
	}
	return apierror.ErrPermissionDenied
}
