package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func fileKey(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}

// FileServe streams raw file bytes by full key. Public, so stored
// assets can be referenced from rendered pages.
func (a *API) FileServe(c *gin.Context) {
	key := fileKey(c)
	if key == "" {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	obj, err := a.Store.Get(c.Request.Context(), key)
	if err != nil {
		translateError(c, err)
		return
	}
	defer obj.Body.Close()

	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, nil)
}

func (a *API) FileHead(c *gin.Context) {
	key := fileKey(c)
	if key == "" {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	if _, err := a.Store.Head(c.Request.Context(), key); err != nil {
		translateError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// FilePut streams the request body into the object store without
// buffering it, keeping the uploader and content type as metadata
func (a *API) FilePut(c *gin.Context) {
	user := currentUser(c)
	if user == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	key := fileKey(c)
	if key == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	err := a.Store.Put(c.Request.Context(), key, c.Request.Body, c.ContentType(), user)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)

		zap.L().Error("Failed to store file",
			zap.String("key", key),
			zap.Error(err),
			zap.String("requestID", c.GetString("requestID")),
		)
		return
	}

	// The upload may have introduced a new folder
	if folder, _, ok := strings.Cut(key, "/"); ok {
		a.Folders.Add(c.Request.Context(), "files", folder)
	}

	c.Status(http.StatusNoContent)
}

func (a *API) FileDelete(c *gin.Context) {
	if currentUser(c) == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	key := fileKey(c)
	if key == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	if err := a.Store.Delete(c.Request.Context(), key); err != nil {
		translateError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
