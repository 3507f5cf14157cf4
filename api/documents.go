package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bitwise74/cms-api/controller"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// translateError maps controller sentinels to bare status codes; any
// unexpected failure is logged and hidden behind an empty 500
func translateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, controller.ErrNotFound):
		c.AbortWithStatus(http.StatusNotFound)
	case errors.Is(err, controller.ErrConflict):
		c.AbortWithStatus(http.StatusConflict)
	case errors.Is(err, controller.ErrRenameMissing),
		errors.Is(err, controller.ErrMissingValue),
		errors.Is(err, controller.ErrUnsupported):
		c.AbortWithStatus(http.StatusBadRequest)
	default:
		c.AbortWithStatus(http.StatusInternalServerError)

		zap.L().Error("Controller operation failed",
			zap.Error(err),
			zap.String("requestID", c.GetString("requestID")),
		)
	}
}

func requestKey(c *gin.Context) controller.Key {
	return controller.Key{
		Model:  c.Param("model"),
		Folder: c.Query("folder"),
		Name:   c.Query("name"),
	}
}

// DocumentGet fetches a single entry when ?name= is given, otherwise
// it lists
func (a *API) DocumentGet(c *gin.Context) {
	if currentUser(c) == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	k := requestKey(c)
	ctrl := a.Registry.Resolve(k.Model)

	if k.Name == "" {
		a.list(c, ctrl, k.Model)
		return
	}

	item, err := ctrl.Get(c.Request.Context(), k)
	if err != nil {
		translateError(c, err)
		return
	}

	if item.Body != nil {
		defer item.Body.Close()
		c.DataFromReader(http.StatusOK, -1, item.ContentType, item.Body, nil)
		return
	}

	c.Data(http.StatusOK, "application/json", item.Value)
}

func (a *API) list(c *gin.Context, ctrl controller.Controller, modelName string) {
	limit := viper.GetInt("list.default_limit")

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > viper.GetInt("list.max_limit") {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	res, err := ctrl.List(c.Request.Context(), controller.ListParams{
		Model:  modelName,
		Folder: c.Query("folder"),
		Prefix: c.Query("prefix"),
		Limit:  limit,
		After:  c.Query("after"),
	})
	if err != nil {
		translateError(c, err)
		return
	}

	if res.Last != "" {
		c.Header(lastHeader, res.Last)
	}

	c.JSON(http.StatusOK, res.Entries)
}

func (a *API) DocumentHead(c *gin.Context) {
	if currentUser(c) == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	k := requestKey(c)
	if k.Name == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	exists, err := a.Registry.Resolve(k.Model).Exists(c.Request.Context(), k)
	if err != nil {
		translateError(c, err)
		return
	}

	if !exists {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) DocumentPut(c *gin.Context) {
	user := currentUser(c)
	if user == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	k := requestKey(c)
	if k.Name == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	move, moveSet := c.GetQuery("move")

	p := controller.PutParams{
		Key:        k,
		Rename:     c.Query("rename"),
		Move:       move,
		MoveSet:    moveSet,
		Overwrite:  c.Query("overwrite") == "true",
		ModifiedBy: user,
	}

	// Only a JSON content type gets structured decoding; anything else
	// streams through untouched for binary-backed models
	if strings.HasPrefix(c.ContentType(), "application/json") {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil || !json.Valid(raw) {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		p.Value = raw
	} else {
		p.Body = c.Request.Body
		p.ContentType = c.ContentType()
	}

	if err := a.Registry.Resolve(k.Model).Put(c.Request.Context(), p); err != nil {
		translateError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) DocumentDelete(c *gin.Context) {
	if currentUser(c) == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	k := requestKey(c)
	if k.Name == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	if err := a.Registry.Resolve(k.Model).Delete(c.Request.Context(), k); err != nil {
		translateError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) FolderList(c *gin.Context) {
	if currentUser(c) == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	modelName := c.Param("model")

	lister, ok := a.Registry.Resolve(modelName).(controller.FolderLister)
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	folders, err := lister.ListFolders(c.Request.Context(), modelName)
	if err != nil {
		translateError(c, err)
		return
	}

	if folders == nil {
		folders = []string{}
	}

	c.JSON(http.StatusOK, folders)
}
