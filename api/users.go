package api

import (
	"net/http"
	"strconv"

	"bitwise74/cms-api/controller"
	"bitwise74/cms-api/validators"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

func (a *API) UserList(c *gin.Context) {
	if currentUser(c) == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	limit := viper.GetInt("list.default_limit")
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > viper.GetInt("list.max_limit") {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	res, err := a.Registry.Resolve("users").List(c.Request.Context(), controller.ListParams{
		Model:  "users",
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

func (a *API) UserCreate(c *gin.Context) {
	user := currentUser(c)
	if user == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var body struct {
		Email string `json:"email"`
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	if err := validators.EmailValidator(body.Email); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	err := a.Registry.Resolve("users").Put(c.Request.Context(), controller.PutParams{
		Key:        controller.Key{Model: "users", Name: body.Email},
		ModifiedBy: user,
	})
	if err != nil {
		translateError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

func (a *API) UserDelete(c *gin.Context) {
	user := currentUser(c)
	if user == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	email := c.Query("email")
	// Deleting your own account out from under your session is a mistake
	if email == "" || email == user {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	err := a.Registry.Resolve("users").Delete(c.Request.Context(), controller.Key{Model: "users", Name: email})
	if err != nil {
		translateError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
