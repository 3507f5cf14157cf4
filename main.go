package main

import (
	"fmt"
	"time"

	"bitwise74/cms-api/api"
	"bitwise74/cms-api/config"
	"bitwise74/cms-api/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	err := config.Setup()
	if err != nil {
		panic(err)
	}

	a, err := api.NewRouter()
	if err != nil {
		panic(err)
	}

	service.SessionCleanup(time.Hour, a.DB)

	zap.L().Info("Server starting", zap.Int("port", viper.GetInt("host.port")))

	err = a.Router.Run(fmt.Sprintf(":%d", viper.GetInt("host.port")))
	if err != nil {
		panic(err)
	}
}
