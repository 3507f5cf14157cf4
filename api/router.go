// Package api contains all endpoints available
package api

import (
	"time"

	"bitwise74/cms-api/cache"
	"bitwise74/cms-api/cloudflare"
	"bitwise74/cms-api/controller"
	"bitwise74/cms-api/db"
	"bitwise74/cms-api/mail"
	"bitwise74/cms-api/middleware"

	gincache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	ginzap "github.com/gin-contrib/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"

	lastHeader = "x-last"
)

var store = persist.NewMemoryStore(time.Minute)

type API struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Store    controller.ObjectStore
	Registry *controller.Registry
	Folders  *cache.Folders
	Mail     mail.Sender
}

// NewRouter wires the whole app from config: database, object store,
// folder cache, mailer and the controller registry
func NewRouter() (*API, error) {
	d, err := db.New()
	if err != nil {
		return nil, err
	}

	makeLogger()

	r2, err := cloudflare.NewR2()
	if err != nil {
		return nil, err
	}

	a := New(d, r2, mail.NewFromConfig(), cache.NewFolders(viper.GetString("redis.addr")))

	return a, nil
}

// New builds the API around already-constructed dependencies. The
// controller registry is assembled here once; handlers only ever read
// it.
func New(d *gorm.DB, objects controller.ObjectStore, sender mail.Sender, folders *cache.Folders) *API {
	a := &API{
		DB:      d,
		Store:   objects,
		Folders: folders,
		Mail:    sender,
	}

	a.Registry = controller.NewRegistry(controller.NewDocuments(d, folders))
	a.Registry.Register("files", controller.NewFiles(objects, folders))
	a.Registry.Register("users", controller.NewUsers(d))

	if hash := viper.GetString("bigcommerce.store_hash"); hash != "" {
		a.Registry.Register("products", controller.NewBigCommerce(hash, viper.GetString("bigcommerce.access_token")))
	}

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{viper.GetString("host.origin")},
			AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", lastHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("user"); v != "" {
					fields = append(fields, zap.String("user", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true

	auth := middleware.NewAuthGate(d)
	verificationLimit := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: viper.GetInt("verification.rate_limit"),
		Burst:             viper.GetInt("verification.burst"),
	})

	main := router.Group("/api", auth)
	{
		// HEAD /api/heartbeat		-> Used to check if the server is alive
		main.HEAD("/heartbeat", a.Heartbeat)

		// POST /api/verification	-> Issues a login code to an email
		main.POST("/verification", verificationLimit, a.VerificationIssue)

		// GET/POST/DELETE /api/session	-> Check/create/destroy a session
		main.GET("/session", a.SessionCheck)
		main.POST("/session", a.SessionCreate)
		main.DELETE("/session", a.SessionDelete)
	}

	models := main.Group("/models")
	{
		// GET /api/models/:model			-> Lists entries, or fetches one when ?name= is given
		models.GET("/:model", a.DocumentGet)

		// GET /api/models/:model/folders	-> Distinct folder names for a model
		models.GET("/:model/folders", a.FolderList)

		// HEAD/PUT/DELETE /api/models/:model?name=	-> Single entry existence/upsert/delete
		models.HEAD("/:model", a.DocumentHead)
		models.PUT("/:model", a.DocumentPut)
		models.DELETE("/:model", a.DocumentDelete)
	}

	file := main.Group("/file")
	{
		// GET /api/file/*key	-> Serves raw file bytes, public
		file.GET("/*key", cacheFor(30), a.FileServe)
		file.HEAD("/*key", a.FileHead)

		// PUT/DELETE /api/file/*key	-> Streamed upload / delete
		file.PUT("/*key", a.FilePut)
		file.DELETE("/*key", a.FileDelete)
	}

	users := main.Group("/users")
	{
		// GET/POST/DELETE /api/users	-> Account administration
		users.GET("", a.UserList)
		users.POST("", a.UserCreate)
		users.DELETE("", a.UserDelete)
	}

	return a
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return gincache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}

// currentUser returns the identity resolved by the auth gate, empty
// when the request is unauthenticated
func currentUser(c *gin.Context) string {
	return c.GetString("user")
}
