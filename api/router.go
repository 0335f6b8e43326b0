// Package api contains all endpoints available
package api

import (
	"bitwise74/audio-api/db"
	"bitwise74/audio-api/middleware"
	"bitwise74/audio-api/service"
	"fmt"
	"time"

	cache "github.com/chenyahui/gin-cache"
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
)

var store = persist.NewMemoryStore(time.Minute)

type API struct {
	DB      *gorm.DB
	Router  *gin.Engine
	Manager *service.Manager
}

func NewRouter() (*API, error) {
	a := &API{}

	db, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	a.DB = db

	makeLogger()

	storage := service.NewStorage(viper.GetString("storage.uploads_path"))
	a.Manager = service.NewManager(storage, service.FFmpeg{}, service.NewIndex(db))

	service.StorageSweep(viper.GetDuration("storage.sweep_interval"), db, storage)

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
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

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	a.registerRoutes()

	return a, nil
}

func (a *API) registerRoutes() {
	jwt := middleware.NewJWTMiddleware()
	maxUploadSize := viper.GetInt64("upload.max_size")

	main := a.Router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		main.HEAD("/heartbeat", a.Heartbeat)
	}

	audio := a.Router.Group("/audio")
	{
		// POST /audio/file/upload-file	-> Ingests a new recording and returns its record link
		audio.POST("/file/upload-file",
			jwt,
			middleware.RequireRoles(middleware.RoleUser, middleware.RoleAdmin),
			middleware.BodySizeLimiter(maxUploadSize),
			a.AudioUpload,
		)

		// GET /audio/record 		-> Streams a recording resolved from its record link
		audio.GET("/record", a.AudioRecord)

		// GET /audio/audio_urls 	-> Lists record links for every stored recording
		audio.GET("/audio_urls",
			jwt,
			middleware.RequireRoles(middleware.RoleAdmin),
			cacheFor(30),
			a.AudioURLs,
		)

		// DELETE /audio/delete_audio_by_admin	-> Deletes any recording by id
		audio.DELETE("/delete_audio_by_admin",
			jwt,
			middleware.RequireRoles(middleware.RoleAdmin),
			a.AudioDeleteByAdmin,
		)

		// DELETE /audio/delete_audio_by_user	-> Deletes a recording owned by the caller
		audio.DELETE("/delete_audio_by_user",
			jwt,
			middleware.RequireRoles(middleware.RoleUser, middleware.RoleAdmin),
			a.AudioDeleteByUser,
		)
	}
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
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
