package main

import (
	"log"
	"time"

	"enrollment-app/config"
	"enrollment-app/database"
	routes "enrollment-app/internal/app/http"
	"enrollment-app/internal/infra/redislock"
	stripeinfra "enrollment-app/internal/infra/stripe"
	"enrollment-app/internal/payments"
	"enrollment-app/internal/storage/gormstore"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// gin.SetMode(gin.ReleaseMode) uncomment only in production
	config.LoadEnv()
	database.InitDB()

	store := gormstore.NewStore(database.DB)

	var locker payments.Locker
	if config.REDIS_URL != "" {
		rl, err := redislock.New(config.REDIS_URL)
		if err != nil {
			log.Fatal("Failed to connect to redis:", err)
		}
		locker = rl
	} else {
		log.Println("REDIS_URL not set; using in-process enrollment locks")
		locker = payments.NewKeyedMutex()
	}

	handlers := routes.NewHandlers(store, locker, stripeinfra.NewFactory())

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.CORS_ORIGIN},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, handlers)

	r.Run(":" + config.PORT)
}
