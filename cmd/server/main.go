package main

import (
	"net/http"

	"github.com/BagetTeam/ReeLearners/assembler"
	"github.com/BagetTeam/ReeLearners/provider"
	provider_instances "github.com/BagetTeam/ReeLearners/provider/instances"
	"github.com/BagetTeam/ReeLearners/server"
	"github.com/BagetTeam/ReeLearners/server/middlewares"
	. "github.com/BagetTeam/ReeLearners/utils"
	"github.com/BagetTeam/ReeLearners/utils/dotenv"
	. "github.com/BagetTeam/ReeLearners/utils/flag"
	. "github.com/BagetTeam/ReeLearners/utils/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

func cleanup() {
	CloseProfiler()
	CloseTracer()
	Log.Info("api server shutdown")
}

func main() {
	defer cleanup()

	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	StartTracer()
	StartProfiler()

	db, err := GetDBConnection()
	if err != nil {
		Log.Fatalf("fail to connect to database: %v", err)
	}
	DatabaseSetupAndMigration(db)

	statusStore, err := GetRedisStatusStore()
	if err != nil {
		// Redis only backs the hydration dedup flag and the watched marks,
		// the server still works without it.
		Log.Errorf("fail to connect to redis, hydration dedup and watched marks disabled: %v", err)
		statusStore = nil
	}

	providerConfig, err := provider.LoadConfig()
	if err != nil {
		Log.Fatalf("fail to parse provider config: %v", err)
	}
	client := provider.HttpClient{}

	feedAssembler := assembler.NewFeedAssembler(
		db,
		providerConfig.DefaultFetchLimit,
		provider_instances.InternalCatalogAdapter{DB: db},
		provider_instances.GeneratedPipelineAdapter{Client: client, Config: providerConfig},
		provider_instances.SearchApiAdapter{Client: client, Config: providerConfig},
		provider_instances.SocialApiAdapter{
			Client:  client,
			Config:  providerConfig,
			Sources: []string{"tiktok", "instagram"},
		},
		provider_instances.ScrapePageAdapter{Client: client, Config: providerConfig},
	)
	progressTracker := &assembler.ProgressTracker{DB: db, Status: statusStore}

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()

	router.Use(cors.Default())
	router.Use(gintrace.Middleware(ServiceName))
	if !ByPassAuth {
		router.Use(middlewares.Identity())
	}

	app := &server.AppServer{
		DB:        db,
		Assembler: feedAssembler,
		Progress:  progressTracker,
		Status:    statusStore,
	}
	app.RegisterRoutes(router)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	Log.Info("api server starts up")
	router.Run(":8080")
}
