package main

import (
	"context"
	"log"
	"time"

	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/handler"
	"github.com/haatos/simple-cd/internal/security"
	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/settings"
	"github.com/haatos/simple-cd/internal/store"

	"github.com/go-co-op/gocron/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "modernc.org/sqlite"
)

func main() {
	settings.ReadDotenv(internal.DotEnvPath)
	settings.Settings = settings.NewSettings()
	hashKey, blockKey := security.NewKeys()
	rdb := store.InitDatabase(true)
	defer rdb.Close()
	rwdb := store.InitDatabase(false)
	defer rwdb.Close()
	store.RunMigrations(rwdb, internal.MigrationsDir)

	scheduler := service.NewScheduler()
	defer scheduler.Shutdown()

	userStore := store.NewUserSQLiteStore(rdb, rwdb)
	credentialStore := store.NewCredentialSQLiteStore(rdb, rwdb)
	buildStore := store.NewBuildSQLiteStore(rdb, rwdb)
	auditStore := store.NewAuditLogSQLiteStore(rdb, rwdb)
	aesEncrypter := security.NewAESEncrypter(hashKey)

	cookieSvc := service.NewCookieService(hashKey, blockKey)
	userSvc := service.NewUserService(userStore)
	credentialSvc := service.NewCredentialService(credentialStore, aesEncrypter)
	auditSvc := service.NewAuditService(auditStore)

	registry := service.NewControlRegistry()
	logClients := service.NewSSEClientMap[service.LogMessage]()
	deploySvc := service.NewDeployService(buildStore, credentialSvc, registry, logClients, auditSvc)

	userSvc.InitializeSuperuser(context.Background())

	kvStore := store.NewKeyValueStore(rdb, rwdb)
	kvStore.ScheduleDailyCleanUp(scheduler)
	scheduleLogPruning(scheduler, buildStore)
	scheduleSessionCleanup(scheduler, userSvc)
	scheduler.Start()

	e := setupEcho()
	g := e.Group("", handler.SessionMiddleware(userSvc, cookieSvc))
	handler.SetupAuthRoutes(g, userSvc, cookieSvc)
	handler.SetupUserRoutes(g, userSvc)
	handler.SetupConfigRoutes(g, kvStore, credentialSvc)
	handler.SetupBuildRoutes(g, buildStore, deploySvc)
	handler.SetupDeployRoutes(g, deploySvc, logClients)
	handler.SetupAuditLogRoutes(g, auditStore)
	handler.SetupAdminRoutes(g, userStore, buildStore)

	internal.GracefulShutdown(e, settings.Settings.Port)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(
		middleware.CORSWithConfig(internal.GetCORSConfig()),
		middleware.RateLimiterWithConfig(internal.GetRateLimiterConfig()),
	)
	return e
}

func scheduleLogPruning(scheduler gocron.Scheduler, buildStore *store.BuildSQLiteStore) {
	if _, err := scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(1, 0, 0))),
		gocron.NewTask(func() {
			cutoff := time.Now().UTC().AddDate(0, 0, -internal.LogRetentionDays)
			n, err := buildStore.PruneBuildLogs(context.Background(), cutoff)
			if err != nil {
				log.Println("err pruning build logs:", err)
				return
			}
			if n > 0 {
				log.Println("pruned build log lines:", n)
			}
		}),
	); err != nil {
		log.Fatal(err)
	}
}

func scheduleSessionCleanup(scheduler gocron.Scheduler, userSvc *service.UserService) {
	if _, err := scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(2, 0, 0))),
		gocron.NewTask(func() {
			if err := userSvc.DeleteExpiredAuthSessions(context.Background()); err != nil {
				log.Println("err deleting expired auth sessions:", err)
			}
		}),
	); err != nil {
		log.Fatal(err)
	}
}
