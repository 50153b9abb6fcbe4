package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/amirfarid/guardpost/internal/config"
	"github.com/amirfarid/guardpost/internal/infrastructure/database"
	"github.com/amirfarid/guardpost/internal/infrastructure/repository"
	"github.com/amirfarid/guardpost/internal/present/rest"
	"github.com/amirfarid/guardpost/internal/present/rest/middleware"
	"github.com/amirfarid/guardpost/internal/service"
	"github.com/amirfarid/guardpost/internal/telemetry"
	"github.com/amirfarid/guardpost/internal/usecase"
	"github.com/amirfarid/guardpost/token"
)

func main() {
	configPath := flag.String("config", "/etc/guardpost/config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	ctx := context.Background()

	if conf.Server.EnableTrace {
		shutdown, err := telemetry.Setup(ctx, "guardpost", conf.Server.TraceEndpoint)
		if err != nil {
			panic("failed to setup tracing: " + err.Error())
		}
		defer func() {
			if err := shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		panic("failed to connect database")
	}

	err = database.MigratePostgres(db)
	if err != nil {
		panic("failed to migrate database")
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
	if err := rdb.Ping(ctx).Err(); err != nil {
		panic("failed to connect redis")
	}

	entryRepo := repository.NewEntryRepository(db)
	propertyRepo := repository.NewPropertyRepository(db)
	userRepo := repository.NewUserRepository(db)
	credCache := repository.NewCredentialCache(rdb)

	codec := token.NewCodec(conf.Gate.CredentialSecret, nil)
	credService := service.NewCredentialService(codec, credCache, entryRepo, nil)
	authService := service.NewAuthService(
		userRepo,
		conf.Auth.AccessTokenSecret,
		time.Duration(conf.Auth.AccessTokenTTLMinutes)*time.Minute,
		nil,
	)
	signalService := service.NewSignalService(rdb)

	visitorUC := usecase.NewVisitorUsecase(
		entryRepo,
		propertyRepo,
		credService,
		signalService,
		time.Duration(conf.Gate.VisitorExpiryHours)*time.Hour,
		nil,
	)
	deliveryUC := usecase.NewDeliveryUsecase(
		entryRepo,
		userRepo,
		credService,
		signalService,
		time.Duration(conf.Gate.DeliveryExpiryHours)*time.Hour,
		nil,
	)

	e := echo.New()
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("guardpost"))
	}

	handler := rest.NewHandler(visitorUC, deliveryUC, authService, signalService)
	authmw := middleware.NewAuthMiddleware(authService)
	handler.RegisterRoutes(e, authmw)

	e.Logger.Fatal(e.Start(conf.Server.ListenAddr))
}
