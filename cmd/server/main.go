package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobby-s-dev/emotions-in-transit/internal/api"
	"github.com/bobby-s-dev/emotions-in-transit/internal/config"
	"github.com/bobby-s-dev/emotions-in-transit/internal/logger"
	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"github.com/bobby-s-dev/emotions-in-transit/internal/publish"
	"github.com/bobby-s-dev/emotions-in-transit/internal/scheduler"
	"github.com/bobby-s-dev/emotions-in-transit/internal/services"
	"github.com/bobby-s-dev/emotions-in-transit/pkg/client"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const serviceName = "emotions-in-transit"

func main() {
	// bootstrap logger until the configured one is built
	bootstrap, _ := zap.NewProduction()
	zap.ReplaceGlobals(bootstrap)

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Fatal("Failed to load configuration", zap.Error(err))
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format, serviceName)
	if err != nil {
		bootstrap.Fatal("Failed to build logger", zap.Error(err))
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	log.Info("Starting Emotions in Transit data engine")

	history := services.NewStateHistory(cfg.History.Size, cfg.History.MaxAge, log)
	if err := history.Start(); err != nil {
		log.Fatal("Failed to start history sweep", zap.Error(err))
	}

	var publishers []services.StatePublisher
	var mqttPublisher *publish.MQTTPublisher
	if cfg.MQTT.Broker != "" {
		mqttPublisher, err = publish.NewMQTTPublisher(publish.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, log)
		if err != nil {
			log.Warn("MQTT publishing disabled", zap.Error(err))
		} else {
			publishers = append(publishers, mqttPublisher)
		}
	}

	engine := services.NewDataEngine(buildFetchers(cfg, log), services.EngineOptions{
		Config:     cfg.Engine,
		History:    history,
		Publishers: publishers,
	}, log)

	poller := scheduler.NewScheduler(engine, scheduler.Config{
		PollInterval:      cfg.Scheduler.PollInterval,
		RateLimitCooldown: cfg.Scheduler.RateLimitCooldown,
		RetryInterval:     cfg.Scheduler.RetryInterval,
		CycleTimeout:      cfg.Scheduler.CycleTimeout,
	}, log)

	app := newApp(cfg, api.NewHandler(engine, poller, log))

	poller.Start()

	go func() {
		addr := ":" + cfg.Server.Port
		log.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	poller.Stop()
	history.Stop()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if mqttPublisher != nil {
		mqttPublisher.Close()
	}

	log.Info("Server stopped")
}

func newApp(cfg *config.Config, handler *api.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: api.ErrorHandler,
	})
	api.SetupRoutes(app, handler)
	return app
}

// buildFetchers constructs a fetcher for every source whose credentials are
// configured. With none, every cycle runs in simulated mode.
func buildFetchers(cfg *config.Config, log *zap.Logger) []services.Fetcher {
	clientConfig := client.ClientConfig{
		Timeout:        cfg.Client.Timeout,
		Threshold:      cfg.Client.BreakerThreshold,
		BreakerTimeout: cfg.Client.BreakerTimeout,
	}

	var fetchers []services.Fetcher

	switch cfg.MeteoProvider {
	case "openweathermap":
		if cfg.OpenWeather.APIKey != "" {
			c := client.NewOpenWeatherClient(cfg.OpenWeather.APIKey, cfg.OpenWeather.CityID, cfg.OpenWeather.BaseURL, clientConfig, log)
			fetchers = append(fetchers, services.NewFetcher(models.SourceMeteo, c, log))
			log.Info("OpenWeatherMap client initialized", zap.String("city_id", cfg.OpenWeather.CityID))
		} else {
			log.Warn("No OWM_KEY set, meteorological source disabled")
		}
	case "openmeteo":
		c := client.NewOpenMeteoClient(cfg.OpenMeteo.Latitude, cfg.OpenMeteo.Longitude, cfg.OpenMeteo.BaseURL, clientConfig, log)
		fetchers = append(fetchers, services.NewFetcher(models.SourceMeteo, c, log))
		log.Info("Open-Meteo client initialized")
	}

	if cfg.Sensor.DeviceID != "" {
		guard := client.ParticulateGuard{
			PlausibleMax: cfg.Engine.Guard.PlausibleMax,
			SafeValue:    cfg.Engine.Guard.SafeValue,
		}
		c := client.NewSmartCitizenClient(cfg.Sensor.DeviceID, cfg.Sensor.Token, cfg.Sensor.BaseURL, guard, clientConfig, log)
		fetchers = append(fetchers, services.NewFetcher(models.SourceSensor, c, log))
		log.Info("Smart Citizen client initialized", zap.String("device_id", cfg.Sensor.DeviceID))
	}

	if cfg.Transit.AppID != "" && cfg.Transit.AppKey != "" {
		c := client.NewTMBClient(cfg.Transit.AppID, cfg.Transit.AppKey, cfg.Transit.Mode, cfg.Transit.BaseURL, clientConfig, log)
		fetchers = append(fetchers, services.NewFetcher(models.SourceTransit, c, log))
		log.Info("TMB client initialized", zap.String("mode", cfg.Transit.Mode))
	}

	if len(fetchers) == 0 {
		log.Warn("No sources configured, running in simulated mode")
	}
	return fetchers
}
