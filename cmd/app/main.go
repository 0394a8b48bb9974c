// entry point to app :)
package main

import (
	"github.com/ds124wfegd/ewm/config"
	"github.com/ds124wfegd/ewm/internal/appServer"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	// .env is optional, real environment wins
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	logrus.WithFields(logrus.Fields{
		"version": cfg.Server.AppVersion,
		"env":     cfg.Server.Env,
		"driver":  cfg.Database.Driver,
		"broker":  cfg.Broker.Kind,
	}).Info("Config loaded")
	appServer.NewServer(cfg)
}
