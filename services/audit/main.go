package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/taskplane/taskplane/shared/config"
	"github.com/taskplane/taskplane/shared/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&models.AuditRecord{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	consumer := NewAuditConsumer(config.GetEnv("KAFKA_BROKER", "localhost:9092"), db)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logrus.Info("shutting down audit consumer")
		cancel()
	}()

	consumer.Run(ctx)
}
