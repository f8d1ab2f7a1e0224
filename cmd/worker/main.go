package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"classtrack/internal/attendance"
	"classtrack/internal/cloudinary"
	"classtrack/internal/config"
	"classtrack/internal/queue"
	"classtrack/internal/session"
	"classtrack/internal/store"
)

// Worker consumes queue messages and turns report requests into exported CSV
// files. session.created events are consumed for visibility only.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:events")
	}

	sessions := session.NewPostgresRepository(db.Client)
	records := attendance.NewRepository(db.Client)

	var cdn *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdn = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Printf("Cloudinary not configured, reports land in %s/", cfg.ReportDir)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		switch msg.Type {
		case "session.created":
			log.Printf("session created: %s", string(msg.Body))
		case "report.generate":
			id := string(msg.Body)
			if err := generateReport(ctx, id, sessions, records, cdn, cfg.ReportDir); err != nil {
				log.Printf("report %s failed: %v", id, err)
			} else {
				log.Printf("report %s exported", id)
			}
		}
	}

	log.Println("worker stopped")
}

// generateReport runs the classifier for the report's session and exports the
// rows as CSV, either to Cloudinary or to the local report directory.
func generateReport(ctx context.Context, reportID string, sessions *session.PostgresRepository, records *attendance.Repository, cdn *cloudinary.Client, reportDir string) error {
	report, err := records.GetReport(ctx, reportID)
	if err != nil {
		return err
	}
	if report.Exported() {
		return nil
	}

	sess, err := sessions.Get(ctx, report.SessionID)
	if err != nil {
		return err
	}
	roster, err := records.Roster(ctx, sess.ProgramID, sess.StreamID)
	if err != nil {
		return err
	}
	checkins, err := records.RecordsBySession(ctx, sess.ID)
	if err != nil {
		return err
	}

	rows := attendance.Classify(sess, roster, checkins)

	var buf bytes.Buffer
	if err := attendance.WriteCSV(&buf, rows); err != nil {
		return err
	}

	filename := fmt.Sprintf("attendance-%s.csv", report.ID)
	var filePath string
	if cdn != nil {
		result, err := cdn.UploadRaw(buf.Bytes(), filename)
		if err != nil {
			return err
		}
		filePath = result.SecureURL
	} else {
		if err := os.MkdirAll(reportDir, 0o755); err != nil {
			return err
		}
		filePath = filepath.Join(reportDir, filename)
		if err := os.WriteFile(filePath, buf.Bytes(), 0o644); err != nil {
			return err
		}
	}

	report.MarkExported(filePath, "csv", time.Now())
	return records.SaveExported(ctx, report)
}
