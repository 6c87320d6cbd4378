package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/svxarena/tourneyzone/config"
	"github.com/svxarena/tourneyzone/metrics"
)

const (
	emailQueueKey       = "emails"
	emailFailedQueueKey = "emails:failed"
	emailMaxTries       = 3
)

//go:embed templates/*.html
var emailTemplatesFS embed.FS

var emailTemplates = template.Must(template.ParseFS(emailTemplatesFS, "templates/*.html"))

type EmailJob struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// RoomDetailsEmail is the data rendered into room_details.html.
type RoomDetailsEmail struct {
	Username       string
	TournamentName string
	Game           string
	TeamName       string
	Slot           int
	RoomID         string
	Password       string
	MatchTime      string
}

type EmailService interface {
	Enqueue(ctx context.Context, to, subject, body string) error
	SendRoomDetails(ctx context.Context, to string, data RoomDetailsEmail) error
	SendRegistrationDecision(ctx context.Context, to, username, tournamentName string, accepted bool, reason string) error
	SendWelcome(ctx context.Context, to, username string) error
	Start(ctx context.Context)
	QueueLength(ctx context.Context) int64
}

type emailService struct {
	redis      redis.Cmdable
	cfg        *config.Config
	logger     *slog.Logger
	send       func(job EmailJob) error
	retryDelay time.Duration
}

func NewEmailService(rdb redis.Cmdable, cfg *config.Config, logger *slog.Logger) EmailService {
	s := &emailService{
		redis:      rdb,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "email")),
		retryDelay: 5 * time.Second,
	}
	s.send = s.sendSMTP
	return s
}

func (s *emailService) Enqueue(ctx context.Context, to, subject, body string) error {
	job := EmailJob{
		To:      to,
		Subject: subject,
		Body:    body,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal email job: %w", err)
	}

	if err := s.redis.LPush(ctx, emailQueueKey, string(data)).Err(); err != nil {
		s.logger.ErrorContext(ctx, "failed to queue email", slog.String("to", to), slog.Any("error", err))
		return fmt.Errorf("failed to queue email: %w", err)
	}

	metrics.RecordEmail("queued")
	s.logger.InfoContext(ctx, "email queued", slog.String("to", to), slog.String("subject", subject))
	return nil
}

func (s *emailService) SendRoomDetails(ctx context.Context, to string, data RoomDetailsEmail) error {
	body, err := renderEmail("room_details.html", data)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Room details for %s (slot %d)", data.TournamentName, data.Slot)
	return s.Enqueue(ctx, to, subject, body)
}

func (s *emailService) SendRegistrationDecision(ctx context.Context, to, username, tournamentName string, accepted bool, reason string) error {
	data := struct {
		Username       string
		TournamentName string
		Accepted       bool
		Reason         string
	}{username, tournamentName, accepted, reason}

	body, err := renderEmail("registration_decision.html", data)
	if err != nil {
		return err
	}
	subject := "Registration rejected: " + tournamentName
	if accepted {
		subject = "Registration approved: " + tournamentName
	}
	return s.Enqueue(ctx, to, subject, body)
}

func (s *emailService) SendWelcome(ctx context.Context, to, username string) error {
	data := struct {
		Username string
		LoginURL string
	}{username, s.cfg.PublicURL + "/login"}

	body, err := renderEmail("welcome.html", data)
	if err != nil {
		return err
	}
	return s.Enqueue(ctx, to, "Welcome to TourneyZone", body)
}

// Start consumes the queue until ctx is cancelled.
func (s *emailService) Start(ctx context.Context) {
	s.logger.Info("email worker started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("email worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *emailService) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, emailQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			s.logger.WarnContext(ctx, "email queue read failed", slog.Any("error", err))
			time.Sleep(time.Second)
		}
		return
	}
	metrics.EmailQueueLength.Set(float64(s.QueueLength(ctx)))

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		s.logger.ErrorContext(ctx, "malformed email job", slog.Any("error", err))
		return
	}

	job.Tries++
	if err := s.send(job); err != nil {
		s.logger.WarnContext(ctx, "email send failed",
			slog.String("to", job.To), slog.Int("attempt", job.Tries), slog.Any("error", err))

		if job.Tries < emailMaxTries {
			time.Sleep(s.retryDelay)
			data, _ := json.Marshal(job)
			if err := s.redis.LPush(context.Background(), emailQueueKey, string(data)).Err(); err != nil {
				s.logger.ErrorContext(ctx, "failed to requeue email", slog.String("to", job.To), slog.Any("error", err))
			}
			return
		}
		s.saveFailed(job, err)
		return
	}

	metrics.RecordEmail("sent")
	s.logger.InfoContext(ctx, "email sent", slog.String("to", job.To))
}

func (s *emailService) saveFailed(job EmailJob, sendErr error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": sendErr.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	if err := s.redis.LPush(context.Background(), emailFailedQueueKey, string(data)).Err(); err != nil {
		s.logger.Error("failed to store failed email", slog.String("to", job.To), slog.Any("error", err))
	}
	metrics.RecordEmail("failed")
	s.logger.Error("email moved to failed queue", slog.String("to", job.To), slog.Int("tries", job.Tries))
}

func (s *emailService) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, emailQueueKey).Result()
	return length
}

func (s *emailService) sendSMTP(job EmailJob) error {
	if s.cfg.SMTPHost == "" {
		return errors.New("smtp host is not configured")
	}

	msg := []byte("To: " + job.To + "\r\n" +
		"From: " + s.cfg.SMTPFrom + "\r\n" +
		"Subject: " + job.Subject + "\r\n" +
		"MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		job.Body + "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	tlsconfig := &tls.Config{ServerName: s.cfg.SMTPHost}

	var client *smtp.Client
	if s.cfg.SMTPPort == 465 {
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("tls dial: %w", err)
		}
		defer conn.Close()
		client, err = smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			return fmt.Errorf("smtp client: %w", err)
		}
	} else {
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("starttls: %w", err)
		}
	}
	defer client.Quit()

	if s.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(job.To); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return w.Close()
}

func renderEmail(name string, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return body.String(), nil
}
