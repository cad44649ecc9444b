package mail

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/smtp"

	"app/internal/config"
	"app/internal/logging"
)

// 外部メール送信の口。コア側はこのinterfaceしか知らない。
type Sender interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

type smtpSender struct {
	host     string
	port     int
	user     string
	password string
}

// SMTP実装。SMTPが未設定ならログに書くだけのsenderを返す（devで便利）。
func NewSenderFromConfig(cfg config.Config) Sender {
	if cfg.SMTPHost == "" {
		return &logSender{}
	}
	return &smtpSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
	}
}

func (s *smtpSender) Send(ctx context.Context, to string, subject string, body string) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.user, s.password, s.host)

	msg := []byte(
		"From: " + s.user + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"\r\n" +
			body + "\r\n",
	)

	return smtp.SendMail(addr, auth, s.user, []string{to}, msg)
}

type logSender struct{}

func (s *logSender) Send(ctx context.Context, to string, subject string, body string) error {
	logging.Info().Str("to", to).Str("subject", subject).Msg("smtp not configured, mail logged only")
	return nil
}

// GenerateCodeは数字だけのワンタイムコードを作る（6桁）。
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	const digits = "0123456789"
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		out[i] = digits[n.Int64()]
	}
	return string(out), nil
}
