package notifications

import (
	"context"
	"errors"
	"fmt"

	"inventario/backend/pkg/config"
	applog "inventario/backend/pkg/log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// EmailNotifier define a interface para um notificador de email.
type EmailNotifier interface {
	SendEmail(ctx context.Context, to, subject, bodyHTML, bodyText string) error
}

// sesAPI é o subconjunto do cliente SES usado aqui.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESEmailNotifier implementa EmailNotifier usando AWS SES.
type SESEmailNotifier struct {
	client sesAPI
	sender string
}

// NewSESEmailNotifier carrega a configuração padrão do SDK (credenciais do ambiente/instância) para a região.
func NewSESEmailNotifier(ctx context.Context, region, sender string) (*SESEmailNotifier, error) {
	if region == "" || sender == "" {
		return nil, errors.New("AWS_REGION and AWS_SES_EMAIL_SENDER are required for SES")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	return &SESEmailNotifier{client: sesv2.NewFromConfig(awsCfg), sender: sender}, nil
}

// SendEmail é o método da implementação SESEmailNotifier.
func (s *SESEmailNotifier) SendEmail(ctx context.Context, to, subject, bodyHTML, bodyText string) error {
	if s.client == nil {
		return errors.New("SES client not initialized")
	}
	if bodyHTML == "" && bodyText == "" {
		return errors.New("email body (text or HTML) must not be empty")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{},
			},
		},
	}
	if bodyText != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(bodyText), Charset: aws.String("UTF-8")}
	}
	if bodyHTML != "" {
		input.Content.Simple.Body.Html = &types.Content{Data: aws.String(bodyHTML), Charset: aws.String("UTF-8")}
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		applog.L.Error("Failed to send email via SES", zap.Error(err), zap.String("recipient", to))
		return fmt.Errorf("send email via SES: %w", err)
	}

	applog.L.Info("Successfully sent email via SES", zap.String("recipient", to), zap.String("subject", subject))
	return nil
}

// SMTPSettings agrupa os parâmetros do servidor SMTP.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// SMTPEmailNotifier envia e-mails via SMTP com go-mail.
type SMTPEmailNotifier struct {
	cfg SMTPSettings
}

func NewSMTPEmailNotifier(cfg SMTPSettings) (*SMTPEmailNotifier, error) {
	if cfg.Host == "" {
		return nil, errors.New("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("SMTP from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPEmailNotifier{cfg: cfg}, nil
}

func (s *SMTPEmailNotifier) buildMessage(to, subject, bodyHTML, bodyText string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}
	msg.Subject(subject)

	switch {
	case bodyText != "" && bodyHTML != "":
		msg.SetBodyString(mail.TypeTextPlain, bodyText)
		msg.AddAlternativeString(mail.TypeTextHTML, bodyHTML)
	case bodyHTML != "":
		msg.SetBodyString(mail.TypeTextHTML, bodyHTML)
	case bodyText != "":
		msg.SetBodyString(mail.TypeTextPlain, bodyText)
	default:
		return nil, errors.New("email body (text or HTML) must not be empty")
	}
	return msg, nil
}

func (s *SMTPEmailNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithPort(s.cfg.Port)}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Porta 465 usa TLS implícito; as demais, STARTTLS
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func (s *SMTPEmailNotifier) SendEmail(ctx context.Context, to, subject, bodyHTML, bodyText string) error {
	msg, err := s.buildMessage(to, subject, bodyHTML, bodyText)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		applog.L.Error("Failed to send email via SMTP", zap.Error(err), zap.String("recipient", to))
		return fmt.Errorf("sending email: %w", err)
	}

	applog.L.Info("Successfully sent email via SMTP", zap.String("recipient", to), zap.String("subject", subject))
	return nil
}

// logNotifier só registra o envio. Usado quando nenhum provedor está configurado.
type logNotifier struct{}

func (logNotifier) SendEmail(ctx context.Context, to, subject, bodyHTML, bodyText string) error {
	applog.L.Info("--- SIMULATING EMAIL SEND (Fallback) ---",
		zap.String("to", to),
		zap.String("subject", subject))
	if bodyText != "" {
		applog.L.Debug("Email Body (Text)", zap.String("body", bodyText))
	}
	return nil
}

// NewEmailNotifierFromConfig escolhe o provedor: SMTP quando SMTP_HOST está definido,
// SES quando região e remetente estão definidos, senão o logNotifier.
func NewEmailNotifierFromConfig(ctx context.Context, cfg config.AppConfig) EmailNotifier {
	log := applog.L.Named("EmailNotifier")

	if cfg.SMTPHost != "" {
		n, err := NewSMTPEmailNotifier(SMTPSettings{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			TLS:      cfg.SMTPTLS,
		})
		if err == nil {
			log.Info("SMTP email service initialized.", zap.String("host", cfg.SMTPHost), zap.Int("port", cfg.SMTPPort))
			return n
		}
		log.Warn("Invalid SMTP configuration, trying SES.", zap.Error(err))
	}

	if cfg.AWSRegion != "" && cfg.AWSSESEmailSender != "" {
		n, err := NewSESEmailNotifier(ctx, cfg.AWSRegion, cfg.AWSSESEmailSender)
		if err == nil {
			log.Info("AWS SES email service initialized.", zap.String("sender", cfg.AWSSESEmailSender), zap.String("region", cfg.AWSRegion))
			return n
		}
		log.Error("Failed to initialize AWS SES", zap.Error(err))
	}

	log.Warn("No email provider configured. Emails will only be logged.")
	return logNotifier{}
}
