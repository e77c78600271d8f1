package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"mpesa-checkout-service/internal/config"
	"mpesa-checkout-service/internal/logger"
	texttemplate "text/template"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Template names understood by every Mailer.
const (
	TemplateOrderConfirmation   = "order_confirmation"
	TemplateNewOrderStaff       = "new_order_staff"
	TemplatePaymentConfirmation = "payment_confirmation"
	TemplatePaymentStaff        = "payment_received_staff"
)

var subjects = map[string]string{
	TemplateOrderConfirmation:   "Order {{.orderNumber}} received",
	TemplateNewOrderStaff:       "New order {{.orderNumber}} from {{.facilityName}}",
	TemplatePaymentConfirmation: "Payment received for order {{.orderNumber}}",
	TemplatePaymentStaff:        "Order {{.orderNumber}} paid ({{.mpesaReceiptNumber}})",
}

//go:embed templates/*.html
var templateFS embed.FS

// Mailer sends a named template rendered with data to the given recipients.
type Mailer interface {
	Send(ctx context.Context, to []string, templateName string, data map[string]interface{}) error
}

type Message struct {
	Subject string
	HTML    string
}

type renderer struct {
	bodies *template.Template
}

func newRenderer() (*renderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &renderer{bodies: t}, nil
}

func (r *renderer) Render(name string, data map[string]interface{}) (*Message, error) {
	subjectTpl, ok := subjects[name]
	if !ok {
		return nil, fmt.Errorf("unknown mail template %q", name)
	}

	var subject bytes.Buffer
	st, err := texttemplate.New("subject").Parse(subjectTpl)
	if err != nil {
		return nil, err
	}
	if err := st.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("render subject %s: %w", name, err)
	}

	var body bytes.Buffer
	if err := r.bodies.ExecuteTemplate(&body, name+".html", data); err != nil {
		return nil, fmt.Errorf("render body %s: %w", name, err)
	}

	return &Message{Subject: subject.String(), HTML: body.String()}, nil
}

// NewMailer picks SMTP delivery when a host is configured and a logging
// mailer otherwise.
func NewMailer(cfg *config.Notification) (Mailer, error) {
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	if cfg.SMTPHost == "" {
		return &logMailer{renderer: r}, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(15 * time.Second),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	return &smtpMailer{
		renderer: r,
		host:     cfg.SMTPHost,
		opts:     opts,
		from:     cfg.From,
	}, nil
}

type smtpMailer struct {
	*renderer
	host string
	opts []mail.Option
	from string
}

// Send dials a fresh connection per message so relay workers never share one.
func (m *smtpMailer) Send(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	if len(to) == 0 {
		return nil
	}
	rendered, err := m.Render(templateName, data)
	if err != nil {
		return err
	}
	msg, err := newMessage(m.from, to, rendered)
	if err != nil {
		return fmt.Errorf("build %s: %w", templateName, err)
	}

	c, err := mail.NewClient(m.host, m.opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send %s: %w", templateName, err)
	}
	return nil
}

func newMessage(from string, to []string, rendered *Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(rendered.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextHTML, rendered.HTML)
	return msg, nil
}

type logMailer struct {
	*renderer
}

func (m *logMailer) Send(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	msg, err := m.Render(templateName, data)
	if err != nil {
		return err
	}
	logger.Info("notification (smtp disabled)",
		zap.Strings("to", to),
		zap.String("template", templateName),
		zap.String("subject", msg.Subject),
	)
	return nil
}
