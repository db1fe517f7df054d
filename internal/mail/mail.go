// Package mail delivers templated e-mail.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"text/template"
)

// TemplateComplaint is sent to staff when a complaint is filed.
const TemplateComplaint = "chat-opinion-complaint"

// Message is a rendered mail.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers a named template to one recipient.
type Sender interface {
	Send(ctx context.Context, templateName, to string, data map[string]any) error
}

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[string]mailTemplate{
	TemplateComplaint: {
		subject: template.Must(template.New("subject").Parse(
			`New chat opinion complaint on booking #{{.booking_id}}`)),
		body: template.Must(template.New("body").Parse(
			`A {{.type}} complaint was filed on booking #{{.booking_id}}{{with .user}} by {{.}}{{end}}.

{{.description}}
`)),
	},
}

// Render produces the subject and body of a named template.
func Render(name string, data map[string]any) (subject, body string, err error) {
	t, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("mail: unknown template %q", name)
	}
	var sb, bb bytes.Buffer
	if err := t.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("mail: render %s subject: %w", name, err)
	}
	if err := t.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("mail: render %s body: %w", name, err)
	}
	return sb.String(), bb.String(), nil
}

// CommandSender pipes the body to a shell command. Command may reference
// {{.From}}, {{.To}} and {{.Subject}}; values are shell-quoted before
// substitution. The body is written to the command's stdin.
type CommandSender struct {
	Command string
	From    string
}

// Send renders templateName and runs the command.
func (s CommandSender) Send(ctx context.Context, templateName, to string, data map[string]any) error {
	if to == "" {
		return fmt.Errorf("mail: recipient is required")
	}
	subject, body, err := Render(templateName, data)
	if err != nil {
		return err
	}
	msg := Message{From: s.From, To: to, Subject: subject, Body: body}

	cmd := exec.CommandContext(ctx, "sh", "-c", templateCommand(s.Command, msg))
	cmd.Stdin = strings.NewReader(msg.Body)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("mail: command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// templateCommand replaces placeholders in the command template with
// shell-quoted message values.
func templateCommand(command string, msg Message) string {
	r := strings.NewReplacer(
		"{{.From}}", shellQuote(msg.From),
		"{{.To}}", shellQuote(msg.To),
		"{{.Subject}}", shellQuote(msg.Subject),
	)
	return r.Replace(command)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// LogSender writes mails to the standard logger instead of sending them.
type LogSender struct{}

// Send renders templateName and logs it.
func (LogSender) Send(_ context.Context, templateName, to string, data map[string]any) error {
	subject, _, err := Render(templateName, data)
	if err != nil {
		return err
	}
	log.Printf("mail: to=%s subject=%q (no mail command configured)", to, subject)
	return nil
}

// New returns a CommandSender when command is set and a LogSender otherwise.
func New(command, from string) Sender {
	if command == "" {
		return LogSender{}
	}
	return CommandSender{Command: command, From: from}
}
