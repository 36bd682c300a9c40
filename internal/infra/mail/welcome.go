package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"bot-access/internal/domain/users"
)

//go:embed templates/*.html
var templateFS embed.FS

var welcomeTmpl = template.Must(template.ParseFS(templateFS, "templates/welcome.html"))

type welcomeData struct {
	AppName   string
	Name      string
	Email     string
	Password  string
	SignInURL string
}

// Welcomer renders the welcome mail with the one-time password and hands it
// to a Sender.
type Welcomer struct {
	sender  Sender
	appName string
	appURL  string
}

func NewWelcomer(sender Sender, appName, appURL string) *Welcomer {
	return &Welcomer{sender: sender, appName: appName, appURL: strings.TrimRight(appURL, "/")}
}

func (w *Welcomer) SendWelcome(ctx context.Context, u *users.User, password string) error {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		name = u.Email
	}

	var body bytes.Buffer
	err := welcomeTmpl.Execute(&body, welcomeData{
		AppName:   w.appName,
		Name:      name,
		Email:     u.Email,
		Password:  password,
		SignInURL: w.appURL + "/sign-in",
	})
	if err != nil {
		return fmt.Errorf("render welcome mail: %w", err)
	}

	return w.sender.Send(ctx, Message{
		To:      u.Email,
		Subject: fmt.Sprintf("Welcome to %s - your account is ready", w.appName),
		HTML:    body.String(),
		Tag:     "welcome",
	})
}
