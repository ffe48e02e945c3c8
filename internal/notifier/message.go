package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/email"
)

const subject = "Confirm your email address"

var bodyTmpl = template.Must(template.New("verify").Parse(
	`<p>Your verification code is <strong>{{.Code}}</strong>.</p>` +
		`<p>Enter it in the app, or open the link below to finish signing up:</p>` +
		`<p><a href="{{.Link}}">{{.Link}}</a></p>` +
		`<p>The code expires in a few minutes. If you did not create an account you can ignore this email.</p>`,
))

// VerifyPath is the API route that redeems an emailed link.
const VerifyPath = "/v1/users/verify"

// VerifyLink builds {base}/v1/users/verify?verification_id=...&code=...
func VerifyLink(base, verificationID, code string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + VerifyPath)
	if err != nil {
		return "", fmt.Errorf("parse link base: %w", err)
	}
	q := url.Values{}
	q.Set("verification_id", verificationID)
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func renderMessage(ev domain.VerificationRequestedEvent, linkBase string) (email.Message, error) {
	link, err := VerifyLink(linkBase, ev.VerificationID, ev.VerificationCode)
	if err != nil {
		return email.Message{}, err
	}

	var buf bytes.Buffer
	if err := bodyTmpl.Execute(&buf, struct{ Code, Link string }{ev.VerificationCode, link}); err != nil {
		return email.Message{}, fmt.Errorf("render email: %w", err)
	}

	return email.Message{
		To:      ev.Email,
		Subject: subject,
		HTML:    buf.String(),
		Link:    link,
	}, nil
}
