package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	TwilioAPIBase = "https://api.twilio.com"
	// MaxSMSLength is the longest body Twilio accepts for one message.
	MaxSMSLength = 1600
)

type Twilio struct {
	AccountSID string
	AuthToken  string
	From       string
	APIBase    string
	Client     *http.Client
}

// NewTwilio returns nil unless sid, token and from are all set.
func NewTwilio(sid, token, from, apiBase string) *Twilio {
	if sid == "" || token == "" || from == "" {
		return nil
	}
	if apiBase == "" {
		apiBase = TwilioAPIBase
	}
	return &Twilio{
		AccountSID: sid,
		AuthToken:  token,
		From:       from,
		APIBase:    strings.TrimRight(apiBase, "/"),
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// E164 turns a bare national number into +1XXXXXXXXXX. Numbers that already
// carry a + are left alone.
func E164(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+1" + phone
}

func (t *Twilio) Send(ctx context.Context, contact, message string) error {
	if t == nil {
		return fmt.Errorf("twilio: %w", ErrDisabled)
	}
	contact = strings.TrimSpace(contact)
	message = strings.TrimSpace(message)
	if contact == "" || message == "" {
		return fmt.Errorf("twilio: missing recipient or body")
	}
	if r := []rune(message); len(r) > MaxSMSLength {
		message = string(r[:MaxSMSLength])
	}

	form := url.Values{}
	form.Set("From", t.From)
	form.Set("To", E164(contact))
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.APIBase, url.PathEscape(t.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	req.SetBasicAuth(t.AccountSID, t.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
