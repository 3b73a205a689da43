package providers

import (
	"fmt"
	"net/url"
	"strings"
)

// LaunchParams carries everything a provider needs to build a game URL.
type LaunchParams struct {
	SessionID string
	Token     string
	GameCode  string
	PlayerID  string
	Currency  string
	Language  string
	Device    string
	Demo      bool
	ReturnURL string
}

// Launcher builds the URL a player is redirected to for one provider.
type Launcher interface {
	LaunchURL(p LaunchParams) (string, error)
}

var launchers = map[string]Launcher{}

func Register(name string, l Launcher) {
	launchers[strings.ToLower(name)] = l
}

func Get(name string) Launcher {
	return launchers[strings.ToLower(name)]
}

// HostedLauncher is the default: games served from our own launch host with
// the session token in the query string.
type HostedLauncher struct {
	BaseURL string
}

func (h HostedLauncher) LaunchURL(p LaunchParams) (string, error) {
	if h.BaseURL == "" {
		return "", fmt.Errorf("launch base url not configured")
	}
	q := url.Values{}
	q.Set("token", p.Token)
	q.Set("game", p.GameCode)
	q.Set("currency", p.Currency)
	if p.Language != "" {
		q.Set("lang", p.Language)
	}
	if p.Device != "" {
		q.Set("device", p.Device)
	}
	if p.Demo {
		q.Set("demo", "1")
	}
	if p.ReturnURL != "" {
		q.Set("return_url", p.ReturnURL)
	}
	return strings.TrimRight(h.BaseURL, "/") + "/launch?" + q.Encode(), nil
}
