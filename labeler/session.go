package labeler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultLoginBaseURL  = "https://login.planningcenteronline.com"
	DefaultGivingBaseURL = "https://giving.planningcenteronline.com"
)

// Session is an authenticated web session: the cookie header value and the
// CSRF token required to authorize mutations. It lives for one run only.
type Session struct {
	Cookie    string
	CSRFToken string
}

// AuthStrategy establishes a Session against the non-API web surface.
type AuthStrategy interface {
	Establish(ctx context.Context) (Session, error)
}

// NewAuthStrategy selects the strategy implied by the login settings:
// cookie reuse when a cookie is configured, interactive form login otherwise.
func NewAuthStrategy(login LoginSettings, loginBaseURL, givingBaseURL string) AuthStrategy {
	if loginBaseURL == "" {
		loginBaseURL = DefaultLoginBaseURL
	}
	if givingBaseURL == "" {
		givingBaseURL = DefaultGivingBaseURL
	}
	if login.UsesCookie() {
		return &CookieStrategy{GivingBaseURL: givingBaseURL, Cookie: login.Cookie}
	}
	return &FormLoginStrategy{LoginBaseURL: loginBaseURL, GivingBaseURL: givingBaseURL, Login: login}
}

func newWebClient(baseURL string) *resty.Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("user-agent", UserAgent)
	client.SetTimeout(HTTPRequestTimeout)
	return client
}

func csrfTokenFromPage(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse html %w", err)
	}
	token := doc.Find(`meta[name="csrf-token"]`).AttrOr("content", "")
	if token == "" {
		return "", fmt.Errorf("could not find csrf-token meta tag")
	}
	return token, nil
}

// FormLoginStrategy performs the interactive browser login: fetch the login
// form, submit credentials, then confirm the account selection for the
// configured user id using the freshly issued CSRF token.
type FormLoginStrategy struct {
	LoginBaseURL  string
	GivingBaseURL string
	Login         LoginSettings
}

func (s *FormLoginStrategy) Establish(ctx context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return Session{}, err
	}
	client := newWebClient(s.LoginBaseURL)
	client.SetCookieJar(jar)

	res, err := client.R().
		SetContext(ctx).
		Get("/login/new?ready=true")
	if err != nil {
		return Session{}, fmt.Errorf("failed to fetch login page %w", err)
	}
	if res.IsError() {
		return Session{}, fmt.Errorf("login page returned status %d", res.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return Session{}, fmt.Errorf("failed to parse login page %w", err)
	}
	form := doc.Find("form").First()
	if form.Length() == 0 {
		return Session{}, fmt.Errorf("could not find login form")
	}

	// Carry every named input (hidden authenticity_token included), then
	// overwrite the credential fields the way a browser submission would.
	fields := map[string]string{}
	form.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		fields[input.AttrOr("name", "")] = input.AttrOr("value", "")
	})
	for _, required := range []string{"login", "password"} {
		if _, ok := fields[required]; !ok {
			return Session{}, fmt.Errorf("login form is missing the %q field", required)
		}
	}
	fields["login"] = s.Login.Email
	fields["password"] = s.Login.Password

	res, err = client.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(form.AttrOr("action", "/login"))
	if err != nil {
		return Session{}, fmt.Errorf("failed to submit login form %w", err)
	}
	if res.IsError() {
		return Session{}, fmt.Errorf("login submission returned status %d", res.StatusCode())
	}
	token, err := csrfTokenFromPage(res.Body())
	if err != nil {
		return Session{}, err
	}

	// Multi-account support: finalize which account this session acts as.
	res, err = client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"_method":            "PUT",
			"authenticity_token": token,
		}).
		Post(fmt.Sprintf("/login?user_id=%s", s.Login.UserID))
	if err != nil {
		return Session{}, fmt.Errorf("failed to select user %s %w", s.Login.UserID, err)
	}
	if res.IsError() {
		return Session{}, fmt.Errorf("user selection returned status %d", res.StatusCode())
	}

	cookie, err := cookieHeaderForURL(jar, s.GivingBaseURL)
	if err != nil {
		return Session{}, err
	}
	return Session{Cookie: cookie, CSRFToken: token}, nil
}

// CookieStrategy reuses an operator supplied session cookie, fetching the
// giving dashboard solely to extract the CSRF token. A redirect means the
// session has expired; there is no way to recover that automatically, so the
// error carries the redirect target and body for the operator.
type CookieStrategy struct {
	GivingBaseURL string
	Cookie        string
}

func (s *CookieStrategy) Establish(ctx context.Context) (Session, error) {
	client := newWebClient(s.GivingBaseURL)
	client.GetClient().CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	res, err := client.R().
		SetContext(ctx).
		SetHeader("Cookie", s.Cookie).
		Get("/")
	if err != nil {
		return Session{}, fmt.Errorf("failed to fetch giving dashboard %w", err)
	}
	if res.StatusCode() >= 300 && res.StatusCode() < 400 {
		return Session{}, fmt.Errorf("session cookie rejected, redirected to %s\n%s",
			res.Header().Get("Location"), res.Body())
	}
	if res.IsError() {
		return Session{}, fmt.Errorf("giving dashboard returned status %d", res.StatusCode())
	}
	token, err := csrfTokenFromPage(res.Body())
	if err != nil {
		return Session{}, err
	}
	return Session{Cookie: s.Cookie, CSRFToken: token}, nil
}

func cookieHeaderForURL(jar http.CookieJar, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	cookies := jar.Cookies(u)
	if len(cookies) == 0 {
		return "", fmt.Errorf("no session cookies issued for %s", rawURL)
	}
	pairs := make([]string, len(cookies))
	for i, c := range cookies {
		pairs[i] = c.Name + "=" + c.Value
	}
	return strings.Join(pairs, "; "), nil
}
