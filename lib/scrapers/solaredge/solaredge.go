package solaredge

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"solarweb-backend/lib/htmlutil"
	"solarweb-backend/lib/restyutil"
	"solarweb-backend/lib/timezone"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/solaredge")

var ErrLoginFailed = fmt.Errorf("Failed to login to the monitoring portal.")
var ErrNoCSRFToken = fmt.Errorf("CSRF-TOKEN cookie not found, login did not establish a session")

const DefaultBaseUrl = "https://monitoring.solaredge.com"

const ssoCookieName = "SolarEdge_SSO-1.4"
const csrfCookieName = "CSRF-TOKEN"

// re-login this long before the SSO cookie actually expires
const sessionSafetyMargin = time.Minute * 10

type ClientOptions struct {
	// defaults to DefaultBaseUrl when empty
	BaseUrl  string
	Username string
	Password string
	SiteId   string
}

// Client scrapes the monitoring portal's internal web API. The
// official API is not used because it cannot resolve production
// below the site level; this one reports per inverter, string and
// module.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	SiteId  string

	username string
	password string

	mu        sync.Mutex
	lastLogin time.Time
	ssoMaxAge time.Duration
	equipment map[int64]Equipment
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	rawBaseUrl := opts.BaseUrl
	if rawBaseUrl == "" {
		rawBaseUrl = DefaultBaseUrl
	}
	baseUrl, err := url.Parse(rawBaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(rawBaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	c := &Client{
		BaseUrl:  baseUrl,
		Http:     client,
		SiteId:   opts.SiteId,
		username: opts.Username,
		password: opts.Password,
	}
	return c, nil
}

func (c *Client) findCookie(name string) *http.Cookie {
	jar := c.Http.GetClient().Jar
	if jar == nil {
		return nil
	}
	for _, cookie := range jar.Cookies(c.BaseUrl) {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

// the cookie jar strips Max-Age from stored cookies, so expiry is
// tracked from the login response itself (see Login)
func (c *Client) sessionValid() bool {
	if c.findCookie(ssoCookieName) == nil {
		return false
	}
	if c.lastLogin.IsZero() || c.ssoMaxAge <= sessionSafetyMargin {
		return false
	}
	return timezone.Now().Sub(c.lastLogin) < c.ssoMaxAge-sessionSafetyMargin
}

// Login establishes an SSO session with the portal. It is a no-op
// while the previous session is still comfortably within the SSO
// cookie's lifetime; an actual login invalidates the cached
// equipment layout.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionValid() {
		span.AddEvent("skipping login, existing SSO session is still valid")
		return nil
	}
	c.equipment = nil

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"j_username": c.username,
			"j_password": c.password,
		}).
		Post("/solaredge-apigw/api/login")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		reason := loginFailureReason(res.Body())
		if reason != "" {
			return fmt.Errorf("%w: %s", ErrLoginFailed, reason)
		}
		return fmt.Errorf("%w: status %d", ErrLoginFailed, res.StatusCode())
	}

	c.ssoMaxAge = 0
	for _, cookie := range res.Cookies() {
		if cookie.Name == ssoCookieName && cookie.MaxAge > 0 {
			c.ssoMaxAge = time.Duration(cookie.MaxAge) * time.Second
		}
	}
	c.lastLogin = timezone.Now()

	return nil
}

// a failed login bounces back to the login page, which carries the
// rejection reason in an error banner
func loginFailureReason(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return ""
	}
	sel := doc.Find("div.login-error, span.error, p.error").First()
	if len(sel.Nodes) == 0 {
		return ""
	}
	return htmlutil.CleanText(htmlutil.GetText(sel.Nodes[0]))
}
