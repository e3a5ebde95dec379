// Package httpbackend talks to the checkout backend over HTTP/JSON.
package httpbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	cart "github.com/dwikikusuma/pos-checkout/internal/cart/domain"
	"github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/pos-checkout/pkg/logger"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetries    = 2
	defaultRetryDelay = 250 * time.Millisecond
)

type Config struct {
	// URL is the backend base URL. Relative links in responses are
	// resolved against it.
	URL     string
	Project string
	Token   string
	Timeout time.Duration

	// Retries of idempotent requests after a network error or a 5xx,
	// with exponential backoff starting at RetryDelay. Negative disables.
	Retries    int
	RetryDelay time.Duration

	HTTPClient *http.Client
	Log        *slog.Logger
}

type Client struct {
	base       *url.URL
	project    string
	token      string
	retries    int
	retryDelay time.Duration
	http       *http.Client
	log        *slog.Logger
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/") + "/")
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", cfg.URL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	retries := cfg.Retries
	switch {
	case retries == 0:
		retries = defaultRetries
	case retries < 0:
		retries = 0
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	log := cfg.Log
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		base:       base,
		project:    cfg.Project,
		token:      cfg.Token,
		retries:    retries,
		retryDelay: delay,
		http:       hc,
		log:        log,
	}, nil
}

type link struct {
	Href string `json:"href"`
}

type infoRequest struct {
	Session        string                 `json:"session"`
	ShopID         string                 `json:"shopID"`
	Items          []cart.BackendItem     `json:"items"`
	Taxation       cart.Taxation          `json:"requiredInformation,omitempty"`
	PaymentMethods []domain.PaymentMethod `json:"acceptedPaymentMethods,omitempty"`
}

type infoResponse struct {
	CheckoutInfo json.RawMessage `json:"checkoutInfo"`
	Signature    string          `json:"signature"`
	Links        struct {
		CheckoutProcess link `json:"checkoutProcess"`
	} `json:"links"`
}

func (c *Client) CreateCheckoutInfo(ctx context.Context, bc cart.BackendCart, accepted []domain.PaymentMethod) (domain.Info, error) {
	if bc.ShopID == "" {
		return domain.Info{}, domain.ErrNoShop
	}
	req := infoRequest{
		Session:        bc.Session,
		ShopID:         bc.ShopID,
		Items:          bc.Items,
		Taxation:       bc.Taxation,
		PaymentMethods: accepted,
	}
	if req.Items == nil {
		req.Items = []cart.BackendItem{}
	}

	path := fmt.Sprintf("%s/shops/%s/checkout-info", c.project, url.PathEscape(bc.ShopID))
	body, err := c.do(ctx, http.MethodPost, c.resolve(path), req)
	if err != nil {
		return domain.Info{}, fmt.Errorf("create checkout info: %w", err)
	}

	var resp infoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Info{}, fmt.Errorf("decode checkout info: %w", err)
	}
	var info domain.Info
	if len(resp.CheckoutInfo) > 0 {
		if err := json.Unmarshal(resp.CheckoutInfo, &info); err != nil {
			return domain.Info{}, fmt.Errorf("decode checkout info: %w", err)
		}
	}
	info.Signed = json.RawMessage(body)
	info.ProcessHref = resp.Links.CheckoutProcess.Href
	return info, nil
}

type processRequest struct {
	SignedCheckoutInfo json.RawMessage      `json:"signedCheckoutInfo"`
	PaymentMethod      domain.PaymentMethod `json:"paymentMethod"`
	PaymentInformation *paymentInformation  `json:"paymentInformation,omitempty"`
}

type paymentInformation struct {
	OriginType      string `json:"originType"`
	EncryptedOrigin string `json:"encryptedOrigin"`
	AdditionalData  string `json:"additionalData,omitempty"`
	ValidUntil      string `json:"validUntil,omitempty"`
}

type wireProcess struct {
	domain.Process
	Links struct {
		Self            link `json:"self"`
		OriginCandidate link `json:"paymentOriginCandidate"`
	} `json:"links"`
}

func (w wireProcess) toDomain() domain.Process {
	p := w.Process
	p.Links = domain.ProcessLinks{
		Self:            w.Links.Self.Href,
		OriginCandidate: w.Links.OriginCandidate.Href,
	}
	return p
}

func (c *Client) CreatePaymentProcess(ctx context.Context, info domain.Info, method domain.PaymentMethod, creds *domain.Credentials) (domain.Process, error) {
	if len(info.Signed) == 0 {
		return domain.Process{}, domain.ErrNoInfo
	}
	req := processRequest{SignedCheckoutInfo: info.Signed, PaymentMethod: method}
	if !creds.Empty() {
		req.PaymentInformation = &paymentInformation{
			OriginType:      creds.Type,
			EncryptedOrigin: creds.EncryptedOrigin,
			AdditionalData:  creds.AdditionalData,
			ValidUntil:      creds.ValidUntil,
		}
	}

	href := info.ProcessHref
	if href == "" {
		href = c.project + "/checkout/process"
	}
	body, err := c.do(ctx, http.MethodPost, c.resolve(href), req)
	if err != nil {
		return domain.Process{}, fmt.Errorf("create payment process: %w", err)
	}
	return decodeProcess(body)
}

func (c *Client) UpdatePaymentProcess(ctx context.Context, p domain.Process) (domain.Process, error) {
	if p.Links.Self == "" {
		return domain.Process{}, errors.New("payment process has no self link")
	}
	body, err := c.do(ctx, http.MethodGet, c.resolve(p.Links.Self), nil)
	if err != nil {
		return domain.Process{}, fmt.Errorf("update payment process: %w", err)
	}
	return decodeProcess(body)
}

func (c *Client) Abort(ctx context.Context, p domain.Process) error {
	if p.Links.Self == "" {
		return errors.New("payment process has no self link")
	}
	if _, err := c.do(ctx, http.MethodPatch, c.resolve(p.Links.Self), map[string]bool{"aborted": true}); err != nil {
		return fmt.Errorf("abort payment process: %w", err)
	}
	return nil
}

type wireOrigin struct {
	Origin string `json:"origin"`
	Links  struct {
		Promote link `json:"promote"`
	} `json:"links"`
}

func (c *Client) FetchOriginCandidate(ctx context.Context, href string) (domain.OriginCandidate, error) {
	body, err := c.do(ctx, http.MethodGet, c.resolve(href), nil)
	if err != nil {
		return domain.OriginCandidate{}, fmt.Errorf("fetch origin candidate: %w", err)
	}
	var w wireOrigin
	if err := json.Unmarshal(body, &w); err != nil {
		return domain.OriginCandidate{}, fmt.Errorf("decode origin candidate: %w", err)
	}
	return domain.OriginCandidate{Origin: w.Origin, PromoteHref: w.Links.Promote.Href}, nil
}

// Ping reports whether the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &domain.StatusError{Status: resp.StatusCode}
	}
	return nil
}

func decodeProcess(body []byte) (domain.Process, error) {
	var w wireProcess
	if err := json.Unmarshal(body, &w); err != nil {
		return domain.Process{}, fmt.Errorf("decode payment process: %w", err)
	}
	return w.toDomain(), nil
}

// resolve turns a link from a response into an absolute URL.
func (c *Client) resolve(href string) string {
	ref, err := url.Parse(strings.TrimLeft(href, "/"))
	if err != nil {
		return c.base.String() + strings.TrimLeft(href, "/")
	}
	if ref.IsAbs() {
		return ref.String()
	}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) do(ctx context.Context, method, target string, payload any) ([]byte, error) {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet || method == http.MethodPatch {
		attempts += c.retries
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrConnection, ctx.Err())
			}
		}

		body, err := c.roundTrip(ctx, method, target, data)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrConnection) && !domain.IsServerError(err) {
			return nil, err
		}
		c.log.Debug("backend request failed",
			slog.String("method", method),
			slog.String("url", target),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
	}
	return nil, lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, target string, data []byte) ([]byte, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Client-Token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrConnection, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, raw)
	}
	return raw, nil
}
