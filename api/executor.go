package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/agentuity/go-apiclient/crypto"
	"github.com/agentuity/go-apiclient/logger"
	"github.com/agentuity/go-apiclient/network"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Header names of the request protocol.
const (
	HeaderNativeApp = "X-Native-App"
	HeaderCSRFToken = "X-CSRFToken"
	HeaderUserID    = "X-User-Id"
)

// Cookie names of the session.
const (
	CookieSession = "sessionid"
	CookieCSRF    = "csrftoken"
)

const contentTypeJSON = "application/json"

// Config configures an Executor.
type Config struct {
	// Host is the backend host with an optional port, without a scheme.
	Host string
	// HTTPSOnly forces https for every request.
	HTTPSOnly bool
	AppName   string
	// Language is sent as Accept-Language. Empty uses the process locale.
	Language     string
	Signer       *crypto.Signer
	Client       *http.Client
	Connectivity network.Connectivity
	Logger       logger.Logger
}

// Executor builds, signs and sends API requests. Authenticated requests go
// through the session protocol of the attached Authenticator.
type Executor struct {
	host         string
	httpsOnly    bool
	userAgent    string
	clientID     string
	language     string
	signer       *crypto.Signer
	client       *http.Client
	connectivity network.Connectivity
	logger       logger.Logger
	auth         Authenticator
}

// New returns an Executor for cfg.
func New(cfg Config) (*Executor, error) {
	host := strings.TrimSuffix(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		return nil, errors.Wrap(ErrMissingParameters, "host is required")
	}
	if strings.Contains(host, "://") {
		return nil, errors.Wrapf(ErrMissingParameters, "host %q must not contain a scheme", host)
	}
	e := &Executor{
		host:         host,
		httpsOnly:    cfg.HTTPSOnly,
		userAgent:    UserAgent(cfg.AppName),
		clientID:     ClientIdentification(cfg.AppName),
		language:     NormalizeLanguage(cfg.Language),
		signer:       cfg.Signer,
		client:       cfg.Client,
		connectivity: cfg.Connectivity,
		logger:       cfg.Logger,
	}
	if e.language == "" {
		e.language = DetectLanguage()
	}
	if e.client == nil {
		e.client = http.DefaultClient
	}
	if e.connectivity == nil {
		e.connectivity = network.System()
	}
	if e.logger == nil {
		e.logger = logger.NewConsoleLogger(logger.LevelNone)
	}
	e.logger = e.logger.WithPrefix("[api]")
	return e, nil
}

// WithAuthenticator returns a copy of the executor whose authenticated
// requests follow the protocol of auth.
func (e *Executor) WithAuthenticator(auth Authenticator) *Executor {
	c := *e
	c.auth = auth
	return &c
}

// Host returns the configured backend host.
func (e *Executor) Host() string {
	return e.host
}

// Connected reports whether the device has a usable network.
func (e *Executor) Connected(ctx context.Context) bool {
	return e.connectivity.Connected(ctx)
}

// Response is the raw outcome of one exchange.
type Response struct {
	Method string
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// Error returns the error for a failed status, or nil.
func (r *Response) Error() error {
	if r.Status < 400 {
		return nil
	}
	e := NewError(ErrServerError, r.Method, r.URL, r.Status, string(r.Body), nil)
	e.TraceID = r.Header.Get("traceparent")
	return e
}

func (e *Executor) scheme(req *Request) string {
	if e.httpsOnly || req.Secure {
		return "https"
	}
	return "http"
}

func (e *Executor) url(req *Request) string {
	u := url.URL{
		Scheme:   e.scheme(req),
		Host:     e.host,
		Path:     req.Path,
		RawQuery: req.Params.Values().Encode(),
	}
	return u.String()
}

func (e *Executor) tokens(req *Request) Tokens {
	if req.Tokens != nil {
		return *req.Tokens
	}
	if e.auth != nil {
		return e.auth.Tokens()
	}
	return Tokens{}
}

func (e *Executor) build(ctx context.Context, req *Request, tokens Tokens) (*http.Request, error) {
	method := req.Action.Method()
	target := e.url(req)
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Error{Kind: ErrMissingParameters, Method: method, URL: target, Cause: err}
	}
	h := hreq.Header
	h.Set(HeaderNativeApp, e.clientID)
	h.Set("User-Agent", e.userAgent)
	h.Set("Accept", contentTypeJSON)
	if e.language != "" {
		h.Set("Accept-Language", e.language)
	}
	h.Set("Referer", e.scheme(req)+"://"+e.host)
	if tokens.SessionID != "" {
		hreq.AddCookie(&http.Cookie{Name: CookieSession, Value: tokens.SessionID})
	}
	if tokens.CSRFToken != "" {
		hreq.AddCookie(&http.Cookie{Name: CookieCSRF, Value: tokens.CSRFToken})
		h.Set(HeaderCSRFToken, tokens.CSRFToken)
	}
	if len(req.Body) > 0 {
		h.Set("Content-Type", contentTypeJSON)
		switch req.Sign {
		case SignBody, SignBodyWithNonce:
			if e.signer == nil {
				return nil, &Error{Kind: ErrMissingParameters, Method: method, URL: target, Cause: crypto.ErrMissingSigningKey}
			}
			if req.Sign == SignBodyWithNonce {
				digest, nonce := e.signer.SignWithNonce(req.Body)
				h.Set(crypto.HeaderSignature, digest)
				h.Set(crypto.HeaderNonce, nonce)
			} else {
				h.Set(crypto.HeaderSignature, e.signer.Sign(req.Body))
			}
		}
	}
	for k, vals := range req.Header {
		h.Del(k)
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	return hreq, nil
}

// Exchange performs a single exchange of req using tokens, without the
// session protocol. Transport failures are returned as *Error, cancellation
// as the context error. A failed status is not an error here.
func (e *Executor) Exchange(ctx context.Context, req *Request, tokens Tokens) (*Response, error) {
	ctx, span := tracer.Start(ctx, "api.exchange", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("http.method", req.Action.Method()),
		attribute.String("url.path", req.Path),
		attribute.Bool("api.authenticated", req.Authenticated),
	))
	defer span.End()

	hreq, err := e.build(ctx, req, tokens)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}
	propagator.Inject(ctx, propagation.HeaderCarrier(hreq.Header))

	e.logger.Trace("sending request: %s %s (%s)", hreq.Method, MaskURL(hreq.URL.String()), tokens)
	resp, err := e.client.Do(hreq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, e.transportError(ctx, hreq, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read error")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, e.transportError(ctx, hreq, errors.Wrap(err, "error reading response body"))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Status)
	}

	if req.Params != nil {
		req.Params.Update(resp.Header)
	}

	contentType := resp.Header.Get("Content-Type")
	e.logger.Debug("response status: %s, body: %s, content-type: %s", resp.Status, safeBodyPreview(body, contentType, 200), contentType)

	return &Response{
		Method: hreq.Method,
		URL:    hreq.URL.String(),
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}

func (e *Executor) transportError(ctx context.Context, hreq *http.Request, cause error) error {
	kind := ErrBadConnection
	if !e.connectivity.Connected(ctx) {
		kind = ErrNoConnectivity
	}
	e.logger.Debug("request %s %s failed: %s", hreq.Method, MaskURL(hreq.URL.String()), cause)
	return &Error{Kind: kind, Method: hreq.Method, URL: hreq.URL.String(), Cause: cause}
}

// Send runs req to completion and returns the body of read actions.
func (e *Executor) Send(ctx context.Context, req *Request) (string, error) {
	return e.NewCall(req).Do(ctx)
}
