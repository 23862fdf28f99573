// Package input fetches source documents from the local filesystem or over
// HTTP(S) and tags them with their detected encoding.
package input

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/nebula-convert/pkg/convert"
	"github.com/ajitpratap0/nebula-convert/pkg/errors"
)

// Input is a fully read source document
type Input struct {
	// Name is the base file name, used for logging and detection
	Name string
	// Location is what was fetched: a path or a URL
	Location string
	Data     []byte
	Encoding convert.Encoding
}

// New tags in-memory data, for example an uploaded file, with the encoding
// detected from name
func New(name string, data []byte) *Input {
	return &Input{
		Name:     filepath.Base(name),
		Location: name,
		Data:     data,
		Encoding: convert.DetectEncoding(name),
	}
}

// Config configures the provider
type Config struct {
	// MaxBytes bounds the size of a fetched document
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes" mapstructure:"max_bytes"`
	// Timeout bounds a whole HTTP fetch
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	// EnableHTTP2 negotiates HTTP/2 over TLS
	EnableHTTP2 bool `yaml:"enable_http2" json:"enable_http2" mapstructure:"enable_http2"`
	// MaxRedirects bounds the redirect chain
	MaxRedirects int `yaml:"max_redirects" json:"max_redirects" mapstructure:"max_redirects"`
	// UserAgent is sent with every request
	UserAgent string `yaml:"user_agent" json:"user_agent" mapstructure:"user_agent"`
}

// DefaultConfig returns a 32MiB limit and a 30s timeout
func DefaultConfig() Config {
	return Config{
		MaxBytes:     32 << 20,
		Timeout:      30 * time.Second,
		EnableHTTP2:  true,
		MaxRedirects: 10,
		UserAgent:    "nebula-convert/1.0",
	}
}

// Provider fetches inputs
type Provider struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewProvider creates a provider with its own HTTP transport
func NewProvider(config Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultConfig().MaxBytes
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = DefaultConfig().MaxRedirects
	}
	logger = logger.With(zap.String("component", "input"))

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	maxRedirects := config.MaxRedirects
	return &Provider{
		config: config,
		logger: logger,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// WithHTTPClient replaces the HTTP client, for tests against httptest
func (p *Provider) WithHTTPClient(c *http.Client) *Provider {
	p.client = c
	return p
}

// IsURL reports whether location is an http or https URL
func IsURL(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch reads location, a local path, a file:// URL or an http(s) URL
func (p *Provider) Fetch(ctx context.Context, location string) (*Input, error) {
	if strings.HasPrefix(location, "file://") {
		location = strings.TrimPrefix(location, "file://")
	}
	if IsURL(location) {
		return p.fetchURL(ctx, location)
	}
	return p.readFile(location)
}

func (p *Provider) readFile(name string) (*Input, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open input").
			WithDetail("path", name)
	}
	defer f.Close()

	data, rerr := p.readLimited(f)
	if rerr != nil {
		return nil, rerr.WithDetail("path", name)
	}

	p.logger.Debug("read local input", zap.String("path", name), zap.Int("bytes", len(data)))
	return New(name, data), nil
}

func (p *Provider) fetchURL(ctx context.Context, location string) (*Input, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid input URL").
			WithDetail("url", location)
	}
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to fetch input").
			WithDetail("url", location)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf(errors.ErrorTypeConnection, "fetch returned status %d", resp.StatusCode).
			WithDetail("url", location)
	}

	data, rerr := p.readLimited(resp.Body)
	if rerr != nil {
		return nil, rerr.WithDetail("url", location)
	}

	p.logger.Debug("fetched remote input",
		zap.String("url", location),
		zap.String("proto", resp.Proto),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)))

	// The URL path decides the encoding; the query string is ignored.
	in := New(location, data)
	if u, perr := url.Parse(location); perr == nil {
		in.Name = path.Base(u.Path)
	}
	return in, nil
}

func (p *Provider) readLimited(r io.Reader) ([]byte, *errors.Error) {
	data, err := io.ReadAll(io.LimitReader(r, p.config.MaxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read input")
	}
	if int64(len(data)) > p.config.MaxBytes {
		return nil, errors.Newf(errors.ErrorTypeValidation, "input exceeds %d bytes", p.config.MaxBytes)
	}
	return data, nil
}
