package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/tidwall/gjson"
	errors "golang.org/x/xerrors"
)

const (
	APIPrefix      = "/api/v2.0/"
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResponseSize bounds the bytes read from a single response body.
	DefaultMaxResponseSize = 16 << 20
)

type Options struct {
	Logger             abstractlogger.Logger
	HTTPClient         *http.Client
	APIKey             string
	Username           string
	Password           string
	InsecureSkipVerify bool
	Timeout            time.Duration
	MaxResponseSize    int64
}

type OptionFunc func(opts *Options)

func WithLogger(logger abstractlogger.Logger) OptionFunc {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func WithHTTPClient(httpClient *http.Client) OptionFunc {
	return func(opts *Options) {
		opts.HTTPClient = httpClient
	}
}

// WithAPIKey authenticates every request with a bearer API key.
func WithAPIKey(apiKey string) OptionFunc {
	return func(opts *Options) {
		opts.APIKey = apiKey
	}
}

// WithBasicAuth authenticates every request with a local user. Ignored when an API key is set.
func WithBasicAuth(username, password string) OptionFunc {
	return func(opts *Options) {
		opts.Username = username
		opts.Password = password
	}
}

func WithInsecureSkipVerify(insecureSkipVerify bool) OptionFunc {
	return func(opts *Options) {
		opts.InsecureSkipVerify = insecureSkipVerify
	}
}

func WithTimeout(timeout time.Duration) OptionFunc {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

func WithMaxResponseSize(maxResponseSize int64) OptionFunc {
	return func(opts *Options) {
		opts.MaxResponseSize = maxResponseSize
	}
}

// Client talks to the v2.0 HTTP api of a TrueNAS server.
type Client struct {
	logger     abstractlogger.Logger
	baseURL    *url.URL
	httpClient *http.Client
	apiKey     string
	username   string
	password   string
	// maxResponseSize is the largest body accepted, larger ones fail with ErrResponseTooLarge.
	maxResponseSize int64
}

func NewClient(baseURL string, options ...OptionFunc) (*Client, error) {
	definedOptions := Options{
		Logger:  abstractlogger.Noop{},
		Timeout: DefaultTimeout,
	}

	for _, optionFunc := range options {
		optionFunc(&definedOptions)
	}

	return NewClientWithOptions(baseURL, definedOptions)
}

func NewClientWithOptions(baseURL string, options Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Errorf("rest: parsing base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidBaseURL
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + APIPrefix

	if options.Logger == nil {
		options.Logger = abstractlogger.Noop{}
	}
	if options.MaxResponseSize <= 0 {
		options.MaxResponseSize = DefaultMaxResponseSize
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if options.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // nolint:gosec
		}
		httpClient = &http.Client{
			Timeout:   options.Timeout,
			Transport: transport,
		}
	}

	return &Client{
		logger:     options.Logger,
		baseURL:    u,
		httpClient: httpClient,
		apiKey:     options.APIKey,
		username:   options.Username,
		password:   options.Password,

		maxResponseSize: options.MaxResponseSize,
	}, nil
}

// GetJobs lists jobs. query is passed through as url parameters, e.g. state=RUNNING.
func (c *Client) GetJobs(ctx context.Context, query url.Values) ([]Job, error) {
	var jobs []Job
	if err := c.getJSON(ctx, "core/get_jobs", query, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob looks a single job up. The server may answer the id filter with more than one job,
// so the result is matched client side.
func (c *Client) GetJob(ctx context.Context, id int64) (*Job, error) {
	jobs, err := c.GetJobs(ctx, url.Values{"id": []string{strconv.FormatInt(id, 10)}})
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if jobs[i].ID == id {
			return &jobs[i], nil
		}
	}
	return nil, &JobNotFoundError{ID: id}
}

func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.getJSON(ctx, "system/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// PoolsJSON returns the raw pool list. Topology is deeply nested and queried by path.
func (c *Client) PoolsJSON(ctx context.Context) ([]byte, error) {
	body, err := c.do(ctx, http.MethodGet, "pool", nil, nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsArray() {
		return nil, &DeserializeError{Path: "pool", Body: body, Err: errors.New("expected a json array")}
	}
	return body, nil
}

func (c *Client) ChartReleases(ctx context.Context) ([]ChartRelease, error) {
	var releases []ChartRelease
	if err := c.getJSON(ctx, "chart/release", nil, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

func (c *Client) ReportingGraphs(ctx context.Context) ([]Graph, error) {
	var graphs []Graph
	if err := c.getJSON(ctx, "reporting/graphs", nil, &graphs); err != nil {
		return nil, err
	}
	return graphs, nil
}

func (c *Client) ReportingData(ctx context.Context, request ReportingDataRequest) ([]GraphData, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Errorf("rest: encoding reporting query: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "reporting/get_data", nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var data []GraphData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &DeserializeError{Path: "reporting/get_data", Body: body, Err: err}
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("rest.Client.getJSON: on response deserialization",
			abstractlogger.String("path", path),
			abstractlogger.Error(err),
		)
		return &DeserializeError{Path: path, Body: body, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) ([]byte, error) {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, errors.Errorf("rest: building %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	c.logger.Debug("rest.Client.do: on sending request",
		abstractlogger.String("method", method),
		abstractlogger.String("url", endpoint.String()),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	// One byte past the limit tells a body of exactly the limit apart from a larger one.
	data, err := ioutil.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, errors.Errorf("rest: reading %s response: %w", path, err)
	}
	if int64(len(data)) > c.maxResponseSize {
		c.logger.Error("rest.Client.do: on response size",
			abstractlogger.String("path", path),
			abstractlogger.Any("limit", c.maxResponseSize),
		)
		return nil, errors.Errorf("rest: %s %s exceeds %d bytes: %w", method, path, c.maxResponseSize, ErrResponseTooLarge)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("rest.Client.do: on response status",
			abstractlogger.String("path", path),
			abstractlogger.Any("status", resp.StatusCode),
			abstractlogger.ByteString("body", data),
		)
		return nil, &NotOkError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       data,
		}
	}

	return data, nil
}

func (c *Client) authorize(req *http.Request) {
	switch {
	case c.apiKey != "":
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
}
