package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

const (
	maxErrorBodyChars    = 2000
	maxResponseSizeBytes = 2 << 20
)

// UpstreamError is a failed or malformed response from the appointment
// service.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("clinic api error %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Is(target error) bool {
	return target == contractx.ErrUpstream
}

type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
}

// Transport executes one request and returns the JSON object body.
type Transport interface {
	Do(ctx context.Context, req Request) (json.RawMessage, error)
}

// HTTPTransport calls the service's REST endpoint directly.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPTransport(baseURL string, timeout time.Duration) (*HTTPTransport, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("%w: invalid clinic api base url %q", contractx.ErrConfig, baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTransport{baseURL: base, httpClient: &http.Client{Timeout: timeout}}, nil
}

// WithHTTPClient swaps the transport, mainly for tests.
func (t *HTTPTransport) WithHTTPClient(hc *http.Client) *HTTPTransport {
	if hc != nil {
		t.httpClient = hc
	}
	return t
}

func (t *HTTPTransport) Do(ctx context.Context, r Request) (json.RawMessage, error) {
	endpoint := t.baseURL + r.Path
	if len(r.Query) > 0 {
		q := url.Values{}
		for k, v := range r.Query {
			q.Set(k, v)
		}
		endpoint += "?" + q.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal clinic api body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build clinic api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clinic api request %s %s: %w", r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read clinic api response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: truncate(string(raw), maxErrorBodyChars)}
	}

	// API Gateway deployments without proxy integration still wrap the
	// result in statusCode/body.
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.StatusCode != nil && env.Body != nil {
		return env.decode()
	}
	return objectBody(resp.StatusCode, raw)
}

type invokeAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaTransport invokes the service's function with an API Gateway proxy
// event and unwraps the proxy response.
type LambdaTransport struct {
	api          invokeAPI
	functionName string
}

func NewLambdaTransport(cfg aws.Config, functionName string) (*LambdaTransport, error) {
	name := strings.TrimSpace(functionName)
	if name == "" {
		return nil, fmt.Errorf("%w: CLINIC_API_FUNCTION_NAME is required", contractx.ErrConfig)
	}
	return &LambdaTransport{api: lambda.NewFromConfig(cfg), functionName: name}, nil
}

func (t *LambdaTransport) Do(ctx context.Context, r Request) (json.RawMessage, error) {
	event := events.APIGatewayProxyRequest{
		Resource:   r.Path,
		Path:       r.Path,
		HTTPMethod: r.Method,
		Headers: map[string]string{
			"content-type": "application/json",
			"accept":       "application/json",
		},
		QueryStringParameters: r.Query,
	}
	if event.QueryStringParameters == nil {
		event.QueryStringParameters = map[string]string{}
	}
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal clinic api body: %w", err)
		}
		event.Body = string(payload)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal api gateway event: %w", err)
	}

	logger := zerolog.Ctx(ctx)
	logger.Debug().
		Str("method", r.Method).
		Str("path", r.Path).
		Bool("has_body", r.Body != nil).
		Msg("clinic lambda invoke")

	out, err := t.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(t.functionName),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", t.functionName, err)
	}

	logger.Debug().
		Int32("status", out.StatusCode).
		Int("payload_bytes", len(out.Payload)).
		Msg("clinic lambda response")

	if out.FunctionError != nil {
		return nil, &UpstreamError{
			Status: http.StatusBadGateway,
			Body:   truncate(aws.ToString(out.FunctionError)+": "+string(out.Payload), maxErrorBodyChars),
		}
	}

	raw := bytes.TrimSpace(out.Payload)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &UpstreamError{Status: http.StatusBadGateway, Body: truncate("invalid lambda payload: "+string(raw), maxErrorBodyChars)}
	}
	return env.decode()
}

// envelope is the API Gateway proxy response. Body may be a JSON string or
// an inline JSON value.
type envelope struct {
	StatusCode *int            `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

func (e envelope) decode() (json.RawMessage, error) {
	status := http.StatusInternalServerError
	if e.StatusCode != nil {
		status = *e.StatusCode
	}

	body := bytes.TrimSpace(e.Body)
	if len(body) > 0 && body[0] == '"' {
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, &UpstreamError{Status: status, Body: truncate(string(body), maxErrorBodyChars)}
		}
		body = bytes.TrimSpace([]byte(s))
		if !json.Valid(body) {
			return nil, &UpstreamError{Status: status, Body: truncate("non-JSON string body: "+s, maxErrorBodyChars)}
		}
	}

	if status >= http.StatusBadRequest {
		return nil, &UpstreamError{Status: status, Body: truncate(string(body), maxErrorBodyChars)}
	}
	return objectBody(status, body)
}

// objectBody accepts an empty body as {} and rejects anything that is not a
// JSON object.
func objectBody(status int, raw []byte) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return json.RawMessage("{}"), nil
	}
	if raw[0] != '{' || !json.Valid(raw) {
		return nil, &UpstreamError{Status: status, Body: truncate("unexpected body: "+string(raw), maxErrorBodyChars)}
	}
	return json.RawMessage(raw), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
