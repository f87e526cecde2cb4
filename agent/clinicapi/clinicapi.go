// Package clinicapi is the client for the clinic's appointment service. It
// talks to the service over HTTP or by invoking its Lambda function with an
// API Gateway shaped event.
package clinicapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

const (
	ModeHTTP   = "http"
	ModeLambda = "lambda"
)

type Config struct {
	Mode         string        `default:"http"`
	BaseURL      string        `split_words:"true"`
	FunctionName string        `split_words:"true"`
	TenantID     string        `split_words:"true"`
	Timeout      time.Duration `split_words:"true" default:"10s"`
}

// Enabled reports whether an endpoint is configured at all.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.BaseURL) != "" || strings.TrimSpace(c.FunctionName) != ""
}

type Client struct {
	transport Transport
	tenantID  string
}

var _ contractx.DoctorDirectory = (*Client)(nil)

// New builds a client for cfg.Mode. awsCfg is only used in lambda mode.
func New(cfg Config, awsCfg aws.Config) (*Client, error) {
	tenantID := strings.TrimSpace(cfg.TenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: CLINIC_API_TENANT_ID is required", contractx.ErrConfig)
	}

	var (
		transport Transport
		err       error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", ModeHTTP:
		transport, err = NewHTTPTransport(cfg.BaseURL, cfg.Timeout)
	case ModeLambda:
		transport, err = NewLambdaTransport(awsCfg, cfg.FunctionName)
	default:
		err = fmt.Errorf("%w: unknown clinic api mode %q", contractx.ErrConfig, cfg.Mode)
	}
	if err != nil {
		return nil, err
	}
	return NewClient(transport, tenantID), nil
}

func NewClient(transport Transport, tenantID string) *Client {
	return &Client{transport: transport, tenantID: strings.TrimSpace(tenantID)}
}

type Appointment struct {
	ID          string `json:"appointmentId"`
	TenantID    string `json:"tenantId,omitempty"`
	UserID      string `json:"userId,omitempty"`
	DoctorID    string `json:"doctorId,omitempty"`
	PatientName string `json:"patientName,omitempty"`
	StartISO    string `json:"startIso,omitempty"`
	EndISO      string `json:"endIso,omitempty"`
	Status      string `json:"status,omitempty"`
}

type NewAppointment struct {
	UserID          string
	DoctorID        string
	PatientName     string
	Start           time.Time
	DurationMinutes int
}

// AvailabilityQuery filters booked slots by doctor or by user in [From, To].
type AvailabilityQuery struct {
	DoctorID string
	UserID   string
	From     time.Time
	To       time.Time
}

// ClinicFacts fetches the public clinic profile for a WhatsApp business
// number.
func (c *Client) ClinicFacts(ctx context.Context, phoneNumberID string) (contractx.Facts, error) {
	if strings.TrimSpace(phoneNumberID) == "" {
		return contractx.Facts{}, fmt.Errorf("%w: phone number id is empty", contractx.ErrValidation)
	}

	raw, err := c.transport.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/clinic",
		Query:  map[string]string{"phoneNumberId": phoneNumberID},
	})
	if err != nil {
		return contractx.Facts{}, err
	}

	var out struct {
		contractx.Facts
		Clinic *contractx.Facts `json:"clinic"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return contractx.Facts{}, decodeError("clinic", raw, err)
	}
	if out.Clinic != nil {
		return out.Clinic.Trimmed(), nil
	}
	return out.Facts.Trimmed(), nil
}

// Doctors lists the doctors of the tenant.
func (c *Client) Doctors(ctx context.Context) ([]contractx.Doctor, error) {
	raw, err := c.transport.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/clinic/doctors",
		Query:  map[string]string{"tenantId": c.tenantID},
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Doctors []contractx.Doctor `json:"doctors"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, decodeError("doctors", raw, err)
	}
	return out.Doctors, nil
}

func (c *Client) CreateAppointment(ctx context.Context, in NewAppointment) (Appointment, error) {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.DoctorID) == "" || in.Start.IsZero() {
		return Appointment{}, fmt.Errorf("%w: user, doctor and start are required", contractx.ErrValidation)
	}
	if in.DurationMinutes <= 0 {
		return Appointment{}, fmt.Errorf("%w: duration must be positive", contractx.ErrValidation)
	}

	raw, err := c.transport.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/appointments",
		Body: map[string]any{
			"tenantId":        c.tenantID,
			"userId":          in.UserID,
			"doctorId":        in.DoctorID,
			"startIso":        isoTime(in.Start),
			"durationMinutes": in.DurationMinutes,
			"patientName":     in.PatientName,
		},
	})
	if err != nil {
		return Appointment{}, err
	}
	return decodeAppointment(raw)
}

func (c *Client) Availability(ctx context.Context, q AvailabilityQuery) ([]Appointment, error) {
	query := map[string]string{
		"tenantId": c.tenantID,
		"from":     isoTime(q.From),
		"to":       isoTime(q.To),
	}
	switch {
	case strings.TrimSpace(q.DoctorID) != "":
		query["doctorId"] = q.DoctorID
	case strings.TrimSpace(q.UserID) != "":
		query["userId"] = q.UserID
	default:
		return nil, fmt.Errorf("%w: doctor or user id is required", contractx.ErrValidation)
	}

	raw, err := c.transport.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/appointments/availability",
		Query:  query,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Appointments []Appointment `json:"appointments"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, decodeError("availability", raw, err)
	}
	return out.Appointments, nil
}

func (c *Client) Reschedule(ctx context.Context, appointmentID string, start, end time.Time) (Appointment, error) {
	if strings.TrimSpace(appointmentID) == "" {
		return Appointment{}, fmt.Errorf("%w: appointment id is empty", contractx.ErrValidation)
	}
	if !end.After(start) {
		return Appointment{}, fmt.Errorf("%w: end must be after start", contractx.ErrValidation)
	}

	raw, err := c.transport.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   "/appointments/" + url.PathEscape(appointmentID),
		Body: map[string]any{
			"tenantId":    c.tenantID,
			"newStartIso": isoTime(start),
			"newEndIso":   isoTime(end),
		},
	})
	if err != nil {
		return Appointment{}, err
	}
	return decodeAppointment(raw)
}

func (c *Client) Cancel(ctx context.Context, appointmentID string) error {
	if strings.TrimSpace(appointmentID) == "" {
		return fmt.Errorf("%w: appointment id is empty", contractx.ErrValidation)
	}
	_, err := c.transport.Do(ctx, Request{
		Method: http.MethodDelete,
		Path:   "/appointments/" + url.PathEscape(appointmentID),
		Body:   map[string]any{"tenantId": c.tenantID},
	})
	return err
}

func decodeAppointment(raw json.RawMessage) (Appointment, error) {
	var out struct {
		Appointment
		Nested *Appointment `json:"appointment"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Appointment{}, decodeError("appointment", raw, err)
	}
	if out.Nested != nil {
		return *out.Nested, nil
	}
	return out.Appointment, nil
}

func decodeError(what string, raw json.RawMessage, err error) error {
	return &UpstreamError{
		Status: http.StatusOK,
		Body:   truncate(fmt.Sprintf("decode %s: %v: %s", what, err, raw), maxErrorBodyChars),
	}
}

func isoTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
