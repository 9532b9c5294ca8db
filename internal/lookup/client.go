// Package lookup provides the synchronous client for the collaborating
// patient and user services.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/betteru/pharma-ops/pkg/circuitbreaker"
)

// ErrInvalidPatient indicates that either the patient or the user record is
// missing upstream.
var ErrInvalidPatient = errors.New("invalid patient")

// Patient is the medical record returned by the patient service.
type Patient struct {
	PatientID      int64  `json:"patient_id"`
	MedicalHistory string `json:"medical_history"`
	SSN            string `json:"ssn"`
}

// User is the identity record returned by the user service.
type User struct {
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Profile joins the patient and user records for one person.
type Profile struct {
	PatientID      int64  `json:"patient_id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	MedicalHistory string `json:"medical_history"`
	SSN            string `json:"ssn"`
}

// Client calls the lookup service. All requests pass through one circuit
// breaker; the service is a single collaborator behind both endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient creates a lookup client.
func NewClient(baseURL string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker, err := circuitbreaker.New(circuitbreaker.DefaultConfig("lookup-service"), logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		breaker: breaker,
		logger:  logger,
	}, nil
}

// GetPatient fetches the patient record by identifier. A nil record with a
// nil error means no match.
func (c *Client) GetPatient(ctx context.Context, patientID string) (*Patient, error) {
	var envelope struct {
		Patients []Patient `json:"patients"`
	}
	if err := c.get(ctx, "/patients", "patient_id", patientID, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Patients) == 0 {
		return nil, nil
	}
	return &envelope.Patients[0], nil
}

// GetUser fetches the user record by identifier. A nil record with a nil
// error means no match.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var envelope struct {
		Users []User `json:"users"`
	}
	if err := c.get(ctx, "/users", "user_id", userID, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Users) == 0 {
		return nil, nil
	}
	return &envelope.Users[0], nil
}

// Profile joins the patient and user records. A missing record on either
// side is ErrInvalidPatient.
func (c *Client) Profile(ctx context.Context, patientID string) (*Profile, error) {
	patient, err := c.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	user, err := c.GetUser(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient == nil || user == nil {
		return nil, ErrInvalidPatient
	}

	return &Profile{
		PatientID:      patient.PatientID,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		MedicalHistory: patient.MedicalHistory,
		SSN:            patient.SSN,
	}, nil
}

func (c *Client) get(ctx context.Context, path, param, value string, out interface{}) error {
	u := fmt.Sprintf("%s%s?%s=%s", c.baseURL, path, param, url.QueryEscape(value))

	_, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("lookup service returned %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode lookup response: %w", err)
		}
		return nil, nil
	})
	return err
}
