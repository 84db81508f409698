// Package framework holds what every service exposes to the server: its type and readiness.
package framework

import "fmt"

type (
	Type        string
	StatusState string
)

const (
	KeyStore Type = "keystore"
	Issuer   Type = "issuer"
	Metadata Type = "metadata"
	OIDC     Type = "oidc"

	StatusReady    StatusState = "ready"
	StatusNotReady StatusState = "not_ready"
)

func (t Type) String() string {
	return string(t)
}

// Status is a service's readiness as reported on /readiness.
type Status struct {
	Status  StatusState `json:"status,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (s Status) IsReady() bool {
	return s.Status == StatusReady
}

// Ready is the status of a service that can take requests.
func Ready() Status {
	return Status{Status: StatusReady}
}

// NotReady is the status of service t, with reason as the message.
func NotReady(t Type, reason string) Status {
	return Status{Status: StatusNotReady, Message: fmt.Sprintf("%s service is not ready: %s", t, reason)}
}

type Service interface {
	Type() Type
	Status() Status
}
