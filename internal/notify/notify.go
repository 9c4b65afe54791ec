// Package notify defines the outbound notification kinds, their typed
// payloads, and the Sender contract the engine and retry queue deliver
// through.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// Notification kinds. Each kind has exactly one payload type and one Sender
// method; Dispatch maps stored envelopes back onto the right method.
const (
	KindVerification       = "verification"
	KindEmployeeRegistered = "employee.registered"
	KindEmployeeApproved   = "employee.approved"
	KindMissionStatus      = "mission.status"
	KindMissionLate        = "mission.late"
	KindMissionAssigned    = "mission.assigned"
	KindMissionUpdated     = "mission.updated"
	KindMissionRemoved     = "mission.removed"
)

// Removal reasons carried by MissionRemovedPayload.
const (
	RemovedCancelled = "cancelled"
	RemovedDeleted   = "deleted"
	RemovedUpdated   = "updated"
)

type VerificationPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Code  string `json:"code"`
}

type EmployeeRegisteredPayload struct {
	ConciergerieEmail string `json:"conciergerie_email"`
	EmployeeName      string `json:"employee_name"`
	EmployeeEmail     string `json:"employee_email"`
}

type EmployeeApprovedPayload struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Approval string `json:"approval"`
}

type MissionStatusPayload struct {
	ConciergerieEmail string `json:"conciergerie_email"`
	MissionID         string `json:"mission_id"`
	HomeTitle         string `json:"home_title"`
	EmployeeName      string `json:"employee_name"`
	Status            string `json:"status"`
}

type MissionLatePayload struct {
	ConciergerieEmail string `json:"conciergerie_email"`
	MissionID         string `json:"mission_id"`
	HomeTitle         string `json:"home_title"`
	EmployeeName      string `json:"employee_name"`
	End               string `json:"end"`
	CompletedAt       string `json:"completed_at"`
}

type MissionAssignedPayload struct {
	Email     string `json:"email"`
	MissionID string `json:"mission_id"`
	HomeTitle string `json:"home_title"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type MissionUpdatedPayload struct {
	Email     string `json:"email"`
	MissionID string `json:"mission_id"`
	HomeTitle string `json:"home_title"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type MissionRemovedPayload struct {
	Email     string `json:"email"`
	MissionID string `json:"mission_id"`
	HomeTitle string `json:"home_title"`
	Reason    string `json:"reason" enum:"cancelled,deleted,updated"`
}

// Sender delivers one notification kind per method. Implementations must be
// safe for concurrent use; the retry queue calls them from its own loop.
type Sender interface {
	SendVerification(ctx context.Context, p VerificationPayload) error
	SendEmployeeRegistered(ctx context.Context, p EmployeeRegisteredPayload) error
	SendEmployeeApproved(ctx context.Context, p EmployeeApprovedPayload) error
	SendMissionStatus(ctx context.Context, p MissionStatusPayload) error
	SendMissionLate(ctx context.Context, p MissionLatePayload) error
	SendMissionAssigned(ctx context.Context, p MissionAssignedPayload) error
	SendMissionUpdated(ctx context.Context, p MissionUpdatedPayload) error
	SendMissionRemoved(ctx context.Context, p MissionRemovedPayload) error
}

// Encode marshals a payload for durable storage alongside its kind.
func Encode(payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode notification payload: %w", err)
	}
	return string(b), nil
}

// Dispatch decodes payloadJSON for the given kind and invokes the matching
// Sender method. Unknown kinds are an error, not a retry candidate.
func Dispatch(ctx context.Context, s Sender, kind, payloadJSON string) error {
	switch kind {
	case KindVerification:
		var p VerificationPayload
		if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
			return err
		}
		return s.SendVerification(ctx, p)
	case KindEmployeeRegistered:
		var p EmployeeRegisteredPayload
		if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
			return err
		}
		return s.SendEmployeeRegistered(ctx, p)
	case KindEmployeeApproved:
		var p EmployeeApprovedPayload
		if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
			return err
		}
		return s.SendEmployeeApproved(ctx, p)
	case KindMissionStatus:
		var p MissionStatusPayload
		if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
			return err
		}
		return s.SendMissionStatus(ctx, p)
	case KindMissionLate:
		var p MissionLatePayload
		if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
			return err
		}
		return s.SendMissionLate(ctx, p)
	case KindMissionAssigned:
		var p MissionAssignedPayload
		if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
			return err
		}
		return s.SendMissionAssigned(ctx, p)
	case KindMissionUpdated:
		var p MissionUpdatedPayload
		if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
			return err
		}
		return s.SendMissionUpdated(ctx, p)
	case KindMissionRemoved:
		var p MissionRemovedPayload
		if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
			return err
		}
		return s.SendMissionRemoved(ctx, p)
	default:
		return fmt.Errorf("unknown notification kind %s", kind)
	}
}
