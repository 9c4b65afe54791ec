package server

import (
	"homecrew/internal/domain"
)

type RegisterConciergerieRequest struct {
	Name  string `json:"name" minLength:"1"`
	Email string `json:"email" format:"email"`
}

type ConciergerieResponse struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type HomeRequest struct {
	Title          string   `json:"title" minLength:"1"`
	Description    string   `json:"description,omitempty"`
	Objectives     []string `json:"objectives,omitempty"`
	Zone           string   `json:"zone,omitempty"`
	CleaningHours  float64  `json:"cleaning_hours" minimum:"0"`
	GardeningHours float64  `json:"gardening_hours" minimum:"0"`
	Images         []string `json:"images,omitempty"`
}

type HomeResponse struct {
	ID             string   `json:"id"`
	Conciergerie   string   `json:"conciergerie"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Objectives     []string `json:"objectives"`
	Zone           string   `json:"zone,omitempty"`
	CleaningHours  float64  `json:"cleaning_hours"`
	GardeningHours float64  `json:"gardening_hours"`
	Images         []string `json:"images"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

type CreateMissionRequest struct {
	HomeID           string   `json:"home_id" minLength:"1"`
	Tasks            []string `json:"tasks" minItems:"1"`
	Start            string   `json:"start" format:"date-time"`
	End              string   `json:"end" format:"date-time"`
	AllowedEmployees []string `json:"allowed_employees,omitempty"`
}

type EditMissionRequest struct {
	HomeID           *string   `json:"home_id,omitempty"`
	Tasks            []string  `json:"tasks,omitempty"`
	Start            *string   `json:"start,omitempty" format:"date-time"`
	End              *string   `json:"end,omitempty" format:"date-time"`
	AllowedEmployees *[]string `json:"allowed_employees,omitempty"`
}

type MissionResponse struct {
	ID               string   `json:"id"`
	HomeID           string   `json:"home_id"`
	Conciergerie     string   `json:"conciergerie"`
	Tasks            []string `json:"tasks"`
	Start            string   `json:"start"`
	End              string   `json:"end"`
	Status           string   `json:"status"`
	EmployeeID       string   `json:"employee_id,omitempty"`
	AllowedEmployees []string `json:"allowed_employees"`
	EstimatedHours   float64  `json:"estimated_hours"`
	TotalPoints      int      `json:"total_points"`
	PointsPerDay     float64  `json:"points_per_day"`
	UpdatedAt        string   `json:"updated_at"`
}

type RegisterEmployeeRequest struct {
	Name                  string `json:"name" minLength:"1"`
	Email                 string `json:"email" format:"email"`
	Phone                 string `json:"phone,omitempty"`
	PreferredConciergerie string `json:"preferred_conciergerie,omitempty"`
	DeviceName            string `json:"device_name,omitempty"`
}

type RegisterEmployeeResponse struct {
	Employee  EmployeeResponse `json:"employee"`
	DeviceKey string           `json:"device_key"`
}

type EmployeeResponse struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Email                 string `json:"email"`
	Phone                 string `json:"phone,omitempty"`
	PreferredConciergerie string `json:"preferred_conciergerie,omitempty"`
	Approval              string `json:"approval"`
	EmailVerified         bool   `json:"email_verified"`
	CreatedAt             string `json:"created_at"`
}

type VerifyEmployeeRequest struct {
	Code string `json:"code" minLength:"1"`
}

type ApprovalRequest struct {
	Approval string `json:"approval" enum:"pending,accepted,rejected"`
}

type AddDeviceRequest struct {
	Name string `json:"name,omitempty"`
}

type DeviceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
}

type AddDeviceResponse struct {
	Device DeviceResponse `json:"device"`
	Key    string         `json:"key"`
}

type LoadResponse struct {
	EmployeeID string  `json:"employee_id"`
	Day        string  `json:"day"`
	Points     float64 `json:"points"`
	Cap        float64 `json:"cap"`
}

type QueueJobResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	CreatedAt   string `json:"created_at"`
	LastAttempt string `json:"last_attempt"`
	Attempts    int    `json:"attempts"`
}

type QueueRunResponse struct {
	Delivered int `json:"delivered"`
	Dropped   int `json:"dropped"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id" minLength:"1"`
	Role    string `json:"role" enum:"conciergerie,employee"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	Source  string `json:"source"`
}

func homeResponse(h domain.Home) HomeResponse {
	return HomeResponse{
		ID:             h.ID,
		Conciergerie:   h.Conciergerie,
		Title:          h.Title,
		Description:    h.Description,
		Objectives:     nonNilSlice(h.Objectives),
		Zone:           h.Zone,
		CleaningHours:  h.CleaningHours,
		GardeningHours: h.GardeningHours,
		Images:         nonNilSlice(h.Images),
		CreatedAt:      h.CreatedAt,
		UpdatedAt:      h.UpdatedAt,
	}
}

func employeeResponse(e domain.Employee) EmployeeResponse {
	return EmployeeResponse{
		ID:                    e.ID,
		Name:                  e.Name,
		Email:                 e.Email,
		Phone:                 e.Phone,
		PreferredConciergerie: e.PreferredConciergerie,
		Approval:              e.Approval,
		EmailVerified:         e.EmailVerified,
		CreatedAt:             e.CreatedAt,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
