package domain

type Home struct {
	ID             string   `json:"id"`
	Conciergerie   string   `json:"conciergerie"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Objectives     []string `json:"objectives,omitempty"`
	Zone           string   `json:"zone,omitempty"`
	CleaningHours  float64  `json:"cleaning_hours"`
	GardeningHours float64  `json:"gardening_hours"`
	Images         []string `json:"images,omitempty"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
}

type Mission struct {
	ID               string   `json:"id"`
	HomeID           string   `json:"home_id"`
	Conciergerie     string   `json:"conciergerie"`
	Tasks            []string `json:"tasks"`
	Start            string   `json:"start" format:"date-time"`
	End              string   `json:"end" format:"date-time"`
	EmployeeID       *string  `json:"employee_id,omitempty"`
	Status           *string  `json:"status,omitempty" enum:"accepted,started,completed"`
	AllowedEmployees []string `json:"allowed_employees,omitempty"`
	EstimatedHours   float64  `json:"estimated_hours"`
	UpdatedAt        string   `json:"updated_at" format:"date-time"`
}

// Mission statuses. A mission with neither employee nor status is unassigned
// and sits in the available pool.
const (
	StatusAccepted  = "accepted"
	StatusStarted   = "started"
	StatusCompleted = "completed"
)

// StatusOf returns the mission status or "" for unassigned missions.
func (m Mission) StatusOf() string {
	if m.Status == nil {
		return ""
	}
	return *m.Status
}

// Assigned reports whether a worker currently holds the mission.
func (m Mission) Assigned() bool {
	return m.EmployeeID != nil && *m.EmployeeID != ""
}

type Employee struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	Email                 string   `json:"email"`
	Phone                 string   `json:"phone,omitempty"`
	PreferredConciergerie string   `json:"preferred_conciergerie,omitempty"`
	Approval              string   `json:"approval" enum:"pending,accepted,rejected"`
	EmailVerified         bool     `json:"email_verified"`
	VerificationCode      string   `json:"-"`
	NotifyByEmail         bool     `json:"notify_by_email"`
	Devices               []string `json:"devices,omitempty"`
	CreatedAt             string   `json:"created_at" format:"date-time"`
}

// Employee approval statuses. Only accepted workers may take missions.
const (
	ApprovalPending  = "pending"
	ApprovalAccepted = "accepted"
	ApprovalRejected = "rejected"
)

type Conciergerie struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// NotificationJob is one durable retry-queue entry: a send that failed at
// least once and is owed redelivery.
type NotificationJob struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	PayloadJSON string `json:"payload_json"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	LastAttempt string `json:"last_attempt" format:"date-time"`
	Attempts    int    `json:"attempts"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey is a worker device credential. One row per device gives the same
// employee record multi-device access.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
