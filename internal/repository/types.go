package repository

import "time"

// ── Enumerations ──────────────────────────────────────────────────────────────

// WorkflowType is one production deliverable tracked per client.
type WorkflowType string

const (
	WorkflowTypeNamecard WorkflowType = "NAMECARD"
	WorkflowTypeNametag  WorkflowType = "NAMETAG"
	WorkflowTypeContract WorkflowType = "CONTRACT"
	WorkflowTypeEnvelope WorkflowType = "ENVELOPE"
	WorkflowTypeWebsite  WorkflowType = "WEBSITE"
	WorkflowTypeBlog     WorkflowType = "BLOG"
	WorkflowTypeMetaAds  WorkflowType = "META_ADS"
	WorkflowTypeNaverAds WorkflowType = "NAVER_ADS"
)

// AllWorkflowTypes lists every recognized production type.
var AllWorkflowTypes = []WorkflowType{
	WorkflowTypeNamecard, WorkflowTypeNametag, WorkflowTypeContract,
	WorkflowTypeEnvelope, WorkflowTypeWebsite, WorkflowTypeBlog,
	WorkflowTypeMetaAds, WorkflowTypeNaverAds,
}

// Valid reports whether t is a recognized workflow type.
func (t WorkflowType) Valid() bool {
	for _, known := range AllWorkflowTypes {
		if t == known {
			return true
		}
	}
	return false
}

// WorkflowStatus is a stage in the fixed fulfillment sequence.
type WorkflowStatus string

const (
	StatusPending        WorkflowStatus = "PENDING"
	StatusSubmitted      WorkflowStatus = "SUBMITTED"
	StatusInProgress     WorkflowStatus = "IN_PROGRESS"
	StatusDesignUploaded WorkflowStatus = "DESIGN_UPLOADED"
	StatusOrderRequested WorkflowStatus = "ORDER_REQUESTED"
	StatusOrderApproved  WorkflowStatus = "ORDER_APPROVED"
	StatusCompleted      WorkflowStatus = "COMPLETED"
	StatusShipped        WorkflowStatus = "SHIPPED"
	StatusCancelled      WorkflowStatus = "CANCELLED"
)

// AllWorkflowStatuses lists every recognized workflow status.
var AllWorkflowStatuses = []WorkflowStatus{
	StatusPending, StatusSubmitted, StatusInProgress, StatusDesignUploaded,
	StatusOrderRequested, StatusOrderApproved, StatusCompleted, StatusShipped,
	StatusCancelled,
}

// Valid reports whether s is a recognized workflow status.
func (s WorkflowStatus) Valid() bool {
	for _, known := range AllWorkflowStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the normal flow.
func (s WorkflowStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusShipped || s == StatusCancelled
}

// SubmissionStatus is the review state of a client intake.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "PENDING"
	SubmissionApproved SubmissionStatus = "APPROVED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// ContractStatus is the lifecycle state of a service contract.
type ContractStatus string

const (
	ContractPending   ContractStatus = "PENDING"
	ContractSubmitted ContractStatus = "SUBMITTED"
	ContractApproved  ContractStatus = "APPROVED"
	ContractRejected  ContractStatus = "REJECTED"
	ContractActive    ContractStatus = "ACTIVE"
	ContractExpired   ContractStatus = "EXPIRED"
	ContractCancelled ContractStatus = "CANCELLED"
)

// NotificationStatus records the outcome of one delivery attempt.
type NotificationStatus string

const (
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
	NotificationSkipped NotificationStatus = "SKIPPED"
)

// ── Domain types ──────────────────────────────────────────────────────────────

// Workflow is one production task of a given type for one client. Exactly one
// Workflow exists per (OwnerID, Type); re-approval upserts rather than
// duplicating.
type Workflow struct {
	ID             string
	OwnerID        string
	Type           WorkflowType
	Status         WorkflowStatus
	DesignURL      *string
	FinalURL       *string
	Courier        *string
	TrackingNumber *string
	RevisionNote   *string
	AdminNote      *string
	RevisionCount  int

	SubmittedAt      *time.Time
	DesignStartedAt  *time.Time
	DesignUploadedAt *time.Time
	OrderRequestedAt *time.Time
	OrderApprovedAt  *time.Time
	CompletedAt      *time.Time
	ShippedAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkflowLog is one immutable audit record. FromStatus is nil only for
// creation entries.
type WorkflowLog struct {
	ID         string
	WorkflowID string
	FromStatus *WorkflowStatus
	ToStatus   WorkflowStatus
	ChangedBy  string
	Note       *string
	CreatedAt  time.Time
}

// Submission is a client's intake record awaiting admin review.
type Submission struct {
	ID              string
	OwnerID         string
	Status          SubmissionStatus
	BrandName       string
	ContactName     *string
	ContactPhone    *string
	ContactEmail    *string
	RejectionReason *string
	ReviewedBy      *string
	ReviewedAt      *time.Time
	ChannelID       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Client holds the subject's service period and notification preferences.
type Client struct {
	ID                 string
	Name               string
	Email              *string
	MessengerID        *string
	MessengerEnabled   bool
	ServicePeriodStart *time.Time
	ServicePeriodEnd   *time.Time
	IsActive           bool
	APIToken           *string
	TokenExpiresAt     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PaymentHistory is one append-only ledger row. A nil Amount denotes a
// non-monetary extension.
type PaymentHistory struct {
	ID            string
	ClientID      string
	PaymentDate   time.Time
	Amount        *int64
	PaymentType   string
	ServiceMonths int
	Memo          *string
	CreatedAt     time.Time
}

// Contract is a service agreement with a fixed period in months.
type Contract struct {
	ID              string
	ClientID        string
	Status          ContractStatus
	ContractPeriod  int // months
	MonthlyFee      *int64
	StartDate       *time.Time
	EndDate         *time.Time
	ReviewedBy      *string
	ReviewedAt      *time.Time
	RejectionReason *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContractLog is one immutable contract audit record.
type ContractLog struct {
	ID         string
	ContractID string
	FromStatus *ContractStatus
	ToStatus   ContractStatus
	ChangedBy  string
	Note       *string
	CreatedAt  time.Time
}

// NotificationLog records one delivery attempt to one channel.
type NotificationLog struct {
	ID               string
	ClientID         string
	NotificationType string
	Channel          string
	Status           NotificationStatus
	ErrorMessage     *string
	SentAt           time.Time
}

// NotificationTargets captures where a client can be reached, resolved from
// the client row and its latest submission.
type NotificationTargets struct {
	ClientID         string
	ClientName       string
	Email            *string
	MessengerID      *string
	MessengerEnabled bool
	ChannelID        *string
}
