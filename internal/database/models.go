package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/opennirman/nirmanwatch/internal/scoring"
)

// Role identifies the kind of account interacting with the platform.
type Role string

const (
	RoleCitizen              Role = "CITIZEN"
	RoleContractor           Role = "CONTRACTOR"
	RoleLocalGovernment      Role = "LOCAL_GOVERNMENT"
	RoleProvincialGovernment Role = "PROVINCIAL_GOVERNMENT"
	RoleCentralGovernment    Role = "CENTRAL_GOVERNMENT"
)

// ContractStatus tracks a contract through its lifecycle.
type ContractStatus string

const (
	ContractActive    ContractStatus = "ACTIVE"
	ContractCompleted ContractStatus = "COMPLETED"
	ContractCancelled ContractStatus = "CANCELLED"
)

// IssueStatus tracks an issue report through review.
type IssueStatus string

const (
	IssuePending     IssueStatus = "PENDING"
	IssueUnderReview IssueStatus = "UNDER_REVIEW"
	IssueApproved    IssueStatus = "APPROVED"
	IssueRejected    IssueStatus = "REJECTED"
)

// User represents any platform account: citizen, contractor, or a
// government tier.
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Contract represents an awarded construction contract.
type Contract struct {
	ID                    string         `json:"id" db:"id"`
	Title                 string         `json:"title" db:"title"`
	ContractorID          string         `json:"contractor_id" db:"contractor_id"`
	Status                ContractStatus `json:"status" db:"status"`
	Location              string         `json:"location,omitempty" db:"location"`
	Latitude              *float64       `json:"latitude,omitempty" db:"latitude"`
	Longitude             *float64       `json:"longitude,omitempty" db:"longitude"`
	CompletedAt           *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	ExpectedLifespanYears float64        `json:"expected_lifespan_years" db:"expected_lifespan_years"`
	Budget                float64        `json:"budget" db:"budget"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`
}

// ContractorRating is the live reputation row for one contractor. The
// reputation service is the sole writer of OverallRating, PointsGained,
// PointsLost, and IsBelowMinimum.
type ContractorRating struct {
	ContractorID     string    `json:"contractor_id" db:"contractor_id"`
	OverallRating    float64   `json:"overall_rating" db:"overall_rating"`
	PlanRating       float64   `json:"plan_rating" db:"plan_rating"`
	ReportQuality    float64   `json:"report_quality" db:"report_quality"`
	PaymentHistory   float64   `json:"payment_history" db:"payment_history"`
	WorkerManagement float64   `json:"worker_management" db:"worker_management"`
	QualityOfWork    float64   `json:"quality_of_work" db:"quality_of_work"`
	DurabilityScore  float64   `json:"durability_score" db:"durability_score"`
	PointsGained     float64   `json:"points_gained" db:"points_gained"`
	PointsLost       float64   `json:"points_lost" db:"points_lost"`
	IsBelowMinimum   bool      `json:"is_below_minimum" db:"is_below_minimum"`
	ForgivenessCount int       `json:"forgiveness_count" db:"forgiveness_count"`
	LastUpdated      time.Time `json:"last_updated" db:"last_updated"`
}

// ContractorProgress is the derived bid-eligibility view, rewritten with
// every rating write.
type ContractorProgress struct {
	ContractorID    string     `json:"contractor_id" db:"contractor_id"`
	CurrentRating   float64    `json:"current_rating" db:"current_rating"`
	CanBidSmall     bool       `json:"can_bid_small" db:"can_bid_small"`
	CanBidMedium    bool       `json:"can_bid_medium" db:"can_bid_medium"`
	CanBidLarge     bool       `json:"can_bid_large" db:"can_bid_large"`
	IsSuspended     bool       `json:"is_suspended" db:"is_suspended"`
	SuspendedReason *string    `json:"suspended_reason,omitempty" db:"suspended_reason"`
	SuspendedAt     *time.Time `json:"suspended_at,omitempty" db:"suspended_at"`
	LastUpdated     time.Time  `json:"last_updated" db:"last_updated"`
}

// Complaint is the immutable audit record of one complaint submission.
type Complaint struct {
	ID               string                `json:"id" db:"id"`
	ContractorID     string                `json:"contractor_id" db:"contractor_id"`
	ContractID       *string               `json:"contract_id,omitempty" db:"contract_id"`
	Text             string                `json:"text" db:"text"`
	UserEmail        string                `json:"user_email" db:"user_email"`
	SentimentScore   float64               `json:"sentiment_score" db:"sentiment_score"`
	ComplaintType    string                `json:"complaint_type" db:"complaint_type"`
	Confidence       float64               `json:"confidence" db:"confidence"`
	GPSLatitude      *float64              `json:"gps_latitude,omitempty" db:"gps_latitude"`
	GPSLongitude     *float64              `json:"gps_longitude,omitempty" db:"gps_longitude"`
	LocationVerified bool                  `json:"location_verified" db:"location_verified"`
	DistanceMeters   *float64              `json:"distance_meters,omitempty" db:"distance_meters"`
	OldRating        float64               `json:"old_rating" db:"old_rating"`
	NewRating        float64               `json:"new_rating" db:"new_rating"`
	Status           scoring.ComplaintFlag `json:"status" db:"status"`
	CreatedAt        time.Time             `json:"created_at" db:"created_at"`
}

// CitizenRating is one citizen's star rating of a completed contract.
type CitizenRating struct {
	ID               string     `json:"id" db:"id"`
	ContractID       string     `json:"contract_id" db:"contract_id"`
	ContractorID     string     `json:"contractor_id" db:"contractor_id"`
	CitizenID        string     `json:"citizen_id" db:"citizen_id"`
	Rating           float64    `json:"rating" db:"rating"`
	QualityRating    *float64   `json:"quality_rating,omitempty" db:"quality_rating"`
	DurabilityRating *float64   `json:"durability_rating,omitempty" db:"durability_rating"`
	TimelinessRating *float64   `json:"timeliness_rating,omitempty" db:"timeliness_rating"`
	ProofURL         *string    `json:"proof_url,omitempty" db:"proof_url"`
	ProofDescription *string    `json:"proof_description,omitempty" db:"proof_description"`
	Comment          *string    `json:"comment,omitempty" db:"comment"`
	Status           string     `json:"status" db:"status"`
	ReportedAt       time.Time  `json:"reported_at" db:"reported_at"`
	IssueDate        *time.Time `json:"issue_date,omitempty" db:"issue_date"`
}

// IssueReport is a citizen-filed issue against a contract.
type IssueReport struct {
	ID                    string                `json:"id" db:"id"`
	ContractID            string                `json:"contract_id" db:"contract_id"`
	ContractorID          string                `json:"contractor_id" db:"contractor_id"`
	CitizenID             string                `json:"citizen_id" db:"citizen_id"`
	Title                 string                `json:"title" db:"title"`
	Description           string                `json:"description,omitempty" db:"description"`
	Category              scoring.IssueCategory `json:"category" db:"category"`
	Severity              scoring.Severity      `json:"severity" db:"severity"`
	IssueDate             time.Time             `json:"issue_date" db:"issue_date"`
	Location              *string               `json:"location,omitempty" db:"location"`
	Photos                *string               `json:"photos,omitempty" db:"photos"`
	Status                IssueStatus           `json:"status" db:"status"`
	IsForgivenessRequest  bool                  `json:"is_forgiveness_request" db:"is_forgiveness_request"`
	ForgivenessApproved   *bool                 `json:"forgiveness_approved,omitempty" db:"forgiveness_approved"`
	ForgivenessReviewedBy *string               `json:"forgiveness_reviewed_by,omitempty" db:"forgiveness_reviewed_by"`
	ForgivenessReviewedAt *time.Time            `json:"forgiveness_reviewed_at,omitempty" db:"forgiveness_reviewed_at"`
	CreatedAt             time.Time             `json:"created_at" db:"created_at"`
}

// Qualification is a contractor's submitted credentials; accepting it
// bootstraps the rating and progress rows.
type Qualification struct {
	ID                string     `json:"id" db:"id"`
	ContractorID      string     `json:"contractor_id" db:"contractor_id"`
	CertificateURL    *string    `json:"certificate_url,omitempty" db:"certificate_url"`
	CertificateNumber *string    `json:"certificate_number,omitempty" db:"certificate_number"`
	IssuingAuthority  *string    `json:"issuing_authority,omitempty" db:"issuing_authority"`
	Skills            *string    `json:"skills,omitempty" db:"skills"`
	ExperienceYears   float64    `json:"experience_years" db:"experience_years"`
	ExperienceDetails *string    `json:"experience_details,omitempty" db:"experience_details"`
	InitialRating     float64    `json:"initial_rating" db:"initial_rating"`
	Status            string     `json:"status" db:"status"`
	IssuedDate        *time.Time `json:"issued_date,omitempty" db:"issued_date"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// NewComplaint creates a complaint audit record with a generated ID.
func NewComplaint(contractorID string, contractID *string) *Complaint {
	return &Complaint{
		ID:           uuid.New().String(),
		ContractorID: contractorID,
		ContractID:   contractID,
		CreatedAt:    time.Now(),
	}
}

// NewCitizenRating creates a citizen rating record with a generated ID.
func NewCitizenRating(contractID, contractorID, citizenID string) *CitizenRating {
	return &CitizenRating{
		ID:           uuid.New().String(),
		ContractID:   contractID,
		ContractorID: contractorID,
		CitizenID:    citizenID,
		Status:       "PENDING",
		ReportedAt:   time.Now(),
	}
}

// NewIssueReport creates an issue report record with a generated ID.
func NewIssueReport(contractID, contractorID, citizenID string) *IssueReport {
	return &IssueReport{
		ID:           uuid.New().String(),
		ContractID:   contractID,
		ContractorID: contractorID,
		CitizenID:    citizenID,
		CreatedAt:    time.Now(),
	}
}
