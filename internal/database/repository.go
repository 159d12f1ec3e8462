package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opennirman/nirmanwatch/internal/resilience"
	"github.com/opennirman/nirmanwatch/internal/scoring"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Repository handles database operations
type Repository struct {
	db    *DB
	retry resilience.RetryPolicy
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db, retry: resilience.DefaultRetryPolicy()}
}

// WithTx runs fn inside a transaction, rolling back on error. The whole
// transaction is retried on lock contention.
func (r *Repository) WithTx(fn func(tx *sql.Tx) error) error {
	return r.retry.Do(context.Background(), func() error {
		return r.runTx(fn)
	})
}

func (r *Repository) runTx(fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetUserByID gets a user by ID
func (r *Repository) GetUserByID(id string) (*User, error) {
	stmt, err := r.db.GetPreparedStatement("get_user")
	if err != nil {
		return nil, err
	}

	var user User
	err = stmt.QueryRow(id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetUserByEmail gets a user by email address
func (r *Repository) GetUserByEmail(email string) (*User, error) {
	stmt, err := r.db.GetPreparedStatement("get_user_by_email")
	if err != nil {
		return nil, err
	}

	var user User
	err = stmt.QueryRow(email).Scan(
		&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

// CreateUser inserts a new user
func (r *Repository) CreateUser(user *User) error {
	_, err := r.db.Exec(`
		INSERT INTO users (id, name, email, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Name, user.Email, user.Role, user.CreatedAt, user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetContract gets a contract by ID
func (r *Repository) GetContract(id string) (*Contract, error) {
	stmt, err := r.db.GetPreparedStatement("get_contract")
	if err != nil {
		return nil, err
	}

	var c Contract
	var location sql.NullString
	err = stmt.QueryRow(id).Scan(
		&c.ID, &c.Title, &c.ContractorID, &c.Status, &location,
		&c.Latitude, &c.Longitude, &c.CompletedAt, &c.ExpectedLifespanYears,
		&c.Budget, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}

	c.Location = location.String

	return &c, nil
}

// CreateContract inserts a new contract
func (r *Repository) CreateContract(c *Contract) error {
	_, err := r.db.Exec(`
		INSERT INTO contracts (id, title, contractor_id, status, location, latitude, longitude,
			completed_at, expected_lifespan_years, budget, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Title, c.ContractorID, c.Status, c.Location, c.Latitude, c.Longitude,
		c.CompletedAt, c.ExpectedLifespanYears, c.Budget, c.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create contract: %w", err)
	}

	return nil
}

// GetContractorRating gets the current rating row for a contractor
func (r *Repository) GetContractorRating(contractorID string) (*ContractorRating, error) {
	stmt, err := r.db.GetPreparedStatement("get_rating")
	if err != nil {
		return nil, err
	}

	var rating ContractorRating
	err = stmt.QueryRow(contractorID).Scan(
		&rating.ContractorID, &rating.OverallRating, &rating.PlanRating,
		&rating.ReportQuality, &rating.PaymentHistory, &rating.WorkerManagement,
		&rating.QualityOfWork, &rating.DurabilityScore, &rating.PointsGained,
		&rating.PointsLost, &rating.IsBelowMinimum, &rating.ForgivenessCount,
		&rating.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contractor rating: %w", err)
	}

	return &rating, nil
}

// GetContractorProgress gets the bid-eligibility row for a contractor
func (r *Repository) GetContractorProgress(contractorID string) (*ContractorProgress, error) {
	stmt, err := r.db.GetPreparedStatement("get_progress")
	if err != nil {
		return nil, err
	}

	var p ContractorProgress
	err = stmt.QueryRow(contractorID).Scan(
		&p.ContractorID, &p.CurrentRating, &p.CanBidSmall, &p.CanBidMedium,
		&p.CanBidLarge, &p.IsSuspended, &p.SuspendedReason, &p.SuspendedAt,
		&p.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contractor progress: %w", err)
	}

	return &p, nil
}

// UpsertRatingTx writes the full rating row inside a transaction.
func (r *Repository) UpsertRatingTx(tx *sql.Tx, rating *ContractorRating) error {
	_, err := tx.Exec(`
		INSERT INTO contractor_ratings (
			contractor_id, overall_rating, plan_rating, report_quality, payment_history,
			worker_management, quality_of_work, durability_score, points_gained,
			points_lost, is_below_minimum, forgiveness_count, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contractor_id) DO UPDATE SET
			overall_rating = excluded.overall_rating,
			plan_rating = excluded.plan_rating,
			report_quality = excluded.report_quality,
			payment_history = excluded.payment_history,
			worker_management = excluded.worker_management,
			quality_of_work = excluded.quality_of_work,
			durability_score = excluded.durability_score,
			points_gained = excluded.points_gained,
			points_lost = excluded.points_lost,
			is_below_minimum = excluded.is_below_minimum,
			forgiveness_count = excluded.forgiveness_count,
			last_updated = excluded.last_updated
	`, rating.ContractorID, rating.OverallRating, rating.PlanRating,
		rating.ReportQuality, rating.PaymentHistory, rating.WorkerManagement,
		rating.QualityOfWork, rating.DurabilityScore, rating.PointsGained,
		rating.PointsLost, rating.IsBelowMinimum, rating.ForgivenessCount,
		rating.LastUpdated)

	if err != nil {
		return fmt.Errorf("failed to upsert contractor rating: %w", err)
	}

	return nil
}

// UpsertProgressTx rewrites the derived eligibility row inside a transaction.
func (r *Repository) UpsertProgressTx(tx *sql.Tx, p *ContractorProgress) error {
	_, err := tx.Exec(`
		INSERT INTO contractor_progress (
			contractor_id, current_rating, can_bid_small, can_bid_medium, can_bid_large,
			is_suspended, suspended_reason, suspended_at, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contractor_id) DO UPDATE SET
			current_rating = excluded.current_rating,
			can_bid_small = excluded.can_bid_small,
			can_bid_medium = excluded.can_bid_medium,
			can_bid_large = excluded.can_bid_large,
			is_suspended = excluded.is_suspended,
			suspended_reason = excluded.suspended_reason,
			suspended_at = excluded.suspended_at,
			last_updated = excluded.last_updated
	`, p.ContractorID, p.CurrentRating, p.CanBidSmall, p.CanBidMedium,
		p.CanBidLarge, p.IsSuspended, p.SuspendedReason, p.SuspendedAt, p.LastUpdated)

	if err != nil {
		return fmt.Errorf("failed to upsert contractor progress: %w", err)
	}

	return nil
}

// CreateComplaintTx inserts the complaint audit record inside a transaction,
// reusing the shared prepared statement bound to tx.
func (r *Repository) CreateComplaintTx(tx *sql.Tx, c *Complaint) error {
	stmt, err := r.db.GetPreparedStatement("insert_complaint")
	if err != nil {
		return err
	}

	_, err = tx.Stmt(stmt).Exec(
		c.ID, c.ContractorID, c.ContractID, c.Text, c.UserEmail, c.SentimentScore,
		c.ComplaintType, c.Confidence, c.GPSLatitude, c.GPSLongitude, c.LocationVerified,
		c.DistanceMeters, c.OldRating, c.NewRating, c.Status, c.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create complaint: %w", err)
	}

	return nil
}

// ListComplaints returns complaints newest first, optionally filtered by contractor.
func (r *Repository) ListComplaints(contractorID string, limit int) ([]Complaint, error) {
	query := `
		SELECT id, contractor_id, contract_id, text, user_email, sentiment_score,
			complaint_type, confidence, gps_latitude, gps_longitude, location_verified,
			distance_meters, old_rating, new_rating, status, created_at
		FROM complaints`
	args := []interface{}{}

	if contractorID != "" {
		query += ` WHERE contractor_id = ?`
		args = append(args, contractorID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	defer rows.Close()

	var complaints []Complaint
	for rows.Next() {
		var c Complaint
		if err := rows.Scan(
			&c.ID, &c.ContractorID, &c.ContractID, &c.Text, &c.UserEmail,
			&c.SentimentScore, &c.ComplaintType, &c.Confidence, &c.GPSLatitude,
			&c.GPSLongitude, &c.LocationVerified, &c.DistanceMeters, &c.OldRating,
			&c.NewRating, &c.Status, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		complaints = append(complaints, c)
	}

	return complaints, rows.Err()
}

// ComplaintRecordsForContractor projects the verification columns used by
// the aggregate statistics endpoint.
func (r *Repository) ComplaintRecordsForContractor(contractorID string) ([]scoring.ComplaintRecord, error) {
	rows, err := r.db.Query(`
		SELECT status, sentiment_score, complaint_type
		FROM complaints
		WHERE contractor_id = ?
		ORDER BY created_at ASC
	`, contractorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaint records: %w", err)
	}
	defer rows.Close()

	var records []scoring.ComplaintRecord
	for rows.Next() {
		var rec scoring.ComplaintRecord
		if err := rows.Scan(&rec.Status, &rec.SentimentScore, &rec.ComplaintType); err != nil {
			return nil, fmt.Errorf("failed to scan complaint record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountComplaintsByStatus counts complaints in a given flag state.
func (r *Repository) CountComplaintsByStatus(status scoring.ComplaintFlag) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM complaints WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count complaints: %w", err)
	}

	return count, nil
}

// CreateCitizenRatingTx inserts a citizen rating inside a transaction.
func (r *Repository) CreateCitizenRatingTx(tx *sql.Tx, cr *CitizenRating) error {
	_, err := tx.Exec(`
		INSERT INTO citizen_ratings (
			id, contract_id, contractor_id, citizen_id, rating, quality_rating,
			durability_rating, timeliness_rating, proof_url, proof_description,
			comment, status, reported_at, issue_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cr.ID, cr.ContractID, cr.ContractorID, cr.CitizenID, cr.Rating,
		cr.QualityRating, cr.DurabilityRating, cr.TimelinessRating, cr.ProofURL,
		cr.ProofDescription, cr.Comment, cr.Status, cr.ReportedAt, cr.IssueDate)

	if err != nil {
		return fmt.Errorf("failed to create citizen rating: %w", err)
	}

	return nil
}

// ListCitizenRatings returns citizen ratings for a contractor, newest first.
func (r *Repository) ListCitizenRatings(contractorID string, limit int) ([]CitizenRating, error) {
	rows, err := r.db.Query(`
		SELECT id, contract_id, contractor_id, citizen_id, rating, quality_rating,
			durability_rating, timeliness_rating, proof_url, proof_description,
			comment, status, reported_at, issue_date
		FROM citizen_ratings
		WHERE contractor_id = ?
		ORDER BY reported_at DESC
		LIMIT ?
	`, contractorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list citizen ratings: %w", err)
	}
	defer rows.Close()

	var ratings []CitizenRating
	for rows.Next() {
		var cr CitizenRating
		if err := rows.Scan(
			&cr.ID, &cr.ContractID, &cr.ContractorID, &cr.CitizenID, &cr.Rating,
			&cr.QualityRating, &cr.DurabilityRating, &cr.TimelinessRating,
			&cr.ProofURL, &cr.ProofDescription, &cr.Comment, &cr.Status,
			&cr.ReportedAt, &cr.IssueDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan citizen rating: %w", err)
		}
		ratings = append(ratings, cr)
	}

	return ratings, rows.Err()
}

// HasCitizenRated reports whether a citizen already rated a contract.
func (r *Repository) HasCitizenRated(contractID, citizenID string) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM citizen_ratings WHERE contract_id = ? AND citizen_id = ?
	`, contractID, citizenID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check existing citizen rating: %w", err)
	}

	return count > 0, nil
}

// CreateIssueReportTx inserts an issue report inside a transaction.
func (r *Repository) CreateIssueReportTx(tx *sql.Tx, ir *IssueReport) error {
	_, err := tx.Exec(`
		INSERT INTO issue_reports (
			id, contract_id, contractor_id, citizen_id, title, description,
			category, severity, issue_date, location, photos, status,
			is_forgiveness_request, forgiveness_approved, forgiveness_reviewed_by,
			forgiveness_reviewed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ir.ID, ir.ContractID, ir.ContractorID, ir.CitizenID, ir.Title, ir.Description,
		ir.Category, ir.Severity, ir.IssueDate, ir.Location, ir.Photos, ir.Status,
		ir.IsForgivenessRequest, ir.ForgivenessApproved, ir.ForgivenessReviewedBy,
		ir.ForgivenessReviewedAt, ir.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create issue report: %w", err)
	}

	return nil
}

// GetIssueReport gets an issue report by ID
func (r *Repository) GetIssueReport(id string) (*IssueReport, error) {
	var ir IssueReport
	err := r.db.QueryRow(`
		SELECT id, contract_id, contractor_id, citizen_id, title, description,
			category, severity, issue_date, location, photos, status,
			is_forgiveness_request, forgiveness_approved, forgiveness_reviewed_by,
			forgiveness_reviewed_at, created_at
		FROM issue_reports
		WHERE id = ?
	`, id).Scan(
		&ir.ID, &ir.ContractID, &ir.ContractorID, &ir.CitizenID, &ir.Title,
		&ir.Description, &ir.Category, &ir.Severity, &ir.IssueDate, &ir.Location,
		&ir.Photos, &ir.Status, &ir.IsForgivenessRequest, &ir.ForgivenessApproved,
		&ir.ForgivenessReviewedBy, &ir.ForgivenessReviewedAt, &ir.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue report: %w", err)
	}

	return &ir, nil
}

// ListIssueReports returns issue reports filtered by contractor and/or status.
func (r *Repository) ListIssueReports(contractorID string, status IssueStatus, limit int) ([]IssueReport, error) {
	query := `
		SELECT id, contract_id, contractor_id, citizen_id, title, description,
			category, severity, issue_date, location, photos, status,
			is_forgiveness_request, forgiveness_approved, forgiveness_reviewed_by,
			forgiveness_reviewed_at, created_at
		FROM issue_reports`
	conditions := []string{}
	args := []interface{}{}

	if contractorID != "" {
		conditions = append(conditions, "contractor_id = ?")
		args = append(args, contractorID)
	}
	if status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(status))
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issue reports: %w", err)
	}
	defer rows.Close()

	var reports []IssueReport
	for rows.Next() {
		var ir IssueReport
		if err := rows.Scan(
			&ir.ID, &ir.ContractID, &ir.ContractorID, &ir.CitizenID, &ir.Title,
			&ir.Description, &ir.Category, &ir.Severity, &ir.IssueDate, &ir.Location,
			&ir.Photos, &ir.Status, &ir.IsForgivenessRequest, &ir.ForgivenessApproved,
			&ir.ForgivenessReviewedBy, &ir.ForgivenessReviewedAt, &ir.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan issue report: %w", err)
		}
		reports = append(reports, ir)
	}

	return reports, rows.Err()
}

// UpdateIssueReportTx persists a reviewed issue report inside a transaction.
func (r *Repository) UpdateIssueReportTx(tx *sql.Tx, ir *IssueReport) error {
	_, err := tx.Exec(`
		UPDATE issue_reports SET
			status = ?, forgiveness_approved = ?, forgiveness_reviewed_by = ?,
			forgiveness_reviewed_at = ?
		WHERE id = ?
	`, ir.Status, ir.ForgivenessApproved, ir.ForgivenessReviewedBy,
		ir.ForgivenessReviewedAt, ir.ID)

	if err != nil {
		return fmt.Errorf("failed to update issue report: %w", err)
	}

	return nil
}

// GetQualification gets a contractor's qualification record
func (r *Repository) GetQualification(contractorID string) (*Qualification, error) {
	var q Qualification
	err := r.db.QueryRow(`
		SELECT id, contractor_id, certificate_url, certificate_number, issuing_authority,
			skills, experience_years, experience_details, initial_rating, status,
			issued_date, expiry_date, created_at
		FROM qualifications
		WHERE contractor_id = ?
	`, contractorID).Scan(
		&q.ID, &q.ContractorID, &q.CertificateURL, &q.CertificateNumber,
		&q.IssuingAuthority, &q.Skills, &q.ExperienceYears, &q.ExperienceDetails,
		&q.InitialRating, &q.Status, &q.IssuedDate, &q.ExpiryDate, &q.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get qualification: %w", err)
	}

	return &q, nil
}

// CreateQualificationTx inserts a qualification inside a transaction.
func (r *Repository) CreateQualificationTx(tx *sql.Tx, q *Qualification) error {
	_, err := tx.Exec(`
		INSERT INTO qualifications (
			id, contractor_id, certificate_url, certificate_number, issuing_authority,
			skills, experience_years, experience_details, initial_rating, status,
			issued_date, expiry_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.ID, q.ContractorID, q.CertificateURL, q.CertificateNumber, q.IssuingAuthority,
		q.Skills, q.ExperienceYears, q.ExperienceDetails, q.InitialRating, q.Status,
		q.IssuedDate, q.ExpiryDate, q.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create qualification: %w", err)
	}

	return nil
}

// TopRatedContractor is one row of the public leaderboard projection.
type TopRatedContractor struct {
	ContractorID  string    `json:"contractor_id"`
	Name          string    `json:"name"`
	OverallRating float64   `json:"overall_rating"`
	PointsGained  float64   `json:"points_gained"`
	PointsLost    float64   `json:"points_lost"`
	LastUpdated   time.Time `json:"last_updated"`
}

// TopRatedContractors returns contractors ordered by overall rating.
func (r *Repository) TopRatedContractors(limit int) ([]TopRatedContractor, error) {
	stmt, err := r.db.GetPreparedStatement("top_rated_contractors")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top rated contractors: %w", err)
	}
	defer rows.Close()

	var entries []TopRatedContractor
	for rows.Next() {
		var e TopRatedContractor
		if err := rows.Scan(&e.ContractorID, &e.Name, &e.OverallRating,
			&e.PointsGained, &e.PointsLost, &e.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
