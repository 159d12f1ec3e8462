package reputation

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opennirman/nirmanwatch/internal/database"
	"github.com/opennirman/nirmanwatch/internal/scoring"
)

func newTestService(t *testing.T) (*Service, *database.Repository) {
	t.Helper()

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := database.NewRepository(db)
	return NewService(repo), repo
}

func seedUser(t *testing.T, repo *database.Repository, id string, role database.Role) {
	t.Helper()

	now := time.Now()
	require.NoError(t, repo.CreateUser(&database.User{
		ID:        id,
		Name:      "Test " + id,
		Email:     id + "@example.com",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func seedContract(t *testing.T, repo *database.Repository, id, contractorID string, status database.ContractStatus, completedAt *time.Time, lifespanYears float64) {
	t.Helper()

	require.NoError(t, repo.CreateContract(&database.Contract{
		ID:                    id,
		Title:                 "Road upgrade " + id,
		ContractorID:          contractorID,
		Status:                status,
		CompletedAt:           completedAt,
		ExpectedLifespanYears: lifespanYears,
		CreatedAt:             time.Now(),
	}))
}

func seedRating(t *testing.T, repo *database.Repository, contractorID string, overall float64) {
	t.Helper()

	require.NoError(t, repo.WithTx(func(tx *sql.Tx) error {
		return repo.UpsertRatingTx(tx, &database.ContractorRating{
			ContractorID:   contractorID,
			OverallRating:  overall,
			IsBelowMinimum: overall < scoring.MinimumRating,
			LastUpdated:    time.Now(),
		})
	}))
}

func TestSubmitComplaintWithoutGPS(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-1", database.RoleContractor)
	seedRating(t, repo, "con-1", 4.0)

	result, err := svc.SubmitComplaint(ComplaintRequest{
		Text:         "This is a terrible and unsafe situation",
		Email:        "citizen@example.com",
		ContractorID: "con-1",
	})
	require.NoError(t, err)

	assert.Equal(t, scoring.FlagPendingReview, result.Flag)
	assert.False(t, result.HasGPS)
	assert.Equal(t, "No GPS data in image", result.FlagReason)
	assert.Nil(t, result.Distance)

	// Pending complaints must not touch the live rating.
	rating, err := repo.GetContractorRating("con-1")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, rating.OverallRating, 1e-9)
}

func TestSubmitComplaintVerifiedUpdatesRating(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-2", database.RoleContractor)
	seedRating(t, repo, "con-2", 4.0)

	lat := scoring.DefaultProjectLatitude
	lon := scoring.DefaultProjectLongitude

	result, err := svc.SubmitComplaint(ComplaintRequest{
		Text:         "This is a terrible and unsafe situation",
		Email:        "citizen@example.com",
		ContractorID: "con-2",
		Latitude:     &lat,
		Longitude:    &lon,
	})
	require.NoError(t, err)

	assert.Equal(t, scoring.FlagVerified, result.Flag)
	assert.True(t, result.LocationVerified)
	assert.Equal(t, "All checks passed", result.FlagReason)
	require.NotNil(t, result.Distance)
	assert.InDelta(t, 0.0, *result.Distance, 0.01)

	// Mild negative sentiment: impact -0.1, 0.9*4.0 - 0.1 = 3.5.
	assert.InDelta(t, 3.5, result.Rating, 1e-9)

	rating, err := repo.GetContractorRating("con-2")
	require.NoError(t, err)
	assert.InDelta(t, 3.5, rating.OverallRating, 1e-9)
	assert.True(t, rating.IsBelowMinimum)

	progress, err := repo.GetContractorProgress("con-2")
	require.NoError(t, err)
	assert.True(t, progress.IsSuspended)
	assert.False(t, progress.CanBidMedium)
	require.NotNil(t, progress.SuspendedReason)
	assert.Equal(t, scoring.SuspendedReason, *progress.SuspendedReason)
}

func TestSubmitComplaintRejectedWhenTooFar(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-3", database.RoleContractor)
	seedRating(t, repo, "con-3", 4.2)

	lat := 27.8000
	lon := 85.6000

	result, err := svc.SubmitComplaint(ComplaintRequest{
		Text:         "Broken road surface",
		Email:        "citizen@example.com",
		ContractorID: "con-3",
		Latitude:     &lat,
		Longitude:    &lon,
	})
	require.NoError(t, err)

	assert.Equal(t, scoring.FlagRejected, result.Flag)
	assert.False(t, result.LocationVerified)
	assert.Contains(t, result.FlagReason, "from project site")

	rating, err := repo.GetContractorRating("con-3")
	require.NoError(t, err)
	assert.InDelta(t, 4.2, rating.OverallRating, 1e-9)
}

func TestSubmitComplaintUnknownContractor(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SubmitComplaint(ComplaintRequest{
		Text:         "bad work",
		Email:        "citizen@example.com",
		ContractorID: "missing",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSubmitComplaintSeedsDefaultRating(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-new", database.RoleContractor)

	_, err := svc.SubmitComplaint(ComplaintRequest{
		Text:         "some remark",
		Email:        "citizen@example.com",
		ContractorID: "con-new",
	})
	require.NoError(t, err)

	rating, err := repo.GetContractorRating("con-new")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, rating.OverallRating, 1e-9)
}

func TestSubmitCitizenRatingValidation(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-4", database.RoleContractor)
	seedUser(t, repo, "cit-1", database.RoleCitizen)
	completed := time.Now().AddDate(0, -6, 0)
	seedContract(t, repo, "contract-done", "con-4", database.ContractCompleted, &completed, 5)
	seedContract(t, repo, "contract-active", "con-4", database.ContractActive, nil, 5)
	seedRating(t, repo, "con-4", 4.5)

	proof := "https://example.com/proof.jpg"

	tests := []struct {
		name    string
		req     CitizenRatingRequest
		wantErr string
	}{
		{
			name: "active contract cannot be rated",
			req: CitizenRatingRequest{
				ContractID: "contract-active", ContractorID: "con-4",
				CitizenID: "cit-1", Rating: 4.0,
			},
			wantErr: "Can only rate completed contracts",
		},
		{
			name: "low rating without proof",
			req: CitizenRatingRequest{
				ContractID: "contract-done", ContractorID: "con-4",
				CitizenID: "cit-1", Rating: 2.5,
			},
			wantErr: "Proof is required for negative ratings",
		},
		{
			name: "rating out of range",
			req: CitizenRatingRequest{
				ContractID: "contract-done", ContractorID: "con-4",
				CitizenID: "cit-1", Rating: 5.5, ProofURL: &proof,
			},
			wantErr: "between 0 and 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitCitizenRating(tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSubmitCitizenRatingAsymmetricLoss(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-5", database.RoleContractor)
	seedUser(t, repo, "cit-2", database.RoleCitizen)
	completed := time.Now().AddDate(0, -3, 0)
	seedContract(t, repo, "contract-5", "con-5", database.ContractCompleted, &completed, 5)
	seedRating(t, repo, "con-5", 4.5)

	proof := "https://example.com/crack.jpg"

	result, err := svc.SubmitCitizenRating(CitizenRatingRequest{
		ContractID:   "contract-5",
		ContractorID: "con-5",
		CitizenID:    "cit-2",
		Rating:       3.0,
		ProofURL:     &proof,
	})
	require.NoError(t, err)

	assert.InDelta(t, 4.5, result.PreviousRating, 1e-9)
	assert.InDelta(t, 3.0, result.NewRating, 1e-9)
	assert.InDelta(t, 0.0, result.PointsGained, 1e-9)
	assert.InDelta(t, 1.5, result.PointsLost, 1e-9)
	assert.True(t, result.IsBelowMinimum)

	rating, err := repo.GetContractorRating("con-5")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, rating.OverallRating, 1e-9)
	assert.InDelta(t, 1.5, rating.PointsLost, 1e-9)

	// A second rating from the same citizen on the same contract is rejected.
	_, err = svc.SubmitCitizenRating(CitizenRatingRequest{
		ContractID:   "contract-5",
		ContractorID: "con-5",
		CitizenID:    "cit-2",
		Rating:       4.0,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already been rated")
}

func TestSubmitCitizenRatingHalfGain(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-6", database.RoleContractor)
	seedUser(t, repo, "cit-3", database.RoleCitizen)
	completed := time.Now().AddDate(-1, 0, 0)
	seedContract(t, repo, "contract-6", "con-6", database.ContractCompleted, &completed, 5)
	seedRating(t, repo, "con-6", 4.0)

	result, err := svc.SubmitCitizenRating(CitizenRatingRequest{
		ContractID:   "contract-6",
		ContractorID: "con-6",
		CitizenID:    "cit-3",
		Rating:       5.0,
	})
	require.NoError(t, err)

	// diff = +1.0, gain = 0.5, new = 4.5.
	assert.InDelta(t, 4.5, result.NewRating, 1e-9)
	assert.InDelta(t, 0.5, result.PointsGained, 1e-9)
	assert.InDelta(t, 0.0, result.PointsLost, 1e-9)
}

func TestSubmitIssueReportRequiresPhotosForFault(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-7", database.RoleContractor)
	seedUser(t, repo, "cit-4", database.RoleCitizen)
	seedContract(t, repo, "contract-7", "con-7", database.ContractActive, nil, 5)
	seedRating(t, repo, "con-7", 4.0)

	_, err := svc.SubmitIssueReport(IssueReportRequest{
		ContractID:   "contract-7",
		ContractorID: "con-7",
		CitizenID:    "cit-4",
		Title:        "Cracked surface",
		Category:     scoring.IssueContractorFault,
		Severity:     scoring.SeverityHigh,
		IssueDate:    time.Now(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Photos are required")
}

func TestSubmitIssueReportRequiresIssueDate(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-7", database.RoleContractor)
	seedUser(t, repo, "cit-4", database.RoleCitizen)
	seedContract(t, repo, "contract-7", "con-7", database.ContractActive, nil, 5)
	seedRating(t, repo, "con-7", 4.0)

	_, err := svc.SubmitIssueReport(IssueReportRequest{
		ContractID:   "contract-7",
		ContractorID: "con-7",
		CitizenID:    "cit-4",
		Title:        "Cracked surface",
		Category:     scoring.IssueContractorFault,
		Severity:     scoring.SeverityHigh,
		Photos:       []string{"/uploads/issues/crack.jpg"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Issue date is required")
}

func TestSubmitIssueReportNaturalDisasterQueuesForgiveness(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-8", database.RoleContractor)
	seedUser(t, repo, "cit-5", database.RoleCitizen)
	seedContract(t, repo, "contract-8", "con-8", database.ContractCompleted, nil, 5)
	seedRating(t, repo, "con-8", 4.2)

	result, err := svc.SubmitIssueReport(IssueReportRequest{
		ContractID:   "contract-8",
		ContractorID: "con-8",
		CitizenID:    "cit-5",
		Title:        "Flood damage to embankment",
		Category:     scoring.IssueNaturalDisaster,
		Severity:     scoring.SeverityCritical,
		IssueDate:    time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, database.IssuePending, result.Status)
	assert.InDelta(t, 0.0, result.Penalty, 1e-9)
	assert.True(t, result.Report.IsForgivenessRequest)

	rating, err := repo.GetContractorRating("con-8")
	require.NoError(t, err)
	assert.InDelta(t, 4.2, rating.OverallRating, 1e-9)
}

func TestSubmitIssueReportContractorFaultPenalty(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-9", database.RoleContractor)
	seedUser(t, repo, "cit-6", database.RoleCitizen)
	// Completed 200 days ago with a 1 year expected lifespan: past the 50%
	// point, so the critical penalty applies once without doubling.
	completed := time.Now().AddDate(0, 0, -200)
	seedContract(t, repo, "contract-9", "con-9", database.ContractCompleted, &completed, 1)
	seedRating(t, repo, "con-9", 4.5)

	result, err := svc.SubmitIssueReport(IssueReportRequest{
		ContractID:   "contract-9",
		ContractorID: "con-9",
		CitizenID:    "cit-6",
		Title:        "Surface failure",
		Category:     scoring.IssueContractorFault,
		Severity:     scoring.SeverityCritical,
		IssueDate:    time.Now(),
		Photos:       []string{"/uploads/issues/failure.jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, database.IssueUnderReview, result.Status)
	assert.InDelta(t, 2.0, result.Penalty, 1e-9)

	rating, err := repo.GetContractorRating("con-9")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, rating.OverallRating, 1e-9)
	assert.InDelta(t, 2.0, rating.PointsLost, 1e-9)
	assert.True(t, rating.IsBelowMinimum)
}

func TestSubmitIssueReportEarlyFailureDoublesPenalty(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-10", database.RoleContractor)
	seedUser(t, repo, "cit-7", database.RoleCitizen)
	// Completed 100 days ago with a 1 year lifespan: before the 50% point.
	completed := time.Now().AddDate(0, 0, -100)
	seedContract(t, repo, "contract-10", "con-10", database.ContractCompleted, &completed, 1)
	seedRating(t, repo, "con-10", 5.0)

	result, err := svc.SubmitIssueReport(IssueReportRequest{
		ContractID:   "contract-10",
		ContractorID: "con-10",
		CitizenID:    "cit-7",
		Title:        "Potholes across the whole stretch",
		Category:     scoring.IssueContractorFault,
		Severity:     scoring.SeverityMedium,
		IssueDate:    time.Now(),
		Photos:       []string{"/uploads/issues/potholes.jpg"},
	})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, result.Penalty, 1e-9)

	rating, err := repo.GetContractorRating("con-10")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, rating.OverallRating, 1e-9)
}

func TestReviewForgiveness(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-11", database.RoleContractor)
	seedUser(t, repo, "cit-8", database.RoleCitizen)
	seedUser(t, repo, "gov-1", database.RoleLocalGovernment)
	seedContract(t, repo, "contract-11", "con-11", database.ContractCompleted, nil, 5)
	seedRating(t, repo, "con-11", 4.0)

	submit := func(t *testing.T) string {
		t.Helper()
		result, err := svc.SubmitIssueReport(IssueReportRequest{
			ContractID:   "contract-11",
			ContractorID: "con-11",
			CitizenID:    "cit-8",
			Title:        "Landslide damage",
			Category:     scoring.IssueNaturalDisaster,
			Severity:     scoring.SeverityHigh,
			IssueDate:    time.Now(),
		})
		require.NoError(t, err)
		return result.IssueID
	}

	t.Run("forgive leaves rating unchanged", func(t *testing.T) {
		issueID := submit(t)

		result, err := svc.ReviewForgiveness(issueID, "gov-1", true)
		require.NoError(t, err)

		assert.Equal(t, database.IssueApproved, result.Report.Status)
		assert.InDelta(t, 0.0, result.Penalty, 1e-9)

		rating, err := repo.GetContractorRating("con-11")
		require.NoError(t, err)
		assert.InDelta(t, 4.0, rating.OverallRating, 1e-9)
		assert.Equal(t, 0, rating.ForgivenessCount)
	})

	t.Run("reject applies contractor fault penalty", func(t *testing.T) {
		issueID := submit(t)

		result, err := svc.ReviewForgiveness(issueID, "gov-1", false)
		require.NoError(t, err)

		assert.Equal(t, database.IssueRejected, result.Report.Status)
		assert.InDelta(t, 1.5, result.Penalty, 1e-9)

		rating, err := repo.GetContractorRating("con-11")
		require.NoError(t, err)
		assert.InDelta(t, 2.5, rating.OverallRating, 1e-9)
		assert.Equal(t, 1, rating.ForgivenessCount)
	})

	t.Run("second review is rejected", func(t *testing.T) {
		issueID := submit(t)
		_, err := svc.ReviewForgiveness(issueID, "gov-1", true)
		require.NoError(t, err)

		_, err = svc.ReviewForgiveness(issueID, "gov-1", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already been reviewed")
	})
}

func TestReviewForgivenessRejectsContractorFault(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-12", database.RoleContractor)
	seedUser(t, repo, "cit-9", database.RoleCitizen)
	seedContract(t, repo, "contract-12", "con-12", database.ContractActive, nil, 5)
	seedRating(t, repo, "con-12", 4.0)

	result, err := svc.SubmitIssueReport(IssueReportRequest{
		ContractID:   "contract-12",
		ContractorID: "con-12",
		CitizenID:    "cit-9",
		Title:        "Bad drainage",
		Category:     scoring.IssueContractorFault,
		Severity:     scoring.SeverityLow,
		IssueDate:    time.Now(),
		Photos:       []string{"/uploads/issues/drain.jpg"},
	})
	require.NoError(t, err)

	_, err = svc.ReviewForgiveness(result.IssueID, "gov-1", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Only natural disaster issues")
}

func TestRefreshAIRating(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-13", database.RoleContractor)
	seedRating(t, repo, "con-13", 4.0)

	t.Run("read-only without sentiment", func(t *testing.T) {
		result, err := svc.RefreshAIRating("con-13", nil)
		require.NoError(t, err)

		assert.InDelta(t, 4.0, result.CurrentRating, 1e-9)
		assert.InDelta(t, 4.0, result.NewRating, 1e-9)
	})

	t.Run("strong negative sentiment decays", func(t *testing.T) {
		sentiment := -0.7
		result, err := svc.RefreshAIRating("con-13", &sentiment)
		require.NoError(t, err)

		// impact -0.5, 0.9*4.0 - 0.5 = 3.1.
		assert.InDelta(t, 4.0, result.CurrentRating, 1e-9)
		assert.InDelta(t, 3.1, result.NewRating, 1e-9)

		progress, err := repo.GetContractorProgress("con-13")
		require.NoError(t, err)
		assert.True(t, progress.IsSuspended)
	})
}

func TestSubmitQualification(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-14", database.RoleContractor)
	seedUser(t, repo, "cit-10", database.RoleCitizen)

	certURL := "https://example.com/cert.pdf"
	certNo := "NEA-2081-1234"

	result, err := svc.SubmitQualification(QualificationRequest{
		ContractorID:      "con-14",
		CertificateURL:    &certURL,
		CertificateNumber: &certNo,
		ExperienceYears:   4,
		Skills:            []string{"roads", "bridges", "drainage", "surveying", "masonry"},
	})
	require.NoError(t, err)

	// 2.0 certificate + 2.0 experience cap + 1.0 skills cap.
	assert.InDelta(t, 5.0, result.InitialRating, 1e-9)

	rating, err := repo.GetContractorRating("con-14")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, rating.OverallRating, 1e-9)
	assert.False(t, rating.IsBelowMinimum)

	progress, err := repo.GetContractorProgress("con-14")
	require.NoError(t, err)
	assert.True(t, progress.CanBidLarge)
	assert.False(t, progress.IsSuspended)

	t.Run("duplicate submission is rejected", func(t *testing.T) {
		_, err := svc.SubmitQualification(QualificationRequest{ContractorID: "con-14"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already submitted")
	})

	t.Run("non-contractor is rejected", func(t *testing.T) {
		_, err := svc.SubmitQualification(QualificationRequest{ContractorID: "cit-10"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a contractor")
	})
}

func TestVerifyChain(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-15", database.RoleContractor)
	seedRating(t, repo, "con-15", 4.0)

	empty, err := svc.VerifyChain()
	require.NoError(t, err)
	assert.False(t, empty.ChainValid)
	assert.Equal(t, 0, empty.TotalComplaints)

	lat := scoring.DefaultProjectLatitude
	lon := scoring.DefaultProjectLongitude
	_, err = svc.SubmitComplaint(ComplaintRequest{
		Text:         "poor concrete work",
		Email:        "citizen@example.com",
		ContractorID: "con-15",
		Latitude:     &lat,
		Longitude:    &lon,
	})
	require.NoError(t, err)

	verified, err := svc.VerifyChain()
	require.NoError(t, err)
	assert.True(t, verified.ChainValid)
	assert.Equal(t, 1, verified.TotalComplaints)
}

func TestComplaintHistoryStats(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "con-16", database.RoleContractor)
	seedRating(t, repo, "con-16", 4.0)

	lat := scoring.DefaultProjectLatitude
	lon := scoring.DefaultProjectLongitude

	_, err := svc.SubmitComplaint(ComplaintRequest{
		Text: "the quality is low", Email: "a@example.com",
		ContractorID: "con-16", Latitude: &lat, Longitude: &lon,
	})
	require.NoError(t, err)

	_, err = svc.SubmitComplaint(ComplaintRequest{
		Text: "workers are never on site", Email: "b@example.com",
		ContractorID: "con-16",
	})
	require.NoError(t, err)

	complaints, stats, err := svc.ComplaintHistory("con-16", 50)
	require.NoError(t, err)

	assert.Len(t, complaints, 2)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Verified)
	assert.Equal(t, 1, stats.Pending)
	assert.InDelta(t, 0.5, stats.VerificationRate, 1e-9)
}
