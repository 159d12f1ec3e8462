package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

// NewDB creates a new database connection with optimized pooling
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "nirmanwatch.db")

	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 25, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized with connection pooling",
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns,
		"max_lifetime", pool.maxLifetime)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS contracts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			contractor_id TEXT NOT NULL,
			status TEXT NOT NULL,
			location TEXT,
			latitude REAL,
			longitude REAL,
			completed_at DATETIME,
			expected_lifespan_years REAL DEFAULT 0,
			budget REAL DEFAULT 0,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (contractor_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS contractor_ratings (
			contractor_id TEXT PRIMARY KEY,
			overall_rating REAL NOT NULL,
			plan_rating REAL DEFAULT 0,
			report_quality REAL DEFAULT 0,
			payment_history REAL DEFAULT 0,
			worker_management REAL DEFAULT 0,
			quality_of_work REAL DEFAULT 0,
			durability_score REAL DEFAULT 0,
			points_gained REAL DEFAULT 0,
			points_lost REAL DEFAULT 0,
			is_below_minimum BOOLEAN DEFAULT FALSE,
			forgiveness_count INTEGER DEFAULT 0,
			last_updated DATETIME NOT NULL,
			FOREIGN KEY (contractor_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS contractor_progress (
			contractor_id TEXT PRIMARY KEY,
			current_rating REAL NOT NULL,
			can_bid_small BOOLEAN DEFAULT TRUE,
			can_bid_medium BOOLEAN DEFAULT FALSE,
			can_bid_large BOOLEAN DEFAULT FALSE,
			is_suspended BOOLEAN DEFAULT FALSE,
			suspended_reason TEXT,
			suspended_at DATETIME,
			last_updated DATETIME NOT NULL,
			FOREIGN KEY (contractor_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS complaints (
			id TEXT PRIMARY KEY,
			contractor_id TEXT NOT NULL,
			contract_id TEXT,
			text TEXT NOT NULL,
			user_email TEXT NOT NULL,
			sentiment_score REAL NOT NULL,
			complaint_type TEXT NOT NULL,
			confidence REAL NOT NULL,
			gps_latitude REAL,
			gps_longitude REAL,
			location_verified BOOLEAN DEFAULT FALSE,
			distance_meters REAL,
			old_rating REAL NOT NULL,
			new_rating REAL NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (contractor_id) REFERENCES users(id),
			FOREIGN KEY (contract_id) REFERENCES contracts(id)
		)`,

		`CREATE TABLE IF NOT EXISTS citizen_ratings (
			id TEXT PRIMARY KEY,
			contract_id TEXT NOT NULL,
			contractor_id TEXT NOT NULL,
			citizen_id TEXT NOT NULL,
			rating REAL NOT NULL,
			quality_rating REAL,
			durability_rating REAL,
			timeliness_rating REAL,
			proof_url TEXT,
			proof_description TEXT,
			comment TEXT,
			status TEXT NOT NULL,
			reported_at DATETIME NOT NULL,
			issue_date DATETIME,
			FOREIGN KEY (contract_id) REFERENCES contracts(id),
			FOREIGN KEY (contractor_id) REFERENCES users(id),
			FOREIGN KEY (citizen_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS issue_reports (
			id TEXT PRIMARY KEY,
			contract_id TEXT NOT NULL,
			contractor_id TEXT NOT NULL,
			citizen_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			category TEXT NOT NULL,
			severity TEXT NOT NULL,
			issue_date DATETIME NOT NULL,
			location TEXT,
			photos TEXT,
			status TEXT NOT NULL,
			is_forgiveness_request BOOLEAN DEFAULT FALSE,
			forgiveness_approved BOOLEAN,
			forgiveness_reviewed_by TEXT,
			forgiveness_reviewed_at DATETIME,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (contract_id) REFERENCES contracts(id),
			FOREIGN KEY (contractor_id) REFERENCES users(id),
			FOREIGN KEY (citizen_id) REFERENCES users(id)
		)`,

		`CREATE TABLE IF NOT EXISTS qualifications (
			id TEXT PRIMARY KEY,
			contractor_id TEXT NOT NULL UNIQUE,
			certificate_url TEXT,
			certificate_number TEXT,
			issuing_authority TEXT,
			skills TEXT,
			experience_years REAL DEFAULT 0,
			experience_details TEXT,
			initial_rating REAL NOT NULL,
			status TEXT NOT NULL,
			issued_date DATETIME,
			expiry_date DATETIME,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (contractor_id) REFERENCES users(id)
		)`,

		// Indexes for performance
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_contractor ON contracts(contractor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_complaints_contractor ON complaints(contractor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_complaints_created ON complaints(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_citizen_ratings_contractor ON citizen_ratings(contractor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_citizen_ratings_contract ON citizen_ratings(contract_id)`,
		`CREATE INDEX IF NOT EXISTS idx_issue_reports_contractor ON issue_reports(contractor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_issue_reports_status ON issue_reports(status)`,
		`CREATE INDEX IF NOT EXISTS idx_contractor_ratings_overall ON contractor_ratings(overall_rating DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements initializes frequently used prepared statements
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"get_rating": `SELECT contractor_id, overall_rating, plan_rating, report_quality,
			payment_history, worker_management, quality_of_work, durability_score,
			points_gained, points_lost, is_below_minimum, forgiveness_count, last_updated
			FROM contractor_ratings WHERE contractor_id = ?`,

		"get_progress": `SELECT contractor_id, current_rating, can_bid_small, can_bid_medium,
			can_bid_large, is_suspended, suspended_reason, suspended_at, last_updated
			FROM contractor_progress WHERE contractor_id = ?`,

		"get_user": `SELECT id, name, email, role, created_at, updated_at
			FROM users WHERE id = ?`,

		"get_user_by_email": `SELECT id, name, email, role, created_at, updated_at
			FROM users WHERE email = ?`,

		"get_contract": `SELECT id, title, contractor_id, status, location, latitude, longitude,
			completed_at, expected_lifespan_years, budget, created_at
			FROM contracts WHERE id = ?`,

		"insert_complaint": `INSERT INTO complaints (
			id, contractor_id, contract_id, text, user_email, sentiment_score,
			complaint_type, confidence, gps_latitude, gps_longitude, location_verified,
			distance_meters, old_rating, new_rating, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		"top_rated_contractors": `SELECT r.contractor_id, u.name, r.overall_rating,
			r.points_gained, r.points_lost, r.last_updated
			FROM contractor_ratings r JOIN users u ON u.id = r.contractor_id
			ORDER BY r.overall_rating DESC, u.name ASC LIMIT ?`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection and prepared statements
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}

	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
