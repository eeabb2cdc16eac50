package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"beleggingsmatch/internal/matching"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Provider{}, &CostTier{}, &Lead{}, &ReportJob{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// GORM exposes the raw gorm.DB handle.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_providers_type_status ON providers(type, status)",
		"CREATE INDEX IF NOT EXISTS idx_cost_tiers_dienst_bedrag ON cost_tiers(dienst_id, bedrag)",
		"CREATE INDEX IF NOT EXISTS idx_report_jobs_status_updated ON report_jobs(status, updated_at)",
		"CREATE INDEX IF NOT EXISTS idx_leads_created ON leads(created_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// UpsertProvider inserts or updates a provider keyed on dienst_id.
func (d *Database) UpsertProvider(p *Provider) error {
	if p == nil {
		return errors.New("provider is nil")
	}
	p.DienstID = strings.TrimSpace(strings.ToLower(p.DienstID))
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dienst_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "type", "status", "minimum", "stars", "tco", "scores_json", "strengths_json", "weaknesses_json", "description", "updated_at"}),
	}).Create(p).Error
}

// ReplaceProviders swaps the provider catalog and its cost tiers.
func (d *Database) ReplaceProviders(providers []Provider, tiers []CostTier) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Provider{}).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&CostTier{}).Error; err != nil {
			return err
		}
		if len(providers) > 0 {
			if err := tx.CreateInBatches(providers, 100).Error; err != nil {
				return err
			}
		}
		if len(tiers) > 0 {
			if err := tx.CreateInBatches(tiers, 250).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CountProviders returns the number of catalog entries.
func (d *Database) CountProviders() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Provider{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListProviders returns all providers ordered by dienst id.
func (d *Database) ListProviders() ([]Provider, error) {
	var rows []Provider
	if err := d.gorm.Order("dienst_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetProvider fetches a provider by dienst id.
func (d *Database) GetProvider(dienstID string) (*Provider, error) {
	var row Provider
	key := strings.TrimSpace(strings.ToLower(dienstID))
	if err := d.gorm.Where("dienst_id = ?", key).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// TCOForAmount returns the cost tier TCO for the invested amount, picking the
// highest tier whose threshold the amount reaches. Zero means no tier applies
// and the provider's headline TCO should be used.
func (d *Database) TCOForAmount(dienstID string, bedrag float64) (float64, error) {
	if bedrag <= 0 {
		return 0, nil
	}
	var tier CostTier
	err := d.gorm.Where("dienst_id = ? AND bedrag <= ?", strings.ToLower(dienstID), bedrag).
		Order("bedrag DESC").First(&tier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return tier.TCO, nil
}

// ProvidersForMatching loads the catalog as matching inputs, applying the
// amount-dependent cost tiers.
func (d *Database) ProvidersForMatching(bedrag float64) ([]matching.Provider, error) {
	rows, err := d.ListProviders()
	if err != nil {
		return nil, err
	}
	out := make([]matching.Provider, 0, len(rows))
	for i := range rows {
		tco, err := d.TCOForAmount(rows[i].DienstID, bedrag)
		if err != nil {
			return nil, err
		}
		out = append(out, rows[i].ToDomain(tco))
	}
	return out, nil
}

// SaveLead persists a captured lead.
func (d *Database) SaveLead(lead *Lead) error {
	if lead == nil {
		return errors.New("lead is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(lead).Error
}

// CountLeads returns the number of stored leads.
func (d *Database) CountLeads() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Lead{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateReportJob records a new pending report job.
func (d *Database) CreateReportJob(jobID string, prefsJSON string) (*ReportJob, error) {
	job := &ReportJob{JobID: jobID, Status: JobPending, PreferencesJSON: prefsJSON}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateReportJob updates the status, message and content of a job.
func (d *Database) UpdateReportJob(jobID, status, message, content string) error {
	updates := map[string]any{"status": status, "message": message}
	if content != "" {
		updates["content_html"] = content
	}
	if status == JobCompleted || status == JobFailed {
		now := time.Now()
		updates["finished_at"] = &now
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&ReportJob{}).Where("job_id = ?", jobID).Updates(updates).Error
}

// GetReportJob fetches a report job by its public id.
func (d *Database) GetReportJob(jobID string) (*ReportJob, error) {
	var job ReportJob
	if err := d.gorm.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}
