package repository

import (
	"context"
	"log"

	"github.com/roadwatch/pavement/models"
)

// ReportStore is implemented by every report repository
type ReportStore interface {
	SaveReport(ctx context.Context, rep *models.StoredReport) error
	ListReports(ctx context.Context, limit int) ([]models.ReportSummary, error)
	GetReport(ctx context.Context, id string) (*models.StoredReport, error)
	Ping(ctx context.Context) error
}

// MirroredReportRepository reads from a primary store and copies every
// saved report to its mirrors. Mirror failures are logged, not returned.
type MirroredReportRepository struct {
	primary ReportStore
	mirrors []ReportStore
}

// NewMirroredReportRepository creates a repository over primary and mirrors
func NewMirroredReportRepository(primary ReportStore, mirrors ...ReportStore) *MirroredReportRepository {
	return &MirroredReportRepository{primary: primary, mirrors: mirrors}
}

// SaveReport saves to the primary, then to each mirror
func (m *MirroredReportRepository) SaveReport(ctx context.Context, rep *models.StoredReport) error {
	if err := m.primary.SaveReport(ctx, rep); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := mirror.SaveReport(ctx, rep); err != nil {
			log.Printf("Warning: failed to mirror report %s: %v", rep.ID, err)
		}
	}
	return nil
}

// ListReports reads from the primary
func (m *MirroredReportRepository) ListReports(ctx context.Context, limit int) ([]models.ReportSummary, error) {
	return m.primary.ListReports(ctx, limit)
}

// GetReport reads from the primary
func (m *MirroredReportRepository) GetReport(ctx context.Context, id string) (*models.StoredReport, error) {
	return m.primary.GetReport(ctx, id)
}

// Ping checks the primary only
func (m *MirroredReportRepository) Ping(ctx context.Context) error {
	return m.primary.Ping(ctx)
}
