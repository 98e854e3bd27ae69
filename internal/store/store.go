package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"dairy-collection-backend/internal/model"
	"dairy-collection-backend/internal/parse"
	"dairy-collection-backend/internal/tenant"
)

// Domain lookup failures. Handlers map these onto each endpoint's
// response policy; they never reach the device verbatim.
var (
	ErrSocietyNotFound    = errors.New("society not found")
	ErrMachineNotFound    = errors.New("machine not found")
	ErrCorrectionNotFound = errors.New("machine correction not found")
	ErrCredentialNotSet   = errors.New("machine password not set")
	ErrChartNotFound      = errors.New("price chart not found")
	ErrChartAssigned      = errors.New("channel already has an active chart")
)

// Store defines the database operations of the device protocol layer.
// Every tenant-scoped method takes a tenant.Context; nothing here can
// query a tenant schema without one.
type Store interface {
	DB() *gorm.DB

	// Entity resolution
	FindSociety(ctx context.Context, tc tenant.Context, ref parse.SocietyRef) (*model.Society, error)
	FindMachine(ctx context.Context, tc tenant.Context, societyID uint, ref parse.MachineRef, requireActive bool) (*model.Machine, error)

	// Roster
	ListFarmers(ctx context.Context, tc tenant.Context, societyID, machineID uint) ([]model.Farmer, error)
	ListFarmersPage(ctx context.Context, tc tenant.Context, societyID, machineID uint, page int) ([]model.Farmer, error)

	// Corrections
	ActiveCorrection(ctx context.Context, tc tenant.Context, machineID uint) (*model.MachineCorrection, error)
	SaveCorrection(ctx context.Context, tc tenant.Context, machineID uint, ch parse.Channel, v parse.CorrectionValues, now time.Time) error
	ReplaceCorrection(ctx context.Context, tc tenant.Context, machineID uint, ch parse.Channel, v parse.CorrectionValues, now time.Time) error
	InvalidateCorrections(ctx context.Context, tc tenant.Context, machineID uint) error

	// Credentials
	Credential(ctx context.Context, tc tenant.Context, machineID uint, role parse.CredentialRole) (string, error)
	ClearCredential(ctx context.Context, tc tenant.Context, machineID uint, role parse.CredentialRole) error

	// Rate charts
	ActiveRateChart(ctx context.Context, tc tenant.Context, societyID uint, ch parse.Channel) (*model.RateChart, error)
	ChartPrices(ctx context.Context, tc tenant.Context, chartID uint) ([]model.RateChartPrice, error)
	RecordChartDownload(ctx context.Context, tc tenant.Context, chartID, machineID uint, now time.Time) error
	AssignRateChart(ctx context.Context, tc tenant.Context, chart *model.RateChart, replace bool) error
	ResetChartDownloads(ctx context.Context, tc tenant.Context, chartID uint) error
	PruneDownloadHistory(ctx context.Context, tc tenant.Context, cutoff time.Time) (int64, error)

	// Tenancy and subscriptions (public schema)
	ListTenants(ctx context.Context) ([]model.Tenant, error)
	UpsertSubscription(ctx context.Context, sub model.PushSubscription, targets []model.SubscriptionTarget) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionTargets(ctx context.Context, endpoint string) ([]model.SubscriptionTarget, error)
	SubscribersForMachine(ctx context.Context, tenantID, machineID uint) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// FindSociety resolves a society candidate set against the tenant schema.
// All candidates go into one OR'd query so the SQL shape stays fixed as
// new spelling variants appear.
func (s *gormStore) FindSociety(ctx context.Context, tc tenant.Context, ref parse.SocietyRef) (*model.Society, error) {
	q := s.db.WithContext(ctx).Table(tc.Table("societies")).Where("active = ?", true)
	if ref.ID > 0 {
		q = q.Where("code IN ? OR id = ?", ref.Codes, ref.ID)
	} else {
		q = q.Where("code IN ?", ref.Codes)
	}

	var soc model.Society
	if err := q.First(&soc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSocietyNotFound
		}
		return nil, err
	}
	return &soc, nil
}

// FindMachine resolves a machine candidate set, scoped to an already
// resolved society. Read operations require the machine to be active;
// device-originated writes tolerate suspended machines so terminals can
// still report against rows an admin has since disabled.
func (s *gormStore) FindMachine(ctx context.Context, tc tenant.Context, societyID uint, ref parse.MachineRef, requireActive bool) (*model.Machine, error) {
	q := s.db.WithContext(ctx).Table(tc.Table("machines")).Where("society_id = ?", societyID)
	if requireActive {
		q = q.Where("active = ?", true)
	}
	switch {
	case ref.ID > 0 && len(ref.Codes) > 0:
		q = q.Where("id = ? OR code IN ?", ref.ID, ref.Codes)
	case ref.ID > 0:
		q = q.Where("id = ?", ref.ID)
	default:
		q = q.Where("code IN ?", ref.Codes)
	}

	var m model.Machine
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMachineNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *gormStore) farmerQuery(ctx context.Context, tc tenant.Context, societyID, machineID uint) *gorm.DB {
	q := s.db.WithContext(ctx).Table(tc.Table("farmers")).
		Where("society_id = ? AND active = ?", societyID, true)
	if machineID > 0 {
		q = q.Where("machine_id IS NULL OR machine_id = ?", machineID)
	}
	return q.Order("id")
}

// ListFarmers returns every active farmer of a society that is available
// to the given machine (unbound farmers plus those bound to it).
func (s *gormStore) ListFarmers(ctx context.Context, tc tenant.Context, societyID, machineID uint) ([]model.Farmer, error) {
	var farmers []model.Farmer
	if err := s.farmerQuery(ctx, tc, societyID, machineID).Find(&farmers).Error; err != nil {
		return nil, err
	}
	return farmers, nil
}

// ListFarmersPage returns one fixed-size page of the roster. Out-of-range
// pages return an empty page, not an error.
func (s *gormStore) ListFarmersPage(ctx context.Context, tc tenant.Context, societyID, machineID uint, page int) ([]model.Farmer, error) {
	if page < 1 {
		page = 1
	}
	var farmers []model.Farmer
	err := s.farmerQuery(ctx, tc, societyID, machineID).
		Offset((page - 1) * parse.PageSize).
		Limit(parse.PageSize).
		Find(&farmers).Error
	if err != nil {
		return nil, err
	}
	return farmers, nil
}

// ListTenants returns all active tenants from the public schema.
func (s *gormStore) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	var tenants []model.Tenant
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}
