package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
)

type doctorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
	List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error)
	Create(ctx context.Context, doctor *models.Doctor) error
	Update(ctx context.Context, doctor *models.Doctor) error
}

// DoctorRequest is the create/update payload for doctors.
type DoctorRequest struct {
	ClinicID            string `json:"clinic_id" validate:"required"`
	Name                string `json:"name" validate:"required"`
	Specialty           string `json:"specialty"`
	ConsultationMinutes int    `json:"consultation_minutes" validate:"omitempty,min=5,max=120"`
	Active              *bool  `json:"active"`
}

// DoctorService manages doctor profiles. Consultation-status changes flow
// through the DelayService instead, because they trigger threshold
// propagation.
type DoctorService struct {
	repo      doctorRepository
	clinics   clinicRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDoctorService constructs a DoctorService.
func NewDoctorService(repo doctorRepository, clinics clinicRepository, validate *validator.Validate, logger *zap.Logger) *DoctorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DoctorService{repo: repo, clinics: clinics, validator: validate, logger: logger}
}

// List returns doctors matching the filter with pagination metadata.
func (s *DoctorService) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, *models.Pagination, error) {
	doctors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list doctors")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return doctors, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a doctor by ID.
func (s *DoctorService) Get(ctx context.Context, id string) (*models.Doctor, error) {
	doctor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	return doctor, nil
}

// Create stores a new doctor under an existing clinic.
func (s *DoctorService) Create(ctx context.Context, req DoctorRequest) (*models.Doctor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid doctor payload")
	}

	if _, err := s.clinics.FindByID(ctx, req.ClinicID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clinic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clinic")
	}

	doctor := &models.Doctor{
		ClinicID:            req.ClinicID,
		Name:                req.Name,
		Specialty:           req.Specialty,
		ConsultationMinutes: req.ConsultationMinutes,
		Active:              true,
	}
	if req.Active != nil {
		doctor.Active = *req.Active
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create doctor")
	}
	return doctor, nil
}

// Update modifies doctor profile fields.
func (s *DoctorService) Update(ctx context.Context, id string, req DoctorRequest) (*models.Doctor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid doctor payload")
	}

	doctor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doctor.Name = req.Name
	doctor.Specialty = req.Specialty
	doctor.ConsultationMinutes = req.ConsultationMinutes
	if req.Active != nil {
		doctor.Active = *req.Active
	}

	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update doctor")
	}
	return doctor, nil
}
