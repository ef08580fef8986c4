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

type clinicRepository interface {
	FindByID(ctx context.Context, id string) (*models.Clinic, error)
	ListActive(ctx context.Context) ([]models.Clinic, error)
	Create(ctx context.Context, clinic *models.Clinic) error
	Update(ctx context.Context, clinic *models.Clinic) error
}

// ClinicRequest is the create/update payload for clinics.
type ClinicRequest struct {
	Name        string `json:"name" validate:"required"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	OpeningTime string `json:"opening_time" validate:"omitempty,datetime=15:04"`
	ClosingTime string `json:"closing_time" validate:"omitempty,datetime=15:04"`
	Active      *bool  `json:"active"`
}

// ClinicService manages clinic profiles.
type ClinicService struct {
	repo      clinicRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClinicService constructs a ClinicService.
func NewClinicService(repo clinicRepository, validate *validator.Validate, logger *zap.Logger) *ClinicService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClinicService{repo: repo, validator: validate, logger: logger}
}

// List returns all active clinics.
func (s *ClinicService) List(ctx context.Context) ([]models.Clinic, error) {
	clinics, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clinics")
	}
	return clinics, nil
}

// Get returns a clinic by ID.
func (s *ClinicService) Get(ctx context.Context, id string) (*models.Clinic, error) {
	clinic, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clinic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clinic")
	}
	return clinic, nil
}

// Create stores a new clinic.
func (s *ClinicService) Create(ctx context.Context, req ClinicRequest) (*models.Clinic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clinic payload")
	}

	clinic := &models.Clinic{
		Name:        req.Name,
		Address:     req.Address,
		Phone:       req.Phone,
		OpeningTime: req.OpeningTime,
		ClosingTime: req.ClosingTime,
		Active:      true,
	}
	if req.Active != nil {
		clinic.Active = *req.Active
	}
	if err := s.repo.Create(ctx, clinic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create clinic")
	}
	return clinic, nil
}

// Update modifies clinic profile fields.
func (s *ClinicService) Update(ctx context.Context, id string, req ClinicRequest) (*models.Clinic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clinic payload")
	}

	clinic, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	clinic.Name = req.Name
	clinic.Address = req.Address
	clinic.Phone = req.Phone
	clinic.OpeningTime = req.OpeningTime
	clinic.ClosingTime = req.ClosingTime
	if req.Active != nil {
		clinic.Active = *req.Active
	}

	if err := s.repo.Update(ctx, clinic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update clinic")
	}
	return clinic, nil
}
