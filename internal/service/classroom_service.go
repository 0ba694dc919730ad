package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

type classroomStore interface {
	Create(ctx context.Context, classroom *models.Classroom) error
	GetByID(ctx context.Context, id string) (*models.Classroom, error)
	GetByCode(ctx context.Context, code string) (*models.Classroom, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Classroom, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	UpdateSettings(ctx context.Context, id string, settings models.ClassroomSettings) error
}

type rosterStore interface {
	ListByClassroom(ctx context.Context, classroomID string) ([]models.StudentWithBalance, error)
	Deactivate(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.Student, error)
}

type rewardSeeder interface {
	SeedRewards(ctx context.Context, classroomID string, types []models.StreakType) error
}

type rateSeeder interface {
	CreateRate(ctx context.Context, rate *models.SavingsRate) error
}

// codeAlphabet avoids ambiguous characters in classroom join codes.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// defaultSavingsTiers are offered by every new classroom until the teacher
// edits them.
var defaultSavingsTiers = []models.SavingsRate{
	{LockDays: 7, InterestRate: 5, MinAmount: 50},
	{LockDays: 30, InterestRate: 12, MinAmount: 100},
	{LockDays: 90, InterestRate: 25, MinAmount: 200, BonusRate: 4, BonusThreshold: int64Ptr(1000)},
}

func int64Ptr(v int64) *int64 { return &v }

// ClassroomService manages classroom lifecycle: creation with join code,
// treasury sizing, reward and savings tier seeding, settings and roster.
type ClassroomService struct {
	classrooms classroomStore
	students   rosterStore
	rewards    rewardSeeder
	rates      rateSeeder
	logger     *zap.Logger

	defaultTreasury int64
}

// ClassroomServiceOption configures the service.
type ClassroomServiceOption func(*ClassroomService)

// WithDefaultTreasury sets the treasury size used when the teacher omits one.
func WithDefaultTreasury(total int64) ClassroomServiceOption {
	return func(s *ClassroomService) {
		if total > 0 {
			s.defaultTreasury = total
		}
	}
}

// NewClassroomService constructs a ClassroomService.
func NewClassroomService(classrooms classroomStore, students rosterStore, rewards rewardSeeder, rates rateSeeder, logger *zap.Logger, opts ...ClassroomServiceOption) *ClassroomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ClassroomService{
		classrooms:      classrooms,
		students:        students,
		rewards:         rewards,
		rates:           rates,
		logger:          logger,
		defaultTreasury: 10000,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create opens a classroom economy with a unique join code and seeds the
// default streak milestones and savings tiers.
func (s *ClassroomService) Create(ctx context.Context, teacherID string, req dto.CreateClassroomRequest) (*models.Classroom, error) {
	treasury := req.TreasuryTotal
	if treasury <= 0 {
		treasury = s.defaultTreasury
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate join code")
	}

	classroom := &models.Classroom{
		TeacherID:         teacherID,
		Name:              req.Name,
		Code:              code,
		CurrencyName:      req.CurrencyName,
		CurrencySymbol:    req.CurrencySymbol,
		TreasuryTotal:     treasury,
		TreasuryRemaining: treasury,
		Settings:          models.DefaultClassroomSettings(),
	}
	if err := s.classrooms.Create(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}

	streakTypes := []models.StreakType{
		models.StreakAttendance,
		models.StreakParticipation,
		models.StreakHomework,
		models.StreakQuiz,
		models.StreakBehavior,
	}
	if err := s.rewards.SeedRewards(ctx, classroom.ID, streakTypes); err != nil {
		s.logger.Error("failed to seed streak rewards", zap.String("classroom_id", classroom.ID), zap.Error(err))
	}
	for _, tier := range defaultSavingsTiers {
		rate := tier
		rate.ClassroomID = classroom.ID
		if err := s.rates.CreateRate(ctx, &rate); err != nil {
			s.logger.Error("failed to seed savings tier",
				zap.String("classroom_id", classroom.ID),
				zap.Int("lock_days", rate.LockDays),
				zap.Error(err))
		}
	}

	s.logger.Info("classroom created",
		zap.String("classroom_id", classroom.ID),
		zap.String("code", classroom.Code),
		zap.Int64("treasury", treasury))
	return classroom, nil
}

// Get returns a classroom the teacher owns.
func (s *ClassroomService) Get(ctx context.Context, teacherID, classroomID string) (*models.Classroom, error) {
	classroom, err := s.load(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	if classroom.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "classroom belongs to another teacher")
	}
	return classroom, nil
}

// GetForMember returns a classroom by ID without ownership checks, for
// student-facing reads.
func (s *ClassroomService) GetForMember(ctx context.Context, classroomID string) (*models.Classroom, error) {
	return s.load(ctx, classroomID)
}

// List returns the teacher's classrooms.
func (s *ClassroomService) List(ctx context.Context, teacherID string) ([]models.Classroom, error) {
	classrooms, err := s.classrooms.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	return classrooms, nil
}

// UpdateSettings replaces the classroom settings document.
func (s *ClassroomService) UpdateSettings(ctx context.Context, teacherID, classroomID string, req dto.UpdateSettingsRequest) (*models.Classroom, error) {
	classroom, err := s.Get(ctx, teacherID, classroomID)
	if err != nil {
		return nil, err
	}
	if max := req.Settings.MaxTransferAmount; max != nil && *max <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max transfer amount must be positive")
	}
	if err := s.classrooms.UpdateSettings(ctx, classroomID, req.Settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update settings")
	}
	classroom.Settings = req.Settings
	return classroom, nil
}

// Roster returns the classroom's active members with balances.
func (s *ClassroomService) Roster(ctx context.Context, classroomID string) ([]models.StudentWithBalance, error) {
	students, err := s.students.ListByClassroom(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// RemoveStudent deactivates a member. Ledger history is preserved.
func (s *ClassroomService) RemoveStudent(ctx context.Context, teacherID, classroomID, studentID string) error {
	if _, err := s.Get(ctx, teacherID, classroomID); err != nil {
		return err
	}
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ClassroomID != classroomID {
		return appErrors.Clone(appErrors.ErrForbidden, "student belongs to another classroom")
	}
	if err := s.students.Deactivate(ctx, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student")
	}
	return nil
}

func (s *ClassroomService) load(ctx context.Context, id string) (*models.Classroom, error) {
	classroom, err := s.classrooms.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return classroom, nil
}

// generateCode draws 6-character codes until one is free. The alphabet
// omits 0/O/1/I so codes survive being read aloud in a classroom.
func (s *ClassroomService) generateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := make([]byte, 6)
		for i, b := range buf {
			code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
		}
		taken, err := s.classrooms.CodeExists(ctx, string(code))
		if err != nil {
			return "", err
		}
		if !taken {
			return string(code), nil
		}
	}
	return "", fmt.Errorf("could not find a free join code")
}
