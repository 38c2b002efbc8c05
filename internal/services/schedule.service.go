package services

import (
	"context"
	"errors"
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/graphcs/flexpay/internal/recurrence"
)

var (
	ErrInvalidFrequency = errors.New("invalid schedule frequency")
	// ErrScheduleTerminal is returned when updating a completed or
	// cancelled schedule.
	ErrScheduleTerminal = errors.New("schedule is in a terminal state")
)

type ScheduleRepository interface {
	Create(ctx context.Context, s *model.Schedule) (*model.Schedule, error)
	GetByID(ctx context.Context, userID, id int64) (*model.Schedule, error)
	List(ctx context.Context, userID int64) ([]*model.Schedule, error)
	Update(ctx context.Context, s *model.Schedule) (*model.Schedule, error)
	ReplaceRecipients(ctx context.Context, scheduleID int64, recipients []*model.ScheduleRecipient) error
	Delete(ctx context.Context, userID, id int64) error
}

type ScheduleService struct {
	schedules  ScheduleRepository
	recipients RecipientRepository
	now        func() time.Time
}

func NewScheduleService(schedules ScheduleRepository, recipients RecipientRepository) *ScheduleService {
	return &ScheduleService{
		schedules:  schedules,
		recipients: recipients,
		now:        time.Now,
	}
}

func (s *ScheduleService) Create(ctx context.Context, userID int64, req model.ScheduleCreateRequest) (*model.Schedule, error) {
	if !req.Frequency.Valid() {
		return nil, ErrInvalidFrequency
	}

	schedule := &model.Schedule{
		UserID:     userID,
		Name:       req.Name,
		Frequency:  req.Frequency,
		CustomDays: req.CustomDays,
		StartDate:  req.StartDate,
		Status:     model.ScheduleStatusActive,
	}
	if err := schedule.ValidateRecurrence(); err != nil {
		return nil, err
	}

	// every linked recipient must belong to the same user
	for _, link := range req.Recipients {
		if _, err := s.recipients.GetByID(ctx, userID, link.RecipientID); err != nil {
			return nil, err
		}
		schedule.Recipients = append(schedule.Recipients, &model.ScheduleRecipient{
			RecipientID: link.RecipientID,
			Amount:      link.Amount,
			Note:        link.Note,
		})
	}

	next := recurrence.NextRun(schedule.Frequency, schedule.StartDate, s.now(), customDays(schedule))
	schedule.NextRunDate = &next

	return s.schedules.Create(ctx, schedule)
}

func (s *ScheduleService) Get(ctx context.Context, userID, id int64) (*model.Schedule, error) {
	return s.schedules.GetByID(ctx, userID, id)
}

func (s *ScheduleService) List(ctx context.Context, userID int64) ([]*model.Schedule, error) {
	return s.schedules.List(ctx, userID)
}

// Update applies partial changes. Changing the recurrence definition
// (frequency, custom interval or start date) re-projects the next run
// from the new definition; pausing keeps the next run frozen, resuming
// re-projects it so missed slots are not retro-fired.
func (s *ScheduleService) Update(ctx context.Context, userID, id int64, req model.ScheduleUpdateRequest) (*model.Schedule, error) {
	schedule, err := s.schedules.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if schedule.Status == model.ScheduleStatusCompleted || schedule.Status == model.ScheduleStatusCancelled {
		return nil, ErrScheduleTerminal
	}

	if req.Name != nil {
		schedule.Name = *req.Name
	}

	recurrenceChanged := false
	if req.Frequency != nil && *req.Frequency != schedule.Frequency {
		schedule.Frequency = *req.Frequency
		if *req.Frequency != model.FrequencyCustom {
			schedule.CustomDays = nil
		}
		recurrenceChanged = true
	}
	if req.CustomDays != nil {
		schedule.CustomDays = req.CustomDays
		recurrenceChanged = true
	}
	if req.StartDate != nil {
		schedule.StartDate = *req.StartDate
		recurrenceChanged = true
	}
	if err := schedule.ValidateRecurrence(); err != nil {
		return nil, err
	}

	resumed := false
	if req.Status != nil && *req.Status != schedule.Status {
		resumed = schedule.Status == model.ScheduleStatusPaused && *req.Status == model.ScheduleStatusActive
		schedule.Status = *req.Status
	}

	switch {
	case schedule.Status == model.ScheduleStatusCancelled:
		schedule.NextRunDate = nil
	case recurrenceChanged:
		next := recurrence.NextRun(schedule.Frequency, schedule.StartDate, s.now(), customDays(schedule))
		schedule.NextRunDate = &next
	case resumed:
		ref := schedule.StartDate
		if schedule.NextRunDate != nil {
			ref = *schedule.NextRunDate
		}
		next := recurrence.NextRun(schedule.Frequency, ref, s.now(), customDays(schedule))
		schedule.NextRunDate = &next
	}

	return s.schedules.Update(ctx, schedule)
}

// ReplaceRecipients swaps the schedule's fan-out for a new set.
func (s *ScheduleService) ReplaceRecipients(ctx context.Context, userID, id int64, links []model.ScheduleRecipientRequest) (*model.Schedule, error) {
	schedule, err := s.schedules.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	recipients := make([]*model.ScheduleRecipient, 0, len(links))
	for _, link := range links {
		if _, err := s.recipients.GetByID(ctx, userID, link.RecipientID); err != nil {
			return nil, err
		}
		recipients = append(recipients, &model.ScheduleRecipient{
			RecipientID: link.RecipientID,
			Amount:      link.Amount,
			Note:        link.Note,
		})
	}

	if err := s.schedules.ReplaceRecipients(ctx, schedule.ID, recipients); err != nil {
		return nil, err
	}
	return s.schedules.GetByID(ctx, userID, id)
}

func (s *ScheduleService) Delete(ctx context.Context, userID, id int64) error {
	return s.schedules.Delete(ctx, userID, id)
}

func customDays(s *model.Schedule) int {
	if s.CustomDays == nil {
		return 0
	}
	return *s.CustomDays
}
