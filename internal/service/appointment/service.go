package appointment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/internal/repository"
	"github.com/jwalitptl/kiosk-api/pkg/errors"
	"github.com/jwalitptl/kiosk-api/pkg/logger"
	"github.com/jwalitptl/kiosk-api/pkg/metrics"
	"github.com/patrickmn/go-cache"
)

const (
	tierLive     = "live"
	tierFallback = "fallback"
)

type logistics struct {
	room      string
	waiting   string
	physician string
}

type Service struct {
	backend  repository.AppointmentBackend
	fallback repository.FallbackRepository
	rooms    *cache.Cache
	chain    *Chain[*model.PatientInfo]
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewService builds the resolver. A nil fallback disables the local dataset tier.
func NewService(be repository.AppointmentBackend, fallback repository.FallbackRepository, roomTTL time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	s := &Service{
		backend:  be,
		fallback: fallback,
		rooms:    cache.New(roomTTL, 2*roomTTL),
		logger:   logger,
		metrics:  metrics,
	}

	tiers := []Tier[*model.PatientInfo]{{Name: tierLive, Resolve: s.resolveLive}}
	if fallback != nil {
		tiers = append(tiers, Tier[*model.PatientInfo]{Name: tierFallback, Resolve: s.resolveFallback})
	}
	s.chain = NewChain(tiers...).Observe(func(tier string, outcome Outcome) {
		metrics.ResolutionTiers.WithLabelValues(tier, outcome.String()).Inc()
	})
	return s
}

// Resolve returns the appointment behind code, nil when there is none,
// or the live backend's error when neither tier could answer.
func (s *Service) Resolve(ctx context.Context, code string) (*model.PatientInfo, error) {
	info, found, err := s.chain.Resolve(ctx, code)
	if found {
		return info, nil
	}
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

func (s *Service) resolveLive(ctx context.Context, code string) Result[*model.PatientInfo] {
	env, err := s.backend.GetAppointment(ctx, code)
	// A backend 404 is a definitive miss and skips the fallback tier.
	if errors.Is(err, errors.ErrNotFound) {
		return NotFoundResult[*model.PatientInfo]()
	}
	if err != nil {
		return FailedResult[*model.PatientInfo](err)
	}
	if env == nil || env.Data == nil {
		return FailedResult[*model.PatientInfo](errors.NotFound("appointment payload", nil))
	}

	info := fromPayload(env.Data)
	s.enrich(ctx, info)
	return FoundResult(info)
}

func (s *Service) resolveFallback(ctx context.Context, code string) Result[*model.PatientInfo] {
	info, ok := s.fallback.FindPatient(code)
	if !ok {
		return FailedResult[*model.PatientInfo](errors.NotFound("fallback appointment", nil))
	}
	s.logger.Warn(nil, "Serving appointment from fallback data", "code", code)
	return FoundResult(info)
}

// enrich fills the room, waiting room and physician. Lookup failures only leave placeholders.
func (s *Service) enrich(ctx context.Context, info *model.PatientInfo) {
	defer info.ApplyPlaceholders()
	if info.ID == nil {
		return
	}

	key := strconv.FormatInt(*info.ID, 10)
	if cached, ok := s.rooms.Get(key); ok {
		s.metrics.RoomLookups.WithLabelValues("cached").Inc()
		applyLogistics(info, cached.(logistics))
		return
	}

	rooms, err := s.backend.RoomProgramming(ctx, *info.ID)
	if err != nil {
		s.metrics.RoomLookups.WithLabelValues("unavailable").Inc()
		s.logger.Debug("Room information unavailable", "appointment_id", key, "error", errors.RoomInfoUnavailable(err).Error())
		return
	}
	if len(rooms) == 0 {
		s.metrics.RoomLookups.WithLabelValues("empty").Inc()
		return
	}

	first := rooms[0]
	l := logistics{room: first.Salle.Numero, physician: physicianName(&first.Medecin)}
	if len(first.Salle.SalleAttentes) > 0 {
		l.waiting = first.Salle.SalleAttentes[0].Nom
	}
	s.rooms.SetDefault(key, l)
	s.metrics.RoomLookups.WithLabelValues("found").Inc()
	applyLogistics(info, l)
}

func applyLogistics(info *model.PatientInfo, l logistics) {
	info.SalleConsultation = l.room
	info.SalleAttente = l.waiting
	if info.Medecin == "" {
		info.Medecin = l.physician
	}
}

// Search looks an appointment up by patient identity and returns its validation code, or "" when nothing matches.
func (s *Service) Search(ctx context.Context, info model.PersonalInfo) (string, error) {
	birth, err := ToISODate(info.BirthDate)
	if err != nil {
		return "", errors.BadRequest("invalid birth date", err)
	}

	env, err := s.backend.CheckPersonalInfo(ctx, info.LastName, info.FirstName, birth)
	if errors.Is(err, errors.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return env.Code(), nil
}

// NotifyWaitingRoom tells the agenda the patient has arrived. Failures are logged and reported as false.
func (s *Service) NotifyWaitingRoom(ctx context.Context, code string) bool {
	if err := s.backend.SendWaitingRoom(ctx, code); err != nil {
		s.metrics.NotificationFailures.WithLabelValues("waiting_room").Inc()
		s.logger.Warn(errors.NotificationFailed(err), "Waiting room notification failed", "code", code)
		return false
	}
	return true
}

// Confirm marks the appointment as confirmed on the backend.
func (s *Service) Confirm(ctx context.Context, ref string) error {
	ok, err := s.backend.ConfirmAppointment(ctx, ref, time.Now())
	if err != nil {
		return errors.NotificationFailed(err)
	}
	if !ok {
		return errors.NotificationFailed(fmt.Errorf("backend refused confirmation of %s", ref))
	}
	return nil
}
