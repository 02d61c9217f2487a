package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	"github.com/agendapro/agenda-api/pkg/events"
	"github.com/agendapro/agenda-api/pkg/jobs"
	"github.com/agendapro/agenda-api/pkg/mailer"
)

// Background job types.
const (
	JobAppointmentEmail = "appointment.email"
	JobAppointmentEvent = "appointment.event"
	JobERPSync          = "erp.sync"
	JobExportCleanup    = "exports.cleanup"
)

type jobQueue interface {
	Register(jobType string, h jobs.Handler)
	Enqueue(jobType string, payload interface{}) (string, error)
}

type notificationUsers interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type notificationStaff interface {
	FindByID(ctx context.Context, id string) (*models.Staff, error)
}

type appointmentSyncer interface {
	SyncAppointment(ctx context.Context, id string) error
}

// NotificationConfig selects which channels receive appointment events.
// Emails are signed with the business_name setting when Settings is set,
// BusinessName otherwise.
type NotificationConfig struct {
	BusinessName  string
	Settings      settingsProvider
	MailEnabled   bool
	EventsEnabled bool
}

// NotificationService fans appointment events out to email, the event
// stream and the ERP through the jobs queue so booking requests never wait
// on external systems.
type NotificationService struct {
	queue   jobQueue
	mail    mailer.Sender
	events  events.Publisher
	users   notificationUsers
	staff   notificationStaff
	erp     appointmentSyncer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     NotificationConfig
}

// NewNotificationService registers the job handlers on queue. erp may be nil
// when ERP synchronisation is disabled.
func NewNotificationService(queue jobQueue, mail mailer.Sender, publisher events.Publisher, users notificationUsers, staff notificationStaff, erp appointmentSyncer, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mail == nil {
		mail = mailer.Nop{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if cfg.BusinessName == "" {
		cfg.BusinessName = "AgendaPro"
	}
	s := &NotificationService{
		queue:   queue,
		mail:    mail,
		events:  publisher,
		users:   users,
		staff:   staff,
		erp:     erp,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
	queue.Register(JobAppointmentEmail, s.instrument(JobAppointmentEmail, s.sendEmail))
	queue.Register(JobAppointmentEvent, s.instrument(JobAppointmentEvent, s.publishEvent))
	if erp != nil {
		queue.Register(JobERPSync, s.instrument(JobERPSync, s.syncERP))
	}
	return s
}

// Publish schedules delivery of event on every enabled channel. Enqueue
// failures are logged and never reach the caller.
func (s *NotificationService) Publish(ctx context.Context, event dto.AppointmentEvent) {
	if s.cfg.MailEnabled {
		s.enqueue(JobAppointmentEmail, event)
	}
	if s.cfg.EventsEnabled {
		s.enqueue(JobAppointmentEvent, event)
	}
	if s.erp != nil && event.Type != dto.EventAppointmentDeleted {
		s.enqueue(JobERPSync, event.AppointmentID)
	}
}

func (s *NotificationService) enqueue(jobType string, payload interface{}) {
	if _, err := s.queue.Enqueue(jobType, payload); err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("type", jobType), zap.Error(err))
	}
}

func (s *NotificationService) instrument(jobType string, h jobs.Handler) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		err := h(ctx, job)
		s.metrics.RecordJob(jobType, err)
		return err
	}
}

func (s *NotificationService) sendEmail(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(dto.AppointmentEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	client, err := s.users.FindByID(ctx, event.ClientID)
	if err != nil {
		return fmt.Errorf("load client %s: %w", event.ClientID, err)
	}
	staffName := ""
	if member, err := s.staff.FindByID(ctx, event.StaffID); err == nil {
		staffName = member.Name
	}
	msg, ok := composeAppointmentEmail(s.businessName(ctx), event, client, staffName)
	if !ok {
		return nil
	}
	return s.mail.Send(ctx, msg)
}

func (s *NotificationService) businessName(ctx context.Context) string {
	if s.cfg.Settings == nil {
		return s.cfg.BusinessName
	}
	settings, err := s.cfg.Settings.Settings(ctx)
	if err != nil {
		s.logger.Warn("failed to load business name", zap.Error(err))
		return s.cfg.BusinessName
	}
	if name := strings.TrimSpace(settings.Name); name != "" {
		return name
	}
	return s.cfg.BusinessName
}

func (s *NotificationService) publishEvent(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(dto.AppointmentEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return s.events.Publish(ctx, event.AppointmentID, event.Type, payload)
}

func (s *NotificationService) syncERP(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	return s.erp.SyncAppointment(ctx, id)
}

// composeAppointmentEmail renders the client email for event. Events that do
// not concern the client yield false.
func composeAppointmentEmail(business string, event dto.AppointmentEvent, client *models.User, staffName string) (mailer.Message, bool) {
	var subject, lead string
	switch event.Type {
	case dto.EventAppointmentBooked:
		subject, lead = "Tu cita está confirmada", "Tu cita quedó reservada."
	case dto.EventAppointmentRescheduled:
		subject, lead = "Tu cita fue reprogramada", "Actualizamos los datos de tu cita."
	case dto.EventAppointmentCancelled:
		subject, lead = "Tu cita fue cancelada", "Tu cita fue cancelada."
	default:
		return mailer.Message{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n%s\n\n", client.FullName, lead)
	fmt.Fprintf(&b, "Fecha: %s\nHora: %s - %s\n", event.Date, event.StartTime, event.EndTime)
	if staffName != "" {
		fmt.Fprintf(&b, "Profesional: %s\n", staffName)
	}
	fmt.Fprintf(&b, "\n%s\n", business)

	return mailer.Message{
		To:      client.Email,
		Subject: fmt.Sprintf("%s - %s", business, subject),
		Text:    b.String(),
	}, true
}
