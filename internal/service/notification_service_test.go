package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendapro/agenda-api/internal/dto"
	"github.com/agendapro/agenda-api/internal/models"
	"github.com/agendapro/agenda-api/pkg/jobs"
	"github.com/agendapro/agenda-api/pkg/mailer"
)

// inlineQueue runs handlers synchronously on Enqueue.
type inlineQueue struct {
	handlers map[string]jobs.Handler
	enqueued []string
	errs     []error
}

func newInlineQueue() *inlineQueue {
	return &inlineQueue{handlers: map[string]jobs.Handler{}}
}

func (q *inlineQueue) Register(jobType string, h jobs.Handler) { q.handlers[jobType] = h }

func (q *inlineQueue) Enqueue(jobType string, payload interface{}) (string, error) {
	h, ok := q.handlers[jobType]
	if !ok {
		return "", jobs.ErrNoHandler
	}
	q.enqueued = append(q.enqueued, jobType)
	q.errs = append(q.errs, h(context.Background(), jobs.Job{ID: "job", Type: jobType, Payload: payload}))
	return "job", nil
}

type mailerStub struct {
	sent []mailer.Message
	err  error
}

func (m *mailerStub) Send(ctx context.Context, msg mailer.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

type eventsStub struct {
	keys     []string
	payloads [][]byte
}

func (e *eventsStub) Publish(ctx context.Context, key, eventType string, payload []byte) error {
	e.keys = append(e.keys, key)
	e.payloads = append(e.payloads, payload)
	return nil
}

func (e *eventsStub) Close() error { return nil }

type syncerStub struct{ ids []string }

func (s *syncerStub) SyncAppointment(ctx context.Context, id string) error {
	s.ids = append(s.ids, id)
	return nil
}

func bookedEvent() dto.AppointmentEvent {
	appt := confirmedAt("a1", testStaffID, testDate, "09:00", "10:00", clientUserID)
	return dto.NewAppointmentEvent(dto.EventAppointmentBooked, appt, clientUserID)
}

func newNotificationFixture(cfg NotificationConfig, erp appointmentSyncer) (*NotificationService, *inlineQueue, *mailerStub, *eventsStub) {
	queue := newInlineQueue()
	mail := &mailerStub{}
	stream := &eventsStub{}
	users := userReaderStub{clientUserID: {ID: clientUserID, Email: "ana@example.com", FullName: "Ana"}}
	staff := newStaffRepoStub(models.Staff{ID: testStaffID, Name: "Laura"})
	svc := NewNotificationService(queue, mail, stream, users, staff, erp, NewMetricsService(), nil, cfg)
	return svc, queue, mail, stream
}

func TestNotificationEmailUsesConfiguredBusinessName(t *testing.T) {
	settings := defaultSettings()
	settings.Name = "Barberia Norte"
	svc, _, mail, _ := newNotificationFixture(NotificationConfig{Settings: settingsStub{settings: settings}, MailEnabled: true}, nil)

	svc.Publish(context.Background(), bookedEvent())

	require.Len(t, mail.sent, 1)
	assert.Contains(t, mail.sent[0].Subject, "Barberia Norte")
}

func TestNotificationEmailFallsBackWhenSettingsFail(t *testing.T) {
	svc, _, mail, _ := newNotificationFixture(NotificationConfig{Settings: settingsStub{err: errors.New("db down")}, MailEnabled: true}, nil)

	svc.Publish(context.Background(), bookedEvent())

	require.Len(t, mail.sent, 1)
	assert.Contains(t, mail.sent[0].Subject, "AgendaPro")
}

func TestNotificationFansOutToEnabledChannels(t *testing.T) {
	erp := &syncerStub{}
	svc, queue, mail, stream := newNotificationFixture(NotificationConfig{BusinessName: "Salon Lina", MailEnabled: true, EventsEnabled: true}, erp)

	svc.Publish(context.Background(), bookedEvent())

	assert.Equal(t, []string{JobAppointmentEmail, JobAppointmentEvent, JobERPSync}, queue.enqueued)
	for _, err := range queue.errs {
		assert.NoError(t, err)
	}
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "ana@example.com", mail.sent[0].To)
	assert.Contains(t, mail.sent[0].Subject, "Salon Lina")
	assert.Contains(t, mail.sent[0].Text, "Laura")
	assert.Contains(t, mail.sent[0].Text, "09:00 - 10:00")

	require.Len(t, stream.payloads, 1)
	assert.Equal(t, "a1", stream.keys[0])
	var decoded dto.AppointmentEvent
	require.NoError(t, json.Unmarshal(stream.payloads[0], &decoded))
	assert.Equal(t, dto.EventAppointmentBooked, decoded.Type)

	assert.Equal(t, []string{"a1"}, erp.ids)
}

func TestNotificationDisabledChannels(t *testing.T) {
	svc, queue, mail, stream := newNotificationFixture(NotificationConfig{}, nil)
	svc.Publish(context.Background(), bookedEvent())
	assert.Empty(t, queue.enqueued)
	assert.Empty(t, mail.sent)
	assert.Empty(t, stream.payloads)
}

func TestNotificationSkipsDeletedForERP(t *testing.T) {
	erp := &syncerStub{}
	svc, _, _, _ := newNotificationFixture(NotificationConfig{}, erp)
	event := bookedEvent()
	event.Type = dto.EventAppointmentDeleted
	svc.Publish(context.Background(), event)
	assert.Empty(t, erp.ids)
}

func TestNotificationEmailFailureIsRetried(t *testing.T) {
	svc, queue, mail, _ := newNotificationFixture(NotificationConfig{MailEnabled: true}, nil)
	mail.err = errors.New("smtp down")

	svc.Publish(context.Background(), bookedEvent())
	require.Len(t, queue.errs, 1)
	assert.Error(t, queue.errs[0])
}

func TestComposeAppointmentEmail(t *testing.T) {
	client := &models.User{FullName: "Ana", Email: "ana@example.com"}

	event := bookedEvent()
	event.Type = dto.EventAppointmentStatus
	_, ok := composeAppointmentEmail("AgendaPro", event, client, "")
	assert.False(t, ok)

	event.Type = dto.EventAppointmentCancelled
	msg, ok := composeAppointmentEmail("AgendaPro", event, client, "")
	require.True(t, ok)
	assert.Contains(t, msg.Subject, "cancelada")
	assert.NotContains(t, msg.Text, "Profesional")
}
