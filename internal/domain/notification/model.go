package notification

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/carenotify/internal/domain/vitals"
)

// Well-known categories. The set is open: vitals alerts use the alert type
// as their category.
const (
	CategoryAppointment        = "appointment"
	CategoryPrescription       = "prescription"
	CategoryMedicationReminder = "medication_reminder"
)

// Notification is one alert or informational event addressed to a user. Only
// IsRead changes after creation, and only from false to true.
type Notification struct {
	ID              uuid.UUID `db:"id" json:"id"`
	RecipientUserID uuid.UUID `db:"recipient_user_id" json:"recipient_user_id"`
	Title           string    `db:"title" json:"title"`
	Message         string    `db:"message" json:"message"`
	Category        string    `db:"category" json:"category"`
	IsRead          bool      `db:"is_read" json:"is_read"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	Payload         Payload   `db:"-" json:"-"`
}

func (n Notification) MarshalJSON() ([]byte, error) {
	type alias Notification
	return json.Marshal(struct {
		alias
		Data Payload `json:"data,omitempty"`
	}{alias: alias(n), Data: n.Payload})
}

// PushMessage is the envelope sent over a live channel.
func (n *Notification) PushMessage() map[string]interface{} {
	msg := map[string]interface{}{
		"type":              "notification",
		"id":                n.ID,
		"recipient_user_id": n.RecipientUserID,
		"title":             n.Title,
		"message":           n.Message,
		"category":          n.Category,
		"is_read":           n.IsRead,
		"created_at":        n.CreatedAt,
	}
	if n.Payload != nil {
		msg["data"] = n.Payload
	}
	return msg
}

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

type PayloadKind string

const (
	KindAppointment  PayloadKind = "appointment"
	KindPrescription PayloadKind = "prescription"
	KindVitals       PayloadKind = "vitals"
	KindReminder     PayloadKind = "reminder"
	KindGeneric      PayloadKind = "generic"
)

// Payload is the category-specific data attached to a notification.
type Payload interface {
	Kind() PayloadKind
}

type AppointmentPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Status        string    `json:"status,omitempty"`
}

func (AppointmentPayload) Kind() PayloadKind { return KindAppointment }

type PrescriptionPayload struct {
	PrescriptionID uuid.UUID  `json:"prescription_id"`
	DoctorID       *uuid.UUID `json:"doctor_id,omitempty"`
}

func (PrescriptionPayload) Kind() PayloadKind { return KindPrescription }

type VitalsPayload struct {
	VitalSigns vitals.Signs `json:"vital_signs"`
}

func (VitalsPayload) Kind() PayloadKind { return KindVitals }

type ReminderPayload struct {
	ScheduleID     uuid.UUID `json:"schedule_id"`
	MedicationName string    `json:"medication_name"`
	Dosage         string    `json:"dosage,omitempty"`
	Time           string    `json:"time"`
}

func (ReminderPayload) Kind() PayloadKind { return KindReminder }

// GenericPayload carries data of a kind this version does not know.
type GenericPayload map[string]interface{}

func (GenericPayload) Kind() PayloadKind { return KindGeneric }

type envelope struct {
	Kind PayloadKind     `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// EncodePayload renders p as the stored {"kind","body"} envelope. A nil
// payload encodes to nil.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}
	return json.Marshal(envelope{Kind: p.Kind(), Body: body})
}

// DecodePayload parses a stored envelope. Unknown kinds decode to
// GenericPayload.
func DecodePayload(data []byte) (Payload, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	var (
		p   Payload
		err error
	)
	switch env.Kind {
	case KindAppointment:
		var v AppointmentPayload
		err = json.Unmarshal(env.Body, &v)
		p = v
	case KindPrescription:
		var v PrescriptionPayload
		err = json.Unmarshal(env.Body, &v)
		p = v
	case KindVitals:
		var v VitalsPayload
		err = json.Unmarshal(env.Body, &v)
		p = v
	case KindReminder:
		var v ReminderPayload
		err = json.Unmarshal(env.Body, &v)
		p = v
	default:
		v := GenericPayload{}
		if len(env.Body) > 0 {
			err = json.Unmarshal(env.Body, &v)
		}
		p = v
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	return p, nil
}
