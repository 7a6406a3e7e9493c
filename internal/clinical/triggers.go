package clinical

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/carepulse/backend/internal/notify"
	"github.com/carepulse/backend/pkg/logger"
)

// Roles addressed by the clinical workflow builders.
const (
	RoleDoctor       = "doctor"
	RoleReceptionist = "receptionist"
	RolePharmacist   = "pharmacist"
	RoleAdmin        = "admin"
	RoleAttendant    = "attendant"
)

// largePaymentThreshold is the amount above which a payment is also surfaced
// to administrators.
const largePaymentThreshold = 10000

// Triggers builds the well-known clinical notifications on top of the
// notification system. Each builder fills in the title, message, routing and
// actions for one workflow event; classification stays derived from the type.
type Triggers struct {
	system *notify.System
	log    *zap.Logger
}

// NewTriggers constructs the clinical trigger set.
func NewTriggers(system *notify.System) (*Triggers, error) {
	if system == nil {
		return nil, errors.New("clinical: notification system is required")
	}
	return &Triggers{
		system: system,
		log:    logger.WithModule("clinical.triggers"),
	}, nil
}

// NotifyPatientRegistration tells reception a new patient has been added.
func (t *Triggers) NotifyPatientRegistration(patientID, patientName string) (string, error) {
	return t.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypeNewPatientRegistration,
		Title:         "New Patient Registered",
		Message:       fmt.Sprintf("%s has been registered in the system", patientName),
		RecipientRole: RoleReceptionist,
		Data: map[string]any{
			"patient_id":   patientID,
			"patient_name": patientName,
		},
		ActionURL: fmt.Sprintf("/patients/%s", patientID),
		Actions: []notify.Action{
			{ID: "view_patient", Label: "View Patient", Action: "navigate", URL: fmt.Sprintf("/patients/%s", patientID), Style: "primary"},
		},
	})
}

// NotifyPatientArrival tells reception the patient has checked in and, when a
// doctor is assigned, tells that doctor the patient is ready.
func (t *Triggers) NotifyPatientArrival(patientID, patientName, appointmentID, doctorID string) error {
	_, err := t.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypePatientArrival,
		Title:         "Patient Arrived",
		Message:       fmt.Sprintf("%s has arrived for their appointment", patientName),
		RecipientRole: RoleReceptionist,
		Data: map[string]any{
			"patient_id":     patientID,
			"appointment_id": appointmentID,
		},
		ActionURL: "/receptionist/queue",
		Actions: []notify.Action{
			{ID: "check_in", Label: "Check In", Action: "check_in", Style: "primary"},
		},
	})

	if doctorID != "" {
		_, readyErr := t.system.CreateNotification(notify.CreateParams{
			Type:        notify.TypePatientReadyForConsultation,
			Title:       "Patient Ready",
			Message:     fmt.Sprintf("%s is ready for consultation", patientName),
			RecipientID: doctorID,
			Data: map[string]any{
				"patient_id":     patientID,
				"appointment_id": appointmentID,
			},
			ActionURL: fmt.Sprintf("/doctor/consultations?patient=%s", patientID),
			Actions: []notify.Action{
				{ID: "start_consultation", Label: "Start Consultation", Action: "navigate", URL: fmt.Sprintf("/doctor/consultations?patient=%s", patientID), Style: "primary"},
			},
		})
		err = multierr.Append(err, readyErr)
	}

	return err
}

// NotifyPatientWaiting nudges the assigned doctor about a patient waiting in
// the queue. Without an assigned doctor there is nobody to address.
func (t *Triggers) NotifyPatientWaiting(patientID, patientName string, waitTime time.Duration, doctorID string) (string, error) {
	if doctorID == "" {
		t.log.Debug("patient waiting without assigned doctor, skipping", zap.String("patient_id", patientID))
		return "", nil
	}

	minutes := int(waitTime.Minutes())
	return t.system.CreateNotification(notify.CreateParams{
		Type:        notify.TypePatientWaiting,
		Title:       "Patient Waiting",
		Message:     fmt.Sprintf("%s has been waiting for %d minutes", patientName, minutes),
		RecipientID: doctorID,
		Data: map[string]any{
			"patient_id":   patientID,
			"wait_minutes": minutes,
		},
		ActionURL: "/doctor/queue",
		Actions: []notify.Action{
			{ID: "call_next", Label: "Call Patient", Action: "call_patient", Style: "primary"},
		},
	})
}

// NotifyAppointmentScheduled informs the doctor and reception about a new
// appointment.
func (t *Triggers) NotifyAppointmentScheduled(appointmentID, patientName, doctorID string, appointmentTime time.Time) error {
	_, doctorErr := t.system.CreateNotification(notify.CreateParams{
		Type:        notify.TypeAppointmentScheduled,
		Title:       "New Appointment Scheduled",
		Message:     fmt.Sprintf("Appointment with %s scheduled for %s", patientName, appointmentTime.Format("Jan 2, 2006 15:04")),
		RecipientID: doctorID,
		Data: map[string]any{
			"appointment_id": appointmentID,
			"patient_name":   patientName,
		},
		ActionURL: fmt.Sprintf("/doctor/calendar?appointment=%s", appointmentID),
		Actions: []notify.Action{
			{ID: "view_appointment", Label: "View Calendar", Action: "navigate", URL: "/doctor/calendar", Style: "primary"},
		},
	})

	_, receptionErr := t.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypeAppointmentScheduled,
		Title:         "Appointment Confirmed",
		Message:       fmt.Sprintf("Appointment scheduled for %s", patientName),
		RecipientRole: RoleReceptionist,
		Data: map[string]any{
			"appointment_id": appointmentID,
		},
		ActionURL: "/receptionist/appointments",
	})

	return multierr.Append(doctorErr, receptionErr)
}

// NotifyAppointmentCancellation informs the doctor and reception about a
// cancelled appointment, with the optional reason.
func (t *Triggers) NotifyAppointmentCancellation(appointmentID, patientName, doctorID, reason string) error {
	message := fmt.Sprintf("Appointment with %s has been cancelled", patientName)
	if reason != "" {
		message += ": " + reason
	}

	_, doctorErr := t.system.CreateNotification(notify.CreateParams{
		Type:        notify.TypeAppointmentCancelled,
		Title:       "Appointment Cancelled",
		Message:     message,
		RecipientID: doctorID,
		Data: map[string]any{
			"appointment_id": appointmentID,
			"reason":         reason,
		},
		ActionURL: "/doctor/calendar",
	})

	_, receptionErr := t.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypeAppointmentCancelled,
		Title:         "Appointment Cancelled",
		Message:       message,
		RecipientRole: RoleReceptionist,
		Data: map[string]any{
			"appointment_id": appointmentID,
			"reason":         reason,
		},
	})

	return multierr.Append(doctorErr, receptionErr)
}

// NotifyAppointmentReminder reminds the patient's doctor about an upcoming
// appointment. The notification expires once the slot has passed.
func (t *Triggers) NotifyAppointmentReminder(appointmentID, patientName, doctorID string, appointmentTime time.Time) (string, error) {
	expiresIn := time.Until(appointmentTime)
	if expiresIn < 0 {
		expiresIn = 0
	}

	return t.system.CreateNotification(notify.CreateParams{
		Type:        notify.TypeAppointmentReminder,
		Title:       "Upcoming Appointment",
		Message:     fmt.Sprintf("Appointment with %s at %s", patientName, appointmentTime.Format("15:04")),
		RecipientID: doctorID,
		Data: map[string]any{
			"appointment_id": appointmentID,
			"patient_name":   patientName,
		},
		ActionURL: "/doctor/calendar",
		ExpiresIn: expiresIn,
	})
}

// NotifyLabResultsReady tells the ordering doctor that results are in.
func (t *Triggers) NotifyLabResultsReady(patientID, patientName, doctorID, testType string) (string, error) {
	return t.system.CreateNotification(notify.CreateParams{
		Type:        notify.TypeLabResultsAvailable,
		Title:       "Lab Results Available",
		Message:     fmt.Sprintf("%s results ready for %s", testType, patientName),
		RecipientID: doctorID,
		Data: map[string]any{
			"patient_id": patientID,
			"test_type":  testType,
		},
		ActionURL: fmt.Sprintf("/doctor/patients/%s/lab-results", patientID),
		Actions: []notify.Action{
			{ID: "view_results", Label: "View Results", Action: "navigate", URL: fmt.Sprintf("/doctor/patients/%s/lab-results", patientID), Style: "primary"},
		},
	})
}

// NotifyCriticalLabValue escalates a panic-range lab result to the ordering
// doctor, or to every doctor when none is assigned.
func (t *Triggers) NotifyCriticalLabValue(patientID, patientName, testName, value, doctorID string) (string, error) {
	message := fmt.Sprintf("CRITICAL: %s = %s for %s", testName, value, patientName)

	params := notify.CreateParams{
		Type:    notify.TypeCriticalLabValue,
		Title:   "CRITICAL Lab Value",
		Message: message,
		Data: map[string]any{
			"patient_id": patientID,
			"test_name":  testName,
			"value":      value,
		},
		ActionURL: fmt.Sprintf("/doctor/patients/%s", patientID),
		Actions: []notify.Action{
			{ID: "review_patient", Label: "Review Patient", Action: "navigate", URL: fmt.Sprintf("/doctor/patients/%s", patientID), Style: "danger"},
		},
	}

	if doctorID != "" {
		params.RecipientID = doctorID
	} else {
		params.RecipientRole = RoleDoctor
	}

	return t.system.CreateNotification(params)
}

// NotifyPrescriptionReady tells pharmacy a prescription awaits dispensing and
// reception that the patient can be informed.
func (t *Triggers) NotifyPrescriptionReady(prescriptionID, patientName string, medicationNames []string) error {
	_, pharmacyErr := t.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypePrescriptionReady,
		Title:         "New Prescription",
		Message:       fmt.Sprintf("Prescription ready for dispensing: %s", patientName),
		RecipientRole: RolePharmacist,
		Data: map[string]any{
			"prescription_id": prescriptionID,
			"medications":     medicationNames,
		},
		ActionURL: fmt.Sprintf("/pharmacy/prescriptions/%s", prescriptionID),
		Actions: []notify.Action{
			{ID: "dispense", Label: "Dispense", Action: "navigate", URL: fmt.Sprintf("/pharmacy/prescriptions/%s", prescriptionID), Style: "primary"},
		},
	})

	_, receptionErr := t.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypePrescriptionReadyForPickup,
		Title:         "Prescription Ready",
		Message:       fmt.Sprintf("Prescription ready for pickup: %s", patientName),
		RecipientRole: RoleReceptionist,
		Data: map[string]any{
			"prescription_id": prescriptionID,
			"patient_name":    patientName,
		},
		Actions: []notify.Action{
			{ID: "notify_patient", Label: "Notify Patient", Action: "notify_patient", Style: "primary"},
		},
	})

	return multierr.Append(pharmacyErr, receptionErr)
}

// NotifyPaymentReceived records a payment for reception and escalates large
// amounts to administrators.
func (t *Triggers) NotifyPaymentReceived(invoiceID, patientName string, amount float64, paymentMethod string) error {
	_, err := t.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypePaymentReceived,
		Title:         "Payment Received",
		Message:       fmt.Sprintf("Payment of %.2f received from %s via %s", amount, patientName, paymentMethod),
		RecipientRole: RoleReceptionist,
		Data: map[string]any{
			"invoice_id":     invoiceID,
			"amount":         amount,
			"payment_method": paymentMethod,
		},
		ActionURL: fmt.Sprintf("/receptionist/billing?invoice=%s", invoiceID),
	})

	if amount > largePaymentThreshold {
		_, adminErr := t.system.CreateNotification(notify.CreateParams{
			Type:          notify.TypePaymentReceived,
			Title:         "Large Payment Received",
			Message:       fmt.Sprintf("Payment of %.2f received from %s", amount, patientName),
			RecipientRole: RoleAdmin,
			Data: map[string]any{
				"invoice_id":     invoiceID,
				"amount":         amount,
				"payment_method": paymentMethod,
			},
			ActionURL: "/admin/billing",
		})
		err = multierr.Append(err, adminErr)
	}

	return err
}

// NotifyEmergencyAlert raises a facility-wide emergency to doctors, admins
// and attendants.
func (t *Triggers) NotifyEmergencyAlert(title, message, patientID string) error {
	actions := []notify.Action{
		{ID: "acknowledge", Label: "Acknowledge", Action: "acknowledge", Style: "danger"},
	}
	actionURL := ""
	if patientID != "" {
		actionURL = fmt.Sprintf("/patients/%s", patientID)
		actions = append(actions, notify.Action{
			ID: "view_patient", Label: "View Patient", Action: "navigate", URL: actionURL, Style: "primary",
		})
	}

	var err error
	for _, role := range []string{RoleDoctor, RoleAdmin, RoleAttendant} {
		_, roleErr := t.system.CreateNotification(notify.CreateParams{
			Type:          notify.TypeEmergencyAlert,
			Title:         title,
			Message:       message,
			RecipientRole: role,
			Data: map[string]any{
				"patient_id": patientID,
			},
			ActionURL: actionURL,
			Actions:   actions,
		})
		err = multierr.Append(err, roleErr)
	}
	return err
}

// NotifyDrugInteraction warns the prescribing doctor about interacting
// medications.
func (t *Triggers) NotifyDrugInteraction(patientID, patientName string, medications []string, doctorID string) (string, error) {
	return t.system.CreateNotification(notify.CreateParams{
		Type:        notify.TypeDrugInteractionWarning,
		Title:       "Drug Interaction Warning",
		Message:     fmt.Sprintf("Drug interaction warning for %s: %s", patientName, strings.Join(medications, " + ")),
		RecipientID: doctorID,
		Data: map[string]any{
			"patient_id":  patientID,
			"medications": medications,
		},
		ActionURL: fmt.Sprintf("/doctor/patients/%s/prescriptions", patientID),
		Actions: []notify.Action{
			{ID: "review_prescriptions", Label: "Review Prescriptions", Action: "navigate", URL: fmt.Sprintf("/doctor/patients/%s/prescriptions", patientID), Style: "danger"},
		},
	})
}

// NotifySystemMaintenance announces a maintenance window to every staff role.
func (t *Triggers) NotifySystemMaintenance(startTime time.Time, duration string, affectedSystems []string) error {
	message := fmt.Sprintf("Scheduled maintenance: %s for %s. Affected: %s",
		startTime.Format("Jan 2, 2006 15:04"), duration, strings.Join(affectedSystems, ", "))

	var err error
	for _, role := range []string{RoleAdmin, RoleDoctor, RoleReceptionist, RolePharmacist, RoleAttendant} {
		_, roleErr := t.system.CreateNotification(notify.CreateParams{
			Type:          notify.TypeSystemMaintenance,
			Title:         "Scheduled Maintenance",
			Message:       message,
			RecipientRole: role,
			Data: map[string]any{
				"start_time":       startTime,
				"duration":         duration,
				"affected_systems": affectedSystems,
			},
		})
		err = multierr.Append(err, roleErr)
	}
	return err
}
