package notify

import "time"

// Type identifies a clinical or system event that produces a notification.
type Type string

// Declared notification types, grouped by workflow.
const (
	// Patient workflow.
	TypeNewPatientRegistration      Type = "new_patient_registration"
	TypePatientArrival              Type = "patient_arrival"
	TypePatientWaiting              Type = "patient_waiting"
	TypePatientReadyForConsultation Type = "patient_ready_for_consultation"

	// Appointments.
	TypeAppointmentScheduled   Type = "appointment_scheduled"
	TypeAppointmentReminder    Type = "appointment_reminder"
	TypeAppointmentCancelled   Type = "appointment_cancelled"
	TypeAppointmentRescheduled Type = "appointment_rescheduled"
	TypeAppointmentOverdue     Type = "appointment_overdue"

	// Medical workflow.
	TypeConsultationCompleted Type = "consultation_completed"
	TypePrescriptionReady     Type = "prescription_ready"
	TypeLabResultsAvailable   Type = "lab_results_available"
	TypeProcedureScheduled    Type = "procedure_scheduled"
	TypeProcedureCompleted    Type = "procedure_completed"

	// Pharmacy.
	TypePrescriptionDispensed      Type = "prescription_dispensed"
	TypeMedicationOutOfStock       Type = "medication_out_of_stock"
	TypeMedicationExpiring         Type = "medication_expiring"
	TypePrescriptionReadyForPickup Type = "prescription_ready_for_pickup"

	// Billing.
	TypeInvoiceGenerated     Type = "invoice_generated"
	TypePaymentReceived      Type = "payment_received"
	TypePaymentOverdue       Type = "payment_overdue"
	TypeInsuranceClaimStatus Type = "insurance_claim_status"

	// System.
	TypeSystemMaintenance Type = "system_maintenance"
	TypeSecurityAlert     Type = "security_alert"
	TypeBackupCompleted   Type = "backup_completed"
	TypeUpdateAvailable   Type = "update_available"

	// Emergency.
	TypeEmergencyAlert         Type = "emergency_alert"
	TypeCriticalLabValue       Type = "critical_lab_value"
	TypeDrugInteractionWarning Type = "drug_interaction_warning"
	TypeAllergyAlert           Type = "allergy_alert"
)

// Types lists every declared notification type. Keep in sync with the
// constants above; classification totality is asserted against this slice.
var Types = []Type{
	TypeNewPatientRegistration,
	TypePatientArrival,
	TypePatientWaiting,
	TypePatientReadyForConsultation,
	TypeAppointmentScheduled,
	TypeAppointmentReminder,
	TypeAppointmentCancelled,
	TypeAppointmentRescheduled,
	TypeAppointmentOverdue,
	TypeConsultationCompleted,
	TypePrescriptionReady,
	TypeLabResultsAvailable,
	TypeProcedureScheduled,
	TypeProcedureCompleted,
	TypePrescriptionDispensed,
	TypeMedicationOutOfStock,
	TypeMedicationExpiring,
	TypePrescriptionReadyForPickup,
	TypeInvoiceGenerated,
	TypePaymentReceived,
	TypePaymentOverdue,
	TypeInsuranceClaimStatus,
	TypeSystemMaintenance,
	TypeSecurityAlert,
	TypeBackupCompleted,
	TypeUpdateAvailable,
	TypeEmergencyAlert,
	TypeCriticalLabValue,
	TypeDrugInteractionWarning,
	TypeAllergyAlert,
}

// Category groups notifications for filtering in consumer views.
type Category string

// Notification categories.
const (
	CategoryPatientCare Category = "patient_care"
	CategoryScheduling  Category = "scheduling"
	CategoryClinical    Category = "clinical"
	CategoryPharmacy    Category = "pharmacy"
	CategoryBilling     Category = "billing"
	CategorySystem      Category = "system"
	CategoryEmergency   Category = "emergency"
)

// Priority orders notifications for display and alerting.
type Priority string

// Notification priorities, from least to most severe.
const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// Rank returns the sort weight of the priority. Higher is more severe.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 5
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Elevated reports whether the priority warrants surfacing a native alert.
func (p Priority) Elevated() bool {
	return p == PriorityHigh || p == PriorityUrgent || p == PriorityCritical
}

// Action describes a response affordance attached to a notification. It is
// purely descriptive; the core never executes actions.
type Action struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Action string `json:"action"`
	URL    string `json:"url,omitempty"`
	Style  string `json:"style"`
}

// Notification is the sole entity managed by the registry.
type Notification struct {
	ID            string         `json:"id"`
	Type          Type           `json:"type"`
	Category      Category       `json:"category"`
	Priority      Priority       `json:"priority"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Data          map[string]any `json:"data,omitempty"`
	RecipientID   string         `json:"recipientId,omitempty"`
	RecipientRole string         `json:"recipientRole,omitempty"`
	DepartmentID  string         `json:"departmentId,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	ExpiresAt     *time.Time     `json:"expiresAt,omitempty"`
	ReadAt        *time.Time     `json:"readAt,omitempty"`
	ActionURL     string         `json:"actionUrl,omitempty"`
	Actions       []Action       `json:"actions,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Expired reports whether the notification's TTL has elapsed relative to now.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// Read reports whether the notification has been marked as read.
func (n *Notification) Read() bool {
	return n.ReadAt != nil
}

// Clone returns a copy that can be read or serialised without holding the
// registry lock. Data, Actions and Metadata are shared; they are immutable
// once the notification is created.
func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	c := *n
	if n.ExpiresAt != nil {
		expires := *n.ExpiresAt
		c.ExpiresAt = &expires
	}
	if n.ReadAt != nil {
		read := *n.ReadAt
		c.ReadAt = &read
	}
	return &c
}
