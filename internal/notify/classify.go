package notify

// Classification defaults applied to types without an explicit entry. Every
// declared type is expected to have one; the fallback exists so that an
// unknown type arriving over the wire is stored rather than rejected.
const (
	DefaultCategory = CategorySystem
	DefaultPriority = PriorityNormal
)

// Classify derives the category and priority for a notification type.
// It is pure and total: unknown types map to the documented defaults.
func Classify(t Type) (Category, Priority) {
	return CategoryFor(t), PriorityFor(t)
}

// CategoryFor maps a notification type to its category. The switch must
// cover every declared type; TestClassifyTotality walks Types to enforce it.
func CategoryFor(t Type) Category {
	switch t {
	case TypeNewPatientRegistration, TypePatientArrival,
		TypePatientWaiting, TypePatientReadyForConsultation:
		return CategoryPatientCare

	case TypeAppointmentScheduled, TypeAppointmentReminder,
		TypeAppointmentCancelled, TypeAppointmentRescheduled,
		TypeAppointmentOverdue:
		return CategoryScheduling

	case TypeConsultationCompleted, TypePrescriptionReady,
		TypeLabResultsAvailable, TypeProcedureScheduled,
		TypeProcedureCompleted:
		return CategoryClinical

	case TypePrescriptionDispensed, TypeMedicationOutOfStock,
		TypeMedicationExpiring, TypePrescriptionReadyForPickup:
		return CategoryPharmacy

	case TypeInvoiceGenerated, TypePaymentReceived,
		TypePaymentOverdue, TypeInsuranceClaimStatus:
		return CategoryBilling

	case TypeSystemMaintenance, TypeSecurityAlert,
		TypeBackupCompleted, TypeUpdateAvailable:
		return CategorySystem

	case TypeEmergencyAlert, TypeCriticalLabValue,
		TypeDrugInteractionWarning, TypeAllergyAlert:
		return CategoryEmergency
	}
	return DefaultCategory
}

// PriorityFor maps a notification type to its priority. A missing entry
// silently downgrades emergency-class events, so the totality test asserts
// that every emergency type resolves above the default.
func PriorityFor(t Type) Priority {
	switch t {
	case TypeEmergencyAlert, TypeCriticalLabValue,
		TypeDrugInteractionWarning, TypeAllergyAlert:
		return PriorityCritical

	case TypeSecurityAlert, TypePatientReadyForConsultation,
		TypeAppointmentOverdue:
		return PriorityUrgent

	case TypeNewPatientRegistration, TypePatientArrival,
		TypeLabResultsAvailable, TypeMedicationOutOfStock:
		return PriorityHigh

	case TypeAppointmentScheduled, TypeAppointmentCancelled,
		TypeAppointmentRescheduled, TypeConsultationCompleted,
		TypePrescriptionReady, TypePrescriptionDispensed,
		TypePrescriptionReadyForPickup, TypeProcedureScheduled,
		TypeProcedureCompleted, TypeInvoiceGenerated,
		TypePaymentReceived, TypePaymentOverdue,
		TypeInsuranceClaimStatus, TypePatientWaiting,
		TypeSystemMaintenance:
		return PriorityNormal

	case TypeAppointmentReminder, TypeBackupCompleted,
		TypeUpdateAvailable, TypeMedicationExpiring:
		return PriorityLow
	}
	return DefaultPriority
}
