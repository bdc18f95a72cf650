package ports

import "scandesk/internal/domain"

// VerifyJob is one record queued for (re)verification.
type VerifyJob struct {
	RecordID       string
	TrackingNumber string
	ItemCode       domain.ItemCode
}

// JobFromRecord builds a job for a reconciliation record, reporting false
// when the record carries no item code.
func JobFromRecord(rec domain.ScanRecord, trackingField string) (VerifyJob, bool) {
	if rec.ItemCode == "" {
		return VerifyJob{}, false
	}
	return VerifyJob{
		RecordID:       rec.ID,
		TrackingNumber: rec.Value(trackingField),
		ItemCode:       rec.ItemCode,
	}, true
}
