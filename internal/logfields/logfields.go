package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared across packages.
const (
	KeyResource   = "resource"
	KeySource     = "source"
	KeyTask       = "task"
	KeyLoanID     = "loan_id"
	KeyTechnician = "technician_id"
	KeyType       = "notification_type"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyError      = "error"
)

func Resource(r string) slog.Attr    { return slog.String(KeyResource, r) }
func Source(s string) slog.Attr      { return slog.String(KeySource, s) }
func Task(name string) slog.Attr     { return slog.String(KeyTask, name) }
func LoanID(id string) slog.Attr     { return slog.String(KeyLoanID, id) }
func Technician(id string) slog.Attr { return slog.String(KeyTechnician, id) }
func Type(t string) slog.Attr        { return slog.String(KeyType, t) }
func Count(n int) slog.Attr          { return slog.Int(KeyCount, n) }
func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
