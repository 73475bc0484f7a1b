// Package logx is a thin wrapper around the standard library logger,
// matching the teacher's log.Printf call-site style (no structured logging
// library appears anywhere in the pack for this domain). See DESIGN.md,
// "ambient logging".
package logx

import "log"

// Errorf logs an error-level line.
func Errorf(format string, args ...interface{}) {
	log.Printf("ERROR "+format, args...)
}

// Warnf logs a warning-level line.
func Warnf(format string, args ...interface{}) {
	log.Printf("WARN "+format, args...)
}

// Infof logs an info-level line.
func Infof(format string, args ...interface{}) {
	log.Printf("INFO "+format, args...)
}
