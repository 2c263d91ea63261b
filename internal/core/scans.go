// Package core defines the ports between the scan services and their stores and collaborators.
package core

import "github.com/om239903-ai/internship-project/internal/domain/model"

// ScanStatus is re-exported for HTTP handlers to avoid direct coupling to the model package.
type ScanStatus = model.ScanStatus

// StartScanRequest is re-exported for HTTP handlers to avoid direct coupling to the model package.
type StartScanRequest = model.StartScanRequest
