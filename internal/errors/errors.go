package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Error taxonomy for the card identification pipeline
 *
 * Every stage failure surfaces as exactly one IdentifyError carrying the
 * code, the stage that failed and a human-readable reason.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Acquisition and pre-processing errors
	ErrorDevice        ErrorCode = "DEVICE_ERROR"
	ErrorInvalidRegion ErrorCode = "INVALID_REGION"

	// Recognition errors
	ErrorRecognition ErrorCode = "RECOGNITION_FAILED"
	ErrorParse       ErrorCode = "PARSE_FAILED"

	// Lookup errors
	ErrorNotFound  ErrorCode = "CARD_NOT_FOUND"
	ErrorTransport ErrorCode = "TRANSPORT_FAILED"
	ErrorService   ErrorCode = "SERVICE_FAILED"
)

// Stage names the pipeline step an error originated from
type Stage string

const (
	StageCapture    Stage = "capture"
	StagePreprocess Stage = "preprocess"
	StageRecognize  Stage = "recognize"
	StageParse      Stage = "parse"
	StageLookup     Stage = "lookup"
)

// Stage returns the pipeline stage a code belongs to
func (c ErrorCode) Stage() Stage {
	switch c {
	case ErrorDevice:
		return StageCapture
	case ErrorInvalidRegion:
		return StagePreprocess
	case ErrorRecognition:
		return StageRecognize
	case ErrorParse:
		return StageParse
	default:
		return StageLookup
	}
}

// IdentifyError represents a structured pipeline failure
type IdentifyError struct {
	Code      ErrorCode
	Stage     Stage
	Message   string
	RunID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *IdentifyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s (caused by: %v)", e.Code, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
}

func (e *IdentifyError) Unwrap() error {
	return e.Cause
}

// CodeOf returns the code of the first IdentifyError in err's chain, or "" if none
func CodeOf(err error) ErrorCode {
	var ie *IdentifyError
	if stderrors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// HasCode reports whether err carries the given code
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// As is a convenience wrapper returning the IdentifyError in err's chain
func As(err error) (*IdentifyError, bool) {
	var ie *IdentifyError
	ok := stderrors.As(err, &ie)
	return ie, ok
}

func newError(code ErrorCode, message string, details map[string]interface{}, cause error) *IdentifyError {
	return &IdentifyError{
		Code:      code,
		Stage:     code.Stage(),
		Message:   message,
		Timestamp: time.Now(),
		Details:   details,
		Cause:     cause,
	}
}

// Factory functions, one per failure kind

func NewDeviceError(device string, reason string, cause error) *IdentifyError {
	return newError(ErrorDevice, reason, map[string]interface{}{
		"device": device,
	}, cause)
}

func NewInvalidRegionError(roi, bounds fmt.Stringer) *IdentifyError {
	return newError(ErrorInvalidRegion,
		fmt.Sprintf("region %v is not inside frame bounds %v", roi, bounds),
		map[string]interface{}{
			"roi":    roi.String(),
			"bounds": bounds.String(),
		}, nil)
}

func NewRecognitionError(engine string, reason string, cause error) *IdentifyError {
	return newError(ErrorRecognition, reason, map[string]interface{}{
		"ocr_engine": engine,
	}, cause)
}

func NewParseError(text string, reason string) *IdentifyError {
	return newError(ErrorParse, reason, map[string]interface{}{
		"recognized_text": text,
	}, nil)
}

func NewNotFoundError(setCode, collectorNumber string, detail string) *IdentifyError {
	msg := fmt.Sprintf("no card for %s #%s", setCode, collectorNumber)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return newError(ErrorNotFound, msg, map[string]interface{}{
		"set_code":         setCode,
		"collector_number": collectorNumber,
	}, nil)
}

func NewTransportError(url string, attempts int, cause error) *IdentifyError {
	return newError(ErrorTransport,
		fmt.Sprintf("lookup request did not complete after %d attempt(s)", attempts),
		map[string]interface{}{
			"url":      url,
			"attempts": attempts,
		}, cause)
}

func NewServiceError(url string, statusCode int, detail string) *IdentifyError {
	msg := fmt.Sprintf("lookup service returned status %d", statusCode)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return newError(ErrorService, msg, map[string]interface{}{
		"url":         url,
		"status_code": statusCode,
	}, nil)
}

// ToMap converts error to map for event payloads
func (e *IdentifyError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"stage":      string(e.Stage),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.RunID != "" {
		result["run_id"] = e.RunID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
