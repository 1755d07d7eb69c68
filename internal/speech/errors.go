package speech

import "errors"

// ErrSynthesisFailed marks a synthesis attempt that produced no usable audio,
// whether the service errored or returned an empty payload.
var ErrSynthesisFailed = errors.New("speech synthesis failed")
