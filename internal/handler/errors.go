package handler

import (
	"errors"
	"net/http"

	"tubegate/internal/model"
)

// guidance is the caller facing text for one class of exhausted fetch
type guidance struct {
	status    int
	note      string
	solutions []string
}

var (
	throttledGuidance = guidance{
		status: http.StatusTooManyRequests,
		note:   "The video platform is rate limiting this server.",
		solutions: []string{
			"Wait a few minutes before trying again",
			"Avoid sending many downloads in a short time",
			"Ask the operator to configure session cookies",
		},
	}
	authGuidance = guidance{
		status: http.StatusServiceUnavailable,
		note:   "The video platform requires a signed-in session for this request.",
		solutions: []string{
			"Try again later",
			"Ask the operator to refresh the session cookies",
			"Check whether the video is age restricted or private",
		},
	}
	genericGuidance = guidance{
		status: http.StatusInternalServerError,
		note:   "Every download method failed for this video.",
		solutions: []string{
			"Check that the video ID is correct and the video is public",
			"Try the other format",
			"Try again later",
		},
	}
)

// guidanceFor maps a classified fetch error to its response
func guidanceFor(err error) guidance {
	switch {
	case errors.Is(err, model.ErrUpstreamThrottled):
		return throttledGuidance
	case errors.Is(err, model.ErrUpstreamAuthRequired):
		return authGuidance
	}
	return genericGuidance
}
