package service

import (
	"strings"

	"tubegate/internal/model"
)

// failureRules maps diagnostic fragments printed by yt-dlp to an outward
// failure kind. Matching is case-insensitive and the first rule wins, so
// throttling is reported even when the same text also asks for a sign in.
// When yt-dlp changes its wording the table tests are expected to fail.
var failureRules = []struct {
	fragment string
	kind     model.FailureKind
}{
	{"429", model.FailureThrottled},
	{"too many requests", model.FailureThrottled},
	{"rate-limited", model.FailureThrottled},
	{"rate limit", model.FailureThrottled},
	{"sign in to confirm", model.FailureAuthRequired},
	{"confirm you're not a bot", model.FailureAuthRequired},
	{"confirm you’re not a bot", model.FailureAuthRequired},
	{"--cookies-from-browser", model.FailureAuthRequired},
	{"login required", model.FailureAuthRequired},
	{"this video may be inappropriate for some users", model.FailureAuthRequired},
}

// ClassifyFailure maps the last error of an exhausted fetch to a failure kind
func ClassifyFailure(err error) model.FailureKind {
	if err == nil {
		return model.FailureGeneric
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) model.FailureKind {
	lower := strings.ToLower(msg)
	for _, rule := range failureRules {
		if strings.Contains(lower, rule.fragment) {
			return rule.kind
		}
	}
	return model.FailureGeneric
}
