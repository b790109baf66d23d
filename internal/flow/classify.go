package flow

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// OutcomeKind classifies how the backend answered the replayed callback.
type OutcomeKind string

const (
	// OutcomeRedirect means the backend redirected, normally to the frontend.
	OutcomeRedirect OutcomeKind = "redirect"
	// OutcomeFrontendPage means the redirect chain ended on an HTML page.
	OutcomeFrontendPage OutcomeKind = "frontend_page"
	// OutcomeUnexpectedBody means a 200 that is not an HTML page.
	OutcomeUnexpectedBody OutcomeKind = "unexpected_body"
	// OutcomeFailed means any other status.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the classified result of replaying the callback.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	// Location is the redirect target for OutcomeRedirect.
	Location string
	// FinalURL is the URL of the last request, after same-origin redirects.
	FinalURL string
	// UserID is the user_id query parameter of the redirect target, if any.
	UserID string
	// SuccessFlag is true when the redirect target carries a success parameter.
	SuccessFlag bool
	// Error is the error query parameter of the redirect target, if any.
	Error string
	// BodyPreview holds the start of the response body.
	BodyPreview string
}

// Succeeded reports whether the backend completed the flow.
func (o *Outcome) Succeeded() bool {
	switch o.Kind {
	case OutcomeRedirect:
		return o.Error == ""
	case OutcomeFrontendPage:
		return true
	default:
		return false
	}
}

// ClassifyCallbackResponse decides whether the backend completed the flow.
// It returns the outcome in every case and a *CallbackFailedError when the
// flow did not complete.
func ClassifyCallbackResponse(statusCode int, location, body string) (*Outcome, error) {
	outcome := &Outcome{
		StatusCode:  statusCode,
		BodyPreview: preview(body),
	}

	switch {
	case isRedirect(statusCode):
		outcome.Kind = OutcomeRedirect
		outcome.Location = location
		if location == "" {
			outcome.Kind = OutcomeFailed
			return outcome, &CallbackFailedError{
				StatusCode:  statusCode,
				Reason:      "redirect without a Location header",
				BodyPreview: outcome.BodyPreview,
			}
		}
		if u, err := url.Parse(location); err == nil {
			q := u.Query()
			outcome.UserID = q.Get("user_id")
			outcome.SuccessFlag = q.Has("success")
			outcome.Error = q.Get("error")
		}
		if outcome.Error != "" {
			return outcome, &CallbackFailedError{
				StatusCode:   statusCode,
				Reason:       "backend redirected with an error",
				BackendError: outcome.Error,
				BodyPreview:  outcome.BodyPreview,
			}
		}
		return outcome, nil

	case statusCode == http.StatusOK:
		if isHTMLDocument(body) {
			outcome.Kind = OutcomeFrontendPage
			return outcome, nil
		}
		outcome.Kind = OutcomeUnexpectedBody
		failure := &CallbackFailedError{
			StatusCode:  statusCode,
			Reason:      "unexpected 200 response that is not an HTML page",
			BodyPreview: outcome.BodyPreview,
		}
		failure.BackendError, failure.BackendCode = backendErrorEnvelope(body)
		return outcome, failure

	default:
		outcome.Kind = OutcomeFailed
		failure := &CallbackFailedError{
			StatusCode:  statusCode,
			Reason:      fmt.Sprintf("backend answered %s", http.StatusText(statusCode)),
			BodyPreview: outcome.BodyPreview,
		}
		failure.BackendError, failure.BackendCode = backendErrorEnvelope(body)
		return outcome, failure
	}
}

// isHTMLDocument reports whether body looks like a rendered HTML page.
func isHTMLDocument(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<!doctype html") || strings.Contains(lower, "<html")
}

// backendErrorEnvelope extracts the backend's {"error": "...", "code": "..."} body.
func backendErrorEnvelope(body string) (message, code string) {
	if !gjson.Valid(body) {
		return "", ""
	}
	result := gjson.GetMany(body, "error", "code")
	return result[0].String(), result[1].String()
}
