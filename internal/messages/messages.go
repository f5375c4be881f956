package messages

import (
	"fmt"
)

type MessageDetail struct {
	Title   string
	Message string
	Fix     string
}

type rawMessageDetail struct {
	TitleEN   string
	MessageEN string
	FixEN     string
}

// failureMessages explains each failure kind to a CLI user. Keys match the
// codes returned by FailureID.
var failureMessages = map[string]rawMessageDetail{
	"INPUT_READ": {
		TitleEN:   "Input Could Not Be Read",
		MessageEN: "The artifact could not be read: %s",
		FixEN:     "Check that the path exists and is readable, or that the input is not empty.",
	},
	"POLICY_REJECTED": {
		TitleEN:   "URL Not Allowed",
		MessageEN: "The URL was rejected before any lookup: %s.",
		FixEN:     "Only public URLs are scanned. Private addresses, the reputation service itself and major platform domains are never submitted.",
	},
	"TIMED_OUT": {
		TitleEN:   "Analysis Still Running",
		MessageEN: "The reputation service has not finished analysing the submission: %s",
		FixEN:     "Run the same command again later; the submission is reused once the analysis completes.",
	},
	"UNAUTHORIZED": {
		TitleEN:   "Credentials Rejected",
		MessageEN: "An upstream service rejected the API key: %s",
		FixEN:     "Check VT_API_KEY and GEMINI_API_KEY, or the api_key_env names in .vigil.yaml.",
	},
	"QUOTA_EXCEEDED": {
		TitleEN:   "Quota Exceeded",
		MessageEN: "An upstream service refused the request because the quota is used up: %s",
		FixEN:     "Wait for the quota window to reset or use a key with a higher quota.",
	},
	"SUBMISSION_DECLINED": {
		TitleEN:   "Submission Declined",
		MessageEN: "Nothing was uploaded for %s.",
		FixEN:     "Pass --yes to allow uploading artifacts the reputation service has not seen.",
	},
	"TRANSIENT": {
		TitleEN:   "Upstream Service Unavailable",
		MessageEN: "A request to an upstream service failed: %s",
		FixEN:     "Check network connectivity and try again.",
	},
	"BUDGET_EXCEEDED": {
		TitleEN:   "Request Budget Exhausted",
		MessageEN: "The configured request budget was used up: %s",
		FixEN:     "Raise http.request_budget in .vigil.yaml or set it to 0 for no limit.",
	},
}

// uiMessages holds UI strings.
var uiMessages = map[string]string{
	"Target":              "Target: %s",
	"Fingerprint":         "SHA-256: %s",
	"LookupStart":         "Looking up existing reputation report...",
	"SubmitPrompt":        "%s %s is unknown to the reputation service. Upload it for analysis?",
	"StateChange":         "Analysis: %s -> %s",
	"PollProgress":        "\r [%s] %s elapsed (budget %s)\x1b[K",
	"StatusWorking":       "Analyzing",
	"Submitting":          "Uploading %s for analysis...",
	"ThreatTitle":         "--- Threat Assessment ---",
	"FactCheckTitle":      "--- Fact Check ---",
	"MediaTitle":          "--- Media Authenticity ---",
	"VerdictLabel":        "Verdict",
	"ScoreLabel":          "Score",
	"ConfidenceLabel":     "Confidence",
	"DetectionsLabel":     "Detections",
	"ReportLinkLabel":     "Full report",
	"ActionsLabel":        "Recommended actions",
	"SourcesLabel":        "Sources",
	"VisualFindingsLabel": "Visual findings",
	"AudioFindingsLabel":  "Audio findings",
	"NoSources":           "No sources cited.",
	"JSONReportSaved":     "JSON Report saved: %s",
	"JSONReportFailed":    "Failed to save JSON report: %v",
	"HTMLReportSaved":     "HTML Report saved to: %s",
	"HTMLReportFailed":    "Failed to save HTML report: %v",
	"HTMLReportTitle":     "Security Assessment Report",
	"HTMLTarget":          "Target",
	"HTMLScanTime":        "Scan Time",
	"HTMLDuration":        "Duration",
	"RequestStats":        "Upstream requests: %d in %s",
	"AssessmentCancelled": "Assessment cancelled.",
	"AssessmentFailed":    "Assessment failed: %v",
	"MissingCredentials":  "Configuration error: %v",
	"ServerStarting":      "Serving API on %s",
	"ServerStopped":       "Server stopped.",
	"InteractiveWelcome":  "Type help for commands, exit to quit.",
	"InteractiveHelp":     "Commands:",
	"InteractiveExit":     "Bye.",
	"InteractiveErrorArg": "%s needs an argument. Type help for usage.",
	"InteractiveUnknown":  "Unknown command: %s",
	"InteractiveBadFlag":  "Unknown flag: %s",
	"ScoreDisplayClamped": "(reported as %d)",
	"UnknownFailureTitle": "Unexpected Error",
	"UnknownFailureFix":   "Re-run with a smaller input or report the issue.",
}

func GetMessage(id string) MessageDetail {
	if msg, ok := failureMessages[id]; ok {
		title := msg.TitleEN
		if title == "" {
			title = id
		}
		return MessageDetail{
			Title:   title,
			Message: msg.MessageEN,
			Fix:     msg.FixEN,
		}
	}
	return MessageDetail{
		Title:   GetUIMessage("UnknownFailureTitle"),
		Message: "%s",
		Fix:     GetUIMessage("UnknownFailureFix"),
	}
}

func GetUIMessage(id string, args ...interface{}) string {
	format, ok := uiMessages[id]
	if !ok || format == "" {
		return id
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}
