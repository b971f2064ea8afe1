package command

import (
	"strings"

	"github.com/goliatone/go-form-integrations/core"
)

const (
	TypeSendSubmission      = "integrations.command.submission.send"
	TypeRefreshFormSettings = "integrations.command.form_settings.refresh"
)

type SendSubmissionMessage struct {
	Request core.SendSubmissionRequest
}

func (SendSubmissionMessage) Type() string { return TypeSendSubmission }

func (m SendSubmissionMessage) Validate() error {
	if strings.TrimSpace(m.Request.Handle) == "" {
		return commandValidationError("handle", "integration handle is required")
	}
	if strings.TrimSpace(m.Request.Submission.ID) == "" {
		return commandValidationError("submission.id", "submission id is required")
	}
	return nil
}

type RefreshFormSettingsMessage struct {
	Handle string
}

func (RefreshFormSettingsMessage) Type() string { return TypeRefreshFormSettings }

func (m RefreshFormSettingsMessage) Validate() error {
	if strings.TrimSpace(m.Handle) == "" {
		return commandValidationError("handle", "integration handle is required")
	}
	return nil
}
