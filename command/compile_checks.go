package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SendSubmissionMessage]      = (*SendSubmissionCommand)(nil)
	_ gocmd.Commander[RefreshFormSettingsMessage] = (*RefreshFormSettingsCommand)(nil)
)
