package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-form-integrations/core"
)

var (
	_ gocmd.Querier[FetchFormSettingsMessage, core.FormSettings] = (*FetchFormSettingsQuery)(nil)
	_ gocmd.Querier[CheckConnectionMessage, bool]                = (*CheckConnectionQuery)(nil)
	_ gocmd.Querier[ListIntegrationEventsMessage, EventPage]     = (*ListIntegrationEventsQuery)(nil)
	_ gocmd.Querier[RenderCaptchaMessage, string]                = (*RenderCaptchaQuery)(nil)
	_ gocmd.Querier[ValidateCaptchaMessage, bool]                = (*ValidateCaptchaQuery)(nil)
)
