package sqlstore

import "github.com/goliatone/go-form-integrations/core"

var (
	_ core.EventSink     = (*EventStore)(nil)
	_ core.EventReader   = (*EventStore)(nil)
	_ core.SettingsStore = (*FormSettingsStore)(nil)
	_ core.SettingsStore = (*CachedFormSettingsStore)(nil)
)
