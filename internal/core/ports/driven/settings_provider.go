package driven

import "github.com/rajeeshbabu/mahal-sync/internal/core/domain"

// SettingsProvider supplies the live sync settings.
// Services read it at the start of every pass so credential changes take effect without a restart.
type SettingsProvider interface {
	Settings() domain.SyncSettings
}
