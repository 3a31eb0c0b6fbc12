package app

// onFixtureChanged reloads the offline provider after a fixture file is
// created, edited or removed. A broken edit keeps the previous parcels.
func (a *App) onFixtureChanged(path string) {
	if a.Fixtures == nil {
		return
	}
	n, err := a.Fixtures.Reload()
	if err != nil {
		a.log.Warn("fixture reload failed", "file", path, "error", err)
		return
	}
	a.log.Info("fixtures reloaded", "file", path, "parcels", n)
}
