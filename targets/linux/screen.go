//go:build linux

package main

import (
	"stepjog/motion"
	"stepjog/standalone/config"
	"stepjog/ui"
)

// screen renders the dashboard to a framebuffer whenever the view changes.
// Without a framebuffer configured it does nothing.
type screen struct {
	fb     *ui.Framebuffer
	layout ui.Layout
	dash   *ui.Dashboard
}

func openScreen(cfg *config.Config, exec *motion.Executor, speeds *motion.SpeedSelector, pendant *ui.Pendant) (*screen, error) {
	s := &screen{
		layout: ui.DefaultLayout(int16(cfg.UI.Width), int16(cfg.UI.Height)),
		dash:   ui.NewDashboard(exec.Telemetry(), speeds, cfg.Scale(), cfg.ExecutorConfig().Acceleration, pendant),
	}
	if cfg.UI.Framebuffer == "" {
		return s, nil
	}
	fb, err := ui.OpenFramebuffer(cfg.UI.Framebuffer, cfg.UI.Width, cfg.UI.Height)
	if err != nil {
		return nil, err
	}
	s.fb = fb
	return s, nil
}

// Refresh redraws the panel if the dashboard changed
func (s *screen) Refresh() error {
	if s.fb == nil {
		return nil
	}
	view, changed := s.dash.Refresh()
	if !changed {
		return nil
	}
	return s.fb.Show(ui.RenderImage(&s.layout, view))
}

// Close blanks and releases the panel
func (s *screen) Close() error {
	if s.fb == nil {
		return nil
	}
	if err := s.fb.Clear(); err != nil {
		s.fb.Close()
		return err
	}
	return s.fb.Close()
}
