package main

import (
	"context"
	"time"

	"ghostreplay/internal/bootstrap"
	"ghostreplay/internal/config"
	"ghostreplay/internal/logging"
	"ghostreplay/internal/presence"
	"ghostreplay/internal/session"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// App struct
type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	stack  *bootstrap.Stack
	log    logrus.FieldLogger

	// emit forwards backend events to the frontend
	emit func(ctx context.Context, name string, data ...interface{})

	windowVisible bool
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{
		log:           logging.New("ghostreplay", "info", "text"),
		emit:          runtime.EventsEmit,
		windowVisible: true,
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	config.LoadEnv(a.log)
	cfg := config.Load()
	a.log = logging.New("ghostreplay", cfg.LogLevel, cfg.LogFormat)

	if err := a.attach(ctx, cfg); err != nil {
		a.log.WithError(err).Error("Failed to start recorder")
		a.emit(a.ctx, "recorder:status", map[string]interface{}{
			"ready": false,
			"error": err.Error(),
		})
		return
	}

	a.RegisterRecordingHotkey()

	go func() {
		if err := a.stack.Serve(ctx); err != nil {
			a.log.WithError(err).Warn("Review server stopped")
		}
	}()
}

// attach wires the recorder stack and starts watching for games
func (a *App) attach(ctx context.Context, cfg config.Config) error {
	stack, err := bootstrap.New(ctx, cfg, a.log, bootstrap.Listeners{
		OnEvent:    a.onEvent,
		OnPresence: a.onPresence,
		OnSaved:    a.onSaved,
	})
	if err != nil {
		return err
	}
	a.stack = stack

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	stack.Start(runCtx)

	a.emit(a.ctx, "recorder:status", map[string]interface{}{
		"ready":      true,
		"autoRecord": cfg.AutoRecord,
		"reviewAddr": cfg.ReviewAddr,
	})
	return nil
}

// shutdown is called when the app is closing
func (a *App) shutdown(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.stack == nil {
		return
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.stack.Close(closeCtx); err != nil {
		a.log.WithError(err).Warn("Recorder did not shut down cleanly")
	}
}

func (a *App) onEvent(sessionID string, ev session.GameEvent) {
	a.emit(a.ctx, "recording:event", map[string]interface{}{
		"sessionId": sessionID,
		"event":     ev,
	})
}

func (a *App) onPresence(state presence.State) {
	a.emit(a.ctx, "game:status", map[string]interface{}{
		"inGame": state == presence.InGame,
		"state":  state.String(),
	})
}

func (a *App) onSaved(s *session.RecordingSession, err error) {
	data := map[string]interface{}{
		"sessionId":   s.ID,
		"totalEvents": s.Metadata.TotalEvents,
		"saved":       err == nil,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	a.emit(a.ctx, "recording:saved", data)
}
