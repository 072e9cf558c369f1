package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"visionary/internal/bootstrap"
	"visionary/internal/config"
	"visionary/internal/domain"
	"visionary/internal/logging"
	"visionary/internal/usecase"
)

const (
	eventStatus     = "visionary:status"
	eventTranscript = "visionary:transcript"
	eventError      = "visionary:error"
	eventNotice     = "visionary:notice"
)

const shutdownTimeout = 5 * time.Second

// App is the Wails application root.
type App struct {
	ctx     context.Context
	cfgFile string

	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error
}

func NewApp(cfgFile string) *App {
	return &App{cfgFile: cfgFile}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a.cfgFile)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.StatusChanged(a.controller.Status())
}

func (a *App) shutdown(_ context.Context) {
	if a.controller == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.controller.Shutdown(ctx); err != nil {
		logging.L("app").Warn("shutdown incomplete", logging.Err(err))
	}
}

// StartSession acquires the screen and microphone and connects the live session.
func (a *App) StartSession() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		if errors.Is(err, usecase.ErrUnsupportedEnvironment) {
			return a.controller.Status(), nil
		}
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StopSession ends the live session and saves its transcript.
func (a *App) StopSession() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.controller.Stop()
	return a.controller.Status(), nil
}

// ToggleMute flips the microphone and returns the new muted state.
func (a *App) ToggleMute() (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.controller.ToggleMute(), nil
}

// GetStatus returns the current connection status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.StatusError, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.StatusDisconnected}
	}
	return a.controller.Status()
}

// GetTranscript returns the displayed transcript lines, newest last.
func (a *App) GetTranscript() []domain.TranscriptLine {
	if a.controller == nil {
		return []domain.TranscriptLine{}
	}
	return a.controller.Transcript()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":           "Gemini Live",
		"model":              a.cfg.Gemini.Model,
		"voice":              a.cfg.Gemini.Voice,
		"audioInput":         a.cfg.Audio.InputDevice,
		"audioInputFormat":   a.cfg.Audio.InputFormat,
		"frameInterval":      a.cfg.Session.FrameInterval.String(),
		"transcriptEndpoint": a.cfg.Transcript.Endpoint,
		"apiKeyConfigured":   fmt.Sprintf("%t", a.cfg.Gemini.APIKey != ""),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// StatusChanged emits connection status updates to the frontend.
func (a *App) StatusChanged(status domain.Status) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventStatus, map[string]any{
		"state":     string(status.State),
		"label":     statusLabel(status.State),
		"message":   status.Message,
		"muted":     status.Muted,
		"sessionId": status.SessionID,
	})
}

// TranscriptUpdated emits the display transcript.
func (a *App) TranscriptUpdated(lines []domain.TranscriptLine) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranscript, lines)
}

// Notice shows a blocking informational dialog.
func (a *App) Notice(message string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventNotice, map[string]string{"message": message})
	if _, err := runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
		Type:    runtime.InfoDialog,
		Title:   "Visionary",
		Message: message,
	}); err != nil {
		logging.L("app").Warn("notice dialog failed", logging.Err(err))
	}
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func statusLabel(state domain.ConnectionStatus) string {
	switch state {
	case domain.StatusDisconnected:
		return "Ready to start"
	case domain.StatusConnecting:
		return "Connecting..."
	case domain.StatusConnected:
		return "Live"
	case domain.StatusError:
		return "Error"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDeviceAccess:
		return "Screen or microphone access failed"
	case domain.ErrorCodeConnection:
		return "Connection error"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodePlayback:
		return "Audio playback issue"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
