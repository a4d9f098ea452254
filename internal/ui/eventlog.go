package ui

import (
	"context"
	"log/slog"

	"github.com/bamsammich/ferry/internal/event"
)

// EventLog writes each event as a structured "ferry.event" record. Byte
// level progress is left out; the Progress summary events carry it.
func EventLog(log *slog.Logger) event.Observer {
	return event.ObserverFunc(func(ev Event) {
		if ev.Type == event.EntryProgress {
			return
		}
		attrs := []slog.Attr{slog.String("type", ev.Type.String())}
		if ev.JobID != "" {
			attrs = append(attrs, slog.String("job", ev.JobID))
		}
		if ev.Path != "" {
			attrs = append(attrs, slog.String("path", ev.Path))
		}
		if ev.Dest != "" {
			attrs = append(attrs, slog.String("dest", ev.Dest))
		}
		switch ev.Type {
		case StateChanged:
			attrs = append(attrs, slog.String("state", ev.State.String()))
		case Progress:
			attrs = append(attrs, slog.Int64("done", ev.Done), slog.Int64("total", ev.Total))
		case event.DataNotify:
			attrs = append(attrs, slog.Int64("size", ev.Size), slog.Int64("files", ev.Files), slog.Int64("dirs", ev.Dirs))
		case DecisionRequested:
			if ev.Request != nil {
				attrs = append(attrs, slog.String("request", ev.Request.ID), slog.String("kind", ev.Request.Kind.String()))
			}
		case DecisionResolved:
			attrs = append(attrs, slog.String("decision", ev.Decision.String()))
		case JobFinished:
			attrs = append(attrs, slog.String("outcome", ev.Outcome.String()))
		default:
			if ev.Size > 0 {
				attrs = append(attrs, slog.Int64("size", ev.Size))
			}
		}
		if ev.Error != nil {
			attrs = append(attrs, slog.String("error", ev.Error.Error()))
		}
		log.LogAttrs(context.Background(), slog.LevelInfo, "ferry.event", attrs...)
	})
}
