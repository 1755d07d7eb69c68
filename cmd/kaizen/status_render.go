package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"kaizen/internal/api"
	"kaizen/internal/deps"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatus(status api.StatusResponse, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Server", colorize)...)
	if status.Running {
		lines = append(lines, renderStatusLine("Server", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
		if status.StartedAt != "" {
			lines = append(lines, renderStatusLine("Started", statusInfo, status.StartedAt, colorize))
		}
	} else {
		lines = append(lines, renderStatusLine("Server", statusWarn, "not running", colorize))
	}
	lines = append(lines, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	if status.SchemaVersion != "" {
		lines = append(lines, renderStatusLine("Schema", statusInfo, status.SchemaVersion, colorize))
	}
	lines = append(lines, renderStatusLine("Speech cache", statusInfo, status.CacheDir, colorize))

	if len(status.Checks) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Checks", colorize)...)
		for _, check := range status.Checks {
			kind := statusOK
			if !check.Passed {
				kind = statusError
			}
			lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
		}
	}

	if len(status.Dependencies) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
		for _, dep := range status.Dependencies {
			lines = append(lines, renderStatusLine(dep.Name, dependencyKind(dep), dependencyMessage(dep), colorize))
		}
	}
	return lines
}

func dependencyKind(dep deps.Status) statusKind {
	switch {
	case dep.Available:
		return statusOK
	case dep.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyMessage(dep deps.Status) string {
	if dep.Available {
		return dep.Command
	}
	if dep.Detail != "" {
		return dep.Detail
	}
	return "not found"
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
