package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"docgate/internal/api"
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
	statusLabelWidth = 18
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
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

func engineStateKind(state string) statusKind {
	switch state {
	case "running":
		return statusOK
	case "starting", "stopping":
		return statusWarn
	case "failed":
		return statusError
	default:
		return statusInfo
	}
}

// renderStatus lays out a gateway status snapshot as sectioned status lines.
func renderStatus(status api.StatusResponse, colorize bool) string {
	var lines []string

	lines = append(lines, renderSectionHeader("Gateway", colorize)...)
	lines = append(lines, renderStatusLine("Listen", statusInfo, status.Listen, colorize))
	lines = append(lines, renderStatusLine("PID", statusInfo, strconv.Itoa(status.PID), colorize))
	if status.StartedAt != "" {
		lines = append(lines, renderStatusLine("Started", statusInfo, status.StartedAt, colorize))
	}
	if status.UploadCap > 0 {
		lines = append(lines, renderStatusLine("Upload limit", statusOK, humanize.IBytes(uint64(status.UploadCap)), colorize))
	} else {
		lines = append(lines, renderStatusLine("Upload limit", statusWarn, "not configured", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Engine", colorize)...)
	engine := status.Engine
	lines = append(lines, renderStatusLine("State", engineStateKind(engine.State), engine.State, colorize))
	lines = append(lines, renderStatusLine("In flight", statusInfo, fmt.Sprintf("%d of %d", engine.InFlight, engine.Capacity), colorize))
	lines = append(lines, renderStatusLine("Formats", statusInfo, strconv.Itoa(engine.Formats), colorize))
	if engine.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, engine.LastError, colorize))
	}
	for _, inst := range engine.Instances {
		detail := fmt.Sprintf("port %d pid %d busy %s", inst.Port, inst.PID, yesNo(inst.Busy))
		lines = append(lines, renderStatusLine(fmt.Sprintf("Instance %d", inst.ID), statusInfo, detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Scratch", colorize)...)
	lines = append(lines, renderStatusLine("Directory", statusInfo, status.Scratch.Dir, colorize))
	usage := fmt.Sprintf("%d files, %s", status.Scratch.Files, humanize.IBytes(uint64(max(status.Scratch.Bytes, 0))))
	lines = append(lines, renderStatusLine("Usage", statusInfo, usage, colorize))
	if status.Scratch.FreeBytes > 0 {
		lines = append(lines, renderStatusLine("Free", statusInfo, humanize.IBytes(status.Scratch.FreeBytes), colorize))
	}

	if len(status.Dependencies) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
		for _, dep := range status.Dependencies {
			kind := statusOK
			detail := dep.Version
			if detail == "" {
				detail = dep.Command
			}
			if !dep.Available {
				kind = statusError
				if dep.Optional {
					kind = statusWarn
				}
				detail = dep.Detail
			}
			lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		}
	}

	return strings.Join(lines, "\n") + "\n"
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
