package api

import (
	"sort"
	"time"

	"docgate/internal/deps"
	"docgate/internal/engine"
)

// FromHealth converts an engine health snapshot into its wire form.
func FromHealth(h engine.Health) EngineStatus {
	status := EngineStatus{
		State:     h.StateName,
		Since:     FormatTime(h.Since),
		InFlight:  h.InFlight,
		Capacity:  h.Capacity,
		Formats:   h.Formats,
		LastError: h.LastError,
	}
	if len(h.Instances) > 0 {
		status.Instances = make([]InstanceStatus, 0, len(h.Instances))
		for _, inst := range h.Instances {
			status.Instances = append(status.Instances, InstanceStatus{
				ID:      inst.ID,
				Port:    inst.Port,
				PID:     inst.PID,
				Busy:    inst.Busy,
				Profile: inst.Profile,
			})
		}
	}
	return status
}

// FromFormats converts registry entries, sorted by extension.
func FromFormats(formats []engine.Format) []Format {
	out := make([]Format, 0, len(formats))
	for _, f := range formats {
		out = append(out, Format{
			Name:      f.Name,
			Extension: f.Extension,
			MediaType: f.MediaType,
			Family:    f.Family,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Extension < out[j].Extension })
	return out
}

// FromDependencies converts dependency checks into their wire form.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Version:     dep.Version,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FormatTime renders t for API payloads; the zero time becomes "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
