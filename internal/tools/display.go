package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ToolDisplay is the resolved presentation of one tool call: emoji,
// title, progressive label, and a detail string pulled from the call's
// arguments. The CLI renders these on tool-start events.
type ToolDisplay struct {
	Name   string
	Emoji  string
	Title  string
	Label  string
	Verb   string
	Detail string
}

// ToolDisplaySpec declares how one tool renders.
type ToolDisplaySpec struct {
	Emoji      string                       `json:"emoji,omitempty"`
	Title      string                       `json:"title,omitempty"`
	Label      string                       `json:"label,omitempty"`
	DetailKeys []string                     `json:"detailKeys,omitempty"`
	Actions    map[string]ToolDisplayAction `json:"actions,omitempty"`
}

// ToolDisplayAction overrides the label/detail for one action value of a
// multi-action tool (e.g. the process tool's kill vs. log).
type ToolDisplayAction struct {
	Label      string   `json:"label,omitempty"`
	DetailKeys []string `json:"detailKeys,omitempty"`
}

// ToolDisplayConfig is the full display table plus a fallback spec.
type ToolDisplayConfig struct {
	Version  int                        `json:"version,omitempty"`
	Fallback *ToolDisplaySpec           `json:"fallback,omitempty"`
	Tools    map[string]ToolDisplaySpec `json:"tools,omitempty"`
}

// DetailLabelOverrides maps argument keys to friendlier detail labels.
var DetailLabelOverrides = map[string]string{
	"file_path":    "path",
	"session_id":   "session",
	"call_id":      "call",
	"timeout_secs": "timeout",
	"max_results":  "max results",
}

// MaxDetailEntries caps how many argument values one detail line shows.
const MaxDetailEntries = 8

// defaultToolEmojis cover this core's tool set; "tool" is the fallback.
var defaultToolEmojis = map[string]string{
	"read_file":          "📖",
	"write_file":         "✏️",
	"edit_file":          "✏️",
	"patch_file":         "🩹",
	"delete_file":        "🗑️",
	"list_dir":           "📂",
	"search":             "🔍",
	"shell":              "💻",
	"process":            "⚙️",
	"propose_change":     "📝",
	"plan":               "📋",
	"mark_plan_complete": "✅",
	"switch_mode":        "🔀",
	"tool":               "🧩",
}

// DefaultToolDisplayConfig returns the built-in display table for the
// registry's tools.
func DefaultToolDisplayConfig() *ToolDisplayConfig {
	return &ToolDisplayConfig{
		Version:  1,
		Fallback: &ToolDisplaySpec{Emoji: "🧩"},
		Tools: map[string]ToolDisplaySpec{
			"read_file":          {Emoji: "📖", Title: "Read", Label: "Reading", DetailKeys: []string{"path", "file_path"}},
			"write_file":         {Emoji: "✏️", Title: "Write", Label: "Writing", DetailKeys: []string{"path", "file_path"}},
			"edit_file":          {Emoji: "✏️", Title: "Edit", Label: "Editing", DetailKeys: []string{"path", "file_path"}},
			"patch_file":         {Emoji: "🩹", Title: "Patch", Label: "Patching", DetailKeys: []string{"path", "file_path"}},
			"delete_file":        {Emoji: "🗑️", Title: "Delete", Label: "Deleting", DetailKeys: []string{"path", "file_path"}},
			"list_dir":           {Emoji: "📂", Title: "List", Label: "Listing", DetailKeys: []string{"path", "dir"}},
			"search":             {Emoji: "🔍", Title: "Search", Label: "Searching", DetailKeys: []string{"pattern", "path"}},
			"shell":              {Emoji: "💻", Title: "Shell", Label: "Running", DetailKeys: []string{"command"}},
			"process":            {Emoji: "⚙️", Title: "Process", Label: "Managing process", DetailKeys: []string{"action", "process_id"}},
			"propose_change":     {Emoji: "📝", Title: "Propose Change", Label: "Proposing", DetailKeys: []string{"path", "summary"}},
			"plan":               {Emoji: "📋", Title: "Plan", Label: "Planning", DetailKeys: []string{"action", "step"}},
			"mark_plan_complete": {Emoji: "✅", Title: "Complete Plan", Label: "Completing plan", DetailKeys: []string{"summary"}},
			"switch_mode":        {Emoji: "🔀", Title: "Switch Mode", Label: "Switching mode", DetailKeys: []string{"mode"}},
		},
	}
}

// ResolveToolDisplay resolves the display for a tool call. args is the
// decoded argument map (or nil); meta is reserved for caller-supplied
// display hints and currently unused.
func ResolveToolDisplay(name string, args interface{}, meta string) *ToolDisplay {
	_ = meta
	config := DefaultToolDisplayConfig()
	normalized := normalizeToolName(name)

	display := &ToolDisplay{
		Name:  name,
		Title: defaultTitle(name),
		Verb:  "Using",
	}

	spec, found := config.Tools[normalized]
	if !found {
		spec, found = config.Tools[name]
	}
	if !found && config.Fallback != nil {
		spec = *config.Fallback
	}

	display.Emoji = spec.Emoji
	if display.Emoji == "" {
		if emoji, ok := defaultToolEmojis[normalized]; ok {
			display.Emoji = emoji
		} else {
			display.Emoji = defaultToolEmojis["tool"]
		}
	}
	if spec.Title != "" {
		display.Title = spec.Title
	}
	if spec.Label != "" {
		display.Label = spec.Label
	}

	// Action-specific overrides for multi-action tools.
	if spec.Actions != nil {
		if action := actionFromArgs(args); action != "" {
			if override, ok := spec.Actions[action]; ok {
				if override.Label != "" {
					display.Label = override.Label
				}
				if len(override.DetailKeys) > 0 {
					spec.DetailKeys = override.DetailKeys
				}
			}
		}
	}

	display.Detail = resolveDetail(normalized, args, spec.DetailKeys)
	return display
}

// FormatToolSummary renders "emoji label: detail" with the empty pieces
// dropped.
func FormatToolSummary(display *ToolDisplay) string {
	var parts []string
	if display.Emoji != "" {
		parts = append(parts, display.Emoji)
	}
	label := display.Label
	if label == "" {
		label = display.Title
	}
	if label != "" {
		parts = append(parts, label)
	}
	summary := strings.Join(parts, " ")
	if display.Detail != "" {
		summary += ": " + display.Detail
	}
	return summary
}

// FormatToolDetail returns just the detail portion.
func FormatToolDetail(display *ToolDisplay) string {
	return display.Detail
}

// normalizeToolName strips namespacing (mcp__server__tool, server.tool)
// and the _tool suffix, lowercased.
func normalizeToolName(name string) string {
	normalized := strings.ToLower(name)
	if idx := strings.LastIndex(normalized, "__"); idx >= 0 {
		normalized = normalized[idx+2:]
	}
	if idx := strings.LastIndex(normalized, "."); idx >= 0 {
		normalized = normalized[idx+1:]
	}
	return strings.TrimSuffix(normalized, "_tool")
}

// defaultTitle renders a title-cased name for tools with no spec entry.
func defaultTitle(name string) string {
	words := strings.FieldsFunc(normalizeToolName(name), func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// resolveDetail picks the detail string: the file tools get bespoke path
// rendering, everything else joins its configured detail keys.
func resolveDetail(normalizedName string, args interface{}, detailKeys []string) string {
	switch normalizedName {
	case "read_file":
		return readDetail(args)
	case "write_file", "edit_file", "patch_file":
		return pathDetail(args)
	}
	return detailFromKeys(args, detailKeys)
}

// readDetail renders "path (offset-limit)" when a read is windowed.
func readDetail(args interface{}) string {
	argsMap, ok := args.(map[string]interface{})
	if !ok {
		return ""
	}
	path := pathDetail(args)
	if path == "" {
		return ""
	}

	offset := coerceDisplayValue(argsMap["offset"])
	limit := coerceDisplayValue(argsMap["limit"])
	if offset == "" && limit == "" {
		return path
	}
	window := offset
	if limit != "" {
		if window != "" {
			window += "-"
		}
		window += limit
	}
	return fmt.Sprintf("%s (%s)", path, window)
}

// pathDetail extracts and shortens the path argument.
func pathDetail(args interface{}) string {
	argsMap, ok := args.(map[string]interface{})
	if !ok {
		return ""
	}
	for _, key := range []string{"path", "file_path"} {
		if p, ok := argsMap[key].(string); ok && p != "" {
			return shortenHomePath(p)
		}
	}
	return ""
}

// detailFromKeys joins the values of keys (dot paths allowed) with a
// separator, up to MaxDetailEntries.
func detailFromKeys(args interface{}, keys []string) string {
	if args == nil || len(keys) == 0 {
		return ""
	}
	var details []string
	for _, key := range keys {
		if len(details) >= MaxDetailEntries {
			break
		}
		value := coerceDisplayValue(lookupValueByPath(args, key))
		if value == "" {
			continue
		}
		details = append(details, shortenHomePath(value))
	}
	return strings.Join(details, " · ")
}

// lookupValueByPath walks nested maps by a dot-separated path.
func lookupValueByPath(args interface{}, path string) interface{} {
	if args == nil || path == "" {
		return nil
	}
	current := args
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok {
			return nil
		}
	}
	return current
}

// coerceDisplayValue renders a decoded JSON value for a detail line.
func coerceDisplayValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return fmt.Sprintf("%t", v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if s := coerceDisplayValue(item); s != "" {
				items = append(items, s)
			}
		}
		return strings.Join(items, ", ")
	case map[string]interface{}:
		for _, key := range []string{"name", "id", "path", "value"} {
			if val, ok := v[key]; ok {
				return coerceDisplayValue(val)
			}
		}
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// shortenHomePath collapses the home directory prefix to ~.
func shortenHomePath(path string) string {
	if path == "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	clean := filepath.Clean(path)
	cleanHome := filepath.Clean(home)
	if strings.HasPrefix(clean, cleanHome) {
		return "~" + clean[len(cleanHome):]
	}
	return path
}

// actionFromArgs reads the action-ish argument of multi-action tools.
func actionFromArgs(args interface{}) string {
	argsMap, ok := args.(map[string]interface{})
	if !ok {
		return ""
	}
	for _, key := range []string{"action", "type", "method", "operation"} {
		if val, ok := argsMap[key].(string); ok {
			return val
		}
	}
	return ""
}
