// Package logx renders and writes HTTP access lines.
package logx

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AccessEntry is everything an access line can mention.
type AccessEntry struct {
	Time     time.Time
	Status   int
	Latency  time.Duration
	ClientIP string
	Method   string
	Path     string
	// Fields carries the dispatch variables (request_id, cmd, ...).
	Fields map[string]string
}

type segment struct {
	text string
	name string
}

type AccessLogFormatter struct {
	segments []segment
}

const (
	PresetCombined = "odr_combined"
	PresetMinimal  = "odr_minimal"
)

var presets = map[string]string{
	PresetCombined: "$time_local | $status | $latency | $client_ip | $method $path | request_id=$request_id cmd=$cmd result_code=$result_code principal=$principal",
	PresetMinimal:  "$time_local | $status | $latency | $method $path | cmd=$cmd result_code=$result_code",
}

var knownVars = map[string]bool{
	"time_local":  true,
	"status":      true,
	"latency":     true,
	"latency_ms":  true,
	"client_ip":   true,
	"method":      true,
	"path":        true,
	"request_id":  true,
	"cmd":         true,
	"service":     true,
	"command":     true,
	"result_code": true,
	"principal":   true,
}

// ResolveAccessLogFormat picks the explicit format when set, otherwise the
// named preset. Both empty means the default line.
func ResolveAccessLogFormat(format, preset string) (string, error) {
	if strings.TrimSpace(format) != "" {
		return format, nil
	}
	name := strings.ToLower(strings.TrimSpace(preset))
	if name == "" {
		return "", nil
	}
	f, ok := presets[name]
	if !ok {
		return "", fmt.Errorf("invalid access_log_format_preset: %q", preset)
	}
	return f, nil
}

// CompileAccessLogFormat parses a $var template. "$$" is a literal dollar.
// A blank template compiles to nil.
func CompileAccessLogFormat(format string) (*AccessLogFormatter, error) {
	if strings.TrimSpace(format) == "" {
		return nil, nil
	}
	var (
		segs []segment
		lit  strings.Builder
	)
	for i := 0; i < len(format); i++ {
		if format[i] != '$' {
			lit.WriteByte(format[i])
			continue
		}
		if i+1 < len(format) && format[i+1] == '$' {
			lit.WriteByte('$')
			i++
			continue
		}
		end := i + 1
		for end < len(format) && isVarByte(format[end]) {
			end++
		}
		if end == i+1 {
			return nil, fmt.Errorf("invalid access_log_format: missing variable name after '$' at pos %d", i)
		}
		name := format[i+1 : end]
		if !knownVars[name] {
			return nil, fmt.Errorf("invalid access_log_format: unknown variable $%s", name)
		}
		if lit.Len() > 0 {
			segs = append(segs, segment{text: lit.String()})
			lit.Reset()
		}
		segs = append(segs, segment{name: name})
		i = end - 1
	}
	if lit.Len() > 0 {
		segs = append(segs, segment{text: lit.String()})
	}
	return &AccessLogFormatter{segments: segs}, nil
}

func isVarByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Format renders e. Empty variables print as "-".
func (f *AccessLogFormatter) Format(e AccessEntry, color bool) string {
	if f == nil || len(f.segments) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range f.segments {
		if s.name == "" {
			b.WriteString(s.text)
			continue
		}
		v := strings.TrimSpace(e.value(s.name, color))
		if v == "" {
			v = "-"
		}
		b.WriteString(v)
	}
	return b.String()
}

func (e AccessEntry) value(name string, color bool) string {
	switch name {
	case "time_local":
		return e.Time.Format("2006/01/02 - 15:04:05")
	case "status":
		return ColorizeStatus(e.Status, color)
	case "latency":
		return e.Latency.String()
	case "latency_ms":
		return strconv.FormatInt(e.Latency.Milliseconds(), 10)
	case "client_ip":
		return e.ClientIP
	case "method":
		return e.Method
	case "path":
		return e.Path
	}
	return e.Fields[name]
}

// DefaultLine is the access line used when no format is configured.
func DefaultLine(e AccessEntry, color bool) string {
	line := fmt.Sprintf("%s | %s | %s | %s | %s %s",
		e.Time.Format("2006/01/02 - 15:04:05"),
		ColorizeStatus(e.Status, color),
		e.Latency, e.ClientIP, e.Method, e.Path)
	keys := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i == 0 {
			line += " |"
		}
		line += " " + k + "=" + e.Fields[k]
	}
	return line
}

func AccessLogAllowedVars() []string {
	out := make([]string, 0, len(knownVars))
	for k := range knownVars {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
