package governance

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Rules is what a law set derives from one record: the concept name used
// for node identity, the dimension tags to attach, and the payload update.
type Rules struct {
	Concept       string
	Dimensions    []string
	PayloadUpdate map[string]any
}

// AnalyzeFunc maps a structured record to node rules.
type AnalyzeFunc func(data map[string]any) (Rules, error)

// LawSet is a named classification strategy. A record belongs to the set
// when its key fingerprint is a superset of FingerprintKeys. Container
// sets wrap the payloads of records classified beneath them.
type LawSet struct {
	Name            string
	FingerprintKeys []string
	Container       bool
	Analyze         AnalyzeFunc
}

// Matches reports whether the record's key set covers the fingerprint.
func (l *LawSet) Matches(data map[string]any) bool {
	for _, key := range l.FingerprintKeys {
		if _, ok := data[key]; !ok {
			return false
		}
	}
	return true
}

// mutate applies the inherited-governance contract to a child's rules:
// every child appends a mutator tag for its parent domain, and children of
// a container domain get their payload wrapped as leaf data.
func mutate(r Rules, parent *LawSet, childDomain string) Rules {
	r.Dimensions = append(r.Dimensions, "dim_mutator:"+parent.Name)
	if parent.Container {
		r.PayloadUpdate = map[string]any{
			strings.ToLower(parent.Name) + "_leaf_data": r.PayloadUpdate,
			"structural_role": strings.ToLower(childDomain) + "_content",
		}
	}
	return r
}

// defaultLawSets returns the static law sets in their fixed identification
// order. First superset match wins, so more specific fingerprints come
// first.
func defaultLawSets() []*LawSet {
	return []*LawSet{
		{
			Name:            "CONVERSATION",
			FingerprintKeys: []string{"platform", "conversation_id", "messages"},
			Analyze: func(data map[string]any) (Rules, error) {
				cid := stringValue(data, "conversation_id", "unknown")
				platform := stringValue(data, "platform", "other")

				count := 0
				if msgs, ok := data["messages"].([]any); ok {
					count = len(msgs)
				} else if msgs, ok := data["messages"].([]map[string]any); ok {
					count = len(msgs)
				}

				return Rules{
					Concept: "conv_" + cid,
					Dimensions: []string{
						"dim_theme:conversation",
						"dim_platform:" + platform,
					},
					PayloadUpdate: map[string]any{
						"platform":      platform,
						"message_count": count,
					},
				}, nil
			},
		},
		{
			Name:            "MESSAGE",
			FingerprintKeys: []string{"role", "content"},
			Analyze: func(data map[string]any) (Rules, error) {
				role := stringValue(data, "role", "unknown")

				concept := ""
				if cid, ok := data["conversation_id"]; ok {
					if idx, ok := data["index"]; ok {
						concept = fmt.Sprintf("msg_%v_%v", cid, idx)
					}
				}
				if concept == "" {
					concept = "msg_" + shortID()
				}

				return Rules{
					Concept: concept,
					Dimensions: []string{
						"dim_theme:conversation",
						"dim_role:" + role,
					},
					PayloadUpdate: map[string]any{
						"role":    role,
						"content": data["content"],
					},
				}, nil
			},
		},
		{
			Name:            "SECURITY",
			FingerprintKeys: []string{"ip", "action", "threat_level", "vector_complexity"},
			Analyze: func(data map[string]any) (Rules, error) {
				action := stringValue(data, "action", "unknown")
				dims := []string{"dim_theme:security"}
				switch action {
				case "login_fail":
					dims = append(dims, "dim_event:auth_fail")
				case "port_scan":
					dims = append(dims, "dim_event:port_scan")
				}

				return Rules{
					Concept:    "IP_" + stringValue(data, "ip", "unknown"),
					Dimensions: dims,
					PayloadUpdate: map[string]any{
						"last_action":       action,
						"last_threat_level": data["threat_level"],
					},
				}, nil
			},
		},
		{
			Name:            "CLIMATE",
			FingerprintKeys: []string{"sensor_id", "temp", "anomaly", "temp_delta"},
			Analyze: func(data map[string]any) (Rules, error) {
				anomaly := stringValue(data, "anomaly", "none")
				dims := []string{"dim_theme:climate"}
				if anomaly == "high" || math.Abs(floatValue(data, "temp")-20.0) > 15.0 {
					dims = append(dims, "dim_anomaly:high")
				}

				return Rules{
					Concept:    "SENSOR_" + stringValue(data, "sensor_id", "unknown"),
					Dimensions: dims,
					PayloadUpdate: map[string]any{
						"last_temp":    data["temp"],
						"last_anomaly": anomaly,
					},
				}, nil
			},
		},
		{
			Name:            "TEXT",
			FingerprintKeys: []string{"text", "source_doc"},
			Analyze: func(data map[string]any) (Rules, error) {
				text := stringValue(data, "text", "")

				sentiment := "neutral"
				if strings.Contains(text, "on track") {
					sentiment = "positive"
				} else if strings.Contains(text, "failed") {
					sentiment = "negative"
				}

				return Rules{
					Concept: "TXT_" + shortID(),
					Dimensions: []string{
						"dim_theme:text",
						"dim_sentiment:" + sentiment,
					},
					PayloadUpdate: map[string]any{
						"raw_text":   text,
						"char_count": len(text),
					},
				}, nil
			},
		},
		{
			Name:            "TABULAR",
			FingerprintKeys: []string{"row", "schema_name"},
			Analyze: func(data map[string]any) (Rules, error) {
				schema := stringValue(data, "schema_name", "unknown_schema")

				payload := map[string]any{}
				if row, ok := data["row"].(map[string]any); ok {
					payload = row
				}

				return Rules{
					Concept: fmt.Sprintf("ROW_%s_%s", schema, shortID()),
					Dimensions: []string{
						"dim_theme:tabular",
						"dim_schema_link:" + schema,
					},
					PayloadUpdate: payload,
				}, nil
			},
		},
		{
			Name:            "JSON",
			FingerprintKeys: []string{"json_data", "root_concept"},
			Container:       true,
			Analyze: func(data map[string]any) (Rules, error) {
				concept := stringValue(data, "root_concept", "")
				if concept == "" {
					concept = "JSON_" + shortID()
				}

				payload := map[string]any{}
				if inner, ok := data["json_data"].(map[string]any); ok {
					payload = inner
				}

				return Rules{
					Concept: concept,
					Dimensions: []string{
						"dim_theme:json",
						"dim_structural:container",
					},
					PayloadUpdate: payload,
				}, nil
			},
		},
		{
			Name:            "IMAGE",
			FingerprintKeys: []string{"filepath", "width", "height"},
			Analyze: func(data map[string]any) (Rules, error) {
				path := stringValue(data, "filepath", "unknown.img")
				format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

				return Rules{
					Concept: "IMG_" + filepath.Base(path),
					Dimensions: []string{
						"dim_theme:image",
						"dim_format:" + format,
					},
					PayloadUpdate: map[string]any{
						"filepath":   path,
						"megapixels": floatValue(data, "width") * floatValue(data, "height") / 1e6,
					},
				}, nil
			},
		},
		{
			Name:            "AUDIO",
			FingerprintKeys: []string{"filepath", "duration", "artist"},
			Analyze: func(data map[string]any) (Rules, error) {
				path := stringValue(data, "filepath", "unknown.aud")
				artist := strings.ReplaceAll(stringValue(data, "artist", "Unknown"), " ", "_")

				return Rules{
					Concept: "AUD_" + filepath.Base(path),
					Dimensions: []string{
						"dim_theme:audio",
						"dim_artist:" + artist,
					},
					PayloadUpdate: map[string]any{
						"filepath":     path,
						"duration_min": floatValue(data, "duration") / 60.0,
					},
				}, nil
			},
		},
		{
			// BINARY is the designated fallback: anything with a filepath
			// lands here, and the generator adapts from it when nothing
			// else comes close.
			Name:            "BINARY",
			FingerprintKeys: []string{"filepath"},
			Analyze: func(data map[string]any) (Rules, error) {
				path := stringValue(data, "filepath", "unknown.bin")

				return Rules{
					Concept: "BIN_" + filepath.Base(path),
					Dimensions: []string{
						"dim_theme:binary",
						"dim_status:unprocessed",
					},
					PayloadUpdate: map[string]any{
						"filepath":   path,
						"size_bytes": data["size_bytes"],
					},
				}, nil
			},
		},
	}
}

func stringValue(data map[string]any, key, fallback string) string {
	if v, ok := data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return fallback
}

func floatValue(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func shortID() string {
	return uuid.New().String()[:6]
}
