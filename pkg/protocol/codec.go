package protocol

import (
	"encoding/json"
	"fmt"
)

// ClientFrame is what the client sends for every utterance.
type ClientFrame struct {
	Message     string
	SessionID   string
	Credentials Credentials
}

const (
	fieldMessage   = "message"
	fieldSessionID = "session_id"
)

// Encode builds the client->server frame. Credential fields are flattened
// next to the message, as the server expects them.
func Encode(utterance, sessionID string, creds Credentials) ([]byte, error) {
	frame := make(map[string]string, len(creds)+2)
	for k, v := range creds {
		if k == fieldMessage || k == fieldSessionID {
			continue
		}
		frame[k] = v
	}
	frame[fieldMessage] = utterance
	frame[fieldSessionID] = sessionID
	return json.Marshal(frame)
}

// DecodeClientFrame parses a client frame on the server side. Every string
// field other than message and session_id is treated as a credential.
func DecodeClientFrame(frame []byte) (ClientFrame, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		return ClientFrame{}, malformed("invalid json", err)
	}
	out := ClientFrame{Credentials: Credentials{}}
	for k, raw := range fields {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			if k == fieldMessage || k == fieldSessionID {
				return ClientFrame{}, malformed(k+" is not a string", err)
			}
			continue
		}
		switch k {
		case fieldMessage:
			out.Message = s
		case fieldSessionID:
			out.SessionID = s
		default:
			out.Credentials[k] = s
		}
	}
	return out, nil
}

type statusWire struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

type toolWire struct {
	Type   EventType      `json:"type"`
	Tool   string         `json:"tool"`
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

type projectsWire struct {
	Type  EventType `json:"type"`
	Data  []Project `json:"data"`
	Count int       `json:"count"`
}

type boundsWire struct {
	Type EventType `json:"type"`
	BBox BBox      `json:"bbox"`
}

type messageWire struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
	Done    bool      `json:"done"`
}

type newsWire struct {
	Type EventType `json:"type"`
	Data []Article `json:"data"`
}

type errorWire struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

// EncodeEvent serializes a server->client frame.
func EncodeEvent(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case StatusEvent:
		return json.Marshal(statusWire{TypeStatus, e.Message})
	case ToolEvent:
		return json.Marshal(toolWire{TypeTool, e.Tool, e.Query, e.Params})
	case ProjectsEvent:
		data := e.Data
		if data == nil {
			data = []Project{}
		}
		return json.Marshal(projectsWire{TypeProjects, data, e.Count})
	case MapBoundsEvent:
		return json.Marshal(boundsWire{TypeMapBounds, e.BBox})
	case MessageEvent:
		return json.Marshal(messageWire{TypeMessage, e.Content, e.Done})
	case NewsEvent:
		data := e.Data
		if data == nil {
			data = []Article{}
		}
		return json.Marshal(newsWire{TypeNews, data})
	case ErrorEvent:
		return json.Marshal(errorWire{TypeError, e.Content})
	default:
		return nil, fmt.Errorf("encode event: unsupported type %q", ev.Type())
	}
}

// Decode parses a server frame. Unknown types decode to UnknownEvent
// without error; malformed frames return a *ProtocolError.
func Decode(frame []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		return nil, malformed("invalid json", err)
	}
	rawType, ok := fields["type"]
	if !ok {
		return nil, malformed("missing type", nil)
	}
	var name string
	if err := json.Unmarshal(rawType, &name); err != nil {
		return nil, malformed("type is not a string", err)
	}

	switch EventType(name) {
	case TypeStatus:
		msg, err := firstString(fields, "message", "content")
		if err != nil {
			return nil, err
		}
		return StatusEvent{Message: msg}, nil

	case TypeTool:
		tool, err := firstString(fields, "tool")
		if err != nil {
			return nil, err
		}
		query, err := firstString(fields, "query")
		if err != nil {
			return nil, err
		}
		var params map[string]any
		if raw, ok := fields["params"]; ok {
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, malformed("tool params", err)
			}
		}
		return ToolEvent{Tool: tool, Query: query, Params: params}, nil

	case TypeProjects:
		raw, ok := fields["data"]
		if !ok {
			return nil, malformed("projects without data", nil)
		}
		var data []Project
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, malformed("projects data", err)
		}
		if data == nil {
			data = []Project{}
		}
		count := len(data)
		if rawCount, ok := fields["count"]; ok && string(rawCount) != "null" {
			if err := json.Unmarshal(rawCount, &count); err != nil {
				return nil, malformed("projects count", err)
			}
		}
		return ProjectsEvent{Data: data, Count: count}, nil

	case TypeMapBounds:
		box, err := decodeBBox(fields["bbox"])
		if err != nil {
			return nil, err
		}
		return MapBoundsEvent{BBox: box}, nil

	case TypeMessage:
		content, err := firstString(fields, "content")
		if err != nil {
			return nil, err
		}
		var done bool
		if raw, ok := fields["done"]; ok && string(raw) != "null" {
			if err := json.Unmarshal(raw, &done); err != nil {
				return nil, malformed("message done", err)
			}
		}
		return MessageEvent{Content: content, Done: done}, nil

	case TypeNews:
		raw, ok := fields["data"]
		if !ok {
			return nil, malformed("news without data", nil)
		}
		var data []Article
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, malformed("news data", err)
		}
		if data == nil {
			data = []Article{}
		}
		return NewsEvent{Data: data}, nil

	case TypeError:
		content, err := firstString(fields, "content", "message")
		if err != nil {
			return nil, err
		}
		return ErrorEvent{Content: content}, nil

	default:
		return UnknownEvent{Name: name}, nil
	}
}

// firstString returns the first present key as a string. Absent keys and
// JSON null yield "".
func firstString(fields map[string]json.RawMessage, keys ...string) (string, error) {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", malformed(k+" is not a string", err)
		}
		return s, nil
	}
	return "", nil
}

func decodeBBox(raw json.RawMessage) (BBox, error) {
	if raw == nil {
		return BBox{}, malformed("map_bounds without bbox", nil)
	}
	var pts [][]float64
	if err := json.Unmarshal(raw, &pts); err != nil {
		return BBox{}, malformed("bbox", err)
	}
	if len(pts) != 2 || len(pts[0]) != 2 || len(pts[1]) != 2 {
		return BBox{}, malformed("bbox must be [[minLon,minLat],[maxLon,maxLat]]", nil)
	}
	box := BBox{{pts[0][0], pts[0][1]}, {pts[1][0], pts[1][1]}}
	if box.MinLon() > box.MaxLon() || box.MinLat() > box.MaxLat() {
		return BBox{}, malformed("bbox min exceeds max", nil)
	}
	return box, nil
}
