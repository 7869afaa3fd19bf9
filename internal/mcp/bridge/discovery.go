package bridge

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
)

// DiscoveryPath is where [Discovery] is served.
const DiscoveryPath = "/.well-known/wingman"

// DefaultDiscoveryName is the name advertised when none is configured.
const DefaultDiscoveryName = "wingman"

// Discovery serves the bridge's discovery document:
//
//	{"name": "wingman", "instructions": "..."}
//
// The instructions are read from InstructionsFile on every request and
// trimmed. A missing, unreadable or blank file omits the field; it never
// fails the request.
type Discovery struct {
	Name             string
	InstructionsFile string
}

type discoveryDoc struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions,omitempty"`
}

// ServeHTTP implements http.Handler.
func (d Discovery) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	doc := discoveryDoc{Name: d.Name, Instructions: d.instructions()}
	if doc.Name == "" {
		doc.Name = DefaultDiscoveryName
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (d Discovery) instructions() string {
	if d.InstructionsFile == "" {
		return ""
	}
	data, err := os.ReadFile(d.InstructionsFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
