// Package messages holds the user-facing notification texts. Defaults
// ship in the binary; deployments can override any of them with a JSON
// file.
package messages

import (
	"encoding/json"
	"fmt"
	"os"
)

type Text struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Catalog maps notification events to their display texts. Body strings
// may carry fmt verbs filled in by the sender.
type Catalog struct {
	SyncCompleted         Text `json:"sync_completed"`
	CredentialInvalidated Text `json:"credential_invalidated"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		SyncCompleted: Text{
			Title: "Transactions updated",
			Body:  "%d new or updated transactions were imported.",
		},
		CredentialInvalidated: Text{
			Title: "Bank connection needs attention",
			Body:  "Your connection to %s expired. Please relink it to keep syncing.",
		},
	}
}

// Load reads a JSON override file on top of the defaults. Fields absent
// from the file keep their built-in text.
func Load(path string) (*Catalog, error) {
	catalog := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}
	if err := json.Unmarshal(data, catalog); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}
	return catalog, nil
}
