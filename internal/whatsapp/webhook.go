package whatsapp

import "encoding/json"

// Inbound is the flattened result of parsing one webhook event: the sender,
// their profile name if the platform supplied one, and the text body.
type Inbound struct {
	From string // sender phone number, digits only
	Name string // profile display name, may be empty
	Text string
	Type string // "text", "audio", "image", ...
}

// envelope mirrors the platform's deeply nested webhook payload. Only the
// fields this server reads are declared.
type envelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWebhook extracts every inbound message from a webhook payload.
// Status-only events (delivery receipts) yield an empty slice, not an error;
// the handler has already acknowledged with 200 either way.
func ParseWebhook(body []byte) ([]Inbound, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	var out []Inbound
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			v := change.Value
			name := ""
			if len(v.Contacts) > 0 {
				name = v.Contacts[0].Profile.Name
			}
			for _, m := range v.Messages {
				if m.From == "" {
					continue
				}
				out = append(out, Inbound{
					From: m.From,
					Name: name,
					Text: m.Text.Body,
					Type: m.Type,
				})
			}
		}
	}
	return out, nil
}
