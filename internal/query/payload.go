package query

import "github.com/geocoder89/contextbridge/internal/domain/connector"

// ConnectorView is a connector without identifiers or timestamps, the shape
// the model gateway expects.
type ConnectorView struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

type Payload struct {
	Connectors []ConnectorView `json:"connectors"`
	Query      string          `json:"query"`
	Profile    []string        `json:"profile"`
}

// BuildPayload strips ids from the resolved connectors and packs them with the
// profile names and the query text. Order and duplicates are kept.
func BuildPayload(connectors []connector.Connector, profile []string, q string) Payload {
	views := make([]ConnectorView, 0, len(connectors))
	for _, c := range connectors {
		cfg := c.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		views = append(views, ConnectorView{Name: c.Name, Type: c.Type, Config: cfg})
	}

	names := make([]string, 0, len(profile))
	names = append(names, profile...)

	return Payload{
		Connectors: views,
		Query:      q,
		Profile:    names,
	}
}
