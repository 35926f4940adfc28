package postgres

import "github.com/flowline/target-ldif/internal/endpoint"

func init() {
	endpoint.Register("jdbc.postgres", func(config map[string]any) (endpoint.Endpoint, error) {
		return New(config)
	})
}
