package ldif

import "github.com/flowline/target-ldif/internal/endpoint"

func init() {
	endpoint.Register("file.ldif", func(config map[string]any) (endpoint.Endpoint, error) {
		return New(config)
	})
}
